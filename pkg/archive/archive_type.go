// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// ErrUnknownArchiveType is the sentinel error wrapped by UnknownArchiveTypeError.
var ErrUnknownArchiveType = errors.New("unknown archive type")

type (
	// ArchiveType selects the compression filter applied to the tar stream.
	// The zero value is unset and resolves to Default through OrDefault.
	//
	//nolint:revive // archive.ArchiveType reads better than archive.Type at call sites
	ArchiveType uint8

	// UnknownArchiveTypeError is returned when a tag or value does not name a
	// supported ArchiveType.
	UnknownArchiveTypeError struct {
		Value string
	}

	archiveSpec struct {
		ext       string
		magic     []byte
		newWriter func(io.Writer) (io.WriteCloser, error)
		newReader func(io.Reader) (io.ReadCloser, error)
	}

	nopWriteCloser struct {
		io.Writer
	}
)

// These are the supported archive types.
const (
	// LZMA compresses with xz; the default.
	LZMA ArchiveType = iota + 1
	// Gzip compresses with gzip.
	Gzip
	// Bzip2 compresses with bzip2.
	Bzip2
	// Zstd compresses with Zstandard.
	Zstd
	// Plain writes an uncompressed tar stream.
	Plain
)

// Default is the archive type used when none is requested.
const Default = LZMA

// magicPeekSize is the longest magic prefix in archiveSpecs.
const magicPeekSize = 6

var archiveSpecs = [...]archiveSpec{
	LZMA: {
		ext:   "xz",
		magic: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00},
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return xz.NewWriter(w)
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			xr, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(xr), nil
		},
	},
	Gzip: {
		ext:   "gz",
		magic: []byte{0x1f, 0x8b},
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	},
	Bzip2: {
		ext:   "bz2",
		magic: []byte("BZh"),
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return bzip2.NewReader(r, nil)
		},
	},
	Zstd: {
		ext:   "zst",
		magic: []byte{0x28, 0xb5, 0x2f, 0xfd},
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
	},
	Plain: {
		ext: "tar",
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return nopWriteCloser{w}, nil
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(r), nil
		},
	},
}

// AllArchiveTypes returns every supported archive type in declaration order.
func AllArchiveTypes() []ArchiveType {
	types := make([]ArchiveType, 0, len(archiveSpecs)-1)
	for t := LZMA; int(t) < len(archiveSpecs); t++ {
		types = append(types, t)
	}
	return types
}

// ParseArchiveType returns the ArchiveType whose tag is s.
func ParseArchiveType(s string) (ArchiveType, error) {
	for _, t := range AllArchiveTypes() {
		if archiveSpecs[t].ext == s {
			return t, nil
		}
	}
	return 0, &UnknownArchiveTypeError{Value: s}
}

// Valid reports whether t names a supported archive type.
func (t ArchiveType) Valid() bool {
	return t >= LZMA && int(t) < len(archiveSpecs)
}

// OrDefault returns t, or Default when t is unset.
func (t ArchiveType) OrDefault() ArchiveType {
	if t == 0 {
		return Default
	}
	return t
}

// String returns the tag, which is also the archive's file sub-extension.
func (t ArchiveType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ArchiveType(%d)", uint8(t))
	}
	return archiveSpecs[t].ext
}

// MarshalText implements encoding.TextMarshaler.
func (t ArchiveType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, &UnknownArchiveTypeError{Value: t.String()}
	}
	return []byte(archiveSpecs[t].ext), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ArchiveType) UnmarshalText(text []byte) error {
	parsed, err := ParseArchiveType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// NewWriter wraps w in the compression filter for t. Closing the returned
// writer flushes the filter but does not close w.
func (t ArchiveType) NewWriter(w io.Writer) (io.WriteCloser, error) {
	if !t.Valid() {
		return nil, &UnknownArchiveTypeError{Value: t.String()}
	}
	return archiveSpecs[t].newWriter(w)
}

// NewReader wraps r in the decompression filter for t.
func (t ArchiveType) NewReader(r io.Reader) (io.ReadCloser, error) {
	if !t.Valid() {
		return nil, &UnknownArchiveTypeError{Value: t.String()}
	}
	return archiveSpecs[t].newReader(r)
}

// DetectArchiveType sniffs the compression of the stream r from its magic
// bytes. Streams without a known magic prefix are treated as Plain tar. The
// returned reader replays the sniffed bytes and must be used instead of r.
func DetectArchiveType(r io.Reader) (ArchiveType, io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(magicPeekSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, nil, err
	}
	for _, t := range AllArchiveTypes() {
		if magic := archiveSpecs[t].magic; len(magic) > 0 && bytes.HasPrefix(head, magic) {
			return t, br, nil
		}
	}
	return Plain, br, nil
}

// Error implements the error interface.
func (e *UnknownArchiveTypeError) Error() string {
	return fmt.Sprintf("unknown archive type %q", e.Value)
}

// Unwrap returns ErrUnknownArchiveType for errors.Is() compatibility.
func (e *UnknownArchiveTypeError) Unwrap() error { return ErrUnknownArchiveType }

func (nopWriteCloser) Close() error { return nil }
