// SPDX-License-Identifier: MPL-2.0

// Package hasher computes content checksums for mod artifacts.
//
// Content is always consumed in fixed-size chunks, so memory use does not
// depend on input size, and every requested algorithm is fed from the same
// pass over the data:
//
//	digests, err := hasher.HashFile(path, []hasher.HashType{hasher.XXHash, hasher.SHA256})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(digests[hasher.XXHash])
package hasher

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"

	"github.com/modist-io/modist/pkg/errkind"
)

// DefaultChunkSize is the number of bytes read per iteration.
const DefaultChunkSize = 64 * 1024

// ErrNoHashTypes is returned when no hash type is requested.
var ErrNoHashTypes = errors.New("at least one hash type is required")

type (
	// Option configures a hashing call.
	Option func(*options)

	options struct {
		chunkSize int
	}
)

// WithChunkSize sets the read chunk size. Non-positive values fall back to
// DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Hash reads r to EOF and returns the hex digest of its content for every
// requested hash type. Duplicate types are collapsed.
func Hash(r io.Reader, types []HashType, opts ...Option) (map[HashType]string, error) {
	if len(types) == 0 {
		return nil, ErrNoHashTypes
	}

	hashes := make(map[HashType]hash.Hash, len(types))
	writers := make([]io.Writer, 0, len(types))
	for _, t := range types {
		if !t.Valid() {
			return nil, &UnknownHashTypeError{Value: t.String()}
		}
		if _, seen := hashes[t]; seen {
			continue
		}
		h := t.New()
		hashes[t] = h
		writers = append(writers, h)
	}
	sink := io.MultiWriter(writers...)

	o := newOptions(opts)
	buf := make([]byte, o.chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			// hash.Hash.Write never returns an error.
			_, _ = sink.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read content: %w", err)
		}
	}

	digests := make(map[HashType]string, len(hashes))
	for t, h := range hashes {
		digests[t] = hex.EncodeToString(h.Sum(nil))
	}
	return digests, nil
}

// HashFile hashes the file at path. The file is closed on every return path.
func HashFile(path string, types []HashType, opts ...Option) (digests map[HashType]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errkind.NotFound(path, err)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	digests, err = Hash(f, types, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return digests, nil
}

// HashBytes returns the hex digest of data for a single hash type.
func HashBytes(data []byte, t HashType) string {
	h := t.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
