// SPDX-License-Identifier: MPL-2.0

package hasher

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/cespare/xxhash/v2"

	"github.com/modist-io/modist/pkg/errkind"
)

func TestHash_KnownVectors(t *testing.T) {
	t.Parallel()

	content := []byte("test")
	tests := []struct {
		hashType HashType
		want     string
	}{
		{MD5, "098f6bcd4621d373cade4e832627b4f6"},
		{SHA1, "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3"},
		{SHA256, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"},
		{XXHash, fmt.Sprintf("%016x", xxhash.Sum64(content))},
	}

	for _, tt := range tests {
		t.Run(tt.hashType.String(), func(t *testing.T) {
			t.Parallel()
			digests, err := Hash(bytes.NewReader(content), []HashType{tt.hashType})
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if got := digests[tt.hashType]; got != tt.want {
				t.Errorf("Hash()[%s] = %q, want %q", tt.hashType, got, tt.want)
			}
		})
	}
}

func TestHash_AllTypesMatchSinglePass(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("modist"), 10_000)
	digests, err := Hash(bytes.NewReader(content), All())
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if len(digests) != len(All()) {
		t.Fatalf("len(digests) = %d, want %d", len(digests), len(All()))
	}
	for _, ht := range All() {
		if want := HashBytes(content, ht); digests[ht] != want {
			t.Errorf("digest[%s] = %q, want %q", ht, digests[ht], want)
		}
	}
}

func TestHash_ChunkSizeIndependent(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef, 0x01}, 3_333)
	want := HashBytes(content, XXHash)

	for _, chunk := range []int{1, 7, 512, DefaultChunkSize, 1 << 20, 0, -5} {
		t.Run(fmt.Sprintf("chunk=%d", chunk), func(t *testing.T) {
			t.Parallel()
			digests, err := Hash(bytes.NewReader(content), []HashType{XXHash}, WithChunkSize(chunk))
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if digests[XXHash] != want {
				t.Errorf("digest = %q, want %q", digests[XXHash], want)
			}
		})
	}
}

func TestHash_OrderAndDuplicatesIndependent(t *testing.T) {
	t.Parallel()

	content := []byte("order does not matter")
	a, err := Hash(bytes.NewReader(content), []HashType{SHA256, XXHash, MD5})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Hash(iotest.OneByteReader(bytes.NewReader(content)), []HashType{MD5, MD5, XXHash, SHA256})
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("len(a)=%d len(b)=%d, want 3", len(a), len(b))
	}
	for k, v := range a {
		if b[k] != v {
			t.Errorf("digest[%s]: %q != %q", k, v, b[k])
		}
	}
}

func TestHash_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no types", func(t *testing.T) {
		t.Parallel()
		if _, err := Hash(bytes.NewReader(nil), nil); !errors.Is(err, ErrNoHashTypes) {
			t.Errorf("Hash(nil types) error = %v, want ErrNoHashTypes", err)
		}
	})

	t.Run("invalid type", func(t *testing.T) {
		t.Parallel()
		if _, err := Hash(bytes.NewReader(nil), []HashType{HashType(200)}); !errors.Is(err, ErrUnknownHashType) {
			t.Errorf("Hash(invalid) error = %v, want ErrUnknownHashType", err)
		}
	})

	t.Run("read failure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		if _, err := Hash(iotest.ErrReader(boom), []HashType{XXHash}); !errors.Is(err, boom) {
			t.Errorf("Hash(failing reader) error = %v, want %v", err, boom)
		}
	})
}

func TestHashFile(t *testing.T) {
	t.Parallel()

	t.Run("matches in-memory digest", func(t *testing.T) {
		t.Parallel()
		content := bytes.Repeat([]byte("file vs memory "), 9_001)
		path := filepath.Join(t.TempDir(), "content.bin")
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}

		fromFile, err := HashFile(path, All(), WithChunkSize(4096))
		if err != nil {
			t.Fatalf("HashFile() error = %v", err)
		}
		fromMemory, err := Hash(bytes.NewReader(content), All())
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		for _, ht := range All() {
			if fromFile[ht] != fromMemory[ht] {
				t.Errorf("%s: file %q != memory %q", ht, fromFile[ht], fromMemory[ht])
			}
		}
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "empty")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		digests, err := HashFile(path, []HashType{XXHash})
		if err != nil {
			t.Fatalf("HashFile() error = %v", err)
		}
		if want := HashBytes(nil, XXHash); digests[XXHash] != want {
			t.Errorf("digest = %q, want %q", digests[XXHash], want)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := HashFile(filepath.Join(t.TempDir(), "nope"), []HashType{XXHash})
		if !errors.Is(err, errkind.ErrNotFound) {
			t.Errorf("HashFile(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestHashType_Text(t *testing.T) {
	t.Parallel()

	for _, ht := range All() {
		text, err := ht.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) error = %v", ht, err)
		}
		var parsed HashType
		if err := parsed.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if parsed != ht {
			t.Errorf("round trip %s = %s", ht, parsed)
		}
	}

	if _, err := ParseHashType("crc32"); !errors.Is(err, ErrUnknownHashType) {
		t.Errorf("ParseHashType(crc32) error = %v, want ErrUnknownHashType", err)
	}
	if _, err := HashType(0).MarshalText(); err == nil {
		t.Error("MarshalText(0) should fail")
	}
	if HashType(0).OrDefault() != XXHash {
		t.Error("zero HashType should default to XXHash")
	}
}
