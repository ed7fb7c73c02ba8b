// SPDX-License-Identifier: MPL-2.0

package hasher

import (
	"crypto/md5"  //nolint:gosec // selectable legacy checksum, not used for security
	"crypto/sha1" //nolint:gosec // selectable legacy checksum, not used for security
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// ErrUnknownHashType is the sentinel error wrapped by UnknownHashTypeError.
var ErrUnknownHashType = errors.New("unknown hash type")

type (
	// HashType selects a checksum algorithm.
	// The zero value is unset and resolves to Default through OrDefault.
	HashType uint8

	// UnknownHashTypeError is returned when a tag or value does not name a
	// supported HashType.
	UnknownHashTypeError struct {
		Value string
	}

	hashSpec struct {
		tag string
		new func() hash.Hash
	}
)

// These are the supported checksum algorithms.
const (
	// XXHash is the 64-bit xxhash content hash; the default for archives.
	XXHash HashType = iota + 1
	MD5
	SHA1
	SHA256
	SHA512
	// BLAKE2b is BLAKE2b-512.
	BLAKE2b
	SHA3_256
)

// Default is the hash type used when none is requested.
const Default = XXHash

var hashSpecs = [...]hashSpec{
	XXHash:   {tag: "xxhash", new: func() hash.Hash { return xxhash.New() }},
	MD5:      {tag: "md5", new: md5.New},
	SHA1:     {tag: "sha1", new: sha1.New},
	SHA256:   {tag: "sha256", new: sha256.New},
	SHA512:   {tag: "sha512", new: sha512.New},
	BLAKE2b:  {tag: "blake2b", new: newBLAKE2b},
	SHA3_256: {tag: "sha3_256", new: sha3.New256},
}

func newBLAKE2b() hash.Hash {
	// New512 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New512(nil)
	return h
}

// All returns every supported hash type in declaration order.
func All() []HashType {
	types := make([]HashType, 0, len(hashSpecs)-1)
	for t := XXHash; int(t) < len(hashSpecs); t++ {
		types = append(types, t)
	}
	return types
}

// ParseHashType returns the HashType whose tag is s.
func ParseHashType(s string) (HashType, error) {
	for _, t := range All() {
		if hashSpecs[t].tag == s {
			return t, nil
		}
	}
	return 0, &UnknownHashTypeError{Value: s}
}

// Valid reports whether t names a supported algorithm.
func (t HashType) Valid() bool {
	return t >= XXHash && int(t) < len(hashSpecs)
}

// OrDefault returns t, or Default when t is unset.
func (t HashType) OrDefault() HashType {
	if t == 0 {
		return Default
	}
	return t
}

// String returns the stable serialization tag.
func (t HashType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("HashType(%d)", uint8(t))
	}
	return hashSpecs[t].tag
}

// New returns a fresh hash.Hash for t. It panics on an invalid HashType,
// mirroring the behavior of crypto.Hash.New for unavailable hashes.
func (t HashType) New() hash.Hash {
	if !t.Valid() {
		panic(&UnknownHashTypeError{Value: t.String()})
	}
	return hashSpecs[t].new()
}

// MarshalText implements encoding.TextMarshaler.
func (t HashType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, &UnknownHashTypeError{Value: t.String()}
	}
	return []byte(hashSpecs[t].tag), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *HashType) UnmarshalText(text []byte) error {
	parsed, err := ParseHashType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Error implements the error interface.
func (e *UnknownHashTypeError) Error() string {
	return fmt.Sprintf("unknown hash type %q", e.Value)
}

// Unwrap returns ErrUnknownHashType for errors.Is() compatibility.
func (e *UnknownHashTypeError) Unwrap() error { return ErrUnknownHashType }
