// SPDX-License-Identifier: MPL-2.0

// Package manifest describes the content of a mod archive: the relative path
// and checksum of every artifact, the hash algorithm used and when the
// manifest was built.
//
// A manifest is serialized as JSON and stored as the last member of the
// archive at `.mod/manifest.json`:
//
//	{
//	  "artifacts": {".mod/mod.json": "5f1e...", "data.bin": "4fdc..."},
//	  "hash_type": "xxhash",
//	  "built_at": "2020-04-01T12:00:00Z",
//	  "version": 1
//	}
package manifest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/modist-io/modist/pkg/errkind"
	"github.com/modist-io/modist/pkg/hasher"
)

const (
	// Version is the manifest format version written by this package.
	Version = 1
	// MinVersion is the oldest manifest format version accepted by Parse.
	MinVersion = 1
	// MaxVersion is the newest manifest format version accepted by Parse.
	MaxVersion = Version
)

// naiveLayouts are accepted for built_at values written without a zone
// offset; such values are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

var (
	// ErrInvalidManifest is returned when a manifest document cannot be decoded
	// or violates the manifest invariants.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrUnsupportedVersion is the sentinel error wrapped by UnsupportedVersionError.
	ErrUnsupportedVersion = errors.New("unsupported manifest version")
	// ErrInvalidDigest is the sentinel error wrapped by InvalidDigestError.
	ErrInvalidDigest = errors.New("invalid artifact digest")
)

type (
	// Manifest maps every artifact of a mod archive to its checksum.
	Manifest struct {
		// Artifacts maps a slash-separated path relative to the mod root to
		// the lowercase hex digest of its content.
		Artifacts map[string]string
		// HashType is the algorithm that produced every digest.
		HashType hasher.HashType
		// BuiltAt is when the manifest was built.
		BuiltAt time.Time
		// Version is the manifest format version.
		Version int
	}

	// Option configures a manifest created by New.
	Option func(*Manifest)

	// UnsupportedVersionError is returned for a version outside [MinVersion, MaxVersion].
	UnsupportedVersionError struct {
		Version int
	}

	// InvalidDigestError is returned when an artifact digest is not a
	// lowercase hex string of the hash type's size.
	InvalidDigestError struct {
		Artifact string
		Digest   string
	}

	// document is the JSON form of a Manifest.
	document struct {
		Artifacts map[string]string `json:"artifacts"`
		HashType  hasher.HashType   `json:"hash_type"`
		BuiltAt   string            `json:"built_at,omitempty"`
		Version   *int              `json:"version,omitempty"`
	}
)

// WithBuiltAt sets the build time. It defaults to the current time.
func WithBuiltAt(t time.Time) Option {
	return func(m *Manifest) {
		m.BuiltAt = t
	}
}

// WithVersion sets the format version. It defaults to Version.
func WithVersion(v int) Option {
	return func(m *Manifest) {
		m.Version = v
	}
}

// New returns a validated manifest for artifacts. The map is copied. An unset
// hash type resolves to hasher.Default.
//
// An empty artifact set is rejected with errkind.ErrEmptyManifest.
func New(artifacts map[string]string, t hasher.HashType, opts ...Option) (*Manifest, error) {
	m := &Manifest{
		Artifacts: maps.Clone(artifacts),
		HashType:  t.OrDefault(),
		BuiltAt:   time.Now().UTC(),
		Version:   Version,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Parse decodes and validates a manifest document. Unknown keys are ignored
// and a missing version defaults to Version.
func Parse(data []byte) (*Manifest, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	m := &Manifest{
		Artifacts: doc.Artifacts,
		HashType:  doc.HashType,
		Version:   Version,
	}
	if doc.Version != nil {
		m.Version = *doc.Version
	}
	if doc.BuiltAt != "" {
		builtAt, err := parseTimestamp(doc.BuiltAt)
		if err != nil {
			return nil, fmt.Errorf("%w: built_at: %w", ErrInvalidManifest, err)
		}
		m.BuiltAt = builtAt
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return m, nil
}

// Marshal encodes the manifest as JSON. Artifacts are emitted in sorted order.
func (m *Manifest) Marshal() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	version := m.Version
	doc := document{
		Artifacts: m.Artifacts,
		HashType:  m.HashType,
		Version:   &version,
	}
	if !m.BuiltAt.IsZero() {
		doc.BuiltAt = m.BuiltAt.Format(time.RFC3339Nano)
	}
	return json.Marshal(doc)
}

// Validate checks the manifest invariants: at least one artifact, a supported
// hash type and version, and well-formed digests.
func (m *Manifest) Validate() error {
	if len(m.Artifacts) == 0 {
		return errkind.EmptyManifest()
	}
	if !m.HashType.Valid() {
		return &hasher.UnknownHashTypeError{Value: m.HashType.String()}
	}
	if m.Version < MinVersion || m.Version > MaxVersion {
		return &UnsupportedVersionError{Version: m.Version}
	}

	digestLen := 2 * m.HashType.New().Size()
	for _, name := range m.Names() {
		digest := m.Artifacts[name]
		if name == "" || len(digest) != digestLen || !isLowerHex(digest) {
			return &InvalidDigestError{Artifact: name, Digest: digest}
		}
	}
	return nil
}

// Names returns the artifact paths in sorted order.
func (m *Manifest) Names() []string {
	return slices.Sorted(maps.Keys(m.Artifacts))
}

// Digest returns the recorded digest of the artifact at name.
func (m *Manifest) Digest(name string) (string, bool) {
	digest, ok := m.Artifacts[name]
	return digest, ok
}

// Error implements the error interface.
func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported manifest version %d (supported: %d-%d)", e.Version, MinVersion, MaxVersion)
}

// Unwrap returns ErrUnsupportedVersion for errors.Is() compatibility.
func (e *UnsupportedVersionError) Unwrap() error { return ErrUnsupportedVersion }

// Error implements the error interface.
func (e *InvalidDigestError) Error() string {
	return fmt.Sprintf("invalid digest %q for artifact %q", e.Digest, e.Artifact)
}

// Unwrap returns ErrInvalidDigest for errors.Is() compatibility.
func (e *InvalidDigestError) Unwrap() error { return ErrInvalidDigest }

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func isLowerHex(s string) bool {
	if strings.ToLower(s) != s {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
