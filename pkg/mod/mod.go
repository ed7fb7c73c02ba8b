// SPDX-License-Identifier: MPL-2.0

// Package mod models a mod directory on disk: its content plus the `.mod`
// metadata directory holding the `mod.json` descriptor.
package mod

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/modist-io/modist/pkg/cueutil"
	"github.com/modist-io/modist/pkg/errkind"
)

const (
	// MetadataDirName is the name of the metadata directory inside a mod.
	MetadataDirName = ".mod"
	// MetadataDirMode is the permission set enforced on the metadata directory.
	MetadataDirMode fs.FileMode = 0o755
	// ConfigName is the name of the descriptor file inside the metadata directory.
	ConfigName = "mod.json"
	// ManifestName is the archive manifest's file name inside the metadata
	// directory. It is reserved: a mod's own copy is never an artifact.
	ManifestName = "manifest.json"
)

var (
	//go:embed mod_schema.cue
	modSchema []byte

	nameRegex = regexp.MustCompile(`^[a-zA-Z][\w\-]{2,62}[a-zA-Z0-9]$`)

	// ErrNotAMod is the sentinel error wrapped by NotAModError.
	ErrNotAMod = errors.New("not a mod")
	// ErrIsAMod is the sentinel error wrapped by IsAModError.
	ErrIsAMod = errors.New("already a mod")
	// ErrInvalidName is the sentinel error wrapped by InvalidNameError.
	ErrInvalidName = errors.New("invalid mod name")
	// ErrInvalidSemVer is the sentinel error wrapped by InvalidSemVerError.
	ErrInvalidSemVer = errors.New("invalid semver")
)

type (
	// SemVer is a semantic version without a leading "v" (e.g. "1.0.0", "2.3.4-alpha.1").
	SemVer string

	// Descriptor is the content of `.mod/mod.json`.
	Descriptor struct {
		// Name identifies the mod; 4 to 64 word characters or dashes,
		// starting with a letter and ending alphanumeric.
		Name string `json:"name"`
		// Version is the mod's semantic version.
		Version SemVer `json:"version"`
		// Description is a one-line summary.
		Description string `json:"description,omitempty"`
		// Host names the application the mod is intended for.
		Host string `json:"host,omitempty"`
		// Author names the mod's author.
		Author string `json:"author,omitempty"`
		// Include lists glob patterns selecting the mod's content. Empty
		// means everything.
		Include []string `json:"include,omitempty"`
		// Exclude lists glob patterns removed from the selection.
		Exclude []string `json:"exclude,omitempty"`
	}

	// Mod is a mod directory with its parsed descriptor.
	Mod struct {
		// Path is the mod's root directory.
		Path string
		// Descriptor is the parsed `mod.json`.
		Descriptor Descriptor
	}

	// NotAModError is returned when a directory lacks mod metadata.
	NotAModError struct {
		Dir     string
		Missing string
	}

	// IsAModError is returned when creating a mod in a directory that already has one.
	IsAModError struct {
		Dir string
	}

	// InvalidNameError is returned when a descriptor name is malformed.
	InvalidNameError struct {
		Value string
	}

	// InvalidSemVerError is returned when a version is not a full semantic version.
	InvalidSemVerError struct {
		Value SemVer
	}
)

// MetadataDirPath returns the metadata directory path for a mod rooted at dir.
func MetadataDirPath(dir string) string {
	return filepath.Join(dir, MetadataDirName)
}

// ConfigPath returns the descriptor path for a mod rooted at dir.
func ConfigPath(dir string) string {
	return filepath.Join(MetadataDirPath(dir), ConfigName)
}

// Load reads the mod rooted at dir.
//
// A metadata directory with the wrong permissions is repaired to
// MetadataDirMode before the descriptor is read.
func Load(dir string) (*Mod, error) {
	if !isDir(dir) {
		return nil, errkind.NotADirectory(dir)
	}

	metaDir := MetadataDirPath(dir)
	info, err := os.Stat(metaDir)
	if err != nil || !info.IsDir() {
		return nil, &NotAModError{Dir: dir, Missing: metaDir}
	}
	if info.Mode().Perm() != MetadataDirMode {
		if err := os.Chmod(metaDir, MetadataDirMode); err != nil {
			return nil, fmt.Errorf("failed to repair permissions of %s: %w", metaDir, err)
		}
	}

	configPath := ConfigPath(dir)
	if info, err := os.Stat(configPath); err != nil || !info.Mode().IsRegular() {
		return nil, &NotAModError{Dir: dir, Missing: configPath}
	}

	result, err := cueutil.DecodeFile[Descriptor](modSchema, configPath, "#Mod")
	if err != nil {
		return nil, fmt.Errorf("failed to load mod descriptor: %w", err)
	}
	if err := result.Value.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	return &Mod{Path: dir, Descriptor: *result.Value}, nil
}

// Create initializes a new mod in the existing directory dir by writing d to
// `.mod/mod.json`. If writing the descriptor fails the metadata directory is
// removed again.
func Create(dir string, d Descriptor) (m *Mod, err error) {
	if !isDir(dir) {
		return nil, errkind.NotADirectory(dir)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	metaDir := MetadataDirPath(dir)
	if isDir(metaDir) {
		return nil, &IsAModError{Dir: dir}
	}
	if err := os.Mkdir(metaDir, MetadataDirMode); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", metaDir, err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(metaDir)
		}
	}()

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode mod descriptor: %w", err)
	}
	if err := os.WriteFile(ConfigPath(dir), append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write mod descriptor: %w", err)
	}

	return &Mod{Path: dir, Descriptor: d}, nil
}

// New wraps an already validated descriptor for the mod rooted at dir.
// Both dir and its metadata directory must exist.
func New(dir string, d Descriptor) (*Mod, error) {
	if !isDir(dir) {
		return nil, errkind.NotADirectory(dir)
	}
	if metaDir := MetadataDirPath(dir); !isDir(metaDir) {
		return nil, &NotAModError{Dir: dir, Missing: metaDir}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Mod{Path: dir, Descriptor: d}, nil
}

// MetadataDir returns the mod's metadata directory.
func (m *Mod) MetadataDir() string {
	return MetadataDirPath(m.Path)
}

// ConfigPath returns the mod's descriptor path.
func (m *Mod) ConfigPath() string {
	return ConfigPath(m.Path)
}

// String returns "name@version".
func (m *Mod) String() string {
	return m.Descriptor.Name + "@" + m.Descriptor.Version.String()
}

// Validate checks the identity fields of the descriptor.
func (d Descriptor) Validate() error {
	if !nameRegex.MatchString(d.Name) {
		return &InvalidNameError{Value: d.Name}
	}
	if ok, errs := d.Version.IsValid(); !ok {
		return errors.Join(errs...)
	}
	return nil
}

// IsValid returns whether the SemVer is a complete semantic version string,
// and a list of validation errors if it is not.
//
// Shorthands accepted by golang.org/x/mod/semver such as "1" or "1.2" are rejected.
func (s SemVer) IsValid() (bool, []error) {
	str := string(s)
	if str == "" || strings.HasPrefix(str, "v") {
		return false, []error{&InvalidSemVerError{Value: s}}
	}
	v := "v" + str
	if !semver.IsValid(v) || semver.Canonical(v)+semver.Build(v) != v {
		return false, []error{&InvalidSemVerError{Value: s}}
	}
	return true, nil
}

// String returns the string representation of the SemVer.
func (s SemVer) String() string { return string(s) }

// Error implements the error interface.
func (e *NotAModError) Error() string {
	return fmt.Sprintf("directory %q is not a mod: %q does not exist", e.Dir, e.Missing)
}

// Unwrap returns ErrNotAMod for errors.Is() compatibility.
func (e *NotAModError) Unwrap() error { return ErrNotAMod }

// Error implements the error interface.
func (e *IsAModError) Error() string {
	return fmt.Sprintf("directory %q already contains a mod directory at %q", e.Dir, MetadataDirPath(e.Dir))
}

// Unwrap returns ErrIsAMod for errors.Is() compatibility.
func (e *IsAModError) Unwrap() error { return ErrIsAMod }

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid mod name %q: must be 4-64 characters of letters, digits, '_' or '-', starting with a letter and ending with a letter or digit", e.Value)
}

// Unwrap returns ErrInvalidName for errors.Is() compatibility.
func (e *InvalidNameError) Unwrap() error { return ErrInvalidName }

// Error implements the error interface.
func (e *InvalidSemVerError) Error() string {
	return fmt.Sprintf("invalid semver %q", e.Value)
}

// Unwrap returns ErrInvalidSemVer for errors.Is() compatibility.
func (e *InvalidSemVerError) Unwrap() error { return ErrInvalidSemVer }

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
