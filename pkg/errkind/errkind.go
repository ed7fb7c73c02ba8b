// SPDX-License-Identifier: MPL-2.0

// Package errkind defines the error taxonomy shared by the archive pipeline.
//
// Every failure surfaced by the hasher, walker, manifest and archive packages
// carries one of the sentinel kinds below, so callers can branch with
// errors.Is without caring which layer produced the error:
//
//	if errors.Is(err, errkind.ErrBadArchive) {
//		// tampered, incomplete or unsafe archive
//	}
//
// The concrete value is always an *Error, which also names the path involved
// and, for bad archives, a human-readable reason.
package errkind

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced file or archive does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotADirectory is returned when an expected directory is missing or is not a directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrAlreadyExists is returned when an archive destination is already occupied.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotAnArchive is returned when a file is not a readable (compressed) tar stream.
	ErrNotAnArchive = errors.New("not an archive")
	// ErrBadArchive is returned when a readable tar stream violates the mod archive
	// invariants (structure, completeness, path safety or checksums).
	ErrBadArchive = errors.New("bad archive")
	// ErrEmptyManifest is returned when a manifest is constructed without artifacts.
	ErrEmptyManifest = errors.New("empty manifest")
)

// Error is the concrete error type for every kind in the taxonomy.
type Error struct {
	// Kind is one of the sentinel errors of this package.
	Kind error
	// Path is the file, directory, archive or artifact involved (optional).
	Path string
	// Reason is a human-readable explanation (optional).
	Reason string
	// Err is the underlying cause (optional).
	Err error
}

// Error implements the error interface.
// Format: <kind> "<path>": <reason>: <cause>
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Kind != nil {
		sb.WriteString(e.Kind.Error())
	} else {
		sb.WriteString("error")
	}
	if e.Path != "" {
		fmt.Fprintf(&sb, " %q", e.Path)
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NotFound reports that path does not exist.
func NotFound(path string, cause error) *Error {
	return &Error{Kind: ErrNotFound, Path: path, Reason: "no such file exists", Err: cause}
}

// NotADirectory reports that path is missing or is not a directory.
func NotADirectory(path string) *Error {
	return &Error{Kind: ErrNotADirectory, Path: path, Reason: "no such directory exists"}
}

// AlreadyExists reports that path is already occupied.
func AlreadyExists(path string) *Error {
	return &Error{Kind: ErrAlreadyExists, Path: path, Reason: "file already exists"}
}

// NotAnArchive reports that path cannot be read as a tar stream.
func NotAnArchive(path string, cause error) *Error {
	return &Error{Kind: ErrNotAnArchive, Path: path, Reason: "file is not an archive", Err: cause}
}

// BadArchive reports that the archive at path violates a mod archive invariant.
func BadArchive(path, reason string, cause error) *Error {
	return &Error{Kind: ErrBadArchive, Path: path, Reason: reason, Err: cause}
}

// EmptyManifest reports a manifest built without any artifacts.
func EmptyManifest() *Error {
	return &Error{Kind: ErrEmptyManifest, Reason: "requires at least one artifact"}
}

// Reason returns the reason of the first *Error in err's chain, or "".
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
