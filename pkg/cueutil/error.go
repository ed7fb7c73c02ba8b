// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

var (
	// ErrValidation is the sentinel error wrapped by ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrFileTooLarge is the sentinel error wrapped by FileTooLargeError.
	ErrFileTooLarge = errors.New("file too large")
)

type (
	// FieldError is a single problem reported against a document.
	FieldError struct {
		// Path is the JSON path to the invalid value (e.g., "include[0]").
		// Empty for document-level problems such as syntax errors.
		Path string
		// Message is the validation error message.
		Message string
	}

	// ValidationError lists every problem CUE found in a document.
	ValidationError struct {
		// FilePath is the file being validated.
		FilePath string
		// Fields holds one entry per reported problem.
		Fields []FieldError
	}

	// FileTooLargeError is returned when a document exceeds the size limit.
	FileTooLargeError struct {
		Filename string
		Size     int64
		Max      int64
	}
)

// String renders the field error as "<path>: <message>".
func (f FieldError) String() string {
	if f.Path == "" {
		return f.Message
	}
	return f.Path + ": " + f.Message
}

// Error implements the error interface.
//
// Format: <file-path>: <json-path>: <message>, or one indented line per
// problem when there are several.
func (e *ValidationError) Error() string {
	switch len(e.Fields) {
	case 0:
		return fmt.Sprintf("%s: %s", e.FilePath, ErrValidation)
	case 1:
		return fmt.Sprintf("%s: %s", e.FilePath, e.Fields[0])
	}
	lines := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		lines[i] = f.String()
	}
	return fmt.Sprintf("%s: %s:\n  %s", e.FilePath, ErrValidation, strings.Join(lines, "\n  "))
}

// Unwrap returns ErrValidation for errors.Is() compatibility.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Error implements the error interface.
func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s: file size %d bytes exceeds maximum %d bytes", e.Filename, e.Size, e.Max)
}

// Unwrap returns ErrFileTooLarge for errors.Is() compatibility.
func (e *FileTooLargeError) Unwrap() error { return ErrFileTooLarge }

// FormatError converts a CUE error into a *ValidationError with JSON path
// prefixes. Non-CUE errors are wrapped with the file path and returned as-is.
//
// Examples:
//   - mod.json: name: invalid value "x" (does not match =~"^[a-zA-Z]...")
//   - config.cue: max_workers: conflicting values "four" and int
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	cueErrs := cueerrors.Errors(err)
	if len(cueErrs) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	verr := &ValidationError{FilePath: filePath}
	for _, e := range cueErrs {
		pathStr := formatPath(cueerrors.Path(e))
		msg := e.Error()

		// CUE sometimes includes the path in the message itself
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimPrefix(msg, pathStr)
			msg = strings.TrimPrefix(msg, ":")
			msg = strings.TrimSpace(msg)
		}
		verr.Fields = append(verr.Fields, FieldError{Path: pathStr, Message: msg})
	}
	return verr
}

// formatPath converts a CUE error path to JSON-path notation for user-facing messages.
// CUE reports paths as flat segments (["include", "0"]); numeric segments are
// rendered as indices ("include[0]").
func formatPath(path []string) string {
	if len(path) == 0 {
		return ""
	}

	var result strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			result.WriteString("[")
			result.WriteString(part)
			result.WriteString("]")
			continue
		}
		if i > 0 {
			result.WriteString(".")
		}
		result.WriteString(part)
	}
	return result.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize verifies that data does not exceed the specified maximum size.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return &FileTooLargeError{Filename: filename, Size: int64(len(data)), Max: maxSize}
	}
	return nil
}
