// SPDX-License-Identifier: MPL-2.0

// Package walker enumerates the files of a directory tree that match a set of
// include and exclude glob patterns.
//
// Patterns use doublestar syntax (`**`, `{a,b}`, `[abc]`, `?`) and are matched
// case-sensitively against the slash-separated path relative to the walk
// root. Like a recursive glob, a pattern matches at any depth: `*.go` selects
// every Go file in the tree, `docs/*.md` selects Markdown files inside any
// `docs` directory. A leading slash anchors a pattern at the walk root, so
// `/docs/*.md` only selects the top-level `docs` directory.
package walker

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/modist-io/modist/pkg/errkind"
)

// MatchAll is the include pattern used when none are supplied.
const MatchAll = "*"

// ErrBadPattern is the sentinel error wrapped by BadPatternError.
var ErrBadPattern = errors.New("invalid glob pattern")

type (
	// BadPatternError is returned when an include or exclude pattern is not
	// valid doublestar syntax.
	BadPatternError struct {
		Pattern string
	}

	// Option configures a walk.
	Option func(*options)

	options struct {
		logger   *log.Logger
		skipDirs map[string]struct{}
	}
)

// Error implements the error interface.
func (e *BadPatternError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q", e.Pattern)
}

// Unwrap returns ErrBadPattern for errors.Is() compatibility.
func (e *BadPatternError) Unwrap() error { return ErrBadPattern }

// WithLogger sets the logger receiving the walk's warnings and debug output.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSkipDir prunes the top-level directory name from the walk.
func WithSkipDir(name string) Option {
	return func(o *options) {
		o.skipDirs[filepath.ToSlash(filepath.Clean(name))] = struct{}{}
	}
}

// Walk returns the absolute paths of regular files under root that match at
// least one include pattern and no exclude pattern.
//
// Directories are traversed but never yielded; symbolic links are neither
// followed nor yielded. The returned sequence is lazy and restartable: each
// range over it walks the tree again. If include is empty every file matches
// and a warning is logged, since walking a large tree can be expensive.
func Walk(root string, include, exclude []string, opts ...Option) (iter.Seq2[string, error], error) {
	o := options{logger: log.Default(), skipDirs: make(map[string]struct{})}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errkind.NotADirectory(root)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	if resolved, evalErr := filepath.EvalSymlinks(absRoot); evalErr == nil {
		absRoot = resolved
	}

	if len(include) == 0 {
		include = []string{MatchAll}
		o.logger.Warn("no include patterns provided for directory walk, defaulting to match everything which may be expensive",
			"dir", absRoot, "include", include)
	}

	includes, err := compilePatterns(include)
	if err != nil {
		return nil, err
	}
	excludes, err := compilePatterns(exclude)
	if err != nil {
		return nil, err
	}

	return func(yield func(string, error) bool) {
		walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			rel, relErr := filepath.Rel(absRoot, path)
			if relErr != nil {
				return fmt.Errorf("failed to get relative path: %w", relErr)
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if _, skip := o.skipDirs[rel]; skip {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if !matchAny(includes, rel) || matchAny(excludes, rel) {
				return nil
			}

			o.logger.Debug("yielding path", "path", path)
			if !yield(path, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil {
			yield("", fmt.Errorf("failed to walk %s: %w", absRoot, walkErr))
		}
	}, nil
}

// Collect drains a walk into a slice, stopping at the first error.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var paths []string
	for path, err := range seq {
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// compilePatterns validates patterns and anchors them at any depth.
func compilePatterns(patterns []string) ([]string, error) {
	compiled := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" || !doublestar.ValidatePattern(p) {
			return nil, &BadPatternError{Pattern: p}
		}
		if anchored, ok := strings.CutPrefix(p, "/"); ok {
			compiled = append(compiled, anchored)
			continue
		}
		if p != "**" && !strings.HasPrefix(p, "**/") {
			p = "**/" + p
		}
		compiled = append(compiled, p)
	}
	return compiled, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		// Patterns are validated up front, so Match cannot fail here.
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
