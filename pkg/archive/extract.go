// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/modist-io/modist/pkg/errkind"
)

// ExtractOptions configures Extract.
type ExtractOptions struct {
	// SkipVerify disables checksum verification before extraction. The
	// archive is still probed with VerifyIsArchive and member paths are still
	// confined to the output directory.
	SkipVerify bool
}

// Extract writes the content of the archive at path into outputDir and returns
// outputDir.
//
// The archive is fully verified first unless opts.SkipVerify is set.
// Independently of verification every member must resolve inside outputDir,
// including through symlinked directories already present there, and only
// directories and regular files are extracted. File permissions are kept,
// ownership and special mode bits are not; modification times are restored.
func (a *Archiver) Extract(ctx context.Context, path, outputDir string, opts ExtractOptions) (string, error) {
	a.logger.Info("extracting archive", "path", path, "dir", outputDir)
	if info, err := os.Stat(outputDir); err != nil || !info.IsDir() {
		return "", errkind.NotADirectory(outputDir)
	}

	if opts.SkipVerify {
		a.logger.Warn("skipping pre-verification of archive before extracting artifacts, this is potentially very dangerous",
			"path", path)
		if err := a.VerifyIsArchive(path); err != nil {
			return "", err
		}
	} else if err := a.Verify(ctx, path); err != nil {
		return "", err
	}

	root, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", outputDir, err)
	}
	if resolved, evalErr := filepath.EvalSymlinks(root); evalErr == nil {
		root = resolved
	}

	files := 0
	err = scanMembers(path, func(hdr *tar.Header, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if unsafeName(hdr.Name) {
			return errkind.BadArchive(path, fmt.Sprintf("unsafe artifact name %q", hdr.Name), nil)
		}
		target := filepath.Join(root, filepath.FromSlash(hdr.Name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := ensureDir(root, target); err != nil {
				return errkind.BadArchive(path, fmt.Sprintf("cannot extract directory %q", hdr.Name), err)
			}
			return nil
		case tar.TypeReg, tar.TypeRegA: //nolint:staticcheck // TypeRegA is still produced by old writers
			if err := ensureDir(root, filepath.Dir(target)); err != nil {
				return errkind.BadArchive(path, fmt.Sprintf("cannot extract artifact %q", hdr.Name), err)
			}
			a.logger.Debug("extracting artifact", "artifact", hdr.Name, "target", target)
			if err := writeMember(target, r, hdr); err != nil {
				return fmt.Errorf("failed to extract %q: %w", hdr.Name, err)
			}
			files++
			return nil
		default:
			return errkind.BadArchive(path, fmt.Sprintf("unsupported member %q of type %q", hdr.Name, hdr.Typeflag), nil)
		}
	})
	if err != nil {
		return "", err
	}

	a.logger.Info("extracted archive", "path", path, "dir", root, "files", files)
	return outputDir, nil
}

var errEscapesRoot = errors.New("path escapes the output directory")

// ensureDir creates dir and its parents after checking that the deepest
// existing ancestor of dir, with symlinks resolved, lies inside root.
func ensureDir(root, dir string) error {
	existing := dir
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return err
	}
	if !within(root, resolved) {
		return errEscapesRoot
	}
	return os.MkdirAll(dir, 0o755)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// writeMember writes the content of a regular file member to target,
// replacing whatever file was there, and restores its modification time.
func writeMember(target string, r io.Reader, hdr *tar.Header) (err error) {
	if _, statErr := os.Lstat(target); statErr == nil {
		if err := os.Remove(target); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	if err := f.Chmod(fs.FileMode(hdr.Mode).Perm()); err != nil {
		return err
	}
	if !hdr.ModTime.IsZero() {
		if err := os.Chtimes(target, hdr.ModTime, hdr.ModTime); err != nil {
			return err
		}
	}
	return nil
}
