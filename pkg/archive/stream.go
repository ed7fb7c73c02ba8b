// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/modist-io/modist/pkg/errkind"
)

// errStopScan ends a member scan early without reporting an error.
var errStopScan = errors.New("stop scan")

var errNoMembers = errors.New("archive has no members")

// scanMembers streams the members of the archive at path, auto-detecting its
// compression, and calls fn for each header with a reader over the member's
// content. fn may return errStopScan to end the scan successfully.
//
// A file that cannot be decoded as a tar stream with at least one member is
// reported as errkind.ErrNotAnArchive; a stream that breaks after the first
// member as errkind.ErrBadArchive.
func scanMembers(path string, fn func(hdr *tar.Header, r io.Reader) error) (err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errkind.NotFound(path, err)
		}
		return fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	archiveType, sniffed, err := DetectArchiveType(f)
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", path, err)
	}
	decompressed, err := archiveType.NewReader(sniffed)
	if err != nil {
		return errkind.NotAnArchive(path, err)
	}
	defer func() {
		if closeErr := decompressed.Close(); closeErr != nil && err == nil {
			err = errkind.BadArchive(path, "corrupted archive stream", closeErr)
		}
	}()

	tr := tar.NewReader(decompressed)
	for members := 0; ; members++ {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, tar.ErrInsecurePath) && hdr != nil {
			// Member names are screened by the callers.
			nextErr = nil
		}
		if errors.Is(nextErr, io.EOF) {
			if members == 0 {
				return errkind.NotAnArchive(path, errNoMembers)
			}
			return nil
		}
		if nextErr != nil {
			if members == 0 {
				return errkind.NotAnArchive(path, nextErr)
			}
			return errkind.BadArchive(path, "corrupted archive stream", nextErr)
		}

		if err := fn(hdr, tr); err != nil {
			if errors.Is(err, errStopScan) {
				return nil
			}
			return err
		}
	}
}
