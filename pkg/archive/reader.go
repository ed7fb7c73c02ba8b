// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/modist-io/modist/pkg/errkind"
	"github.com/modist-io/modist/pkg/hasher"
	"github.com/modist-io/modist/pkg/manifest"
	"github.com/modist-io/modist/pkg/mod"
)

// requiredMembers must be present in every mod archive.
var requiredMembers = []string{ManifestName, mod.MetadataDirName + "/" + mod.ConfigName}

// VerifyIsArchive checks that path is an existing, readable archive holding
// the members every mod archive has. It does not check checksums.
//
// Outcomes are cached when the Archiver has a ProbeCache, so repeated probes
// of an unchanged file are cheap. Repeated calls always agree.
func (a *Archiver) VerifyIsArchive(path string) error {
	abs, info, err := statArchive(path)
	if err != nil {
		return err
	}
	if result, ok := a.cachedProbe(abs, info); ok {
		return result
	}

	a.logger.Info("verifying file is a mod archive", "path", abs)
	_, result := a.summarize(abs, info)
	return result
}

// ReadManifest returns the header and the parsed content of the manifest
// member of the archive at path. The archive is probed and the manifest read
// in the same pass over the stream.
func (a *Archiver) ReadManifest(path string) (*tar.Header, *manifest.Manifest, error) {
	abs, info, err := statArchive(path)
	if err != nil {
		return nil, nil, err
	}
	if result, ok := a.cachedProbe(abs, info); ok && result != nil {
		return nil, nil, result
	}

	s, err := a.summarize(abs, info)
	if err != nil {
		return nil, nil, err
	}
	if s.manifestErr != nil {
		return nil, nil, s.manifestErr
	}

	a.logger.Debug("reading manifest", "path", abs, "size", s.manifest.Size)
	man, err := manifest.Parse(s.data)
	if err != nil {
		return nil, nil, errkind.BadArchive(abs, "failed to parse manifest", err)
	}
	return s.manifest, man, nil
}

// memberSummary is what one scan learns about the mod members of an archive.
type memberSummary struct {
	found    map[string]bool
	manifest *tar.Header
	data     []byte
	// manifestErr is the first problem with the manifest member. It only
	// matters once the archive is known to hold every required member.
	manifestErr error
}

func statArchive(path string) (string, fs.FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, errkind.NotFound(abs, err)
		}
		return "", nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, errkind.NotFound(abs, nil)
	}
	return abs, info, nil
}

func (a *Archiver) cachedProbe(path string, info fs.FileInfo) (error, bool) {
	if a.probes == nil {
		return nil, false
	}
	result, ok := a.probes.lookup(path, info)
	if ok {
		a.logger.Debug("archive probe cache hit", "path", path)
	}
	return result, ok
}

// summarize scans the archive at path once, recording which members exist
// and reading the manifest. The returned error is the probe outcome, which
// is cached when the Archiver has a ProbeCache.
func (a *Archiver) summarize(path string, info fs.FileInfo) (*memberSummary, error) {
	s := &memberSummary{found: make(map[string]bool, len(requiredMembers))}
	result := scanMembers(path, func(hdr *tar.Header, r io.Reader) error {
		s.found[hdr.Name] = true
		if hdr.Name == ManifestName && s.manifestErr == nil {
			s.readManifest(path, hdr, r)
		}
		return nil
	})
	if result == nil {
		for _, name := range requiredMembers {
			if !s.found[name] {
				result = errkind.BadArchive(path, "does not appear to be a mod archive", nil)
				break
			}
		}
	}
	if a.probes != nil {
		a.probes.store(path, info, result)
	}
	return s, result
}

func (s *memberSummary) readManifest(path string, hdr *tar.Header, r io.Reader) {
	switch {
	case s.manifest != nil:
		s.manifestErr = errkind.BadArchive(path, "duplicate manifest member", nil)
	case !hdr.FileInfo().Mode().IsRegular():
		s.manifestErr = errkind.BadArchive(path, "failed to extract manifest: not a regular file", nil)
	case hdr.Size > MaxManifestSize:
		s.manifestErr = errkind.BadArchive(path, fmt.Sprintf("manifest exceeds %d bytes", MaxManifestSize), nil)
	default:
		content, err := io.ReadAll(io.LimitReader(r, MaxManifestSize+1))
		if err != nil {
			s.manifestErr = errkind.BadArchive(path, "failed to extract manifest", err)
			return
		}
		s.manifest, s.data = hdr, content
	}
}

// Verify checks that the archive at path is a valid, untampered mod archive:
// every member other than the manifest is a regular file with a safe name
// that the manifest lists exactly once with a matching checksum, every
// manifest entry is present and the manifest is the last member.
//
// The archive is read twice: once for the manifest, which is the last
// member, and once to check the artifacts against it. Artifacts no larger
// than the buffer limit are hashed on the worker pool while the stream
// continues; larger artifacts are hashed as they are read.
func (a *Archiver) Verify(ctx context.Context, path string) error {
	a.logger.Info("verifying archive", "path", path)
	_, man, err := a.ReadManifest(path)
	if err != nil {
		return err
	}

	for _, name := range man.Names() {
		if unsafeName(name) {
			return errkind.BadArchive(path, fmt.Sprintf("unsafe artifact name %q in manifest", name), nil)
		}
	}

	types := []hasher.HashType{man.HashType}
	check := func(name string, r io.Reader) error {
		digests, err := hasher.Hash(r, types, a.hashOptions()...)
		if err != nil {
			return errkind.BadArchive(path, fmt.Sprintf("failed to read artifact %q", name), err)
		}
		got, want := digests[man.HashType], man.Artifacts[name]
		a.logger.Debug("checking artifact checksum", "artifact", name, "checksum", got, "expected", want)
		if got != want {
			return errkind.BadArchive(path, fmt.Sprintf("checksum mismatch for artifact %q: got %s, expected %s", name, got, want), nil)
		}
		return nil
	}

	g, gctx := a.pool().Group(ctx)
	seen := make(map[string]bool, len(man.Artifacts))
	manifestSeen := false

	scanErr := scanMembers(path, func(hdr *tar.Header, r io.Reader) error {
		if gctx.Err() != nil {
			return errStopScan
		}

		name := hdr.Name
		if name == ManifestName {
			manifestSeen = true
			return nil
		}
		if manifestSeen {
			return errkind.BadArchive(path, fmt.Sprintf("artifact %q follows the manifest", name), nil)
		}
		if unsafeName(name) {
			return errkind.BadArchive(path, fmt.Sprintf("unsafe artifact name %q", name), nil)
		}
		if _, ok := man.Artifacts[name]; !ok {
			return errkind.BadArchive(path, fmt.Sprintf("unexpected artifact %q", name), nil)
		}
		if seen[name] {
			return errkind.BadArchive(path, fmt.Sprintf("duplicate artifact %q", name), nil)
		}
		seen[name] = true
		if !hdr.FileInfo().Mode().IsRegular() {
			return errkind.BadArchive(path, fmt.Sprintf("artifact %q is not a regular file", name), nil)
		}

		a.logger.Debug("verifying artifact", "path", path, "artifact", name)
		if hdr.Size > a.bufferLimit {
			return check(name, r)
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return errkind.BadArchive(path, fmt.Sprintf("failed to read artifact %q", name), err)
		}
		g.Go(func() error {
			return check(name, bytes.NewReader(content))
		})
		return nil
	})
	waitErr := g.Wait()

	if scanErr != nil {
		return scanErr
	}
	if waitErr != nil {
		return waitErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, name := range man.Names() {
		if !seen[name] {
			return errkind.BadArchive(path, fmt.Sprintf("missing artifact %q", name), nil)
		}
	}

	a.logger.Info("archive appears to be valid", "path", path, "artifacts", len(seen))
	return nil
}

// unsafeName reports whether an archive member name could resolve outside of
// the extraction directory: absolute paths, parent directory segments,
// Windows drive letters, backslashes and NUL bytes are all rejected.
func unsafeName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.ContainsAny(name, "\\\x00") {
		return true
	}
	if len(name) >= 2 && name[1] == ':' {
		return true
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return true
		}
	}
	return !filepath.IsLocal(filepath.FromSlash(name))
}
