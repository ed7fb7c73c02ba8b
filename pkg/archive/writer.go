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

	"github.com/modist-io/modist/pkg/errkind"
	"github.com/modist-io/modist/pkg/hasher"
	"github.com/modist-io/modist/pkg/manifest"
	"github.com/modist-io/modist/pkg/mod"
)

// CreateOptions configures Create.
type CreateOptions struct {
	// Destination is the archive path. It defaults to BuildArchiveName in the
	// current working directory.
	Destination string
	// ArchiveType selects the compression. It defaults to Default.
	ArchiveType ArchiveType
	// HashType selects the manifest checksum algorithm. It defaults to hasher.Default.
	HashType hasher.HashType
}

// BuildArchiveName returns the default archive file name for m:
// "{name}-{version}.tar.{ext}".
func BuildArchiveName(m *mod.Mod, t ArchiveType) string {
	return fmt.Sprintf("%s-%s.tar.%s", m.Descriptor.Name, m.Descriptor.Version, t.OrDefault())
}

// Create writes an archive of m and returns its path.
//
// The destination must not exist and its parent must be a directory. The
// manifest is built first; artifacts are then written in sorted manifest
// order followed by the manifest. If anything fails after the destination
// was created, the partial file is removed.
func (a *Archiver) Create(ctx context.Context, m *mod.Mod, opts CreateOptions) (_ string, err error) {
	archiveType := opts.ArchiveType.OrDefault()
	if !archiveType.Valid() {
		return "", &UnknownArchiveTypeError{Value: archiveType.String()}
	}

	dest := opts.Destination
	if dest == "" {
		cwd, cwdErr := a.system.Cwd()
		if cwdErr != nil {
			return "", fmt.Errorf("failed to determine working directory: %w", cwdErr)
		}
		dest = filepath.Join(cwd, BuildArchiveName(m, archiveType))
	}
	dest, err = filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", opts.Destination, err)
	}

	a.logger.Info("creating archive", "mod", m.String(), "path", dest,
		"archive_type", archiveType, "hash_type", opts.HashType.OrDefault())

	if _, statErr := os.Lstat(dest); statErr == nil {
		return "", errkind.AlreadyExists(dest)
	}
	if info, statErr := os.Stat(filepath.Dir(dest)); statErr != nil || !info.IsDir() {
		return "", errkind.NotADirectory(filepath.Dir(dest))
	}

	man, err := a.builder().Build(ctx, m, opts.HashType)
	if err != nil {
		return "", err
	}
	if _, reserved := man.Digest(ManifestName); reserved {
		return "", fmt.Errorf("%w: %s", ErrReservedArtifact, ManifestName)
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", errkind.AlreadyExists(dest)
		}
		return "", fmt.Errorf("failed to create archive %s: %w", dest, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		_ = f.Close()
		a.logger.Info("removing partially written archive", "path", dest, "err", err)
		if removeErr := os.Remove(dest); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			a.logger.Warn("failed to remove partially written archive", "path", dest, "err", removeErr)
		}
	}()

	if err := a.writeArchive(ctx, f, archiveType, m, man); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive %s: %w", dest, err)
	}
	committed = true

	a.logger.Info("created archive", "mod", m.String(), "path", dest, "artifacts", len(man.Artifacts))
	return dest, nil
}

func (a *Archiver) writeArchive(ctx context.Context, w io.Writer, t ArchiveType, m *mod.Mod, man *manifest.Manifest) error {
	compressor, err := t.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to initialize %s compression: %w", t, err)
	}
	tw := tar.NewWriter(compressor)

	for _, name := range man.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}
		source := filepath.Join(m.Path, filepath.FromSlash(name))
		a.logger.Debug("adding artifact", "path", source, "artifact", name)
		if err := a.addArtifact(tw, source, name, man); err != nil {
			return err
		}
	}

	data, err := man.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     ManifestName,
		Size:     int64(len(data)),
		Mode:     ManifestMode,
		ModTime:  a.clock(),
		Uname:    a.system.Username(),
	}
	a.logger.Debug("adding manifest", "artifact", ManifestName)
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return fmt.Errorf("failed to finish %s compression: %w", t, err)
	}
	return nil
}

// addArtifact copies source into tw as name. The content is re-hashed while
// it is copied, so an artifact modified after the manifest was built fails
// the write instead of producing an archive that cannot be verified.
func (a *Archiver) addArtifact(tw *tar.Writer, source, name string, man *manifest.Manifest) (err error) {
	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", source, err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat artifact %s: %w", source, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("artifact %s is no longer a regular file", source)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", source, err)
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}

	digests, err := hasher.Hash(io.TeeReader(io.LimitReader(f, info.Size()), tw), []hasher.HashType{man.HashType}, a.hashOptions()...)
	if err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	if want, _ := man.Digest(name); digests[man.HashType] != want {
		return fmt.Errorf("artifact %s changed while the archive was being written", source)
	}
	return nil
}
