// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modist-io/modist/internal/testutil"
	"github.com/modist-io/modist/pkg/mod"
	"github.com/modist-io/modist/pkg/sysctx"
)

var fixedTime = time.Date(2020, 4, 1, 12, 0, 0, 0, time.UTC)

type member struct {
	hdr  *tar.Header
	data []byte
}

func newArchiver(t testing.TB, opts ...Option) *Archiver {
	t.Helper()
	clock := testutil.NewFakeClock(fixedTime)
	base := []Option{
		WithLogger(log.New(io.Discard)),
		WithSystem(sysctx.Static{Dir: t.TempDir(), User: "builder", CPUs: 4}),
		WithClock(clock.Now),
	}
	return New(append(base, opts...)...)
}

func createArchive(t testing.TB, a *Archiver, m *mod.Mod, at ArchiveType) string {
	t.Helper()
	dest := filepath.Join(t.TempDir(), BuildArchiveName(m, at))
	path, err := a.Create(t.Context(), m, CreateOptions{Destination: dest, ArchiveType: at})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return path
}

// readMembers returns every member of the archive at path and its compression.
func readMembers(t testing.TB, path string) ([]member, ArchiveType) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer testutil.DeferClose(t, f)()

	at, r, err := DetectArchiveType(f)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := at.NewReader(r)
	if err != nil {
		t.Fatal(err)
	}
	defer testutil.DeferClose(t, dec)()

	var members []member
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return members, at
		}
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			t.Fatal(err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		members = append(members, member{hdr: hdr, data: data})
	}
}

// writeMembers replaces the archive at path with members, compressed with at.
func writeMembers(t testing.TB, path string, at ArchiveType, members []member) {
	t.Helper()
	var buf bytes.Buffer
	enc, err := at.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(enc)
	for _, m := range members {
		hdr := *m.hdr
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(m.data))
		} else {
			hdr.Size = 0
		}
		if err := tw.WriteHeader(&hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Size > 0 {
			if _, err := tw.Write(m.data); err != nil {
				t.Fatal(err)
			}
		}
	}
	testutil.MustClose(t, tw)
	testutil.MustClose(t, enc)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// rewriteArchive rewrites the archive at path through edit, keeping its compression.
func rewriteArchive(t testing.TB, path string, edit func([]member) []member) {
	t.Helper()
	members, at := readMembers(t, path)
	writeMembers(t, path, at, edit(members))
}

func regular(name, content string) member {
	return member{
		hdr:  &tar.Header{Typeflag: tar.TypeReg, Name: name, Mode: 0o644, ModTime: fixedTime},
		data: []byte(content),
	}
}

func indexOf(members []member, name string) int {
	for i, m := range members {
		if m.hdr.Name == name {
			return i
		}
	}
	return -1
}
