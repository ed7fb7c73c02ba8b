// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/modist-io/modist/pkg/archive"
	"github.com/modist-io/modist/pkg/cueutil"
	"github.com/modist-io/modist/pkg/errkind"
	"github.com/modist-io/modist/pkg/hasher"
	"github.com/modist-io/modist/pkg/mod"
)

// stubRender replaces the glamour renderer for the duration of the test.
// Tests using it must not run in parallel.
func stubRender(t *testing.T) {
	t.Helper()
	original := render
	t.Cleanup(func() { render = original })
	render = func(in string, _ string) (string, error) {
		return in, nil
	}
}

func TestId_Constants(t *testing.T) {
	t.Parallel()

	if NotFoundId != 1 {
		t.Errorf("NotFoundId = %d, want 1", NotFoundId)
	}
	seen := make(map[Id]bool)
	for _, i := range Values() {
		if seen[i.Id()] {
			t.Errorf("duplicate ID: %d", i.Id())
		}
		seen[i.Id()] = true
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{NotFoundId, false, "File not found"},
		{NotADirectoryId, false, "Not a directory"},
		{AlreadyExistsId, false, "Archive already exists"},
		{NotAnArchiveId, false, "Not an archive"},
		{BadArchiveId, false, "failed verification"},
		{EmptyManifestId, false, "Nothing to archive"},
		{NotAModId, false, "Not a mod"},
		{IsAModId, false, "Already a mod"},
		{InvalidDescriptorId, false, "Invalid mod descriptor"},
		{UnknownArchiveTypeId, false, "Unknown archive type"},
		{UnknownHashTypeId, false, "Unknown hash type"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{PermissionDeniedId, false, "Permission denied"},
		{Id(9999), true, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("id=%d", tt.id), func(t *testing.T) {
			t.Parallel()
			issue := Get(tt.id)
			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}
			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain %q", tt.id, tt.contains)
			}
		})
	}
}

func TestValues(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(PermissionDeniedId) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), PermissionDeniedId)
	}
	for i, issue := range values {
		if issue.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, issue.Id(), i+1)
		}
		if issue.MarkdownMsg() == "" {
			t.Errorf("issue %d has empty MarkdownMsg", issue.Id())
		}
	}
}

func TestIssue_LinksAreCloned(t *testing.T) {
	t.Parallel()

	issue := Get(ConfigLoadFailedId)
	links := issue.ExtLinks()
	if len(links) == 0 {
		t.Fatal("ConfigLoadFailed should carry an external link")
	}
	original := links[0]
	links[0] = "modified"
	if issue.ExtLinks()[0] != original {
		t.Error("ExtLinks() should return a clone")
	}
	if issue.DocLinks() != nil {
		t.Errorf("DocLinks() = %v, want nil", issue.DocLinks())
	}
}

func TestIssue_Render(t *testing.T) {
	stubRender(t)

	rendered, err := Get(BadArchiveId).Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "not** extracted") {
		t.Errorf("Render() output should contain the issue text, got %q", rendered)
	}
	if strings.Contains(rendered, "See also") {
		t.Error("Render() without links should not contain 'See also'")
	}

	withLinks, err := Get(InvalidDescriptorId).Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(withLinks, "See also") || !strings.Contains(withLinks, "https://semver.org") {
		t.Errorf("Render() with links should list them, got %q", withLinks)
	}
}

func TestIssue_RenderGlamour(t *testing.T) {
	t.Parallel()

	rendered, err := Get(NotAnArchiveId).Render("notty")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "Not an archive") {
		t.Errorf("rendered output = %q", rendered)
	}
}

func TestForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Id
	}{
		{"bad archive", errkind.BadArchive("/a.tar.xz", "checksum mismatch", nil), BadArchiveId},
		{"wrapped bad archive", fmt.Errorf("extract: %w", errkind.BadArchive("/a", "x", nil)), BadArchiveId},
		{"not an archive", errkind.NotAnArchive("/a", nil), NotAnArchiveId},
		{"already exists", errkind.AlreadyExists("/a"), AlreadyExistsId},
		{"empty manifest", errkind.EmptyManifest(), EmptyManifestId},
		{"not a directory", errkind.NotADirectory("/a"), NotADirectoryId},
		{"not found", errkind.NotFound("/a", fs.ErrNotExist), NotFoundId},
		{"not a mod", &mod.NotAModError{Dir: "/a", Missing: ".mod"}, NotAModId},
		{"is a mod", &mod.IsAModError{Dir: "/a"}, IsAModId},
		{"invalid name", &mod.InvalidNameError{Value: "x"}, InvalidDescriptorId},
		{"invalid semver", &mod.InvalidSemVerError{Value: "v1"}, InvalidDescriptorId},
		{"schema violation", fmt.Errorf("load: %w", cueutil.ErrValidation), InvalidDescriptorId},
		{"unknown archive type", &archive.UnknownArchiveTypeError{Value: "rar"}, UnknownArchiveTypeId},
		{"unknown hash type", &hasher.UnknownHashTypeError{Value: "crc"}, UnknownHashTypeId},
		{"permission", &fs.PathError{Op: "open", Path: "/a", Err: fs.ErrPermission}, PermissionDeniedId},
		{"config", NewErrorContext().WithOperation("load configuration").Wrap(errors.New("bad")).BuildError(), ConfigLoadFailedId},
		{
			"config naming its issue",
			NewErrorContext().WithOperation("load configuration").WithIssue(PermissionDeniedId).Wrap(errors.New("bad")).BuildError(),
			PermissionDeniedId,
		},
		{
			"config wrapping a specific kind",
			NewErrorContext().WithOperation("load configuration").Wrap(&hasher.UnknownHashTypeError{Value: "crc"}).BuildError(),
			UnknownHashTypeId,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ForError(tt.err)
			if got == nil {
				t.Fatalf("ForError(%v) = nil, want %d", tt.err, tt.want)
			}
			if got.Id() != tt.want {
				t.Errorf("ForError(%v) = %d, want %d", tt.err, got.Id(), tt.want)
			}
		})
	}

	if got := ForError(errors.New("plain")); got != nil {
		t.Errorf("ForError(plain) = %d, want nil", got.Id())
	}
	if got := ForError(nil); got != nil {
		t.Errorf("ForError(nil) = %d, want nil", got.Id())
	}
}
