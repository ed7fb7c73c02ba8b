// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"io/fs"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"

	"github.com/modist-io/modist/pkg/archive"
	"github.com/modist-io/modist/pkg/cueutil"
	"github.com/modist-io/modist/pkg/errkind"
	"github.com/modist-io/modist/pkg/hasher"
	"github.com/modist-io/modist/pkg/mod"
)

type Id int

const (
	NotFoundId Id = iota + 1
	NotADirectoryId
	AlreadyExistsId
	NotAnArchiveId
	BadArchiveId
	EmptyManifestId
	NotAModId
	IsAModId
	InvalidDescriptorId
	UnknownArchiveTypeId
	UnknownHashTypeId
	ConfigLoadFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	notFoundIssue = &Issue{
		id: NotFoundId,
		mdMsg: `
# File not found!

The path you gave does not exist or is not a regular file.

## Things you can try:
- Check the path for typos
- Use an absolute path if you are not sure about the working directory
- List the directory to see what is actually there:
~~~
$ ls -l /path/to/archives
~~~`,
	}

	notADirectoryIssue = &Issue{
		id: NotADirectoryId,
		mdMsg: `
# Not a directory!

A mod root, an output directory or the parent of an archive destination must
be an existing directory.

## Things you can try:
- Create the directory first:
~~~
$ mkdir -p /path/to/output
~~~

- Make sure the path does not point at a regular file`,
	}

	alreadyExistsIssue = &Issue{
		id: AlreadyExistsId,
		mdMsg: `
# Archive already exists!

modist never overwrites an existing file when creating an archive.

## Things you can try:
- Remove or rename the existing archive
- Choose another destination
- Bump the version in ` + "`.mod/mod.json`" + ` so the default archive name changes`,
	}

	notAnArchiveIssue = &Issue{
		id: NotAnArchiveId,
		mdMsg: `
# Not an archive!

The file could not be read as a tar stream. Supported compressions are xz,
gzip, bzip2, zstd and plain tar; the compression is detected from the file
content, not its name.

## Things you can try:
- Check that the download or copy of the file completed
- Inspect the file type:
~~~
$ file archive.tar.xz
~~~`,
	}

	badArchiveIssue = &Issue{
		id: BadArchiveId,
		mdMsg: `
# Archive failed verification!

The file is an archive, but it is not a valid mod archive or its content does
not match its manifest. The archive was **not** extracted.

## Common causes:
- The archive was modified after it was created (checksum mismatch)
- Artifacts were added to or removed from the archive
- A member name points outside of the extraction directory
- The archive is missing ` + "`.mod/mod.json`" + ` or ` + "`.mod/manifest.json`" + `

## Things you can try:
- Download or copy the archive again from a trusted source
- Ask the mod author to rebuild the archive`,
	}

	emptyManifestIssue = &Issue{
		id: EmptyManifestId,
		mdMsg: `
# Nothing to archive!

No file of the mod matched its include patterns.

## Things you can try:
- Check the ` + "`include`" + ` and ` + "`exclude`" + ` patterns in ` + "`.mod/mod.json`" + `
- Patterns match at any depth; anchor them with a leading ` + "`/`" + ` to match from the mod root only

## Example descriptor:
~~~json
{
  "name": "my-mod",
  "version": "1.0.0",
  "include": ["*.esp", "textures/**"]
}
~~~`,
	}

	notAModIssue = &Issue{
		id: NotAModId,
		mdMsg: `
# Not a mod!

The directory has no ` + "`.mod/mod.json`" + ` descriptor.

## Things you can try:
- Point modist at the mod's root directory, the one that contains ` + "`.mod`" + `
- Create a descriptor for the directory first`,
	}

	isAModIssue = &Issue{
		id: IsAModId,
		mdMsg: `
# Already a mod!

The directory already has a ` + "`.mod`" + ` metadata directory.

## Things you can try:
- Edit the existing ` + "`.mod/mod.json`" + ` instead
- Remove the ` + "`.mod`" + ` directory if you really want to start over`,
	}

	invalidDescriptorIssue = &Issue{
		id: InvalidDescriptorId,
		mdMsg: `
# Invalid mod descriptor!

` + "`.mod/mod.json`" + ` does not match the descriptor schema.

## Rules:
- **name**: 4 to 64 characters, starts with a letter, ends with a letter or digit,
  only letters, digits, underscores and dashes
- **version**: a full semantic version without a leading "v", e.g. ` + "`1.2.0`" + ` or ` + "`2.0.0-beta.1`" + `
- **include** / **exclude**: lists of glob patterns`,
		extLinks: []HttpLink{"https://semver.org"},
	}

	unknownArchiveTypeIssue = &Issue{
		id: UnknownArchiveTypeId,
		mdMsg: `
# Unknown archive type!

## Supported archive types:
- **xz** (default)
- **gz**
- **bz2**
- **zst**
- **tar** (uncompressed)`,
	}

	unknownHashTypeIssue = &Issue{
		id: UnknownHashTypeId,
		mdMsg: `
# Unknown hash type!

## Supported hash types:
- **xxhash** (default)
- **md5**, **sha1** (legacy)
- **sha256**, **sha512**
- **blake2b**
- **sha3_256**`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the expected schema.

## Things you can try:
- Check the file for CUE syntax errors
- Remove unknown keys; the schema is closed
- Environment variables prefixed with ` + "`MODIST_`" + ` override file values, e.g.
~~~
$ MODIST_HASH_TYPE=sha256 MODIST_MAX_WORKERS=4 modist ...
~~~

## Example config.cue:
~~~cue
archive_type: "xz"
hash_type:    "xxhash"
max_workers:  4
log: level:   "info"
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to read or write one of the paths involved.

## Things you can try:
- Check file and directory permissions
- Extract into a directory you own`,
	}

	issues = map[Id]*Issue{
		notFoundIssue.Id():           notFoundIssue,
		notADirectoryIssue.Id():      notADirectoryIssue,
		alreadyExistsIssue.Id():      alreadyExistsIssue,
		notAnArchiveIssue.Id():       notAnArchiveIssue,
		badArchiveIssue.Id():         badArchiveIssue,
		emptyManifestIssue.Id():      emptyManifestIssue,
		notAModIssue.Id():            notAModIssue,
		isAModIssue.Id():             isAModIssue,
		invalidDescriptorIssue.Id():  invalidDescriptorIssue,
		unknownArchiveTypeIssue.Id(): unknownArchiveTypeIssue,
		unknownHashTypeIssue.Id():    unknownHashTypeIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		permissionDeniedIssue.Id():   permissionDeniedIssue,
	}

	// kinds maps error sentinels to issues, most specific first.
	kinds = []struct {
		target error
		id     Id
	}{
		{errkind.ErrBadArchive, BadArchiveId},
		{errkind.ErrNotAnArchive, NotAnArchiveId},
		{errkind.ErrAlreadyExists, AlreadyExistsId},
		{errkind.ErrEmptyManifest, EmptyManifestId},
		{errkind.ErrNotADirectory, NotADirectoryId},
		{errkind.ErrNotFound, NotFoundId},
		{mod.ErrNotAMod, NotAModId},
		{mod.ErrIsAMod, IsAModId},
		{mod.ErrInvalidName, InvalidDescriptorId},
		{mod.ErrInvalidSemVer, InvalidDescriptorId},
		{archive.ErrUnknownArchiveType, UnknownArchiveTypeId},
		{hasher.ErrUnknownHashType, UnknownHashTypeId},
		{fs.ErrPermission, PermissionDeniedId},
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}

// ForError returns the issue explaining err, or nil if there is none.
//
// Configuration failures are reported as ActionableError and map to the
// issue they name, or ConfigLoadFailedId, unless a more specific kind is
// wrapped. Schema
// violations of a mod descriptor map to InvalidDescriptorId.
func ForError(err error) *Issue {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return issues[k.id]
		}
	}

	var actionable *ActionableError
	if errors.As(err, &actionable) {
		if page, ok := issues[actionable.Issue]; ok {
			return page
		}
		return issues[ConfigLoadFailedId]
	}
	if errors.Is(err, cueutil.ErrValidation) || errors.Is(err, cueutil.ErrFileTooLarge) {
		return issues[InvalidDescriptorId]
	}
	return nil
}
