// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	ConfigLoadFailedId Id = iota + 1
	InvalidDirOverrideId
	PermissionDeniedId
	NetworkFailedId
	ChecksumMismatchId
	ChecksumMissingId
	ReplaceFailedId
	SpawnFailedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	// Issue is a catalog entry of Markdown remediation guidance for one
	// class of failure.
	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

//nolint:gochecknoglobals // Swapped out by tests.
var render = glamour.Render

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

// Render returns the entry as terminal-styled text using the named glamour
// style ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

//nolint:gochecknoglobals // Read-only catalog.
var (
	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

viberails could not read or validate its configuration file.

## Things you can try:
- Show where viberails looks for the file:
~~~
$ viberails config path
~~~

- Compare your file with the defaults:
~~~
$ viberails config show
~~~

- Check any VIBERAILS_* environment variables you have set`,
	}

	invalidDirOverrideIssue = &Issue{
		id: InvalidDirOverrideId,
		mdMsg: `
# Invalid directory override!

VIBERAILS_DATA_DIR, VIBERAILS_CONFIG_DIR and VIBERAILS_BIN_DIR must be
absolute paths without any '..' component.

## Things you can try:
- Use a full path, e.g.:
~~~
$ export VIBERAILS_BIN_DIR="$HOME/.local/bin"
~~~

- Or unset the variable to use the default location`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

viberails could not write to its install directory.

## Things you can try:
- Check that you own the directory holding the viberails binary
- Point viberails at a directory you own:
~~~
$ export VIBERAILS_BIN_DIR="$HOME/.local/bin"
~~~

- Retry the upgrade:
~~~
$ viberails upgrade
~~~`,
	}

	networkFailedIssue = &Issue{
		id: NetworkFailedId,
		mdMsg: `
# Could not reach the release server!

The release manifest or the binary could not be downloaded.

## Things you can try:
- Check your network connection and any proxy settings
- Check the configured release server:
~~~
$ viberails config show
~~~

- Retry in a few minutes:
~~~
$ viberails upgrade
~~~`,
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum verification failed!

The downloaded binary does not match the checksum published by the release
server. Nothing was installed.

## Things you can try:
- Retry the upgrade; the download may have been corrupted in transit
- If this keeps happening, do not bypass the check: the download may have
  been tampered with`,
	}

	checksumMissingIssue = &Issue{
		id: ChecksumMissingId,
		mdMsg: `
# No checksum published for this platform!

The release manifest has no checksum for your platform's binary, so
viberails refused to install it.

## Things you can try:
- Retry later; the release may still be publishing
- If you fully trust the release server, you can skip verification once.
  This is unsafe:
~~~
$ VB_ALLOW_MISSING_CHECKSUM=1 viberails upgrade
~~~`,
	}

	replaceFailedIssue = &Issue{
		id: ReplaceFailedId,
		mdMsg: `
# Could not replace the installed binary!

The new version was downloaded and verified, but the installed binary could
not be swapped after several attempts. The previous version is still in place.

## Things you can try:
- Close other viberails processes and editors hooked to viberails
- Check that antivirus software is not holding the file open
- Retry the upgrade:
~~~
$ viberails upgrade
~~~`,
	}

	spawnFailedIssue = &Issue{
		id: SpawnFailedId,
		mdMsg: `
# Could not start the background upgrade!

On Windows a running program cannot replace itself, so viberails copies
itself and upgrades from the copy. Starting that copy failed.

## Things you can try:
- Check that the install directory is writable
- Run the upgrade from a different copy of viberails`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		invalidDirOverrideIssue.Id(): invalidDirOverrideIssue,
		permissionDeniedIssue.Id():   permissionDeniedIssue,
		networkFailedIssue.Id():      networkFailedIssue,
		checksumMismatchIssue.Id():   checksumMismatchIssue,
		checksumMissingIssue.Id():    checksumMissingIssue,
		replaceFailedIssue.Id():      replaceFailedIssue,
		spawnFailedIssue.Id():        spawnFailedIssue,
	}
)

func Values() []*Issue {
	return slices.Collect(maps.Values(issues))
}

func Get(id Id) *Issue {
	return issues[id]
}
