// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	ManifestNotFoundId Id = iota + 1
	ManifestParseErrorId
	ConfigLoadFailedId
	ResolutionFailedId
	PackageNotFoundId
	DownloadFailedId
	ChecksumMismatchId
	LocalChangesId
	VcsNotFoundId
	DirectoryNotEmptyId
	HookBlockedId
	PermissionDeniedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Renderer interface {
		Render(in string, stylePath string) (string, error)
	}

	// Issue is a catalog entry of Markdown guidance for a class of failure.
	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
		extLinks []HttpLink // external links that might be useful for the user
	}
)

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

// Render formats the issue for the terminal with the glamour style at
// stylePath ("dark", "light", "auto" or a JSON style file).
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

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No pakt.json found!

pakt reads the project manifest from the current directory.

## Things you can try:
- Change into the project directory, or pass it explicitly:
~~~
$ pakt install --working-dir /path/to/project
~~~

- Start a new project from a published skeleton:
~~~
$ pakt create-project acme/skeleton my-app
~~~

## Minimal manifest:
~~~json
{
    "name": "acme/app",
    "require": {
        "acme/core": "^1.0"
    }
}
~~~`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Failed to parse pakt.json!

The manifest is not valid JSON or does not match the expected structure.

## Common issues:
- Trailing commas or missing quotes
- A package name that is not "vendor/name" in lowercase
- A version constraint pakt cannot parse, such as "^^1.0"
- Repositories without a "type" or "url"

## Things you can try:
- Check the field named in the error message above
- Run with verbose mode for more details:
~~~
$ pakt --verbose install
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load the pakt configuration!

The user configuration file could not be read or does not match the schema.

## Things you can try:
- Print the configuration pakt would use:
~~~
$ pakt config show
~~~

- Write a fresh template next to the broken file and compare:
~~~
$ pakt config init --config-dir /tmp/pakt
~~~`,
	}

	resolutionFailedIssue = &Issue{
		id: ResolutionFailedId,
		mdMsg: `
# Your requirements could not be resolved!

No set of package versions satisfies every constraint at once. Nothing on
disk was changed.

## Things you can try:
- Read the conflict above: it names the package and the constraints that clash
- Relax a constraint in pakt.json (for example "^1.0" instead of "1.0.3")
- Allow less stable versions when you depend on a pre-release:
~~~json
"minimum-stability": "beta",
"prefer-stable": true
~~~

- Update only the packages involved instead of everything:
~~~
$ pakt update acme/core acme/widgets
~~~`,
	}

	packageNotFoundIssue = &Issue{
		id: PackageNotFoundId,
		mdMsg: `
# Package not found!

None of the configured repositories offers the requested package and version.

## Things you can try:
- Check the package name for typos
- List what a repository provides:
~~~
$ pakt show --available
~~~

- Add the repository that hosts the package to pakt.json or your config`,
	}

	downloadFailedIssue = &Issue{
		id: DownloadFailedId,
		mdMsg: `
# Download failed!

A package archive or checkout could not be fetched.

## Things you can try:
- Check your network connection and proxy settings
- Raise the timeout in your config:
~~~cue
http: timeout: "2m"
~~~

- Install from source instead of archives:
~~~
$ pakt install --prefer-source
~~~`,
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum mismatch!

The downloaded archive does not match the checksum published for it. The file
was discarded and nothing was installed.

## Things you can try:
- Retry; a proxy or mirror may have served a truncated file
- Ask the repository maintainer to republish the package metadata`,
	}

	localChangesIssue = &Issue{
		id: LocalChangesId,
		mdMsg: `
# The package has local changes!

pakt refuses to update or remove a working copy with uncommitted changes so
your work is never lost.

## Things you can try:
- Inspect the changes:
~~~
$ pakt status --verbose
~~~

- Commit, stash or discard them inside the package directory and retry`,
	}

	vcsNotFoundIssue = &Issue{
		id: VcsNotFoundId,
		mdMsg: `
# Version control tool not found!

The package is installed from source and needs git, hg or svn on your PATH.

## Things you can try:
- Install the tool named in the error message
- Install from archives instead:
~~~
$ pakt install --prefer-dist
~~~`,
	}

	directoryNotEmptyIssue = &Issue{
		id: DirectoryNotEmptyId,
		mdMsg: `
# The target directory is not empty!

create-project only installs into a new or empty directory.

## Things you can try:
- Choose another directory:
~~~
$ pakt create-project acme/skeleton my-new-app
~~~`,
	}

	hookBlockedIssue = &Issue{
		id: HookBlockedId,
		mdMsg: `
# A script blocked the operation!

A pre-package script in pakt.json exited with a non-zero status, so the
package was left as it was.

## Things you can try:
- Read the script output above
- Run the install without scripts to confirm:
~~~
$ pakt install --no-scripts
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

pakt could not write to the vendor directory or its cache.

## Things you can try:
- Check the ownership of the vendor directory
- Point the cache somewhere writable:
~~~cue
cache_dir: "/tmp/pakt-cache"
~~~`,
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():   manifestNotFoundIssue,
		manifestParseErrorIssue.Id(): manifestParseErrorIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		resolutionFailedIssue.Id():   resolutionFailedIssue,
		packageNotFoundIssue.Id():    packageNotFoundIssue,
		downloadFailedIssue.Id():     downloadFailedIssue,
		checksumMismatchIssue.Id():   checksumMismatchIssue,
		localChangesIssue.Id():       localChangesIssue,
		vcsNotFoundIssue.Id():        vcsNotFoundIssue,
		directoryNotEmptyIssue.Id():  directoryNotEmptyIssue,
		hookBlockedIssue.Id():        hookBlockedIssue,
		permissionDeniedIssue.Id():   permissionDeniedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
}

func Get(id Id) *Issue {
	return issues[id]
}
