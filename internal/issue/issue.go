// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	EnvironmentNotFoundId
	EnvironmentNameTakenId
	PluginNotFoundId
	VersionUnsupportedId
	InstallFailedId
	SwitchInProgressId
	ActivationFailedId
	DetectionAmbiguousId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id    Id          // ID used to lookup the issue
	mdMsg MarkdownMsg // Markdown text that will be rendered
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the devenv configuration file.

## Configuration file locations:
- Linux: ~/.config/devenv/config.cue
- macOS: ~/Library/Application Support/devenv/config.cue
- Windows: %APPDATA%\devenv\config.cue

## Things you can try:
- Create a default configuration:
~~~
$ devenv config init
~~~

- Check the configuration syntax
- Remove the config file to use defaults`,
	}

	environmentNotFoundIssue = &Issue{
		id: EnvironmentNotFoundId,
		mdMsg: `
# Environment not found!

The named environment does not exist (or was removed).

## Things you can try:
- List known environments:
~~~
$ devenv list
~~~

- Create it from the current project:
~~~
$ devenv setup <name>
~~~`,
	}

	environmentNameTakenIssue = &Issue{
		id: EnvironmentNameTakenId,
		mdMsg: `
# Environment name already in use!

An environment with this name already exists and has not been removed.

## Things you can try:
- Pick a different name
- Remove the old environment first:
~~~
$ devenv remove <name>
~~~`,
	}

	pluginNotFoundIssue = &Issue{
		id: PluginNotFoundId,
		mdMsg: `
# Plugin not found!

No registered plugin provides the requested language or tool.

## Things you can try:
- Check the detected languages:
~~~
$ devenv detect
~~~

- Verify the plugins directory in your configuration`,
	}

	versionUnsupportedIssue = &Issue{
		id: VersionUnsupportedId,
		mdMsg: `
# Version not supported!

The requested version range does not intersect any registered plugin's
supported range.

## Things you can try:
- Relax the version pin in your project manifest or version file
- Update devenv to pick up newer plugin descriptors`,
	}

	installFailedIssue = &Issue{
		id: InstallFailedId,
		mdMsg: `
# Installation failed!

One or more install tasks ended in failure; the environment was left
in a degraded state with the partial result recorded.

## Things you can try:
- Inspect the failure details:
~~~
$ devenv status <name>
~~~

- Re-run setup once the underlying problem is fixed:
~~~
$ devenv setup <name>
~~~`,
	}

	switchInProgressIssue = &Issue{
		id: SwitchInProgressId,
		mdMsg: `
# A switch is already in progress!

Only one environment switch may run at a time; concurrent requests are
rejected rather than queued.

## Things you can try:
- Wait for the current switch to finish and retry`,
	}

	activationFailedIssue = &Issue{
		id: ActivationFailedId,
		mdMsg: `
# Activation failed!

Activating the target environment failed. The previously active
environment has been restored.

## Things you can try:
- Check the target environment's health:
~~~
$ devenv status <name>
~~~

- Repair it with a setup re-run before switching again`,
	}

	detectionAmbiguousIssue = &Issue{
		id: DetectionAmbiguousId,
		mdMsg: `
# Ambiguous project detection!

Multiple signatures of equal specificity declare conflicting versions
for the same language. devenv surfaces this instead of guessing.

## Things you can try:
- Align the conflicting version declarations (e.g., .nvmrc vs package.json engines)
- Remove the stale declaration`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		environmentNotFoundIssue.Id():  environmentNotFoundIssue,
		environmentNameTakenIssue.Id(): environmentNameTakenIssue,
		pluginNotFoundIssue.Id():       pluginNotFoundIssue,
		versionUnsupportedIssue.Id():   versionUnsupportedIssue,
		installFailedIssue.Id():        installFailedIssue,
		switchInProgressIssue.Id():     switchInProgressIssue,
		activationFailedIssue.Id():     activationFailedIssue,
		detectionAmbiguousIssue.Id():   detectionAmbiguousIssue,
	}
)

func Values() []*Issue {
	vals := maps.Values(issues)
	slices.SortFunc(vals, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return vals
}

func Get(id Id) *Issue {
	return issues[id]
}
