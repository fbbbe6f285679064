// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report local changes in installed packages",
		Long: `Report local changes in packages installed from version control.

pakt refuses to update or remove a working copy with uncommitted changes.
Use --verbose to print the changes themselves. The command exits with status 1
when any package has changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, app)
		},
	}
}

func runStatus(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	s, err := app.openReadSession(cmd)
	if err != nil {
		return app.fail(cmd, err, nil)
	}
	defer func() { _ = s.Close() }()

	verbose := app.verbose(&s.Config)
	dirty := 0
	for _, pkg := range s.Installed.Packages() {
		changes, err := s.Downloads.LocalChanges(ctx, pkg, s.Installer.InstallPath(pkg))
		if err != nil {
			return app.fail(cmd, fmt.Errorf("check %s: %w", pkg.Name, err), &s.Config)
		}
		if changes == "" {
			continue
		}
		dirty++
		fmt.Fprintf(app.stdout, "%s %s has local changes\n", WarningStyle.Render("!"), PackageStyle.Render(pkg.PrettyName))
		if verbose {
			for line := range strings.SplitSeq(strings.TrimRight(changes, "\n"), "\n") {
				fmt.Fprintln(app.stdout, VerboseStyle.Render("    "+line))
			}
		}
	}

	if dirty == 0 {
		fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ No local changes"))
		return nil
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: ExitFailure}
}
