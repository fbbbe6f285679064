// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pakt/pakt/internal/app/execute"
	"github.com/pakt/pakt/pkg/installer"
)

// installFlags are shared by install and update.
type installFlags struct {
	dryRun             bool
	noDev              bool
	preferSource       bool
	preferDist         bool
	noScripts          bool
	noCustomInstallers bool
	continueOnError    bool
	minimumStability   string
}

func (f *installFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVar(&f.dryRun, "dry-run", false, "resolve and list the operations without changing anything")
	fl.Bool("dev", true, "install require-dev packages (default)")
	fl.BoolVar(&f.noDev, "no-dev", false, "skip require-dev packages")
	fl.BoolVar(&f.preferSource, "prefer-source", false, "install from version control when possible")
	fl.BoolVar(&f.preferDist, "prefer-dist", false, "install from archives when possible")
	fl.BoolVar(&f.noScripts, "no-scripts", false, "do not run the scripts declared in pakt.json")
	fl.BoolVar(&f.noCustomInstallers, "no-custom-installers", false, "install every package into the default location")
	fl.BoolVar(&f.continueOnError, "continue-on-error", false, "keep going after a failed operation")
	fl.StringVar(&f.minimumStability, "minimum-stability", "", "lowest stability to accept (stable, RC, beta, alpha, dev)")
	cmd.MarkFlagsMutuallyExclusive("prefer-source", "prefer-dist")
	cmd.MarkFlagsMutuallyExclusive("dev", "no-dev")
}

// sessionFlags converts the parsed flags. Flags the user did not set leave
// the manifest and config values alone.
func (f *installFlags) sessionFlags(cmd *cobra.Command) execute.Flags {
	out := execute.Flags{
		DryRun:             f.dryRun,
		DevMode:            !f.noDev,
		NoScripts:          f.noScripts,
		NoCustomInstallers: f.noCustomInstallers,
		MinimumStability:   f.minimumStability,
	}
	switch {
	case cmd.Flags().Changed("prefer-source"):
		v := f.preferSource
		out.PreferSource = &v
	case cmd.Flags().Changed("prefer-dist"):
		v := !f.preferDist
		out.PreferSource = &v
	}
	if cmd.Flags().Changed("continue-on-error") {
		v := f.continueOnError
		out.ContinueOnError = &v
	}
	return out
}

func newInstallCommand(app *App) *cobra.Command {
	var flags installFlags
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the requirements of pakt.json",
		Long: `Install the requirements of pakt.json.

Packages already installed stay at their versions when they still satisfy the
requirements. Use 'pakt update' to move them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstall(cmd, app, &flags, false, nil)
		},
	}
	flags.register(cmd)
	return cmd
}

func newUpdateCommand(app *App) *cobra.Command {
	var flags installFlags
	cmd := &cobra.Command{
		Use:   "update [packages...]",
		Short: "Update packages to the newest allowed versions",
		Long: `Update packages to the newest versions the requirements allow.

With no arguments every package may change. With package names only those
move; everything else stays as installed.`,
		Example: `  pakt update
  pakt update acme/core acme/widgets`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, app, &flags, true, args)
		},
	}
	flags.register(cmd)
	return cmd
}

func runInstall(cmd *cobra.Command, app *App, flags *installFlags, update bool, allow []string) error {
	ctx := cmd.Context()
	s, err := app.openSession(ctx, flags.sessionFlags(cmd))
	if err != nil {
		return app.fail(cmd, err, nil)
	}
	defer func() { _ = s.Close() }()

	out := app.stdout
	if flags.dryRun {
		fmt.Fprintln(out, WarningStyle.Render("Dry run: nothing will be written"))
	}
	if update {
		fmt.Fprintln(out, TitleStyle.Render("Updating dependencies"))
	} else {
		fmt.Fprintln(out, TitleStyle.Render("Installing dependencies"))
	}
	fmt.Fprintln(out, SubtitleStyle.Render("Repositories: "+s.Repositories.Name()))

	report, err := s.Run(ctx, update, allow)
	if report != nil {
		printSummary(out, report)
	}
	if err != nil {
		return app.fail(cmd, err, &s.Config)
	}
	return nil
}

// printSummary writes the operation counts of a run.
func printSummary(out io.Writer, report *installer.Report) {
	var installs, updates, removals int
	for _, op := range report.Operations {
		switch op.Kind() {
		case installer.OpInstall:
			installs++
		case installer.OpUpdate:
			updates++
		case installer.OpRemove:
			removals++
		}
	}
	if installs+updates+removals == 0 {
		return
	}
	line := fmt.Sprintf("Package operations: %s, %s, %s",
		plural(installs, "install", "installs"),
		plural(updates, "update", "updates"),
		plural(removals, "removal", "removals"))
	switch {
	case report.DryRun:
		fmt.Fprintln(out, SubtitleStyle.Render(line+" (dry run)"))
	case report.Succeeded():
		fmt.Fprintln(out, SuccessStyle.Render("✓ ")+line)
	default:
		fmt.Fprintf(out, "%s%s, %d failed\n", ErrorStyle.Render("✗ "), line, len(report.Failures))
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
