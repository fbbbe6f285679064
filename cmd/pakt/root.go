// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/pakt/pakt/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the pakt command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pakt",
		Short: "A dependency manager for package ecosystems",
		Long: TitleStyle.Render("pakt") + SubtitleStyle.Render(" - resolve, fetch and install project dependencies") + `

pakt reads the requirements in pakt.json, resolves one consistent set of
package versions across registries, local package files and version-control
repositories, and installs them into the vendor directory.

` + SubtitleStyle.Render("Examples:") + `
  pakt install                         Install the requirements of pakt.json
  pakt update acme/core                Update one package and keep the rest
  pakt install --dry-run --verbose     Show what would change
  pakt create-project acme/skeleton    Start a project from a skeleton package
  pakt config show                     Show the effective configuration`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&app.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/pakt/config.cue)")
	flags.StringVar(&app.flags.configDir, "config-dir", "", "directory searched for config.cue")
	flags.StringVarP(&app.flags.workingDir, "working-dir", "d", "", "use the given directory as the project directory")

	rootCmd.AddCommand(
		newInstallCommand(app),
		newUpdateCommand(app),
		newCreateProjectCommand(app),
		newShowCommand(app),
		newStatusCommand(app),
		newConfigCommand(app),
		newVersionCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the CLI and runs it. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(int(ExitFailure))
	}
}

// handleError prints errors cobra and fang report. Errors returned through
// App.fail were rendered already.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

// fail renders err on stderr with its catalog entry and returns the
// ExitError that carries the exit code. Cobra is told not to print err again.
func (a *App) fail(cmd *cobra.Command, err error, cfg *config.Config) error {
	if err == nil {
		return nil
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	exitErr := toServiceError(err, a.verbose(cfg))
	var svcErr *ServiceError
	if errors.As(exitErr.Err, &svcErr) {
		renderServiceError(a.stderr, svcErr, glamourStyle(cfg))
	}
	return exitErr
}

// glamourStyle maps ui.color_scheme to a glamour style name.
func glamourStyle(cfg *config.Config) string {
	if cfg == nil {
		return "dark"
	}
	switch cfg.UI.ColorScheme {
	case config.ColorSchemeLight:
		return "light"
	case config.ColorSchemeAuto:
		return "auto"
	default:
		return "dark"
	}
}
