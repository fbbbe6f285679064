// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/pakt/pakt/internal/app/execute"
	"github.com/pakt/pakt/pkg/downloader"
	"github.com/pakt/pakt/pkg/manifest"
	"github.com/pakt/pakt/pkg/pkgmeta"
)

type showFlags struct {
	available bool
	json      bool
}

func newShowCommand(app *App) *cobra.Command {
	var flags showFlags
	cmd := &cobra.Command{
		Use:   "show [package]",
		Short: "List installed or available packages",
		Long: `List installed packages, or with --available the packages the configured
repositories offer.

A package argument filters the list by fuzzy match. An exact package name with
--available lists every version the repositories publish for it.`,
		Example: `  pakt show
  pakt show --available acme/core
  pakt show --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter string
			if len(args) == 1 {
				filter = pkgmeta.NormalizeName(args[0])
			}
			return runShow(cmd, app, &flags, filter)
		},
	}
	cmd.Flags().BoolVarP(&flags.available, "available", "a", false, "list packages from the repositories instead of installed ones")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print installed package records as JSON")
	cmd.MarkFlagsMutuallyExclusive("available", "json")
	return cmd
}

// openReadSession opens a session for read-only commands. A project without
// pakt.json still sees the repositories of the user configuration.
func (a *App) openReadSession(cmd *cobra.Command) (*execute.Session, error) {
	ctx := cmd.Context()
	dir, err := a.projectDir()
	if err != nil {
		return nil, err
	}
	m, err := loadManifest(dir)
	if err != nil {
		if !errors.Is(err, manifest.ErrManifestNotFound) {
			return nil, err
		}
		m = &manifest.Manifest{}
	}
	cfg, err := a.loadConfig(ctx, dir)
	if err != nil {
		return nil, err
	}
	return execute.NewSession(ctx, execute.SessionOptions{
		Config:     cfg,
		Manifest:   m,
		ProjectDir: dir,
		Flags:      execute.Flags{DryRun: true, Verbose: a.flags.verbose},
		Out:        a.stdout,
		Logger:     a.newLogger(cfg),
		Runner:     a.Runner,
	})
}

func runShow(cmd *cobra.Command, app *App, flags *showFlags, filter string) error {
	s, err := app.openReadSession(cmd)
	if err != nil {
		return app.fail(cmd, err, nil)
	}
	defer func() { _ = s.Close() }()

	if flags.available {
		if err := showAvailable(cmd, app, s, filter); err != nil {
			return app.fail(cmd, err, &s.Config)
		}
		return nil
	}

	pkgs := s.Installed.Packages()
	if filter != "" {
		pkgs = filterPackages(pkgs, filter)
	}
	if flags.json {
		records := make([]pkgmeta.Record, 0, len(pkgs))
		for _, p := range pkgs {
			records = append(records, p.Record())
		}
		data, err := json.MarshalIndent(records, "", "    ")
		if err != nil {
			return app.fail(cmd, err, &s.Config)
		}
		fmt.Fprintln(app.stdout, string(data))
		return nil
	}

	if len(pkgs) == 0 {
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("No packages installed."))
		return nil
	}
	width := 0
	for _, p := range pkgs {
		width = max(width, len(p.PrettyName))
	}
	for _, p := range pkgs {
		from := string(p.InstallationSource)
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(app.stdout, "%s %s %s\n",
			PackageStyle.Render(fmt.Sprintf("%-*s", width, p.PrettyName)),
			downloader.FormatVersion(p),
			VerboseStyle.Render("("+from+")"))
	}
	return nil
}

func showAvailable(cmd *cobra.Command, app *App, s *execute.Session, filter string) error {
	ctx := cmd.Context()
	names, err := s.Repositories.PackageNames(ctx)
	if err != nil {
		return err
	}
	if filter != "" && slices.Contains(names, filter) {
		pkgs, err := s.Repositories.FindPackages(ctx, filter, nil)
		if err != nil {
			return err
		}
		versions := make([]string, 0, len(pkgs))
		for _, p := range slices.Backward(pkgs) {
			versions = append(versions, p.PrettyVersion())
		}
		fmt.Fprintf(app.stdout, "%s %s\n", PackageStyle.Render(filter), strings.Join(versions, ", "))
		return nil
	}
	if filter != "" {
		matches := fuzzy.Find(filter, names)
		names = names[:0:0]
		for _, m := range matches {
			names = append(names, m.Str)
		}
	}
	if len(names) == 0 {
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("No packages available."))
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(app.stdout, PackageStyle.Render(n))
	}
	return nil
}

// filterPackages keeps the packages whose names fuzzy-match filter, best
// match first.
func filterPackages(pkgs []*pkgmeta.Package, filter string) []*pkgmeta.Package {
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	matches := fuzzy.Find(filter, names)
	out := make([]*pkgmeta.Package, 0, len(matches))
	for _, m := range matches {
		out = append(out, pkgs[m.Index])
	}
	return out
}
