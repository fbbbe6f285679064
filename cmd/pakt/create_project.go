// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pakt/pakt/internal/app/execute"
	"github.com/pakt/pakt/pkg/installer"
	"github.com/pakt/pakt/pkg/manifest"
)

type createProjectFlags struct {
	installFlags
	repositoryURL string
	stability     string
	noInstall     bool
}

func newCreateProjectCommand(app *App) *cobra.Command {
	var flags createProjectFlags
	cmd := &cobra.Command{
		Use:   "create-project <package> [directory] [version]",
		Short: "Create a new project from a package",
		Long: `Create a new project from a package.

The package is installed as the root of the new directory, then the
requirements of its pakt.json are installed into it. The directory defaults
to the last segment of the package name and must be new or empty.`,
		Example: `  pakt create-project acme/skeleton my-app
  pakt create-project acme/skeleton:^2.0
  pakt create-project acme/skeleton my-app 2.1.0 --repository-url ./packages.json`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateProject(cmd, app, &flags, args)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.repositoryURL, "repository-url", "", "look the package up in this repository (registry URL, packages.json path or VCS URL)")
	cmd.Flags().StringVarP(&flags.stability, "stability", "s", "", "lowest stability for the project package (default stable)")
	cmd.Flags().BoolVar(&flags.noInstall, "no-install", false, "skip installing the new project's requirements")
	_ = cmd.Flags().MarkHidden("minimum-stability")
	_ = cmd.Flags().MarkHidden("dry-run")
	return cmd
}

// splitPackageArg accepts "vendor/name", "vendor/name:constraint" and
// "vendor/name=constraint".
func splitPackageArg(arg string) (name, constraint string) {
	if i := strings.IndexAny(arg, ":="); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}

// repositoryType guesses the declaration type of a --repository-url value.
func repositoryType(url string) string {
	switch {
	case strings.HasPrefix(url, "git@"), strings.HasSuffix(url, ".git"), strings.HasPrefix(url, "ssh://"):
		return manifest.RepositoryVCS
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return manifest.RepositoryRegistry
	default:
		return manifest.RepositoryFilesystem
	}
}

func runCreateProject(cmd *cobra.Command, app *App, flags *createProjectFlags, args []string) error {
	ctx := cmd.Context()
	if flags.dryRun {
		return app.fail(cmd, errors.New("create-project does not support --dry-run"), nil)
	}
	name, constraint := splitPackageArg(args[0])
	var dir string
	if len(args) > 1 {
		dir = args[1]
	}
	if len(args) > 2 {
		if constraint != "" {
			return app.fail(cmd, fmt.Errorf("version given twice: %q and %q", constraint, args[2]), nil)
		}
		constraint = args[2]
	}

	baseDir, err := app.projectDir()
	if err != nil {
		return app.fail(cmd, err, nil)
	}
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	cfg, err := app.loadConfig(ctx, baseDir)
	if err != nil {
		return app.fail(cmd, err, nil)
	}

	root := &manifest.Manifest{}
	if flags.repositoryURL != "" {
		root.Repositories = []manifest.RepositoryConfig{{Type: repositoryType(flags.repositoryURL), URL: flags.repositoryURL}}
	}
	sessionFlags := flags.sessionFlags(cmd)
	sessionFlags.Verbose = app.flags.verbose
	sessionFlags.MinimumStability = flags.stability
	logger := app.newLogger(cfg)

	s, err := execute.NewSession(ctx, execute.SessionOptions{
		Config:     cfg,
		Manifest:   root,
		ProjectDir: baseDir,
		Flags:      sessionFlags,
		Out:        app.stdout,
		Logger:     logger,
		Runner:     app.Runner,
	})
	if err != nil {
		return app.fail(cmd, err, cfg)
	}
	defer func() { _ = s.Close() }()

	fmt.Fprintln(app.stdout, TitleStyle.Render("Creating project ")+PackageStyle.Render(name))
	res, err := installer.CreateProject(ctx, installer.ProjectRequest{
		Package:          name,
		Version:          constraint,
		Directory:        dir,
		Repositories:     s.Repositories,
		Downloads:        s.Downloads,
		MinimumStability: s.MinimumStability(),
		Stability:        s.Installer.Policy().Stability,
		Notify:           s.Config.Notify,
		Out:              app.stdout,
		Logger:           logger,
		Install: func(ctx context.Context, projectDir string, m *manifest.Manifest) error {
			if flags.noInstall {
				return nil
			}
			inner := flags.sessionFlags(cmd)
			inner.Verbose = app.flags.verbose
			project, err := execute.NewSession(ctx, execute.SessionOptions{
				Config:     cfg,
				Manifest:   m,
				ProjectDir: projectDir,
				Flags:      inner,
				Out:        app.stdout,
				Logger:     logger,
				Runner:     app.Runner,
			})
			if err != nil {
				return err
			}
			defer func() { _ = project.Close() }()
			fmt.Fprintln(app.stdout, TitleStyle.Render("Installing dependencies"))
			report, err := project.Run(ctx, false, nil)
			if report != nil {
				printSummary(app.stdout, report)
			}
			return err
		},
	})
	if err != nil {
		return app.fail(cmd, err, &s.Config)
	}
	fmt.Fprintf(app.stdout, "%s Project %s created in %s\n", SuccessStyle.Render("✓"),
		PackageStyle.Render(res.Package.Name), res.Directory)
	return nil
}
