// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pakt/pakt/internal/config"
)

// newConfigCommand creates the `pakt config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pakt configuration",
		Long: `Manage pakt configuration.

Configuration is stored in:
  - Linux: ~/.config/pakt/config.cue
  - macOS: ~/Library/Application Support/pakt/config.cue
  - Windows: %APPDATA%\pakt\config.cue

A pakt.cue file in the project directory is used when the user file is absent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := showConfig(cmd.Context(), app, format); err != nil {
				return app.fail(cmd, err, nil)
			}
			return nil
		},
	}
	showCmd.Flags().StringVarP(&format, "format", "f", "cue", "output format: cue, json, toml or yaml")
	cfgCmd.AddCommand(showCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(app); err != nil {
				return app.fail(cmd, err, nil)
			}
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := showConfigPath(app); err != nil {
				return app.fail(cmd, err, nil)
			}
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setConfigValue(cmd.Context(), app, args[0], args[1]); err != nil {
				return app.fail(cmd, err, nil)
			}
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, rawFormat string) error {
	f, err := config.ParseFormat(rawFormat)
	if err != nil {
		return err
	}
	dir, err := app.projectDir()
	if err != nil {
		return err
	}
	opts := app.loadOptions(dir)
	cfg, err := app.Config.Load(ctx, opts)
	if err != nil {
		return err
	}
	data, err := config.Render(cfg, f)
	if err != nil {
		return err
	}

	if f == config.FormatCUE {
		path, _ := config.ResolvePath(opts)
		if path == "" {
			path = SubtitleStyle.Render("(using defaults)")
		}
		fmt.Fprintln(app.stdout, TitleStyle.Render("// Current configuration"))
		fmt.Fprintf(app.stdout, "// %s: %s\n\n", PackageStyle.Render("Config file"), path)
	}
	fmt.Fprint(app.stdout, string(data))
	return nil
}

// userConfigDir is the directory init and set write to.
func (a *App) userConfigDir() (string, error) {
	if a.flags.configDir != "" {
		return a.flags.configDir, nil
	}
	return config.ConfigDir()
}

func initConfig(app *App) error {
	dir, err := app.userConfigDir()
	if err != nil {
		return err
	}
	path, err := config.CreateDefaultConfig(dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(app *App) error {
	dir, err := app.userConfigDir()
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
	fmt.Fprintf(app.stdout, "Config file: %s/%s.%s\n", dir, config.ConfigFileName, config.ConfigFileExt)

	project, err := app.projectDir()
	if err != nil {
		return err
	}
	if path, err := config.ResolvePath(app.loadOptions(project)); err == nil && path != "" {
		fmt.Fprintf(app.stdout, "Loaded from: %s\n", path)
	}
	return nil
}

// settableKeys lists the keys accepted by `config set`.
var settableKeys = []string{
	"vendor_dir", "cache_dir", "prefer_source", "minimum_stability", "prefer_stable",
	"continue_on_error", "selection_policy", "notify", "http.timeout",
	"ui.color_scheme", "ui.verbose",
}

func setConfigValue(ctx context.Context, app *App, key, value string) error {
	dir, err := app.userConfigDir()
	if err != nil {
		return err
	}
	cfg, err := app.Config.Load(ctx, config.LoadOptions{ConfigDirPath: dir})
	if err != nil {
		return err
	}

	switch key {
	case "vendor_dir":
		cfg.VendorDir = value
	case "cache_dir":
		cfg.CacheDir = value
	case "minimum_stability":
		cfg.MinimumStability = config.StabilityName(value)
	case "selection_policy":
		cfg.SelectionPolicy = config.SelectionPolicy(value)
	case "http.timeout":
		cfg.HTTP.Timeout = config.Timeout(value)
	case "ui.color_scheme":
		cfg.UI.ColorScheme = config.ColorScheme(value)
	case "prefer_source", "prefer_stable", "continue_on_error", "notify", "ui.verbose":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %q is not a boolean", key, value)
		}
		switch key {
		case "prefer_source":
			cfg.PreferSource = b
		case "prefer_stable":
			cfg.PreferStable = b
		case "continue_on_error":
			cfg.ContinueOnError = b
		case "notify":
			cfg.Notify = b
		default:
			cfg.UI.Verbose = b
		}
	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: %v", key, settableKeys)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return errs[0]
	}
	if err := config.Save(dir, cfg); err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}
