// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/viberails/viberails/internal/config"
	"github.com/viberails/viberails/internal/issue"

	"github.com/spf13/cobra"
)

const (
	dumpFormatCUE  = "cue"
	dumpFormatTOML = "toml"
)

// newConfigCommand creates the `viberails config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage viberails configuration",
		Long: `Manage viberails configuration.

Configuration is stored in config.cue inside:
  - Linux: ~/.config/viberails
  - macOS: ~/Library/Application Support/viberails
  - Windows: %APPDATA%\viberails

VIBERAILS_CONFIG_DIR overrides the directory, and any key can be set from
the environment, e.g. VIBERAILS_UPGRADE_AUTO_POLL=false.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.OutOrStdout(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd.OutOrStdout())
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfigPath(cmd.OutOrStdout())
		},
	})

	var format string
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE or TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return dumpConfig(cmd.OutOrStdout(), app.cfg, format)
		},
	}
	dumpCmd.Flags().StringVar(&format, "format", dumpFormatCUE, "output format: cue or toml")
	cfgCmd.AddCommand(dumpCmd)

	return cfgCmd
}

func showConfig(w io.Writer, app *App) error {
	cfg := app.cfg

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if app.configPath != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), app.configPath)
	} else if path, err := config.FilePath(""); err == nil && fileExists(path) {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	section(w, "upgrade", [][2]string{
		{"base_url", cfg.Upgrade.BaseURL.String()},
		{"poll_interval", cfg.Upgrade.PollInterval.String()},
		{"auto_poll", strconv.FormatBool(cfg.Upgrade.AutoPoll)},
		{"download_timeout", cfg.Upgrade.DownloadTimeout.String()},
		{"replace_attempts", strconv.Itoa(cfg.Upgrade.ReplaceAttempts)},
		{"replace_delay", cfg.Upgrade.ReplaceDelay.String()},
	})
	section(w, "log", [][2]string{
		{"level", cfg.Log.Level.String()},
		{"max_size_mb", strconv.Itoa(cfg.Log.MaxSizeMB)},
		{"max_backups", strconv.Itoa(cfg.Log.MaxBackups)},
	})
	section(w, "ui", [][2]string{
		{"verbose", strconv.FormatBool(cfg.UI.Verbose)},
	})

	return nil
}

func section(w io.Writer, name string, kvs [][2]string) {
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render(name))
	for _, kv := range kvs {
		fmt.Fprintf(w, "  %s: %s\n", kv[0], SuccessStyle.Render(kv[1]))
	}
	fmt.Fprintln(w)
}

func initConfig(w io.Writer) error {
	path, created, err := config.CreateDefaultConfig("")
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	if !created {
		fmt.Fprintf(w, "Configuration already exists at %s\n", path)
		return nil
	}
	fmt.Fprintf(w, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(w io.Writer) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	path, err := config.FilePath(cfgDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(w, "Config file: %s\n", path)
	return nil
}

func dumpConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case dumpFormatCUE:
		fmt.Fprint(w, config.GenerateCUE(cfg))
		return nil
	case dumpFormatTOML:
		out, err := config.GenerateTOML(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(w, out)
		return nil
	default:
		return issue.NewErrorContext().
			WithOperation("dump configuration").
			WithSuggestion("Use --format " + dumpFormatCUE + " or --format " + dumpFormatTOML).
			Wrap(fmt.Errorf("unknown format %q", format)).
			BuildError()
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
