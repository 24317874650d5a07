package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"plexrotate/internal/config"
	"plexrotate/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "Edit the [plex] and [rotation] sections (or export %s, %s, ...) before running plexrotate.\n",
				config.EnvPlexLogin, config.EnvSourceFolder)
			fmt.Fprintf(out, "The file is stored with mode 0600 in %s because it holds your password.\n", filepath.Dir(target))
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var checkServer bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and check the rotation folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configSeen {
				fmt.Fprintln(out, "Config file did not exist; defaults and environment were used")
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Setting", "Value"},
				[][]string{
					{"Server", displayOrUnset(cfg.ServerURL())},
					{"Login", displayOrUnset(cfg.Plex.Login)},
					{"Password set", yesNo(cfg.Plex.Password != "")},
					{"Library section", strconv.Itoa(cfg.Plex.LibrarySectionID)},
					{"Source", displayOrUnset(cfg.Rotation.SourceDir)},
					{"Destination", displayOrUnset(cfg.Rotation.DestinationDir)},
					{"Action", cfg.Rotation.Action},
					{"Count", strconv.Itoa(cfg.Rotation.Count)},
					{"Oversample", cfg.Rotation.Oversample},
				},
				nil,
			))

			var results []preflight.Result
			if checkServer {
				results = preflight.RunAll(cmd.Context(), cfg)
			} else {
				results = preflight.Directories(cfg)
			}
			colorize := isTerminal(out)
			for _, result := range results {
				fmt.Fprintln(out, renderCheck(result, colorize))
			}

			if err := cfg.RequireRotation(); err != nil {
				return err
			}
			if err := preflight.Err(results); err != nil {
				return err
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkServer, "check-server", false, "Also check that the media server answers")
	return cmd
}

func displayOrUnset(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(unset)"
	}
	return value
}
