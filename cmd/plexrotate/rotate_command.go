package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"plexrotate/internal/config"
	"plexrotate/internal/rotation"
)

type rotateFlags struct {
	count         int
	action        string
	source        string
	destination   string
	section       int
	seed          int64
	oversample    string
	dryRun        bool
	showLibraries bool
}

func newRotateCommand(ctx *commandContext) *cobra.Command {
	var flags rotateFlags

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Replace the destination with a fresh random pick from the source",
		Long: "Sign in to plex.tv, empty the destination folder, refresh the library, copy or\n" +
			"link a random selection of source folders into the destination, and refresh again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyRotateFlags(cmd, cfg, flags); err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			runner := rotation.NewRunner(cfg, ctx.plexClient(cfg, logger), logger,
				rotation.WithDryRun(flags.dryRun),
				rotation.WithProgress(cmd.ErrOrStderr(), isTerminal(cmd.ErrOrStderr())),
			)
			result, runErr := runner.Run(cmd.Context())
			if result != nil {
				printRotation(out, cfg, result)
			}
			return runErr
		},
	}

	cmd.Flags().IntVarP(&flags.count, "count", "n", 0, "Number of folders to rotate in (rotation.count)")
	cmd.Flags().StringVar(&flags.action, "action", "", "copy or symlink (rotation.action)")
	cmd.Flags().StringVar(&flags.source, "source", "", "Source folder (rotation.source_dir)")
	cmd.Flags().StringVar(&flags.destination, "destination", "", "Destination folder (rotation.destination_dir)")
	cmd.Flags().IntVar(&flags.section, "section", 0, "Library section id to refresh (plex.library_section_id)")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "Fixed sampling seed (rotation.seed)")
	cmd.Flags().StringVar(&flags.oversample, "oversample", "", "fail or clamp when the source is too small (rotation.oversample)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Sign in and print the pick without touching the destination")
	cmd.Flags().BoolVar(&flags.showLibraries, "show-libraries", false, "Print the server's libraries before rotating")
	return cmd
}

// applyRotateFlags layers explicitly set flags over the loaded configuration
// and validates the result.
func applyRotateFlags(cmd *cobra.Command, cfg *config.Config, flags rotateFlags) error {
	changed := cmd.Flags().Changed
	if changed("count") {
		cfg.Rotation.Count = flags.count
	}
	if changed("action") {
		cfg.Rotation.Action = strings.ToLower(strings.TrimSpace(flags.action))
	}
	if changed("oversample") {
		cfg.Rotation.Oversample = strings.ToLower(strings.TrimSpace(flags.oversample))
	}
	if changed("section") {
		cfg.Plex.LibrarySectionID = flags.section
	}
	if changed("seed") {
		cfg.Rotation.Seed = flags.seed
	}
	if changed("show-libraries") {
		cfg.Rotation.ShowLibraries = flags.showLibraries
	}
	for _, entry := range []struct {
		name   string
		value  string
		target *string
	}{
		{"source", flags.source, &cfg.Rotation.SourceDir},
		{"destination", flags.destination, &cfg.Rotation.DestinationDir},
	} {
		if !changed(entry.name) {
			continue
		}
		expanded, err := config.ExpandPath(entry.value)
		if err != nil {
			return fmt.Errorf("--%s: %w", entry.name, err)
		}
		*entry.target = expanded
	}
	return cfg.Validate()
}

func printRotation(out io.Writer, cfg *config.Config, result *rotation.Result) {
	if cfg.Rotation.ShowLibraries {
		if result.SectionsErr != nil {
			fmt.Fprintln(out, "Failed to retrieve libraries information")
		} else if len(result.Sections) > 0 {
			fmt.Fprintln(out, renderSections(result.Sections))
		}
	}
	if len(result.Picked) == 0 {
		return
	}

	if result.DryRun {
		fmt.Fprintf(out, "Dry run: would %s %d of %d folders into %s\n",
			cfg.Rotation.Action, len(result.Picked), result.Candidates, cfg.Rotation.DestinationDir)
		for _, name := range result.Picked {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return
	}

	fmt.Fprintf(out, "Picked %d of %d folders:\n", len(result.Picked), result.Candidates)
	for _, name := range result.Picked {
		fmt.Fprintf(out, "  %s\n", name)
	}
	if len(result.Items) == 0 {
		return
	}
	switch cfg.Rotation.Action {
	case config.ActionCopy:
		fmt.Fprintf(out, "Copied %s into %s\n", humanize.Bytes(uint64(result.BytesCopied)), cfg.Rotation.DestinationDir)
	case config.ActionSymlink:
		if result.ManifestPath != "" {
			fmt.Fprintf(out, "Linked %d folders; manifest written to %s\n", len(result.Items), result.ManifestPath)
		}
	}
	if result.State == rotation.StateDone {
		fmt.Fprintf(out, "Library section %d refreshed in %s\n", cfg.Plex.LibrarySectionID, result.Duration.Round(time.Millisecond))
	}
}
