package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLibrariesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "List the library sections on the media server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireServer(); err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			client := ctx.plexClient(cfg, logger)
			session, err := client.SignIn(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sections, err := client.Sections(cmd.Context(), session.Token)
			if err != nil {
				fmt.Fprintln(out, "Failed to retrieve libraries information")
				return err
			}
			if len(sections) == 0 {
				fmt.Fprintln(out, "No libraries found")
				return nil
			}
			fmt.Fprintln(out, renderSections(sections))
			return nil
		},
	}
}
