package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lecturenotes/internal/client"
	"lecturenotes/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var remote, jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, tools, and services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var results []preflight.Result
			if remote {
				err := ctx.withClient(func(c *client.Client) error {
					health, err := c.Health(cmd.Context())
					results = health.Checks
					return err
				})
				if err != nil {
					return err
				}
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				results = preflight.RunAll(cmd.Context(), cfg)
			}

			if jsonOut {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				title := "Local Checks"
				if remote {
					title = "Daemon Checks"
				}
				for _, line := range renderSectionHeader(title, colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range checkLines(results, colorize) {
					fmt.Fprintln(out, line)
				}
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the running daemon instead of checking locally")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
