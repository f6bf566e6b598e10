package main

import (
	"strings"

	"github.com/spf13/cobra"

	"lecturenotes/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lecturenotes daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireLLMKey(); err != nil {
				return err
			}
			if b := strings.TrimSpace(bind); b != "" {
				cfg.API.Bind = b
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Human-friendly development logging")
	cmd.Flags().StringVar(&bind, "bind", "", "Override api.bind")
	return cmd
}
