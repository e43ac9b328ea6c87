package main

import (
	"github.com/spf13/cobra"

	"beacon/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var logFormat string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the discovery daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:  logLevel,
				LogFormat: logFormat,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "Override log format (console, json)")
	return cmd
}
