package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolbatch/health"
)

var errUnhealthy = errors.New("toolbatch: unhealthy")

func (a *app) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print component health; exits non-zero when unhealthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			eng, err := a.newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			report := eng.Health(ctx)
			if err := eng.Close(ctx); err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Status == health.StatusUnhealthy {
				return errUnhealthy
			}
			return nil
		},
	}
}
