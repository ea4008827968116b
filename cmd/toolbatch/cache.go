package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persistent tool cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Print cache and snapshot statistics",
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
				stats := eng.Stats()
				if err := eng.Close(ctx); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), stats)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the snapshot file",
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
				eng.Reset()
				clearErr := eng.Snapshotter().Clear()
				if err := eng.Close(ctx); err != nil {
					return err
				}
				if clearErr != nil {
					return clearErr
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", eng.Snapshotter().Path())
				return err
			},
		},
	)
	return cmd
}
