package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonwraymond/toolbatch/config"
	"github.com/jonwraymond/toolbatch/engine"
	"github.com/jonwraymond/toolbatch/internal/localtools"
)

// app carries state shared by every subcommand.
type app struct {
	fs afero.Fs
	v  *viper.Viper
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs, v: viper.New()}
	a.v.SetFs(fs)

	rootCmd := &cobra.Command{
		Use:   "toolbatch",
		Short: "Run tool call batches with caching and prefetching",
		Long: `toolbatch executes batches of tool calls the way a coding agent does:
read-only calls run in parallel, writes run in order, and results are cached
across runs in a snapshot file.

Examples:
  toolbatch run calls.json
  toolbatch run calls.json --max-concurrency 2
  toolbatch cache stats
  toolbatch health --config toolbatch.yaml`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = a.v.BindPFlag("observe.logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(
		a.newRunCmd(),
		a.newCacheCmd(),
		a.newHealthCmd(),
	)
	return rootCmd
}

func (a *app) loadConfig() (config.Config, error) {
	return config.LoadViper(a.v, a.v.GetString("config"))
}

// newEngine builds an engine over the local file tools. Relative paths
// resolve against cache.base_dir, else the working directory.
func (a *app) newEngine(ctx context.Context, cfg config.Config) (*engine.Engine, error) {
	if cfg.Cache.BaseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Cache.BaseDir = wd
		}
	}
	exec := localtools.New(a.fs, cfg.Cache.BaseDir)
	return engine.New(ctx, cfg, exec, engine.WithFs(a.fs))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
