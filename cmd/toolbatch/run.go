package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolbatch/batch"
)

// batchEntry accepts arguments either as a JSON object or as a string
// holding one.
type batchEntry struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (a *app) newRunCmd() *cobra.Command {
	var (
		maxConcurrency int
		timeout        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <batch.json>",
		Short: "Execute a batch of tool calls and print the results",
		Long: `Execute a JSON array of calls: [{"id": "...", "name": "read_file", "arguments": {...}}].
Use "-" to read the batch from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.readBatch(cmd, args[0])
			if err != nil {
				return err
			}
			calls, err := decodeBatch(data)
			if err != nil {
				return err
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			eng, err := a.newEngine(ctx, cfg)
			if err != nil {
				return err
			}

			results := eng.Execute(ctx, calls, batch.Options{
				MaxConcurrency: maxConcurrency,
				CallTimeout:    timeout,
			})
			if err := eng.Close(ctx); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "parallel calls in flight (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-call timeout (default from config)")
	return cmd
}

func (a *app) readBatch(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return data, nil
}

func decodeBatch(data []byte) ([]batch.Call, error) {
	var entries []batchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	calls := make([]batch.Call, len(entries))
	for i, e := range entries {
		raw := bytes.TrimSpace(e.Arguments)
		args := string(raw)
		if len(raw) > 0 && raw[0] == '"' {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("decode batch: call %d arguments: %w", i, err)
			}
		}
		calls[i] = batch.Call{ID: e.ID, Name: e.Name, Arguments: args}
	}
	return calls, nil
}
