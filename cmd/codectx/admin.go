package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codectx/codectx/internal/metastore"
)

func newAdminCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operational commands",
	}
	cmd.AddCommand(
		newAdminHealthCmd(flags),
		newAdminMetricsCmd(flags),
		newAdminIndexingStatusCmd(flags),
	)
	return cmd
}

func newAdminHealthCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the embedder and the stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(flags.configPath, 0, newLogger(flags.verbose))
			if err != nil {
				return err
			}
			defer eng.close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			status := map[string]any{
				"embedder": map[string]any{
					"provider":   eng.embedder.ProviderName(),
					"model":      eng.embedder.Model(),
					"dimensions": eng.embedder.Dimensions(),
					"ok":         true,
				},
				"database": map[string]any{
					"driver":     metastore.DriverName,
					"build_mode": metastore.BuildMode,
					"ok":         true,
				},
			}

			healthy := true
			if err := eng.embedder.HealthCheck(ctx); err != nil {
				status["embedder"].(map[string]any)["ok"] = false
				status["embedder"].(map[string]any)["error"] = err.Error()
				healthy = false
			}
			infos, err := eng.store.ListCollections(ctx)
			vs := map[string]any{"ok": err == nil}
			if err != nil {
				vs["error"] = err.Error()
				healthy = false
			} else {
				vs["collections"] = len(infos)
			}
			status["vector_store"] = vs
			status["healthy"] = healthy

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(status); err != nil {
				return err
			}
			if !healthy {
				return fmt.Errorf("one or more health probes failed")
			}
			return nil
		},
	}
}

func newAdminMetricsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Dump engine counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(flags.configPath, 0, newLogger(flags.verbose))
			if err != nil {
				return err
			}
			defer eng.close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(eng.tracker.Metrics().Snapshot())
		},
	}
}

func newAdminIndexingStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "indexing-status",
		Short: "List recent index operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(flags.configPath, 0, newLogger(flags.verbose))
			if err != nil {
				return err
			}
			defer eng.close()

			ops := eng.tracker.List()
			out := cmd.OutOrStdout()
			if len(ops) == 0 {
				fmt.Fprintln(out, "no operations in this process")
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(ops)
		},
	}
}
