package main

import (
	"github.com/spf13/cobra"

	"github.com/codectx/codectx/internal/mcp"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.verbose)
			eng, err := buildEngine(flags.configPath, 0, logger)
			if err != nil {
				return err
			}
			defer eng.close()

			srv, err := mcp.NewServer(mcp.ServerOptions{
				Version:  version,
				Service:  eng.svc,
				Indexer:  eng.indexer,
				Searcher: eng.searcher,
				Meta:     eng.meta,
				Tracker:  eng.tracker,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			logger.Info("mcp server starting", "version", version)
			return srv.Serve(cmd.Context())
		},
	}
}
