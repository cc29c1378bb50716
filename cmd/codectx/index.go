package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codectx/codectx/internal/indexer"
	"github.com/codectx/codectx/pkg/types"
)

func newIndexCmd(flags *rootFlags) *cobra.Command {
	var (
		collection string
		workers    int
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "index <root>",
		Short: "Index a directory into a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.verbose)
			eng, err := buildEngine(flags.configPath, workers, logger)
			if err != nil {
				return err
			}
			defer eng.close()

			ctx := cmd.Context()
			root := args[0]

			report, err := eng.indexer.IndexDirectory(ctx, root, collection)
			if report != nil {
				printReport(cmd, report)
			}
			if err != nil {
				return err
			}

			if watch {
				w, err := indexer.NewWatcher(eng.indexer, indexer.WatchOptions{
					Root:       root,
					Collection: collection,
					Logger:     logger,
				})
				if err != nil {
					return err
				}
				return w.Run(ctx)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "code", "collection to index into")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent file workers (0 = default)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-index on file changes")
	return cmd
}

func printReport(cmd *cobra.Command, r *types.IndexReport) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"collection=%s indexed=%d skipped=%d removed=%d failed=%d chunks=%d duration=%s\n",
		r.Collection, r.Indexed, r.Skipped, r.Removed, r.Failed, r.Chunks, r.Duration.Round(time.Millisecond))
	for _, fe := range r.FileErrors {
		fmt.Fprintf(cmd.OutOrStdout(), "failed %s: %s\n", fe.Path, fe.Err)
	}
	if r.Cancelled {
		fmt.Fprintln(cmd.OutOrStdout(), "operation cancelled; completed work was kept")
	}
}
