package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codectx/codectx/internal/searcher"
	"github.com/codectx/codectx/internal/vectorstore"
)

func newSearchCmd(flags *rootFlags) *cobra.Command {
	var (
		collection string
		k          int
		mode       string
		pathPrefix string
		nodeKind   string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.verbose)
			eng, err := buildEngine(flags.configPath, 0, logger)
			if err != nil {
				return err
			}
			defer eng.close()

			ctx := cmd.Context()
			// BM25 state is in-memory only; rebuild it from the store so
			// keyword and hybrid modes work in a fresh process.
			if err := eng.searcher.EnsureLexical(ctx, collection); err != nil {
				return err
			}

			var filter *vectorstore.Filter
			if pathPrefix != "" || nodeKind != "" {
				filter = &vectorstore.Filter{PathPrefix: pathPrefix, NodeKind: nodeKind}
			}

			resp, err := eng.searcher.Search(ctx, searcher.Request{
				Collection: collection,
				Query:      strings.Join(args, " "),
				K:          k,
				Mode:       searcher.Mode(mode),
				Filter:     filter,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for i, r := range resp.Results {
				fmt.Fprintf(out, "%2d. %s:%d-%d (score %.4f)\n", i+1, r.FilePath, r.StartLine, r.EndLine, r.Score)
				for _, line := range strings.Split(strings.TrimRight(r.Content, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "code", "collection to search")
	cmd.Flags().IntVar(&k, "k", 10, "number of results")
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: hybrid, vector or keyword")
	cmd.Flags().StringVar(&pathPrefix, "path-prefix", "", "only match files under this path prefix")
	cmd.Flags().StringVar(&nodeKind, "node-kind", "", "only match chunks of this node kind")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full response as JSON")
	return cmd
}
