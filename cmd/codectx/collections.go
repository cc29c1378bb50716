package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCollectionsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage vector collections",
	}
	cmd.AddCommand(
		newCollectionsListCmd(flags),
		newCollectionsCreateCmd(flags),
		newCollectionsDeleteCmd(flags),
	)
	return cmd
}

func newCollectionsListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections with dimensions and vector counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(flags.configPath, 0, newLogger(flags.verbose))
			if err != nil {
				return err
			}
			defer eng.close()

			infos, err := eng.store.ListCollections(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "no collections")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%s\tdims=%d\tvectors=%d\tcreated=%s\n",
					info.Name, info.Dimensions, info.Vectors, info.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func newCollectionsCreateCmd(flags *rootFlags) *cobra.Command {
	var dimensions int

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(flags.configPath, 0, newLogger(flags.verbose))
			if err != nil {
				return err
			}
			defer eng.close()

			dims := dimensions
			if dims <= 0 {
				dims = eng.svc.Dimensions()
			}
			if err := eng.store.CreateCollection(cmd.Context(), args[0], dims); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (dims=%d)\n", args[0], dims)
			return nil
		},
	}
	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "vector dimensions (default: embedder dimensions)")
	return cmd
}

func newCollectionsDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection and its vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(flags.configPath, 0, newLogger(flags.verbose))
			if err != nil {
				return err
			}
			defer eng.close()

			if err := eng.store.DeleteCollection(cmd.Context(), args[0]); err != nil {
				return err
			}
			eng.searcher.DropCollection(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
