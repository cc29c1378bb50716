package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/codectx/codectx/internal/metastore"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "codectx %s\n", version)
			fmt.Fprintf(out, "build time: %s\n", buildTime)
			fmt.Fprintf(out, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "sqlite driver: %s (%s)\n", metastore.DriverName, metastore.BuildMode)
		},
	}
}
