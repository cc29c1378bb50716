// codectx indexes source trees into searchable collections and answers
// hybrid (lexical + semantic) context queries, as a CLI or as a stdio
// MCP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codectx/codectx/pkg/types"
)

// Exit codes: configuration problems are distinguishable from runtime
// failures so wrappers can react without parsing output.
const (
	exitOK        = 0
	exitConfig    = 2
	exitRuntime   = 3
	exitCancelled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		reportError(err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitOK)
}

// reportError writes a human line plus a machine-readable line with the
// error kind and context to stderr.
func reportError(err error) {
	fmt.Fprintf(os.Stderr, "codectx: %v\n", err)

	detail := map[string]any{"kind": string(types.KindOf(err))}
	var te *types.Error
	if errors.As(err, &te) && len(te.Context) > 0 {
		detail["context"] = te.Context
	}
	if raw, jerr := json.Marshal(detail); jerr == nil {
		fmt.Fprintln(os.Stderr, string(raw))
	}
}

func exitCode(err error) int {
	switch types.KindOf(err) {
	case types.KindConfigInvalid, types.KindConfigMissing,
		types.KindProviderUnknown, types.KindProviderInit:
		return exitConfig
	case types.KindCancelled:
		return exitCancelled
	default:
		return exitRuntime
	}
}
