// Package mcp exposes the engine over the Model Context Protocol on
// stdio. The server is a thin adapter: tools validate arguments, call
// into the engine services, and render JSON results. All state lives
// in the services, so the server itself is stateless and safe to
// restart.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codectx/codectx/internal/contextsvc"
	"github.com/codectx/codectx/internal/indexer"
	"github.com/codectx/codectx/internal/metastore"
	"github.com/codectx/codectx/internal/searcher"
	"github.com/codectx/codectx/internal/tracker"
	"github.com/codectx/codectx/pkg/types"
)

// ServerName identifies this server to MCP clients.
const ServerName = "codectx"

// Server wraps the MCP server with the engine services.
type Server struct {
	mcp      *server.MCPServer
	svc      *contextsvc.Service
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	meta     metastore.Store
	tracker  *tracker.Tracker
	logger   *slog.Logger
}

// ServerOptions carries the composed engine. Everything except Logger
// is required.
type ServerOptions struct {
	Version  string
	Service  *contextsvc.Service
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Meta     metastore.Store
	Tracker  *tracker.Tracker
	Logger   *slog.Logger
}

// NewServer builds the MCP server and registers its tools.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Service == nil || opts.Indexer == nil || opts.Searcher == nil ||
		opts.Meta == nil || opts.Tracker == nil {
		return nil, types.E(types.KindConfigInvalid, "mcp server requires all engine services")
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, version),
		svc:      opts.Service,
		indexer:  opts.Indexer,
		searcher: opts.Searcher,
		meta:     opts.Meta,
		tracker:  opts.Tracker,
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.mcp.AddTool(indexDirectoryTool(), s.handleIndexDirectory)
	s.mcp.AddTool(searchContextTool(), s.handleSearchContext)
	s.mcp.AddTool(listCollectionsTool(), s.handleListCollections)
	s.mcp.AddTool(indexingStatusTool(), s.handleIndexingStatus)
	s.mcp.AddTool(addObservationTool(), s.handleAddObservation)
	s.mcp.AddTool(searchObservationsTool(), s.handleSearchObservations)
}

// Serve blocks on the stdio transport until the client disconnects or
// the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.ServeStdio(s.mcp) }()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return types.Wrap(types.KindInternal, err, "mcp stdio transport")
		}
		return nil
	}
}
