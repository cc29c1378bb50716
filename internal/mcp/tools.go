package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codectx/codectx/internal/searcher"
	"github.com/codectx/codectx/internal/vectorstore"
	"github.com/codectx/codectx/pkg/types"
)

// JSON-RPC error codes surfaced to MCP clients.
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
	ErrorCodeStoreCorrupt  = -32001
	ErrorCodeQuotaExceeded = -32002
	ErrorCodeCancelled     = -32003
)

// DefaultCollection is used when a tool call omits the collection.
const DefaultCollection = "code"

const maxSearchLimit = 100

// handleIndexDirectory runs an index operation and reports the outcome.
func (s *Server) handleIndexDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, paramError("invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, paramError("path parameter is required", map[string]any{"param": "path"})
	}
	if err := validateRoot(path); err != nil {
		return nil, paramError("invalid path", map[string]any{"param": "path", "reason": err.Error()})
	}
	collection := getStringDefault(args, "collection", DefaultCollection)

	report, err := s.indexer.IndexDirectory(ctx, path, collection)
	if err != nil && !types.IsKind(err, types.KindCancelled) {
		return nil, toolError(err)
	}

	response := map[string]any{
		"operation_id": report.OperationID,
		"collection":   report.Collection,
		"total_files":  report.TotalFiles,
		"indexed":      report.Indexed,
		"skipped":      report.Skipped,
		"removed":      report.Removed,
		"failed":       report.Failed,
		"chunks":       report.Chunks,
		"duration_ms":  report.Duration.Milliseconds(),
		"cancelled":    report.Cancelled,
	}
	if len(report.FileErrors) > 0 {
		errs := report.FileErrors
		if len(errs) > 5 {
			response["error_count"] = len(errs)
			errs = errs[:5]
		}
		response["errors"] = errs
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchContext serves one retrieval request.
func (s *Server) handleSearchContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, paramError("invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, paramError("query parameter is required", map[string]any{"param": "query"})
	}
	collection := getStringDefault(args, "collection", DefaultCollection)
	k := getIntDefault(args, "k", 10)
	if k < 1 || k > maxSearchLimit {
		return nil, paramError(fmt.Sprintf("k must be between 1 and %d", maxSearchLimit),
			map[string]any{"param": "k", "value": k})
	}
	mode := searcher.Mode(getStringDefault(args, "mode", string(searcher.ModeHybrid)))
	switch mode {
	case searcher.ModeHybrid, searcher.ModeVector, searcher.ModeKeyword:
	default:
		return nil, paramError("invalid mode", map[string]any{
			"param": "mode", "value": string(mode),
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	var filter *vectorstore.Filter
	pathPrefix := getStringDefault(args, "path_prefix", "")
	nodeKind := getStringDefault(args, "node_kind", "")
	if pathPrefix != "" || nodeKind != "" {
		filter = &vectorstore.Filter{PathPrefix: pathPrefix, NodeKind: nodeKind}
	}

	if mode != searcher.ModeVector {
		if err := s.searcher.EnsureLexical(ctx, collection); err != nil {
			return nil, toolError(err)
		}
	}

	resp, err := s.searcher.Search(ctx, searcher.Request{
		Collection: collection,
		Query:      query,
		K:          k,
		Mode:       mode,
		Filter:     filter,
	})
	if err != nil {
		return nil, toolError(err)
	}

	response := map[string]any{
		"results":       resp.Results,
		"mode":          resp.Mode,
		"cache_hit":     resp.CacheHit,
		"lexical_hits":  resp.LexicalHits,
		"semantic_hits": resp.SemanticHits,
		"duration_ms":   resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListCollections lists vector collections with their stats.
func (s *Server) handleListCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := s.svc.Store().ListCollections(ctx)
	if err != nil {
		return nil, toolError(err)
	}
	list := make([]map[string]any, len(infos))
	for i, info := range infos {
		list[i] = map[string]any{
			"name":       info.Name,
			"dimensions": info.Dimensions,
			"vectors":    info.Vectors,
		}
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{"collections": list})), nil
}

// handleIndexingStatus reports operation state: one operation by ID, or
// the recent operations plus engine counters.
func (s *Server) handleIndexingStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)

	if opID := getStringDefault(args, "operation_id", ""); opID != "" {
		op := s.tracker.Get(opID)
		if op == nil {
			return nil, paramError("unknown operation", map[string]any{"operation_id": opID})
		}
		return mcp.NewToolResultText(formatJSON(map[string]any{"operation": op})), nil
	}

	ops := s.tracker.List()
	const maxOps = 20
	if len(ops) > maxOps {
		ops = ops[:maxOps]
	}
	response := map[string]any{
		"operations": ops,
		"metrics":    s.tracker.Metrics().Snapshot(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAddObservation records a free-form note against a project.
func (s *Server) handleAddObservation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, paramError("invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, paramError("path parameter is required", map[string]any{"param": "path"})
	}
	if err := validateRoot(path); err != nil {
		return nil, paramError("invalid path", map[string]any{"param": "path", "reason": err.Error()})
	}
	content, ok := args["content"].(string)
	if !ok || content == "" {
		return nil, paramError("content parameter is required", map[string]any{"param": "content"})
	}
	kind := getStringDefault(args, "kind", "note")

	project, err := s.meta.GetOrCreateProject(ctx, path)
	if err != nil {
		return nil, toolError(err)
	}
	obs, err := s.meta.AddObservation(ctx, project.ID, content, kind)
	if err != nil {
		return nil, toolError(err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{"observation": obs})), nil
}

// handleSearchObservations runs a full-text search over project notes.
func (s *Server) handleSearchObservations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, paramError("invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, paramError("path parameter is required", map[string]any{"param": "path"})
	}
	if err := validateRoot(path); err != nil {
		return nil, paramError("invalid path", map[string]any{"param": "path", "reason": err.Error()})
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, paramError("query parameter is required", map[string]any{"param": "query"})
	}
	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > maxSearchLimit {
		return nil, paramError(fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit),
			map[string]any{"param": "limit", "value": limit})
	}

	project, err := s.meta.GetOrCreateProject(ctx, path)
	if err != nil {
		return nil, toolError(err)
	}
	obs, err := s.meta.SearchObservations(ctx, project.ID, query, limit)
	if err != nil {
		return nil, toolError(err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{"observations": obs})), nil
}

// Error is a JSON-RPC error carried back through the MCP framework.
type Error struct {
	Code    int
	Message string
	Data    any
}

func (e *Error) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

func paramError(message string, data any) error {
	return &Error{Code: ErrorCodeInvalidParams, Message: message, Data: data}
}

// toolError maps engine error kinds onto JSON-RPC codes.
func toolError(err error) error {
	code := ErrorCodeInternalError
	switch types.KindOf(err) {
	case types.KindConfigInvalid, types.KindConfigMissing, types.KindProviderUnknown:
		code = ErrorCodeInvalidParams
	case types.KindStoreCorrupt:
		code = ErrorCodeStoreCorrupt
	case types.KindQuotaExceeded:
		code = ErrorCodeQuotaExceeded
	case types.KindCancelled:
		code = ErrorCodeCancelled
	}
	return &Error{Code: code, Message: err.Error()}
}

// validateRoot checks that path is an absolute, readable directory.
func validateRoot(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory")
	}
	return nil
}

func formatJSON(data map[string]any) string {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(raw)
}

func getStringDefault(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func getIntDefault(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
