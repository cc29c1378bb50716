package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexDirectoryTool returns the tool definition for index_directory.
func indexDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_directory",
		Description: "Index a source directory into a collection to make it searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute path to the directory root to index",
				},
				"collection": map[string]any{
					"type":        "string",
					"description": "Collection name to index into",
					"default":     DefaultCollection,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchContextTool returns the tool definition for search_context.
func searchContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_context",
		Description: "Search an indexed collection with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"collection": map[string]any{
					"type":        "string",
					"description": "Collection to search",
					"default":     DefaultCollection,
				},
				"k": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"mode": map[string]any{
					"type":        "string",
					"description": "Search strategy: hybrid (BM25 + vector), vector (semantic only), or keyword (BM25 only)",
					"enum":        []string{"hybrid", "vector", "keyword"},
					"default":     "hybrid",
				},
				"path_prefix": map[string]any{
					"type":        "string",
					"description": "Only return chunks whose file path starts with this prefix",
				},
				"node_kind": map[string]any{
					"type":        "string",
					"description": "Only return chunks of this node kind (function, method, class, ...)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// listCollectionsTool returns the tool definition for list_collections.
func listCollectionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_collections",
		Description: "List vector collections with dimensions and vector counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}
}

// addObservationTool returns the tool definition for add_observation.
func addObservationTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_observation",
		Description: "Record a free-form note against a project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Note content",
				},
				"kind": map[string]any{
					"type":        "string",
					"description": "Note kind (note, decision, todo, ...)",
					"default":     "note",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

// searchObservationsTool returns the tool definition for search_observations.
func searchObservationsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_observations",
		Description: "Full-text search over a project's recorded notes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
				"query": map[string]any{
					"type":        "string",
					"description": "Full-text query",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of notes to return (1-100)",
					"default":     10,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// indexingStatusTool returns the tool definition for indexing_status.
func indexingStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "indexing_status",
		Description: "Report index operation progress and engine counters",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"operation_id": map[string]any{
					"type":        "string",
					"description": "Inspect one operation instead of listing recent ones",
				},
			},
		},
	}
}
