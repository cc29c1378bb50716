package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Metadata keys carried by every chunk.
const (
	MetaFile         = "file"
	MetaNodeType     = "node_type"
	MetaDepth        = "depth"
	MetaPriority     = "priority"
	MetaContextLines = "context_lines"
)

// CodeChunk is the atomic indexed unit: a contiguous fragment of source
// text with precise line range and metadata.
type CodeChunk struct {
	// ID is stable across reindexes: identical input bytes produce the
	// identical ID. See ChunkIDFor.
	ID string

	// Location. Lines are 0-based row indices, inclusive on both ends.
	FilePath  string
	StartLine int
	EndLine   int

	// Content is the trimmed text of the chunk.
	Content string

	Language Language

	// Metadata carries at least file, node_type, depth and priority,
	// plus optional context_lines.
	Metadata map[string]any
}

// ChunkIDFor derives a deterministic chunk ID. Reindexing an unchanged
// file must yield identical IDs, so every input here comes from the
// chunker's deterministic output.
func ChunkIDFor(filePath, nodeKind string, startLine, endLine, priority, index int) string {
	material := fmt.Sprintf("%s|%s|%d|%d|%d|%d", filePath, nodeKind, startLine, endLine, priority, index)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:16])
}

// Priority returns the chunk's extraction priority, 0 when unset.
func (c *CodeChunk) Priority() int {
	if c.Metadata == nil {
		return 0
	}
	switch v := c.Metadata[MetaPriority].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// NodeKind returns the AST node type that produced the chunk.
func (c *CodeChunk) NodeKind() string {
	if c.Metadata == nil {
		return ""
	}
	if s, ok := c.Metadata[MetaNodeType].(string); ok {
		return s
	}
	return ""
}

// LineCount returns the number of lines spanned by the chunk.
func (c *CodeChunk) LineCount() int {
	return c.EndLine - c.StartLine + 1
}

// Validate checks structural invariants of the chunk.
func (c *CodeChunk) Validate() error {
	if c.ID == "" {
		return E(KindConfigInvalid, "chunk ID cannot be empty")
	}
	if c.FilePath == "" {
		return E(KindConfigInvalid, "chunk file path cannot be empty")
	}
	if c.Content == "" {
		return E(KindConfigInvalid, "chunk content cannot be empty")
	}
	if c.StartLine < 0 || c.EndLine < 0 {
		return E(KindConfigInvalid, "line numbers must be non-negative")
	}
	if c.EndLine < c.StartLine {
		return E(KindConfigInvalid, "end line %d precedes start line %d", c.EndLine, c.StartLine)
	}
	if !c.Language.IsValid() {
		return E(KindConfigInvalid, "unknown language %q", c.Language)
	}
	return nil
}
