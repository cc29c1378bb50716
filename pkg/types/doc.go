// Package types provides shared type definitions for the codectx engine.
//
// This package defines the domain types used across components: languages,
// code chunks, search results, index reports and the coded error taxonomy.
//
// # Core Types
//
// CodeChunk represents a contiguous, semantically meaningful fragment of
// source text, the unit of embedding and retrieval:
//
//	chunk := &types.CodeChunk{
//	    ID:        types.ChunkIDFor("pkg/server.go", "function_declaration", 10, 42, 10, 0),
//	    FilePath:  "pkg/server.go",
//	    StartLine: 10,
//	    EndLine:   42,
//	    Content:   functionBody,
//	    Language:  types.LangGo,
//	}
//
// Chunk IDs are deterministic: reindexing a file whose bytes have not
// changed yields the identical ID set, which is what makes incremental
// indexing possible.
//
// # Errors
//
// Engine errors carry a machine-readable kind that drives retry policy,
// CLI exit codes and log tags:
//
//	err := types.E(types.KindProviderUnknown, "no such provider %q", name).
//	    With("category", "embedding")
//
//	if types.IsTransient(err) {
//	    // eligible for backoff retry
//	}
//
// Kinds classify, they do not replace wrapping: use types.Wrap to keep
// the cause chain intact for errors.Is / errors.As.
package types
