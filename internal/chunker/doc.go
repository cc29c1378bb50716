// Package chunker divides source files into semantic chunks for
// embedding and search.
//
// Extraction is two-tier. Languages with a bundled tree-sitter grammar
// (Go, JavaScript, TypeScript, Python) are chunked by walking the parse
// tree against per-language NodeRule tables: rules name the node kinds
// that become chunks, their size floors, recursion depth and priority.
// Everything else, and any file whose parse fails, goes through a regex
// fallback that anchors on block starts and accumulates lines until
// braces balance (or per section / fixed window, depending on the
// language).
//
// Chunk IDs are deterministic: two runs over identical bytes produce
// identical ordered chunk sequences with identical IDs. That property
// is what the incremental indexer relies on to skip unchanged files.
package chunker
