// Package embedder generates vector embeddings for chunk text.
//
// Four providers share one contract: null (deterministic hash vectors
// for tests), local (in-process token feature hashing), remote (an
// OpenAI-compatible HTTP endpoint with retry, rate limiting and a
// 30-second per-call timeout) and gemini (Google GenAI). The provider
// is selected by configuration through the provider registry.
//
// Invariants: every vector an instance produces has length
// Dimensions(), and EmbedBatch output is index-aligned with its input.
package embedder
