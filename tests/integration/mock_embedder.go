// Package integration exercises the full engine stack end to end:
// walker, chunker, embedder, vector store, metastore, lexical index
// and search, with only the embedding backend replaced by an
// instrumented local implementation.
package integration

import (
	"context"
	"sync/atomic"

	"github.com/codectx/codectx/internal/embedder"
)

// countingEmbedder wraps a deterministic local embedder and counts
// provider traffic, so tests can assert what the cache and the
// incremental diff actually saved.
type countingEmbedder struct {
	embedder.Embedder
	batchCalls atomic.Int64
	texts      atomic.Int64

	// beforeBatch, when set, runs at the start of every EmbedBatch.
	// Tests use it to hold a batch open while they cancel the
	// operation.
	beforeBatch func()
}

func newCountingEmbedder(dims int) *countingEmbedder {
	return &countingEmbedder{Embedder: embedder.NewLocal(dims)}
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.beforeBatch != nil {
		c.beforeBatch()
	}
	c.batchCalls.Add(1)
	c.texts.Add(int64(len(texts)))
	return c.Embedder.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
