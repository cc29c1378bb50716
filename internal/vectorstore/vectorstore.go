// Package vectorstore stores and searches fixed-dimension vectors in
// named collections.
//
// Two implementations share one contract: FSStore persists collections
// as append-only shard files plus a journaled index under one directory
// per collection, and Memory keeps everything in process for tests.
// Search is an exact linear scan over live index entries by cosine
// similarity; results are ordered by score descending with ties broken
// by chunk ID ascending so identical stores return identical rankings.
package vectorstore

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/codectx/codectx/pkg/types"
)

// Provider names registered with the provider registry.
const (
	ProviderFS     = "fs"
	ProviderMemory = "memory"
)

// ChunkMeta is the metadata carried alongside each stored vector. It is
// everything search needs to return a full result without a second
// lookup.
type ChunkMeta struct {
	ChunkID   string         `json:"chunk_id"`
	FilePath  string         `json:"file_path"`
	StartLine int            `json:"start_line"`
	EndLine   int            `json:"end_line"`
	Content   string         `json:"content"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// CollectionInfo describes one collection.
type CollectionInfo struct {
	Name       string
	Dimensions int
	CreatedAt  time.Time
	Vectors    int
}

// Filter narrows search results by metadata.
type Filter struct {
	// PathPrefix keeps only chunks whose file path starts with it.
	PathPrefix string
	// NodeKind keeps only chunks whose node_type metadata matches.
	NodeKind string
}

// Matches reports whether the filter admits the given metadata. A nil
// filter admits everything.
func (f *Filter) Matches(meta *ChunkMeta) bool {
	if f == nil {
		return true
	}
	if f.PathPrefix != "" && !hasPrefix(meta.FilePath, f.PathPrefix) {
		return false
	}
	if f.NodeKind != "" {
		kind, _ := meta.Extra[types.MetaNodeType].(string)
		if kind != f.NodeKind {
			return false
		}
	}
	return true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Store is the vector store contract. Implementations serialize
// inserts per collection; searches observe a consistent snapshot and
// never return partially inserted vectors.
type Store interface {
	CreateCollection(ctx context.Context, name string, dimensions int) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]CollectionInfo, error)

	// Insert adds vectors with their metadata. Both slices must have
	// equal length and every vector must match the collection's
	// dimensions; on violation nothing is stored. Returns the chunk
	// IDs in input order.
	Insert(ctx context.Context, collection string, vectors [][]float32, metas []ChunkMeta) ([]string, error)

	// Search returns the top k results by cosine similarity,
	// descending, ties by chunk ID ascending. k <= 0 returns an empty
	// slice; k beyond the population returns everything ranked.
	Search(ctx context.Context, collection string, query []float32, k int, filter *Filter) ([]types.SearchResult, error)

	// Delete tombstones the given chunk IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, collection string, chunkIDs []string) error

	// DeleteByFile tombstones every chunk of one file and reports how
	// many were removed.
	DeleteByFile(ctx context.Context, collection, filePath string) (int, error)

	// Entries snapshots the live metadata of a collection, ordered by
	// chunk ID. Used to rebuild derived indexes (BM25).
	Entries(ctx context.Context, collection string) ([]ChunkMeta, error)

	// Flush is the durability barrier: after it returns, all prior
	// inserts and deletes survive restart.
	Flush(ctx context.Context, collection string) error

	Close() error
}

// Cosine computes cosine similarity between two equal-length vectors.
// Zero-norm vectors score 0.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// scored pairs a result with its similarity for ranking.
type scored struct {
	meta  *ChunkMeta
	score float64
}

// rank orders hits by score descending, ties by chunk ID ascending,
// and converts the top k into SearchResults.
func rank(hits []scored, k int) []types.SearchResult {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].meta.ChunkID < hits[j].meta.ChunkID
	})
	if k < len(hits) {
		hits = hits[:k]
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, h := range hits {
		score := h.score
		if score < 0 {
			score = 0
		}
		results = append(results, types.SearchResult{
			ChunkID:   h.meta.ChunkID,
			Score:     score,
			FilePath:  h.meta.FilePath,
			StartLine: h.meta.StartLine,
			EndLine:   h.meta.EndLine,
			Content:   h.meta.Content,
			Metadata:  h.meta.Extra,
		})
	}
	return results
}

// validateInsert checks the shared Insert preconditions.
func validateInsert(dims int, vectors [][]float32, metas []ChunkMeta) error {
	if len(vectors) != len(metas) {
		return types.E(types.KindConfigInvalid, "insert got %d vectors but %d metadata records", len(vectors), len(metas))
	}
	for i, v := range vectors {
		if len(v) != dims {
			return types.E(types.KindConfigInvalid, "vector %d has %d dimensions, collection expects %d", i, len(v), dims)
		}
		if metas[i].ChunkID == "" {
			return types.E(types.KindConfigInvalid, "metadata %d has no chunk ID", i)
		}
	}
	return nil
}
