// Package contextsvc is the narrow waist between orchestration and the
// pluggable providers: it embeds text (cache-aware), stores chunks and
// runs semantic searches. The indexer and the search surfaces talk to
// this package, never to the embedder or vector store directly.
package contextsvc

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"

	"github.com/codectx/codectx/internal/cache"
	"github.com/codectx/codectx/internal/embedder"
	"github.com/codectx/codectx/internal/tracker"
	"github.com/codectx/codectx/internal/vectorstore"
	"github.com/codectx/codectx/pkg/types"
)

// Service wires the embedder, vector store and cache together.
type Service struct {
	embedder embedder.Embedder
	store    vectorstore.Store
	cache    cache.Cache
	metrics  *tracker.Metrics
	logger   *slog.Logger
}

// Options configures New. Cache and Metrics may be nil; a nil cache
// disables memoization via the null cache.
type Options struct {
	Embedder embedder.Embedder
	Store    vectorstore.Store
	Cache    cache.Cache
	Metrics  *tracker.Metrics
	Logger   *slog.Logger
}

// New builds the service.
func New(opts Options) (*Service, error) {
	if opts.Embedder == nil {
		return nil, types.E(types.KindConfigInvalid, "context service requires an embedder")
	}
	if opts.Store == nil {
		return nil, types.E(types.KindConfigInvalid, "context service requires a vector store")
	}
	c := opts.Cache
	if c == nil {
		c = cache.NewNull()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder: opts.Embedder,
		store:    opts.Store,
		cache:    c,
		metrics:  opts.Metrics,
		logger:   logger,
	}, nil
}

// Store exposes the underlying vector store for collection management.
func (s *Service) Store() vectorstore.Store {
	return s.store
}

// Dimensions reports the embedding dimensionality in effect.
func (s *Service) Dimensions() int {
	return s.embedder.Dimensions()
}

// EmbedText returns the embedding for one text, memoized by
// (provider, model, text).
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds a batch, serving cache hits locally and fetching
// only the misses from the provider. Output is index-aligned with the
// input. Batches beyond the provider limit are split transparently.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, types.E(types.KindConfigInvalid, "embed batch is empty")
	}

	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		key := cache.EmbeddingKey(s.embedder.ProviderName(), s.embedder.Model(), text)
		raw, ok, err := s.cache.Get(ctx, cache.NamespaceEmbeddings, key)
		if err == nil && ok {
			if v, decErr := decodeVector(raw); decErr == nil && len(v) == s.embedder.Dimensions() {
				out[i] = v
				s.countCache(true)
				continue
			}
		}
		s.countCache(false)
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	for start := 0; start < len(missTexts); start += embedder.MaxBatchSize {
		end := start + embedder.MaxBatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vectors, err := s.embedder.EmbedBatch(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, v := range vectors {
			i := missIdx[start+j]
			out[i] = v
			key := cache.EmbeddingKey(s.embedder.ProviderName(), s.embedder.Model(), texts[i])
			if err := s.cache.Set(ctx, cache.NamespaceEmbeddings, key, encodeVector(v), 0); err != nil {
				s.logger.Debug("embedding cache write failed", "error", err)
			}
		}
		if s.metrics != nil {
			s.metrics.EmbeddingsGenerated.Add(int64(len(vectors)))
		}
	}
	return out, nil
}

// Search embeds the query and runs a semantic top-k over the store.
func (s *Service) Search(ctx context.Context, collection, query string, k int, filter *vectorstore.Filter) ([]types.SearchResult, error) {
	vector, err := s.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := s.store.Search(ctx, collection, vector, k, filter)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SearchesServed.Add(1)
	}
	return results, nil
}

// StoreChunks embeds chunk contents (cache-aware) and inserts them
// into the collection. Returns the stored chunk IDs in input order.
func (s *Service) StoreChunks(ctx context.Context, collection string, chunks []*types.CodeChunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}

	metas := make([]vectorstore.ChunkMeta, len(chunks))
	for i, c := range chunks {
		metas[i] = vectorstore.ChunkMeta{
			ChunkID:   c.ID,
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Content:   c.Content,
			Extra:     c.Metadata,
		}
	}

	ids, err := s.store.Insert(ctx, collection, vectors, metas)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.VectorsStored.Add(int64(len(ids)))
	}
	return ids, nil
}

func (s *Service) countCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.Add(1)
	} else {
		s.metrics.CacheMisses.Add(1)
	}
}

// encodeVector packs a vector as little-endian f32 for cache storage.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, types.E(types.KindInternal, "cached vector has %d bytes", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
