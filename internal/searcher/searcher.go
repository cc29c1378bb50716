// Package searcher is the hybrid retrieval engine: an in-memory BM25
// inverted index for the lexical pass, the vector store for the
// semantic pass, and rank fusion to combine them. The BM25 side is fed
// during indexing and can be rebuilt from the vector store's live
// entries at startup.
package searcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/codectx/codectx/internal/cache"
	"github.com/codectx/codectx/internal/contextsvc"
	"github.com/codectx/codectx/internal/vectorstore"
	"github.com/codectx/codectx/pkg/types"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeHybrid  Mode = "hybrid"  // BM25 + vector with rank fusion
	ModeVector  Mode = "vector"  // semantic only
	ModeKeyword Mode = "keyword" // BM25 only
)

// Request is one search invocation.
type Request struct {
	Collection string
	Query      string
	K          int
	Mode       Mode
	Filter     *vectorstore.Filter
	Fusion     FusionConfig
	// NoCache bypasses the query cache for this request.
	NoCache bool
}

// Response carries results plus retrieval metadata.
type Response struct {
	Results      []types.SearchResult `json:"results"`
	Mode         Mode                 `json:"mode"`
	Duration     time.Duration        `json:"duration"`
	CacheHit     bool                 `json:"cache_hit"`
	LexicalHits  int                  `json:"lexical_hits"`
	SemanticHits int                  `json:"semantic_hits"`
}

// RerankFunc optionally reorders fused results before they are
// returned. It runs outside the retrieval critical path and must not
// add or drop candidates.
type RerankFunc func(ctx context.Context, query string, results []types.SearchResult) []types.SearchResult

// Searcher owns the per-collection BM25 indexes and coordinates the
// two retrieval passes.
type Searcher struct {
	svc    *contextsvc.Service
	cache  cache.Cache
	logger *slog.Logger
	rerank RerankFunc

	mu      sync.RWMutex
	indexes map[string]*bm25Index

	cacheTTL time.Duration
}

// Options configures New. Cache may be nil to disable query caching.
type Options struct {
	Service  *contextsvc.Service
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *slog.Logger
	Rerank   RerankFunc
}

// New builds a searcher.
func New(opts Options) (*Searcher, error) {
	if opts.Service == nil {
		return nil, types.E(types.KindConfigInvalid, "searcher requires a context service")
	}
	c := opts.Cache
	if c == nil {
		c = cache.NewNull()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Searcher{
		svc:      opts.Service,
		cache:    c,
		logger:   logger,
		rerank:   opts.Rerank,
		indexes:  make(map[string]*bm25Index),
		cacheTTL: ttl,
	}, nil
}

// index returns the BM25 index for a collection, creating it on first
// use.
func (s *Searcher) index(collection string) *bm25Index {
	s.mu.RLock()
	x, ok := s.indexes[collection]
	s.mu.RUnlock()
	if ok {
		return x
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if x, ok = s.indexes[collection]; ok {
		return x
	}
	x = newBM25Index()
	s.indexes[collection] = x
	return x
}

// AddChunks feeds freshly indexed chunks into the lexical index and
// invalidates cached queries for the collection.
func (s *Searcher) AddChunks(collection string, metas []vectorstore.ChunkMeta) {
	x := s.index(collection)
	for _, m := range metas {
		x.Add(m)
	}
	s.invalidate(collection)
}

// RemoveChunks drops chunks from the lexical index.
func (s *Searcher) RemoveChunks(collection string, chunkIDs []string) {
	x := s.index(collection)
	for _, id := range chunkIDs {
		x.Remove(id)
	}
	s.invalidate(collection)
}

// RemoveFile drops every chunk of one file from the lexical index.
func (s *Searcher) RemoveFile(collection, filePath string) {
	s.index(collection).RemoveFile(filePath)
	s.invalidate(collection)
}

// DropCollection forgets the lexical index of a collection.
func (s *Searcher) DropCollection(collection string) {
	s.mu.Lock()
	delete(s.indexes, collection)
	s.mu.Unlock()
	s.invalidate(collection)
}

// Rebuild reloads the lexical index from the vector store's live
// entries. Called at startup for collections that should serve keyword
// queries immediately.
func (s *Searcher) Rebuild(ctx context.Context, collection string) error {
	metas, err := s.svc.Store().Entries(ctx, collection)
	if err != nil {
		return err
	}
	s.index(collection).Rebuild(metas)
	s.invalidate(collection)
	return nil
}

// EnsureLexical rebuilds the lexical index from the store when it is
// empty, so keyword and hybrid modes work in a process that has not
// indexed anything yet.
func (s *Searcher) EnsureLexical(ctx context.Context, collection string) error {
	if s.index(collection).Len() > 0 {
		return nil
	}
	return s.Rebuild(ctx, collection)
}

func (s *Searcher) invalidate(collection string) {
	if err := s.cache.InvalidatePrefix(context.Background(), cache.NamespaceQueries, collection+"/"); err != nil {
		s.logger.Debug("query cache invalidation failed", "collection", collection, "error", err)
	}
}

// Search runs one retrieval request.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if req.Query == "" {
		return nil, types.E(types.KindConfigInvalid, "search query is empty")
	}
	if req.K <= 0 {
		return &Response{Results: []types.SearchResult{}, Mode: req.Mode, Duration: time.Since(start)}, nil
	}
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}

	cacheKey := s.cacheKey(req)
	if !req.NoCache {
		if resp, ok := s.fromCache(ctx, cacheKey); ok {
			resp.CacheHit = true
			resp.Duration = time.Since(start)
			return resp, nil
		}
	}

	var resp *Response
	var err error
	switch req.Mode {
	case ModeHybrid:
		resp, err = s.hybridSearch(ctx, req)
	case ModeVector:
		resp, err = s.vectorSearch(ctx, req)
	case ModeKeyword:
		resp, err = s.keywordSearch(ctx, req)
	default:
		return nil, types.E(types.KindConfigInvalid, "unknown search mode %q", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	if s.rerank != nil {
		resp.Results = s.rerank(ctx, req.Query, resp.Results)
	}
	resp.Mode = req.Mode
	resp.Duration = time.Since(start)

	if !req.NoCache && len(resp.Results) > 0 {
		s.toCache(ctx, cacheKey, resp)
	}
	return resp, nil
}

type passResult struct {
	results []types.SearchResult
	err     error
}

// hybridSearch runs both passes in parallel over a widened candidate
// window, then fuses.
func (s *Searcher) hybridSearch(ctx context.Context, req Request) (*Response, error) {
	window := req.K * 2

	lexCh := make(chan passResult, 1)
	semCh := make(chan passResult, 1)

	go func() {
		hits := s.index(req.Collection).Search(req.Query, window, req.Filter)
		lexCh <- passResult{results: lexicalResults(hits)}
	}()
	go func() {
		results, err := s.svc.Search(ctx, req.Collection, req.Query, window, req.Filter)
		semCh <- passResult{results: results, err: err}
	}()

	var lex, sem passResult
	for i := 0; i < 2; i++ {
		select {
		case lex = <-lexCh:
			lexCh = nil
		case sem = <-semCh:
			semCh = nil
		case <-ctx.Done():
			return nil, types.Wrap(types.KindCancelled, ctx.Err(), "search cancelled")
		}
	}

	// One failed pass degrades to the other; both failing is an error.
	if sem.err != nil && len(lex.results) == 0 {
		return nil, sem.err
	}
	if sem.err != nil {
		s.logger.Warn("semantic pass failed, serving lexical only",
			"collection", req.Collection, "kind", string(types.KindOf(sem.err)), "error", sem.err)
	}

	results := fuse(lex.results, sem.results, req.K, req.Fusion)
	return &Response{
		Results:      results,
		LexicalHits:  len(lex.results),
		SemanticHits: len(sem.results),
	}, nil
}

func (s *Searcher) vectorSearch(ctx context.Context, req Request) (*Response, error) {
	results, err := s.svc.Search(ctx, req.Collection, req.Query, req.K, req.Filter)
	if err != nil {
		return nil, err
	}
	return &Response{Results: results, SemanticHits: len(results)}, nil
}

func (s *Searcher) keywordSearch(ctx context.Context, req Request) (*Response, error) {
	hits := s.index(req.Collection).Search(req.Query, req.K, req.Filter)
	return &Response{Results: lexicalResults(hits), LexicalHits: len(hits)}, nil
}

// lexicalResults converts BM25 hits into full search results.
func lexicalResults(hits []lexicalHit) []types.SearchResult {
	out := make([]types.SearchResult, len(hits))
	for i, h := range hits {
		out[i] = types.SearchResult{
			ChunkID:   h.ChunkID,
			Score:     h.Score,
			FilePath:  h.Meta.FilePath,
			StartLine: h.Meta.StartLine,
			EndLine:   h.Meta.EndLine,
			Content:   h.Meta.Content,
			Metadata:  h.Meta.Extra,
		}
	}
	return out
}

// cacheKey canonicalizes a request. The collection prefixes the key so
// per-collection invalidation can use InvalidatePrefix.
func (s *Searcher) cacheKey(req Request) string {
	var filters []string
	if req.Filter != nil {
		filters = []string{req.Filter.PathPrefix, req.Filter.NodeKind}
	}
	return req.Collection + "/" + cache.QueryKey(req.Collection, req.Query, req.K, string(req.Mode), filters)
}

func (s *Searcher) fromCache(ctx context.Context, key string) (*Response, bool) {
	raw, ok, err := s.cache.Get(ctx, cache.NamespaceQueries, key)
	if err != nil || !ok {
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (s *Searcher) toCache(ctx context.Context, key string, resp *Response) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.NamespaceQueries, key, raw, s.cacheTTL); err != nil {
		s.logger.Debug("query cache write failed", "error", err)
	}
}
