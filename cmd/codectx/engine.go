package main

import (
	"log/slog"
	"time"

	"github.com/codectx/codectx/internal/cache"
	"github.com/codectx/codectx/internal/chunker"
	"github.com/codectx/codectx/internal/config"
	"github.com/codectx/codectx/internal/contextsvc"
	"github.com/codectx/codectx/internal/embedder"
	"github.com/codectx/codectx/internal/events"
	"github.com/codectx/codectx/internal/indexer"
	"github.com/codectx/codectx/internal/metastore"
	"github.com/codectx/codectx/internal/provider"
	"github.com/codectx/codectx/internal/searcher"
	"github.com/codectx/codectx/internal/tracker"
	"github.com/codectx/codectx/internal/vectorstore"
)

// engine is the composed service graph behind every command.
type engine struct {
	cfg      *config.Config
	cache    cache.Cache
	embedder embedder.Embedder
	store    vectorstore.Store
	meta     metastore.Store
	svc      *contextsvc.Service
	searcher *searcher.Searcher
	tracker  *tracker.Tracker
	bus      *events.Bus
	indexer  *indexer.Indexer
	logger   *slog.Logger
}

// newRegistry returns the provider registry with every built-in
// factory installed.
func newRegistry() *provider.Registry {
	reg := provider.NewRegistry()
	embedder.Register(reg)
	vectorstore.Register(reg)
	cache.Register(reg)
	return reg
}

// buildEngine resolves the configured providers and wires the services.
func buildEngine(cfgPath string, workers int, logger *slog.Logger) (*engine, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	reg := newRegistry()

	c, err := resolveCache(reg, cfg)
	if err != nil {
		return nil, err
	}

	emb, err := provider.ResolveAs[embedder.Embedder](reg, provider.CategoryEmbedding, provider.Config{
		Provider: cfg.Providers.Embedding.Provider,
		Settings: map[string]any{
			"model":      cfg.Providers.Embedding.Model,
			"api_key":    cfg.Providers.Embedding.APIKey,
			"base_url":   cfg.Providers.Embedding.BaseURL,
			"dimensions": cfg.Providers.Embedding.Dimensions,
		},
	})
	if err != nil {
		return nil, err
	}

	store, err := provider.ResolveAs[vectorstore.Store](reg, provider.CategoryVectorStore, provider.Config{
		Provider: cfg.Providers.VectorStore.Provider,
		Settings: map[string]any{
			"address": cfg.Providers.VectorStore.Address,
		},
	})
	if err != nil {
		return nil, err
	}

	meta, err := metastore.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	trk := tracker.New()
	bus := events.NewBus()

	svc, err := contextsvc.New(contextsvc.Options{
		Embedder: emb,
		Store:    store,
		Cache:    c,
		Metrics:  trk.Metrics(),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(cfg.System.Infrastructure.Cache.DefaultTTLSecs) * time.Second
	srch, err := searcher.New(searcher.Options{
		Service:  svc,
		Cache:    c,
		CacheTTL: ttl,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	ix, err := indexer.New(indexer.Options{
		Service:  svc,
		Chunker:  chunker.New(),
		Meta:     meta,
		Tracker:  trk,
		Bus:      bus,
		Searcher: srch,
		Logger:   logger,
		Workers:  workers,
	})
	if err != nil {
		return nil, err
	}

	return &engine{
		cfg:      cfg,
		cache:    c,
		embedder: emb,
		store:    store,
		meta:     meta,
		svc:      svc,
		searcher: srch,
		tracker:  trk,
		bus:      bus,
		indexer:  ix,
		logger:   logger,
	}, nil
}

// resolveCache honors the enabled flag: a disabled cache is the null
// variant, never an error.
func resolveCache(reg *provider.Registry, cfg *config.Config) (cache.Cache, error) {
	cc := cfg.System.Infrastructure.Cache
	if !cc.Enabled {
		return cache.NewNull(), nil
	}
	name := cc.Provider
	if name == "" {
		name = cache.ProviderLocal
	}
	return provider.ResolveAs[cache.Cache](reg, provider.CategoryCache, provider.Config{
		Provider: name,
		Settings: map[string]any{
			"max_size":         cc.MaxSize,
			"default_ttl_secs": cc.DefaultTTLSecs,
			"endpoint":         cc.RedisURL,
		},
	})
}

// close releases every owned resource. Errors are logged, not returned:
// shutdown keeps going.
func (e *engine) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing vector store", "error", err)
	}
	if err := e.meta.Close(); err != nil {
		e.logger.Warn("closing metadata store", "error", err)
	}
	if err := e.embedder.Close(); err != nil {
		e.logger.Warn("closing embedder", "error", err)
	}
	if err := e.cache.Close(); err != nil {
		e.logger.Warn("closing cache", "error", err)
	}
}
