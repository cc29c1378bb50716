package embedder

import (
	"context"

	"github.com/codectx/codectx/internal/provider"
)

// Register adds the embedding provider factories to the registry. The
// composition root calls this once at startup.
func Register(reg *provider.Registry) {
	reg.Register(provider.CategoryEmbedding, ProviderNull,
		"deterministic hash vectors, for tests",
		func(cfg provider.Config) (any, error) {
			return NewNull(cfg.Int("dimensions")), nil
		})

	reg.Register(provider.CategoryEmbedding, ProviderLocal,
		"in-process token feature hashing",
		func(cfg provider.Config) (any, error) {
			return NewLocal(cfg.Int("dimensions")), nil
		})

	reg.Register(provider.CategoryEmbedding, ProviderRemote,
		"OpenAI-compatible HTTP endpoint",
		func(cfg provider.Config) (any, error) {
			return NewRemote(RemoteOptions{
				BaseURL:    cfg.String("base_url"),
				Model:      cfg.String("model"),
				APIKey:     cfg.String("api_key"),
				Dimensions: cfg.Int("dimensions"),
			})
		})

	reg.Register(provider.CategoryEmbedding, ProviderGemini,
		"Google GenAI embeddings",
		func(cfg provider.Config) (any, error) {
			return NewGemini(context.Background(), cfg.String("api_key"), cfg.String("model"), cfg.Int("dimensions"))
		})
}
