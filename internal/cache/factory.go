package cache

import (
	"time"

	"github.com/codectx/codectx/internal/provider"
	"github.com/codectx/codectx/pkg/types"
)

// Provider names registered with the provider registry.
const (
	ProviderNull   = "null"
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// Register adds the cache factories to the registry. The composition
// root calls this once at startup.
func Register(reg *provider.Registry) {
	reg.Register(provider.CategoryCache, ProviderNull,
		"no-op cache, misses on every read",
		func(cfg provider.Config) (any, error) {
			return NewNull(), nil
		})

	reg.Register(provider.CategoryCache, ProviderLocal,
		"in-process LRU with per-entry TTL",
		func(cfg provider.Config) (any, error) {
			return NewLocal(cfg.Int("max_size"), time.Duration(cfg.Int("default_ttl_secs"))*time.Second)
		})

	reg.Register(provider.CategoryCache, ProviderRemote,
		"HTTP cache endpoint",
		func(cfg provider.Config) (any, error) {
			endpoint := cfg.String("endpoint")
			if endpoint == "" {
				return nil, types.E(types.KindConfigInvalid, "remote cache requires an endpoint URL").
					With("key", "system.infrastructure.cache.redis_url")
			}
			return NewRemote(endpoint, time.Duration(cfg.Int("default_ttl_secs"))*time.Second)
		})
}
