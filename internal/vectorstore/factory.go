package vectorstore

import (
	"github.com/codectx/codectx/internal/provider"
	"github.com/codectx/codectx/pkg/types"
)

// Register adds the vector store factories to the registry. The
// composition root calls this once at startup.
func Register(reg *provider.Registry) {
	reg.Register(provider.CategoryVectorStore, ProviderFS,
		"shard files under a data directory",
		func(cfg provider.Config) (any, error) {
			root := cfg.String("address")
			if root == "" {
				return nil, types.E(types.KindConfigInvalid, "fs vector store requires a data directory").
					With("key", "providers.vector_store.address")
			}
			return NewFSStore(FSOptions{
				Root:     root,
				ShardCap: cfg.Int("shard_cap"),
				MaxBytes: int64(cfg.Int("max_bytes")),
			})
		})

	reg.Register(provider.CategoryVectorStore, ProviderMemory,
		"in-process store, for tests and ephemeral sessions",
		func(cfg provider.Config) (any, error) {
			return NewMemory(), nil
		})
}
