package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codectx/codectx/pkg/types"
)

type fakeCache struct {
	size int
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(CategoryCache, "fake", "test cache", func(cfg Config) (any, error) {
		return &fakeCache{size: cfg.Int("max_size")}, nil
	})

	instance, err := r.Resolve(CategoryCache, Config{
		Provider: "fake",
		Settings: map[string]any{"max_size": 42},
	})
	require.NoError(t, err)

	cache, ok := instance.(*fakeCache)
	require.True(t, ok)
	assert.Equal(t, 42, cache.size)
}

func TestResolveEmptyProviderName(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(CategoryEmbedding, Config{})
	require.Error(t, err)
	assert.Equal(t, types.KindConfigInvalid, types.KindOf(err))
}

func TestResolveUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(CategoryEmbedding, Config{Provider: "nope"})
	require.Error(t, err)
	assert.Equal(t, types.KindProviderUnknown, types.KindOf(err))

	var coded *types.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, "embedding", coded.Context["category"])
	assert.Equal(t, "nope", coded.Context["name"])
}

func TestResolveFactoryFailure(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("no api key")
	r.Register(CategoryEmbedding, "broken", "", func(cfg Config) (any, error) {
		return nil, boom
	})

	_, err := r.Resolve(CategoryEmbedding, Config{Provider: "broken"})
	require.Error(t, err)
	assert.Equal(t, types.KindProviderInit, types.KindOf(err))
	assert.True(t, errors.Is(err, boom))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	r := NewRegistry()
	r.Register(CategoryCache, "dup", "", func(cfg Config) (any, error) { return nil, nil })
	assert.Panics(t, func() {
		r.Register(CategoryCache, "dup", "", func(cfg Config) (any, error) { return nil, nil })
	})
}

func TestRegisterAfterResolvePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(CategoryCache, "a", "", func(cfg Config) (any, error) { return &fakeCache{}, nil })
	_, err := r.Resolve(CategoryCache, Config{Provider: "a"})
	require.NoError(t, err)

	assert.Panics(t, func() {
		r.Register(CategoryCache, "b", "", func(cfg Config) (any, error) { return nil, nil })
	})
}

func TestList(t *testing.T) {
	r := NewRegistry()
	r.Register(CategoryVectorStore, "memory", "in-memory store", func(cfg Config) (any, error) { return nil, nil })
	r.Register(CategoryVectorStore, "fs", "shard files on disk", func(cfg Config) (any, error) { return nil, nil })

	infos := r.List(CategoryVectorStore)
	require.Len(t, infos, 2)
	assert.Equal(t, "fs", infos[0].Name)
	assert.Equal(t, "memory", infos[1].Name)
	assert.Equal(t, "shard files on disk", infos[0].Description)

	assert.Empty(t, r.List(CategoryDatabase))
}

func TestResolveAs(t *testing.T) {
	r := NewRegistry()
	r.Register(CategoryCache, "fake", "", func(cfg Config) (any, error) {
		return &fakeCache{size: 7}, nil
	})

	cache, err := ResolveAs[*fakeCache](r, CategoryCache, Config{Provider: "fake"})
	require.NoError(t, err)
	assert.Equal(t, 7, cache.size)

	_, err = ResolveAs[string](r, CategoryCache, Config{Provider: "fake"})
	require.Error(t, err)
	assert.Equal(t, types.KindProviderInit, types.KindOf(err))
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{Settings: map[string]any{
		"address": "/data",
		"dims":    float64(768),
		"count":   int64(3),
	}}
	assert.Equal(t, "/data", cfg.String("address"))
	assert.Equal(t, "", cfg.String("missing"))
	assert.Equal(t, 768, cfg.Int("dims"))
	assert.Equal(t, 3, cfg.Int("count"))
	assert.Equal(t, 0, cfg.Int("missing"))
}
