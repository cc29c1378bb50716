package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"coded error", E(KindStoreCorrupt, "bad shard"), KindStoreCorrupt},
		{"wrapped coded error", fmt.Errorf("open: %w", E(KindQuotaExceeded, "too big")), KindQuotaExceeded},
		{"context cancelled", context.Canceled, KindCancelled},
		{"deadline", context.DeadlineExceeded, KindCancelled},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindTransient, cause, "write shard %d", 3)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "write shard 3")
	assert.Contains(t, err.Error(), "disk full")

	var coded *Error
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, KindTransient, coded.Kind)
}

func TestErrorWith(t *testing.T) {
	err := E(KindProviderUnknown, "no factory").
		With("category", "embedding").
		With("name", "ollama")

	assert.Equal(t, "embedding", err.Context["category"])
	assert.Equal(t, "ollama", err.Context["name"])
}

func TestErrorMarshalJSON(t *testing.T) {
	err := E(KindConfigInvalid, "ttl must be positive").With("key", "system.infrastructure.cache.default_ttl_secs")

	data, jerr := json.Marshal(err)
	require.NoError(t, jerr)

	var decoded struct {
		Kind    string            `json:"kind"`
		Message string            `json:"message"`
		Context map[string]string `json:"context"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "config_invalid", decoded.Kind)
	assert.Equal(t, "ttl must be positive", decoded.Message)
	assert.Equal(t, "system.infrastructure.cache.default_ttl_secs", decoded.Context["key"])
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", E(KindStoreCorrupt, "truncated shard"))
	assert.True(t, errors.Is(err, &Error{Kind: KindStoreCorrupt}))
	assert.False(t, errors.Is(err, &Error{Kind: KindQuotaExceeded}))
}
