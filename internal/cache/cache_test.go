package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codectx/codectx/pkg/types"
)

func setupLocal(t *testing.T) *Local {
	c, err := NewLocal(100, time.Minute)
	require.NoError(t, err)
	return c
}

func TestLocalSetGet(t *testing.T) {
	c := setupLocal(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns", "k", []byte("value"), 0))

	got, ok, err := c.Get(ctx, "ns", "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)
}

func TestLocalGetMiss(t *testing.T) {
	c := setupLocal(t)
	_, ok, err := c.Get(context.Background(), "ns", "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalTTLExpiry(t *testing.T) {
	c := setupLocal(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns", "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalNamespaceIsolation(t *testing.T) {
	c := setupLocal(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "k", []byte("in-a"), 0))
	require.NoError(t, c.Set(ctx, "b", "k", []byte("in-b"), 0))

	require.NoError(t, c.Clear(ctx, "a"))

	_, ok, _ := c.Get(ctx, "a", "k")
	assert.False(t, ok)

	got, ok, _ := c.Get(ctx, "b", "k")
	require.True(t, ok)
	assert.Equal(t, []byte("in-b"), got)
}

func TestLocalInvalidatePrefix(t *testing.T) {
	c := setupLocal(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns", "query:1", []byte("a"), 0))
	require.NoError(t, c.Set(ctx, "ns", "query:2", []byte("b"), 0))
	require.NoError(t, c.Set(ctx, "ns", "embed:1", []byte("c"), 0))

	require.NoError(t, c.InvalidatePrefix(ctx, "ns", "query:"))

	_, ok, _ := c.Get(ctx, "ns", "query:1")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "ns", "query:2")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "ns", "embed:1")
	assert.True(t, ok)
}

func TestLocalReturnsCopies(t *testing.T) {
	c := setupLocal(t)
	ctx := context.Background()

	original := []byte("immutable")
	require.NoError(t, c.Set(ctx, "ns", "k", original, 0))
	original[0] = 'X'

	got, ok, _ := c.Get(ctx, "ns", "k")
	require.True(t, ok)
	assert.Equal(t, []byte("immutable"), got)

	got[0] = 'Y'
	again, _, _ := c.Get(ctx, "ns", "k")
	assert.Equal(t, []byte("immutable"), again)
}

func TestLocalEviction(t *testing.T) {
	c, err := NewLocal(2, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns", "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "ns", "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "ns", "c", []byte("3"), 0))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "ns", "a")
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestLocalInvalidConfig(t *testing.T) {
	_, err := NewLocal(0, time.Minute)
	require.Error(t, err)
	assert.Equal(t, types.KindConfigInvalid, types.KindOf(err))

	_, err = NewLocal(10, 0)
	require.Error(t, err)
	assert.Equal(t, types.KindConfigInvalid, types.KindOf(err))
}

func TestLocalConcurrentAccess(t *testing.T) {
	c := setupLocal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n)
			_ = c.Set(ctx, "ns", key, []byte(key), 0)
			_, _, _ = c.Get(ctx, "ns", key)
		}(i)
	}
	wg.Wait()
}

func TestNullAlwaysMisses(t *testing.T) {
	c := NewNull()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns", "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, c.Invalidate(ctx, "ns", "k"))
	assert.NoError(t, c.InvalidatePrefix(ctx, "ns", "p"))
	assert.NoError(t, c.Clear(ctx, "ns"))
	assert.NoError(t, c.Close())
}

func newRemoteServer(t *testing.T) (*httptest.Server, map[string][]byte) {
	store := make(map[string][]byte)
	var mu sync.Mutex

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		path := strings.TrimPrefix(r.URL.Path, "/cache/")
		switch r.Method {
		case http.MethodGet:
			if v, ok := store[path]; ok {
				_, _ = w.Write(v)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			body := make([]byte, r.ContentLength)
			_, _ = r.Body.Read(body)
			store[path] = body
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			prefix := r.URL.Query().Get("prefix")
			if strings.Contains(path, "/") {
				delete(store, path)
			} else {
				for k := range store {
					if strings.HasPrefix(k, path+"/"+prefix) {
						delete(store, k)
					}
				}
			}
			w.WriteHeader(http.StatusNoContent)
		}
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestRemoteSetGet(t *testing.T) {
	srv, _ := newRemoteServer(t)
	c, err := NewRemote(srv.URL, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns", "k", []byte("remote-value"), 0))

	got, ok, err := c.Get(ctx, "ns", "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("remote-value"), got)
}

func TestRemoteMiss(t *testing.T) {
	srv, _ := newRemoteServer(t)
	c, err := NewRemote(srv.URL, time.Minute)
	require.NoError(t, err)

	_, ok, err := c.Get(context.Background(), "ns", "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoteInvalidate(t *testing.T) {
	srv, _ := newRemoteServer(t)
	c, err := NewRemote(srv.URL, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns", "k", []byte("v"), 0))
	require.NoError(t, c.Invalidate(ctx, "ns", "k"))

	_, ok, _ := c.Get(ctx, "ns", "k")
	assert.False(t, ok)
}

func TestRemoteUnreachableIsTransient(t *testing.T) {
	c, err := NewRemote("http://127.0.0.1:1", time.Minute)
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "ns", "k")
	require.Error(t, err)
	assert.Equal(t, types.KindTransient, types.KindOf(err))
}

func TestRemoteInvalidConfig(t *testing.T) {
	_, err := NewRemote("", time.Minute)
	require.Error(t, err)
	assert.Equal(t, types.KindConfigInvalid, types.KindOf(err))
}

func TestEmbeddingKey(t *testing.T) {
	a := EmbeddingKey("local", "feature-hash-256", "some text")
	b := EmbeddingKey("local", "feature-hash-256", "some text")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, EmbeddingKey("remote", "feature-hash-256", "some text"))
	assert.NotEqual(t, a, EmbeddingKey("local", "other-model", "some text"))
	assert.NotEqual(t, a, EmbeddingKey("local", "feature-hash-256", "other text"))
}

func TestQueryKey(t *testing.T) {
	a := QueryKey("code", "parse header", 10, "hybrid", nil)
	b := QueryKey("code", "parse header", 10, "hybrid", nil)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, QueryKey("docs", "parse header", 10, "hybrid", nil))
	assert.NotEqual(t, a, QueryKey("code", "parse header", 20, "hybrid", nil))
	assert.NotEqual(t, a, QueryKey("code", "parse header", 10, "vector", nil))
	assert.NotEqual(t, a, QueryKey("code", "parse header", 10, "hybrid", []string{"path:src/**"}))
}
