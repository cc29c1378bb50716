package embedder

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/codectx/codectx/pkg/types"
)

func TestNullDeterministic(t *testing.T) {
	e := NewNull(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "func main() {}")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "func main() {}")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, NullDimensions)
}

func TestNullDistinctTexts(t *testing.T) {
	e := NewNull(32)
	ctx := context.Background()

	a, err := e.Embed(ctx, "alpha")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "beta")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNullRejectsEmptyText(t *testing.T) {
	e := NewNull(0)
	_, err := e.Embed(context.Background(), "")
	assert.True(t, types.IsKind(err, types.KindConfigInvalid))
}

func TestLocalUnitNorm(t *testing.T) {
	e := NewLocal(0)
	v, err := e.Embed(context.Background(), "parseHeader reads the first bytes")
	require.NoError(t, err)
	require.Len(t, v, LocalDimensions)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestLocalSimilarTextsCloser(t *testing.T) {
	e := NewLocal(0)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "parse http request header fields")
	b, _ := e.Embed(ctx, "parse http response header fields")
	c, _ := e.Embed(ctx, "render the login page template")

	assert.Greater(t, dot(a, b), dot(a, c))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestBatchAlignment(t *testing.T) {
	e := NewLocal(64)
	ctx := context.Background()
	texts := []string{"first chunk text", "second chunk text", "third chunk text"}

	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "batch index %d must match single embed", i)
	}
}

func TestBatchValidation(t *testing.T) {
	e := NewNull(0)
	ctx := context.Background()

	_, err := e.EmbedBatch(ctx, nil)
	assert.True(t, types.IsKind(err, types.KindConfigInvalid))

	_, err = e.EmbedBatch(ctx, []string{"ok", ""})
	assert.True(t, types.IsKind(err, types.KindConfigInvalid))

	big := make([]string, MaxBatchSize+1)
	for i := range big {
		big[i] = "x"
	}
	_, err = e.EmbedBatch(ctx, big)
	assert.True(t, types.IsKind(err, types.KindQuotaExceeded))
}

func TestTokenizeSplitsIdentifiers(t *testing.T) {
	toks := tokenize("parseHTTPHeader snake_case_name x1")
	assert.Contains(t, toks, "parse")
	assert.Contains(t, toks, "header")
	assert.Contains(t, toks, "snake")
	assert.Contains(t, toks, "case")
	assert.Contains(t, toks, "name")
	assert.Contains(t, toks, "x1")
}

func newEmbeddingServer(t *testing.T, dims int, calls *atomic.Int32, failuresBeforeOK int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failuresBeforeOK {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i := range req.Input {
			v := make([]float32, dims)
			v[0] = float32(i + 1)
			data[i] = item{Embedding: v, Index: i}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func TestRemoteEmbedBatch(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingServer(t, 8, &calls, 0)
	defer srv.Close()

	e, err := NewRemote(RemoteOptions{BaseURL: srv.URL, APIKey: "test", Dimensions: 8})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	out, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, float32(1), out[0][0])
	assert.Equal(t, float32(2), out[1][0])
}

func TestRemoteRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingServer(t, 4, &calls, 2)
	defer srv.Close()

	e, err := NewRemote(RemoteOptions{BaseURL: srv.URL, APIKey: "test", Dimensions: 4})
	require.NoError(t, err)
	e.retry.BaseDelay = 0

	out, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRemoteNonTransientNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	e, err := NewRemote(RemoteOptions{BaseURL: srv.URL, APIKey: "bad", Dimensions: 4})
	require.NoError(t, err)
	e.retry.BaseDelay = 0

	_, err = e.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindProviderInit))
	assert.EqualValues(t, 1, calls.Load())
}

func TestRemoteRequiresAPIKey(t *testing.T) {
	_, err := NewRemote(RemoteOptions{})
	assert.True(t, types.IsKind(err, types.KindConfigInvalid))
}

func TestRemoteDimensionMismatch(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingServer(t, 8, &calls, 0)
	defer srv.Close()

	e, err := NewRemote(RemoteOptions{BaseURL: srv.URL, APIKey: "test", Dimensions: 16})
	require.NoError(t, err)

	_, err = e.EmbedBatch(context.Background(), []string{"a"})
	assert.True(t, types.IsKind(err, types.KindConfigInvalid))
}

func TestGeminiVectorsValidation(t *testing.T) {
	_, err := geminiVectors(nil, 2, 8)
	require.Error(t, err, "a nil response is an error, not a panic")
	assert.True(t, types.IsKind(err, types.KindTransient))

	_, err = geminiVectors(&genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: make([]float32, 8)}},
	}, 2, 8)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindTransient))

	_, err = geminiVectors(&genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: make([]float32, 4)}},
	}, 1, 8)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfigInvalid))

	vecs, err := geminiVectors(&genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: make([]float32, 8)}},
	}, 1, 8)
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], 8)
}

func TestNullVectorFinite(t *testing.T) {
	e := NewNull(0)
	v, err := e.Embed(context.Background(), "anything")
	require.NoError(t, err)
	for _, x := range v {
		require.False(t, math.IsNaN(float64(x)))
		require.False(t, math.IsInf(float64(x), 0))
	}
}
