package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/codectx/codectx/pkg/types"
)

// Remote defaults. The endpoint speaks the OpenAI embeddings wire
// format, which most hosted providers accept.
const (
	DefaultRemoteBaseURL = "https://api.openai.com/v1"
	DefaultRemoteModel   = "text-embedding-3-small"

	remoteTimeout = 30 * time.Second
)

// Remote is the HTTP embedding client with retry, rate limiting and a
// per-call timeout.
type Remote struct {
	baseURL    string
	model      string
	apiKey     string
	dims       int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
}

// RemoteOptions parameterize the remote client. Zero values take the
// package defaults.
type RemoteOptions struct {
	BaseURL    string
	Model      string
	APIKey     string
	Dimensions int
}

// NewRemote creates a remote embedding client.
func NewRemote(opts RemoteOptions) (*Remote, error) {
	if opts.APIKey == "" {
		return nil, types.E(types.KindConfigInvalid, "remote embedder requires an API key").
			With("key", "providers.embedding.api_key")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultRemoteBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultRemoteModel
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = RemoteDimensions
	}

	return &Remote{
		baseURL: opts.BaseURL,
		model:   opts.Model,
		apiKey:  opts.APIKey,
		dims:    opts.Dimensions,
		httpClient: &http.Client{
			Timeout: remoteTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		retry:   DefaultRetryConfig(),
	}, nil
}

func (r *Remote) Dimensions() int      { return r.dims }
func (r *Remote) ProviderName() string { return ProviderRemote }
func (r *Remote) Model() string        { return r.model }

func (r *Remote) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}

func (r *Remote) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (r *Remote) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	vectors, err := retryWithBackoff(ctx, r.retry, func() ([][]float32, error) {
		return r.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, types.E(types.KindTransient, "embedding endpoint returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != r.dims {
			return nil, types.E(types.KindConfigInvalid, "vector %d has %d dimensions, expected %d", i, len(v), r.dims).
				With("key", "providers.embedding.dimensions")
		}
	}
	return vectors, nil
}

func (r *Remote) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"input":      texts,
		"model":      r.model,
		"dimensions": r.dims,
	})
	if err != nil {
		return nil, types.Wrap(types.KindInternal, err, "marshal embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, types.Wrap(types.KindInternal, err, "create embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Network failure or timeout: eligible for retry.
		return nil, types.Wrap(types.KindTransient, err, "embedding endpoint unreachable")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, types.E(types.KindTransient, "embedding endpoint status %d: %s", resp.StatusCode, payload)
		}
		return nil, types.E(types.KindProviderInit, "embedding endpoint status %d: %s", resp.StatusCode, payload)
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, types.Wrap(types.KindTransient, err, "decode embedding response")
	}

	// The API is allowed to return out of order; index restores
	// alignment with the input.
	vectors := make([][]float32, len(texts))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, types.E(types.KindTransient, "embedding response index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, types.E(types.KindTransient, "embedding response missing vector for input %d", i)
		}
	}
	return vectors, nil
}

func (r *Remote) HealthCheck(ctx context.Context) error {
	_, err := r.Embed(ctx, "ping")
	return err
}
