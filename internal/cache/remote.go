package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/codectx/codectx/pkg/types"
)

// remoteTimeout bounds every remote cache call. A timeout counts as a
// transient error so the indexing retry policy can apply.
const remoteTimeout = 2 * time.Second

// Remote is the HTTP cache client. It speaks a minimal REST protocol to
// a single endpoint: GET/PUT/DELETE on /cache/{namespace}/{key}, with
// namespace-level DELETE (optionally ?prefix=) for clearing.
type Remote struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	defaultTTL time.Duration
}

// NewRemote creates a remote cache client for the given endpoint URL.
func NewRemote(endpoint string, defaultTTL time.Duration) (*Remote, error) {
	if endpoint == "" {
		return nil, types.E(types.KindConfigInvalid, "remote cache endpoint is empty").
			With("key", "system.infrastructure.cache.redis_url")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, types.Wrap(types.KindConfigInvalid, err, "invalid remote cache endpoint").
			With("key", "system.infrastructure.cache.redis_url")
	}
	if defaultTTL <= 0 {
		return nil, types.E(types.KindConfigInvalid, "cache TTL must be positive").
			With("key", "system.infrastructure.cache.default_ttl_secs")
	}

	return &Remote{
		baseURL: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: remoteTimeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(200), 50),
		defaultTTL: defaultTTL,
	}, nil
}

func (r *Remote) entryURL(namespace, key string) string {
	return fmt.Sprintf("%s/cache/%s/%s", r.baseURL, url.PathEscape(namespace), url.PathEscape(key))
}

func (r *Remote) namespaceURL(namespace string) string {
	return fmt.Sprintf("%s/cache/%s", r.baseURL, url.PathEscape(namespace))
}

func (r *Remote) do(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, types.Wrap(types.KindProviderInit, err, "create cache request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, types.Wrap(types.KindTransient, err, "cache endpoint unreachable")
	}
	return resp, nil
}

func (r *Remote) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	resp, err := r.do(ctx, http.MethodGet, r.entryURL(namespace, key), nil)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		value, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, types.Wrap(types.KindTransient, err, "read cache response")
		}
		return value, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, types.E(types.KindTransient, "cache get returned status %d", resp.StatusCode)
	}
}

func (r *Remote) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	u := r.entryURL(namespace, key) + "?ttl_secs=" + strconv.Itoa(int(ttl/time.Second))

	resp, err := r.do(ctx, http.MethodPut, u, value)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return types.E(types.KindTransient, "cache set returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *Remote) Invalidate(ctx context.Context, namespace, key string) error {
	return r.deleteURL(ctx, r.entryURL(namespace, key))
}

func (r *Remote) InvalidatePrefix(ctx context.Context, namespace, prefix string) error {
	return r.deleteURL(ctx, r.namespaceURL(namespace)+"?prefix="+url.QueryEscape(prefix))
}

func (r *Remote) Clear(ctx context.Context, namespace string) error {
	return r.deleteURL(ctx, r.namespaceURL(namespace))
}

func (r *Remote) deleteURL(ctx context.Context, rawURL string) error {
	resp, err := r.do(ctx, http.MethodDelete, rawURL, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Deleting an absent key is not an error.
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return types.E(types.KindTransient, "cache delete returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *Remote) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}
