// Package cache provides the keyed byte cache used on the query hot
// path: text→embedding memoization and query→top-k memoization.
//
// Three variants share one contract. The local variant is an in-process
// LRU with per-entry TTL, the remote variant speaks HTTP to a single
// cache endpoint, and the null variant misses on every read so that
// disabling caching can never change correctness.
//
// Namespaces isolate keys: Clear on one namespace leaves every other
// namespace intact. Values are opaque byte blobs; callers serialize.
package cache

import (
	"context"
	"time"
)

// Cache is the cache layer contract. A zero ttl on Set means the
// variant's configured default TTL.
type Cache interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, namespace, key string) error
	InvalidatePrefix(ctx context.Context, namespace, prefix string) error
	Clear(ctx context.Context, namespace string) error
	Close() error
}

// Null is the no-op cache: every read misses, every write is discarded.
type Null struct{}

// NewNull returns the no-op cache.
func NewNull() *Null {
	return &Null{}
}

func (n *Null) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (n *Null) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (n *Null) Invalidate(ctx context.Context, namespace, key string) error {
	return nil
}

func (n *Null) InvalidatePrefix(ctx context.Context, namespace, prefix string) error {
	return nil
}

func (n *Null) Clear(ctx context.Context, namespace string) error {
	return nil
}

func (n *Null) Close() error {
	return nil
}
