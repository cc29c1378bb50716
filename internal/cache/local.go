package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codectx/codectx/pkg/types"
)

// localEntry carries a value with its expiration time. Expiry is checked
// on read; expired entries are removed lazily.
type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// Local is the in-process cache: size-bounded LRU with per-entry TTL.
type Local struct {
	mu         sync.RWMutex
	entries    *lru.Cache[string, *localEntry]
	defaultTTL time.Duration
}

// NewLocal creates a local cache. maxSize bounds the entry count and
// defaultTTL applies when Set is called with a zero ttl; both must be
// positive.
func NewLocal(maxSize int, defaultTTL time.Duration) (*Local, error) {
	if maxSize <= 0 {
		return nil, types.E(types.KindConfigInvalid, "cache max size must be positive").
			With("key", "system.infrastructure.cache.max_size")
	}
	if defaultTTL <= 0 {
		return nil, types.E(types.KindConfigInvalid, "cache TTL must be positive").
			With("key", "system.infrastructure.cache.default_ttl_secs")
	}

	entries, err := lru.New[string, *localEntry](maxSize)
	if err != nil {
		return nil, types.Wrap(types.KindProviderInit, err, "create LRU cache")
	}

	return &Local{
		entries:    entries,
		defaultTTL: defaultTTL,
	}, nil
}

// fullKey joins namespace and key. The separator cannot appear in
// namespaces, which keeps prefix operations namespace-safe.
func fullKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (l *Local) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	fk := fullKey(namespace, key)

	l.mu.RLock()
	entry, ok := l.entries.Get(fk)
	l.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		l.mu.Lock()
		l.entries.Remove(fk)
		l.mu.Unlock()
		return nil, false, nil
	}

	// Copy so caller mutations cannot pollute the cached value.
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

func (l *Local) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	l.mu.Lock()
	l.entries.Add(fullKey(namespace, key), &localEntry{
		value:     stored,
		expiresAt: time.Now().Add(ttl),
	})
	l.mu.Unlock()
	return nil
}

func (l *Local) Invalidate(ctx context.Context, namespace, key string) error {
	l.mu.Lock()
	l.entries.Remove(fullKey(namespace, key))
	l.mu.Unlock()
	return nil
}

func (l *Local) InvalidatePrefix(ctx context.Context, namespace, prefix string) error {
	target := fullKey(namespace, prefix)

	l.mu.Lock()
	for _, k := range l.entries.Keys() {
		if strings.HasPrefix(k, target) {
			l.entries.Remove(k)
		}
	}
	l.mu.Unlock()
	return nil
}

func (l *Local) Clear(ctx context.Context, namespace string) error {
	return l.InvalidatePrefix(ctx, namespace, "")
}

func (l *Local) Close() error {
	l.mu.Lock()
	l.entries.Purge()
	l.mu.Unlock()
	return nil
}

// Len returns the current entry count across all namespaces.
func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries.Len()
}
