package vectorstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/codectx/codectx/pkg/types"
)

// Memory is the in-process Store. It implements the full contract
// including Flush (a no-op) so tests and ephemeral sessions can run
// without touching disk.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dims      int
	createdAt time.Time
	vectors   map[string][]float32
	metas     map[string]ChunkMeta
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if name == "" {
		return types.E(types.KindConfigInvalid, "collection name is empty")
	}
	if dimensions <= 0 {
		return types.E(types.KindConfigInvalid, "collection dimensions must be positive, got %d", dimensions)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.collections[name]; exists {
		return types.E(types.KindConfigInvalid, "collection %q already exists", name).
			With("collection", name)
	}
	m.collections[name] = &memCollection{
		dims:      dimensions,
		createdAt: time.Now().UTC(),
		vectors:   make(map[string][]float32),
		metas:     make(map[string]ChunkMeta),
	}
	return nil
}

func (m *Memory) DeleteCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func (m *Memory) CollectionExists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *Memory) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]CollectionInfo, 0, len(m.collections))
	for name, col := range m.collections {
		infos = append(infos, CollectionInfo{
			Name:       name,
			Dimensions: col.dims,
			CreatedAt:  col.createdAt,
			Vectors:    len(col.vectors),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (m *Memory) get(name string) (*memCollection, error) {
	col, ok := m.collections[name]
	if !ok {
		return nil, types.E(types.KindConfigInvalid, "collection %q does not exist", name).
			With("collection", name)
	}
	return col, nil
}

func (m *Memory) Insert(ctx context.Context, collection string, vectors [][]float32, metas []ChunkMeta) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	if err := validateInsert(col.dims, vectors, metas); err != nil {
		return nil, err
	}

	ids := make([]string, len(metas))
	for i, v := range vectors {
		id := metas[i].ChunkID
		stored := make([]float32, len(v))
		copy(stored, v)
		col.vectors[id] = stored
		col.metas[id] = metas[i]
		ids[i] = id
	}
	return ids, nil
}

func (m *Memory) Search(ctx context.Context, collection string, query []float32, k int, filter *Filter) ([]types.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	if len(query) != col.dims {
		return nil, types.E(types.KindConfigInvalid, "query vector has %d dimensions, collection expects %d", len(query), col.dims)
	}
	if k <= 0 {
		return []types.SearchResult{}, nil
	}

	hits := make([]scored, 0, len(col.vectors))
	for id, v := range col.vectors {
		meta := col.metas[id]
		if !filter.Matches(&meta) {
			continue
		}
		hits = append(hits, scored{meta: &meta, score: Cosine(query, v)})
	}
	return rank(hits, k), nil
}

func (m *Memory) Delete(ctx context.Context, collection string, chunkIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, err := m.get(collection)
	if err != nil {
		return err
	}
	for _, id := range chunkIDs {
		delete(col.vectors, id)
		delete(col.metas, id)
	}
	return nil
}

func (m *Memory) DeleteByFile(ctx context.Context, collection, filePath string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, err := m.get(collection)
	if err != nil {
		return 0, err
	}
	removed := 0
	for id, meta := range col.metas {
		if meta.FilePath == filePath {
			delete(col.vectors, id)
			delete(col.metas, id)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Entries(ctx context.Context, collection string) ([]ChunkMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	metas := make([]ChunkMeta, 0, len(col.metas))
	for _, meta := range col.metas {
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ChunkID < metas[j].ChunkID })
	return metas, nil
}

func (m *Memory) Flush(ctx context.Context, collection string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.get(collection)
	return err
}

func (m *Memory) Close() error { return nil }
