package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/codectx/codectx/pkg/types"
)

// DefaultShardCap is the soft per-shard vector limit. A full shard
// stays readable forever; new inserts open the next shard.
const DefaultShardCap = 100_000

// FSOptions parameterize the filesystem store.
type FSOptions struct {
	// Root is the data directory: one subdirectory per collection.
	Root string
	// ShardCap overrides DefaultShardCap when positive.
	ShardCap int
	// MaxBytes bounds the total vector bytes per collection; zero
	// means unlimited. Exceeding it fails inserts with QuotaExceeded.
	MaxBytes int64
}

// FSStore is the shard-file vector store. Collections live under
// Root/<name>/ as shard-NNNN.bin files, an index.bin journal and a
// meta.json sidecar. Vectors are held in memory for scanning; shard
// files are append-only and the index is rewritten atomically on
// Flush.
type FSStore struct {
	root     string
	shardCap int
	maxBytes int64

	mu          sync.RWMutex
	collections map[string]*fsCollection
	// corrupted remembers collections that failed integrity checks at
	// open so every operation on them reports StoreCorrupt.
	corrupted map[string]error
}

// fsShard is one shard resident in memory. persisted tracks how many
// records have already been appended to disk.
type fsShard struct {
	id        uint32
	data      []float32 // count × dims, packed
	count     uint32
	persisted uint32
}

type fsCollection struct {
	name        string
	dir         string
	dims        int
	createdAt   time.Time
	nextShardID uint32

	mu      sync.RWMutex
	entries map[string]*indexEntry
	shards  map[uint32]*fsShard
	current *fsShard
	live    int
	dirty   bool
}

// NewFSStore opens (or creates) the data root and loads every
// collection found under it. A corrupt collection does not fail the
// open; it is quarantined and its operations return StoreCorrupt.
func NewFSStore(opts FSOptions) (*FSStore, error) {
	if opts.Root == "" {
		return nil, types.E(types.KindConfigInvalid, "vector store root directory is required").
			With("key", "providers.vector_store.address")
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, types.Wrap(types.KindProviderInit, err, "create vector store root")
	}
	shardCap := opts.ShardCap
	if shardCap <= 0 {
		shardCap = DefaultShardCap
	}

	s := &FSStore{
		root:        opts.Root,
		shardCap:    shardCap,
		maxBytes:    opts.MaxBytes,
		collections: make(map[string]*fsCollection),
		corrupted:   make(map[string]error),
	}

	dirEntries, err := os.ReadDir(opts.Root)
	if err != nil {
		return nil, types.Wrap(types.KindProviderInit, err, "scan vector store root")
	}
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		name := de.Name()
		col, err := s.openCollection(name)
		if err != nil {
			s.corrupted[name] = err
			continue
		}
		s.collections[name] = col
	}
	return s, nil
}

func (s *FSStore) collectionDir(name string) string {
	return filepath.Join(s.root, name)
}

// openCollection loads meta.json, every shard file and the index, and
// cross-checks them. Any inconsistency is a corruption.
func (s *FSStore) openCollection(name string) (*fsCollection, error) {
	dir := s.collectionDir(name)

	metaRaw, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return nil, corrupt(name, fmt.Errorf("read meta.json: %w", err))
	}
	var meta collectionMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, corrupt(name, fmt.Errorf("parse meta.json: %w", err))
	}
	if meta.Dimensions <= 0 {
		return nil, corrupt(name, fmt.Errorf("meta.json has dimensions %d", meta.Dimensions))
	}

	col := &fsCollection{
		name:        name,
		dir:         dir,
		dims:        meta.Dimensions,
		createdAt:   meta.CreatedAt,
		nextShardID: meta.NextShardID,
		entries:     make(map[string]*indexEntry),
		shards:      make(map[uint32]*fsShard),
	}

	for i := 0; i < meta.ShardCount; i++ {
		shardID := uint32(i)
		path := filepath.Join(dir, shardFileName(shardID))
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, corrupt(name, fmt.Errorf("read shard %d: %w", shardID, err))
		}
		header, err := decodeShardHeader(raw)
		if err != nil {
			return nil, corrupt(name, fmt.Errorf("shard %d: %w", shardID, err))
		}
		if int(header.Dimensions) != meta.Dimensions {
			return nil, corrupt(name, fmt.Errorf("shard %d has %d dims, meta says %d", shardID, header.Dimensions, meta.Dimensions))
		}
		want := ShardHeaderLen + int(header.VectorCount)*meta.Dimensions*4
		if len(raw) != want {
			return nil, corrupt(name, fmt.Errorf("shard %d is %d bytes, want %d", shardID, len(raw), want))
		}
		vectors, err := decodeVectors(raw[ShardHeaderLen:], int(header.VectorCount), meta.Dimensions)
		if err != nil {
			return nil, corrupt(name, fmt.Errorf("shard %d: %w", shardID, err))
		}
		data := make([]float32, 0, int(header.VectorCount)*meta.Dimensions)
		for _, v := range vectors {
			data = append(data, v...)
		}
		col.shards[shardID] = &fsShard{
			id:        shardID,
			data:      data,
			count:     header.VectorCount,
			persisted: header.VectorCount,
		}
	}

	indexRaw, err := os.ReadFile(filepath.Join(dir, "index.bin"))
	if err != nil {
		if os.IsNotExist(err) && meta.ShardCount == 0 {
			// Fresh collection that was never flushed with data.
			return col, nil
		}
		return nil, corrupt(name, fmt.Errorf("read index.bin: %w", err))
	}
	entries, err := decodeIndex(indexRaw)
	if err != nil {
		return nil, corrupt(name, err)
	}
	for id, e := range entries {
		shard, ok := col.shards[e.ShardID]
		if !ok || e.Offset >= shard.count {
			return nil, corrupt(name, fmt.Errorf("entry %q points past shard %d", id, e.ShardID))
		}
		col.entries[id] = e
		if e.Live {
			col.live++
		}
	}

	// Resume appends on the newest shard if it still has room.
	if meta.ShardCount > 0 {
		last := col.shards[uint32(meta.ShardCount-1)]
		if int(last.count) < s.shardCap {
			col.current = last
		}
	}
	return col, nil
}

func shardFileName(id uint32) string {
	return fmt.Sprintf("shard-%04d.bin", id)
}

// getCollection resolves a live collection or reports why it is not
// available.
func (s *FSStore) getCollection(name string) (*fsCollection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.corrupted[name]; ok {
		return nil, err
	}
	col, ok := s.collections[name]
	if !ok {
		return nil, types.E(types.KindConfigInvalid, "collection %q does not exist", name).
			With("collection", name)
	}
	return col, nil
}

func (s *FSStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if name == "" {
		return types.E(types.KindConfigInvalid, "collection name is empty")
	}
	if dimensions <= 0 {
		return types.E(types.KindConfigInvalid, "collection dimensions must be positive, got %d", dimensions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.corrupted[name]; ok {
		return err
	}
	if _, exists := s.collections[name]; exists {
		return types.E(types.KindConfigInvalid, "collection %q already exists", name).
			With("collection", name)
	}

	dir := s.collectionDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.Wrap(types.KindTransient, err, "create collection directory")
	}
	col := &fsCollection{
		name:      name,
		dir:       dir,
		dims:      dimensions,
		createdAt: time.Now().UTC(),
		entries:   make(map[string]*indexEntry),
		shards:    make(map[uint32]*fsShard),
	}
	if err := s.writeMeta(col); err != nil {
		return err
	}
	s.collections[name] = col
	return nil
}

func (s *FSStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Deleting a quarantined collection is the repair path.
	delete(s.corrupted, name)
	if _, ok := s.collections[name]; !ok {
		if _, err := os.Stat(s.collectionDir(name)); os.IsNotExist(err) {
			return nil
		}
	}
	delete(s.collections, name)
	if err := os.RemoveAll(s.collectionDir(name)); err != nil {
		return types.Wrap(types.KindTransient, err, "remove collection directory")
	}
	return nil
}

func (s *FSStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *FSStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]CollectionInfo, 0, len(s.collections))
	for _, col := range s.collections {
		col.mu.RLock()
		infos = append(infos, CollectionInfo{
			Name:       col.name,
			Dimensions: col.dims,
			CreatedAt:  col.createdAt,
			Vectors:    col.live,
		})
		col.mu.RUnlock()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *FSStore) Insert(ctx context.Context, collection string, vectors [][]float32, metas []ChunkMeta) ([]string, error) {
	col, err := s.getCollection(collection)
	if err != nil {
		return nil, err
	}
	if err := validateInsert(col.dims, vectors, metas); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	col.mu.Lock()
	defer col.mu.Unlock()

	if s.maxBytes > 0 {
		var current int64
		for _, sh := range col.shards {
			current += int64(len(sh.data)) * 4
		}
		attempted := current + int64(len(vectors)*col.dims*4)
		if attempted > s.maxBytes {
			return nil, types.E(types.KindQuotaExceeded, "insert would use %d bytes, limit is %d", attempted, s.maxBytes).
				With("collection", collection)
		}
	}

	ids := make([]string, len(metas))
	for i, v := range vectors {
		meta := metas[i]

		// Replacing an existing chunk tombstones the old vector.
		if prev, ok := col.entries[meta.ChunkID]; ok && prev.Live {
			prev.Live = false
			col.live--
		}

		shard := col.current
		if shard == nil || int(shard.count) >= s.shardCap {
			shard = &fsShard{id: col.nextShardID}
			col.nextShardID++
			col.shards[shard.id] = shard
			col.current = shard
		}
		offset := shard.count
		shard.data = append(shard.data, v...)
		shard.count++

		col.entries[meta.ChunkID] = &indexEntry{
			ShardID: shard.id,
			Offset:  offset,
			Dims:    uint16(col.dims),
			Live:    true,
			Meta:    meta,
		}
		col.live++
		ids[i] = meta.ChunkID
	}
	col.dirty = true
	return ids, nil
}

func (s *FSStore) Search(ctx context.Context, collection string, query []float32, k int, filter *Filter) ([]types.SearchResult, error) {
	col, err := s.getCollection(collection)
	if err != nil {
		return nil, err
	}
	if len(query) != col.dims {
		return nil, types.E(types.KindConfigInvalid, "query vector has %d dimensions, collection expects %d", len(query), col.dims)
	}
	if k <= 0 {
		return []types.SearchResult{}, nil
	}

	col.mu.RLock()
	defer col.mu.RUnlock()

	hits := make([]scored, 0, col.live)
	for _, e := range col.entries {
		if !e.Live || !filter.Matches(&e.Meta) {
			continue
		}
		shard := col.shards[e.ShardID]
		start := int(e.Offset) * col.dims
		vec := shard.data[start : start+col.dims]
		hits = append(hits, scored{meta: &e.Meta, score: Cosine(query, vec)})
	}
	return rank(hits, k), nil
}

func (s *FSStore) Delete(ctx context.Context, collection string, chunkIDs []string) error {
	col, err := s.getCollection(collection)
	if err != nil {
		return err
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	for _, id := range chunkIDs {
		if e, ok := col.entries[id]; ok && e.Live {
			e.Live = false
			col.live--
			col.dirty = true
		}
	}
	return nil
}

func (s *FSStore) DeleteByFile(ctx context.Context, collection, filePath string) (int, error) {
	col, err := s.getCollection(collection)
	if err != nil {
		return 0, err
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	removed := 0
	for _, e := range col.entries {
		if e.Live && e.Meta.FilePath == filePath {
			e.Live = false
			col.live--
			removed++
		}
	}
	if removed > 0 {
		col.dirty = true
	}
	return removed, nil
}

func (s *FSStore) Entries(ctx context.Context, collection string) ([]ChunkMeta, error) {
	col, err := s.getCollection(collection)
	if err != nil {
		return nil, err
	}

	col.mu.RLock()
	defer col.mu.RUnlock()
	metas := make([]ChunkMeta, 0, col.live)
	for _, e := range col.entries {
		if e.Live {
			metas = append(metas, e.Meta)
		}
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ChunkID < metas[j].ChunkID })
	return metas, nil
}

// Flush appends unpersisted shard records, rewrites shard headers,
// journals the index and meta atomically, and fsyncs. After it
// returns, everything inserted so far survives restart.
func (s *FSStore) Flush(ctx context.Context, collection string) error {
	col, err := s.getCollection(collection)
	if err != nil {
		return err
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	if !col.dirty {
		return nil
	}

	shardIDs := make([]uint32, 0, len(col.shards))
	for id := range col.shards {
		shardIDs = append(shardIDs, id)
	}
	sort.Slice(shardIDs, func(i, j int) bool { return shardIDs[i] < shardIDs[j] })

	for _, id := range shardIDs {
		if err := s.flushShard(col, col.shards[id]); err != nil {
			return err
		}
	}

	entries := make([]*indexEntry, 0, len(col.entries))
	for _, e := range col.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Meta.ChunkID < entries[j].Meta.ChunkID })

	indexRaw, err := encodeIndex(entries)
	if err != nil {
		return types.Wrap(types.KindInternal, err, "encode index for %q", collection)
	}
	if err := atomicWrite(filepath.Join(col.dir, "index.bin"), indexRaw); err != nil {
		return err
	}
	if err := s.writeMeta(col); err != nil {
		return err
	}
	col.dirty = false
	return nil
}

// flushShard appends the records added since the last flush and stamps
// the header with the new count.
func (s *FSStore) flushShard(col *fsCollection, shard *fsShard) error {
	if shard.persisted == shard.count && shard.persisted != 0 {
		return nil
	}
	path := filepath.Join(col.dir, shardFileName(shard.id))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return types.Wrap(types.KindTransient, err, "open shard %d", shard.id)
	}
	defer func() {
		_ = f.Close()
	}()

	header := encodeShardHeader(shardHeader{
		Dimensions:  uint16(col.dims),
		VectorCount: shard.count,
	})
	if _, err := f.WriteAt(header, 0); err != nil {
		return types.Wrap(types.KindTransient, err, "write shard %d header", shard.id)
	}

	if shard.persisted < shard.count {
		start := int(shard.persisted) * col.dims
		pending := make([][]float32, 0, shard.count-shard.persisted)
		for i := int(shard.persisted); i < int(shard.count); i++ {
			pending = append(pending, shard.data[i*col.dims:(i+1)*col.dims])
		}
		offset := int64(ShardHeaderLen) + int64(start)*4
		if _, err := f.WriteAt(encodeVectors(pending), offset); err != nil {
			return types.Wrap(types.KindTransient, err, "append shard %d records", shard.id)
		}
	}
	if err := f.Sync(); err != nil {
		return types.Wrap(types.KindTransient, err, "sync shard %d", shard.id)
	}
	shard.persisted = shard.count
	return nil
}

// writeMeta persists meta.json for a collection. Callers hold the
// collection lock (or the store lock during creation).
func (s *FSStore) writeMeta(col *fsCollection) error {
	meta := collectionMeta{
		Dimensions:  col.dims,
		ShardCount:  len(col.shards),
		NextShardID: col.nextShardID,
		CreatedAt:   col.createdAt,
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return types.Wrap(types.KindInternal, err, "marshal collection meta")
	}
	return atomicWrite(filepath.Join(col.dir, "meta.json"), raw)
}

// atomicWrite writes via a temp file and rename so readers never see a
// partial file.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return types.Wrap(types.KindTransient, err, "write %s", filepath.Base(path))
	}
	if err := os.Rename(tmp, path); err != nil {
		return types.Wrap(types.KindTransient, err, "replace %s", filepath.Base(path))
	}
	return nil
}

func (s *FSStore) Close() error {
	s.mu.RLock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	s.mu.RUnlock()

	var firstErr error
	for _, name := range names {
		if err := s.Flush(context.Background(), name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
