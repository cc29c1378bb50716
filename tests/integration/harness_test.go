package integration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codectx/codectx/internal/cache"
	"github.com/codectx/codectx/internal/contextsvc"
	"github.com/codectx/codectx/internal/indexer"
	"github.com/codectx/codectx/internal/metastore"
	"github.com/codectx/codectx/internal/searcher"
	"github.com/codectx/codectx/internal/tracker"
	"github.com/codectx/codectx/internal/vectorstore"
)

const testDims = 48

// harness is one fully wired engine over real on-disk stores.
type harness struct {
	emb      *countingEmbedder
	store    vectorstore.Store
	meta     metastore.Store
	svc      *contextsvc.Service
	searcher *searcher.Searcher
	tracker  *tracker.Tracker
	indexer  *indexer.Indexer
	dataDir  string
	root     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dataDir := t.TempDir()
	emb := newCountingEmbedder(testDims)

	store, err := vectorstore.NewFSStore(vectorstore.FSOptions{Root: dataDir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	meta, err := metastore.Open(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	local, err := cache.NewLocal(1000, time.Minute)
	require.NoError(t, err)

	trk := tracker.New()
	svc, err := contextsvc.New(contextsvc.Options{
		Embedder: emb,
		Store:    store,
		Cache:    local,
		Metrics:  trk.Metrics(),
	})
	require.NoError(t, err)

	srch, err := searcher.New(searcher.Options{Service: svc, Cache: local})
	require.NoError(t, err)

	ix, err := indexer.New(indexer.Options{
		Service:  svc,
		Meta:     meta,
		Tracker:  trk,
		Searcher: srch,
		Workers:  2,
	})
	require.NoError(t, err)

	return &harness{
		emb:      emb,
		store:    store,
		meta:     meta,
		svc:      svc,
		searcher: srch,
		tracker:  trk,
		indexer:  ix,
		dataDir:  dataDir,
		root:     t.TempDir(),
	}
}

// reopenStore simulates a process restart over the same data
// directory: a fresh vector store handle and service graph, the same
// metastore and embedder.
func reopenStore(t *testing.T, h *harness) *harness {
	t.Helper()

	store, err := vectorstore.NewFSStore(vectorstore.FSOptions{Root: h.dataDir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	trk := tracker.New()
	svc, err := contextsvc.New(contextsvc.Options{
		Embedder: h.emb,
		Store:    store,
		Metrics:  trk.Metrics(),
	})
	require.NoError(t, err)

	srch, err := searcher.New(searcher.Options{Service: svc})
	require.NoError(t, err)

	ix, err := indexer.New(indexer.Options{
		Service:  svc,
		Meta:     h.meta,
		Tracker:  trk,
		Searcher: srch,
		Workers:  2,
	})
	require.NoError(t, err)

	return &harness{
		emb:      h.emb,
		store:    store,
		meta:     h.meta,
		svc:      svc,
		searcher: srch,
		tracker:  trk,
		indexer:  ix,
		dataDir:  h.dataDir,
		root:     h.root,
	}
}

func (h *harness) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(h.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (h *harness) remove(t *testing.T, rel string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(h.root, filepath.FromSlash(rel))))
}
