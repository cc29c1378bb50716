// Package indexer orchestrates directory indexing: enumerate, diff
// against recorded hashes, chunk, embed, store, and keep the metadata
// and lexical index in sync. Per-file failures are recorded and never
// abort an operation; cancellation stops at file boundaries and
// flushes so completed work stays queryable.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codectx/codectx/internal/chunker"
	"github.com/codectx/codectx/internal/contextsvc"
	"github.com/codectx/codectx/internal/events"
	"github.com/codectx/codectx/internal/metastore"
	"github.com/codectx/codectx/internal/searcher"
	"github.com/codectx/codectx/internal/tracker"
	"github.com/codectx/codectx/internal/vectorstore"
	"github.com/codectx/codectx/pkg/types"
)

// DefaultWorkers bounds concurrent file processing when Options.Workers
// is zero.
const DefaultWorkers = 4

// Retry policy for transient embed/store failures, per file.
const (
	retryBaseDelay   = 200 * time.Millisecond
	retryMaxDelay    = 5 * time.Second
	retryMultiplier  = 2
	retryMaxAttempts = 5
)

// Indexer runs index operations against one engine instance.
type Indexer struct {
	svc      *contextsvc.Service
	chunker  *chunker.Chunker
	meta     metastore.Store
	tracker  *tracker.Tracker
	bus      *events.Bus
	searcher *searcher.Searcher
	logger   *slog.Logger
	workers  int
	walk     WalkOptions

	// insertMu serializes vector inserts per indexer instance so the
	// store never sees interleaved partial batches for a collection.
	insertMu sync.Mutex
}

// Options configures New. Searcher and Bus may be nil; Tracker is
// required so progress is always observable.
type Options struct {
	Service  *contextsvc.Service
	Chunker  *chunker.Chunker
	Meta     metastore.Store
	Tracker  *tracker.Tracker
	Bus      *events.Bus
	Searcher *searcher.Searcher
	Logger   *slog.Logger
	Workers  int
	Walk     WalkOptions
}

// New builds an indexer.
func New(opts Options) (*Indexer, error) {
	if opts.Service == nil {
		return nil, types.E(types.KindConfigInvalid, "indexer requires a context service")
	}
	if opts.Meta == nil {
		return nil, types.E(types.KindConfigInvalid, "indexer requires a metadata store")
	}
	if opts.Tracker == nil {
		return nil, types.E(types.KindConfigInvalid, "indexer requires an operation tracker")
	}
	ch := opts.Chunker
	if ch == nil {
		ch = chunker.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Indexer{
		svc:      opts.Service,
		chunker:  ch,
		meta:     opts.Meta,
		tracker:  opts.Tracker,
		bus:      opts.Bus,
		searcher: opts.Searcher,
		logger:   logger,
		workers:  workers,
		walk:     opts.Walk,
	}, nil
}

// fileClass is the diff outcome for one candidate.
type fileClass int

const (
	classNew fileClass = iota
	classChanged
	classUnchanged
)

type plannedFile struct {
	info  FileInfo
	hash  string
	class fileClass
}

// IndexDirectory indexes root into collection. The returned report is
// non-nil whenever an operation was opened, including on cancellation;
// cancellation also returns a Cancelled error.
func (ix *Indexer) IndexDirectory(ctx context.Context, root, collection string) (*types.IndexReport, error) {
	start := time.Now()

	project, err := ix.meta.GetOrCreateProject(ctx, root)
	if err != nil {
		return nil, err
	}
	if err := ix.ensureCollection(ctx, project.ID, collection); err != nil {
		return nil, err
	}

	files, err := Walk(root, ix.walk)
	if err != nil {
		return nil, err
	}

	planned, unchanged, err := ix.diff(ctx, project.ID, collection, files)
	if err != nil {
		return nil, err
	}
	removed, err := ix.removedFiles(ctx, project.ID, collection, files)
	if err != nil {
		return nil, err
	}

	// The operation total is the scanned set, fixed at plan time.
	// Unchanged files count as processed up front: they were walked and
	// diffed, they just need no re-embedding.
	opID := ix.tracker.Begin(collection, len(files))
	ix.publish(events.IndexingStarted{OperationID: opID, Collection: collection, TotalFiles: len(files)})
	report := &types.IndexReport{
		OperationID: opID,
		Collection:  collection,
		TotalFiles:  len(files),
		Skipped:     unchanged,
	}
	if unchanged > 0 {
		ix.tracker.Advance(opID, "", unchanged)
	}

	// Removed and changed files lose their old vectors before any new
	// work, so a crash mid-operation never leaves both versions live.
	for _, rel := range removed {
		if err := ix.dropFile(ctx, project.ID, collection, rel, true); err != nil {
			ix.logger.Warn("drop removed file", "file", rel, "kind", string(types.KindOf(err)), "error", err)
			continue
		}
		report.Removed++
	}
	for _, pf := range planned {
		if pf.class == classChanged {
			if err := ix.dropFile(ctx, project.ID, collection, pf.info.RelPath, false); err != nil {
				ix.logger.Warn("drop changed file", "file", pf.info.RelPath, "kind", string(types.KindOf(err)), "error", err)
			}
		}
	}

	cancelled := ix.runPipeline(ctx, project.ID, collection, opID, planned, report)

	// Flush regardless of outcome: completed files must be queryable.
	if err := ix.svc.Store().Flush(context.WithoutCancel(ctx), collection); err != nil {
		ix.logger.Error("flush after indexing", "collection", collection, "kind", string(types.KindOf(err)), "error", err)
	}

	report.Duration = time.Since(start)
	ix.tracker.Metrics().RecordReport(report)
	ix.publish(events.IndexingCompleted{
		OperationID: opID,
		Collection:  collection,
		Indexed:     report.Indexed,
		Skipped:     report.Skipped,
		Failed:      report.Failed,
		DurationMS:  report.Duration.Milliseconds(),
	})

	if cancelled {
		report.Cancelled = true
		ix.tracker.Fail(opID, "cancelled")
		return report, types.Wrap(types.KindCancelled, ctx.Err(), "indexing cancelled").
			With("collection", collection)
	}
	ix.tracker.Complete(opID)
	return report, nil
}

// ensureCollection creates the vector collection on first use and keeps
// the metastore registry row in sync. A missing vector collection with
// leftover hash rows means the collection was deleted out from under
// us; the rows are purged so the next diff re-indexes everything.
func (ix *Indexer) ensureCollection(ctx context.Context, projectID, collection string) error {
	store := ix.svc.Store()
	exists, err := store.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		if err := store.CreateCollection(ctx, collection, ix.svc.Dimensions()); err != nil {
			return err
		}
		if err := ix.meta.DeleteCollection(ctx, projectID, collection); err != nil {
			return err
		}
		if ix.searcher != nil {
			ix.searcher.DropCollection(collection)
		}
	}
	_, err = ix.meta.UpsertCollection(ctx, projectID, collection, collection)
	return err
}

// diff hashes every candidate and classifies it against the recorded
// hashes. Unchanged files are counted, not planned.
func (ix *Indexer) diff(ctx context.Context, projectID, collection string, files []FileInfo) ([]plannedFile, int, error) {
	var planned []plannedFile
	unchanged := 0
	for _, f := range files {
		raw, err := os.ReadFile(f.Path)
		if err != nil {
			ix.logger.Warn("read candidate", "file", f.RelPath, "error", err)
			continue
		}
		sum := sha256.Sum256(raw)
		hash := hex.EncodeToString(sum[:])

		prev, err := ix.meta.LookupFileHash(ctx, projectID, collection, f.RelPath)
		if err != nil {
			return nil, 0, err
		}
		switch {
		case prev == nil || prev.DeletedAt != nil:
			planned = append(planned, plannedFile{info: f, hash: hash, class: classNew})
		case prev.ContentHash != hash:
			planned = append(planned, plannedFile{info: f, hash: hash, class: classChanged})
		default:
			unchanged++
		}
	}
	return planned, unchanged, nil
}

// removedFiles lists recorded-active files that the walk no longer saw.
func (ix *Indexer) removedFiles(ctx context.Context, projectID, collection string, files []FileInfo) ([]string, error) {
	active, err := ix.meta.ListActiveFiles(ctx, projectID, collection)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.RelPath] = true
	}
	var removed []string
	for _, rel := range active {
		if !seen[rel] {
			removed = append(removed, rel)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

// dropFile removes a file's vectors and lexical entries; when tombstone
// is set the metadata row is marked deleted too.
func (ix *Indexer) dropFile(ctx context.Context, projectID, collection, rel string, tombstone bool) error {
	if _, err := ix.svc.Store().DeleteByFile(ctx, collection, rel); err != nil {
		return err
	}
	if ix.searcher != nil {
		ix.searcher.RemoveFile(collection, rel)
	}
	if tombstone {
		return ix.meta.MarkFileDeleted(ctx, projectID, collection, rel)
	}
	return nil
}

// runPipeline processes planned files with a bounded worker pool.
// Returns true when the context was cancelled before all files were
// picked up.
func (ix *Indexer) runPipeline(ctx context.Context, projectID, collection, opID string, planned []plannedFile, report *types.IndexReport) bool {
	if len(planned) == 0 {
		return ctx.Err() != nil
	}

	var reportMu sync.Mutex
	sem := semaphore.NewWeighted(int64(ix.workers))
	// The group context is deliberately not used for per-file work:
	// in-flight files run to completion, only pick-up stops.
	g := new(errgroup.Group)

	cancelled := false
	for _, pf := range planned {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			cancelled = true
			break
		}
		pf := pf
		g.Go(func() error {
			defer sem.Release(1)
			chunks, err := ix.indexFile(context.WithoutCancel(ctx), projectID, collection, pf)

			reportMu.Lock()
			defer reportMu.Unlock()
			if err != nil {
				report.Failed++
				report.FileErrors = append(report.FileErrors, types.FileError{
					Path: pf.info.RelPath,
					Err:  err.Error(),
				})
			} else {
				report.Indexed++
				report.Chunks += chunks
			}
			ix.tracker.Advance(opID, pf.info.RelPath, 1)
			ix.publish(events.IndexingProgress{
				OperationID:    opID,
				ProcessedFiles: report.Skipped + report.Indexed + report.Failed,
				CurrentFile:    pf.info.RelPath,
			})
			return nil
		})
	}
	_ = g.Wait()
	return cancelled || ctx.Err() != nil
}

// indexFile runs the per-file pipeline: chunk, embed+insert with
// retries, record the hash. Returns the chunk count, or a
// FileIndexingFailed error once the retry budget is spent.
func (ix *Indexer) indexFile(ctx context.Context, projectID, collection string, pf plannedFile) (int, error) {
	raw, err := os.ReadFile(pf.info.Path)
	if err != nil {
		return 0, types.Wrap(types.KindFileIndexingFailed, err, "read file").With("path", pf.info.RelPath)
	}

	lang := types.LanguageForPath(pf.info.Path)
	chunks, err := ix.chunker.Chunk(ctx, pf.info.RelPath, raw, lang)
	if err != nil {
		return 0, types.Wrap(types.KindFileIndexingFailed, err, "chunk file").With("path", pf.info.RelPath)
	}

	if len(chunks) > 0 {
		err = ix.withRetry(ctx, func() error {
			ix.insertMu.Lock()
			defer ix.insertMu.Unlock()
			_, err := ix.svc.StoreChunks(ctx, collection, chunks)
			return err
		})
		if err != nil {
			return 0, types.Wrap(types.KindFileIndexingFailed, err, "store chunks").With("path", pf.info.RelPath)
		}
		if ix.searcher != nil {
			ix.searcher.AddChunks(collection, chunkMetas(chunks))
		}
	}

	// The hash row is written even for zero-chunk files so unchanged
	// empty files are skipped next run.
	if err := ix.meta.UpsertFileHash(ctx, projectID, collection, pf.info.RelPath, pf.hash); err != nil {
		return 0, types.Wrap(types.KindFileIndexingFailed, err, "record file hash").With("path", pf.info.RelPath)
	}
	return len(chunks), nil
}

// withRetry retries transient failures with exponential backoff.
func (ix *Indexer) withRetry(ctx context.Context, fn func() error) error {
	delay := retryBaseDelay
	var err error
	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		err = fn()
		if err == nil || !types.IsTransient(err) {
			return err
		}
		if attempt == retryMaxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.Wrap(types.KindCancelled, ctx.Err(), "retry interrupted")
		}
		delay *= retryMultiplier
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return err
}

func (ix *Indexer) publish(e events.Event) {
	if ix.bus != nil {
		ix.bus.Publish(e)
	}
}

func chunkMetas(chunks []*types.CodeChunk) []vectorstore.ChunkMeta {
	metas := make([]vectorstore.ChunkMeta, len(chunks))
	for i, c := range chunks {
		metas[i] = vectorstore.ChunkMeta{
			ChunkID:   c.ID,
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Content:   c.Content,
			Extra:     c.Metadata,
		}
	}
	return metas
}
