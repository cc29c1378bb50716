package indexer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codectx/codectx/pkg/types"
)

// DefaultDebounce is how long the watcher waits after the last
// filesystem event before re-indexing. Editors emit bursts of writes;
// one incremental pass per burst is enough.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-runs incremental indexing whenever files under the root
// change. The hash diff inside IndexDirectory makes each pass cheap:
// unchanged files are skipped, so a burst of saves costs one pass over
// the touched files.
type Watcher struct {
	ix         *Indexer
	root       string
	collection string
	debounce   time.Duration
	logger     *slog.Logger
}

// WatchOptions configures NewWatcher. Zero Debounce takes the default.
type WatchOptions struct {
	Root       string
	Collection string
	Debounce   time.Duration
	Logger     *slog.Logger
}

// NewWatcher builds a watcher bound to one root and collection.
func NewWatcher(ix *Indexer, opts WatchOptions) (*Watcher, error) {
	if ix == nil {
		return nil, types.E(types.KindConfigInvalid, "watcher requires an indexer")
	}
	if opts.Root == "" || opts.Collection == "" {
		return nil, types.E(types.KindConfigInvalid, "watcher requires a root and a collection")
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		ix:         ix,
		root:       opts.Root,
		collection: opts.Collection,
		debounce:   debounce,
		logger:     logger,
	}, nil
}

// Run watches until the context is cancelled. It returns nil on
// cancellation; the caller decides whether that ends the process.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return types.Wrap(types.KindInternal, err, "create filesystem watcher")
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes",
		"root", w.root, "collection", w.collection, "debounce", w.debounce)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.irrelevant(ev) {
				continue
			}
			// New directories must be registered before their contents
			// produce events.
			if ev.Op.Has(fsnotify.Create) {
				if fi, statErr := os.Stat(ev.Name); statErr == nil && fi.IsDir() {
					_ = w.addRecursive(fw, ev.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			report, err := w.ix.IndexDirectory(ctx, w.root, w.collection)
			switch {
			case types.IsKind(err, types.KindCancelled):
				return nil
			case err != nil:
				w.logger.Error("incremental re-index failed",
					"collection", w.collection, "kind", string(types.KindOf(err)), "error", err)
			default:
				w.logger.Info("incremental re-index complete",
					"collection", w.collection,
					"indexed", report.Indexed,
					"removed", report.Removed,
					"skipped", report.Skipped,
					"failed", report.Failed,
					"duration", report.Duration)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watch error", "error", err)
		}
	}
}

// addRecursive registers path and every non-ignored directory under it.
// Non-directories are ignored; races with deletion are not errors.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, path string) error {
	absRoot, err := filepath.Abs(w.root)
	if err != nil {
		return types.Wrap(types.KindConfigInvalid, err, "resolve watch root").With("path", w.root)
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, p)
		if relErr == nil && rel != "." {
			if ignored(filepath.ToSlash(rel)+"/", w.ix.walk.ignoreGlobs()) {
				return filepath.SkipDir
			}
		}
		if addErr := fw.Add(p); addErr != nil {
			w.logger.Debug("watch add failed", "path", p, "error", addErr)
		}
		return nil
	})
}

// irrelevant filters events the indexer would ignore anyway: chmods,
// ignored subtrees, and files of no known language (directories pass
// through so renames still trigger a scan).
func (w *Watcher) irrelevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return true
	}
	absRoot, err := filepath.Abs(w.root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	rel = filepath.ToSlash(rel)
	if ignored(rel, w.ix.walk.ignoreGlobs()) || ignored(rel+"/", w.ix.walk.ignoreGlobs()) {
		return true
	}
	return false
}

// ignoreGlobs resolves the effective glob set for WalkOptions.
func (o WalkOptions) ignoreGlobs() []string {
	if o.IgnoreGlobs != nil {
		return o.IgnoreGlobs
	}
	return DefaultIgnoreGlobs
}
