// Package tracker keeps the state of long-running index operations and
// the process-wide counters behind `admin metrics`. Writes are
// serialized; reads return copies so callers never observe a snapshot
// mid-update.
package tracker

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/codectx/codectx/pkg/types"
)

// State is the lifecycle state of one operation.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Operation is a snapshot of one index operation.
type Operation struct {
	ID             string    `json:"id"`
	Collection     string    `json:"collection"`
	State          State     `json:"state"`
	TotalFiles     int       `json:"total_files"`
	ProcessedFiles int       `json:"processed_files"`
	CurrentFile    string    `json:"current_file,omitempty"`
	FailReason     string    `json:"fail_reason,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitzero"`
}

// Tracker owns operation state. The zero value is not usable; call New.
type Tracker struct {
	mu  sync.RWMutex
	ops map[string]*Operation

	metrics Metrics
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{ops: make(map[string]*Operation)}
}

// Begin opens a new running operation and returns its ID.
func (t *Tracker) Begin(collection string, totalFiles int) string {
	op := &Operation{
		ID:         uuid.NewString(),
		Collection: collection,
		State:      StateRunning,
		TotalFiles: totalFiles,
		StartedAt:  time.Now().UTC(),
	}
	t.mu.Lock()
	t.ops[op.ID] = op
	t.mu.Unlock()
	return op.ID
}

// Advance bumps the processed count and records the file being worked
// on. processed_files only ever grows.
func (t *Tracker) Advance(opID, currentFile string, delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[opID]
	if !ok || op.State != StateRunning {
		return
	}
	if delta > 0 {
		op.ProcessedFiles += delta
	}
	op.CurrentFile = currentFile
}

// Complete marks a running operation finished.
func (t *Tracker) Complete(opID string) {
	t.finish(opID, StateCompleted, "")
}

// Fail marks a running operation failed with a reason. Cancellation is
// a failure with reason "cancelled".
func (t *Tracker) Fail(opID, reason string) {
	t.finish(opID, StateFailed, reason)
}

func (t *Tracker) finish(opID string, state State, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[opID]
	if !ok || op.State != StateRunning {
		return
	}
	op.State = state
	op.FailReason = reason
	op.CurrentFile = ""
	op.FinishedAt = time.Now().UTC()
}

// Get returns a copy of one operation, nil when unknown.
func (t *Tracker) Get(opID string) *Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[opID]
	if !ok {
		return nil
	}
	snapshot := *op
	return &snapshot
}

// List returns copies of all operations, newest first.
func (t *Tracker) List() []*Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Operation, 0, len(t.ops))
	for _, op := range t.ops {
		snapshot := *op
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Running returns the most recent running operation for a collection,
// nil when idle. Empty collection matches any.
func (t *Tracker) Running(collection string) *Operation {
	for _, op := range t.List() {
		if op.State == StateRunning && (collection == "" || op.Collection == collection) {
			return op
		}
	}
	return nil
}

// Metrics returns the counter set. Counters are shared process-wide
// and safe for concurrent use.
func (t *Tracker) Metrics() *Metrics {
	return &t.metrics
}

// Metrics is the atomic counter set exposed by `admin metrics`.
type Metrics struct {
	FilesIndexed        atomic.Int64
	FilesSkipped        atomic.Int64
	FilesFailed         atomic.Int64
	ChunksCreated       atomic.Int64
	EmbeddingsGenerated atomic.Int64
	CacheHits           atomic.Int64
	CacheMisses         atomic.Int64
	SearchesServed      atomic.Int64
	VectorsStored       atomic.Int64
}

// Snapshot returns the counters as a plain map for JSON output.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"files_indexed":        m.FilesIndexed.Load(),
		"files_skipped":        m.FilesSkipped.Load(),
		"files_failed":         m.FilesFailed.Load(),
		"chunks_created":       m.ChunksCreated.Load(),
		"embeddings_generated": m.EmbeddingsGenerated.Load(),
		"cache_hits":           m.CacheHits.Load(),
		"cache_misses":         m.CacheMisses.Load(),
		"searches_served":      m.SearchesServed.Load(),
		"vectors_stored":       m.VectorsStored.Load(),
	}
}

// RecordReport folds a finished index report into the counters.
func (m *Metrics) RecordReport(r *types.IndexReport) {
	if r == nil {
		return
	}
	m.FilesIndexed.Add(int64(r.Indexed))
	m.FilesSkipped.Add(int64(r.Skipped))
	m.FilesFailed.Add(int64(r.Failed))
	m.ChunksCreated.Add(int64(r.Chunks))
}
