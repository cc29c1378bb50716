package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codectx/codectx/internal/searcher"
)

const orderSource = `package billing

// SettleInvoice reconciles an invoice against received payments.
func SettleInvoice(inv Invoice, payments []Payment) error {
	total := 0
	for _, p := range payments {
		total += p.Amount
	}
	if total < inv.Amount {
		return ErrUnderpaid
	}
	return nil
}
`

const authSource = `package auth

func validateSessionToken(token string) bool {
	if token == "" {
		return false
	}
	return sessionStore.Exists(token)
}
`

const pySource = `def rotate_credentials(store, user):
    """Issue a fresh credential pair and revoke the old one."""
    old = store.lookup(user)
    fresh = store.issue(user)
    store.revoke(old)
    return fresh
`

func TestColdIndexThenSearch(t *testing.T) {
	h := newHarness(t)
	h.write(t, "billing/invoice.go", orderSource)
	h.write(t, "auth/session.go", authSource)
	h.write(t, "scripts/rotate.py", pySource)
	ctx := context.Background()

	report, err := h.indexer.IndexDirectory(ctx, h.root, "code")
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalFiles)
	assert.Equal(t, 3, report.Indexed)
	assert.Zero(t, report.Failed)
	assert.Positive(t, report.Chunks)

	resp, err := h.searcher.Search(ctx, searcher.Request{
		Collection: "code", Query: "SettleInvoice", K: 5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "billing/invoice.go", resp.Results[0].FilePath)

	// Vectors are on disk: a second store handle over the same data
	// directory serves the same collection.
	infos, err := h.store.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, report.Chunks, infos[0].Vectors)
}

func TestIncrementalEditOnlyReembedsChangedFile(t *testing.T) {
	h := newHarness(t)
	h.write(t, "billing/invoice.go", orderSource)
	h.write(t, "auth/session.go", authSource)
	ctx := context.Background()

	_, err := h.indexer.IndexDirectory(ctx, h.root, "code")
	require.NoError(t, err)
	before := h.emb.texts.Load()

	// No changes: the diff skips everything, no provider traffic.
	second, err := h.indexer.IndexDirectory(ctx, h.root, "code")
	require.NoError(t, err)
	assert.Zero(t, second.Indexed)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, before, h.emb.texts.Load(), "unchanged runs embed nothing")

	h.write(t, "auth/session.go", authSource+"\nfunc revokeSession(token string) {}\n")
	third, err := h.indexer.IndexDirectory(ctx, h.root, "code")
	require.NoError(t, err)
	assert.Equal(t, 1, third.Indexed)
	assert.Equal(t, 1, third.Skipped)
	assert.Greater(t, h.emb.texts.Load(), before, "the edited file is re-embedded")

	// The skipped file still counts toward operation progress: it was
	// walked and diffed, it just needed no new embeddings.
	op := h.tracker.Get(third.OperationID)
	require.NotNil(t, op)
	assert.Equal(t, 2, op.TotalFiles)
	assert.Equal(t, 2, op.ProcessedFiles)

	resp, err := h.searcher.Search(ctx, searcher.Request{
		Collection: "code", Query: "revokeSession", K: 5, Mode: searcher.ModeKeyword,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "auth/session.go", resp.Results[0].FilePath)
}

func TestDeletedFileDisappearsFromSearch(t *testing.T) {
	h := newHarness(t)
	h.write(t, "billing/invoice.go", orderSource)
	h.write(t, "auth/session.go", authSource)
	ctx := context.Background()

	_, err := h.indexer.IndexDirectory(ctx, h.root, "code")
	require.NoError(t, err)

	h.remove(t, "auth/session.go")
	report, err := h.indexer.IndexDirectory(ctx, h.root, "code")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)

	for _, mode := range []searcher.Mode{searcher.ModeKeyword, searcher.ModeVector, searcher.ModeHybrid} {
		resp, err := h.searcher.Search(ctx, searcher.Request{
			Collection: "code", Query: "validateSessionToken", K: 10, Mode: mode, NoCache: true,
		})
		require.NoError(t, err)
		for _, r := range resp.Results {
			assert.NotEqual(t, "auth/session.go", r.FilePath, "mode %s leaked a deleted file", mode)
		}
	}

	project, err := h.meta.GetOrCreateProject(ctx, h.root)
	require.NoError(t, err)
	active, err := h.meta.ListActiveFiles(ctx, project.ID, "code")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing/invoice.go"}, active)
}
