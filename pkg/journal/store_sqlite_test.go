package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAudit_AppendListClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)
	require.NoError(t, store.AppendAudit(ctx, AuditRecord{Timestamp: ts, Kind: "open_application", Detail: "calculator", Status: StatusBlocked}))
	require.NoError(t, store.AppendAudit(ctx, AuditRecord{Kind: "web_search", Detail: "go generics", Status: StatusExecuted}))
	require.NoError(t, store.AppendAudit(ctx, AuditRecord{Kind: "warp_drive", Status: StatusMissing}))

	all, err := store.ListAudit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, StatusBlocked, all[0].Status)
	assert.Equal(t, ts.UnixMilli(), all[0].Timestamp.UnixMilli())
	assert.NotEmpty(t, all[0].ID)
	assert.Equal(t, "2026-03-01 09:30:00 | blocked | open_application | calculator", all[0].Line())

	latest, err := store.ListAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "web_search", latest[0].Kind)
	assert.Equal(t, "warp_drive", latest[1].Kind)

	require.NoError(t, store.ClearAudit(ctx))
	all, err = store.ListAudit(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHistory_FilterBySource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendHistory(ctx, "what time is it", SourceVoice))
	require.NoError(t, store.AppendHistory(ctx, "open calculator", SourceText))
	require.NoError(t, store.AppendHistory(ctx, "   ", SourceText))
	require.NoError(t, store.AppendHistory(ctx, "go to sleep", SourceVoice))

	voice, err := store.ListHistory(ctx, 0, SourceVoice)
	require.NoError(t, err)
	require.Len(t, voice, 2)
	assert.Equal(t, "what time is it", voice[0].Text)
	assert.Equal(t, "go to sleep", voice[1].Text)

	all, err := store.ListHistory(ctx, 0, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.ClearHistory(ctx))
	all, err = store.ListHistory(ctx, 0, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSessionLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendSessionLog(ctx, "user", "hello"))
	require.NoError(t, store.AppendSessionLog(ctx, "assistant", "hi"))

	entries, err := store.ListSessionLog(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "assistant", entries[0].Kind)

	require.NoError(t, store.ClearSessionLog(ctx))
	entries, err = store.ListSessionLog(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNotes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddNote(ctx, " ")
	assert.Error(t, err)

	first, err := store.AddNote(ctx, "buy milk")
	require.NoError(t, err)
	assert.Len(t, first.ID, 8)
	_, err = store.AddNote(ctx, "call mom")
	require.NoError(t, err)

	notes, err := store.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "buy milk", notes[0].Text)

	found, err := store.DeleteNote(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = store.DeleteNote(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.ClearNotes(ctx))
	notes, err = store.ListNotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestUsageTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	totals, err := store.UsageTotals(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals.Calls)

	require.NoError(t, store.RecordUsage(ctx, UsageRecord{Model: "gpt-4o", PromptTokens: 1000, CompletionTokens: 100, Cost: 0.0035}))
	require.NoError(t, store.RecordUsage(ctx, UsageRecord{Model: "gpt-4o", PromptTokens: 500, CompletionTokens: 50, Cost: 0.00175}))

	totals, err = store.UsageTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Calls)
	assert.EqualValues(t, 1500, totals.PromptTokens)
	assert.EqualValues(t, 150, totals.CompletionTokens)
	assert.InDelta(t, 0.00525, totals.Cost, 1e-9)
}
