package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quickchat/todo-triage/internal/core"
)

func newTestSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	r, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "todos.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRepo_RoundTrip(t *testing.T) {
	r := newTestSQLiteRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	deadline := now.Add(72 * time.Hour)

	item := testItem("t1", now)
	item.Deadline = &deadline
	item.RecipientType = core.RecipientCC
	item.Evidence = []string{"deadline mentioned", "explicit request"}
	item.IsTop3 = true
	item.PersonaName = "Morgan"

	require.NoError(t, r.SaveAll(ctx, []core.TodoItem{item}))

	active, err := r.LoadActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	got := active[0]
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, item.Title, got.Title)
	assert.Equal(t, core.PriorityMedium, got.Priority)
	assert.Equal(t, core.RecipientCC, got.RecipientType)
	require.NotNil(t, got.Deadline)
	assert.True(t, got.Deadline.Equal(deadline))
	assert.Nil(t, got.SnoozeUntil)
	assert.Equal(t, item.Evidence, got.Evidence)
	assert.True(t, got.IsTop3)
	assert.Equal(t, "Morgan", got.PersonaName)
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestSQLiteRepo_MarkDoneExcludesFromActive(t *testing.T) {
	r := newTestSQLiteRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, r.SaveAll(ctx, []core.TodoItem{testItem("t1", now), testItem("t2", now)}))
	require.NoError(t, r.MarkDone(ctx, "t1", now.Add(time.Hour)))

	active, err := r.LoadActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "t2", active[0].ID)

	assert.ErrorIs(t, r.MarkDone(ctx, "missing", now), ErrNotFound)
}

func TestSQLiteRepo_SnoozeAndRelease(t *testing.T) {
	r := newTestSQLiteRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	until := now.Add(48 * time.Hour)

	require.NoError(t, r.SaveAll(ctx, []core.TodoItem{testItem("t1", now)}))
	require.NoError(t, r.Snooze(ctx, "t1", until, now))
	assert.ErrorIs(t, r.Snooze(ctx, "missing", until, now), ErrNotFound)

	released, err := r.ReleaseSnoozed(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, released)

	released, err = r.ReleaseSnoozed(ctx, until.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	active, err := r.LoadActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, core.StatusPending, active[0].Status)
	assert.Nil(t, active[0].SnoozeUntil)
}

func TestSQLiteRepo_UpdateTop3Flags(t *testing.T) {
	r := newTestSQLiteRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	flagged := testItem("t1", now)
	flagged.IsTop3 = true
	require.NoError(t, r.SaveAll(ctx, []core.TodoItem{flagged, testItem("t2", now)}))

	require.NoError(t, r.UpdateTop3Flags(ctx, map[string]bool{"t2": true, "t1": false}))

	active, err := r.LoadActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, item := range active {
		assert.Equal(t, item.ID == "t2", item.IsTop3, "item %s", item.ID)
	}
}

func TestSQLiteRepo_CleanupOlderThan(t *testing.T) {
	r := newTestSQLiteRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, r.SaveAll(ctx, []core.TodoItem{
		testItem("old", now.AddDate(0, 0, -60)),
		testItem("recent", now.AddDate(0, 0, -3)),
	}))

	removed, err := r.CleanupOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	active, err := r.LoadActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "recent", active[0].ID)
}
