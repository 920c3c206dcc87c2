package history

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testEntry(id, sessionID string, start time.Time) Entry {
	return Entry{
		ExecutionID: id,
		SessionID:   sessionID,
		Script:      `output := 1`,
		Result:      "1",
		Success:     true,
		StartTime:   start,
		EndTime:     start.Add(10 * time.Millisecond),
		Duration:    10 * time.Millisecond,
	}
}

func TestStore_FindNewestFirst(t *testing.T) {
	store := newTestStore(t, DefaultOptions())
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	for i := 0; i < 3; i++ {
		entry := testEntry(fmt.Sprintf("exec-%d", i), "sess-1", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.Append(ctx, entry))
	}

	entries, err := store.Find(ctx, Query{SessionID: "sess-1"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "exec-2", entries[0].ExecutionID)
	assert.Equal(t, "exec-0", entries[2].ExecutionID)
}

func TestStore_FindFiltersBySession(t *testing.T) {
	store := newTestStore(t, DefaultOptions())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Append(ctx, testEntry("exec-a", "sess-a", now)))
	require.NoError(t, store.Append(ctx, testEntry("exec-b", "sess-b", now)))

	entries, err := store.Find(ctx, Query{SessionID: "sess-a"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "exec-a", entries[0].ExecutionID)
}

func TestStore_FindRespectsLimit(t *testing.T) {
	store := newTestStore(t, DefaultOptions())
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, testEntry(fmt.Sprintf("exec-%d", i), "sess-1", base.Add(time.Duration(i)*time.Second))))
	}

	entries, err := store.Find(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_NonDetailedStripsBodies(t *testing.T) {
	store := newTestStore(t, DefaultOptions())
	ctx := context.Background()

	entry := testEntry("exec-1", "sess-1", time.Now())
	entry.Result = strings.Repeat("x", 500)
	require.NoError(t, store.Append(ctx, entry))

	entries, err := store.Find(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Script, "script source is a detailed-only field")
	assert.Len(t, entries[0].Result, 203, "long results are truncated with an ellipsis")

	detailed, err := store.Find(ctx, Query{Detailed: true})
	require.NoError(t, err)
	assert.Equal(t, `output := 1`, detailed[0].Script)
	assert.Len(t, detailed[0].Result, 500)
}

func TestStore_CountEvictionDropsOldest(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxEntries = 3
	store := newTestStore(t, opts)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, testEntry(fmt.Sprintf("exec-%d", i), "sess-1", base.Add(time.Duration(i)*time.Second))))
	}

	entries, err := store.Find(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "exec-4", entries[0].ExecutionID)
	assert.Equal(t, "exec-2", entries[2].ExecutionID, "oldest entries are evicted first")
}

func TestStore_FindExcludesEntriesPastRetention(t *testing.T) {
	store := newTestStore(t, DefaultOptions())
	ctx := context.Background()

	// Aged rows must be invisible even before the sweep removes them.
	require.NoError(t, store.Append(ctx, testEntry("exec-aged", "sess-1", time.Now().Add(-25*time.Hour))))
	require.NoError(t, store.Append(ctx, testEntry("exec-fresh", "sess-1", time.Now())))

	entries, err := store.Find(ctx, Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "exec-fresh", entries[0].ExecutionID)
}

func TestStore_SweepDropsAgedEntries(t *testing.T) {
	opts := DefaultOptions()
	opts.Retention = time.Minute
	store := newTestStore(t, opts)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testEntry("exec-old", "sess-1", time.Now().Add(-time.Hour))))
	require.NoError(t, store.Append(ctx, testEntry("exec-new", "sess-1", time.Now())))
	require.NoError(t, store.Sweep(ctx))

	entries, err := store.Find(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "exec-new", entries[0].ExecutionID)
}
