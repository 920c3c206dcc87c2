package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest runs the contract suite against every Store implementation.
func storeUnderTest(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStore_SetGetRoundtrip(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Set(ctx, "sess-1", "lastDeployment", "42"))

			value, ok, err := store.Get(ctx, "sess-1", "lastDeployment")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "42", value)
		})
	}
}

func TestStore_GetMissingKey(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(context.Background(), "sess-1", "missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Set(ctx, "sess-1", "k", "old"))
			require.NoError(t, store.Set(ctx, "sess-1", "k", "new"))

			value, ok, err := store.Get(ctx, "sess-1", "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "new", value)
		})
	}
}

func TestStore_ListIsSorted(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Set(ctx, "sess-1", "zebra", "1"))
			require.NoError(t, store.Set(ctx, "sess-1", "alpha", "2"))

			keys, err := store.List(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha", "zebra"}, keys)
		})
	}
}

func TestStore_SessionIsolation(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Set(ctx, "sess-a", "color", "red"))

			_, ok, err := store.Get(ctx, "sess-b", "color")
			require.NoError(t, err)
			assert.False(t, ok, "sessions must never see each other's keys")
		})
	}
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Set(ctx, "sess-1", "k", "v"))
			require.NoError(t, store.Delete(ctx, "sess-1", "k"))
			require.NoError(t, store.Delete(ctx, "sess-1", "k"))

			_, ok, err := store.Get(ctx, "sess-1", "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_ClearRemovesAllKeys(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Set(ctx, "sess-1", "a", "1"))
			require.NoError(t, store.Set(ctx, "sess-1", "b", "2"))
			require.NoError(t, store.Set(ctx, "sess-2", "c", "3"))

			require.NoError(t, store.Clear(ctx, "sess-1"))

			keys, err := store.List(ctx, "sess-1")
			require.NoError(t, err)
			assert.Empty(t, keys)

			_, ok, err := store.Get(ctx, "sess-2", "c")
			require.NoError(t, err)
			assert.True(t, ok, "clearing one session must not touch others")
		})
	}
}

func TestSQLiteStore_SweepPrunesExpiredSessions(t *testing.T) {
	opts := DefaultOptions()
	opts.Retention = 50 * time.Millisecond
	opts.SweepInterval = time.Hour // sweep manually
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "old", "k", "v"))

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, store.Set(ctx, "fresh", "k", "v"))
	require.NoError(t, store.Sweep(ctx))

	_, ok, err := store.Get(ctx, "old", "k")
	require.NoError(t, err)
	assert.False(t, ok, "session past the retention horizon must be pruned")

	_, ok, err = store.Get(ctx, "fresh", "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "sess-1", "k", "v"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	value, ok, err := reopened.Get(context.Background(), "sess-1", "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}
