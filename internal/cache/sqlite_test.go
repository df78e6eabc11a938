package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-signal-hub/internal/observability"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := openTestStore(t)

	stored := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	entry := Entry{
		Key:       "fp-1",
		Value:     []byte(`["a","b"]`),
		StoredAt:  stored,
		ExpiresAt: stored.Add(time.Hour),
	}
	require.NoError(t, store.Put(context.Background(), entry))

	got, ok, err := store.Get(context.Background(), "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Value, got.Value)
	assert.Equal(t, entry.StoredAt, got.StoredAt)
	assert.Equal(t, entry.ExpiresAt, got.ExpiresAt)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().Truncate(time.Millisecond).UTC()

	require.NoError(t, store.Put(context.Background(), Entry{
		Key: "fp-1", Value: []byte(`"old"`), StoredAt: now, ExpiresAt: now.Add(time.Minute),
	}))
	require.NoError(t, store.Put(context.Background(), Entry{
		Key: "fp-1", Value: []byte(`"new"`), StoredAt: now.Add(time.Minute), ExpiresAt: now.Add(2 * time.Minute),
	}))

	got, ok, err := store.Get(context.Background(), "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`"new"`), got.Value)
	assert.Equal(t, now.Add(2*time.Minute), got.ExpiresAt)
}

func TestSQLiteStore_DeleteAndSweep(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().Truncate(time.Millisecond).UTC()

	require.NoError(t, store.Put(context.Background(), Entry{Key: "live", Value: []byte(`1`), StoredAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Put(context.Background(), Entry{Key: "expired", Value: []byte(`2`), StoredAt: now.Add(-time.Hour), ExpiresAt: now}))

	require.NoError(t, store.Delete(context.Background(), "missing"), "deleting a missing key is not an error")

	removed, err := store.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := store.Get(context.Background(), "live")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = store.Get(context.Background(), "expired")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_OpenRequiresPath(t *testing.T) {
	_, err := OpenSQLiteStore("   ")
	require.Error(t, err)
}

// The cache contents must survive a restart when backed by SQLite.
func TestCache_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC))

	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	c := New[[]string](store, clock, testLogger(), observability.NewMetricsForTesting())

	_, _, err = c.GetOrLoad(context.Background(), "fp-persist", time.Hour, func(context.Context) ([]string, error) {
		return []string{"persisted"}, nil
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	c2 := New[[]string](reopened, clock, testLogger(), observability.NewMetricsForTesting())
	v, cached, err := c2.GetOrLoad(context.Background(), "fp-persist", time.Hour, func(context.Context) ([]string, error) {
		t.Fatal("loader must not run for a persisted entry")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, []string{"persisted"}, v)
}
