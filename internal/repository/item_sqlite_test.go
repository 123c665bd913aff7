package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zoho-mirror-api/internal/model"
)

func newTestItemStore(t *testing.T) *SQLiteItemStore {
	t.Helper()
	store, err := NewSQLiteItemStore(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testItem(id int64, name string, modified time.Time) model.Item {
	m := modified.UTC()
	return model.Item{
		ItemID:           id,
		Name:             name,
		SKU:              "SKU-" + name,
		Status:           "active",
		Rate:             9.99,
		StockOnHand:      5,
		LastModifiedTime: &m,
	}
}

func TestItemStoreApplyChangeSet(t *testing.T) {
	store := newTestItemStore(t)
	ctx := context.Background()
	modified := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	inserts := []model.Item{
		testItem(1, "alpha", modified),
		testItem(2, "beta", modified),
	}
	result, err := store.ApplyChangeSet(ctx, inserts, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, result.InsertedIDs)
	assert.Empty(t, result.UpdatedIDs)
	assert.Empty(t, result.SkippedIDs)

	// Existence check reflects what was written.
	existing, err := store.ExistingIDs(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, existing, 2)
	assert.True(t, existing[1].Equal(modified))
	_, ok := existing[3]
	assert.False(t, ok)

	// Updates touch existing rows only.
	later := modified.Add(time.Hour)
	updated := testItem(1, "alpha-renamed", later)
	missing := testItem(99, "ghost", later)
	result, err = store.ApplyChangeSet(ctx, nil, []model.Item{updated, missing})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, result.UpdatedIDs)
	assert.Equal(t, []string{"99"}, result.SkippedIDs)

	existing, err = store.ExistingIDs(ctx, []int64{1})
	require.NoError(t, err)
	assert.True(t, existing[1].Equal(later))
}

func TestItemStoreInsertConflictIsSkipped(t *testing.T) {
	store := newTestItemStore(t)
	ctx := context.Background()
	modified := time.Now()

	_, err := store.ApplyChangeSet(ctx, []model.Item{testItem(1, "alpha", modified)}, nil)
	require.NoError(t, err)

	// Re-inserting the same key must not abort the batch.
	result, err := store.ApplyChangeSet(ctx, []model.Item{
		testItem(1, "alpha-dupe", modified),
		testItem(2, "beta", modified),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, result.InsertedIDs)
	assert.Equal(t, []string{"1"}, result.SkippedIDs)
}

func TestItemStoreNullModifiedTime(t *testing.T) {
	store := newTestItemStore(t)
	ctx := context.Background()

	it := model.Item{ItemID: 7, Name: "no-timestamps"}
	_, err := store.ApplyChangeSet(ctx, []model.Item{it}, nil)
	require.NoError(t, err)

	existing, err := store.ExistingIDs(ctx, []int64{7})
	require.NoError(t, err)
	require.Contains(t, existing, int64(7))
	assert.True(t, existing[7].IsZero())
}

func TestItemStoreDeleteStale(t *testing.T) {
	store := newTestItemStore(t)
	ctx := context.Background()

	_, err := store.ApplyChangeSet(ctx, []model.Item{
		testItem(1, "old", time.Now()),
		testItem(2, "older", time.Now()),
	}, nil)
	require.NoError(t, err)

	// Nothing is stale yet.
	stale, err := store.DeleteStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)

	// Everything synced before a future cutoff is stale.
	stale, err = store.DeleteStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 2)
	names := []string{stale[0].Name, stale[1].Name}
	assert.ElementsMatch(t, []string{"old", "older"}, names)

	existing, err := store.ExistingIDs(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestItemStoreStats(t *testing.T) {
	store := newTestItemStore(t)
	ctx := context.Background()

	_, err := store.ApplyChangeSet(ctx, []model.Item{testItem(1, "alpha", time.Now())}, nil)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["total_items"])
	assert.Contains(t, stats, "last_synced_at")
}
