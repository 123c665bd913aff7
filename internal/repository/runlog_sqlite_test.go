package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zoho-mirror-api/internal/model"
)

func TestRunLogInsertAndList(t *testing.T) {
	store, err := NewSQLiteRunLogStore(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		started := base.Add(time.Duration(i) * time.Hour)
		run := &model.SyncRun{
			ID:         fmt.Sprintf("run-%d", i),
			Kind:       model.RunKindItems,
			Status:     model.RunStatusSuccess,
			Fetched:    10 + i,
			Inserted:   i,
			StartedAt:  started,
			FinishedAt: started.Add(time.Minute),
			DurationMs: 60000,
		}
		require.NoError(t, store.Insert(ctx, run))
	}

	runs, total, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-3", runs[1].ID)
	assert.Equal(t, 14, runs[0].Fetched)

	// Second page.
	runs, _, err = store.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
}
