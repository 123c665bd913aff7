package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfigStore(t *testing.T) *SQLiteConfigStore {
	t.Helper()
	store, err := NewSQLiteConfigStore(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConfigStoreCreatesSingletonLazily(t *testing.T) {
	store := newTestConfigStore(t)
	ctx := context.Background()

	cfg, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.ID)
	assert.False(t, cfg.Configured())
	assert.False(t, cfg.Connected())

	// Second read returns the same row, not a second one.
	again, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.ID)
}

func TestConfigStoreSaveDerivesConfiguredFlag(t *testing.T) {
	store := newTestConfigStore(t)
	ctx := context.Background()

	cfg, err := store.Get(ctx)
	require.NoError(t, err)

	cfg.ClientID = "client"
	cfg.ClientSecret = "secret"
	cfg.OrgID = "700000"
	cfg.RedirectURI = "http://localhost/callback"
	require.NoError(t, store.Save(ctx, cfg))

	saved, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, saved.ConnectionConfigured)
	assert.True(t, saved.Configured())
	assert.False(t, saved.Connected()) // no refresh token yet

	saved.RefreshToken = "refresh"
	now := time.Now()
	saved.LastSyncTime = &now
	require.NoError(t, store.Save(ctx, saved))

	reloaded, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, reloaded.Connected())
	require.NotNil(t, reloaded.LastSyncTime)
	assert.WithinDuration(t, now, *reloaded.LastSyncTime, time.Second)

	// Clearing a field demotes the flag on the next save.
	reloaded.OrgID = ""
	require.NoError(t, store.Save(ctx, reloaded))
	demoted, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, demoted.ConnectionConfigured)
}
