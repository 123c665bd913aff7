package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zoho-mirror-api/internal/model"
)

func newTestOrderStore(t *testing.T) *SQLiteSalesOrderStore {
	t.Helper()
	store, err := NewSQLiteSalesOrderStore(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testOrder(id, number string, modified time.Time) model.SalesOrder {
	m := modified.UTC()
	return model.SalesOrder{
		SalesOrderID:        id,
		SalesOrderNumber:    number,
		Status:              "confirmed",
		IsTaxable:           true,
		ExchangeRate:        1,
		Total:               150.5,
		LastModifiedTime:    &m,
		LineItems:           json.RawMessage(`[{"item_id": "1", "quantity": 3}]`),
		ShippingAddress:     json.RawMessage(`{"city": "Monterrey"}`),
		BillingAddress:      json.RawMessage(`{}`),
		Warehouses:          json.RawMessage(`[]`),
		CustomFields:        json.RawMessage(`[]`),
		OrderSubStatuses:    json.RawMessage(`[]`),
		ShipmentSubStatuses: json.RawMessage(`[]`),
	}
}

func TestSalesOrderStoreApplyChangeSet(t *testing.T) {
	store := newTestOrderStore(t)
	ctx := context.Background()
	modified := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	result, err := store.ApplyChangeSet(ctx, []model.SalesOrder{
		testOrder("901", "SO-001", modified),
		testOrder("902", "SO-002", modified),
	}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"901", "902"}, result.InsertedIDs)

	existing, err := store.ExistingIDs(ctx, []string{"901", "902", "903"})
	require.NoError(t, err)
	require.Len(t, existing, 2)
	assert.True(t, existing["901"].Equal(modified))

	// Duplicate insert is skipped, update of a live row lands.
	later := modified.Add(time.Hour)
	result, err = store.ApplyChangeSet(ctx,
		[]model.SalesOrder{testOrder("901", "SO-001-dupe", later)},
		[]model.SalesOrder{testOrder("902", "SO-002-v2", later)})
	require.NoError(t, err)
	assert.Equal(t, []string{"901"}, result.SkippedIDs)
	assert.Equal(t, []string{"902"}, result.UpdatedIDs)

	existing, err = store.ExistingIDs(ctx, []string{"902"})
	require.NoError(t, err)
	assert.True(t, existing["902"].Equal(later))
}

func TestSalesOrderStoreDeleteStale(t *testing.T) {
	store := newTestOrderStore(t)
	ctx := context.Background()

	_, err := store.ApplyChangeSet(ctx, []model.SalesOrder{
		testOrder("901", "SO-001", time.Now()),
	}, nil)
	require.NoError(t, err)

	stale, err := store.DeleteStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "901", stale[0].SalesOrderID)
	assert.Equal(t, "SO-001", stale[0].SalesOrderNumber)
	assert.JSONEq(t, `[{"item_id": "1", "quantity": 3}]`, string(stale[0].LineItems))

	existing, err := store.ExistingIDs(ctx, []string{"901"})
	require.NoError(t, err)
	assert.Empty(t, existing)
}
