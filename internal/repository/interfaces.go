package repository

import (
	"context"
	"time"

	"zoho-mirror-api/internal/model"
)

// ApplyResult reports which records of a change set were effectively
// written. A record lands in SkippedIDs when it conflicted at insert
// time (became visible between the existence check and the insert),
// vanished before its update, or failed an integrity constraint.
type ApplyResult struct {
	InsertedIDs []string
	UpdatedIDs  []string
	SkippedIDs  []string
}

// ItemStore is the keyed mirror table for inventory items. The
// synchronization engine is its only writer.
type ItemStore interface {
	// ExistingIDs returns, for the subset of ids present locally, the
	// stored last_modified_time (zero when null). One batched query
	// replaces per-record existence probing.
	ExistingIDs(ctx context.Context, ids []int64) (map[int64]time.Time, error)

	// ApplyChangeSet bulk-inserts then bulk-updates within a single
	// transaction. Duplicate-key conflicts and per-record integrity
	// errors skip the offending record without aborting the batch.
	ApplyChangeSet(ctx context.Context, inserts, updates []model.Item) (ApplyResult, error)

	// DeleteStale removes records not seen in the remote since cutoff
	// and returns them for deletion events.
	DeleteStale(ctx context.Context, cutoff time.Time) ([]model.Item, error)

	// Stats returns statistics about the mirror table.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the store connection.
	Close() error
}

// SalesOrderStore is the keyed mirror table for sales orders.
type SalesOrderStore interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]time.Time, error)
	ApplyChangeSet(ctx context.Context, inserts, updates []model.SalesOrder) (ApplyResult, error)
	DeleteStale(ctx context.Context, cutoff time.Time) ([]model.SalesOrder, error)
	Stats(ctx context.Context) (map[string]interface{}, error)
	Close() error
}

// ConfigStore holds the process-wide credential record.
type ConfigStore interface {
	// Get loads the singleton record, creating an empty one on first access.
	Get(ctx context.Context) (*model.ZohoConfig, error)

	// Save persists the record, rederiving the configured flag.
	Save(ctx context.Context, cfg *model.ZohoConfig) error

	Close() error
}

// RunLogStore records sync run outcomes for auditing.
type RunLogStore interface {
	Insert(ctx context.Context, run *model.SyncRun) error
	List(ctx context.Context, limit, offset int) ([]model.SyncRun, int64, error)
	Close() error
}
