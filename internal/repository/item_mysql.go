package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"time"

	"zoho-mirror-api/internal/model"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLItemStore implements ItemStore using MySQL.
type MySQLItemStore struct {
	db *sql.DB
}

// NewMySQLItemStore creates an item mirror store on a shared MySQL
// connection pool.
func NewMySQLItemStore(db *sql.DB) (*MySQLItemStore, error) {
	if err := createItemTableMySQL(db); err != nil {
		return nil, fmt.Errorf("failed to create items table: %w", err)
	}

	log.Printf("[MySQLItemStore] Initialized")
	return &MySQLItemStore{db: db}, nil
}

func createItemTableMySQL(db *sql.DB) error {
	query := "CREATE TABLE IF NOT EXISTS `zoho_items` (" + `
		item_id BIGINT PRIMARY KEY,
		group_id BIGINT NOT NULL DEFAULT 0,
		group_name VARCHAR(255) NOT NULL DEFAULT '',
		name VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(64) NOT NULL DEFAULT '',
		source VARCHAR(64) NOT NULL DEFAULT '',
		is_linked_with_zohocrm TINYINT(1) NOT NULL DEFAULT 0,
		item_type VARCHAR(64) NOT NULL DEFAULT '',
		description TEXT,
		rate DOUBLE NOT NULL DEFAULT 0,
		is_taxable TINYINT(1) NOT NULL DEFAULT 0,
		tax_id BIGINT NOT NULL DEFAULT 0,
		tax_name VARCHAR(255) NOT NULL DEFAULT '',
		tax_percentage DOUBLE NOT NULL DEFAULT 0,
		purchase_description TEXT,
		purchase_rate DOUBLE NOT NULL DEFAULT 0,
		is_combo_product TINYINT(1) NOT NULL DEFAULT 0,
		product_type VARCHAR(64) NOT NULL DEFAULT '',
		attribute_id1 BIGINT NOT NULL DEFAULT 0,
		attribute_name1 VARCHAR(255) NOT NULL DEFAULT '',
		reorder_level BIGINT NOT NULL DEFAULT 0,
		stock_on_hand DOUBLE NOT NULL DEFAULT 0,
		available_stock DOUBLE NOT NULL DEFAULT 0,
		actual_available_stock DOUBLE NOT NULL DEFAULT 0,
		sku VARCHAR(255) NOT NULL DEFAULT '',
		upc BIGINT NOT NULL DEFAULT 0,
		ean BIGINT NOT NULL DEFAULT 0,
		isbn BIGINT NOT NULL DEFAULT 0,
		part_number BIGINT NOT NULL DEFAULT 0,
		attribute_option_id1 BIGINT NOT NULL DEFAULT 0,
		attribute_option_name1 VARCHAR(255) NOT NULL DEFAULT '',
		image_name VARCHAR(255) NOT NULL DEFAULT '',
		image_type VARCHAR(64) NOT NULL DEFAULT '',
		created_time DATETIME NULL,
		last_modified_time DATETIME NULL,
		hsn_or_sac BIGINT NOT NULL DEFAULT 0,
		sat_item_key_code VARCHAR(64) NOT NULL DEFAULT '',
		unitkey_code VARCHAR(64) NOT NULL DEFAULT '',
		synced_at DATETIME NOT NULL,
		INDEX idx_items_sku (sku),
		INDEX idx_items_synced_at (synced_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	_, err := db.Exec(query)
	return err
}

const itemInsertMySQL = `
	INSERT IGNORE INTO zoho_items (
		item_id, group_id, group_name, name, status, source,
		is_linked_with_zohocrm, item_type, description, rate, is_taxable,
		tax_id, tax_name, tax_percentage, purchase_description, purchase_rate,
		is_combo_product, product_type, attribute_id1, attribute_name1,
		reorder_level, stock_on_hand, available_stock, actual_available_stock,
		sku, upc, ean, isbn, part_number, attribute_option_id1,
		attribute_option_name1, image_name, image_type, created_time,
		last_modified_time, hsn_or_sac, sat_item_key_code, unitkey_code, synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ExistingIDs returns the stored last_modified_time for the ids that
// already exist locally.
func (s *MySQLItemStore) ExistingIDs(ctx context.Context, ids []int64) (map[int64]time.Time, error) {
	existing := make(map[int64]time.Time, len(ids))

	for start := 0; start < len(ids); start += existingIDsChunk {
		end := start + existingIDsChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		query := `SELECT item_id, last_modified_time FROM zoho_items WHERE item_id IN (` +
			placeholders(len(chunk)) + `)`
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query existing item ids: %w", err)
		}
		for rows.Next() {
			var id int64
			var lm sql.NullTime
			if err := rows.Scan(&id, &lm); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan existing item id: %w", err)
			}
			if lm.Valid {
				existing[id] = lm.Time
			} else {
				existing[id] = time.Time{}
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to iterate existing item ids: %w", err)
		}
		rows.Close()
	}

	return existing, nil
}

// ApplyChangeSet applies one sync batch in a single transaction.
func (s *MySQLItemStore) ApplyChangeSet(ctx context.Context, inserts, updates []model.Item) (ApplyResult, error) {
	var result ApplyResult
	if len(inserts) == 0 && len(updates) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	insertStmt, err := tx.PrepareContext(ctx, itemInsertMySQL)
	if err != nil {
		return result, fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer insertStmt.Close()

	for i := range inserts {
		it := &inserts[i]
		key := strconv.FormatInt(it.ItemID, 10)
		args := append([]interface{}{it.ItemID}, itemFields(it, now)...)
		res, err := insertStmt.ExecContext(ctx, args...)
		if err != nil {
			log.Printf("[MySQLItemStore] Integrity error for item_id=%s, skipping: %v", key, err)
			result.SkippedIDs = append(result.SkippedIDs, key)
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			log.Printf("[MySQLItemStore] Conflict for item_id=%s, skipping", key)
			result.SkippedIDs = append(result.SkippedIDs, key)
			continue
		}
		result.InsertedIDs = append(result.InsertedIDs, key)
	}

	updateStmt, err := tx.PrepareContext(ctx, itemUpdateSQL)
	if err != nil {
		return result, fmt.Errorf("failed to prepare item update: %w", err)
	}
	defer updateStmt.Close()

	for i := range updates {
		it := &updates[i]
		key := strconv.FormatInt(it.ItemID, 10)
		args := append(itemFields(it, now), it.ItemID)
		res, err := updateStmt.ExecContext(ctx, args...)
		if err != nil {
			log.Printf("[MySQLItemStore] Integrity error for item_id=%s, skipping: %v", key, err)
			result.SkippedIDs = append(result.SkippedIDs, key)
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			result.SkippedIDs = append(result.SkippedIDs, key)
			continue
		}
		result.UpdatedIDs = append(result.UpdatedIDs, key)
	}

	if err := tx.Commit(); err != nil {
		return ApplyResult{}, fmt.Errorf("failed to commit item change set: %w", err)
	}
	return result, nil
}

// DeleteStale removes items whose synced_at predates cutoff and returns
// a slim projection of the removed records.
func (s *MySQLItemStore) DeleteStale(ctx context.Context, cutoff time.Time) ([]model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT item_id, name, sku, status, stock_on_hand FROM zoho_items WHERE synced_at < ?`,
		cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query stale items: %w", err)
	}

	var stale []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ItemID, &it.Name, &it.SKU, &it.Status, &it.StockOnHand); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan stale item: %w", err)
		}
		stale = append(stale, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate stale items: %w", err)
	}
	rows.Close()

	if len(stale) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM zoho_items WHERE synced_at < ?`, cutoff.UTC()); err != nil {
			return nil, fmt.Errorf("failed to delete stale items: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stale item deletion: %w", err)
	}
	return stale, nil
}

// Stats returns statistics about the item mirror.
func (s *MySQLItemStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM zoho_items").Scan(&count); err != nil {
		return nil, err
	}
	stats["total_items"] = count

	var lastSync sql.NullTime
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(synced_at) FROM zoho_items").Scan(&lastSync); err == nil && lastSync.Valid {
		stats["last_synced_at"] = lastSync.Time
	}

	return stats, nil
}

// Close is a no-op; the pool is shared and owned by the caller.
func (s *MySQLItemStore) Close() error {
	return nil
}

// Ensure MySQLItemStore implements ItemStore
var _ ItemStore = (*MySQLItemStore)(nil)
