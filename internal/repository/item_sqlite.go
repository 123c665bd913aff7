package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"zoho-mirror-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// existingIDsChunk bounds the size of IN (...) clauses.
const existingIDsChunk = 500

// sqliteDSN appends the WAL and busy-timeout pragmas to a database path.
func sqliteDSN(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
}

// placeholders returns "?, ?, ..., ?" with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// nullTime binds an optional timestamp, NULL when absent.
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// SQLiteItemStore implements ItemStore using SQLite.
type SQLiteItemStore struct {
	db *sql.DB
}

// NewSQLiteItemStore creates an item mirror store at dbPath
// (e.g. "./data/mirror.db").
func NewSQLiteItemStore(dbPath string) (*SQLiteItemStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createItemTable(db); err != nil {
		return nil, fmt.Errorf("failed to create items table: %w", err)
	}

	log.Printf("[SQLiteItemStore] Initialized with database: %s", dbPath)
	return &SQLiteItemStore{db: db}, nil
}

func createItemTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS zoho_items (
		item_id INTEGER PRIMARY KEY,
		group_id INTEGER NOT NULL DEFAULT 0,
		group_name TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		is_linked_with_zohocrm INTEGER NOT NULL DEFAULT 0,
		item_type TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		rate REAL NOT NULL DEFAULT 0,
		is_taxable INTEGER NOT NULL DEFAULT 0,
		tax_id INTEGER NOT NULL DEFAULT 0,
		tax_name TEXT NOT NULL DEFAULT '',
		tax_percentage REAL NOT NULL DEFAULT 0,
		purchase_description TEXT NOT NULL DEFAULT '',
		purchase_rate REAL NOT NULL DEFAULT 0,
		is_combo_product INTEGER NOT NULL DEFAULT 0,
		product_type TEXT NOT NULL DEFAULT '',
		attribute_id1 INTEGER NOT NULL DEFAULT 0,
		attribute_name1 TEXT NOT NULL DEFAULT '',
		reorder_level INTEGER NOT NULL DEFAULT 0,
		stock_on_hand REAL NOT NULL DEFAULT 0,
		available_stock REAL NOT NULL DEFAULT 0,
		actual_available_stock REAL NOT NULL DEFAULT 0,
		sku TEXT NOT NULL DEFAULT '',
		upc INTEGER NOT NULL DEFAULT 0,
		ean INTEGER NOT NULL DEFAULT 0,
		isbn INTEGER NOT NULL DEFAULT 0,
		part_number INTEGER NOT NULL DEFAULT 0,
		attribute_option_id1 INTEGER NOT NULL DEFAULT 0,
		attribute_option_name1 TEXT NOT NULL DEFAULT '',
		image_name TEXT NOT NULL DEFAULT '',
		image_type TEXT NOT NULL DEFAULT '',
		created_time DATETIME,
		last_modified_time DATETIME,
		hsn_or_sac INTEGER NOT NULL DEFAULT 0,
		sat_item_key_code TEXT NOT NULL DEFAULT '',
		unitkey_code TEXT NOT NULL DEFAULT '',
		synced_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_sku ON zoho_items(sku);
	CREATE INDEX IF NOT EXISTS idx_items_synced_at ON zoho_items(synced_at);
	`
	_, err := db.Exec(query)
	return err
}

const itemInsertSQL = `
	INSERT INTO zoho_items (
		item_id, group_id, group_name, name, status, source,
		is_linked_with_zohocrm, item_type, description, rate, is_taxable,
		tax_id, tax_name, tax_percentage, purchase_description, purchase_rate,
		is_combo_product, product_type, attribute_id1, attribute_name1,
		reorder_level, stock_on_hand, available_stock, actual_available_stock,
		sku, upc, ean, isbn, part_number, attribute_option_id1,
		attribute_option_name1, image_name, image_type, created_time,
		last_modified_time, hsn_or_sac, sat_item_key_code, unitkey_code, synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(item_id) DO NOTHING`

const itemUpdateSQL = `
	UPDATE zoho_items SET
		group_id = ?, group_name = ?, name = ?, status = ?, source = ?,
		is_linked_with_zohocrm = ?, item_type = ?, description = ?, rate = ?,
		is_taxable = ?, tax_id = ?, tax_name = ?, tax_percentage = ?,
		purchase_description = ?, purchase_rate = ?, is_combo_product = ?,
		product_type = ?, attribute_id1 = ?, attribute_name1 = ?,
		reorder_level = ?, stock_on_hand = ?, available_stock = ?,
		actual_available_stock = ?, sku = ?, upc = ?, ean = ?, isbn = ?,
		part_number = ?, attribute_option_id1 = ?, attribute_option_name1 = ?,
		image_name = ?, image_type = ?, created_time = ?,
		last_modified_time = ?, hsn_or_sac = ?, sat_item_key_code = ?,
		unitkey_code = ?, synced_at = ?
	WHERE item_id = ?`

// itemFields lists every mutable column value in the order shared by
// the insert and update statements (the key is bound separately).
func itemFields(it *model.Item, syncedAt time.Time) []interface{} {
	return []interface{}{
		it.GroupID, it.GroupName, it.Name, it.Status, it.Source,
		it.IsLinkedWithZohoCRM, it.ItemType, it.Description, it.Rate,
		it.IsTaxable, it.TaxID, it.TaxName, it.TaxPercentage,
		it.PurchaseDescription, it.PurchaseRate, it.IsComboProduct,
		it.ProductType, it.AttributeID1, it.AttributeName1,
		it.ReorderLevel, it.StockOnHand, it.AvailableStock,
		it.ActualAvailableStock, it.SKU, it.UPC, it.EAN, it.ISBN,
		it.PartNumber, it.AttributeOptionID1, it.AttributeOptionName1,
		it.ImageName, it.ImageType, nullTime(it.CreatedTime),
		nullTime(it.LastModifiedTime), it.HSNOrSAC, it.SATItemKeyCode,
		it.UnitKeyCode, syncedAt.UTC(),
	}
}

// ExistingIDs returns the stored last_modified_time for the ids that
// already exist locally.
func (s *SQLiteItemStore) ExistingIDs(ctx context.Context, ids []int64) (map[int64]time.Time, error) {
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
func (s *SQLiteItemStore) ApplyChangeSet(ctx context.Context, inserts, updates []model.Item) (ApplyResult, error) {
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

	insertStmt, err := tx.PrepareContext(ctx, itemInsertSQL)
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
			log.Printf("[SQLiteItemStore] Integrity error for item_id=%s, skipping: %v", key, err)
			result.SkippedIDs = append(result.SkippedIDs, key)
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Row appeared between the existence check and this insert.
			log.Printf("[SQLiteItemStore] Conflict for item_id=%s, skipping", key)
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
			log.Printf("[SQLiteItemStore] Integrity error for item_id=%s, skipping: %v", key, err)
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
func (s *SQLiteItemStore) DeleteStale(ctx context.Context, cutoff time.Time) ([]model.Item, error) {
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
func (s *SQLiteItemStore) Stats(ctx context.Context) (map[string]interface{}, error) {
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

// Close closes the database connection.
func (s *SQLiteItemStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteItemStore implements ItemStore
var _ ItemStore = (*SQLiteItemStore)(nil)
