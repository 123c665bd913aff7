package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"zoho-mirror-api/internal/model"
)

// MySQLSalesOrderStore implements SalesOrderStore using MySQL.
type MySQLSalesOrderStore struct {
	db *sql.DB
}

// NewMySQLSalesOrderStore creates a sales order mirror store on a
// shared MySQL connection pool.
func NewMySQLSalesOrderStore(db *sql.DB) (*MySQLSalesOrderStore, error) {
	if err := createSalesOrderTableMySQL(db); err != nil {
		return nil, fmt.Errorf("failed to create salesorders table: %w", err)
	}

	log.Printf("[MySQLSalesOrderStore] Initialized")
	return &MySQLSalesOrderStore{db: db}, nil
}

func createSalesOrderTableMySQL(db *sql.DB) error {
	query := "CREATE TABLE IF NOT EXISTS `zoho_salesorders` (" + `
		salesorder_id VARCHAR(64) PRIMARY KEY,
		salesorder_number VARCHAR(255) NOT NULL DEFAULT '',
		date DATETIME NULL,
		status VARCHAR(64) NOT NULL DEFAULT '',
		customer_id VARCHAR(64) NOT NULL DEFAULT '',
		customer_name VARCHAR(255) NOT NULL DEFAULT '',
		is_taxable TINYINT(1) NOT NULL DEFAULT 1,
		tax_id VARCHAR(64) NOT NULL DEFAULT '',
		tax_name VARCHAR(255) NOT NULL DEFAULT '',
		tax_percentage DOUBLE NOT NULL DEFAULT 0,
		currency_id VARCHAR(64) NOT NULL DEFAULT '',
		currency_code VARCHAR(16) NOT NULL DEFAULT '',
		currency_symbol VARCHAR(16) NOT NULL DEFAULT '',
		exchange_rate DOUBLE NOT NULL DEFAULT 1,
		delivery_method VARCHAR(255) NOT NULL DEFAULT '',
		total_quantity DOUBLE NOT NULL DEFAULT 0,
		sub_total DOUBLE NOT NULL DEFAULT 0,
		tax_total DOUBLE NOT NULL DEFAULT 0,
		total DOUBLE NOT NULL DEFAULT 0,
		created_by_email VARCHAR(255) NOT NULL DEFAULT '',
		created_by_name VARCHAR(255) NOT NULL DEFAULT '',
		salesperson_id VARCHAR(64) NOT NULL DEFAULT '',
		salesperson_name VARCHAR(255) NOT NULL DEFAULT '',
		is_test_order TINYINT(1) NOT NULL DEFAULT 0,
		notes TEXT,
		payment_terms BIGINT NOT NULL DEFAULT 0,
		payment_terms_label VARCHAR(255) NOT NULL DEFAULT '',
		created_time DATETIME NULL,
		last_modified_time DATETIME NULL,
		line_items LONGTEXT,
		shipping_address LONGTEXT,
		billing_address LONGTEXT,
		warehouses LONGTEXT,
		custom_fields LONGTEXT,
		order_sub_statuses LONGTEXT,
		shipment_sub_statuses LONGTEXT,
		synced_at DATETIME NOT NULL,
		INDEX idx_salesorders_number (salesorder_number),
		INDEX idx_salesorders_date (date),
		INDEX idx_salesorders_synced_at (synced_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	_, err := db.Exec(query)
	return err
}

const salesOrderInsertMySQL = `
	INSERT IGNORE INTO zoho_salesorders (
		salesorder_id, salesorder_number, date, status, customer_id,
		customer_name, is_taxable, tax_id, tax_name, tax_percentage,
		currency_id, currency_code, currency_symbol, exchange_rate,
		delivery_method, total_quantity, sub_total, tax_total, total,
		created_by_email, created_by_name, salesperson_id, salesperson_name,
		is_test_order, notes, payment_terms, payment_terms_label,
		created_time, last_modified_time, line_items, shipping_address,
		billing_address, warehouses, custom_fields, order_sub_statuses,
		shipment_sub_statuses, synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ExistingIDs returns the stored last_modified_time for the ids that
// already exist locally.
func (s *MySQLSalesOrderStore) ExistingIDs(ctx context.Context, ids []string) (map[string]time.Time, error) {
	existing := make(map[string]time.Time, len(ids))

	for start := 0; start < len(ids); start += existingIDsChunk {
		end := start + existingIDsChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		query := `SELECT salesorder_id, last_modified_time FROM zoho_salesorders WHERE salesorder_id IN (` +
			placeholders(len(chunk)) + `)`
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query existing salesorder ids: %w", err)
		}
		for rows.Next() {
			var id string
			var lm sql.NullTime
			if err := rows.Scan(&id, &lm); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan existing salesorder id: %w", err)
			}
			if lm.Valid {
				existing[id] = lm.Time
			} else {
				existing[id] = time.Time{}
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to iterate existing salesorder ids: %w", err)
		}
		rows.Close()
	}

	return existing, nil
}

// ApplyChangeSet applies one sync batch in a single transaction.
func (s *MySQLSalesOrderStore) ApplyChangeSet(ctx context.Context, inserts, updates []model.SalesOrder) (ApplyResult, error) {
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

	insertStmt, err := tx.PrepareContext(ctx, salesOrderInsertMySQL)
	if err != nil {
		return result, fmt.Errorf("failed to prepare salesorder insert: %w", err)
	}
	defer insertStmt.Close()

	for i := range inserts {
		so := &inserts[i]
		args := append([]interface{}{so.SalesOrderID}, salesOrderFields(so, now)...)
		res, err := insertStmt.ExecContext(ctx, args...)
		if err != nil {
			log.Printf("[MySQLSalesOrderStore] Integrity error for salesorder_id=%s, skipping: %v", so.SalesOrderID, err)
			result.SkippedIDs = append(result.SkippedIDs, so.SalesOrderID)
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			log.Printf("[MySQLSalesOrderStore] Conflict for salesorder_id=%s, skipping", so.SalesOrderID)
			result.SkippedIDs = append(result.SkippedIDs, so.SalesOrderID)
			continue
		}
		result.InsertedIDs = append(result.InsertedIDs, so.SalesOrderID)
	}

	updateStmt, err := tx.PrepareContext(ctx, salesOrderUpdateSQL)
	if err != nil {
		return result, fmt.Errorf("failed to prepare salesorder update: %w", err)
	}
	defer updateStmt.Close()

	for i := range updates {
		so := &updates[i]
		args := append(salesOrderFields(so, now), so.SalesOrderID)
		res, err := updateStmt.ExecContext(ctx, args...)
		if err != nil {
			log.Printf("[MySQLSalesOrderStore] Integrity error for salesorder_id=%s, skipping: %v", so.SalesOrderID, err)
			result.SkippedIDs = append(result.SkippedIDs, so.SalesOrderID)
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			result.SkippedIDs = append(result.SkippedIDs, so.SalesOrderID)
			continue
		}
		result.UpdatedIDs = append(result.UpdatedIDs, so.SalesOrderID)
	}

	if err := tx.Commit(); err != nil {
		return ApplyResult{}, fmt.Errorf("failed to commit salesorder change set: %w", err)
	}
	return result, nil
}

// DeleteStale removes orders whose synced_at predates cutoff and
// returns a slim projection of the removed records.
func (s *MySQLSalesOrderStore) DeleteStale(ctx context.Context, cutoff time.Time) ([]model.SalesOrder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT salesorder_id, salesorder_number, date, status, line_items FROM zoho_salesorders WHERE synced_at < ?`,
		cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query stale salesorders: %w", err)
	}

	var stale []model.SalesOrder
	for rows.Next() {
		var so model.SalesOrder
		var date sql.NullTime
		var lineItems sql.NullString
		if err := rows.Scan(&so.SalesOrderID, &so.SalesOrderNumber, &date, &so.Status, &lineItems); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan stale salesorder: %w", err)
		}
		if date.Valid {
			d := date.Time
			so.Date = &d
		}
		if lineItems.Valid {
			so.LineItems = []byte(lineItems.String)
		} else {
			so.LineItems = []byte("[]")
		}
		stale = append(stale, so)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate stale salesorders: %w", err)
	}
	rows.Close()

	if len(stale) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM zoho_salesorders WHERE synced_at < ?`, cutoff.UTC()); err != nil {
			return nil, fmt.Errorf("failed to delete stale salesorders: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stale salesorder deletion: %w", err)
	}
	return stale, nil
}

// Stats returns statistics about the sales order mirror.
func (s *MySQLSalesOrderStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM zoho_salesorders").Scan(&count); err != nil {
		return nil, err
	}
	stats["total_salesorders"] = count

	var lastSync sql.NullTime
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(synced_at) FROM zoho_salesorders").Scan(&lastSync); err == nil && lastSync.Valid {
		stats["last_synced_at"] = lastSync.Time
	}

	return stats, nil
}

// Close is a no-op; the pool is shared and owned by the caller.
func (s *MySQLSalesOrderStore) Close() error {
	return nil
}

// Ensure MySQLSalesOrderStore implements SalesOrderStore
var _ SalesOrderStore = (*MySQLSalesOrderStore)(nil)
