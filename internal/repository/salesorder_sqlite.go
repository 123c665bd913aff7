package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"zoho-mirror-api/internal/model"
)

// SQLiteSalesOrderStore implements SalesOrderStore using SQLite.
type SQLiteSalesOrderStore struct {
	db *sql.DB
}

// NewSQLiteSalesOrderStore creates a sales order mirror store at dbPath.
func NewSQLiteSalesOrderStore(dbPath string) (*SQLiteSalesOrderStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSalesOrderTable(db); err != nil {
		return nil, fmt.Errorf("failed to create salesorders table: %w", err)
	}

	log.Printf("[SQLiteSalesOrderStore] Initialized with database: %s", dbPath)
	return &SQLiteSalesOrderStore{db: db}, nil
}

func createSalesOrderTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS zoho_salesorders (
		salesorder_id TEXT PRIMARY KEY,
		salesorder_number TEXT NOT NULL DEFAULT '',
		date DATETIME,
		status TEXT NOT NULL DEFAULT '',
		customer_id TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		is_taxable INTEGER NOT NULL DEFAULT 1,
		tax_id TEXT NOT NULL DEFAULT '',
		tax_name TEXT NOT NULL DEFAULT '',
		tax_percentage REAL NOT NULL DEFAULT 0,
		currency_id TEXT NOT NULL DEFAULT '',
		currency_code TEXT NOT NULL DEFAULT '',
		currency_symbol TEXT NOT NULL DEFAULT '',
		exchange_rate REAL NOT NULL DEFAULT 1,
		delivery_method TEXT NOT NULL DEFAULT '',
		total_quantity REAL NOT NULL DEFAULT 0,
		sub_total REAL NOT NULL DEFAULT 0,
		tax_total REAL NOT NULL DEFAULT 0,
		total REAL NOT NULL DEFAULT 0,
		created_by_email TEXT NOT NULL DEFAULT '',
		created_by_name TEXT NOT NULL DEFAULT '',
		salesperson_id TEXT NOT NULL DEFAULT '',
		salesperson_name TEXT NOT NULL DEFAULT '',
		is_test_order INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		payment_terms INTEGER NOT NULL DEFAULT 0,
		payment_terms_label TEXT NOT NULL DEFAULT '',
		created_time DATETIME,
		last_modified_time DATETIME,
		line_items TEXT NOT NULL DEFAULT '[]',
		shipping_address TEXT NOT NULL DEFAULT '{}',
		billing_address TEXT NOT NULL DEFAULT '{}',
		warehouses TEXT NOT NULL DEFAULT '[]',
		custom_fields TEXT NOT NULL DEFAULT '[]',
		order_sub_statuses TEXT NOT NULL DEFAULT '[]',
		shipment_sub_statuses TEXT NOT NULL DEFAULT '[]',
		synced_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_salesorders_number ON zoho_salesorders(salesorder_number);
	CREATE INDEX IF NOT EXISTS idx_salesorders_date ON zoho_salesorders(date);
	CREATE INDEX IF NOT EXISTS idx_salesorders_synced_at ON zoho_salesorders(synced_at);
	`
	_, err := db.Exec(query)
	return err
}

const salesOrderInsertSQL = `
	INSERT INTO zoho_salesorders (
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
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(salesorder_id) DO NOTHING`

const salesOrderUpdateSQL = `
	UPDATE zoho_salesorders SET
		salesorder_number = ?, date = ?, status = ?, customer_id = ?,
		customer_name = ?, is_taxable = ?, tax_id = ?, tax_name = ?,
		tax_percentage = ?, currency_id = ?, currency_code = ?,
		currency_symbol = ?, exchange_rate = ?, delivery_method = ?,
		total_quantity = ?, sub_total = ?, tax_total = ?, total = ?,
		created_by_email = ?, created_by_name = ?, salesperson_id = ?,
		salesperson_name = ?, is_test_order = ?, notes = ?,
		payment_terms = ?, payment_terms_label = ?, created_time = ?,
		last_modified_time = ?, line_items = ?, shipping_address = ?,
		billing_address = ?, warehouses = ?, custom_fields = ?,
		order_sub_statuses = ?, shipment_sub_statuses = ?, synced_at = ?
	WHERE salesorder_id = ?`

// salesOrderFields lists every mutable column value in the order shared
// by the insert and update statements (the key is bound separately).
func salesOrderFields(so *model.SalesOrder, syncedAt time.Time) []interface{} {
	return []interface{}{
		so.SalesOrderNumber, nullTime(so.Date), so.Status, so.CustomerID,
		so.CustomerName, so.IsTaxable, so.TaxID, so.TaxName,
		so.TaxPercentage, so.CurrencyID, so.CurrencyCode,
		so.CurrencySymbol, so.ExchangeRate, so.DeliveryMethod,
		so.TotalQuantity, so.SubTotal, so.TaxTotal, so.Total,
		so.CreatedByEmail, so.CreatedByName, so.SalespersonID,
		so.SalespersonName, so.IsTestOrder, so.Notes,
		so.PaymentTerms, so.PaymentTermsLbl, nullTime(so.CreatedTime),
		nullTime(so.LastModifiedTime), string(so.LineItems),
		string(so.ShippingAddress), string(so.BillingAddress),
		string(so.Warehouses), string(so.CustomFields),
		string(so.OrderSubStatuses), string(so.ShipmentSubStatuses),
		syncedAt.UTC(),
	}
}

// ExistingIDs returns the stored last_modified_time for the ids that
// already exist locally.
func (s *SQLiteSalesOrderStore) ExistingIDs(ctx context.Context, ids []string) (map[string]time.Time, error) {
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
func (s *SQLiteSalesOrderStore) ApplyChangeSet(ctx context.Context, inserts, updates []model.SalesOrder) (ApplyResult, error) {
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

	insertStmt, err := tx.PrepareContext(ctx, salesOrderInsertSQL)
	if err != nil {
		return result, fmt.Errorf("failed to prepare salesorder insert: %w", err)
	}
	defer insertStmt.Close()

	for i := range inserts {
		so := &inserts[i]
		args := append([]interface{}{so.SalesOrderID}, salesOrderFields(so, now)...)
		res, err := insertStmt.ExecContext(ctx, args...)
		if err != nil {
			log.Printf("[SQLiteSalesOrderStore] Integrity error for salesorder_id=%s, skipping: %v", so.SalesOrderID, err)
			result.SkippedIDs = append(result.SkippedIDs, so.SalesOrderID)
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Row appeared between the existence check and this insert.
			log.Printf("[SQLiteSalesOrderStore] Conflict for salesorder_id=%s, skipping", so.SalesOrderID)
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
			log.Printf("[SQLiteSalesOrderStore] Integrity error for salesorder_id=%s, skipping: %v", so.SalesOrderID, err)
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
func (s *SQLiteSalesOrderStore) DeleteStale(ctx context.Context, cutoff time.Time) ([]model.SalesOrder, error) {
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
		var lineItems string
		if err := rows.Scan(&so.SalesOrderID, &so.SalesOrderNumber, &date, &so.Status, &lineItems); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan stale salesorder: %w", err)
		}
		if date.Valid {
			d := date.Time
			so.Date = &d
		}
		so.LineItems = []byte(lineItems)
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
func (s *SQLiteSalesOrderStore) Stats(ctx context.Context) (map[string]interface{}, error) {
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

// Close closes the database connection.
func (s *SQLiteSalesOrderStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteSalesOrderStore implements SalesOrderStore
var _ SalesOrderStore = (*SQLiteSalesOrderStore)(nil)
