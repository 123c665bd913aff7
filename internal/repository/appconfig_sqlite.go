package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"zoho-mirror-api/internal/model"
)

// SQLiteConfigStore implements ConfigStore using SQLite. The credential
// record is a singleton row with a fixed id of 1.
type SQLiteConfigStore struct {
	db *sql.DB
}

// NewSQLiteConfigStore creates the credential store at dbPath.
func NewSQLiteConfigStore(dbPath string) (*SQLiteConfigStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createConfigTable(db); err != nil {
		return nil, fmt.Errorf("failed to create config table: %w", err)
	}

	log.Printf("[SQLiteConfigStore] Initialized with database: %s", dbPath)
	return &SQLiteConfigStore{db: db}, nil
}

func createConfigTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS zoho_app_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		zoho_client_id TEXT NOT NULL DEFAULT '',
		zoho_client_secret TEXT NOT NULL DEFAULT '',
		zoho_org_id TEXT NOT NULL DEFAULT '',
		zoho_redirect_uri TEXT NOT NULL DEFAULT '',
		zoho_refresh_token TEXT NOT NULL DEFAULT '',
		zoho_last_sync_time DATETIME,
		zoho_connection_configured INTEGER NOT NULL DEFAULT 0
	)`
	_, err := db.Exec(query)
	return err
}

// Get loads the singleton record, creating an empty one on first access.
func (s *SQLiteConfigStore) Get(ctx context.Context) (*model.ZohoConfig, error) {
	cfg := &model.ZohoConfig{}
	var lastSync sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, zoho_client_id, zoho_client_secret, zoho_org_id,
			zoho_redirect_uri, zoho_refresh_token, zoho_last_sync_time,
			zoho_connection_configured
		FROM zoho_app_config WHERE id = 1`).Scan(
		&cfg.ID, &cfg.ClientID, &cfg.ClientSecret, &cfg.OrgID,
		&cfg.RedirectURI, &cfg.RefreshToken, &lastSync,
		&cfg.ConnectionConfigured)

	if err == sql.ErrNoRows {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO zoho_app_config (id) VALUES (1)`); err != nil {
			return nil, fmt.Errorf("failed to create credential record: %w", err)
		}
		return &model.ZohoConfig{ID: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential record: %w", err)
	}

	if lastSync.Valid {
		t := lastSync.Time
		cfg.LastSyncTime = &t
	}
	return cfg, nil
}

// Save persists the record, rederiving the configured flag.
func (s *SQLiteConfigStore) Save(ctx context.Context, cfg *model.ZohoConfig) error {
	cfg.ID = 1
	cfg.ConnectionConfigured = cfg.Configured()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zoho_app_config (
			id, zoho_client_id, zoho_client_secret, zoho_org_id,
			zoho_redirect_uri, zoho_refresh_token, zoho_last_sync_time,
			zoho_connection_configured
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			zoho_client_id = excluded.zoho_client_id,
			zoho_client_secret = excluded.zoho_client_secret,
			zoho_org_id = excluded.zoho_org_id,
			zoho_redirect_uri = excluded.zoho_redirect_uri,
			zoho_refresh_token = excluded.zoho_refresh_token,
			zoho_last_sync_time = excluded.zoho_last_sync_time,
			zoho_connection_configured = excluded.zoho_connection_configured`,
		cfg.ClientID, cfg.ClientSecret, cfg.OrgID, cfg.RedirectURI,
		cfg.RefreshToken, nullTime(cfg.LastSyncTime), cfg.ConnectionConfigured)
	if err != nil {
		return fmt.Errorf("failed to save credential record: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteConfigStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteConfigStore implements ConfigStore
var _ ConfigStore = (*SQLiteConfigStore)(nil)
