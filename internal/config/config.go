package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Zoho      ZohoConfig
	MirrorDB  MirrorDBConfig
	Redis     RedisConfig
	Sync      SyncConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"600s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"zoho-mirror-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3030"`
}

// ZohoConfig holds the remote API endpoints and OAuth settings.
// Credentials themselves (client id/secret, refresh token) live in the
// persisted credential record, not in the environment.
type ZohoConfig struct {
	AccountsURL string        `envconfig:"ZOHO_ACCOUNTS_URL" default:"https://accounts.zoho.com"`
	APIBaseURL  string        `envconfig:"ZOHO_API_BASE_URL" default:"https://www.zohoapis.com/inventory/v1"`
	Scopes      string        `envconfig:"ZOHO_SCOPES" default:"ZohoInventory.FullAccess.all"`
	HTTPTimeout time.Duration `envconfig:"ZOHO_HTTP_TIMEOUT" default:"30s"`
}

// MirrorDBConfig holds local mirror store settings.
type MirrorDBConfig struct {
	Type string `envconfig:"MIRROR_DB_TYPE" default:"sqlite"` // sqlite or mysql
	Path string `envconfig:"MIRROR_DB_PATH" default:"./data/mirror.db"`
	// MySQL settings
	Host     string `envconfig:"MIRROR_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"MIRROR_DB_PORT" default:"3306"`
	Name     string `envconfig:"MIRROR_DB_NAME" default:"zoho_mirror"`
	User     string `envconfig:"MIRROR_DB_USER" default:"root"`
	Password string `envconfig:"MIRROR_DB_PASS" default:""`
}

// RedisConfig holds change publisher settings.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// SyncConfig holds synchronization engine tuning.
type SyncConfig struct {
	PageSize int    `envconfig:"SYNC_PAGE_SIZE" default:"200"`
	Workers  int    `envconfig:"SYNC_WORKERS" default:"10"`
	TimeZone string `envconfig:"SYNC_TIMEZONE" default:"UTC"`
}

// RetentionConfig holds the stale-record sweep settings.
type RetentionConfig struct {
	Enabled   bool          `envconfig:"RETENTION_ENABLED" default:"false"`
	Threshold time.Duration `envconfig:"RETENTION_THRESHOLD" default:"720h"`
	Interval  time.Duration `envconfig:"RETENTION_INTERVAL" default:"24h"`
}

// MySQLDSN returns the MySQL data source name for the mirror store.
func (m *MirrorDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		m.User, m.Password, m.Host, m.Port, m.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Address returns the Redis address in host:port format.
func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Location resolves the configured server time zone. Naive remote
// timestamps are localized into it before storage.
func (s *SyncConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.TimeZone)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
