package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zoho-mirror-api/internal/config"
	"zoho-mirror-api/internal/handler"
	"zoho-mirror-api/internal/pubsub"
	"zoho-mirror-api/internal/repository"
	"zoho-mirror-api/internal/router"
	"zoho-mirror-api/internal/service"
	"zoho-mirror-api/internal/zoho"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Zoho Mirror API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Credential record and run log always live in the local SQLite
	// file, regardless of the mirror backend.
	configStore, err := repository.NewSQLiteConfigStore(cfg.MirrorDB.Path)
	if err != nil {
		log.Fatalf("Failed to initialize config store: %v", err)
	}
	defer configStore.Close()

	runLog, err := repository.NewSQLiteRunLogStore(cfg.MirrorDB.Path)
	if err != nil {
		log.Fatalf("Failed to initialize run log: %v", err)
	}
	defer runLog.Close()

	// Initialize mirror stores based on config
	var itemStore repository.ItemStore
	var orderStore repository.SalesOrderStore
	switch cfg.MirrorDB.Type {
	case "mysql":
		mysqlDB, err := sql.Open("mysql", cfg.MirrorDB.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to open MySQL: %v", err)
		}
		mysqlDB.SetMaxOpenConns(10)
		mysqlDB.SetMaxIdleConns(5)
		mysqlDB.SetConnMaxLifetime(5 * time.Minute)
		if err := mysqlDB.Ping(); err != nil {
			log.Fatalf("Failed to ping MySQL: %v", err)
		}
		defer mysqlDB.Close()

		itemStore, err = repository.NewMySQLItemStore(mysqlDB)
		if err != nil {
			log.Fatalf("Failed to initialize MySQL item store: %v", err)
		}
		orderStore, err = repository.NewMySQLSalesOrderStore(mysqlDB)
		if err != nil {
			log.Fatalf("Failed to initialize MySQL salesorder store: %v", err)
		}
		log.Println("MySQL mirror stores initialized")
	default: // sqlite
		sqliteItems, err := repository.NewSQLiteItemStore(cfg.MirrorDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite item store: %v", err)
		}
		defer sqliteItems.Close()
		sqliteOrders, err := repository.NewSQLiteSalesOrderStore(cfg.MirrorDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite salesorder store: %v", err)
		}
		defer sqliteOrders.Close()
		itemStore = sqliteItems
		orderStore = sqliteOrders
		log.Println("SQLite mirror stores initialized")
	}

	// Initialize change publisher (Redis, with log-only fallback)
	var publisher pubsub.Publisher
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed, change events will be dropped: %v", err)
		redisClient.Close()
		publisher = pubsub.NewLogPublisher()
	} else {
		publisher = pubsub.NewRedisPublisher(redisClient)
		log.Println("Redis change publisher initialized")
	}
	cancelPing()
	defer publisher.Close()

	// Resolve the server time zone for naive remote timestamps
	loc, err := cfg.Sync.Location()
	if err != nil {
		log.Printf("Warning: invalid SYNC_TIMEZONE %q, falling back to UTC: %v", cfg.Sync.TimeZone, err)
		loc = time.UTC
	}

	// Initialize the Zoho client and synchronization engine
	tokenProvider := zoho.NewTokenProvider(configStore, cfg.Zoho.AccountsURL, cfg.Zoho.HTTPTimeout)
	zohoClient := zoho.NewClient(zoho.ClientConfig{
		BaseURL:  cfg.Zoho.APIBaseURL,
		Timeout:  cfg.Zoho.HTTPTimeout,
		PageSize: cfg.Sync.PageSize,
		Workers:  cfg.Sync.Workers,
	}, tokenProvider)

	syncService := service.NewSyncService(itemStore, orderStore, configStore, runLog, zohoClient, publisher, loc)

	// Retention sweep (optional)
	if cfg.Retention.Enabled {
		retention := service.NewRetentionScheduler(itemStore, orderStore, publisher, service.RetentionConfig{
			Threshold: cfg.Retention.Threshold,
			Interval:  cfg.Retention.Interval,
		})
		retention.Start()
		defer retention.Stop()
	}

	// Initialize handlers
	healthHandler := handler.New()
	zohoHandler := handler.NewZohoHandler(configStore, tokenProvider, cfg.Zoho.Scopes, cfg.App.FrontendURL)
	syncHandler := handler.NewSyncHandler(syncService)
	runsHandler := handler.NewRunsHandler(runLog)
	adminHandler := handler.NewAdminHandler(itemStore, orderStore, cfg.MirrorDB.Type)

	// Create router
	r := router.New(router.Config{
		Handler:      healthHandler,
		ZohoHandler:  zohoHandler,
		SyncHandler:  syncHandler,
		RunsHandler:  runsHandler,
		AdminHandler: adminHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
