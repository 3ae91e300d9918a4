// Package postgres implements the storage.Backend interface on PostgreSQL by
// connecting at Init and delegating to the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/volleyworks/volley/internal/config"
	"github.com/volleyworks/volley/internal/database"
	gormstorage "github.com/volleyworks/volley/internal/storage/gorm"
)

// Backend implements storage.Backend using GORM/PostgreSQL with queue-based batch writes.
type Backend struct {
	*gormstorage.Backend
	cfg config.PostgresConfig
	log *slog.Logger
}

// New creates a new postgres storage backend. No connection is made until Init.
func New(cfg config.PostgresConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, log: logger}
}

// Init connects, validates the connection and initializes the GORM backend.
func (b *Backend) Init() error {
	b.log.Debug("Connecting to Postgres DB", "host", b.cfg.Host, "port", b.cfg.Port, "database", b.cfg.Database)

	db, err := database.OpenPostgres(b.cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	b.log.Info("Connected to database")

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.log})
	return b.Backend.Init()
}

// Close closes the GORM backend if Init succeeded.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
