package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/volleyworks/volley/internal/config"
	"github.com/volleyworks/volley/internal/storage/memory"
	"github.com/volleyworks/volley/internal/storage/postgres"
	sqlitestorage "github.com/volleyworks/volley/internal/storage/sqlite"
	"github.com/volleyworks/volley/internal/storage/websocket"
)

var ErrUnknownType = errors.New("unknown storage type")

// NewBackend picks the recording backend named by storage.type. The backend
// is not initialised.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		b, err := sqlitestorage.New(cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "postgres":
		return postgres.New(cfg.Postgres, logger), nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:      cfg.WebSocket.URL,
			Secret:   cfg.WebSocket.Secret,
			Encoding: cfg.WebSocket.Encoding,
			Auth:     cfg.WebSocket.Auth,
		}, logger), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Type)
}
