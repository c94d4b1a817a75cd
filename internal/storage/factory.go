package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arlens/flicker/internal/config"
	"github.com/arlens/flicker/internal/database"
	"github.com/arlens/flicker/internal/storage/memory"
	"github.com/arlens/flicker/internal/storage/postgres"
	sqlitestorage "github.com/arlens/flicker/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// Dependencies are the shared services a backend may log to.
type Dependencies struct {
	Logger   *slog.Logger
	DBLogger zerolog.Logger
	Start    time.Time
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.DB, database.NewManager(deps.DBLogger), deps.Logger), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     database.SnapshotPath(cfg.SQLite.OutputDir, deps.Start),
		}, deps.Logger)
	case "memory", "":
		return memory.New(cfg.Memory, deps.Start), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
