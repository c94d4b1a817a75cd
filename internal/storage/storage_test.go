// internal/storage/storage_test.go
package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/arlens/flicker/internal/config"
	"github.com/arlens/flicker/internal/storage"
	"github.com/arlens/flicker/internal/storage/memory"
	"github.com/arlens/flicker/internal/storage/postgres"
	sqlitestorage "github.com/arlens/flicker/internal/storage/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend_SelectsByType(t *testing.T) {
	deps := storage.Dependencies{DBLogger: zerolog.Nop(), Start: time.Now()}

	b, err := storage.NewBackend(config.StorageConfig{Type: "memory"}, deps)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = storage.NewBackend(config.StorageConfig{}, deps)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = storage.NewBackend(config.StorageConfig{Type: "postgres"}, deps)
	require.NoError(t, err)
	assert.IsType(t, &postgres.Backend{}, b)

	b, err = storage.NewBackend(config.StorageConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{OutputDir: t.TempDir()},
	}, deps)
	require.NoError(t, err)
	require.IsType(t, &sqlitestorage.Backend{}, b)

	exp, ok := b.(storage.Exportable)
	require.True(t, ok)
	assert.Equal(t, ".db", filepath.Ext(exp.ExportedFilePath()))
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := storage.NewBackend(config.StorageConfig{Type: "mongo"}, storage.Dependencies{})
	assert.EqualError(t, err, "unknown storage type: mongo")
}
