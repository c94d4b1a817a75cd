// Package database opens the GORM connections behind the journal: Postgres
// for a shared journal, SQLite for a local one, with an in-memory SQLite
// fallback when Postgres is unreachable.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arlens/flicker/internal/config"
	"github.com/arlens/flicker/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN is the shared-cache in-memory SQLite database.
const MemoryDSN = "file::memory:?cache=shared"

// ErrNoSnapshotPath is returned by Snapshot without a destination.
var ErrNoSnapshotPath = errors.New("snapshot path not set")

// The journal is append-mostly and can be rebuilt, so durability is traded
// for write speed.
var sqlitePragmas = []string{
	"PRAGMA journal_mode = MEMORY",
	"PRAGMA synchronous = OFF",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA cache_size = -16000",
}

func gormConfig(batch int, prepare bool) *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            prepare,
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// DSN renders cfg as a libpq keyword/value string.
func DSN(cfg config.DBConfig) string {
	parts := []string{
		"host=" + cfg.Host,
		"port=" + cfg.Port,
		"user=" + cfg.Username,
		"password=" + cfg.Password,
		"dbname=" + cfg.Database,
		"sslmode=disable",
	}
	return strings.Join(parts, " ")
}

// OpenPostgres does not contact the server; Ping does.
func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{DSN: DSN(cfg), PreferSimpleProtocol: true}), gormConfig(1000, false))
}

// OpenSQLite opens path, or MemoryDSN when path is empty.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		path = MemoryDSN
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig(500, true))
	if err != nil {
		return nil, err
	}
	for _, p := range sqlitePragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return db, nil
}

// Migrate creates or updates the journal and settings tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Snapshot copies db to path with VACUUM INTO, replacing any existing file.
// The copy is consistent without pausing writers.
func Snapshot(db *gorm.DB, path string) error {
	if path == "" {
		return ErrNoSnapshotPath
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("snapshot: removing old file: %w", err)
	}
	if err := db.Exec("VACUUM INTO ?", "file:"+path).Error; err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// SnapshotPath names the snapshot file of a session started at start.
func SnapshotPath(dir string, start time.Time) string {
	return filepath.Join(dir, "flicker_"+start.Format("20060102_150405")+".db")
}

// Snapshots lists the .db files in dir, oldest session first.
func Snapshots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".db" {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Manager owns one journal connection.
type Manager struct {
	log   zerolog.Logger
	db    *gorm.DB
	sqlDB *sql.DB
	local bool
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log}
}

// DB is nil until Connect or Adopt succeeds.
func (m *Manager) DB() *gorm.DB { return m.db }

// Local reports whether Connect fell back to in-memory SQLite.
func (m *Manager) Local() bool { return m.local }

// Adopt uses an already opened connection instead of connecting.
func (m *Manager) Adopt(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("adopt: %w", err)
	}
	m.db, m.sqlDB = db, sqlDB
	return nil
}

// Connect opens and pings Postgres. When that fails the journal moves to
// in-memory SQLite and Local reports true.
func (m *Manager) Connect(cfg config.DBConfig) error {
	m.log.Debug().Str("host", cfg.Host).Str("port", cfg.Port).Str("database", cfg.Database).Msg("connecting to postgres")

	err := m.connectPostgres(cfg)
	if err == nil {
		m.sqlDB.SetMaxOpenConns(10)
		m.log.Info().Str("host", cfg.Host).Msg("journal connected to postgres")
		return nil
	}
	m.log.Warn().Err(err).Msg("postgres unavailable, falling back to in-memory sqlite")

	db, err := OpenSQLite("")
	if err != nil {
		return fmt.Errorf("sqlite fallback: %w", err)
	}
	if err := m.Adopt(db); err != nil {
		return err
	}
	m.local = true
	return nil
}

func (m *Manager) connectPostgres(cfg config.DBConfig) error {
	db, err := OpenPostgres(cfg)
	if err != nil {
		return err
	}
	if err := m.Adopt(db); err != nil {
		return err
	}
	return m.sqlDB.Ping()
}

// Migrate runs Migrate on the managed connection.
func (m *Manager) Migrate() error {
	start := time.Now()
	if err := Migrate(m.db); err != nil {
		return err
	}
	m.log.Debug().Dur("took", time.Since(start)).Msg("schema migrated")
	return nil
}

func (m *Manager) Close() error {
	if m.sqlDB == nil {
		return nil
	}
	err := m.sqlDB.Close()
	m.db, m.sqlDB = nil, nil
	return err
}
