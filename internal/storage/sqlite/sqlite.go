// Package sqlitestorage keeps the journal in SQLite, by default in memory,
// and snapshots it to a file on an interval and on Close.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arlens/flicker/internal/database"
	gormstorage "github.com/arlens/flicker/internal/storage/gorm"
	"gorm.io/gorm"
)

type Config struct {
	// DumpInterval of zero snapshots only on Close.
	DumpInterval time.Duration
	// DumpPath of "" disables snapshots.
	DumpPath string
	// DSN of "" is the shared in-memory database.
	DSN string
}

// Backend is the GORM backend plus the snapshot schedule.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	cfg Config
	log *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	loop     sync.WaitGroup
}

func New(cfg Config, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := database.OpenSQLite(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &Backend{
		Backend: gormstorage.New(db, log),
		db:      db,
		cfg:     cfg,
		log:     log,
		stop:    make(chan struct{}),
	}, nil
}

// Init migrates and, with a dump path and interval, starts the snapshot
// loop.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.DumpPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.cfg.DumpPath), 0o755); err != nil {
		return fmt.Errorf("sqlite: dump dir: %w", err)
	}
	if b.cfg.DumpInterval > 0 {
		b.loop.Add(1)
		go b.snapshotLoop()
	}
	return nil
}

// Close takes a last snapshot before closing the database.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	b.loop.Wait()
	if b.cfg.DumpPath != "" {
		if err := b.Dump(); err != nil {
			b.log.Error("Final journal snapshot failed", "path", b.cfg.DumpPath, "error", err)
		}
	}
	return b.Backend.Close()
}

// Dump snapshots the journal to DumpPath now.
func (b *Backend) Dump() error {
	start := time.Now()
	if err := database.Snapshot(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("Journal snapshot written", "path", b.cfg.DumpPath, "took", time.Since(start))
	return nil
}

// ExportedFilePath is where snapshots go, "" when disabled.
func (b *Backend) ExportedFilePath() string { return b.cfg.DumpPath }

func (b *Backend) snapshotLoop() {
	defer b.loop.Done()
	tick := time.NewTicker(b.cfg.DumpInterval)
	defer tick.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-tick.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Journal snapshot failed", "path", b.cfg.DumpPath, "error", err)
			}
		}
	}
}
