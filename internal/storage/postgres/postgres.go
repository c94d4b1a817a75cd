// Package postgres is the shared journal backend. It falls back to an
// in-memory SQLite database when the server cannot be reached.
package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arlens/flicker/internal/config"
	"github.com/arlens/flicker/internal/database"
	"github.com/arlens/flicker/internal/model"
	"github.com/arlens/flicker/internal/model/convert"
	"github.com/arlens/flicker/internal/queue"
	gormstorage "github.com/arlens/flicker/internal/storage/gorm"
	"github.com/arlens/flicker/pkg/core"

	"gorm.io/gorm"
)

const (
	// QueueLimit bounds each write queue while the database is slow or down.
	QueueLimit = 4096

	// FlushInterval is how often queued rows are written.
	FlushInterval = 2 * time.Second
)

// ErrQueueFull is returned when a journal row is dropped.
var ErrQueueFull = errors.New("write queue full")

// Backend journals through Postgres. Settings are written synchronously;
// journal rows are buffered and written in batches by one goroutine.
type Backend struct {
	cfg      config.DBConfig
	manager  *database.Manager
	log      *slog.Logger
	settings *gormstorage.Backend
	events   *queue.Queue[model.AnchorEvent]
	scans    *queue.Queue[model.Detection]
	interval time.Duration
	stop     chan struct{}
	writer   sync.WaitGroup
}

// New does not connect; Init does.
func New(cfg config.DBConfig, manager *database.Manager, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		cfg:      cfg,
		manager:  manager,
		log:      log,
		events:   queue.New[model.AnchorEvent](QueueLimit),
		scans:    queue.New[model.Detection](QueueLimit),
		interval: FlushInterval,
	}
}

// Init connects unless the manager already holds a connection, migrates
// and starts the writer.
func (b *Backend) Init() error {
	if b.manager.DB() == nil {
		if err := b.manager.Connect(b.cfg); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if err := b.manager.Migrate(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if b.manager.Local() {
		b.log.Warn("Journal kept in memory only, it is lost on exit")
	}

	b.settings = gormstorage.New(b.manager.DB(), b.log)
	b.stop = make(chan struct{})
	b.writer.Add(1)
	go b.writeLoop()
	return nil
}

// Close stops the writer, writes whatever is still queued and disconnects.
func (b *Backend) Close() error {
	if b.stop == nil {
		return nil
	}
	close(b.stop)
	b.writer.Wait()
	b.stop = nil
	b.flush()
	return b.manager.Close()
}

// LoadSettings reads the persisted settings.
func (b *Backend) LoadSettings() (core.Settings, error) {
	return b.settings.LoadSettings()
}

// SaveSettings persists the settings.
func (b *Backend) SaveSettings(s core.Settings) error {
	return b.settings.SaveSettings(s)
}

// RecordAnchorEvent queues e. The database assigns the row ID on write.
func (b *Backend) RecordAnchorEvent(e *core.AnchorEvent) error {
	if !b.events.Offer(convert.CoreToAnchorEvent(*e)) {
		return fmt.Errorf("anchor event %s: %w", e.AnchorID, ErrQueueFull)
	}
	return nil
}

func (b *Backend) RecordDetection(r *core.DetectionRecord) error {
	if !b.scans.Offer(convert.CoreToDetection(*r)) {
		return fmt.Errorf("detection: %w", ErrQueueFull)
	}
	return nil
}

// writeBatch inserts everything queued in one transaction. A failed batch
// goes back to the front of its queue for the next cycle.
func writeBatch[T any](db *gorm.DB, q *queue.Queue[T], table string, log *slog.Logger) {
	rows := q.Drain()
	if len(rows) == 0 {
		return
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		log.Error("Journal write failed, will retry", "table", table, "rows", len(rows), "error", err)
		q.Requeue(rows)
		return
	}
	log.Debug("Journal rows written", "table", table, "rows", len(rows))
}

func (b *Backend) flush() {
	db := b.manager.DB()
	writeBatch(db, b.events, "anchor_events", b.log)
	writeBatch(db, b.scans, "detections", b.log)
}

func (b *Backend) writeLoop() {
	defer b.writer.Done()
	tick := time.NewTicker(b.interval)
	defer tick.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-tick.C:
			b.flush()
		}
	}
}
