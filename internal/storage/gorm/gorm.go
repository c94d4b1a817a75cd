// Package gormstorage implements storage.Backend on any GORM dialect. The
// sqlite and postgres backends build on it.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/arlens/flicker/internal/database"
	"github.com/arlens/flicker/internal/model"
	"github.com/arlens/flicker/internal/model/convert"
	"github.com/arlens/flicker/pkg/core"
	"gorm.io/gorm"
)

// Backend writes settings and journal rows synchronously.
type Backend struct {
	db  *gorm.DB
	log *slog.Logger
}

// New creates a GORM backend over an open connection.
func New(db *gorm.DB, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{db: db, log: log}
}

// DB exposes the connection for dialect-specific wrappers.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.db == nil {
		return fmt.Errorf("gorm backend has no connection")
	}
	if err := database.Migrate(b.db); err != nil {
		return err
	}
	b.log.Info("Storage schema ready", "dialect", b.db.Name())
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// LoadSettings reads the settings row, or returns the defaults if there is none.
func (b *Backend) LoadSettings() (core.Settings, error) {
	var row model.SettingsRow
	err := b.db.First(&row, model.SettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.DefaultSettings(), nil
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return convert.SettingsToCore(row), nil
}

// SaveSettings upserts the settings row.
func (b *Backend) SaveSettings(s core.Settings) error {
	row := convert.CoreToSettings(s)
	if err := b.db.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// RecordAnchorEvent inserts the event and assigns its ID.
func (b *Backend) RecordAnchorEvent(e *core.AnchorEvent) error {
	row := convert.CoreToAnchorEvent(*e)
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record anchor event: %w", err)
	}
	e.ID = row.ID
	return nil
}

// RecordDetection inserts the detection summary and assigns its ID.
func (b *Backend) RecordDetection(r *core.DetectionRecord) error {
	row := convert.CoreToDetection(*r)
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record detection: %w", err)
	}
	r.ID = row.ID
	return nil
}

// AnchorEvents returns the journaled anchor events in insertion order.
func (b *Backend) AnchorEvents() ([]core.AnchorEvent, error) {
	var rows []model.AnchorEvent
	if err := b.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query anchor events: %w", err)
	}
	out := make([]core.AnchorEvent, len(rows))
	for i, r := range rows {
		out[i] = convert.AnchorEventToCore(r)
	}
	return out, nil
}

// Detections returns the journaled detection summaries in insertion order.
func (b *Backend) Detections() ([]core.DetectionRecord, error) {
	var rows []model.Detection
	if err := b.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	out := make([]core.DetectionRecord, len(rows))
	for i, r := range rows {
		out[i] = convert.DetectionToCore(r)
	}
	return out, nil
}
