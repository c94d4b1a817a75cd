// internal/storage/memory/memory.go
package memory

import (
	"sync"
	"time"

	"github.com/arlens/flicker/internal/config"
	"github.com/arlens/flicker/pkg/core"
)

// Backend keeps settings and the journal in memory and exports the journal to JSON on Close.
type Backend struct {
	cfg   config.MemoryConfig
	start time.Time

	settings     core.Settings
	anchorEvents []core.AnchorEvent
	detections   []core.DetectionRecord

	idCounter      uint
	lastExportPath string
	closed         bool
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, start time.Time) *Backend {
	return &Backend{
		cfg:      cfg,
		start:    start,
		settings: core.DefaultSettings(),
	}
}

// Init is a no-op for the memory backend.
func (b *Backend) Init() error {
	return nil
}

// Close exports the journal if an output directory is configured. Closing twice is a no-op.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON(time.Now())
}

// LoadSettings returns the in-process settings.
func (b *Backend) LoadSettings() (core.Settings, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings, nil
}

// SaveSettings replaces the in-process settings.
func (b *Backend) SaveSettings(s core.Settings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings = s
	return nil
}

// RecordAnchorEvent appends the event and assigns its ID.
func (b *Backend) RecordAnchorEvent(e *core.AnchorEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	e.ID = b.idCounter
	b.anchorEvents = append(b.anchorEvents, *e)
	return nil
}

// RecordDetection appends the detection summary and assigns its ID.
func (b *Backend) RecordDetection(r *core.DetectionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	r.ID = b.idCounter
	b.detections = append(b.detections, *r)
	return nil
}

// ExportedFilePath returns the path of the last export, or "" before Close.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// AnchorEvents returns a copy of the recorded anchor events.
func (b *Backend) AnchorEvents() []core.AnchorEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.AnchorEvent(nil), b.anchorEvents...)
}

// Detections returns a copy of the recorded detection summaries.
func (b *Backend) Detections() []core.DetectionRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.DetectionRecord(nil), b.detections...)
}
