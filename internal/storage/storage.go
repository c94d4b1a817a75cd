// internal/storage/storage.go
package storage

import "github.com/arlens/flicker/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Settings survive restarts. LoadSettings returns core.DefaultSettings
	// when nothing was saved yet.
	LoadSettings() (core.Settings, error)
	SaveSettings(s core.Settings) error

	// Journal (assigns ID to the passed pointer where the backend has one)
	RecordAnchorEvent(e *core.AnchorEvent) error
	RecordDetection(r *core.DetectionRecord) error
}

// Exportable is an optional interface for backends that write a journal
// file when they are closed.
type Exportable interface {
	ExportedFilePath() string
}
