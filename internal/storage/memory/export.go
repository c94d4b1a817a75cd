// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// JournalExport is the root JSON structure
type JournalExport struct {
	SessionStart time.Time         `json:"sessionStart"`
	SessionEnd   time.Time         `json:"sessionEnd"`
	Settings     SettingsJSON      `json:"settings"`
	AnchorEvents []AnchorEventJSON `json:"anchorEvents"`
	Detections   []DetectionJSON   `json:"detections"`
}

// SettingsJSON mirrors core.Settings
type SettingsJSON struct {
	UseDepthForOcclusion  bool `json:"useDepthForOcclusion"`
	InstantPlacement      bool `json:"instantPlacement"`
	EIS                   bool `json:"eis"`
	ShowDepthEnableDialog bool `json:"showDepthEnableDialog"`
}

// AnchorEventJSON represents one anchor lifecycle transition
type AnchorEventJSON struct {
	ID          uint       `json:"id"`
	Time        time.Time  `json:"time"`
	AnchorID    string     `json:"anchorId"`
	Kind        string     `json:"kind"`
	Type        string     `json:"type"`
	Position    [3]float32 `json:"position"`
	FrequencyHz float64    `json:"frequencyHz,omitempty"`
	Label       string     `json:"label,omitempty"`
}

// DetectionJSON represents one scan
type DetectionJSON struct {
	ID        uint         `json:"id"`
	Requested time.Time    `json:"requested"`
	Finished  time.Time    `json:"finished"`
	Objects   []ObjectJSON `json:"objects"`
	Anchored  int          `json:"anchored"`
	Error     string       `json:"error,omitempty"`
}

// ObjectJSON represents a detected object
type ObjectJSON struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
}

// exportJSON writes the journal to a (optionally gzipped) JSON file. Caller holds the lock.
func (b *Backend) exportJSON(end time.Time) error {
	export := b.buildExport(end)

	timestamp := b.start.Format("20060102_150405")
	filename := fmt.Sprintf("flicker_journal_%s.json", timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport(end time.Time) JournalExport {
	export := JournalExport{
		SessionStart: b.start,
		SessionEnd:   end,
		Settings: SettingsJSON{
			UseDepthForOcclusion:  b.settings.UseDepthForOcclusion,
			InstantPlacement:      b.settings.InstantPlacement,
			EIS:                   b.settings.EIS,
			ShowDepthEnableDialog: b.settings.ShowDepthEnableDialog,
		},
		AnchorEvents: make([]AnchorEventJSON, 0, len(b.anchorEvents)),
		Detections:   make([]DetectionJSON, 0, len(b.detections)),
	}

	for _, e := range b.anchorEvents {
		export.AnchorEvents = append(export.AnchorEvents, AnchorEventJSON{
			ID:          e.ID,
			Time:        e.Time,
			AnchorID:    e.AnchorID,
			Kind:        string(e.Kind),
			Type:        string(e.Type),
			Position:    e.Position,
			FrequencyHz: e.FrequencyHz,
			Label:       e.Label,
		})
	}

	for _, d := range b.detections {
		dj := DetectionJSON{
			ID:        d.ID,
			Requested: d.Requested,
			Finished:  d.Finished,
			Objects:   make([]ObjectJSON, 0, len(d.Objects)),
			Anchored:  d.Anchored,
			Error:     d.Error,
		}
		for _, o := range d.Objects {
			dj.Objects = append(dj.Objects, ObjectJSON{
				Label:      o.Label,
				Confidence: o.Confidence,
				X:          o.Center.X,
				Y:          o.Center.Y,
			})
		}
		export.Detections = append(export.Detections, dj)
	}

	return export
}

func writeGzipJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if err := json.NewEncoder(gw).Encode(data); err != nil {
		_ = gw.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
