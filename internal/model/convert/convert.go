package convert

import (
	"encoding/json"

	"github.com/arlens/flicker/internal/model"
	"github.com/arlens/flicker/pkg/core"
)

// SettingsToCore converts the settings row to core.Settings.
func SettingsToCore(s model.SettingsRow) core.Settings {
	return core.Settings{
		UseDepthForOcclusion:  s.UseDepthForOcclusion,
		InstantPlacement:      s.InstantPlacement,
		EIS:                   s.EIS,
		ShowDepthEnableDialog: s.ShowDepthEnableDialog,
	}
}

// AnchorEventToCore converts a GORM AnchorEvent to a core.AnchorEvent.
func AnchorEventToCore(e model.AnchorEvent) core.AnchorEvent {
	return core.AnchorEvent{
		ID:          e.ID,
		AnchorID:    e.AnchorID,
		Kind:        core.AnchorKind(e.Kind),
		Type:        core.AnchorEventType(e.EventType),
		Time:        e.Time,
		Position:    [3]float32{e.PositionX, e.PositionY, e.PositionZ},
		FrequencyHz: e.FrequencyHz,
		Label:       e.Label,
	}
}

// DetectionToCore converts a GORM Detection to a core.DetectionRecord.
// Malformed object JSON yields an empty object list.
func DetectionToCore(d model.Detection) core.DetectionRecord {
	var objects []core.DetectedObject
	if len(d.Objects) > 0 {
		_ = json.Unmarshal(d.Objects, &objects)
	}
	return core.DetectionRecord{
		ID:        d.ID,
		Requested: d.Requested,
		Finished:  d.Finished,
		Objects:   objects,
		Anchored:  d.Anchored,
		Error:     d.Error,
	}
}
