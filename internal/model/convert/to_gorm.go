// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/arlens/flicker/internal/model"
	"github.com/arlens/flicker/pkg/core"
	"gorm.io/datatypes"
)

// objectsToJSON converts detected objects to datatypes.JSON for DB storage.
func objectsToJSON(objects []core.DetectedObject) datatypes.JSON {
	if len(objects) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(objects)
	return datatypes.JSON(data)
}

// CoreToSettings converts core.Settings to the single settings row.
func CoreToSettings(s core.Settings) model.SettingsRow {
	return model.SettingsRow{
		ID:                    model.SettingsID,
		UseDepthForOcclusion:  s.UseDepthForOcclusion,
		InstantPlacement:      s.InstantPlacement,
		EIS:                   s.EIS,
		ShowDepthEnableDialog: s.ShowDepthEnableDialog,
	}
}

// CoreToAnchorEvent converts a core.AnchorEvent to a GORM model.AnchorEvent.
func CoreToAnchorEvent(e core.AnchorEvent) model.AnchorEvent {
	return model.AnchorEvent{
		ID:          e.ID,
		Time:        e.Time,
		AnchorID:    e.AnchorID,
		Kind:        string(e.Kind),
		EventType:   string(e.Type),
		PositionX:   e.Position[0],
		PositionY:   e.Position[1],
		PositionZ:   e.Position[2],
		FrequencyHz: e.FrequencyHz,
		Label:       e.Label,
	}
}

// CoreToDetection converts a core.DetectionRecord to a GORM model.Detection.
func CoreToDetection(r core.DetectionRecord) model.Detection {
	return model.Detection{
		ID:          r.ID,
		Requested:   r.Requested,
		Finished:    r.Finished,
		ObjectCount: len(r.Objects),
		Anchored:    r.Anchored,
		Objects:     objectsToJSON(r.Objects),
		Error:       r.Error,
	}
}
