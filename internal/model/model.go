package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&SettingsRow{},
	&AnchorEvent{},
	&Detection{},
}

// SettingsID is the primary key of the single settings row.
const SettingsID = 1

// SettingsRow holds the persisted feature toggles. There is only ever one row.
type SettingsRow struct {
	ID                    uint      `json:"id" gorm:"primarykey"`
	UpdatedAt             time.Time `json:"updatedAt"`
	UseDepthForOcclusion  bool      `json:"useDepthForOcclusion"`
	InstantPlacement      bool      `json:"instantPlacement"`
	EIS                   bool      `json:"eis"`
	ShowDepthEnableDialog bool      `json:"showDepthEnableDialog"`
}

func (*SettingsRow) TableName() string {
	return "settings"
}

////////////////////////
// JOURNAL
////////////////////////

// AnchorEvent is one anchor lifecycle transition.
type AnchorEvent struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time `json:"time" gorm:"type:timestamptz;index:idx_anchor_event_time"`
	AnchorID    string    `json:"anchorId" gorm:"size:36;index:idx_anchor_event_anchor_id"`
	Kind        string    `json:"kind" gorm:"size:16"`
	EventType   string    `json:"eventType" gorm:"size:16"`
	PositionX   float32   `json:"positionX"`
	PositionY   float32   `json:"positionY"`
	PositionZ   float32   `json:"positionZ"`
	FrequencyHz float64   `json:"frequencyHz"`
	Label       string    `json:"label" gorm:"size:128"`
}

func (*AnchorEvent) TableName() string {
	return "anchor_events"
}

// Detection summarizes one scan. Objects is a JSON array of the detected objects.
type Detection struct {
	ID          uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Requested   time.Time      `json:"requested" gorm:"type:timestamptz;index:idx_detection_requested"`
	Finished    time.Time      `json:"finished" gorm:"type:timestamptz"`
	ObjectCount int            `json:"objectCount"`
	Anchored    int            `json:"anchored"`
	Objects     datatypes.JSON `json:"objects"`
	Error       string         `json:"error" gorm:"size:512"`
}

func (*Detection) TableName() string {
	return "detections"
}
