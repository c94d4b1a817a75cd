// pkg/core/anchor.go
package core

import "time"

// AnchorEventType is what happened to an anchor.
type AnchorEventType string

const (
	AnchorPlaced   AnchorEventType = "placed"
	AnchorDetected AnchorEventType = "detected"
	AnchorEvicted  AnchorEventType = "evicted"
	AnchorReset    AnchorEventType = "reset"
)

// AnchorKind is the flavor of an anchor.
type AnchorKind string

const (
	KindManual   AnchorKind = "manual"
	KindDetected AnchorKind = "detected"
)

// AnchorEvent is a journal entry for the anchor lifecycle.
type AnchorEvent struct {
	ID          uint
	AnchorID    string
	Kind        AnchorKind
	Type        AnchorEventType
	Time        time.Time
	Position    [3]float32
	FrequencyHz float64 // manual anchors only
	Label       string  // detected anchors only
}
