// Package anchor owns the manual (tap) and detected (cloud) anchors of a
// session. It is confined to the render goroutine and needs no locking.
package anchor

import (
	"time"

	"github.com/arlens/flicker/internal/tracking"
	"github.com/arlens/flicker/pkg/core"
	"github.com/google/uuid"
)

// MaxManualAnchors bounds the number of live tap anchors.
const MaxManualAnchors = 6

// Frequencies is the flicker palette in Hz, indexed by insertion slot.
var Frequencies = [MaxManualAnchors]float64{7.0, 8.0, 9.0, 11.0, 7.5, 8.5}

// Variant carries the flavor-specific fields of an anchor. It is implemented
// only by Manual and Detected.
type Variant interface {
	kind() core.AnchorKind
}

// Manual is an anchor placed by a tap.
type Manual struct {
	FrequencyHz float64
	Trackable   tracking.Trackable
}

func (Manual) kind() core.AnchorKind { return core.KindManual }

// Detected is an anchor placed from a cloud detection result.
type Detected struct {
	Label      string
	Confidence float32
}

func (Detected) kind() core.AnchorKind { return core.KindDetected }

// Entry is a registered anchor. Variant fields never change after creation;
// pose and tracking state are read from the provider-owned Anchor.
type Entry struct {
	ID           uuid.UUID
	Anchor       tracking.Anchor
	CreatedNanos int64
	Variant      Variant
}

// Kind returns the entry's flavor.
func (e Entry) Kind() core.AnchorKind {
	return e.Variant.kind()
}

// Manual returns the manual fields, if the entry is a manual anchor.
func (e Entry) Manual() (Manual, bool) {
	m, ok := e.Variant.(Manual)
	return m, ok
}

// Detected returns the detected fields, if the entry is a detected anchor.
func (e Entry) Detected() (Detected, bool) {
	d, ok := e.Variant.(Detected)
	return d, ok
}

// Tracking reports whether the provider currently tracks the anchor.
func (e Entry) Tracking() bool {
	return e.Anchor.TrackingState() == tracking.Tracking
}

// Clock returns monotonic nanoseconds.
type Clock func() int64

var epoch = time.Now()

// MonotonicNanos reads the process monotonic clock.
func MonotonicNanos() int64 {
	return time.Since(epoch).Nanoseconds()
}
