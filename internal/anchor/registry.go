package anchor

import (
	"errors"
	"fmt"
	"time"

	"github.com/arlens/flicker/internal/tracking"
	"github.com/arlens/flicker/pkg/core"
	"github.com/google/uuid"
)

// ErrNoTrackable is returned when a hit result cannot carry an anchor.
var ErrNoTrackable = errors.New("hit result has no trackable")

// Hitter converts image pixels into hit-test candidates. Frames satisfy it.
type Hitter interface {
	TransformImageToView(x, y float32) (float32, float32)
	HitTest(x, y float32) []tracking.HitResult
}

// Listener receives anchor lifecycle events.
type Listener func(core.AnchorEvent)

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the monotonic clock used for creation timestamps.
func WithClock(c Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithListener registers a lifecycle listener.
func WithListener(l Listener) Option {
	return func(r *Registry) { r.listener = l }
}

// Registry holds manual and detected anchors in insertion order.
type Registry struct {
	manual   []Entry
	detected []Entry

	clock    Clock
	listener Listener
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{clock: MonotonicNanos}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PlaceManual anchors a tap hit. When the manual set is full every manual
// anchor is detached first, so a fresh batch always starts at Frequencies[0].
func (r *Registry) PlaceManual(hit tracking.HitResult) (uuid.UUID, error) {
	if hit.Trackable == nil {
		return uuid.Nil, ErrNoTrackable
	}

	if len(r.manual) >= MaxManualAnchors {
		r.detachAll(r.manual, core.AnchorEvicted)
		r.manual = r.manual[:0]
	}

	a, err := hit.CreateAnchor()
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating manual anchor: %w", err)
	}

	e := Entry{
		ID:           uuid.New(),
		Anchor:       a,
		CreatedNanos: r.clock(),
		Variant: Manual{
			FrequencyHz: Frequencies[len(r.manual)],
			Trackable:   hit.Trackable,
		},
	}
	r.manual = append(r.manual, e)
	r.emit(e, core.AnchorPlaced)

	return e.ID, nil
}

// ApplyDetections hit-tests every result at its pixel center and anchors it on
// the first hit. Results without a hit are dropped; only created entries are returned.
func (r *Registry) ApplyDetections(results []core.DetectedObject, hitter Hitter) []Entry {
	created := make([]Entry, 0, len(results))
	for _, obj := range results {
		x, y := hitter.TransformImageToView(float32(obj.Center.X), float32(obj.Center.Y))
		hits := hitter.HitTest(x, y)
		if len(hits) == 0 {
			continue
		}
		a, err := hits[0].CreateAnchor()
		if err != nil {
			continue
		}
		e := Entry{
			ID:           uuid.New(),
			Anchor:       a,
			CreatedNanos: r.clock(),
			Variant:      Detected{Label: obj.Label, Confidence: obj.Confidence},
		}
		created = append(created, e)
		r.emit(e, core.AnchorDetected)
	}
	r.detected = append(r.detected, created...)
	return created
}

// Reset detaches and forgets every anchor.
func (r *Registry) Reset() {
	r.detachAll(r.manual, core.AnchorReset)
	r.detachAll(r.detected, core.AnchorReset)
	r.manual = nil
	r.detected = nil
}

// LiveManual returns tracked manual anchors in insertion order.
func (r *Registry) LiveManual() []Entry {
	return live(r.manual)
}

// LiveDetected returns tracked detected anchors in insertion order.
func (r *Registry) LiveDetected() []Entry {
	return live(r.detected)
}

// LiveTracked returns tracked manual anchors followed by tracked detected anchors.
func (r *Registry) LiveTracked() []Entry {
	return append(r.LiveManual(), r.LiveDetected()...)
}

// ManualCount is the number of registered manual anchors, tracked or not.
func (r *Registry) ManualCount() int { return len(r.manual) }

// DetectedCount is the number of registered detected anchors, tracked or not.
func (r *Registry) DetectedCount() int { return len(r.detected) }

// Len is the total number of registered anchors.
func (r *Registry) Len() int { return len(r.manual) + len(r.detected) }

func (r *Registry) detachAll(entries []Entry, reason core.AnchorEventType) {
	// A detached anchor has no meaningful pose, so report first.
	for _, e := range entries {
		r.emit(e, reason)
		e.Anchor.Detach()
	}
}

func (r *Registry) emit(e Entry, t core.AnchorEventType) {
	if r.listener == nil {
		return
	}
	ev := core.AnchorEvent{
		AnchorID: e.ID.String(),
		Kind:     e.Kind(),
		Type:     t,
		Time:     time.Now(),
	}
	pos := e.Anchor.Pose().Translation
	ev.Position = [3]float32{pos[0], pos[1], pos[2]}
	switch v := e.Variant.(type) {
	case Manual:
		ev.FrequencyHz = v.FrequencyHz
	case Detected:
		ev.Label = v.Label
	}
	r.listener(ev)
}

func live(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Tracking() {
			out = append(out, e)
		}
	}
	return out
}
