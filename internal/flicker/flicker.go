// Package flicker derives the per-tick flicker markers of manual anchors and
// picks the one closest to the camera inside the restrict region.
//
// Everything here is a pure function of anchor state, camera matrices and the
// current time. No selection survives from one tick to the next.
package flicker

import (
	"math"

	"github.com/arlens/flicker/internal/anchor"
	"github.com/arlens/flicker/internal/geom"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultOffset lifts the marker above its anchor, in world units.
	DefaultOffset float32 = 0.27
	// DefaultScale is the uniform scale of the marker sphere.
	DefaultScale float32 = 0.06
)

var (
	// HighlightColor marks the closest anchor in the restrict region.
	HighlightColor = mgl32.Vec4{0, 1, 0, 1}
	// NeutralColor is used for every other marker in its ON phase.
	NeutralColor = mgl32.Vec4{1, 1, 1, 1}
)

// Phase reports whether a square wave of the given frequency, started
// elapsedNanos ago, is in the ON half of its period.
func Phase(elapsedNanos int64, hz float64) bool {
	if hz <= 0 {
		return false
	}
	elapsed := float64(elapsedNanos) / 1e9
	period := 1 / hz
	return math.Mod(elapsed, period) < period/2
}

// Marker is the evaluated flicker state of one manual anchor.
type Marker struct {
	Entry anchor.Entry
	// Pose is the anchor pose lifted by the selector offset.
	Pose geom.Pose
	// Screen is the normalized projection; only meaningful when Visible.
	Screen   mgl32.Vec2
	Visible  bool
	Distance float32
	InRegion bool
	On       bool

	Highlighted bool
}

// Color returns the marker draw color.
func (m Marker) Color() mgl32.Vec4 {
	if m.Highlighted {
		return HighlightColor
	}
	return NeutralColor
}

// Model returns the marker model matrix, scaled by scale.
func (m Marker) Model(scale float32) mgl32.Mat4 {
	return m.Pose.Matrix().Mul4(mgl32.Scale3D(scale, scale, scale))
}

// Selector evaluates markers. The zero value is not usable; see NewSelector.
type Selector struct {
	Offset float32
	Scale  float32
	Region geom.Rect
}

// NewSelector returns a selector with the default offset, scale and restrict region.
func NewSelector() Selector {
	return Selector{Offset: DefaultOffset, Scale: DefaultScale, Region: geom.RestrictRegion}
}

// Evaluate computes a marker for every tracked manual entry, in order, and
// flags the closest in-region marker as highlighted. Entries that are not
// manual or not tracking are skipped.
func (s Selector) Evaluate(entries []anchor.Entry, camera geom.Pose, view, projection mgl32.Mat4, now int64) []Marker {
	lift := geom.TranslationPose(0, s.Offset, 0)
	markers := make([]Marker, 0, len(entries))

	for _, e := range entries {
		m, ok := e.Manual()
		if !ok || !e.Tracking() {
			continue
		}
		pose := e.Anchor.Pose().Compose(lift)
		mk := Marker{
			Entry:    e,
			Pose:     pose,
			Distance: geom.Distance(pose.Translation, camera.Translation),
			On:       Phase(now-e.CreatedNanos, m.FrequencyHz),
		}
		mk.Screen, mk.Visible = geom.WorldToScreen(pose.Position(), view, projection)
		mk.InRegion = mk.Visible && s.Region.Contains(mk.Screen.X(), mk.Screen.Y())
		markers = append(markers, mk)
	}

	if i := Closest(markers); i >= 0 {
		markers[i].Highlighted = true
	}
	return markers
}

// Closest returns the index of the minimum-distance in-region marker, or -1.
// Ties keep the earliest marker.
func Closest(markers []Marker) int {
	best := -1
	for i, m := range markers {
		if !m.InRegion {
			continue
		}
		if best < 0 || m.Distance < markers[best].Distance {
			best = i
		}
	}
	return best
}
