package sim

import (
	"sync"

	"github.com/arlens/flicker/internal/geom"
	"github.com/arlens/flicker/internal/tracking"
)

// Anchor is a simulated anchor. It keeps its pose until detached and follows
// the tracking state of the session that created it.
type Anchor struct {
	mu       sync.Mutex
	pose     geom.Pose
	session  *Session
	detached bool
}

func (a *Anchor) Pose() geom.Pose {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pose
}

func (a *Anchor) TrackingState() tracking.State {
	a.mu.Lock()
	detached := a.detached
	a.mu.Unlock()
	if detached {
		return tracking.Stopped
	}
	return a.session.anchorState()
}

func (a *Anchor) Detach() {
	a.mu.Lock()
	a.detached = true
	a.mu.Unlock()
}

// Detached reports whether Detach was called.
func (a *Anchor) Detached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detached
}

// Plane is a horizontal, upward-facing square plane.
type Plane struct {
	session    *Session
	center     geom.Pose
	halfExtent float32
	state      tracking.State
}

func (p *Plane) TrackingState() tracking.State { return p.state }

func (p *Plane) CreateAnchor(pose geom.Pose) (tracking.Anchor, error) {
	return p.session.newAnchor(pose), nil
}

func (p *Plane) CenterPose() geom.Pose { return p.center }

// IsPoseInPolygon tests the pose's X/Z offset from the center against the square extent.
func (p *Plane) IsPoseInPolygon(pose geom.Pose) bool {
	local := p.center.Inverse().TransformPoint(pose.Translation)
	return abs(local.X()) <= p.halfExtent && abs(local.Z()) <= p.halfExtent
}

func (p *Plane) Polygon() []float32 {
	e := p.halfExtent
	return []float32{-e, -e, e, -e, e, e, -e, e}
}

// InstantPoint is an instant placement point at an approximate distance.
type InstantPoint struct {
	session *Session
	method  tracking.PlacementMethod
}

func (p *InstantPoint) TrackingState() tracking.State { return tracking.Tracking }

func (p *InstantPoint) CreateAnchor(pose geom.Pose) (tracking.Anchor, error) {
	return p.session.newAnchor(pose), nil
}

func (p *InstantPoint) TrackingMethod() tracking.PlacementMethod { return p.method }

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
