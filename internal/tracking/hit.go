package tracking

import (
	"errors"

	"github.com/arlens/flicker/internal/geom"
)

// Session creation failures reported by a Factory.
var (
	ErrInstallRequired     = errors.New("tracking services install requested")
	ErrUserDeclinedInstall = errors.New("user declined tracking services installation")
	ErrProviderTooOld      = errors.New("tracking services too old")
	ErrSDKTooOld           = errors.New("tracking SDK too old")
	ErrDeviceNotCompatible = errors.New("device not compatible")
)

// UserMessage converts a session error into the text shown to the user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUserDeclinedInstall):
		return "Please install Google Play Services for AR"
	case errors.Is(err, ErrProviderTooOld):
		return "Please update ARCore"
	case errors.Is(err, ErrSDKTooOld):
		return "Please update this app"
	case errors.Is(err, ErrDeviceNotCompatible):
		return "This device does not support AR"
	case errors.Is(err, ErrCameraNotAvailable):
		return "Camera not available. Try restarting the app."
	default:
		return "Failed to create AR session: " + err.Error()
	}
}

// AcceptHit reports whether a hit is a valid place for a tap anchor. Planes
// need the hit inside their polygon and the camera above them; feature points
// need an estimated surface normal; instant placement and depth points always qualify.
func AcceptHit(hit HitResult, cameraPose geom.Pose) bool {
	switch t := hit.Trackable.(type) {
	case Plane:
		return t.IsPoseInPolygon(hit.Pose) && geom.DistanceToPlane(hit.Pose, cameraPose) > 0
	case Point:
		return t.OrientationMode() == EstimatedSurfaceNormal
	case InstantPlacementPoint:
		return true
	case DepthPoint:
		return true
	default:
		return false
	}
}

// FirstAccepted returns the nearest accepted hit.
func FirstAccepted(hits []HitResult, cameraPose geom.Pose) (HitResult, bool) {
	for _, h := range hits {
		if AcceptHit(h, cameraPose) {
			return h, true
		}
	}
	return HitResult{}, false
}

// IsApproximate reports whether the trackable is an instant placement point
// still positioned at an approximate distance.
func IsApproximate(t Trackable) bool {
	p, ok := t.(InstantPlacementPoint)
	return ok && p.TrackingMethod() == PlacementScreenspaceWithApproximateDistance
}
