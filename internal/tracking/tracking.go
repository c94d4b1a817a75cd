// Package tracking describes the contract of the AR tracking provider. The
// provider is opaque: it owns pose estimation, plane detection and depth, and
// the rest of the module only reads what it reports once per tick.
package tracking

import (
	"errors"
	"image"
	"strconv"

	"github.com/arlens/flicker/internal/geom"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrCameraNotAvailable is returned by Session.Update when the camera was
	// taken by another app or the device reset it.
	ErrCameraNotAvailable = errors.New("camera not available")

	// ErrNotYetAvailable is returned by image acquisition before the provider
	// has produced the first camera or depth image.
	ErrNotYetAvailable = errors.New("not yet available")
)

// State is the tracking status of the camera, an anchor or a trackable.
type State int

const (
	Tracking State = iota
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Tracking:
		return "TRACKING"
	case Paused:
		return "PAUSED"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// FailureReason explains why the camera is not tracking.
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureBadState
	FailureInsufficientLight
	FailureExcessiveMotion
	FailureInsufficientFeatures
	FailureCameraUnavailable
)

// Message returns the guidance shown to the user for the failure reason.
func (r FailureReason) Message() string {
	switch r {
	case FailureNone:
		return ""
	case FailureBadState:
		return "Tracking lost due to bad internal state. Please try restarting the AR experience."
	case FailureInsufficientLight:
		return "Too dark. Try moving to a well-lit area."
	case FailureExcessiveMotion:
		return "Moving too fast. Slow down."
	case FailureInsufficientFeatures:
		return "Can't find anything. Aim device at a surface with more texture or color."
	case FailureCameraUnavailable:
		return "Another app is using the camera. Tap on this app or try closing the other one."
	default:
		return "Unknown tracking failure reason: " + strconv.Itoa(int(r))
	}
}

// Session is the provider's per-app tracking session.
type Session interface {
	Resume() error
	Pause()
	Close()

	// Update advances the session and returns the newest frame.
	Update() (Frame, error)

	// Planes returns every plane the provider currently knows about.
	Planes() []Plane

	// SetCameraTextureNames tells the provider which GPU textures receive the camera feed.
	SetCameraTextureNames(ids []uint32)

	// Configure applies configuration before the session resumes.
	Configure(cfg Config) error

	// DepthSupported reports whether automatic depth can be enabled on this device.
	DepthSupported() bool

	// SetDisplayGeometry reports the display rotation in degrees and the view size in pixels.
	SetDisplayGeometry(rotation, width, height int)
}

// Config is the provider configuration applied before resume.
type Config struct {
	EnvironmentalHDR bool
	Depth            bool
	InstantPlacement bool
}

// Frame is a single provider update.
type Frame interface {
	// Timestamp is zero when the frame did not produce a new camera image.
	Timestamp() int64
	Camera() Camera
	AcquirePointCloud() PointCloud
	LightEstimate() LightEstimate

	// HitTest returns intersections for a view-space point, nearest first.
	HitTest(x, y float32) []HitResult
	// HitTestInstantPlacement hit-tests and falls back to an approximate point at the given distance.
	HitTestInstantPlacement(x, y, approximateDistance float32) []HitResult

	// TransformImageToView maps camera image pixels to view coordinates.
	TransformImageToView(x, y float32) (float32, float32)

	AcquireCameraImage() (CameraImage, error)
	AcquireDepthImage() (DepthImage, error)
}

// Camera is the frame's camera.
type Camera interface {
	TrackingState() State
	FailureReason() FailureReason
	Pose() geom.Pose
	DisplayOrientedPose() geom.Pose
	ViewMatrix() mgl32.Mat4
	ProjectionMatrix(near, far float32) mgl32.Mat4
}

// Anchor is a provider-maintained fixed location in world space.
type Anchor interface {
	Pose() geom.Pose
	TrackingState() State
	// Detach releases the provider's resources for the anchor. It is irreversible.
	Detach()
}

// Trackable is something a hit test can land on and an anchor can attach to.
type Trackable interface {
	TrackingState() State
	CreateAnchor(pose geom.Pose) (Anchor, error)
}

// Plane is a detected planar surface.
type Plane interface {
	Trackable
	CenterPose() geom.Pose
	IsPoseInPolygon(pose geom.Pose) bool
	// Polygon returns the boundary as X/Z pairs in the plane's local frame.
	Polygon() []float32
}

// OrientationMode describes how a feature point is oriented.
type OrientationMode int

const (
	InitializedToIdentity OrientationMode = iota
	EstimatedSurfaceNormal
)

// Point is a feature point.
type Point interface {
	Trackable
	OrientationMode() OrientationMode
}

// PlacementMethod is the tracking method of an instant placement point.
type PlacementMethod int

const (
	PlacementNotTracking PlacementMethod = iota
	PlacementScreenspaceWithApproximateDistance
	PlacementFullTracking
)

// InstantPlacementPoint is placed before any surface is known.
type InstantPlacementPoint interface {
	Trackable
	TrackingMethod() PlacementMethod
}

// DepthPoint is a point sampled from the depth map.
type DepthPoint interface {
	Trackable
	IsDepthPoint()
}

// HitResult is one candidate intersection of a hit test.
type HitResult struct {
	Trackable Trackable
	Pose      geom.Pose
	Distance  float32
}

// CreateAnchor attaches a new anchor to the hit's trackable at the hit pose.
func (h HitResult) CreateAnchor() (Anchor, error) {
	if h.Trackable == nil {
		return nil, errors.New("hit result has no trackable")
	}
	return h.Trackable.CreateAnchor(h.Pose)
}

// PointCloud is the provider's current feature point cloud.
type PointCloud interface {
	// Timestamp increases whenever the points change.
	Timestamp() int64
	// Points holds X, Y, Z, confidence per point.
	Points() []float32
	Release()
}

// LightEstimate is the per-frame environmental lighting estimate.
type LightEstimate interface {
	Valid() bool
	MainLightDirection() mgl32.Vec3
	MainLightIntensity() mgl32.Vec3
	// AmbientSphericalHarmonics returns 9 RGB coefficients (27 floats).
	AmbientSphericalHarmonics() []float32
}

// CameraImage is a CPU-side YUV camera image. It must be closed after use.
type CameraImage interface {
	Image() (*image.YCbCr, error)
	Close()
}

// DepthImage is a 16-bit depth image. It must be closed after use.
type DepthImage interface {
	Width() int
	Height() int
	Data() []uint16
	Close()
}
