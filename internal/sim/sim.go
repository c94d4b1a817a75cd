// Package sim is a deterministic tracking provider. It models a camera
// looking at horizontal planes, answers hit tests by ray casting, and
// synthesizes camera and depth images. The headless driver and the composer
// tests run against it.
package sim

import (
	"errors"
	"image"
	"sync"

	"github.com/arlens/flicker/internal/camimage"
	"github.com/arlens/flicker/internal/geom"
	"github.com/arlens/flicker/internal/tracking"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrSessionPaused is returned by Update before Resume or after Pause.
	ErrSessionPaused = errors.New("session paused")
	// ErrSessionClosed is returned by every call after Close.
	ErrSessionClosed = errors.New("session closed")
	// ErrDepthUnsupported is returned by Configure when depth is requested on a device without it.
	ErrDepthUnsupported = errors.New("depth mode not supported on this device")
)

// Defaults of a new session.
const (
	DefaultViewWidth   = 640
	DefaultViewHeight  = 480
	DefaultImageWidth  = 640
	DefaultImageHeight = 480
	DefaultFovY        = 60.0
	DefaultDepthMM     = 1500

	hitNear float32 = 0.1
	hitFar  float32 = 100
)

// Light is a fixed light estimate.
type Light struct {
	IsValid   bool
	Direction mgl32.Vec3
	Intensity mgl32.Vec3
	Harmonics []float32
}

func (l Light) Valid() bool                          { return l.IsValid }
func (l Light) MainLightDirection() mgl32.Vec3       { return l.Direction }
func (l Light) MainLightIntensity() mgl32.Vec3       { return l.Intensity }
func (l Light) AmbientSphericalHarmonics() []float32 { return l.Harmonics }

// DefaultLight is a valid estimate with light straight from above.
func DefaultLight() Light {
	sh := make([]float32, 27)
	for i := range sh {
		sh[i] = 0.5
	}
	return Light{
		IsValid:   true,
		Direction: mgl32.Vec3{0, -1, 0},
		Intensity: mgl32.Vec3{1, 1, 1},
		Harmonics: sh,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithDepthSupport sets whether the device supports automatic depth.
func WithDepthSupport(supported bool) Option {
	return func(s *Session) { s.depthSupported = supported }
}

// WithImageSize sets the camera image size in pixels.
func WithImageSize(w, h int) Option {
	return func(s *Session) { s.imageW, s.imageH = w, h }
}

// Session is a simulated tracking session. Every method is safe for
// concurrent use; scripted changes apply from the next Update.
type Session struct {
	mu sync.Mutex

	resumed bool
	closed  bool
	config  tracking.Config

	textures       []uint32
	depthSupported bool

	rotation     int
	viewW, viewH int
	imageW       int
	imageH       int
	fovY         float32

	cameraPose geom.Pose
	state      tracking.State
	reason     tracking.FailureReason

	planes []*Plane
	points []float32
	cloud  int64
	light  Light

	frameTime      int64
	stalled        bool
	failNext       error
	imageReady     bool
	depthReady     bool
	anchorsCreated int
}

// New returns a paused session with the camera tracking from (0, 1.5, 1.5)
// toward the origin and no planes.
func New(opts ...Option) *Session {
	s := &Session{
		depthSupported: true,
		viewW:          DefaultViewWidth,
		viewH:          DefaultViewHeight,
		imageW:         DefaultImageWidth,
		imageH:         DefaultImageHeight,
		fovY:           DefaultFovY,
		state:          tracking.Tracking,
		light:          DefaultLight(),
		imageReady:     true,
		depthReady:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cameraPose = lookAt(mgl32.Vec3{0, 1.5, 1.5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	return s
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.resumed = true
	return nil
}

func (s *Session) Pause() {
	s.mu.Lock()
	s.resumed = false
	s.mu.Unlock()
}

func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.resumed = false
	s.mu.Unlock()
}

func (s *Session) Configure(cfg tracking.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if cfg.Depth && !s.depthSupported {
		return ErrDepthUnsupported
	}
	s.config = cfg
	return nil
}

func (s *Session) DepthSupported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depthSupported
}

func (s *Session) SetCameraTextureNames(ids []uint32) {
	s.mu.Lock()
	s.textures = append([]uint32(nil), ids...)
	s.mu.Unlock()
}

func (s *Session) SetDisplayGeometry(rotation, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation = rotation
	if width > 0 && height > 0 {
		s.viewW, s.viewH = width, height
	}
}

func (s *Session) Planes() []tracking.Plane {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tracking.Plane, len(s.planes))
	for i, p := range s.planes {
		out[i] = p
	}
	return out
}

// Update advances the simulated clock by one frame and snapshots the scene.
func (s *Session) Update() (tracking.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if !s.resumed {
		return nil, ErrSessionPaused
	}
	if err := s.failNext; err != nil {
		s.failNext = nil
		return nil, err
	}

	var ts int64
	if !s.stalled {
		s.frameTime += 16_666_667
		ts = s.frameTime
	}

	planes := make([]*Plane, len(s.planes))
	copy(planes, s.planes)

	return &Frame{
		session:   s,
		timestamp: ts,
		camera: &Camera{
			state:  s.state,
			reason: s.reason,
			pose:   s.cameraPose,
			fovY:   s.fovY,
			aspect: float32(s.viewW) / float32(s.viewH),
		},
		cloud:      &PointCloud{timestamp: s.cloud, points: append([]float32(nil), s.points...)},
		light:      s.light,
		planes:     planes,
		viewW:      s.viewW,
		viewH:      s.viewH,
		imageW:     s.imageW,
		imageH:     s.imageH,
		imageReady: s.imageReady,
		depthReady: s.depthReady && s.config.Depth,
	}, nil
}

// LookAt moves the camera to eye, facing center.
func (s *Session) LookAt(eye, center mgl32.Vec3) {
	s.mu.Lock()
	s.cameraPose = lookAt(eye, center, mgl32.Vec3{0, 1, 0})
	s.mu.Unlock()
}

// SetTracking sets the camera tracking state and failure reason.
func (s *Session) SetTracking(state tracking.State, reason tracking.FailureReason) {
	s.mu.Lock()
	s.state = state
	s.reason = reason
	s.mu.Unlock()
}

// AddPlane adds a tracked horizontal plane centered at center.
func (s *Session) AddPlane(center mgl32.Vec3, halfExtent float32) *Plane {
	p := &Plane{
		session:    s,
		center:     geom.TranslationPose(center.X(), center.Y(), center.Z()),
		halfExtent: halfExtent,
		state:      tracking.Tracking,
	}
	s.mu.Lock()
	s.planes = append(s.planes, p)
	s.mu.Unlock()
	return p
}

// SetPoints replaces the point cloud (X, Y, Z, confidence per point) and
// advances its timestamp.
func (s *Session) SetPoints(points []float32) {
	s.mu.Lock()
	s.points = append([]float32(nil), points...)
	s.cloud++
	s.mu.Unlock()
}

// SetLight replaces the light estimate.
func (s *Session) SetLight(l Light) {
	s.mu.Lock()
	s.light = l
	s.mu.Unlock()
}

// SetStalled makes frames report a zero timestamp, as when no new camera image arrived.
func (s *Session) SetStalled(stalled bool) {
	s.mu.Lock()
	s.stalled = stalled
	s.mu.Unlock()
}

// FailNextUpdate makes the next Update return err.
func (s *Session) FailNextUpdate(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// SetImageAvailable toggles camera image acquisition.
func (s *Session) SetImageAvailable(ok bool) {
	s.mu.Lock()
	s.imageReady = ok
	s.mu.Unlock()
}

// SetDepthAvailable toggles depth image acquisition.
func (s *Session) SetDepthAvailable(ok bool) {
	s.mu.Lock()
	s.depthReady = ok
	s.mu.Unlock()
}

// Config returns the last applied configuration.
func (s *Session) Config() tracking.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Resumed reports whether the session is running.
func (s *Session) Resumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumed
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// TextureNames returns the camera texture names last set.
func (s *Session) TextureNames() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.textures...)
}

// DisplayRotation returns the rotation last reported through SetDisplayGeometry.
func (s *Session) DisplayRotation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

// AnchorsCreated counts every anchor created through the session.
func (s *Session) AnchorsCreated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchorsCreated
}

// CameraImage returns a synthetic camera image of the configured size.
func (s *Session) CameraImage() *camimage.Image {
	s.mu.Lock()
	w, h := s.imageW, s.imageH
	s.mu.Unlock()
	return syntheticImage(w, h)
}

func (s *Session) newAnchor(pose geom.Pose) *Anchor {
	s.mu.Lock()
	s.anchorsCreated++
	s.mu.Unlock()
	return &Anchor{pose: pose, session: s}
}

// anchorState follows the camera: anchors pause while tracking is lost.
func (s *Session) anchorState() tracking.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return tracking.Stopped
	}
	if s.state == tracking.Tracking {
		return tracking.Tracking
	}
	return tracking.Paused
}

// lookAt builds the camera pose whose view matrix is mgl32.LookAtV(eye, center, up).
func lookAt(eye, center, up mgl32.Vec3) geom.Pose {
	view := mgl32.LookAtV(eye, center, up)
	return geom.NewPose(eye, mgl32.Mat4ToQuat(view).Inverse())
}

func syntheticImage(w, h int) *camimage.Image {
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Y[img.YOffset(x, y)] = uint8((x + y) % 256)
		}
	}
	for i := range img.Cb {
		img.Cb[i] = 128
		img.Cr[i] = 128
	}
	return camimage.FromYCbCr(img)
}
