package sim

import (
	"math"
	"slices"

	"github.com/arlens/flicker/internal/geom"
	"github.com/arlens/flicker/internal/tracking"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is the camera of one simulated frame.
type Camera struct {
	state  tracking.State
	reason tracking.FailureReason
	pose   geom.Pose
	fovY   float32
	aspect float32
}

func (c *Camera) TrackingState() tracking.State         { return c.state }
func (c *Camera) FailureReason() tracking.FailureReason { return c.reason }
func (c *Camera) Pose() geom.Pose                       { return c.pose }
func (c *Camera) DisplayOrientedPose() geom.Pose        { return c.pose }
func (c *Camera) ViewMatrix() mgl32.Mat4                { return c.pose.Inverse().Matrix() }

func (c *Camera) ProjectionMatrix(near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.fovY), c.aspect, near, far)
}

// PointCloud is the point cloud of one simulated frame.
type PointCloud struct {
	timestamp int64
	points    []float32
	released  bool
}

func (p *PointCloud) Timestamp() int64  { return p.timestamp }
func (p *PointCloud) Points() []float32 { return p.points }
func (p *PointCloud) Release()          { p.released = true }

type depthImage struct {
	w, h int
	data []uint16
}

func (d *depthImage) Width() int     { return d.w }
func (d *depthImage) Height() int    { return d.h }
func (d *depthImage) Data() []uint16 { return d.data }
func (d *depthImage) Close()         {}

// Frame is a snapshot of the session taken by Update.
type Frame struct {
	session    *Session
	timestamp  int64
	camera     *Camera
	cloud      *PointCloud
	light      Light
	planes     []*Plane
	viewW      int
	viewH      int
	imageW     int
	imageH     int
	imageReady bool
	depthReady bool
}

func (f *Frame) Timestamp() int64                       { return f.timestamp }
func (f *Frame) Camera() tracking.Camera                { return f.camera }
func (f *Frame) AcquirePointCloud() tracking.PointCloud { return f.cloud }
func (f *Frame) LightEstimate() tracking.LightEstimate  { return f.light }

// HitTest casts a ray through the view pixel (x, y) and intersects it with
// every tracked plane, nearest first. Nothing is hit while the camera is not tracking.
func (f *Frame) HitTest(x, y float32) []tracking.HitResult {
	if f.camera.state != tracking.Tracking {
		return nil
	}
	origin, dir := f.ray(x, y)

	var hits []tracking.HitResult
	for _, p := range f.planes {
		if p.state != tracking.Tracking {
			continue
		}
		normal := p.center.TransformedAxis(1, 1)
		denom := dir.Dot(normal)
		if float32(math.Abs(float64(denom))) < 1e-6 {
			continue
		}
		t := p.center.Translation.Sub(origin).Dot(normal) / denom
		if t <= 0 {
			continue
		}
		point := origin.Add(dir.Mul(t))
		hits = append(hits, tracking.HitResult{
			Trackable: p,
			Pose:      geom.Pose{Translation: point, Rotation: p.center.Rotation},
			Distance:  geom.Distance(point, f.camera.pose.Translation),
		})
	}
	slices.SortStableFunc(hits, func(a, b tracking.HitResult) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})
	return hits
}

// HitTestInstantPlacement returns the plane hits or, when there are none, an
// approximate instant placement point at the given distance along the ray.
func (f *Frame) HitTestInstantPlacement(x, y, approximateDistance float32) []tracking.HitResult {
	if hits := f.HitTest(x, y); len(hits) > 0 {
		return hits
	}
	if f.camera.state != tracking.Tracking {
		return nil
	}
	origin, dir := f.ray(x, y)
	point := origin.Add(dir.Mul(approximateDistance))
	return []tracking.HitResult{{
		Trackable: &InstantPoint{session: f.session, method: tracking.PlacementScreenspaceWithApproximateDistance},
		Pose:      geom.Pose{Translation: point, Rotation: mgl32.QuatIdent()},
		Distance:  approximateDistance,
	}}
}

// TransformImageToView scales image pixels to view pixels.
func (f *Frame) TransformImageToView(x, y float32) (float32, float32) {
	return x * float32(f.viewW) / float32(f.imageW), y * float32(f.viewH) / float32(f.imageH)
}

func (f *Frame) AcquireCameraImage() (tracking.CameraImage, error) {
	if !f.imageReady {
		return nil, tracking.ErrNotYetAvailable
	}
	return syntheticImage(f.imageW, f.imageH), nil
}

// AcquireDepthImage returns a flat depth image at DefaultDepthMM. Depth must
// be enabled through Configure.
func (f *Frame) AcquireDepthImage() (tracking.DepthImage, error) {
	if !f.depthReady {
		return nil, tracking.ErrNotYetAvailable
	}
	w, h := f.imageW/4, f.imageH/4
	data := make([]uint16, w*h)
	for i := range data {
		data[i] = DefaultDepthMM
	}
	return &depthImage{w: w, h: h, data: data}, nil
}

// ray returns the world-space origin and direction through view pixel (x, y).
func (f *Frame) ray(x, y float32) (mgl32.Vec3, mgl32.Vec3) {
	ndcX := 2*x/float32(f.viewW) - 1
	ndcY := 1 - 2*y/float32(f.viewH)
	inv := f.camera.ProjectionMatrix(hitNear, hitFar).Mul4(f.camera.ViewMatrix()).Inv()

	near := inv.Mul4x1(mgl32.Vec4{ndcX, ndcY, -1, 1})
	far := inv.Mul4x1(mgl32.Vec4{ndcX, ndcY, 1, 1})
	n := near.Vec3().Mul(1 / near.W())
	fa := far.Vec3().Mul(1 / far.W())
	return n, fa.Sub(n).Normalize()
}
