package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// WorldToScreen projects a homogeneous world position into normalized screen
// space, origin top-left, [0,1] on both axes for points inside the frustum.
// It reports false when the clip-space w component is zero.
func WorldToScreen(world mgl32.Vec4, view, projection mgl32.Mat4) (mgl32.Vec2, bool) {
	eye := view.Mul4x1(world)
	clip := projection.Mul4x1(eye)
	if clip[3] == 0 {
		return mgl32.Vec2{}, false
	}
	ndcX := clip[0] / clip[3]
	ndcY := clip[1] / clip[3]
	return mgl32.Vec2{0.5 * (ndcX + 1), 0.5 * (1 - ndcY)}, true
}

// Distance is the Euclidean distance between two world points.
func Distance(a, b mgl32.Vec3) float32 {
	d := a.Sub(b)
	return float32(math.Sqrt(float64(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])))
}

// DistanceToPlane returns the signed distance of the camera from the plane
// along the plane's local +Y (normal) axis. Negative means the camera is below.
func DistanceToPlane(plane, camera Pose) float32 {
	normal := plane.TransformedAxis(1, 1)
	return camera.Translation.Sub(plane.Translation).Dot(normal)
}

// Rect is an axis-aligned rectangle in normalized screen space.
type Rect struct {
	Left, Top, Right, Bottom float32
}

// RestrictRegion is the central region that decides which marker is highlighted.
var RestrictRegion = Rect{Left: 0.35, Top: 0.35, Right: 0.65, Bottom: 0.65}

// Contains reports whether (x, y) is inside the rectangle. Left and top edges
// are inclusive, right and bottom edges exclusive. Empty rectangles contain nothing.
func (r Rect) Contains(x, y float32) bool {
	return r.Left < r.Right && r.Top < r.Bottom &&
		x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom
}
