package geom

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldToScreen_ForwardPointProjectsToCenter(t *testing.T) {
	projection := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)

	tests := []struct {
		name string
		eye  mgl32.Vec3
		dir  mgl32.Vec3
	}{
		{name: "origin looking down -Z", eye: mgl32.Vec3{0, 0, 0}, dir: mgl32.Vec3{0, 0, -1}},
		{name: "offset camera looking +X", eye: mgl32.Vec3{1, 2, 3}, dir: mgl32.Vec3{1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := mgl32.LookAtV(tt.eye, tt.eye.Add(tt.dir), mgl32.Vec3{0, 1, 0})
			point := tt.eye.Add(tt.dir).Vec4(1)

			screen, ok := WorldToScreen(point, view, projection)
			require.True(t, ok)
			assert.InDelta(t, 0.5, screen[0], 1e-5)
			assert.InDelta(t, 0.5, screen[1], 1e-5)
		})
	}
}

func TestWorldToScreen_UpIsTopOfScreen(t *testing.T) {
	projection := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	view := mgl32.Ident4()

	screen, ok := WorldToScreen(mgl32.Vec4{0, 0.2, -1, 1}, view, projection)
	require.True(t, ok)
	assert.InDelta(t, 0.5, screen[0], 1e-5)
	assert.Less(t, screen[1], float32(0.5))
}

func TestWorldToScreen_ZeroW(t *testing.T) {
	projection := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)

	// A point on the camera plane has eye-space z == 0, which yields clip w == 0.
	_, ok := WorldToScreen(mgl32.Vec4{1, 0, 0, 1}, mgl32.Ident4(), projection)
	assert.False(t, ok)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Distance(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{3, 4, 0}), 1e-6)
	assert.InDelta(t, 0.0, Distance(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 1, 1}), 1e-6)
}

func TestDistanceToPlane(t *testing.T) {
	plane := TranslationPose(0, 0, 0)

	assert.InDelta(t, 1.5, DistanceToPlane(plane, TranslationPose(3, 1.5, -2)), 1e-6)
	assert.InDelta(t, -0.5, DistanceToPlane(plane, TranslationPose(0, -0.5, 0)), 1e-6)
}

func TestPose_Compose(t *testing.T) {
	// Quarter turn around +Y maps local +X onto world -Z.
	base := NewPose(mgl32.Vec3{1, 0, 0}, mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}))

	composed := base.Compose(TranslationPose(1, 0, 0))
	assert.InDelta(t, 1.0, composed.Translation[0], 1e-5)
	assert.InDelta(t, 0.0, composed.Translation[1], 1e-5)
	assert.InDelta(t, -1.0, composed.Translation[2], 1e-5)

	above := base.Compose(TranslationPose(0, 0.27, 0))
	assert.InDelta(t, 0.27, above.Translation[1], 1e-5)
}

func TestPose_ZeroValueIsIdentity(t *testing.T) {
	var p Pose
	m := p.Matrix()
	assert.True(t, m.ApproxEqual(mgl32.Ident4()))

	c := p.Compose(TranslationPose(0, 1, 0))
	assert.InDelta(t, 1.0, c.Translation[1], 1e-6)
}

func TestPose_MatrixMatchesTransformPoint(t *testing.T) {
	p := NewPose(mgl32.Vec3{0.5, -1, 2}, mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 0, 1}))
	local := mgl32.Vec3{1, 2, 3}

	want := p.TransformPoint(local)
	got := p.Matrix().Mul4x1(local.Vec4(1)).Vec3()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-5), "want %v got %v", want, got)
}

func TestPose_Inverse(t *testing.T) {
	p := NewPose(mgl32.Vec3{3, 1, -2}, mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0}))
	round := p.Compose(p.Inverse())

	assert.InDelta(t, 0.0, round.Translation.Len(), 1e-5)
}

func TestRect_Contains(t *testing.T) {
	r := RestrictRegion

	tests := []struct {
		name string
		x, y float32
		want bool
	}{
		{"center", 0.5, 0.5, true},
		{"left top corner inclusive", 0.35, 0.35, true},
		{"right edge exclusive", 0.65, 0.5, false},
		{"bottom edge exclusive", 0.5, 0.65, false},
		{"outside left", 0.1, 0.5, false},
		{"outside below", 0.5, 0.9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Contains(tt.x, tt.y))
		})
	}

	assert.False(t, Rect{Left: 0.5, Right: 0.5, Top: 0, Bottom: 1}.Contains(0.5, 0.5))
}
