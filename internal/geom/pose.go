// Package geom holds the pure geometry used by the frame composer: poses,
// world-to-screen projection, distances and the normalized screen rectangle
// that drives highlight selection.
package geom

import "github.com/go-gl/mathgl/mgl32"

// Pose is a rigid transform from an object's local frame to world space.
type Pose struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
}

// IdentityPose returns the pose at the world origin with no rotation.
func IdentityPose() Pose {
	return Pose{Rotation: mgl32.QuatIdent()}
}

// TranslationPose returns a pose that only translates.
func TranslationPose(x, y, z float32) Pose {
	return Pose{Translation: mgl32.Vec3{x, y, z}, Rotation: mgl32.QuatIdent()}
}

// NewPose builds a pose from a translation and a (normalized) rotation.
func NewPose(t mgl32.Vec3, q mgl32.Quat) Pose {
	return Pose{Translation: t, Rotation: q.Normalize()}
}

// Compose returns p ∘ other: other is interpreted in p's local frame.
func (p Pose) Compose(other Pose) Pose {
	return Pose{
		Translation: p.Translation.Add(p.rotation().Rotate(other.Translation)),
		Rotation:    p.rotation().Mul(other.rotation()),
	}
}

// Inverse returns the pose mapping world space back into p's local frame.
func (p Pose) Inverse() Pose {
	inv := p.rotation().Inverse()
	return Pose{
		Translation: inv.Rotate(p.Translation.Mul(-1)),
		Rotation:    inv,
	}
}

// Matrix returns the column-major model matrix T*R.
func (p Pose) Matrix() mgl32.Mat4 {
	t := p.Translation
	return mgl32.Translate3D(t[0], t[1], t[2]).Mul4(p.rotation().Mat4())
}

// TransformPoint maps a local point into world space.
func (p Pose) TransformPoint(v mgl32.Vec3) mgl32.Vec3 {
	return p.Translation.Add(p.rotation().Rotate(v))
}

// TransformedAxis returns local axis (0=X, 1=Y, 2=Z) scaled and rotated into world space.
func (p Pose) TransformedAxis(axis int, scale float32) mgl32.Vec3 {
	var v mgl32.Vec3
	v[axis] = scale
	return p.rotation().Rotate(v)
}

// Position returns the homogeneous world position of the pose origin.
func (p Pose) Position() mgl32.Vec4 {
	return p.Translation.Vec4(1)
}

// rotation treats the zero quaternion as identity so zero-value poses behave.
func (p Pose) rotation() mgl32.Quat {
	if p.Rotation.W == 0 && p.Rotation.V == (mgl32.Vec3{}) {
		return mgl32.QuatIdent()
	}
	return p.Rotation
}
