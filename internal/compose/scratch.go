package compose

import (
	"github.com/arlens/flicker/internal/geom"
	"github.com/arlens/flicker/internal/lighting"
	"github.com/go-gl/mathgl/mgl32"
)

// scratch holds the matrices of one tick. It lives in the composer and is
// overwritten every tick.
type scratch struct {
	model               mgl32.Mat4
	view                mgl32.Mat4
	projection          mgl32.Mat4
	viewProjection      mgl32.Mat4
	modelView           mgl32.Mat4
	modelViewProjection mgl32.Mat4
	sh                  [lighting.Coefficients]float32
}

// setCamera stores the camera matrices and their product.
func (s *scratch) setCamera(view, projection mgl32.Mat4) {
	s.view = view
	s.projection = projection
	s.viewProjection = projection.Mul4(view)
}

// setModel derives the model-view and model-view-projection matrices for model.
func (s *scratch) setModel(model mgl32.Mat4) {
	s.model = model
	s.modelView = s.view.Mul4(model)
	s.modelViewProjection = s.projection.Mul4(s.modelView)
}

// setPose is setModel for a pose.
func (s *scratch) setPose(p geom.Pose) {
	s.setModel(p.Matrix())
}
