package glrender

import (
	"github.com/arlens/flicker/internal/render"
	"golang.org/x/mobile/gl"
)

// layout is how a mesh's float data is read.
type layout struct {
	components int
	mode       gl.Enum
}

// layoutOf returns the layout of a dynamic mesh. Point clouds carry X, Y, Z
// and confidence per point; plane polygons are X/Z pairs in the plane frame.
func layoutOf(mesh render.Mesh) layout {
	switch mesh {
	case render.MeshPointCloud:
		return layout{components: 4, mode: gl.POINTS}
	case render.MeshPlane:
		return layout{components: 2, mode: gl.TRIANGLE_FAN}
	default:
		return layout{components: 3, mode: gl.TRIANGLES}
	}
}
