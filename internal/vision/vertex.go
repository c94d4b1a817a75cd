package vision

import (
	"errors"
	"fmt"

	"github.com/arlens/flicker/pkg/core"
)

var ErrInvalidRotation = errors.New("invalid image rotation")

// Center averages the vertices of a normalized bounding polygon.
func Center(vertices []Vertex) Vertex {
	var c Vertex
	n := float32(len(vertices))
	for _, v := range vertices {
		c.X += v.X / n
		c.Y += v.Y / n
	}
	return c
}

// ToAbsolute scales a normalized vertex to pixels, truncating.
func ToAbsolute(v Vertex, width, height int) core.Pixel {
	return core.Pixel{X: int(v.X * float32(width)), Y: int(v.Y * float32(height))}
}

// RotateBack maps a pixel of the rotated (display oriented) image of size
// width x height back into the sensor image.
func RotateBack(p core.Pixel, width, height, rotation int) (core.Pixel, error) {
	switch rotation {
	case 0:
		return p, nil
	case 180:
		return core.Pixel{X: width - p.X, Y: height - p.Y}, nil
	case 90:
		return core.Pixel{X: p.Y, Y: width - p.X}, nil
	case 270:
		return core.Pixel{X: height - p.Y, Y: p.X}, nil
	default:
		return core.Pixel{}, fmt.Errorf("%w: %d", ErrInvalidRotation, rotation)
	}
}
