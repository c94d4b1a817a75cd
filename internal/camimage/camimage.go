// Package camimage converts camera YUV images into something the cloud
// detector can upload: rotated to display orientation and JPEG encoded.
package camimage

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
)

// JPEGQuality is the encoder quality for uploaded frames.
const JPEGQuality = 100

var (
	ErrRotation = errors.New("rotation must be 0, 90, 180 or 270")
	ErrPlanes   = errors.New("plane data too short")
)

// Planes is a YUV_420_888 image as handed out by the camera: a full
// resolution luma plane and two half resolution chroma planes whose samples
// may be interleaved (pixel stride 2) or planar (pixel stride 1).
type Planes struct {
	Width         int
	Height        int
	Y             []byte
	U             []byte
	V             []byte
	YRowStride    int
	UVRowStride   int
	UVPixelStride int
}

// YCbCr copies the planes into a 4:2:0 image.
func (p Planes) YCbCr() (*image.YCbCr, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", p.Width, p.Height)
	}
	yStride := p.YRowStride
	if yStride == 0 {
		yStride = p.Width
	}
	cw, ch := (p.Width+1)/2, (p.Height+1)/2
	uvPixel := p.UVPixelStride
	if uvPixel == 0 {
		uvPixel = 1
	}
	uvStride := p.UVRowStride
	if uvStride == 0 {
		uvStride = cw * uvPixel
	}

	if len(p.Y) < (p.Height-1)*yStride+p.Width {
		return nil, fmt.Errorf("luma: %w", ErrPlanes)
	}
	uvNeed := (ch-1)*uvStride + (cw-1)*uvPixel + 1
	if len(p.U) < uvNeed || len(p.V) < uvNeed {
		return nil, fmt.Errorf("chroma: %w", ErrPlanes)
	}

	img := image.NewYCbCr(image.Rect(0, 0, p.Width, p.Height), image.YCbCrSubsampleRatio420)
	for row := 0; row < p.Height; row++ {
		copy(img.Y[row*img.YStride:row*img.YStride+p.Width], p.Y[row*yStride:])
	}
	for row := 0; row < ch; row++ {
		for col := 0; col < cw; col++ {
			src := row*uvStride + col*uvPixel
			dst := row*img.CStride + col
			img.Cb[dst] = p.U[src]
			img.Cr[dst] = p.V[src]
		}
	}
	return img, nil
}

// Image is a tracking.CameraImage over converted plane data.
type Image struct {
	img    *image.YCbCr
	err    error
	closed bool
}

// NewImage converts p once; a conversion error is returned by Image().
func NewImage(p Planes) *Image {
	img, err := p.YCbCr()
	return &Image{img: img, err: err}
}

// FromYCbCr wraps an already converted image.
func FromYCbCr(img *image.YCbCr) *Image {
	return &Image{img: img}
}

func (i *Image) Image() (*image.YCbCr, error) {
	if i.closed {
		return nil, errors.New("camera image closed")
	}
	return i.img, i.err
}

func (i *Image) Close() {
	i.closed = true
}

// ToRGBA converts any image to RGBA.
func ToRGBA(img image.Image) *image.RGBA {
	return clone.AsRGBA(img)
}

// Rotate turns img clockwise by degrees, which must be a multiple of 90 in [0, 270].
func Rotate(img image.Image, degrees int) (*image.RGBA, error) {
	switch degrees {
	case 0:
		return ToRGBA(img), nil
	case 180:
		return transform.FlipV(transform.FlipH(img)), nil
	case 90, 270:
		return transform.Rotate(img, float64(degrees), &transform.RotationOptions{ResizeBounds: true}), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrRotation, degrees)
	}
}

// EncodeJPEG writes img as JPEG.
func EncodeJPEG(w io.Writer, img image.Image) error {
	if err := imgio.JPEGEncoder(JPEGQuality)(w, img); err != nil {
		return fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return nil
}
