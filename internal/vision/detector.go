package vision

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/arlens/flicker/internal/camimage"
	"github.com/arlens/flicker/internal/tracking"
	"github.com/arlens/flicker/pkg/core"
)

// Annotator localizes objects in a JPEG. *Client satisfies it.
type Annotator interface {
	Annotate(ctx context.Context, jpeg []byte) ([]LocalizedObject, error)
}

// Detector is the cloud-backed detection.Analyzer.
type Detector struct {
	annotator Annotator
	log       *slog.Logger
}

// NewDetector creates a detector over an annotator.
func NewDetector(a Annotator, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{annotator: a, log: log}
}

// Analyze converts the camera image, rotates it to display orientation,
// uploads it and maps every object's center back into sensor pixels.
func (d *Detector) Analyze(ctx context.Context, img tracking.CameraImage, rotation int) ([]core.DetectedObject, error) {
	if rotation%90 != 0 || rotation < 0 || rotation > 270 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRotation, rotation)
	}

	ycbcr, err := img.Image()
	if err != nil {
		return nil, fmt.Errorf("failed to read camera image: %w", err)
	}
	rotated, err := camimage.Rotate(ycbcr, rotation)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := camimage.EncodeJPEG(&buf, rotated); err != nil {
		return nil, err
	}

	annotations, err := d.annotator.Annotate(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}

	w, h := rotated.Bounds().Dx(), rotated.Bounds().Dy()
	objects := make([]core.DetectedObject, 0, len(annotations))
	for _, a := range annotations {
		center := ToAbsolute(Center(a.BoundingPoly.NormalizedVertices), w, h)
		px, err := RotateBack(center, w, h, rotation)
		if err != nil {
			return nil, err
		}
		objects = append(objects, core.DetectedObject{Confidence: a.Score, Label: a.Name, Center: px})
	}
	d.log.Debug("Objects detected", "count", len(objects), "rotation", rotation, "width", w, "height", h)
	return objects, nil
}
