package compose

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	frames   metric.Int64Counter
	skipped  metric.Int64Counter
	placed   metric.Int64Counter
	detected metric.Int64Counter
}

func newMetrics(m metric.Meter) (*metrics, error) {
	var (
		out metrics
		err error
	)

	out.frames, err = m.Int64Counter(
		"compose.frames",
		metric.WithDescription("Total ticks run"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}

	out.skipped, err = m.Int64Counter(
		"compose.frames.skipped",
		metric.WithDescription("Ticks that drew no 3D content"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	out.placed, err = m.Int64Counter(
		"compose.anchors.placed",
		metric.WithDescription("Manual anchors placed by taps"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating placed counter: %w", err)
	}

	out.detected, err = m.Int64Counter(
		"compose.detections.applied",
		metric.WithDescription("Detected objects that produced an anchor"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating detections counter: %w", err)
	}

	return &out, nil
}
