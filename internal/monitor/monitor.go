package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/arlens/flicker/internal/compose"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the influx measurement written per sample.
const Measurement = "compose"

// StatsSource reports composer counters. *compose.Composer satisfies it.
type StatsSource interface {
	Stats() compose.Stats
}

// PointWriter is the telemetry sink. *influx.Manager satisfies it.
type PointWriter interface {
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Stats      StatsSource
	Writer     PointWriter // optional
	Bucket     string
	Logger     *slog.Logger
	Interval   time.Duration
	StatusPath string // optional, rewritten every sample
}

// Status is one sample of render performance.
type Status struct {
	Time          time.Time `json:"time"`
	FPS           float64   `json:"fps"`
	TickMs        float64   `json:"tickMs"`
	Frames        uint64    `json:"frames"`
	SkippedFrames uint64    `json:"skippedFrames"`
	LiveAnchors   int       `json:"liveAnchors"`
	Detections    uint64    `json:"detections"`
	Tracking      string    `json:"tracking"`
}

// Point converts the sample to an influx point.
func (s Status) Point() *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("tracking", s.Tracking).
		AddField("fps", s.FPS).
		AddField("tick_ms", s.TickMs).
		AddField("frames", int64(s.Frames)).
		AddField("skipped_frames", int64(s.SkippedFrames)).
		AddField("live_anchors", s.LiveAnchors).
		AddField("detections", int64(s.Detections)).
		SetTime(s.Time)
}

// Service samples the composer on an interval.
type Service struct {
	deps Dependencies

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}

	prevFrames uint64
	prevTime   time.Time
}

// NewService defaults the logger and a 10s interval.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	return &Service{deps: deps}
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Sample reads the composer stats and derives the frame rate since the previous sample.
func (s *Service) Sample(now time.Time) Status {
	st := s.deps.Stats.Stats()

	s.mu.Lock()
	var fps float64
	if !s.prevTime.IsZero() && now.After(s.prevTime) && st.Frames >= s.prevFrames {
		fps = float64(st.Frames-s.prevFrames) / now.Sub(s.prevTime).Seconds()
	}
	s.prevFrames = st.Frames
	s.prevTime = now
	s.mu.Unlock()

	return Status{
		Time:          now,
		FPS:           fps,
		TickMs:        float64(st.LastTick.Microseconds()) / 1000,
		Frames:        st.Frames,
		SkippedFrames: st.SkippedFrames,
		LiveAnchors:   st.LiveAnchors,
		Detections:    st.Detections,
		Tracking:      st.Tracking.String(),
	}
}

// Record takes a sample and sends it to the sink and the status file.
func (s *Service) Record(ctx context.Context, now time.Time) (Status, error) {
	status := s.Sample(now)

	if s.deps.StatusPath != "" {
		if err := writeStatus(s.deps.StatusPath, status); err != nil {
			return status, err
		}
	}
	if s.deps.Writer != nil {
		if err := s.deps.Writer.WritePoint(ctx, s.deps.Bucket, status.Point()); err != nil {
			return status, fmt.Errorf("failed to write render point: %w", err)
		}
	}
	return status, nil
}

func writeStatus(path string, status Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return nil
}

// Start launches the sampling loop; it is a no-op while running. The loop
// ends on Stop or when ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.stopped = make(chan struct{})
	go s.run(ctx, s.stopped)
	return nil
}

func (s *Service) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	log := s.deps.Logger
	log.Debug("Render monitor started", "interval", s.deps.Interval)

	tick := time.NewTicker(s.deps.Interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			if _, err := s.Record(ctx, now); err != nil {
				log.Error("Render sample failed", "error", err)
			}
		}
	}
}

// Stop cancels the loop and waits for it to return.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.cancel, s.stopped = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}
