// Package compose drives one frame of the AR scene per display refresh. The
// Composer reads the tracking provider, updates the anchor registry, talks
// to the detection controller and emits the ordered draw list to a
// render.Submitter.
//
// Tick, SurfaceCreated and SurfaceChanged run on the render goroutine only.
// Tap, RequestScan and Reset may be called from any goroutine.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arlens/flicker/internal/anchor"
	"github.com/arlens/flicker/internal/detection"
	"github.com/arlens/flicker/internal/flicker"
	"github.com/arlens/flicker/internal/render"
	"github.com/arlens/flicker/internal/settings"
	"github.com/arlens/flicker/internal/tracking"
	"github.com/arlens/flicker/internal/ui"
	"github.com/arlens/flicker/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/arlens/flicker/internal/compose"

// Default clip planes and instant placement distance, in meters.
const (
	DefaultZNear float32 = 0.1
	DefaultZFar  float32 = 100

	ApproximateDistance float32 = 2.0
)

var (
	// ErrNoSurface is returned by Tick before SurfaceCreated succeeded.
	ErrNoSurface = errors.New("surface not created")
	// ErrSetupFailed marks a fatal surface setup error. Ticks no-op afterwards.
	ErrSetupFailed = errors.New("render setup failed")
)

// Journal records detection summaries. storage.Backend satisfies it.
type Journal interface {
	RecordDetection(r *core.DetectionRecord) error
}

// Config holds the composer settings.
type Config struct {
	ZNear float32
	ZFar  float32
	// SensorRotation is the clockwise rotation in degrees from the camera
	// sensor to the display, passed to the detector with every scan.
	SensorRotation int
}

// Dependencies holds every collaborator of the composer. Journal, Logger
// and Meter are optional.
type Dependencies struct {
	Session   tracking.Session
	Submitter render.Submitter
	Reporter  ui.Reporter
	Taps      *ui.TapQueue
	Detection *detection.Controller
	Settings  *settings.Service
	Registry  *anchor.Registry
	Journal   Journal
	Logger    *slog.Logger
	Meter     metric.Meter
	Clock     anchor.Clock
}

// Stats is a snapshot of the composer counters.
type Stats struct {
	Frames        uint64
	SkippedFrames uint64
	LastTick      time.Duration
	LiveAnchors   int
	Detections    uint64
	Tracking      tracking.State
}

// Composer is the per-frame scene composer.
type Composer struct {
	deps     Dependencies
	cfg      Config
	log      *slog.Logger
	selector flicker.Selector
	metrics  *metrics

	assets       *render.Assets
	setupErr     error
	textureBound bool
	lastCloud    int64
	width        int
	height       int

	scratch scratch
	light   render.Params

	resetRequested atomic.Bool

	statsMu sync.Mutex
	stats   Stats
}

// New creates a composer. SurfaceCreated must succeed before the first Tick.
func New(deps Dependencies, cfg Config) (*Composer, error) {
	if deps.Session == nil || deps.Submitter == nil || deps.Reporter == nil ||
		deps.Taps == nil || deps.Detection == nil || deps.Settings == nil || deps.Registry == nil {
		return nil, errors.New("compose: missing dependency")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Meter == nil {
		deps.Meter = otel.Meter(instrumentationName)
	}
	if deps.Clock == nil {
		deps.Clock = anchor.MonotonicNanos
	}
	if cfg.ZNear <= 0 {
		cfg.ZNear = DefaultZNear
	}
	if cfg.ZFar <= cfg.ZNear {
		cfg.ZFar = DefaultZFar
	}

	m, err := newMetrics(deps.Meter)
	if err != nil {
		return nil, err
	}

	return &Composer{
		deps:     deps,
		cfg:      cfg,
		log:      deps.Logger,
		selector: flicker.NewSelector(),
		metrics:  m,
		light:    render.Params{},
	}, nil
}

// SurfaceCreated loads every render asset. A failure is reported once and
// disables rendering until the next successful call.
func (c *Composer) SurfaceCreated(fsys fs.FS) error {
	assets, err := render.LoadAssets(fsys)
	if err != nil {
		c.setupErr = fmt.Errorf("%w: %w", ErrSetupFailed, err)
		c.assets = nil
		c.log.Error("Failed to read a required asset file", "error", err)
		c.deps.Reporter.ShowError(ui.MsgAssetLoadFailed + err.Error())
		return c.setupErr
	}
	c.assets = assets
	c.setupErr = nil
	c.textureBound = false
	c.log.Debug("surface created", "shaders", assets.Shaders())
	return nil
}

// Assets returns the assets loaded by the last successful SurfaceCreated.
func (c *Composer) Assets() *render.Assets {
	return c.assets
}

// SurfaceChanged resizes the virtual scene to the view size and tells the
// provider about the new display geometry.
func (c *Composer) SurfaceChanged(width, height int) error {
	c.width, c.height = width, height
	c.deps.Session.SetDisplayGeometry(c.cfg.SensorRotation, width, height)
	if err := c.deps.Submitter.Resize(render.VirtualScene, width, height); err != nil {
		return fmt.Errorf("failed to resize virtual scene: %w", err)
	}
	return nil
}

// SurfaceLost forgets the texture binding so the next surface rebinds it.
func (c *Composer) SurfaceLost() {
	c.textureBound = false
}

// SetSensorRotation updates the rotation passed with the next scan.
func (c *Composer) SetSensorRotation(degrees int) {
	c.cfg.SensorRotation = degrees
}

// Tap queues a tap in view pixels. It reports false when the queue is full.
func (c *Composer) Tap(x, y float32) bool {
	return c.deps.Taps.Offer(x, y)
}

// RequestScan asks for a detection on the next tick.
func (c *Composer) RequestScan() error {
	if err := c.deps.Detection.RequestScan(); err != nil {
		return err
	}
	c.deps.Reporter.Hide()
	return nil
}

// Reset clears every anchor on the next tick. A scan in flight is abandoned
// and the reset affordance is disabled right away.
func (c *Composer) Reset() {
	c.deps.Detection.Abandon()
	c.resetRequested.Store(true)
	c.deps.Reporter.SetResetEnabled(false)
	c.deps.Reporter.Hide()
}

// Stats returns a snapshot of the counters. It is safe for concurrent use.
func (c *Composer) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Composer) recordTick(ctx context.Context, start time.Time, state tracking.State, skipped bool) {
	live := len(c.deps.Registry.LiveTracked())
	c.statsMu.Lock()
	c.stats.Frames++
	if skipped {
		c.stats.SkippedFrames++
	}
	c.stats.LastTick = time.Since(start)
	c.stats.LiveAnchors = live
	c.stats.Tracking = state
	c.statsMu.Unlock()

	c.metrics.frames.Add(ctx, 1)
	if skipped {
		c.metrics.skipped.Add(ctx, 1)
	}
}

func (c *Composer) countDetection() {
	c.statsMu.Lock()
	c.stats.Detections++
	c.statsMu.Unlock()
}
