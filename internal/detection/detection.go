// Package detection runs cloud object detection off the render goroutine.
//
// A Controller is single-flight: Idle → ImageRequested → Analyzing →
// Completed | Failed → Idle. The render goroutine starts requests with Begin
// and collects results with Poll; the worker goroutine only ever writes the
// single-slot mailbox and the UI reporter. A Failed controller accepts a new
// request before its outcome is polled, since the failure was already
// reported to the user.
package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arlens/flicker/internal/tracking"
	"github.com/arlens/flicker/internal/ui"
	"github.com/arlens/flicker/pkg/core"
)

var (
	// ErrScanInFlight is returned when a scan is requested while another is running.
	ErrScanInFlight = errors.New("scan already in flight")
	// ErrNotRequested is returned by Begin when no scan was requested.
	ErrNotRequested = errors.New("no scan requested")
	// ErrNoCameraImage is returned when the frame has no camera image to analyze.
	ErrNoCameraImage = errors.New("no camera image available for detection")
)

// DefaultTimeout bounds a single cloud call.
const DefaultTimeout = 30 * time.Second

// State of the controller.
type State int

const (
	Idle State = iota
	ImageRequested
	Analyzing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ImageRequested:
		return "image_requested"
	case Analyzing:
		return "analyzing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Analyzer finds objects in a camera image. rotationDegrees is the clockwise
// rotation from sensor to display orientation.
type Analyzer interface {
	Analyze(ctx context.Context, img tracking.CameraImage, rotationDegrees int) ([]core.DetectedObject, error)
}

// ImageSource provides the camera image of the current frame.
type ImageSource interface {
	AcquireCameraImage() (tracking.CameraImage, error)
}

// Outcome is the result of one request.
type Outcome struct {
	Seq       uint64
	Objects   []core.DetectedObject
	Err       error
	Requested time.Time
	Finished  time.Time
}

// Record converts the outcome to a journal entry. anchored is the number of
// objects that produced an anchor.
func (o Outcome) Record(anchored int) core.DetectionRecord {
	r := core.DetectionRecord{
		Requested: o.Requested,
		Finished:  o.Finished,
		Objects:   o.Objects,
		Anchored:  anchored,
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout overrides DefaultTimeout. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller coordinates detection requests.
type Controller struct {
	analyzer Analyzer
	reporter ui.Reporter
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	seq       uint64
	requested time.Time
	cancel    context.CancelFunc
	mailbox   chan Outcome
}

// NewController creates an idle controller. reporter must be safe to call
// from the worker goroutine; ui.Marshaled is.
func NewController(analyzer Analyzer, reporter ui.Reporter, opts ...Option) *Controller {
	c := &Controller{
		analyzer: analyzer,
		reporter: reporter,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
		mailbox:  make(chan Outcome, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestScan asks for a scan on the next tick. Only one scan runs at a time.
func (c *Controller) RequestScan() error {
	c.mu.Lock()
	if c.state != Idle && c.state != Failed {
		c.mu.Unlock()
		return ErrScanInFlight
	}
	c.state = ImageRequested
	c.requested = time.Now()
	c.mu.Unlock()

	c.reporter.SetScanBusy(true)
	return nil
}

// ScanRequested reports whether Begin should run this tick.
func (c *Controller) ScanRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == ImageRequested
}

// Begin acquires the camera image and starts the analysis on a worker
// goroutine. It never blocks on the network.
func (c *Controller) Begin(src ImageSource, rotation int) error {
	c.mu.Lock()
	if c.state != ImageRequested {
		c.mu.Unlock()
		return ErrNotRequested
	}

	img, err := src.AcquireCameraImage()
	if err != nil {
		c.state = Idle
		c.mu.Unlock()

		c.reporter.SetScanBusy(false)
		c.reporter.ShowError(ui.MsgNoCameraImage)
		if errors.Is(err, tracking.ErrNotYetAvailable) {
			return ErrNoCameraImage
		}
		return fmt.Errorf("%w: %w", ErrNoCameraImage, err)
	}

	c.seq++
	seq := c.seq
	requested := c.requested
	ctx, cancel := c.context()
	c.cancel = cancel
	c.state = Analyzing
	c.mu.Unlock()

	c.logger.Debug("detection started", "seq", seq, "rotation", rotation)
	go c.run(ctx, cancel, seq, requested, img, rotation)
	return nil
}

func (c *Controller) context() (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(context.Background(), c.timeout)
	}
	return context.WithCancel(context.Background())
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, seq uint64, requested time.Time, img tracking.CameraImage, rotation int) {
	defer cancel()

	objects, err := c.analyzer.Analyze(ctx, img, rotation)
	img.Close()

	out := Outcome{Seq: seq, Requested: requested, Finished: time.Now()}
	if err != nil {
		out.Err = err
	} else {
		out.Objects = objects
	}

	c.mu.Lock()
	if seq != c.seq || c.state != Analyzing {
		c.mu.Unlock()
		c.logger.Debug("discarding stale detection result", "seq", seq)
		return
	}
	if err != nil {
		c.state = Failed
	} else {
		c.state = Completed
	}
	c.cancel = nil
	// An unpolled outcome can only be an earlier failure. Keep the newest.
	select {
	case old := <-c.mailbox:
		c.logger.Warn("dropping unpolled detection outcome", "seq", old.Seq)
	default:
	}
	c.mailbox <- out
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("detection failed", "seq", seq, "error", err)
		c.reporter.SetScanBusy(false)
		c.reporter.ShowError(ui.MsgDetectionFailed + err.Error())
		return
	}
	c.logger.Info("detection completed", "seq", seq, "objects", len(objects), "duration", out.Finished.Sub(requested))
}

// Poll returns the finished outcome, at most once per request. It never blocks.
// A failed outcome may arrive after a newer request has started.
func (c *Controller) Poll() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case out := <-c.mailbox:
		if out.Seq == c.seq && (c.state == Completed || c.state == Failed) {
			c.state = Idle
		}
		return out, true
	default:
		return Outcome{}, false
	}
}

// Abandon cancels the current request and forgets any pending result. The
// controller returns to Idle.
func (c *Controller) Abandon() {
	c.mu.Lock()
	wasBusy := c.state != Idle && c.state != Failed
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
	c.state = Idle
	select {
	case <-c.mailbox:
	default:
	}
	c.mu.Unlock()

	if wasBusy {
		c.reporter.SetScanBusy(false)
	}
}
