package compose

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/arlens/flicker/internal/anchor"
	"github.com/arlens/flicker/internal/config"
	"github.com/arlens/flicker/internal/detection"
	"github.com/arlens/flicker/internal/flicker"
	"github.com/arlens/flicker/internal/render"
	"github.com/arlens/flicker/internal/settings"
	"github.com/arlens/flicker/internal/sim"
	"github.com/arlens/flicker/internal/storage/memory"
	"github.com/arlens/flicker/internal/tracking"
	"github.com/arlens/flicker/internal/ui"
	"github.com/arlens/flicker/pkg/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	centerX = sim.DefaultViewWidth / 2
	centerY = sim.DefaultViewHeight / 2
)

type fakeAnalyzer struct {
	objects  []core.DetectedObject
	err      error
	gate     chan struct{}
	rotation atomic.Int32
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, img tracking.CameraImage, rotation int) ([]core.DetectedObject, error) {
	a.rotation.Store(int32(rotation))
	if _, err := img.Image(); err != nil {
		return nil, err
	}
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.objects, a.err
}

type harness struct {
	session  *sim.Session
	rec      *render.Recorder
	snackbar *ui.Snackbar
	registry *anchor.Registry
	settings *settings.Service
	control  *detection.Controller
	analyzer *fakeAnalyzer
	journal  *memory.Backend
	comp     *Composer
	now      int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		session:  sim.New(),
		rec:      render.NewRecorder(42),
		snackbar: ui.NewSnackbar(nil, nil),
		analyzer: &fakeAnalyzer{},
		journal:  memory.New(config.MemoryConfig{}, time.Now()),
		now:      1_000_000_000,
	}
	require.NoError(t, h.session.Resume())

	clock := func() int64 { return h.now }
	h.registry = anchor.NewRegistry(
		anchor.WithClock(clock),
		anchor.WithListener(func(e core.AnchorEvent) { _ = h.journal.RecordAnchorEvent(&e) }),
	)

	var err error
	h.settings, err = settings.New(h.journal, nil)
	require.NoError(t, err)
	h.control = detection.NewController(h.analyzer, h.snackbar, detection.WithTimeout(time.Second))

	h.comp, err = New(Dependencies{
		Session:   h.session,
		Submitter: h.rec,
		Reporter:  h.snackbar,
		Taps:      ui.NewTapQueue(),
		Detection: h.control,
		Settings:  h.settings,
		Registry:  h.registry,
		Journal:   h.journal,
		Meter:     noop.Meter{},
		Clock:     clock,
	}, Config{SensorRotation: 90})
	require.NoError(t, err)

	require.NoError(t, h.comp.SurfaceCreated(sim.Assets()))
	require.NoError(t, h.comp.SurfaceChanged(sim.DefaultViewWidth, sim.DefaultViewHeight))
	return h
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, h.comp.Tick(context.Background()))
}

// tickUntil ticks until cond holds, failing after two seconds.
func (h *harness) tickUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		require.True(t, time.Now().Before(deadline), "condition not met in time")
		h.tick(t)
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) tapAndTick(t *testing.T) {
	t.Helper()
	require.True(t, h.comp.Tap(centerX, centerY))
	h.tick(t)
}

func TestNew_MissingDependency(t *testing.T) {
	_, err := New(Dependencies{}, Config{})
	assert.Error(t, err)
}

func TestTick_BeforeSurface(t *testing.T) {
	h := newHarness(t)
	comp, err := New(h.comp.deps, Config{})
	require.NoError(t, err)
	assert.ErrorIs(t, comp.Tick(context.Background()), ErrNoSurface)
}

func TestSurfaceCreated_MissingAssetIsFatal(t *testing.T) {
	h := newHarness(t)
	h.rec.Reset()

	fsys := sim.Assets().(fstest.MapFS)
	delete(fsys, string(render.MeshPawn))

	err := h.comp.SurfaceCreated(fsys)
	require.ErrorIs(t, err, ErrSetupFailed)
	st := h.snackbar.State()
	assert.Equal(t, ui.SeverityError, st.Severity)
	assert.Contains(t, st.Message, ui.MsgAssetLoadFailed)

	h.tick(t)
	assert.Empty(t, h.rec.Ops())
	assert.Zero(t, h.comp.Stats().Frames)

	require.NoError(t, h.comp.SurfaceCreated(sim.Assets()))
	h.tick(t)
	assert.NotEmpty(t, h.rec.Ops())
}

func TestSurfaceChanged(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.comp.SurfaceChanged(1080, 1920))

	w, hh := h.rec.Size(render.VirtualScene)
	assert.Equal(t, 1080, w)
	assert.Equal(t, 1920, hh)
	assert.Equal(t, 90, h.session.DisplayRotation())
}

func TestTick_BindsCameraTextureOnce(t *testing.T) {
	h := newHarness(t)
	h.tick(t)
	h.tick(t)
	assert.Equal(t, []uint32{42}, h.session.TextureNames())
}

func TestTap_PlacesManualAnchor(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)

	h.tapAndTick(t)

	require.Equal(t, 1, h.registry.ManualCount())
	live := h.registry.LiveManual()
	require.Len(t, live, 1)
	m, ok := live[0].Manual()
	require.True(t, ok)
	assert.Equal(t, 7.0, m.FrequencyHz)
	assert.Equal(t, tracking.Tracking, live[0].Anchor.TrackingState())

	events := h.journal.AnchorEvents()
	require.Len(t, events, 1)
	assert.Equal(t, core.AnchorPlaced, events[0].Type)
}

func TestTap_SeventhTapStartsNewBatch(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)

	for i := 0; i < anchor.MaxManualAnchors; i++ {
		h.tapAndTick(t)
	}
	require.Equal(t, anchor.MaxManualAnchors, h.registry.ManualCount())
	first := h.registry.LiveManual()[0]

	h.tapAndTick(t)

	require.Equal(t, 1, h.registry.ManualCount())
	m, _ := h.registry.LiveManual()[0].Manual()
	assert.Equal(t, anchor.Frequencies[0], m.FrequencyHz)
	assert.Equal(t, tracking.Stopped, first.Anchor.TrackingState())
}

func TestTap_OnePerTick(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)

	for i := 0; i < 3; i++ {
		require.True(t, h.comp.Tap(centerX, centerY))
	}
	h.tick(t)
	assert.Equal(t, 1, h.registry.ManualCount())
	h.tick(t)
	assert.Equal(t, 2, h.registry.ManualCount())
}

func TestTap_MissIgnored(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 0.05)

	require.True(t, h.comp.Tap(5, sim.DefaultViewHeight-5))
	h.tick(t)
	assert.Zero(t, h.registry.ManualCount())
}

func TestTap_IgnoredWhileNotTracking(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)
	h.session.SetTracking(tracking.Paused, tracking.FailureNone)

	h.tapAndTick(t)
	assert.Zero(t, h.registry.ManualCount())

	// The tap stays queued until tracking resumes.
	h.session.SetTracking(tracking.Tracking, tracking.FailureNone)
	h.tick(t)
	assert.Equal(t, 1, h.registry.ManualCount())
}

func TestTap_InstantPlacement(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.settings.SetInstantPlacement(true))

	h.tapAndTick(t)
	require.Equal(t, 1, h.registry.ManualCount())

	draws := h.rec.Draws(render.PassVirtualScene)
	require.NotEmpty(t, draws)
	tex, ok := draws[len(draws)-1].Params.Texture(render.UAlbedoTexture)
	require.True(t, ok)
	assert.Equal(t, render.TexturePawnAlbedoInstant, tex)
}

func TestGuidance(t *testing.T) {
	h := newHarness(t)

	h.tick(t)
	assert.Equal(t, ui.MsgSearchingPlanes, h.snackbar.State().Message)

	h.session.AddPlane(mgl32.Vec3{}, 1)
	h.tick(t)
	assert.Equal(t, ui.MsgWaitingTaps, h.snackbar.State().Message)

	h.tapAndTick(t)
	assert.False(t, h.snackbar.State().Showing)

	h.session.SetTracking(tracking.Paused, tracking.FailureInsufficientLight)
	h.tick(t)
	assert.Equal(t, tracking.FailureInsufficientLight.Message(), h.snackbar.State().Message)

	h.session.SetTracking(tracking.Paused, tracking.FailureNone)
	h.tick(t)
	assert.Equal(t, ui.MsgSearchingPlanes, h.snackbar.State().Message)
}

func TestTick_NotTrackingDrawsOnlyBackground(t *testing.T) {
	h := newHarness(t)
	h.session.SetTracking(tracking.Paused, tracking.FailureExcessiveMotion)
	h.rec.Reset()

	h.tick(t)

	draws := h.rec.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, render.PassBackground, draws[0].Pass)
	assert.Equal(t, uint64(1), h.comp.Stats().SkippedFrames)
	assert.Equal(t, tracking.Paused, h.comp.Stats().Tracking)
}

func TestTick_StalledFrameSkipsBackground(t *testing.T) {
	h := newHarness(t)
	h.session.SetStalled(true)
	h.rec.Reset()

	h.tick(t)

	assert.Empty(t, h.rec.Draws(render.PassBackground))
	assert.NotEmpty(t, h.rec.Draws(render.PassComposite))
}

func TestTick_CameraNotAvailable(t *testing.T) {
	h := newHarness(t)
	h.session.FailNextUpdate(tracking.ErrCameraNotAvailable)
	h.rec.Reset()

	h.tick(t)

	assert.Empty(t, h.rec.Ops())
	st := h.snackbar.State()
	assert.Equal(t, ui.MsgCameraNotAvailable, st.Message)
	assert.Equal(t, ui.SeverityError, st.Severity)
	assert.Equal(t, uint64(1), h.comp.Stats().SkippedFrames)
}

func TestTick_OtherUpdateErrorReturned(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")
	h.session.FailNextUpdate(boom)

	assert.ErrorIs(t, h.comp.Tick(context.Background()), boom)
}

func TestTick_DrawOrder(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)
	h.tapAndTick(t)
	h.rec.Reset()

	h.tick(t)

	var passes []render.Pass
	for _, d := range h.rec.Draws() {
		passes = append(passes, d.Pass)
	}
	assert.Equal(t, []render.Pass{
		render.PassBackground,
		render.PassPointCloud,
		render.PassPlanes,
		render.PassVirtualScene,
		render.PassFlicker,
		render.PassComposite,
	}, passes)

	// The virtual scene is cleared before the first pawn.
	ops := h.rec.Ops()
	clearAt, pawnAt := -1, -1
	for i, op := range ops {
		if op.Kind == render.OpClear && op.Target == render.VirtualScene && clearAt < 0 {
			clearAt = i
		}
		if op.Kind == render.OpDraw && op.Draw.Pass == render.PassVirtualScene && pawnAt < 0 {
			pawnAt = i
		}
	}
	assert.Less(t, clearAt, pawnAt)
	assert.Equal(t, ClearColor, ops[clearAt].Color)
}

func TestTick_PointCloudUploadOnlyOnChange(t *testing.T) {
	h := newHarness(t)
	countUploads := func() int {
		n := 0
		for _, op := range h.rec.Ops() {
			if op.Kind == render.OpUpload && op.Mesh == render.MeshPointCloud {
				n++
			}
		}
		return n
	}

	h.tick(t)
	assert.Equal(t, 0, countUploads())

	h.session.SetPoints([]float32{0, 0, 0, 1, 1, 0, 0, 1})
	h.tick(t)
	h.tick(t)
	assert.Equal(t, 1, countUploads())
	assert.Len(t, h.rec.Draws(render.PassPointCloud), 3)
}

func TestTick_FlickerPhaseAndHighlight(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)
	h.tapAndTick(t)

	h.rec.Reset()
	h.tick(t)
	draws := h.rec.Draws(render.PassFlicker)
	require.Len(t, draws, 1)
	color, _ := draws[0].Params.Vec4(render.UColor)
	assert.Equal(t, flicker.HighlightColor, color)
	assert.Equal(t, render.VirtualScene, draws[0].Target)

	// 7 Hz: OFF from 71.4ms into the period.
	h.now += int64(80 * time.Millisecond)
	h.rec.Reset()
	h.tick(t)
	assert.Empty(t, h.rec.Draws(render.PassFlicker))
	assert.Len(t, h.rec.Draws(render.PassVirtualScene), 1)
}

func TestTick_DepthUpload(t *testing.T) {
	h := newHarness(t)
	countTextures := func() int {
		n := 0
		for _, op := range h.rec.Ops() {
			if op.Kind == render.OpTexture {
				n++
			}
		}
		return n
	}

	h.tick(t)
	assert.Zero(t, countTextures())

	// Enabled but the provider has no depth yet: skipped without a message.
	require.NoError(t, h.settings.SetUseDepthForOcclusion(true))
	h.tick(t)
	assert.Zero(t, countTextures())
	assert.NotEqual(t, ui.SeverityError, h.snackbar.State().Severity)

	require.NoError(t, h.session.Configure(tracking.Config{Depth: true}))
	h.tick(t)
	assert.Equal(t, 1, countTextures())

	composite := h.rec.Draws(render.PassComposite)
	occl, _ := composite[len(composite)-1].Params.Bool(render.UUseOcclusion)
	assert.True(t, occl)
}

func TestTick_InvalidLightEstimate(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)
	h.tapAndTick(t)

	valid, _ := h.rec.Draws(render.PassVirtualScene)[0].Params.Bool(render.ULightEstimateValid)
	assert.True(t, valid)

	h.session.SetLight(sim.Light{})
	h.rec.Reset()
	h.tick(t)
	valid, ok := h.rec.Draws(render.PassVirtualScene)[0].Params.Bool(render.ULightEstimateValid)
	require.True(t, ok)
	assert.False(t, valid)
}

func TestScan_AppliesDetections(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)
	h.analyzer.objects = []core.DetectedObject{
		{Label: "cup", Confidence: 0.9, Center: core.Pixel{X: centerX, Y: centerY}},
		{Label: "sky", Confidence: 0.8, Center: core.Pixel{X: centerX, Y: -5000}},
	}

	require.NoError(t, h.comp.RequestScan())
	assert.True(t, h.snackbar.State().ScanBusy)
	assert.ErrorIs(t, h.comp.RequestScan(), detection.ErrScanInFlight)

	h.tickUntil(t, func() bool { return h.comp.Stats().Detections == 1 })

	assert.Equal(t, 1, h.registry.DetectedCount())
	d, _ := h.registry.LiveDetected()[0].Detected()
	assert.Equal(t, "cup", d.Label)
	assert.Equal(t, int32(90), h.analyzer.rotation.Load())

	st := h.snackbar.State()
	assert.False(t, st.ScanBusy)
	assert.True(t, st.ResetEnabled)
	assert.Equal(t, ui.MsgPartialDetection, st.Message)

	records := h.journal.Detections()
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Anchored)
	assert.Len(t, records[0].Objects, 2)

	h.rec.Reset()
	h.tick(t)
	labels := h.rec.Draws(render.PassLabels)
	require.Len(t, labels, 1)
	text, _ := labels[0].Params.String(render.ULabel)
	assert.Equal(t, "cup", text)
	assert.Len(t, h.rec.Draws(render.PassVirtualScene), 1)
	assert.Empty(t, h.rec.Draws(render.PassFlicker))
}

func TestScan_NoObjects(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.comp.RequestScan())
	h.tickUntil(t, func() bool { return h.comp.Stats().Detections == 1 })

	st := h.snackbar.State()
	assert.Equal(t, ui.MsgNoObjects, st.Message)
	assert.False(t, st.ScanBusy)
	assert.False(t, st.ResetEnabled)
	assert.Equal(t, detection.Idle, h.control.State())

	// Guidance on the following tick leaves the summary in place.
	h.tick(t)
	assert.Equal(t, ui.MsgNoObjects, h.snackbar.State().Message)
}

func TestScan_SummarySurvivesGuidance(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)
	h.analyzer.objects = []core.DetectedObject{
		{Label: "sky", Confidence: 0.8, Center: core.Pixel{X: centerX, Y: -5000}},
	}
	h.tick(t)
	require.Equal(t, ui.MsgWaitingTaps, h.snackbar.State().Message)

	require.NoError(t, h.comp.RequestScan())
	h.tickUntil(t, func() bool { return h.comp.Stats().Detections == 1 })
	require.Equal(t, ui.MsgPartialDetection, h.snackbar.State().Message)

	h.tick(t)
	h.tick(t)
	st := h.snackbar.State()
	assert.Equal(t, ui.MsgPartialDetection, st.Message)
	assert.Equal(t, ui.SeverityError, st.Severity)
}

func TestScan_FailureWhileNotTracking(t *testing.T) {
	h := newHarness(t)
	h.analyzer.err = errors.New("quota exceeded")
	h.analyzer.gate = make(chan struct{})

	require.NoError(t, h.comp.RequestScan())
	h.tick(t)
	require.Equal(t, detection.Analyzing, h.control.State())

	h.session.SetTracking(tracking.Paused, tracking.FailureExcessiveMotion)
	h.tick(t)
	close(h.analyzer.gate)
	require.Eventually(t, func() bool { return !h.snackbar.State().ScanBusy }, time.Second, time.Millisecond)

	// No tick has collected the failure, yet another scan can start.
	h.tick(t)
	assert.NoError(t, h.comp.RequestScan())

	h.analyzer.gate = nil
	h.analyzer.err = nil
	h.session.SetTracking(tracking.Tracking, tracking.FailureNone)
	h.tickUntil(t, func() bool { return h.comp.Stats().Detections == 2 })

	records := h.journal.Detections()
	require.Len(t, records, 2)
	assert.Equal(t, "quota exceeded", records[0].Error)
	assert.Empty(t, records[1].Error)
}

func TestScan_AnalyzerFailure(t *testing.T) {
	h := newHarness(t)
	h.analyzer.err = errors.New("quota exceeded")

	require.NoError(t, h.comp.RequestScan())
	h.tickUntil(t, func() bool { return h.comp.Stats().Detections == 1 })

	// The worker reports the failure itself, possibly after the tick consumed it.
	require.Eventually(t, func() bool {
		st := h.snackbar.State()
		return st.Message == ui.MsgDetectionFailed+"quota exceeded" && !st.ScanBusy
	}, time.Second, time.Millisecond)
	assert.Zero(t, h.registry.DetectedCount())

	records := h.journal.Detections()
	require.Len(t, records, 1)
	assert.Equal(t, "quota exceeded", records[0].Error)
}

func TestScan_NoCameraImage(t *testing.T) {
	h := newHarness(t)
	h.session.SetImageAvailable(false)

	require.NoError(t, h.comp.RequestScan())
	h.tick(t)

	st := h.snackbar.State()
	assert.Equal(t, ui.MsgNoCameraImage, st.Message)
	assert.False(t, st.ScanBusy)
	assert.Equal(t, detection.Idle, h.control.State())
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)
	h.tapAndTick(t)
	h.tapAndTick(t)
	placed := h.registry.LiveManual()

	h.comp.Reset()
	assert.False(t, h.snackbar.State().ResetEnabled)
	h.tick(t)

	assert.Zero(t, h.registry.Len())
	for _, e := range placed {
		assert.Equal(t, tracking.Stopped, e.Anchor.TrackingState())
	}

	h.comp.Reset()
	h.tick(t)
	assert.Zero(t, h.registry.Len())
}

func TestReset_AbandonsScanInFlight(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)
	h.analyzer.objects = []core.DetectedObject{
		{Label: "cup", Confidence: 0.9, Center: core.Pixel{X: centerX, Y: centerY}},
	}
	h.analyzer.gate = make(chan struct{})

	require.NoError(t, h.comp.RequestScan())
	h.tick(t)
	require.Equal(t, detection.Analyzing, h.control.State())

	h.comp.Reset()
	assert.False(t, h.snackbar.State().ScanBusy)
	assert.Equal(t, detection.Idle, h.control.State())
	close(h.analyzer.gate)

	for range 5 {
		h.tick(t)
		time.Sleep(2 * time.Millisecond)
	}
	assert.Zero(t, h.registry.DetectedCount())
	assert.Zero(t, h.comp.Stats().Detections)
	assert.Empty(t, h.journal.Detections())
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.session.AddPlane(mgl32.Vec3{}, 1)
	h.tapAndTick(t)
	h.tick(t)

	st := h.comp.Stats()
	assert.Equal(t, uint64(2), st.Frames)
	assert.Zero(t, st.SkippedFrames)
	assert.Equal(t, 1, st.LiveAnchors)
	assert.Equal(t, tracking.Tracking, st.Tracking)
	assert.Positive(t, st.LastTick)
}
