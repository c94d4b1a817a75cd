package compose

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/arlens/flicker/internal/detection"
	"github.com/arlens/flicker/internal/geom"
	"github.com/arlens/flicker/internal/lighting"
	"github.com/arlens/flicker/internal/render"
	"github.com/arlens/flicker/internal/settings"
	"github.com/arlens/flicker/internal/tracking"
	"github.com/arlens/flicker/internal/ui"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// PointCloudColor is the color of feature points.
	PointCloudColor = mgl32.Vec4{31.0 / 255, 188.0 / 255, 210.0 / 255, 1}
	// PlaneColor tints detected planes.
	PlaneColor = mgl32.Vec4{1, 1, 1, 1}
	// ClearColor is the transparent clear of the virtual scene.
	ClearColor = mgl32.Vec4{0, 0, 0, 0}
)

// PointSize is the feature point size in pixels.
const PointSize float32 = 5

// Tick composes one frame. It never blocks on the network. Camera loss and
// missing depth or images degrade the tick and are not returned; the error
// is reserved for provider and submitter failures.
func (c *Composer) Tick(ctx context.Context) error {
	if c.setupErr != nil {
		return nil
	}
	if c.assets == nil {
		return ErrNoSurface
	}

	start := time.Now()
	state := tracking.Stopped
	skipped := true
	defer func() { c.recordTick(ctx, start, state, skipped) }()

	if !c.textureBound {
		c.deps.Session.SetCameraTextureNames([]uint32{c.deps.Submitter.CameraTexture()})
		c.textureBound = true
	}

	frame, err := c.deps.Session.Update()
	if err != nil {
		if errors.Is(err, tracking.ErrCameraNotAvailable) {
			c.log.Warn("camera not available during tick", "error", err)
			c.deps.Reporter.ShowError(ui.MsgCameraNotAvailable)
			return nil
		}
		return fmt.Errorf("failed to update session: %w", err)
	}

	camera := frame.Camera()
	state = camera.TrackingState()
	opts := c.deps.Settings.Snapshot()

	if c.resetRequested.Swap(false) {
		c.deps.Registry.Reset()
		c.log.Info("anchors reset")
	}

	c.updateDepth(frame, state, opts)
	c.handleTap(ctx, frame, camera, opts)

	planes := c.deps.Session.Planes()
	c.updateGuidance(camera, planes)

	if frame.Timestamp() != 0 {
		if err := c.drawBackground(opts); err != nil {
			return err
		}
	}

	if state != tracking.Tracking {
		return nil
	}
	skipped = false

	c.scratch.setCamera(camera.ViewMatrix(), camera.ProjectionMatrix(c.cfg.ZNear, c.cfg.ZFar))

	if err := c.drawPointCloud(frame); err != nil {
		return err
	}
	if err := c.drawPlanes(planes, camera.DisplayOrientedPose()); err != nil {
		return err
	}

	if c.deps.Detection.ScanRequested() {
		if err := c.deps.Detection.Begin(frame, c.cfg.SensorRotation); err != nil {
			c.log.Warn("failed to start detection", "error", err)
		}
	}
	if out, ok := c.deps.Detection.Poll(); ok {
		c.consumeDetection(ctx, frame, out)
	}

	if err := c.drawLabels(camera.Pose()); err != nil {
		return err
	}

	if err := lighting.Apply(c.light, frame.LightEstimate(), c.scratch.view, &c.scratch.sh); err != nil {
		c.log.Warn("invalid light estimate", "error", err)
	}

	if err := c.deps.Submitter.Clear(render.VirtualScene, ClearColor); err != nil {
		return fmt.Errorf("failed to clear virtual scene: %w", err)
	}
	if err := c.drawPawns(opts); err != nil {
		return err
	}
	if err := c.drawFlickers(camera.Pose()); err != nil {
		return err
	}
	return c.drawComposite(opts)
}

// updateDepth refreshes the depth texture when a depth feature is on. Depth
// that is not available yet is skipped silently.
func (c *Composer) updateDepth(frame tracking.Frame, state tracking.State, opts settings.Settings) {
	if state != tracking.Tracking || !(opts.UseDepthForOcclusion || opts.DepthColorVisualization) {
		return
	}
	depth, err := frame.AcquireDepthImage()
	if err != nil {
		if !errors.Is(err, tracking.ErrNotYetAvailable) {
			c.log.Warn("failed to acquire depth image", "error", err)
		}
		return
	}
	defer depth.Close()
	if err := c.deps.Submitter.UpdateTexture(render.TextureCameraDepth, depth.Width(), depth.Height(), depth.Data()); err != nil {
		c.log.Warn("failed to upload depth texture", "error", err)
	}
}

// handleTap consumes at most one tap and anchors it on the first accepted hit.
func (c *Composer) handleTap(ctx context.Context, frame tracking.Frame, camera tracking.Camera, opts settings.Settings) {
	if camera.TrackingState() != tracking.Tracking {
		return
	}
	tap, ok := c.deps.Taps.Poll()
	if !ok {
		return
	}

	var hits []tracking.HitResult
	if opts.InstantPlacement {
		hits = frame.HitTestInstantPlacement(tap.X, tap.Y, ApproximateDistance)
	} else {
		hits = frame.HitTest(tap.X, tap.Y)
	}
	hit, ok := tracking.FirstAccepted(hits, camera.Pose())
	if !ok {
		return
	}

	id, err := c.deps.Registry.PlaceManual(hit)
	if err != nil {
		c.log.Warn("failed to place anchor", "error", err)
		return
	}
	c.metrics.placed.Add(ctx, 1)
	c.log.Debug("anchor placed", "id", id, "x", tap.X, "y", tap.Y)
}

// updateGuidance shows the message matching the tracking situation, or hides it.
func (c *Composer) updateGuidance(camera tracking.Camera, planes []tracking.Plane) {
	state := camera.TrackingState()
	reason := camera.FailureReason()
	hasPlane := slices.ContainsFunc(planes, func(p tracking.Plane) bool {
		return p.TrackingState() == tracking.Tracking
	})

	r := c.deps.Reporter
	switch {
	case state != tracking.Tracking && reason == tracking.FailureNone:
		r.ShowMessage(ui.MsgSearchingPlanes)
	case state != tracking.Tracking:
		r.ShowMessage(reason.Message())
	case hasPlane && c.deps.Registry.ManualCount() == 0:
		r.ShowMessage(ui.MsgWaitingTaps)
	case hasPlane:
		r.Hide()
	default:
		r.ShowMessage(ui.MsgSearchingPlanes)
	}
}

// consumeDetection anchors a finished scan and reports the summary.
func (c *Composer) consumeDetection(ctx context.Context, frame tracking.Frame, out detection.Outcome) {
	c.countDetection()
	if out.Err != nil {
		c.journal(out, 0)
		return
	}

	created := c.deps.Registry.ApplyDetections(out.Objects, frame)
	c.metrics.detected.Add(ctx, int64(len(created)))
	c.journal(out, len(created))

	r := c.deps.Reporter
	r.SetResetEnabled(c.deps.Registry.DetectedCount() > 0)
	r.SetScanBusy(false)
	switch {
	case len(out.Objects) == 0:
		r.ShowError(ui.MsgNoObjects)
	case len(created) != len(out.Objects):
		r.ShowError(ui.MsgPartialDetection)
	}
	c.log.Info("detections applied", "objects", len(out.Objects), "anchored", len(created))
}

func (c *Composer) journal(out detection.Outcome, anchored int) {
	if c.deps.Journal == nil {
		return
	}
	rec := out.Record(anchored)
	if err := c.deps.Journal.RecordDetection(&rec); err != nil {
		c.log.Warn("failed to journal detection", "error", err)
	}
}

func (c *Composer) draw(op render.DrawOp) error {
	if err := c.deps.Submitter.Draw(op); err != nil {
		return fmt.Errorf("failed to draw %s: %w", op.Pass, err)
	}
	return nil
}

func (c *Composer) drawBackground(opts settings.Settings) error {
	return c.draw(render.DrawOp{
		Pass:   render.PassBackground,
		Mesh:   render.MeshBackground,
		Shader: render.ShaderBackground,
		Target: render.Screen,
		Params: render.Params{}.
			Set(render.UCameraColorTexture, render.TextureCameraColor).
			Set(render.UDepthVisualization, opts.DepthColorVisualization),
	})
}

// drawPointCloud uploads the points only when the cloud changed since the last upload.
func (c *Composer) drawPointCloud(frame tracking.Frame) error {
	cloud := frame.AcquirePointCloud()
	defer cloud.Release()

	if ts := cloud.Timestamp(); ts > c.lastCloud {
		if err := c.deps.Submitter.UpdateVertices(render.MeshPointCloud, cloud.Points()); err != nil {
			return fmt.Errorf("failed to upload point cloud: %w", err)
		}
		c.lastCloud = ts
	}
	return c.draw(render.DrawOp{
		Pass:   render.PassPointCloud,
		Mesh:   render.MeshPointCloud,
		Shader: render.ShaderPointCloud,
		Target: render.Screen,
		Params: render.Params{}.
			Set(render.UModelViewProjection, c.scratch.viewProjection).
			Set(render.UColor, PointCloudColor).
			Set(render.UPointSize, PointSize),
	})
}

// drawPlanes draws every tracked plane the camera is above, farthest first.
func (c *Composer) drawPlanes(planes []tracking.Plane, cameraPose geom.Pose) error {
	type sorted struct {
		plane    tracking.Plane
		distance float32
	}
	visible := make([]sorted, 0, len(planes))
	for _, p := range planes {
		if p.TrackingState() != tracking.Tracking {
			continue
		}
		d := geom.DistanceToPlane(p.CenterPose(), cameraPose)
		if d <= 0 {
			continue
		}
		visible = append(visible, sorted{plane: p, distance: d})
	}
	slices.SortStableFunc(visible, func(a, b sorted) int {
		switch {
		case a.distance > b.distance:
			return -1
		case a.distance < b.distance:
			return 1
		default:
			return 0
		}
	})

	for _, v := range visible {
		center := v.plane.CenterPose()
		if err := c.deps.Submitter.UpdateVertices(render.MeshPlane, v.plane.Polygon()); err != nil {
			return fmt.Errorf("failed to upload plane polygon: %w", err)
		}
		c.scratch.setPose(center)
		err := c.draw(render.DrawOp{
			Pass:   render.PassPlanes,
			Mesh:   render.MeshPlane,
			Shader: render.ShaderPlane,
			Target: render.Screen,
			Params: render.Params{}.
				Set(render.UModelView, c.scratch.modelView).
				Set(render.UModelViewProjection, c.scratch.modelViewProjection).
				Set(render.UPlaneNormal, center.TransformedAxis(1, 1)).
				Set(render.UColor, PlaneColor).
				Set(render.UAlbedoTexture, render.TextureTrigrid),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// drawLabels draws a camera-facing label over every tracked detected anchor.
func (c *Composer) drawLabels(cameraPose geom.Pose) error {
	for _, e := range c.deps.Registry.LiveDetected() {
		d, _ := e.Detected()
		err := c.draw(render.DrawOp{
			Pass:   render.PassLabels,
			Mesh:   render.MeshLabel,
			Shader: render.ShaderLabel,
			Target: render.Screen,
			Params: render.Params{}.
				Set(render.UModelViewProjection, c.scratch.viewProjection).
				Set(render.ULabelOrigin, e.Anchor.Pose().Translation).
				Set(render.UCameraPose, cameraPose.Translation).
				Set(render.ULabel, d.Label),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// drawPawns draws the virtual object at every tracked anchor into the
// virtual scene. Manual anchors on approximate hits use the instant
// placement albedo.
func (c *Composer) drawPawns(opts settings.Settings) error {
	for _, e := range c.deps.Registry.LiveTracked() {
		albedo := render.TexturePawnAlbedo
		if m, ok := e.Manual(); ok && tracking.IsApproximate(m.Trackable) {
			albedo = render.TexturePawnAlbedoInstant
		}
		c.scratch.setPose(e.Anchor.Pose())
		params := render.Params{}.
			Merge(c.light).
			Set(render.UModelView, c.scratch.modelView).
			Set(render.UModelViewProjection, c.scratch.modelViewProjection).
			Set(render.UAlbedoTexture, albedo).
			Set(render.UUseOcclusion, opts.UseDepthForOcclusion)
		err := c.draw(render.DrawOp{
			Pass:   render.PassVirtualScene,
			Mesh:   render.MeshPawn,
			Shader: render.ShaderEnvironmentHDR,
			Target: render.VirtualScene,
			Params: params,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// drawFlickers draws the marker of every manual anchor in its ON phase.
func (c *Composer) drawFlickers(cameraPose geom.Pose) error {
	markers := c.selector.Evaluate(c.deps.Registry.LiveManual(), cameraPose, c.scratch.view, c.scratch.projection, c.deps.Clock())
	for _, m := range markers {
		if !m.On {
			continue
		}
		c.scratch.setModel(m.Model(c.selector.Scale))
		err := c.draw(render.DrawOp{
			Pass:   render.PassFlicker,
			Mesh:   render.MeshFlicker,
			Shader: render.ShaderFlicker,
			Target: render.VirtualScene,
			Params: render.Params{}.
				Set(render.UModelViewProjection, c.scratch.modelViewProjection).
				Set(render.UColor, m.Color()),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Composer) drawComposite(opts settings.Settings) error {
	return c.draw(render.DrawOp{
		Pass:   render.PassComposite,
		Shader: render.ShaderComposite,
		Mesh:   render.MeshBackground,
		Target: render.Screen,
		Params: render.Params{}.
			Set(render.UVirtualSceneTexture, render.TextureVirtualScene).
			Set(render.UCameraDepthTexture, render.TextureCameraDepth).
			Set(render.UUseOcclusion, opts.UseDepthForOcclusion).
			Set(render.UZNear, c.cfg.ZNear).
			Set(render.UZFar, c.cfg.ZFar),
	})
}
