// Command flickerapp is the golang.org/x/mobile host of the scene composer.
// Lifecycle and size events drive the lifecycle machine, paint events tick
// the composer and touches become taps. A second finger, or the S key on
// desktop, requests a scan; R resets.
//
// The tracking provider is the simulated session until a platform binding
// is wired in.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/arlens/flicker/internal/anchor"
	"github.com/arlens/flicker/internal/compose"
	"github.com/arlens/flicker/internal/config"
	"github.com/arlens/flicker/internal/detection"
	"github.com/arlens/flicker/internal/dispatcher"
	"github.com/arlens/flicker/internal/glrender"
	"github.com/arlens/flicker/internal/lifecycle"
	"github.com/arlens/flicker/internal/logging"
	"github.com/arlens/flicker/internal/render"
	"github.com/arlens/flicker/internal/session"
	"github.com/arlens/flicker/internal/settings"
	"github.com/arlens/flicker/internal/sim"
	"github.com/arlens/flicker/internal/storage/memory"
	"github.com/arlens/flicker/internal/tracking"
	"github.com/arlens/flicker/internal/ui"
	"github.com/arlens/flicker/internal/vision"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/viper"
	"golang.org/x/mobile/app"
	mobilelifecycle "golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"
	"golang.org/x/mobile/event/touch"
	"golang.org/x/mobile/gl"
)

const sensorRotation = 90

// host is everything the event loop talks to.
type host struct {
	log       *slog.Logger
	machine   *lifecycle.Machine
	composer  *compose.Composer
	submitter *glrender.Submitter
	events    *dispatcher.Dispatcher
	glctx     gl.Context
}

func main() {
	app.Main(func(a app.App) {
		h, err := newHost()
		if err != nil {
			slog.Error("Failed to start", "error", err)
			return
		}
		defer h.events.Close()

		for e := range a.Events() {
			switch e := a.Filter(e).(type) {
			case mobilelifecycle.Event:
				crossing := e.Crosses(mobilelifecycle.StageVisible)
				if crossing == mobilelifecycle.CrossOn {
					h.glctx, _ = e.DrawContext.(gl.Context)
					if h.glctx != nil {
						h.submitter.Attach(h.glctx)
					}
				}
				if err := h.machine.HandleLifecycle(e); err != nil {
					h.log.Error("Lifecycle event failed", "from", e.From, "to", e.To, "error", err)
				}
				switch crossing {
				case mobilelifecycle.CrossOn:
					a.Send(paint.Event{})
				case mobilelifecycle.CrossOff:
					h.submitter.Release()
					h.glctx = nil
				}
			case size.Event:
				if err := h.machine.HandleSize(e); err != nil {
					h.log.Error("Size event failed", "error", err)
				}
			case paint.Event:
				if h.glctx == nil || e.External {
					continue
				}
				h.submitter.ResetStats()
				if err := h.composer.Tick(context.Background()); err != nil {
					h.log.Error("Tick failed", "error", err)
				}
				a.Publish()
				a.Send(paint.Event{})
			case touch.Event:
				h.touch(e)
			case key.Event:
				h.key(e)
			}
		}
	})
}

func newHost() (*host, error) {
	start := time.Now()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := config.Load("."); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	}
	slogManager.Setup(nil, viper.GetString("logLevel"), nil)
	logger = slogManager.Logger()

	backend := memory.New(config.MemoryConfig{}, start)
	prefs, err := settings.New(backend, slogManager.Component("settings"))
	if err != nil {
		return nil, err
	}

	events, err := dispatcher.New(logging.NewDispatcherLogger(logging.NewZerolog(os.Stdout, viper.GetString("logLevel"))))
	if err != nil {
		return nil, err
	}
	uiLog := slogManager.Component("ui")
	reporter := ui.NewMarshaled(events, ui.NewSnackbar(uiLog, func(st ui.State) {
		if st.Showing {
			uiLog.Info("snackbar", "message", st.Message, "error", st.Severity == ui.SeverityError)
		}
	}), 64)

	visionCfg := config.GetVisionConfig()
	controller := detection.NewController(
		vision.NewDetector(vision.New(visionCfg.Endpoint, visionCfg.APIKey, visionCfg.Timeout), slogManager.Component("vision")),
		reporter,
		detection.WithTimeout(visionCfg.Timeout),
		detection.WithLogger(slogManager.Component("detection")),
	)

	scene := sim.New(sim.WithDepthSupport(true))
	scene.AddPlane(mgl32.Vec3{}, 1)
	helper := session.New(func(bool) (tracking.Session, error) {
		return scene, nil
	}, prefs, reporter, slogManager.Component("session"))

	submitter := glrender.New(slogManager.Component("gl"))
	renderCfg := config.GetRenderConfig()
	composer, err := compose.New(compose.Dependencies{
		Session:   scene,
		Submitter: submitter,
		Reporter:  reporter,
		Taps:      ui.NewTapQueue(),
		Detection: controller,
		Settings:  prefs,
		Registry:  anchor.NewRegistry(),
		Journal:   backend,
		Logger:    slogManager.Component("compose"),
	}, compose.Config{ZNear: renderCfg.ZNear, ZFar: renderCfg.ZFar, SensorRotation: sensorRotation})
	if err != nil {
		return nil, err
	}

	machine := lifecycle.New(slogManager.Component("lifecycle"),
		helper,
		lifecycle.Funcs{
			SurfaceCreated: func() error {
				if err := composer.SurfaceCreated(mobileAssets{}); err != nil {
					return err
				}
				return submitter.Compile(composer.Assets())
			},
			SurfaceChanged: func(w, h int) error {
				if err := submitter.Resize(render.Screen, w, h); err != nil {
					return err
				}
				return composer.SurfaceChanged(w, h)
			},
			SurfaceLost: composer.SurfaceLost,
			Destroy:     controller.Abandon,
		},
	)

	return &host{
		log:       logger,
		machine:   machine,
		composer:  composer,
		submitter: submitter,
		events:    events,
	}, nil
}

func (h *host) touch(e touch.Event) {
	if e.Type != touch.TypeBegin {
		return
	}
	if e.Sequence > 0 {
		h.scan()
		return
	}
	if !h.composer.Tap(e.X, e.Y) {
		h.log.Debug("tap dropped, queue full")
	}
}

func (h *host) key(e key.Event) {
	if e.Direction != key.DirPress {
		return
	}
	switch e.Code {
	case key.CodeS:
		h.scan()
	case key.CodeR:
		h.composer.Reset()
	}
}

func (h *host) scan() {
	if err := h.composer.RequestScan(); err != nil {
		h.log.Info("scan not started", "error", err)
	}
}
