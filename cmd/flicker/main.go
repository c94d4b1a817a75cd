// Command flicker runs the scene composer headless against the simulated
// tracking provider. Commands are read from stdin, one per line; user-facing
// messages are printed to stdout.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/arlens/flicker/internal/anchor"
	"github.com/arlens/flicker/internal/compose"
	"github.com/arlens/flicker/internal/config"
	"github.com/arlens/flicker/internal/detection"
	"github.com/arlens/flicker/internal/dispatcher"
	"github.com/arlens/flicker/internal/influx"
	"github.com/arlens/flicker/internal/lifecycle"
	"github.com/arlens/flicker/internal/logging"
	"github.com/arlens/flicker/internal/monitor"
	intOtel "github.com/arlens/flicker/internal/otel"
	"github.com/arlens/flicker/internal/render"
	"github.com/arlens/flicker/internal/session"
	"github.com/arlens/flicker/internal/settings"
	"github.com/arlens/flicker/internal/sim"
	"github.com/arlens/flicker/internal/storage"
	"github.com/arlens/flicker/internal/tracking"
	"github.com/arlens/flicker/internal/ui"
	"github.com/arlens/flicker/internal/vision"
	"github.com/arlens/flicker/pkg/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Version info, set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

// Sensor rotation of the simulated camera, the usual portrait phone value.
const sensorRotation = 90

// The ui dispatcher buffer. Reporter calls beyond it block the caller.
const uiBufferSize = 64

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flicker %s (%s)\n", Version, BuildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configDir, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "flicker:", err)
		os.Exit(1)
	}
}

// driver holds the wired services of one run.
type driver struct {
	log      *slog.Logger
	out      io.Writer
	scene    *sim.Session
	helper   *session.Helper
	machine  *lifecycle.Machine
	composer *compose.Composer
	recorder *render.Recorder
	settings *settings.Service
}

func run(ctx context.Context, configDir string, in io.Reader, out io.Writer) error {
	sessionStart := time.Now()

	// Dynamic log attributes come from services created further down.
	var (
		machineRef  atomic.Pointer[lifecycle.Machine]
		composerRef atomic.Pointer[compose.Composer]
	)
	slogManager := logging.NewSlogManager(logging.WithContext(func() []slog.Attr {
		var attrs []slog.Attr
		if m := machineRef.Load(); m != nil {
			attrs = append(attrs, slog.String("lifecycle", m.State().String()))
		}
		if c := composerRef.Load(); c != nil {
			attrs = append(attrs, slog.String("tracking", c.Stats().Tracking.String()))
		}
		return attrs
	}))
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	logFile, logPath, err := logging.OpenLogFile(logsDir, sessionStart)
	if err != nil {
		return err
	}
	defer logFile.Close()

	otelCfg := config.GetOTelConfig()
	provider, err := intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
		provider, _ = intOtel.New(intOtel.Config{})
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := slogManager.Flush(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "flicker: flushing logs:", err)
		}
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "flicker: otel shutdown:", err)
		}
	}()

	var logProvider *sdklog.LoggerProvider
	if provider.Enabled() {
		logProvider = provider.LoggerProvider()
	}
	level := viper.GetString("logLevel")
	slogManager.Setup(logFile, level, logProvider)
	logger = slogManager.Logger()
	logger.Info("Logging to file", "path", logPath, "version", Version, "build", BuildDate)

	zlog := logging.NewZerolog(logFile, level)

	// storage
	backend, err := storage.NewBackend(config.GetStorageConfig(), storage.Dependencies{
		Logger:   slogManager.Component("storage"),
		DBLogger: zlog,
		Start:    sessionStart,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage backend", "error", err)
		}
		if exp, ok := backend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
			fmt.Fprintln(out, "journal:", exp.ExportedFilePath())
		}
	}()

	prefs, err := settings.New(backend, slogManager.Component("settings"))
	if err != nil {
		return err
	}

	// ui thread
	events, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer events.Close()

	snackbar := ui.NewSnackbar(slogManager.Component("ui"), func(st ui.State) {
		printUI(out, st)
	})
	reporter := ui.NewMarshaled(events, snackbar, uiBufferSize)

	// detection
	visionCfg := config.GetVisionConfig()
	if visionCfg.APIKey == "" {
		logger.Warn("vision.apiKey is empty, scans will fail")
	}
	detector := vision.NewDetector(
		vision.New(visionCfg.Endpoint, visionCfg.APIKey, visionCfg.Timeout),
		slogManager.Component("vision"),
	)
	controller := detection.NewController(detector, reporter,
		detection.WithTimeout(visionCfg.Timeout),
		detection.WithLogger(slogManager.Component("detection")),
	)

	// anchors
	registryLog := slogManager.Component("anchor")
	registry := anchor.NewRegistry(anchor.WithListener(func(e core.AnchorEvent) {
		if err := backend.RecordAnchorEvent(&e); err != nil {
			registryLog.Warn("Failed to journal anchor event", "error", err, "anchor", e.AnchorID)
		}
	}))

	// tracking
	scene := sim.New(sim.WithDepthSupport(true))
	scene.AddPlane(mgl32.Vec3{}, 1)
	helper := session.New(func(bool) (tracking.Session, error) {
		return scene, nil
	}, prefs, reporter, slogManager.Component("session"))

	renderCfg := config.GetRenderConfig()
	recorder := render.NewRecorder(1)
	composer, err := compose.New(compose.Dependencies{
		Session:   scene,
		Submitter: recorder,
		Reporter:  reporter,
		Taps:      ui.NewTapQueue(),
		Detection: controller,
		Settings:  prefs,
		Registry:  registry,
		Journal:   backend,
		Logger:    slogManager.Component("compose"),
		Meter:     provider.Meter("github.com/arlens/flicker/internal/compose"),
	}, compose.Config{
		ZNear:          renderCfg.ZNear,
		ZFar:           renderCfg.ZFar,
		SensorRotation: sensorRotation,
	})
	if err != nil {
		return err
	}
	composerRef.Store(composer)

	assets := assetFS(renderCfg.AssetsDir)
	machine := lifecycle.New(slogManager.Component("lifecycle"),
		helper,
		lifecycle.Funcs{
			SurfaceCreated: func() error { return composer.SurfaceCreated(assets) },
			SurfaceChanged: composer.SurfaceChanged,
			SurfaceLost:    composer.SurfaceLost,
			Destroy:        controller.Abandon,
		},
	)
	machineRef.Store(machine)

	// telemetry
	mon := startMonitor(ctx, composer, zlog, slogManager.Component("monitor"), logsDir, sessionStart)
	defer mon()

	d := &driver{
		log:      logger,
		out:      out,
		scene:    scene,
		helper:   helper,
		machine:  machine,
		composer: composer,
		recorder: recorder,
		settings: prefs,
	}
	return d.loop(ctx, in, renderCfg.TickRate)
}

// loop starts the host, then ticks the composer and applies commands until
// quit, end of input or cancellation.
func (d *driver) loop(ctx context.Context, in io.Reader, tickRate int) error {
	if err := d.machine.SurfaceChanged(sim.DefaultViewWidth, sim.DefaultViewHeight); err != nil {
		return err
	}
	if err := d.machine.Resume(); err != nil {
		return err
	}
	defer func() {
		if err := d.machine.Destroy(); err != nil {
			d.log.Error("Failed to destroy", "error", err)
		}
	}()
	if err := d.machine.SurfaceCreated(); err != nil {
		return err
	}

	if d.scene.DepthSupported() {
		if show, err := d.settings.ShouldShowDepthEnableDialog(); err != nil {
			d.log.Warn("Failed to read depth dialog flag", "error", err)
		} else if show {
			fmt.Fprintln(d.out, "This device supports depth. Use 'depth on' to occlude virtual objects.")
		}
	}
	fmt.Fprintln(d.out, usage)

	if tickRate <= 0 {
		tickRate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	lines := readLines(in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := d.apply(line)
			if errors.Is(err, errEmptyCommand) {
				continue
			}
			if err != nil {
				fmt.Fprintln(d.out, "error:", err)
			}
			if quit {
				return nil
			}
		case <-ticker.C:
			// The recorder only keeps the latest tick.
			d.recorder.Reset()
			if err := d.composer.Tick(ctx); err != nil {
				d.log.Error("Tick failed", "error", err)
			}
		}
	}
}

// apply runs one command line. It reports true for quit.
func (d *driver) apply(line string) (bool, error) {
	cmd, err := parseCommand(line)
	if err != nil {
		return false, err
	}

	switch cmd.kind {
	case cmdTap:
		if !d.composer.Tap(cmd.x, cmd.y) {
			return false, errors.New("tap queue full")
		}
	case cmdScan:
		return false, d.composer.RequestScan()
	case cmdReset:
		d.composer.Reset()
	case cmdDepth:
		return false, d.settings.SetUseDepthForOcclusion(cmd.on)
	case cmdVisualize:
		d.settings.SetDepthColorVisualization(cmd.on)
	case cmdInstant:
		if err := d.settings.SetInstantPlacement(cmd.on); err != nil {
			return false, err
		}
		return false, d.helper.Reconfigure()
	case cmdPlane:
		d.scene.AddPlane(mgl32.Vec3{cmd.x, cmd.y, cmd.z}, cmd.size)
	case cmdTrack:
		if cmd.on {
			d.scene.SetTracking(tracking.Tracking, tracking.FailureNone)
		} else {
			d.scene.SetTracking(tracking.Paused, tracking.FailureInsufficientFeatures)
		}
	case cmdStats:
		printStats(d.out, d.composer.Stats(), len(d.recorder.Draws()))
	case cmdQuit:
		return true, nil
	}
	return false, nil
}

// readLines delivers input lines until EOF, then closes the channel.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// assetFS returns the asset directory, or the built-in placeholders when none is configured.
func assetFS(dir string) fs.FS {
	if dir == "" {
		return sim.Assets()
	}
	return os.DirFS(dir)
}

// startMonitor starts render telemetry and returns its stop function. Influx
// is optional; without it samples only go to the status file.
func startMonitor(ctx context.Context, composer *compose.Composer, zlog zerolog.Logger, log *slog.Logger, logsDir string, start time.Time) func() {
	influxCfg := config.GetInfluxConfig()
	deps := monitor.Dependencies{
		Stats:      composer,
		Bucket:     influxCfg.Bucket,
		Logger:     log,
		Interval:   viper.GetDuration("monitor.interval"),
		StatusPath: filepath.Join(logsDir, "status.json"),
	}

	backup := filepath.Join(logsDir, fmt.Sprintf("influx_backup_%s.log.gz", start.Format("20060102_150405")))
	manager := influx.NewManager(influxCfg, zlog, backup)
	switch err := manager.Connect(ctx); {
	case errors.Is(err, influx.ErrDisabled):
		manager = nil
	case err != nil:
		log.Error("Failed to connect to InfluxDB", "error", err)
		manager = nil
	default:
		deps.Writer = manager
	}

	svc := monitor.NewService(deps)
	if err := svc.Start(ctx); err != nil {
		log.Error("Failed to start monitor", "error", err)
	}
	return func() {
		svc.Stop()
		if manager != nil {
			if err := manager.Close(); err != nil {
				log.Error("Failed to close InfluxDB manager", "error", err)
			}
		}
	}
}

func printUI(out io.Writer, st ui.State) {
	switch {
	case st.Showing && st.Severity == ui.SeverityError:
		fmt.Fprintf(out, "[error] %s\n", st.Message)
	case st.Showing:
		fmt.Fprintf(out, "[info] %s\n", st.Message)
	}
	fmt.Fprintf(out, "[ui] scan busy=%t reset enabled=%t\n", st.ScanBusy, st.ResetEnabled)
}

func printStats(out io.Writer, s compose.Stats, draws int) {
	fmt.Fprintf(out, "frames=%d skipped=%d last_tick=%s draws=%d anchors=%d detections=%d tracking=%s\n",
		s.Frames, s.SkippedFrames, s.LastTick, draws, s.LiveAnchors, s.Detections, s.Tracking)
}
