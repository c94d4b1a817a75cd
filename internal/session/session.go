// Package session owns the tracking session across the host lifecycle. It
// creates the session lazily on the first resume, configures it before every
// resume and releases it on destroy.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arlens/flicker/internal/settings"
	"github.com/arlens/flicker/internal/tracking"
	"github.com/arlens/flicker/internal/ui"
)

// ErrNoSession is returned by Reconfigure before a session exists.
var ErrNoSession = errors.New("no tracking session")

// Factory creates a tracking session. installRequested is true once the
// factory has asked for the tracking services to be installed; the factory
// must not ask again. Returning tracking.ErrInstallRequired defers creation to
// the next resume.
type Factory func(installRequested bool) (tracking.Session, error)

// Helper creates, configures, pauses and closes the tracking session. It
// implements lifecycle.Hooks.
type Helper struct {
	factory  Factory
	settings *settings.Service
	reporter ui.Reporter
	log      *slog.Logger

	mu               sync.Mutex
	session          tracking.Session
	resumed          bool
	installRequested bool
}

// New creates a helper. No session exists until the first OnResume.
func New(factory Factory, s *settings.Service, reporter ui.Reporter, log *slog.Logger) *Helper {
	if log == nil {
		log = slog.Default()
	}
	return &Helper{
		factory:  factory,
		settings: s,
		reporter: reporter,
		log:      log,
	}
}

// Session returns the current session, nil before a session was created.
func (h *Helper) Session() tracking.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// Resumed reports whether the session is running.
func (h *Helper) Resumed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resumed
}

// OnResume creates the session when needed, configures it and resumes it.
// Failures are shown to the user and returned.
func (h *Helper) OnResume() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session == nil {
		sess, err := h.factory(h.installRequested)
		switch {
		case errors.Is(err, tracking.ErrInstallRequired):
			h.installRequested = true
			h.log.Info("tracking services install requested, waiting for next resume")
			return nil
		case err != nil:
			return h.fail("create", err)
		}
		h.session = sess
		h.log.Info("tracking session created")
	}

	if err := h.session.Configure(h.config(h.session)); err != nil {
		return h.fail("configure", err)
	}
	if err := h.session.Resume(); err != nil {
		return h.fail("resume", err)
	}
	h.resumed = true
	return nil
}

// OnPause pauses a running session.
func (h *Helper) OnPause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil || !h.resumed {
		return
	}
	h.session.Pause()
	h.resumed = false
}

// OnDestroy closes the session. A later OnResume creates a new one.
func (h *Helper) OnDestroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return
	}
	h.session.Close()
	h.session = nil
	h.resumed = false
	h.log.Info("tracking session closed")
}

// Reconfigure applies the current settings to a live session, used after a
// toggle changed.
func (h *Helper) Reconfigure() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return ErrNoSession
	}
	if err := h.session.Configure(h.config(h.session)); err != nil {
		return h.fail("configure", err)
	}
	return nil
}

// config builds the provider configuration. Depth is on whenever the device
// supports it; occlusion and visualization are decided per tick.
func (h *Helper) config(sess tracking.Session) tracking.Config {
	return tracking.Config{
		EnvironmentalHDR: true,
		Depth:            sess.DepthSupported(),
		InstantPlacement: h.settings.InstantPlacementEnabled(),
	}
}

func (h *Helper) fail(op string, err error) error {
	h.log.Error("tracking session failure", "op", op, "error", err)
	h.reporter.ShowError(tracking.UserMessage(err))
	return fmt.Errorf("session %s: %w", op, err)
}
