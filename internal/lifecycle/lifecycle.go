// Package lifecycle tracks the host's lifecycle and drawing surface as an
// explicit state machine and forwards every transition to registered hooks.
//
// The host state moves Created -> Resumed <-> Paused -> Destroyed. The surface
// sub-state is independent: a surface can be created, resized and lost while
// the host is resumed or paused.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/size"
)

// ErrInvalidTransition is returned when an event is not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// State is the host state.
type State int

const (
	Created State = iota
	Resumed
	Paused
	Destroyed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Resumed:
		return "resumed"
	case Paused:
		return "paused"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Surface is the drawing surface sub-state.
type Surface int

const (
	SurfaceNone Surface = iota
	SurfaceReady
)

func (s Surface) String() string {
	if s == SurfaceReady {
		return "ready"
	}
	return "none"
}

// Hooks receive host transitions. Resume hooks run in registration order,
// pause and destroy hooks in reverse order.
type Hooks interface {
	OnResume() error
	OnPause()
	OnDestroy()
}

// SurfaceHooks is implemented by hooks that also care about the surface.
type SurfaceHooks interface {
	OnSurfaceCreated() error
	OnSurfaceChanged(width, height int) error
	OnSurfaceLost()
}

// Funcs adapts plain functions to Hooks and SurfaceHooks. Nil fields are skipped.
type Funcs struct {
	Resume         func() error
	Pause          func()
	Destroy        func()
	SurfaceCreated func() error
	SurfaceChanged func(width, height int) error
	SurfaceLost    func()
}

func (f Funcs) OnResume() error {
	if f.Resume == nil {
		return nil
	}
	return f.Resume()
}

func (f Funcs) OnPause() {
	if f.Pause != nil {
		f.Pause()
	}
}

func (f Funcs) OnDestroy() {
	if f.Destroy != nil {
		f.Destroy()
	}
}

func (f Funcs) OnSurfaceCreated() error {
	if f.SurfaceCreated == nil {
		return nil
	}
	return f.SurfaceCreated()
}

func (f Funcs) OnSurfaceChanged(width, height int) error {
	if f.SurfaceChanged == nil {
		return nil
	}
	return f.SurfaceChanged(width, height)
}

func (f Funcs) OnSurfaceLost() {
	if f.SurfaceLost != nil {
		f.SurfaceLost()
	}
}

// Machine is the lifecycle state machine. Hooks run with the machine locked
// and must not call back into it, except for State and Surface which never
// block.
type Machine struct {
	mu      sync.Mutex
	state   State
	surface Surface
	width   int
	height  int
	hooks   []Hooks
	log     *slog.Logger

	publishedState   atomic.Int32
	publishedSurface atomic.Int32
}

// New creates a machine in the Created state.
func New(log *slog.Logger, hooks ...Hooks) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		hooks: hooks,
		log:   log,
	}
}

// Register appends hooks. It must be called before the first transition.
func (m *Machine) Register(h ...Hooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h...)
}

// State returns the host state.
func (m *Machine) State() State {
	return State(m.publishedState.Load())
}

// Surface returns the surface sub-state.
func (m *Machine) Surface() Surface {
	return Surface(m.publishedSurface.Load())
}

// Size returns the last surface size, zero before the first size event.
func (m *Machine) Size() (width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width, m.height
}

// Resume enters Resumed from Created or Paused. The host is resumed even when
// a hook fails; the hook errors are returned joined.
func (m *Machine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Created && m.state != Paused {
		return m.invalid("resume")
	}
	m.transition(Resumed)

	var errs []error
	for _, h := range m.hooks {
		if err := h.OnResume(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pause enters Paused from Resumed.
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Resumed {
		return m.invalid("pause")
	}
	m.pause()
	return nil
}

// Destroy enters Destroyed, pausing first when resumed and losing the surface
// when one is ready.
func (m *Machine) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Destroyed {
		return m.invalid("destroy")
	}
	if m.state == Resumed {
		m.pause()
	}
	if m.surface == SurfaceReady {
		m.loseSurface()
	}
	m.transition(Destroyed)
	for i := len(m.hooks) - 1; i >= 0; i-- {
		m.hooks[i].OnDestroy()
	}
	return nil
}

// SurfaceCreated marks the surface ready. When a size is already known the
// change hooks run right after the create hooks.
func (m *Machine) SurfaceCreated() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Destroyed || m.surface == SurfaceReady {
		return m.invalid("surface created")
	}
	m.setSurface(SurfaceReady)
	m.log.Debug("surface ready", "state", m.state)

	var errs []error
	for _, h := range m.hooks {
		if sh, ok := h.(SurfaceHooks); ok {
			if err := sh.OnSurfaceCreated(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if m.width > 0 && m.height > 0 {
		return m.surfaceChanged()
	}
	return nil
}

// SurfaceChanged records the surface size and runs the change hooks. Before
// the surface is ready the size is kept for SurfaceCreated.
func (m *Machine) SurfaceChanged(width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Destroyed {
		return m.invalid("surface changed")
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", ErrInvalidTransition, width, height)
	}
	m.width, m.height = width, height
	if m.surface != SurfaceReady {
		return nil
	}
	return m.surfaceChanged()
}

// SurfaceLost drops the surface.
func (m *Machine) SurfaceLost() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.surface != SurfaceReady {
		return m.invalid("surface lost")
	}
	m.loseSurface()
	return nil
}

// HandleLifecycle maps an x/mobile lifecycle event onto the machine. Becoming
// visible resumes the host and creates the surface when the event carries a
// draw context; leaving visibility pauses and loses the surface; reaching
// StageDead destroys.
func (m *Machine) HandleLifecycle(e lifecycle.Event) error {
	var errs []error
	switch e.Crosses(lifecycle.StageVisible) {
	case lifecycle.CrossOn:
		errs = append(errs, m.Resume())
		if e.DrawContext != nil {
			errs = append(errs, m.SurfaceCreated())
		}
	case lifecycle.CrossOff:
		if m.State() == Resumed {
			errs = append(errs, m.Pause())
		}
		if m.Surface() == SurfaceReady {
			errs = append(errs, m.SurfaceLost())
		}
	}
	if e.To == lifecycle.StageDead && m.State() != Destroyed {
		errs = append(errs, m.Destroy())
	}
	return errors.Join(errs...)
}

// HandleSize maps an x/mobile size event onto SurfaceChanged. Empty sizes are ignored.
func (m *Machine) HandleSize(e size.Event) error {
	if e.WidthPx <= 0 || e.HeightPx <= 0 {
		return nil
	}
	return m.SurfaceChanged(e.WidthPx, e.HeightPx)
}

func (m *Machine) pause() {
	m.transition(Paused)
	for i := len(m.hooks) - 1; i >= 0; i-- {
		m.hooks[i].OnPause()
	}
}

func (m *Machine) loseSurface() {
	m.setSurface(SurfaceNone)
	m.log.Debug("surface lost", "state", m.state)
	for i := len(m.hooks) - 1; i >= 0; i-- {
		if sh, ok := m.hooks[i].(SurfaceHooks); ok {
			sh.OnSurfaceLost()
		}
	}
}

func (m *Machine) surfaceChanged() error {
	var errs []error
	for _, h := range m.hooks {
		if sh, ok := h.(SurfaceHooks); ok {
			if err := sh.OnSurfaceChanged(m.width, m.height); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *Machine) transition(to State) {
	from := m.state
	m.state = to
	m.publishedState.Store(int32(to))
	m.log.Debug("lifecycle transition", "from", from, "to", to)
}

func (m *Machine) setSurface(s Surface) {
	m.surface = s
	m.publishedSurface.Store(int32(s))
}

func (m *Machine) invalid(event string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, event, m.state)
}
