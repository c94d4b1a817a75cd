package ui

import (
	"log/slog"
	"sync"
)

// Severity of a shown message.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
)

// State is a snapshot of everything a Snackbar shows.
type State struct {
	Message      string
	Severity     Severity
	Showing      bool
	ScanBusy     bool
	ResetEnabled bool
}

// Snackbar is a Reporter that keeps the visible UI state. ShowMessage is a
// no-op while the same message is already showing.
type Snackbar struct {
	mu       sync.Mutex
	state    State
	last     string
	onChange func(State)
	logger   *slog.Logger
}

// NewSnackbar creates a Snackbar. onChange, if non-nil, is called with the
// new state after every visible change.
func NewSnackbar(logger *slog.Logger, onChange func(State)) *Snackbar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snackbar{logger: logger, onChange: onChange}
}

func (s *Snackbar) ShowMessage(msg string) {
	s.mu.Lock()
	if msg == "" || (s.state.Showing && s.last == msg) {
		s.mu.Unlock()
		return
	}
	s.last = msg
	s.show(msg, SeverityInfo)
}

func (s *Snackbar) ShowError(msg string) {
	s.mu.Lock()
	s.show(msg, SeverityError)
}

func (s *Snackbar) Hide() {
	s.mu.Lock()
	if !s.state.Showing {
		s.mu.Unlock()
		return
	}
	s.last = ""
	s.state.Showing = false
	s.state.Message = ""
	s.changed()
}

func (s *Snackbar) SetScanBusy(busy bool) {
	s.mu.Lock()
	if s.state.ScanBusy == busy {
		s.mu.Unlock()
		return
	}
	s.state.ScanBusy = busy
	s.changed()
}

func (s *Snackbar) SetResetEnabled(enabled bool) {
	s.mu.Lock()
	if s.state.ResetEnabled == enabled {
		s.mu.Unlock()
		return
	}
	s.state.ResetEnabled = enabled
	s.changed()
}

// State returns the current snapshot.
func (s *Snackbar) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// show and changed are entered with s.mu held and release it.
func (s *Snackbar) show(msg string, sev Severity) {
	s.state.Message = msg
	s.state.Severity = sev
	s.state.Showing = true
	if sev == SeverityError {
		s.logger.Warn("ui error", "message", msg)
	} else {
		s.logger.Debug("ui message", "message", msg)
	}
	s.changed()
}

func (s *Snackbar) changed() {
	st := s.state
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(st)
	}
}
