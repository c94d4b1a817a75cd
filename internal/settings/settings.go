// Package settings holds the user feature toggles read by the composer every
// tick. Everything except the depth color visualization survives restarts
// through the storage backend.
package settings

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/arlens/flicker/pkg/core"
)

// Store persists settings. storage.Backend satisfies it.
type Store interface {
	LoadSettings() (core.Settings, error)
	SaveSettings(s core.Settings) error
}

// Settings is a point-in-time copy of every toggle.
type Settings struct {
	UseDepthForOcclusion    bool
	DepthColorVisualization bool
	InstantPlacement        bool
	EIS                     bool
	ShowDepthEnableDialog   bool
}

// Service guards the toggles. It is safe for concurrent use.
type Service struct {
	mu    sync.Mutex
	store Store
	log   *slog.Logger

	persisted          core.Settings
	depthVisualization bool
}

// New loads the persisted settings from store.
func New(store Store, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	s, err := store.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &Service{store: store, log: log, persisted: s}, nil
}

// Snapshot returns all toggles at once.
func (s *Service) Snapshot() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Settings{
		UseDepthForOcclusion:    s.persisted.UseDepthForOcclusion,
		DepthColorVisualization: s.depthVisualization,
		InstantPlacement:        s.persisted.InstantPlacement,
		EIS:                     s.persisted.EIS,
		ShowDepthEnableDialog:   s.persisted.ShowDepthEnableDialog,
	}
}

func (s *Service) UseDepthForOcclusion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persisted.UseDepthForOcclusion
}

func (s *Service) InstantPlacementEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persisted.InstantPlacement
}

func (s *Service) EISEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persisted.EIS
}

func (s *Service) DepthColorVisualizationEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depthVisualization
}

// SetUseDepthForOcclusion persists the occlusion toggle.
func (s *Service) SetUseDepthForOcclusion(on bool) error {
	return s.update("useDepthForOcclusion", on, func(c *core.Settings) *bool { return &c.UseDepthForOcclusion })
}

// SetInstantPlacement persists the instant placement toggle.
func (s *Service) SetInstantPlacement(on bool) error {
	return s.update("instantPlacement", on, func(c *core.Settings) *bool { return &c.InstantPlacement })
}

// SetEIS persists the image stabilization toggle.
func (s *Service) SetEIS(on bool) error {
	return s.update("eis", on, func(c *core.Settings) *bool { return &c.EIS })
}

// SetDepthColorVisualization changes the session-only depth visualization toggle.
func (s *Service) SetDepthColorVisualization(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depthVisualization = on
}

// ShouldShowDepthEnableDialog reports true exactly once per install; the
// first call persists false.
func (s *Service) ShouldShowDepthEnableDialog() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.persisted.ShowDepthEnableDialog {
		return false, nil
	}
	next := s.persisted
	next.ShowDepthEnableDialog = false
	if err := s.store.SaveSettings(next); err != nil {
		return true, fmt.Errorf("failed to save settings: %w", err)
	}
	s.persisted = next
	return true, nil
}

// update writes through only when the value changes. On a store error the
// in-memory value is left untouched.
func (s *Service) update(name string, on bool, field func(*core.Settings) *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if *field(&s.persisted) == on {
		return nil
	}
	next := s.persisted
	*field(&next) = on
	if err := s.store.SaveSettings(next); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	s.persisted = next
	s.log.Info("Setting changed", "name", name, "value", on)
	return nil
}
