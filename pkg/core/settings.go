// pkg/core/settings.go
package core

// Settings are the user-facing feature toggles that survive restarts.
type Settings struct {
	UseDepthForOcclusion  bool
	InstantPlacement      bool
	EIS                   bool
	ShowDepthEnableDialog bool
}

// DefaultSettings is what a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{ShowDepthEnableDialog: true}
}
