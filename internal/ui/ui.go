// Package ui is the contract between the engine and the host's user
// interface: text messages, the scan and reset affordances, and taps.
package ui

// Reporter shows user-visible state. Implementations decide which goroutine
// the calls run on; see Marshaled.
type Reporter interface {
	// ShowMessage shows informational text.
	ShowMessage(msg string)
	// ShowError shows an error the user has to acknowledge.
	ShowError(msg string)
	// Hide removes the current message, if any.
	Hide()
	// SetScanBusy toggles the "scan in progress" affordance.
	SetScanBusy(busy bool)
	// SetResetEnabled toggles the reset affordance.
	SetResetEnabled(enabled bool)
}

// Guidance messages shown while the user looks for surfaces.
const (
	MsgSearchingPlanes = "Searching for surfaces..."
	MsgWaitingTaps     = "Tap on a surface to place an object."
)

// Detection messages.
const (
	MsgNoObjects          = "No objects were detected!"
	MsgPartialDetection   = "Try moving your device around to obtain a better understanding of the environment!"
	MsgNoCameraImage      = "Fail to receive camera image for object detection!"
	MsgDetectionFailed    = "Object detection failed: "
	MsgCameraNotAvailable = "Camera not available. Try restarting the app."
	MsgAssetLoadFailed    = "Failed to read a required asset file: "
)
