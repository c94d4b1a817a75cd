// pkg/core/detection.go
package core

import "time"

// Pixel is an integer position in camera image pixels.
type Pixel struct {
	X int
	Y int
}

// DetectedObject is one result of a cloud object-detection call.
type DetectedObject struct {
	Confidence float32 // in [0,1]
	Label      string
	Center     Pixel // center of the bounding box in camera image pixels
}

// DetectionRecord summarizes one completed or failed scan.
type DetectionRecord struct {
	ID        uint
	Requested time.Time
	Finished  time.Time
	Objects   []DetectedObject
	Anchored  int    // results that produced an anchor
	Error     string // non-empty when the scan failed
}
