package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a BGR frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// ModelComplexity selects the landmark model: 0 is the lite model.
	ModelComplexity int

	// StaticImageMode disables tracking between frames.
	StaticImageMode bool

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath points at the MediaPipe service script. Empty means search
	// the usual locations.
	ScriptPath string

	// PythonPath is the interpreter used to run the script. Empty means a
	// virtualenv python if one is found, else python3.
	PythonPath string

	// IdleTimeout stops the service after this long without a frame.
	IdleTimeout time.Duration
}

// DefaultConfig returns the settings tuned for a small board: lite model,
// up to two hands, permissive thresholds.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		ModelComplexity: 0,
		MinConfidence:   0.4,
		MinTrackingConf: 0.4,
		IdleTimeout:     30 * time.Second,
	}
}
