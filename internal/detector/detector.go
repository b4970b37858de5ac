package detector

import "gocv.io/x/gocv"

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Detect analyzes an image and returns one Detection per face found.
	// Returns an empty slice if no faces are detected.
	Detect(img *gocv.Mat) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face detection.
type Config struct {
	// Upsample is the number of times to upsample the image before
	// detection. Higher values find smaller faces at a CPU cost.
	Upsample int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// Jitters is the number of re-sampling passes used when computing
	// the embedding. Higher values are slower but more stable.
	Jitters int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Upsample:      1,
		MinConfidence: 0.5,
		Jitters:       1,
	}
}
