// Package verify implements embedding comparison and the adaptive
// match decision.
package verify

import (
	"errors"
	"fmt"
	"math"

	"github.com/renderix/facegate/internal/detector"
)

// ErrInvalidEmbedding indicates an embedding with the wrong dimension
// or non-finite components.
var ErrInvalidEmbedding = errors.New("invalid embedding")

// Bucket is a coarse confidence label derived from the match distance.
type Bucket string

const (
	BucketVeryHigh Bucket = "very_high"
	BucketHigh     Bucket = "high"
	BucketMedium   Bucket = "medium"
	BucketLow      Bucket = "low"
	BucketVeryLow  Bucket = "very_low"
)

// Config holds the match decision constants.
type Config struct {
	// Tolerance is the maximum Euclidean distance for a match.
	Tolerance float64

	// BaseThreshold, ThresholdSpread and ThresholdCap shape the
	// adaptive similarity threshold: base + spread*(1-quality),
	// never above the cap.
	BaseThreshold   float64
	ThresholdSpread float64
	ThresholdCap    float64
}

// DefaultConfig returns the canonical decision constants.
func DefaultConfig() Config {
	return Config{
		Tolerance:       0.45,
		BaseThreshold:   0.6,
		ThresholdSpread: 0.2,
		ThresholdCap:    0.8,
	}
}

// LightingSample carries the raw capture-quality signals that drive
// the adaptive threshold.
type LightingSample struct {
	// RawBrightness is the mean luminance of the probe face, 0-255.
	RawBrightness float64

	// SharpnessVar is the unnormalized Laplacian variance of the
	// probe face.
	SharpnessVar float64
}

// Result is the outcome of one embedding comparison.
type Result struct {
	IsMatch           bool    `json:"is_match"`
	Distance          float64 `json:"distance"`
	Similarity        float64 `json:"similarity"`
	AdaptiveThreshold float64 `json:"adaptive_threshold,omitempty"`
	Confidence        Bucket  `json:"confidence"`
}

// Engine compares face embeddings under a fixed Config.
type Engine struct {
	config Config
}

// NewEngine creates an Engine with the given constants.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Validate checks that an embedding has the expected dimension and
// only finite components.
func Validate(e detector.Embedding) error {
	if len(e) != detector.EmbeddingDim {
		return fmt.Errorf("%w: dimension %d, want %d", ErrInvalidEmbedding, len(e), detector.EmbeddingDim)
	}
	for i, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite component at index %d", ErrInvalidEmbedding, i)
		}
	}
	return nil
}

// Compare decides a match using the static tolerance only. The result
// carries no adaptive threshold.
func (e *Engine) Compare(stored, fresh detector.Embedding) (Result, error) {
	if err := Validate(stored); err != nil {
		return Result{}, fmt.Errorf("stored embedding: %w", err)
	}
	if err := Validate(fresh); err != nil {
		return Result{}, fmt.Errorf("fresh embedding: %w", err)
	}

	distance := euclidean(stored, fresh)

	return Result{
		IsMatch:    distance < e.config.Tolerance,
		Distance:   distance,
		Similarity: similarity(distance),
		Confidence: e.ConfidenceBucket(distance),
	}, nil
}

// CompareAdaptive decides a match with the similarity threshold
// tightened as capture quality drops: a match must both clear the
// static distance tolerance and exceed the adaptive similarity
// threshold.
func (e *Engine) CompareAdaptive(stored, fresh detector.Embedding, sample LightingSample) (Result, error) {
	r, err := e.Compare(stored, fresh)
	if err != nil {
		return Result{}, err
	}

	threshold := e.adaptiveThreshold(sample)
	r.AdaptiveThreshold = threshold
	r.IsMatch = r.Distance < e.config.Tolerance && r.Similarity > threshold

	return r, nil
}

// adaptiveThreshold maps the capture quality signals into a similarity
// floor. Perfectly exposed, sharp probes keep the base threshold;
// degraded probes must be proportionally more similar, up to the cap.
func (e *Engine) adaptiveThreshold(sample LightingSample) float64 {
	brightnessScore := 1 - math.Abs(sample.RawBrightness-127)/127
	sharpnessScore := math.Min(sample.SharpnessVar/1000, 1)
	captureQuality := (brightnessScore + sharpnessScore) / 2

	threshold := e.config.BaseThreshold + e.config.ThresholdSpread*(1-captureQuality)
	return math.Min(threshold, e.config.ThresholdCap)
}

// ConfidenceBucket maps a match distance to its coarse label.
func (e *Engine) ConfidenceBucket(distance float64) Bucket {
	switch {
	case distance < 0.30:
		return BucketVeryHigh
	case distance < 0.40:
		return BucketHigh
	case distance < 0.45:
		return BucketMedium
	case distance < 0.55:
		return BucketLow
	default:
		return BucketVeryLow
	}
}

// similarity converts a distance to its complement score. Distances
// above 1 go negative, which correctly never clears a similarity
// threshold.
func similarity(distance float64) float64 {
	return 1 - distance
}

// euclidean returns the L2 distance between two equal-length embeddings.
func euclidean(a, b detector.Embedding) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
