// Package face orchestrates detection, quality gating, storage and
// verification into the enrollment and verification flows.
package face

import (
	"fmt"

	"github.com/renderix/facegate/internal/quality"
	"github.com/renderix/facegate/internal/verify"
)

// Config holds the tunable constants for the face service.
type Config struct {
	// Verify holds the match decision constants.
	Verify verify.Config

	// Strict is the quality profile applied to enrollment captures.
	Strict quality.Thresholds

	// Lenient is the quality profile applied to verification captures.
	Lenient quality.Thresholds

	// Heuristics are the landmark check constants for the enrollment gate.
	Heuristics quality.Heuristics
}

// DefaultConfig returns the canonical service configuration.
func DefaultConfig() Config {
	return Config{
		Verify:     verify.DefaultConfig(),
		Strict:     quality.StrictThresholds(),
		Lenient:    quality.LenientThresholds(),
		Heuristics: quality.DefaultHeuristics(),
	}
}

// Validate checks the configuration for values that would make every
// decision degenerate.
func (c Config) Validate() error {
	if c.Verify.Tolerance <= 0 || c.Verify.Tolerance > 2 {
		return fmt.Errorf("tolerance %v out of range (0, 2]", c.Verify.Tolerance)
	}
	if c.Verify.ThresholdCap < c.Verify.BaseThreshold {
		return fmt.Errorf("threshold cap %v below base %v", c.Verify.ThresholdCap, c.Verify.BaseThreshold)
	}
	if c.Strict.OverallMin < 0 || c.Strict.OverallMin > 1 {
		return fmt.Errorf("overall quality minimum %v out of range [0, 1]", c.Strict.OverallMin)
	}
	return nil
}
