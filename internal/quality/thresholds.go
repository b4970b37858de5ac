package quality

import "fmt"

// Thresholds defines minimum quality requirements for a Metrics value.
// A zero field disables that particular check, which is how the lenient
// profile skips everything except the raw brightness window.
type Thresholds struct {
	// Normalized [0,1] bounds
	BrightnessMin float64
	BrightnessMax float64
	ContrastMin   float64
	SharpnessMin  float64
	FaceRatioMin  float64
	OverallMin    float64

	// Raw 0-255 luminance bounds
	RawBrightnessMin float64
	RawBrightnessMax float64
	RawContrastMin   float64
}

// StrictThresholds returns the enrollment profile: every metric is
// bounded, on both the normalized and the raw scale.
func StrictThresholds() Thresholds {
	return Thresholds{
		BrightnessMin:    0.2,
		BrightnessMax:    0.8,
		ContrastMin:      0.3,
		SharpnessMin:     0.4,
		FaceRatioMin:     0.1,
		OverallMin:       0.6,
		RawBrightnessMin: 30,
		RawBrightnessMax: 220,
		RawContrastMin:   10,
	}
}

// LenientThresholds returns the verification profile: only a wide raw
// brightness window is enforced.
func LenientThresholds() Thresholds {
	return Thresholds{
		RawBrightnessMin: 40,
		RawBrightnessMax: 210,
	}
}

// Check evaluates the metrics against the thresholds and returns
// whether they pass, along with a human-readable reason for every
// violated bound.
func (m Metrics) Check(t Thresholds) (bool, []string) {
	var reasons []string

	if t.BrightnessMin > 0 && m.Brightness < t.BrightnessMin {
		reasons = append(reasons, fmt.Sprintf("image too dark (brightness %.2f, minimum %.2f)", m.Brightness, t.BrightnessMin))
	}
	if t.BrightnessMax > 0 && m.Brightness > t.BrightnessMax {
		reasons = append(reasons, fmt.Sprintf("image too bright (brightness %.2f, maximum %.2f)", m.Brightness, t.BrightnessMax))
	}
	if t.ContrastMin > 0 && m.Contrast < t.ContrastMin {
		reasons = append(reasons, fmt.Sprintf("contrast too low (%.2f, minimum %.2f)", m.Contrast, t.ContrastMin))
	}
	if t.SharpnessMin > 0 && m.Sharpness < t.SharpnessMin {
		reasons = append(reasons, fmt.Sprintf("image too blurry (sharpness %.2f, minimum %.2f)", m.Sharpness, t.SharpnessMin))
	}
	if t.FaceRatioMin > 0 && m.FaceRatio < t.FaceRatioMin {
		reasons = append(reasons, fmt.Sprintf("face too small in frame (ratio %.2f, minimum %.2f)", m.FaceRatio, t.FaceRatioMin))
	}
	if t.OverallMin > 0 && m.Overall < t.OverallMin {
		reasons = append(reasons, fmt.Sprintf("overall quality too low (%.2f, minimum %.2f)", m.Overall, t.OverallMin))
	}
	if t.RawBrightnessMin > 0 && m.RawBrightness < t.RawBrightnessMin {
		reasons = append(reasons, fmt.Sprintf("lighting too dark (%.1f, minimum %.1f)", m.RawBrightness, t.RawBrightnessMin))
	}
	if t.RawBrightnessMax > 0 && m.RawBrightness > t.RawBrightnessMax {
		reasons = append(reasons, fmt.Sprintf("lighting too bright (%.1f, maximum %.1f)", m.RawBrightness, t.RawBrightnessMax))
	}
	if t.RawContrastMin > 0 && m.RawContrast < t.RawContrastMin {
		reasons = append(reasons, fmt.Sprintf("lighting too flat (contrast %.1f, minimum %.1f)", m.RawContrast, t.RawContrastMin))
	}

	return len(reasons) == 0, reasons
}
