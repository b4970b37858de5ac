// Package quality implements face image quality scoring and the
// landmark-based enrollment heuristics.
package quality

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"

	"github.com/renderix/facegate/internal/detector"
)

// Weights for the overall quality score.
const (
	WeightBrightness = 0.3
	WeightContrast   = 0.3
	WeightSharpness  = 0.2
	WeightFaceRatio  = 0.2
)

const (
	// sharpnessScale normalizes the Laplacian variance into [0,1].
	sharpnessScale = 1000.0

	// faceRatioBoost scales up the face size impact before capping at 1.
	faceRatioBoost = 4.0
)

// Metrics holds the numeric quality measurements for one face region.
// Normalized values are in [0,1]. Raw values are on the 0-255 luminance
// scale, except RawSharpness which is the unnormalized Laplacian variance.
type Metrics struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Sharpness  float64 `json:"sharpness"`
	FaceRatio  float64 `json:"face_size_ratio"`
	Overall    float64 `json:"overall_quality"`

	RawBrightness float64 `json:"raw_brightness"`
	RawContrast   float64 `json:"raw_contrast"`
	RawSharpness  float64 `json:"raw_sharpness"`
}

// Analyze computes quality metrics for a face region.
//
// Algorithm:
// 1. Convert the region to single-channel luminance
// 2. brightness = mean(luminance) / 255
// 3. contrast = stddev(luminance) / 255
// 4. sharpness = clip(variance(Laplacian) / 1000, 0, 1)
// 5. face_size_ratio = box area / source image area
// 6. overall = 0.3*brightness + 0.3*contrast + 0.2*sharpness + 0.2*min(1, ratio*4)
//
// Analyze never judges the numbers; pass/fail belongs to Thresholds
// and the enrollment gate.
func Analyze(region *gocv.Mat, box detector.FaceBox, srcWidth, srcHeight int) (Metrics, error) {
	if region == nil || region.Empty() {
		return Metrics{}, fmt.Errorf("empty face region")
	}
	if srcWidth <= 0 || srcHeight <= 0 {
		return Metrics{}, fmt.Errorf("invalid source dimensions %dx%d", srcWidth, srcHeight)
	}

	gray := grayscale(region)
	defer gray.Close()

	mean, stddev := meanStdDev(&gray)

	// Laplacian variance as a blur proxy: low variance means blurry
	laplacian := gocv.NewMat()
	defer laplacian.Close()
	gocv.Laplacian(gray, &laplacian, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	_, lapStd := meanStdDev(&laplacian)
	lapVariance := lapStd * lapStd

	m := Metrics{
		Brightness:    mean / 255.0,
		Contrast:      stddev / 255.0,
		Sharpness:     clip(lapVariance/sharpnessScale, 0, 1),
		FaceRatio:     float64(box.Area()) / float64(srcWidth*srcHeight),
		RawBrightness: mean,
		RawContrast:   stddev,
		RawSharpness:  lapVariance,
	}
	m.Overall = overallScore(m.Brightness, m.Contrast, m.Sharpness, m.FaceRatio)

	return m, nil
}

// overallScore computes the fixed weighted combination of the four
// normalized metrics.
func overallScore(brightness, contrast, sharpness, faceRatio float64) float64 {
	return WeightBrightness*brightness +
		WeightContrast*contrast +
		WeightSharpness*sharpness +
		WeightFaceRatio*math.Min(1.0, faceRatio*faceRatioBoost)
}

// grayscale converts a Mat to single-channel luminance.
// The caller must Close the returned Mat.
func grayscale(m *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if m.Channels() > 1 {
		gocv.CvtColor(*m, &gray, gocv.ColorBGRToGray)
	} else {
		m.CopyTo(&gray)
	}
	return gray
}

// meanStdDev returns the first-channel mean and standard deviation.
func meanStdDev(m *gocv.Mat) (float64, float64) {
	mean, stddev := m.MeanStdDev()
	return mean.Val1, stddev.Val1
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
