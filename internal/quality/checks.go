package quality

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/renderix/facegate/internal/detector"
)

const (
	// landmarkPadding widens a landmark bounding box before sampling
	// its luminance statistics.
	landmarkPadding = 2

	// widthEpsilon guards the mouth openness ratio against a
	// degenerate zero-width lip box.
	widthEpsilon = 1e-6
)

// Heuristics holds the threshold constants for the landmark-based
// enrollment checks.
//
// The missing-landmark defaults are intentionally asymmetric and must
// stay that way: obstruction and eyewear default to pass when their
// landmark groups are absent (absence of evidence is not evidence of
// an obstruction), while expression and pose default to fail.
type Heuristics struct {
	// Obstruction is flagged when the lip region is both darker than
	// ObstructionMaxMean and flatter than ObstructionMaxStd.
	ObstructionMaxMean float64
	ObstructionMaxStd  float64

	// Eyewear is flagged only when BOTH eye regions are darker than
	// EyewearMaxMean and flatter than EyewearMaxStd. Prescription
	// lenses do not trigger this; opaque sunglasses do.
	EyewearMaxMean float64
	EyewearMaxStd  float64

	// OpennessMax is the maximum mouth height/width ratio still
	// counted as a neutral expression.
	OpennessMax float64

	// PoseAsymmetryMax is the maximum relative difference between the
	// eye-to-nose distances still counted as forward facing.
	PoseAsymmetryMax float64

	// Raw luminance window for the lighting check, over the whole
	// face region.
	RawBrightnessMin float64
	RawBrightnessMax float64
	RawContrastMin   float64
}

// DefaultHeuristics returns the canonical (lenient) check constants.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		ObstructionMaxMean: 40,
		ObstructionMaxStd:  10,
		EyewearMaxMean:     25,
		EyewearMaxStd:      15,
		OpennessMax:        0.40,
		PoseAsymmetryMax:   0.55,
		RawBrightnessMin:   30,
		RawBrightnessMax:   220,
		RawContrastMin:     10,
	}
}

// StrictHeuristics returns the tighter constants from the legacy
// strict enrollment path, kept for a possible strict mode. Nothing
// selects these by default.
func StrictHeuristics() Heuristics {
	return Heuristics{
		ObstructionMaxMean: 40,
		ObstructionMaxStd:  10,
		EyewearMaxMean:     40,
		EyewearMaxStd:      255,
		OpennessMax:        0.25,
		PoseAsymmetryMax:   0.28,
		RawBrightnessMin:   50,
		RawBrightnessMax:   200,
		RawContrastMin:     20,
	}
}

// Checks holds the boolean results of the five enrollment heuristics.
// Each field is true when the corresponding check passed.
type Checks struct {
	NoObstructions    bool `json:"no_obstructions"`
	NeutralExpression bool `json:"neutral_expression"`
	ProperLighting    bool `json:"proper_lighting"`
	NoGlasses         bool `json:"no_glasses"`
	ForwardFacing     bool `json:"forward_facing"`
}

// All reports whether every check passed.
func (c Checks) All() bool {
	return c.NoObstructions && c.NeutralExpression && c.ProperLighting &&
		c.NoGlasses && c.ForwardFacing
}

// Failed returns the names of the checks that did not pass.
func (c Checks) Failed() []string {
	var failed []string
	if !c.NoObstructions {
		failed = append(failed, "no_obstructions")
	}
	if !c.NeutralExpression {
		failed = append(failed, "neutral_expression")
	}
	if !c.ProperLighting {
		failed = append(failed, "proper_lighting")
	}
	if !c.NoGlasses {
		failed = append(failed, "no_glasses")
	}
	if !c.ForwardFacing {
		failed = append(failed, "forward_facing")
	}
	return failed
}

// Lighting holds raw luminance statistics over the face region.
type Lighting struct {
	RawBrightness float64 `json:"raw_brightness"`
	RawContrast   float64 `json:"raw_contrast"`
}

// Evaluate runs the five heuristics over a face region and its
// landmarks. Landmark coordinates must be region-local.
func (h Heuristics) Evaluate(region *gocv.Mat, landmarks detector.LandmarkSet) (Checks, Lighting) {
	gray := grayscale(region)
	defer gray.Close()

	mean, stddev := meanStdDev(&gray)
	lighting := Lighting{RawBrightness: mean, RawContrast: stddev}

	checks := Checks{
		NoObstructions:    h.checkObstruction(&gray, landmarks),
		NeutralExpression: h.checkExpression(landmarks),
		ProperLighting:    h.checkLighting(lighting),
		NoGlasses:         h.checkEyewear(&gray, landmarks),
		ForwardFacing:     h.checkPose(landmarks),
	}

	return checks, lighting
}

// checkObstruction samples the padded lip region: a mask flattens the
// local texture and darkens it, so only a dark AND flat region is
// flagged. Missing lip landmarks default to pass.
func (h Heuristics) checkObstruction(gray *gocv.Mat, landmarks detector.LandmarkSet) bool {
	if !landmarks.Has(detector.GroupTopLip, detector.GroupBottomLip) {
		return true
	}

	mean, stddev, ok := paddedGroupStats(gray, landmarks, detector.GroupTopLip, detector.GroupBottomLip)
	if !ok {
		return true
	}

	return !(mean < h.ObstructionMaxMean && stddev < h.ObstructionMaxStd)
}

// checkEyewear applies the padded-box statistic independently to each
// eye; only two uniformly dark, low-variance eye regions read as
// opaque sunglasses. Missing eye landmarks default to pass.
func (h Heuristics) checkEyewear(gray *gocv.Mat, landmarks detector.LandmarkSet) bool {
	if !landmarks.Has(detector.GroupLeftEye, detector.GroupRightEye) {
		return true
	}

	leftMean, leftStd, leftOK := paddedGroupStats(gray, landmarks, detector.GroupLeftEye)
	rightMean, rightStd, rightOK := paddedGroupStats(gray, landmarks, detector.GroupRightEye)
	if !leftOK || !rightOK {
		return true
	}

	opaque := func(mean, stddev float64) bool {
		return mean < h.EyewearMaxMean && stddev < h.EyewearMaxStd
	}

	return !(opaque(leftMean, leftStd) && opaque(rightMean, rightStd))
}

// checkExpression measures mouth openness as lip-centroid separation
// over mouth width. Missing lip landmarks default to fail: this is the
// one check where missing data is treated conservatively.
func (h Heuristics) checkExpression(landmarks detector.LandmarkSet) bool {
	top, okTop := landmarks.Mean(detector.GroupTopLip)
	bottom, okBottom := landmarks.Mean(detector.GroupBottomLip)
	if !okTop || !okBottom {
		return false
	}

	minX, _, maxX, _, ok := landmarks.Bounds(detector.GroupTopLip, detector.GroupBottomLip)
	if !ok {
		return false
	}

	mouthHeight := detector.Distance2D(top, bottom)
	mouthWidth := maxX - minX
	openness := mouthHeight / (mouthWidth + widthEpsilon)

	return openness <= h.OpennessMax
}

// checkPose compares the eye-to-nose distances: a frontal face keeps
// them nearly symmetric. Missing landmarks default to fail.
func (h Heuristics) checkPose(landmarks detector.LandmarkSet) bool {
	nose, okNose := landmarks.Mean(detector.GroupNoseTip)
	left, okLeft := landmarks.Mean(detector.GroupLeftEye)
	right, okRight := landmarks.Mean(detector.GroupRightEye)
	if !okNose || !okLeft || !okRight {
		return false
	}

	dLeft := detector.Distance2D(left, nose)
	dRight := detector.Distance2D(right, nose)
	if dLeft <= 0 || dRight <= 0 {
		return false
	}

	diff := math.Abs(dLeft-dRight) / math.Max(dLeft, dRight)
	return diff <= h.PoseAsymmetryMax
}

func (h Heuristics) checkLighting(l Lighting) bool {
	return l.RawBrightness >= h.RawBrightnessMin &&
		l.RawBrightness <= h.RawBrightnessMax &&
		l.RawContrast >= h.RawContrastMin
}

// paddedGroupStats computes mean/stddev of the luminance inside the
// padded bounding box of the named landmark groups, clipped to the
// region. Returns ok=false when the groups have no points or the
// clipped box is degenerate.
func paddedGroupStats(gray *gocv.Mat, landmarks detector.LandmarkSet, groups ...string) (mean, stddev float64, ok bool) {
	minX, minY, maxX, maxY, ok := landmarks.Bounds(groups...)
	if !ok {
		return 0, 0, false
	}

	// The Rect max corner is exclusive, so x2/y2 clip to the full
	// width/height to keep edge-touching boxes from losing their last
	// column or row.
	x1 := clipInt(int(minX)-landmarkPadding, 0, gray.Cols())
	y1 := clipInt(int(minY)-landmarkPadding, 0, gray.Rows())
	x2 := clipInt(int(maxX)+landmarkPadding, 0, gray.Cols())
	y2 := clipInt(int(maxY)+landmarkPadding, 0, gray.Rows())

	if x2 <= x1 || y2 <= y1 {
		return 0, 0, false
	}

	roi := gray.Region(image.Rect(x1, y1, x2, y2))
	defer roi.Close()

	mean, stddev = meanStdDev(&roi)
	return mean, stddev, true
}

func clipInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
