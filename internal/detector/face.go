// Package detector provides face detection interfaces and types for biometric verification.
package detector

import "math"

// Landmark group names as reported by the recognition backend.
// A LandmarkSet may be missing any of these groups; consumers decide
// how to degrade when a group is absent.
const (
	GroupLeftEye    = "left_eye"
	GroupRightEye   = "right_eye"
	GroupLeftBrow   = "left_eyebrow"
	GroupRightBrow  = "right_eyebrow"
	GroupNoseBridge = "nose_bridge"
	GroupNoseTip    = "nose_tip"
	GroupTopLip     = "top_lip"
	GroupBottomLip  = "bottom_lip"
	GroupChin       = "chin"
)

// EmbeddingDim is the fixed length of a face embedding vector.
const EmbeddingDim = 128

// Point2D represents a 2D point in face-region-local coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FaceBox describes the bounding box of a detected face as offsets
// into the source image. Top < Bottom and Left < Right always hold
// for boxes produced by a Detector.
type FaceBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Width returns the horizontal extent of the box in pixels.
func (b FaceBox) Width() int {
	return b.Right - b.Left
}

// Height returns the vertical extent of the box in pixels.
func (b FaceBox) Height() int {
	return b.Bottom - b.Top
}

// Area returns the box area in pixels.
func (b FaceBox) Area() int {
	return b.Width() * b.Height()
}

// LandmarkSet maps a landmark group name to its ordered points.
// Coordinates are local to the face region, not the source image.
type LandmarkSet map[string][]Point2D

// Has reports whether every named group is present and non-empty.
func (ls LandmarkSet) Has(groups ...string) bool {
	for _, g := range groups {
		if len(ls[g]) == 0 {
			return false
		}
	}
	return true
}

// Mean returns the centroid of the named group.
// The second return value is false if the group is absent or empty.
func (ls LandmarkSet) Mean(group string) (Point2D, bool) {
	pts := ls[group]
	if len(pts) == 0 {
		return Point2D{}, false
	}

	var sumX, sumY float64
	for _, p := range pts {
		sumX += p.X
		sumY += p.Y
	}

	n := float64(len(pts))
	return Point2D{X: sumX / n, Y: sumY / n}, true
}

// Offset returns a copy of the set with every point shifted by
// (dx, dy). Used to translate backend image coordinates into
// face-region-local coordinates.
func (ls LandmarkSet) Offset(dx, dy float64) LandmarkSet {
	if ls == nil {
		return nil
	}
	out := make(LandmarkSet, len(ls))
	for g, pts := range ls {
		shifted := make([]Point2D, len(pts))
		for i, p := range pts {
			shifted[i] = Point2D{X: p.X + dx, Y: p.Y + dy}
		}
		out[g] = shifted
	}
	return out
}

// Bounds returns the axis-aligned bounding box of all points in the
// named groups. The last return value is false if no points exist.
func (ls LandmarkSet) Bounds(groups ...string) (minX, minY, maxX, maxY float64, ok bool) {
	first := true
	for _, g := range groups {
		for _, p := range ls[g] {
			if first {
				minX, maxX = p.X, p.X
				minY, maxY = p.Y, p.Y
				first = false
				continue
			}
			if p.X < minX {
				minX = p.X
			}
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
	}
	return minX, minY, maxX, maxY, !first
}

// Distance2D calculates the Euclidean distance between two 2D points.
func Distance2D(a, b Point2D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Embedding is a fixed-length face feature vector produced by the
// recognition backend. It is compared by Euclidean distance, never by
// raw pixel similarity.
type Embedding []float64

// Detection bundles everything the backend extracts for one face.
type Detection struct {
	Box       FaceBox     `json:"box"`
	Landmarks LandmarkSet `json:"landmarks"`
	Embedding Embedding   `json:"embedding"`
	Score     float64     `json:"score"`
}
