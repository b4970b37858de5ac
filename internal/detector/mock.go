package detector

import (
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	detections []Detection
	err        error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the faces that will be returned by Detect.
func (m *MockDetector) SetDetections(detections []Detection) {
	m.detections = detections
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(img *gocv.Mat) ([]Detection, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.detections, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// FrontalLandmarks returns a preset LandmarkSet for a forward-facing,
// closed-mouth face in a 200x200 region. Eye centroids sit symmetric
// around the nose tip, so the pose check passes, and mouth openness
// is well under the neutral-expression limit.
func FrontalLandmarks() LandmarkSet {
	return LandmarkSet{
		GroupLeftEye:    {{X: 55, Y: 78}, {X: 65, Y: 82}},
		GroupRightEye:   {{X: 135, Y: 78}, {X: 145, Y: 82}},
		GroupNoseBridge: {{X: 100, Y: 95}, {X: 100, Y: 105}},
		GroupNoseTip:    {{X: 98, Y: 120}, {X: 102, Y: 120}},
		GroupTopLip:     {{X: 80, Y: 150}, {X: 100, Y: 148}, {X: 120, Y: 150}},
		GroupBottomLip:  {{X: 80, Y: 154}, {X: 100, Y: 156}, {X: 120, Y: 154}},
	}
}

// OpenMouthLandmarks returns a preset LandmarkSet with a wide-open
// mouth: lip centroids are ~18.7px apart over a 40px mouth width,
// putting openness above the neutral-expression limit.
func OpenMouthLandmarks() LandmarkSet {
	lm := FrontalLandmarks()
	lm[GroupTopLip] = []Point2D{{X: 80, Y: 142}, {X: 100, Y: 138}, {X: 120, Y: 142}}
	lm[GroupBottomLip] = []Point2D{{X: 80, Y: 158}, {X: 100, Y: 162}, {X: 120, Y: 158}}
	return lm
}

// TurnedLandmarks returns a preset LandmarkSet for a strongly turned
// head: the left eye centroid sits close to the nose while the right
// eye is far away, so the eye-to-nose distance asymmetry exceeds the
// forward-facing limit.
func TurnedLandmarks() LandmarkSet {
	lm := FrontalLandmarks()
	lm[GroupLeftEye] = []Point2D{{X: 85, Y: 98}, {X: 95, Y: 102}}
	lm[GroupRightEye] = []Point2D{{X: 155, Y: 78}, {X: 165, Y: 82}}
	lm[GroupNoseTip] = []Point2D{{X: 93, Y: 118}, {X: 97, Y: 118}}
	return lm
}

// MockEmbedding returns an EmbeddingDim-length embedding with every
// element set to value. Two mock embeddings with values a and b are
// sqrt(EmbeddingDim)*|a-b| apart, which makes distances in tests easy
// to reason about.
func MockEmbedding(value float64) Embedding {
	e := make(Embedding, EmbeddingDim)
	for i := range e {
		e[i] = value
	}
	return e
}

// MockDetection builds a Detection for a face box covering (50,50) to
// (150,150) in a 200x200 source image, with the given landmarks and
// embedding value.
func MockDetection(landmarks LandmarkSet, embeddingValue float64) Detection {
	return Detection{
		Box:       FaceBox{Top: 50, Right: 150, Bottom: 150, Left: 50},
		Landmarks: landmarks,
		Embedding: MockEmbedding(embeddingValue),
		Score:     0.95,
	}
}
