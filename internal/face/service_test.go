package face

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/renderix/facegate/internal/detector"
	"github.com/renderix/facegate/internal/imaging"
	"github.com/renderix/facegate/internal/store"
	"github.com/renderix/facegate/internal/verify"
	"github.com/renderix/facegate/testdata"
)

func newTestService(t *testing.T) (*Service, *detector.MockDetector, *store.FaceRepository) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "facegate-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	st, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mock := detector.NewMockDetector()
	svc, err := NewService(mock, st.Faces(), DefaultConfig())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	return svc, mock, st.Faces()
}

// fullFrameDetection covers the whole 200x200 test image, so the
// preset landmarks are already region-local and the face ratio is 1.
func fullFrameDetection(landmarks detector.LandmarkSet, embeddingValue float64) detector.Detection {
	return detector.Detection{
		Box:       detector.FaceBox{Top: 0, Right: 200, Bottom: 200, Left: 0},
		Landmarks: landmarks,
		Embedding: detector.MockEmbedding(embeddingValue),
		Score:     0.95,
	}
}

// checkerPNG encodes a 200x200 black/white checkerboard: bright enough,
// high contrast and maximally sharp, so it clears the strict profile.
func checkerPNG(t *testing.T) []byte {
	t.Helper()
	data, err := testdata.CheckerImagePNG(200, 200, 0, 255)
	if err != nil {
		t.Fatalf("failed to encode fixture image: %v", err)
	}
	return data
}

func TestNewService_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Verify.Tolerance = -1

	if _, err := NewService(detector.NewMockDetector(), nil, cfg); err == nil {
		t.Error("NewService() should reject a negative tolerance")
	}
}

func TestRegister_Enrolls(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	svc, mock, faces := newTestService(t)
	mock.SetDetections([]detector.Detection{fullFrameDetection(detector.FrontalLandmarks(), 0.1)})

	result, err := svc.Register("alice", checkerPNG(t))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.Outcome != OutcomeOK {
		t.Fatalf("Outcome = %v (%s), want ok", result.Outcome, result.Message)
	}
	if result.TemplateID == "" {
		t.Error("TemplateID should be set on success")
	}
	if result.Metrics == nil || result.Metrics.Overall < 0.6 {
		t.Errorf("Metrics = %+v, want overall at least 0.6", result.Metrics)
	}
	if result.Decision == nil || !result.Decision.Approved {
		t.Errorf("Decision = %+v, want approved", result.Decision)
	}

	tmpl, err := faces.GetByUserKey("alice")
	if err != nil {
		t.Fatalf("template not persisted: %v", err)
	}
	if tmpl.Embedding[0] != 0.1 {
		t.Errorf("stored Embedding[0] = %v, want 0.1", tmpl.Embedding[0])
	}
}

func TestRegister_FaceCountPreconditions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	svc, mock, _ := newTestService(t)
	img := checkerPNG(t)

	t.Run("no face", func(t *testing.T) {
		mock.SetDetections(nil)
		result, err := svc.Register("alice", img)
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if result.Outcome != OutcomeNoFace {
			t.Errorf("Outcome = %v, want no_face_detected", result.Outcome)
		}
	})

	t.Run("multiple faces", func(t *testing.T) {
		mock.SetDetections([]detector.Detection{
			fullFrameDetection(detector.FrontalLandmarks(), 0.1),
			fullFrameDetection(detector.FrontalLandmarks(), 0.2),
		})
		result, err := svc.Register("alice", img)
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if result.Outcome != OutcomeMultipleFaces {
			t.Errorf("Outcome = %v, want multiple_faces_detected", result.Outcome)
		}
		if result.FaceCount != 2 {
			t.Errorf("FaceCount = %d, want 2", result.FaceCount)
		}
	})
}

func TestRegister_InvalidImage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	svc, _, _ := newTestService(t)

	_, err := svc.Register("alice", []byte("not an image"))
	if !errors.Is(err, imaging.ErrInvalidImage) {
		t.Errorf("Register() error = %v, want ErrInvalidImage", err)
	}
}

func TestRegister_RejectsOpenMouth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	svc, mock, faces := newTestService(t)
	mock.SetDetections([]detector.Detection{fullFrameDetection(detector.OpenMouthLandmarks(), 0.1)})

	result, err := svc.Register("alice", checkerPNG(t))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.Outcome != OutcomeRejected {
		t.Fatalf("Outcome = %v, want rejected", result.Outcome)
	}
	found := false
	for _, r := range result.Reasons {
		if r == "neutral_expression" {
			found = true
		}
	}
	if !found {
		t.Errorf("Reasons = %v, want neutral_expression named", result.Reasons)
	}

	if _, err := faces.GetByUserKey("alice"); !errors.Is(err, store.ErrNotFound) {
		t.Error("rejected enrollment must not persist a template")
	}
}

func TestRegister_RejectsLowQuality(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	svc, mock, _ := newTestService(t)
	mock.SetDetections([]detector.Detection{fullFrameDetection(detector.FrontalLandmarks(), 0.1)})

	// A uniform gray image has zero contrast and zero sharpness.
	flat, err := testdata.CheckerImagePNG(200, 200, 128, 128)
	if err != nil {
		t.Fatalf("failed to encode fixture image: %v", err)
	}

	result, err := svc.Register("alice", flat)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if result.Outcome != OutcomeLowQuality {
		t.Fatalf("Outcome = %v, want quality_below_threshold", result.Outcome)
	}
	if len(result.Reasons) == 0 {
		t.Error("quality rejection must carry reasons")
	}
}

func TestVerify_Match(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	svc, mock, faces := newTestService(t)
	img := checkerPNG(t)

	mock.SetDetections([]detector.Detection{fullFrameDetection(detector.FrontalLandmarks(), 0.1)})
	if _, err := svc.Register("alice", img); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := svc.Verify("alice", img)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if result.Outcome != OutcomeOK {
		t.Fatalf("Outcome = %v (%s), want ok", result.Outcome, result.Message)
	}
	if result.Match == nil || !result.Match.IsMatch {
		t.Fatalf("Match = %+v, want a match", result.Match)
	}
	if result.Match.Confidence != verify.BucketVeryHigh {
		t.Errorf("Confidence = %v, want very_high for identical embeddings", result.Match.Confidence)
	}
	if result.Match.AdaptiveThreshold < 0.6 || result.Match.AdaptiveThreshold > 0.8 {
		t.Errorf("AdaptiveThreshold = %v, want within [0.6, 0.8]", result.Match.AdaptiveThreshold)
	}

	tmpl, err := faces.GetByUserKey("alice")
	if err != nil {
		t.Fatalf("GetByUserKey() error = %v", err)
	}
	if tmpl.VerificationCount != 1 {
		t.Errorf("VerificationCount = %d, want 1 after a match", tmpl.VerificationCount)
	}
	if tmpl.LastVerifiedAt == nil {
		t.Error("LastVerifiedAt should be stamped after a match")
	}
}

func TestVerify_NoMatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	svc, mock, faces := newTestService(t)
	img := checkerPNG(t)

	mock.SetDetections([]detector.Detection{fullFrameDetection(detector.FrontalLandmarks(), 0.1)})
	if _, err := svc.Register("alice", img); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// A different person: embeddings sqrt(128)*0.1 apart.
	mock.SetDetections([]detector.Detection{fullFrameDetection(detector.FrontalLandmarks(), 0.2)})
	result, err := svc.Verify("alice", img)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if result.Outcome != OutcomeOK {
		t.Fatalf("Outcome = %v, want ok (non-match is a normal result)", result.Outcome)
	}
	if result.Match == nil || result.Match.IsMatch {
		t.Fatalf("Match = %+v, want no match", result.Match)
	}

	tmpl, err := faces.GetByUserKey("alice")
	if err != nil {
		t.Fatalf("GetByUserKey() error = %v", err)
	}
	if tmpl.VerificationCount != 0 {
		t.Errorf("VerificationCount = %d, want 0 after a non-match", tmpl.VerificationCount)
	}
}

func TestVerify_NotEnrolled(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.Verify("nobody", []byte("irrelevant"))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Outcome != OutcomeNotEnrolled {
		t.Errorf("Outcome = %v, want not_enrolled", result.Outcome)
	}
}

func TestVerify_CorruptStoredEmbedding(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	svc, mock, faces := newTestService(t)

	// Write a template with a wrong-length embedding straight into the
	// store, simulating corruption.
	bad := &store.Template{
		ID:        uuid.New().String(),
		UserKey:   "alice",
		Embedding: detector.Embedding{1, 2, 3},
	}
	if err := faces.Save(bad); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	mock.SetDetections([]detector.Detection{fullFrameDetection(detector.FrontalLandmarks(), 0.1)})
	_, err := svc.Verify("alice", checkerPNG(t))
	if !errors.Is(err, verify.ErrInvalidEmbedding) {
		t.Errorf("Verify() error = %v, want ErrInvalidEmbedding", err)
	}
}

func TestQualityCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	svc, mock, _ := newTestService(t)
	mock.SetDetections([]detector.Detection{fullFrameDetection(detector.FrontalLandmarks(), 0.1)})

	result, err := svc.QualityCheck(checkerPNG(t))
	if err != nil {
		t.Fatalf("QualityCheck() error = %v", err)
	}

	if result.Outcome != OutcomeOK {
		t.Fatalf("Outcome = %v, want ok", result.Outcome)
	}
	if result.Metrics == nil {
		t.Fatal("Metrics missing")
	}
	if result.Decision == nil || !result.Decision.Approved {
		t.Errorf("Decision = %+v, want approved", result.Decision)
	}
}

func TestRemove(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	svc, mock, _ := newTestService(t)
	mock.SetDetections([]detector.Detection{fullFrameDetection(detector.FrontalLandmarks(), 0.1)})

	if _, err := svc.Register("alice", checkerPNG(t)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	existed, err := svc.Remove("alice")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !existed {
		t.Error("Remove() existed = false, want true")
	}

	result, err := svc.Verify("alice", []byte("irrelevant"))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Outcome != OutcomeNotEnrolled {
		t.Errorf("Outcome = %v, want not_enrolled after removal", result.Outcome)
	}

	existed, err = svc.Remove("alice")
	if err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
	if existed {
		t.Error("second Remove() existed = true, want false")
	}
}
