package face

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/renderix/facegate/internal/detector"
	"github.com/renderix/facegate/internal/imaging"
	"github.com/renderix/facegate/internal/quality"
	"github.com/renderix/facegate/internal/store"
	"github.com/renderix/facegate/internal/verify"
)

// Outcome classifies the result of a face operation. Rejections are
// normal results carrying a reason, not errors; only malformed input
// or infrastructure failures surface as Go errors.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeNoFace        Outcome = "no_face_detected"
	OutcomeMultipleFaces Outcome = "multiple_faces_detected"
	OutcomeLowQuality    Outcome = "quality_below_threshold"
	OutcomeRejected      Outcome = "rejected"
	OutcomeNotEnrolled   Outcome = "not_enrolled"
)

// RegisterResult reports the outcome of an enrollment attempt.
type RegisterResult struct {
	Outcome    Outcome           `json:"outcome"`
	FaceCount  int               `json:"face_count"`
	Message    string            `json:"message"`
	Metrics    *quality.Metrics  `json:"quality,omitempty"`
	Reasons    []string          `json:"reasons,omitempty"`
	Decision   *quality.Decision `json:"gate,omitempty"`
	TemplateID string            `json:"template_id,omitempty"`
}

// VerifyResult reports the outcome of a verification attempt. A
// non-match is Outcome ok with Match.IsMatch false.
type VerifyResult struct {
	Outcome   Outcome          `json:"outcome"`
	FaceCount int              `json:"face_count"`
	Message   string           `json:"message"`
	Metrics   *quality.Metrics `json:"quality,omitempty"`
	Reasons   []string         `json:"reasons,omitempty"`
	Match     *verify.Result   `json:"match,omitempty"`
}

// QualityResult reports the metrics and gate decision for a capture
// without touching enrollment state.
type QualityResult struct {
	Outcome   Outcome           `json:"outcome"`
	FaceCount int               `json:"face_count"`
	Message   string            `json:"message"`
	Metrics   *quality.Metrics  `json:"quality,omitempty"`
	Decision  *quality.Decision `json:"gate,omitempty"`
}

// Service implements the enrollment and verification flows.
type Service struct {
	detector detector.Detector
	faces    *store.FaceRepository
	gate     *quality.Gate
	engine   *verify.Engine
	config   Config
}

// NewService creates a face service over a detector backend and a
// template repository.
func NewService(d detector.Detector, faces *store.FaceRepository, config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		detector: d,
		faces:    faces,
		gate:     quality.NewGate(config.Heuristics),
		engine:   verify.NewEngine(config.Verify),
		config:   config,
	}, nil
}

// Close releases the detector backend.
func (s *Service) Close() error {
	return s.detector.Close()
}

// Register enrolls a face template for a user key. The capture must
// contain exactly one face, pass the strict quality profile and clear
// every enrollment check. An existing template for the key is replaced.
func (s *Service) Register(userKey string, imageData []byte) (*RegisterResult, error) {
	if userKey == "" {
		return nil, fmt.Errorf("empty user key")
	}

	img, err := imaging.Decode(imageData)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	det, fail, err := s.detectSingle(img)
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return &RegisterResult{Outcome: fail.Outcome, FaceCount: fail.FaceCount, Message: fail.Message}, nil
	}

	region, box, err := faceRegion(img, det.Box)
	if err != nil {
		return nil, err
	}
	defer region.Close()

	metrics, err := quality.Analyze(&region, box, img.Cols(), img.Rows())
	if err != nil {
		return nil, err
	}

	if pass, reasons := metrics.Check(s.config.Strict); !pass {
		return &RegisterResult{
			Outcome:   OutcomeLowQuality,
			FaceCount: 1,
			Message:   "image quality below enrollment threshold",
			Metrics:   &metrics,
			Reasons:   reasons,
		}, nil
	}

	decision := s.gate.Evaluate(&region, det.Landmarks)
	if !decision.Approved {
		return &RegisterResult{
			Outcome:   OutcomeRejected,
			FaceCount: 1,
			Message:   decision.Message,
			Metrics:   &metrics,
			Reasons:   decision.Checks.Failed(),
			Decision:  &decision,
		}, nil
	}

	if err := verify.Validate(det.Embedding); err != nil {
		return nil, err
	}

	tmpl := &store.Template{
		ID:        uuid.New().String(),
		UserKey:   userKey,
		Embedding: det.Embedding,
		Quality:   metrics.Overall,
	}
	if err := s.faces.Save(tmpl); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}

	return &RegisterResult{
		Outcome:    OutcomeOK,
		FaceCount:  1,
		Message:    "face enrolled",
		Metrics:    &metrics,
		Decision:   &decision,
		TemplateID: tmpl.ID,
	}, nil
}

// Verify compares a fresh capture against the stored template for a
// user key using the adaptive match decision.
func (s *Service) Verify(userKey string, imageData []byte) (*VerifyResult, error) {
	if userKey == "" {
		return nil, fmt.Errorf("empty user key")
	}

	tmpl, err := s.faces.GetByUserKey(userKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &VerifyResult{
				Outcome: OutcomeNotEnrolled,
				Message: fmt.Sprintf("no face enrolled for %q", userKey),
			}, nil
		}
		return nil, err
	}

	img, err := imaging.Decode(imageData)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	det, fail, err := s.detectSingle(img)
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return &VerifyResult{Outcome: fail.Outcome, FaceCount: fail.FaceCount, Message: fail.Message}, nil
	}

	region, box, err := faceRegion(img, det.Box)
	if err != nil {
		return nil, err
	}
	defer region.Close()

	metrics, err := quality.Analyze(&region, box, img.Cols(), img.Rows())
	if err != nil {
		return nil, err
	}

	if pass, reasons := metrics.Check(s.config.Lenient); !pass {
		return &VerifyResult{
			Outcome:   OutcomeLowQuality,
			FaceCount: 1,
			Message:   "image quality below verification threshold",
			Metrics:   &metrics,
			Reasons:   reasons,
		}, nil
	}

	// A corrupt stored embedding surfaces here as a hard error,
	// distinct from a normal non-match.
	match, err := s.engine.CompareAdaptive(tmpl.Embedding, det.Embedding, verify.LightingSample{
		RawBrightness: metrics.RawBrightness,
		SharpnessVar:  metrics.RawSharpness,
	})
	if err != nil {
		return nil, err
	}

	message := "face does not match"
	if match.IsMatch {
		message = "face verified"
		if err := s.faces.RecordVerification(userKey, time.Now()); err != nil {
			return nil, fmt.Errorf("record verification: %w", err)
		}
	}

	return &VerifyResult{
		Outcome:   OutcomeOK,
		FaceCount: 1,
		Message:   message,
		Metrics:   &metrics,
		Match:     &match,
	}, nil
}

// QualityCheck analyzes a capture and reports its metrics and gate
// decision without touching enrollment state.
func (s *Service) QualityCheck(imageData []byte) (*QualityResult, error) {
	img, err := imaging.Decode(imageData)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	det, fail, err := s.detectSingle(img)
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return &QualityResult{Outcome: fail.Outcome, FaceCount: fail.FaceCount, Message: fail.Message}, nil
	}

	region, box, err := faceRegion(img, det.Box)
	if err != nil {
		return nil, err
	}
	defer region.Close()

	metrics, err := quality.Analyze(&region, box, img.Cols(), img.Rows())
	if err != nil {
		return nil, err
	}

	decision := s.gate.Evaluate(&region, det.Landmarks)

	return &QualityResult{
		Outcome:   OutcomeOK,
		FaceCount: 1,
		Message:   decision.Message,
		Metrics:   &metrics,
		Decision:  &decision,
	}, nil
}

// Remove deletes the stored template for a user key. It reports
// whether a template existed.
func (s *Service) Remove(userKey string) (bool, error) {
	return s.faces.Delete(userKey)
}

// Template returns the stored template for a user key.
func (s *Service) Template(userKey string) (*store.Template, error) {
	return s.faces.GetByUserKey(userKey)
}

// Templates lists all stored templates.
func (s *Service) Templates() ([]*store.Template, error) {
	return s.faces.List()
}

// singleFailure carries a zero-or-many faces precondition failure.
type singleFailure struct {
	Outcome   Outcome
	FaceCount int
	Message   string
}

// detectSingle runs detection and enforces the exactly-one-face
// precondition shared by every capture flow. A backend failure is a
// hard error; zero or many faces are normal rejection outcomes.
func (s *Service) detectSingle(img *gocv.Mat) (*detector.Detection, *singleFailure, error) {
	detections, err := s.detector.Detect(img)
	if err != nil {
		return nil, nil, fmt.Errorf("detect faces: %w", err)
	}

	switch len(detections) {
	case 0:
		return nil, &singleFailure{
			Outcome: OutcomeNoFace,
			Message: "no face detected in image",
		}, nil
	case 1:
		return &detections[0], nil, nil
	default:
		return nil, &singleFailure{
			Outcome:   OutcomeMultipleFaces,
			FaceCount: len(detections),
			Message:   fmt.Sprintf("%d faces detected, expected exactly one", len(detections)),
		}, nil
	}
}

// faceRegion extracts the face box from the image, clipped to the
// image bounds. The returned box is the clipped one.
func faceRegion(img *gocv.Mat, box detector.FaceBox) (gocv.Mat, detector.FaceBox, error) {
	clipped := detector.FaceBox{
		Top:    clampInt(box.Top, 0, img.Rows()),
		Bottom: clampInt(box.Bottom, 0, img.Rows()),
		Left:   clampInt(box.Left, 0, img.Cols()),
		Right:  clampInt(box.Right, 0, img.Cols()),
	}

	if clipped.Width() <= 0 || clipped.Height() <= 0 {
		return gocv.Mat{}, clipped, fmt.Errorf("face box %+v outside image %dx%d", box, img.Cols(), img.Rows())
	}

	region := img.Region(image.Rect(clipped.Left, clipped.Top, clipped.Right, clipped.Bottom))
	return region, clipped, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
