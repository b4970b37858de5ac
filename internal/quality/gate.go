package quality

import (
	"strings"

	"gocv.io/x/gocv"

	"github.com/renderix/facegate/internal/detector"
)

// Gate combines the five heuristics into an enrollment decision.
type Gate struct {
	heuristics Heuristics
}

// NewGate creates a Gate with the given heuristic constants.
func NewGate(h Heuristics) *Gate {
	return &Gate{heuristics: h}
}

// Decision is the outcome of an enrollment quality evaluation.
// Approved is true exactly when every check passed; any check that
// could not be computed has already been resolved to its default
// boolean, so no tri-valued state survives here.
type Decision struct {
	Approved bool     `json:"approved"`
	Checks   Checks   `json:"checks"`
	Lighting Lighting `json:"lighting"`
	Message  string   `json:"message"`
}

// Evaluate runs all checks over a face region and its landmarks and
// produces the combined decision. A rejection always names the failing
// checks so the caller can give actionable feedback.
func (g *Gate) Evaluate(region *gocv.Mat, landmarks detector.LandmarkSet) Decision {
	checks, lighting := g.heuristics.Evaluate(region, landmarks)

	d := Decision{
		Approved: checks.All(),
		Checks:   checks,
		Lighting: lighting,
	}

	if d.Approved {
		d.Message = "face meets all enrollment requirements"
	} else {
		d.Message = "face validation failed: " + strings.Join(checks.Failed(), ", ")
	}

	return d
}
