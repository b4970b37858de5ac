package api

import (
	"errors"
	"net/http"

	"github.com/renderix/facegate/internal/face"
	"github.com/renderix/facegate/internal/imaging"
	"github.com/renderix/facegate/internal/ratelimit"
)

// QualityHandler handles HTTP requests for standalone capture quality
// analysis.
type QualityHandler struct {
	service *face.Service
	limiter *ratelimit.Limiter
}

// NewQualityHandler creates a new QualityHandler with the given
// service and rate limiter.
func NewQualityHandler(s *face.Service, l *ratelimit.Limiter) *QualityHandler {
	return &QualityHandler{service: s, limiter: l}
}

// ServeHTTP handles POST /api/face/quality-check.
func (h *QualityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, data := decodeCapture(w, r, false)
	if req == nil {
		return
	}

	if !checkRate(w, r, h.limiter, req.UserID) {
		return
	}

	result, err := h.service.QualityCheck(data)
	if err != nil {
		if errors.Is(err, imaging.ErrInvalidImage) {
			writeError(w, http.StatusBadRequest, "Invalid image data")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to analyze image")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
