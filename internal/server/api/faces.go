// Package api provides HTTP API handlers for the Facegate face verification service.
package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/renderix/facegate/internal/face"
	"github.com/renderix/facegate/internal/imaging"
	"github.com/renderix/facegate/internal/ratelimit"
	"github.com/renderix/facegate/internal/store"
)

// FaceHandler handles HTTP requests for face enrollment and verification.
// Enrollment and verification are not rate-gated: the gate exists to
// damp quality-check polling, and these endpoints are called once per
// user action.
type FaceHandler struct {
	service *face.Service
}

// NewFaceHandler creates a new FaceHandler with the given service.
func NewFaceHandler(s *face.Service) *FaceHandler {
	return &FaceHandler{service: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *FaceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/face/register, /api/face/verify,
	// /api/face/{user_id}
	path := strings.TrimPrefix(r.URL.Path, "/api/face")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "register":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.register(w, r)
	case "verify":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.verify(w, r)
	case "":
		http.NotFound(w, r)
	default:
		// Item endpoint: /api/face/{user_id}
		userKey := path
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, userKey)
		case http.MethodDelete:
			h.delete(w, r, userKey)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// Request and response types

type captureRequest struct {
	UserID string `json:"user_id"`
	Image  string `json:"image"`
}

type templateResponse struct {
	UserID            string  `json:"user_id"`
	TemplateID        string  `json:"template_id"`
	Quality           float64 `json:"quality"`
	CreatedAt         string  `json:"created_at"`
	LastVerifiedAt    string  `json:"last_verified_at,omitempty"`
	VerificationCount int     `json:"verification_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type rateLimitedResponse struct {
	Error      string  `json:"error"`
	RetryAfter float64 `json:"retry_after"`
}

// toTemplateResponse converts a store.Template to its API shape. The
// embedding itself is never exposed over the wire.
func toTemplateResponse(t *store.Template) templateResponse {
	resp := templateResponse{
		UserID:            t.UserKey,
		TemplateID:        t.ID,
		Quality:           t.Quality,
		CreatedAt:         t.CreatedAt.Format(time.RFC3339),
		VerificationCount: t.VerificationCount,
	}
	if t.LastVerifiedAt != nil {
		resp.LastVerifiedAt = t.LastVerifiedAt.Format(time.RFC3339)
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// clientKey picks the rate limit key: the caller-supplied user id,
// then the X-User-Id header, then the remote address.
func clientKey(userID string, r *http.Request) string {
	if userID != "" {
		return userID
	}
	if id := r.Header.Get("X-User-Id"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// checkRate applies the rate limiter and writes the 429 response on
// rejection. It reports whether the request may proceed.
func checkRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.Limiter, userID string) bool {
	if limiter == nil {
		return true
	}

	ok, retryAfter := limiter.Allow(clientKey(userID, r))
	if !ok {
		writeJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
			Error:      "Too many requests",
			RetryAfter: retryAfter.Seconds(),
		})
		return false
	}
	return true
}

// decodeCapture parses and validates a capture request body. A nil
// return means the error response has already been written.
func decodeCapture(w http.ResponseWriter, r *http.Request, requireUser bool) (*captureRequest, []byte) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return nil, nil
	}

	if requireUser && req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return nil, nil
	}
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, "image is required")
		return nil, nil
	}

	data, err := imaging.DecodeBase64(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image encoding")
		return nil, nil
	}

	return &req, data
}

// register handles POST /api/face/register and enrolls a face.
func (h *FaceHandler) register(w http.ResponseWriter, r *http.Request) {
	req, data := decodeCapture(w, r, true)
	if req == nil {
		return
	}

	result, err := h.service.Register(req.UserID, data)
	if err != nil {
		if errors.Is(err, imaging.ErrInvalidImage) {
			writeError(w, http.StatusBadRequest, "Invalid image data")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to register face")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// verify handles POST /api/face/verify and checks a capture against
// the enrolled template.
func (h *FaceHandler) verify(w http.ResponseWriter, r *http.Request) {
	req, data := decodeCapture(w, r, true)
	if req == nil {
		return
	}

	result, err := h.service.Verify(req.UserID, data)
	if err != nil {
		if errors.Is(err, imaging.ErrInvalidImage) {
			writeError(w, http.StatusBadRequest, "Invalid image data")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify face")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// get handles GET /api/face/{user_id} and returns enrollment metadata.
func (h *FaceHandler) get(w http.ResponseWriter, r *http.Request, userKey string) {
	tmpl, err := h.service.Template(userKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Face not enrolled")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get face")
		return
	}

	writeJSON(w, http.StatusOK, toTemplateResponse(tmpl))
}

// delete handles DELETE /api/face/{user_id} and removes the template.
func (h *FaceHandler) delete(w http.ResponseWriter, r *http.Request, userKey string) {
	existed, err := h.service.Remove(userKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete face")
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "Face not enrolled")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
