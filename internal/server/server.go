// Package server provides the HTTP server for the Facegate face verification service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/renderix/facegate/internal/face"
	"github.com/renderix/facegate/internal/ratelimit"
	"github.com/renderix/facegate/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Service   *face.Service
	Limiter   *ratelimit.Limiter
}

// Server represents the HTTP server for the Facegate application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Service != nil {
		faceHandler := api.NewFaceHandler(s.config.Service)
		qualityHandler := api.NewQualityHandler(s.config.Service, s.config.Limiter)

		faceRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/face/quality-check" {
				qualityHandler.ServeHTTP(w, r)
				return
			}
			faceHandler.ServeHTTP(w, r)
		})

		s.mux.Handle("/api/face", faceRouter)
		s.mux.Handle("/api/face/", faceRouter)

		streamHandler := NewQualityStreamHandler(s.config.Service)
		s.mux.Handle("/api/quality-stream", streamHandler)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
