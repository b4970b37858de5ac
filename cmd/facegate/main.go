package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/renderix/facegate/internal/detector"
	"github.com/renderix/facegate/internal/face"
	"github.com/renderix/facegate/internal/ratelimit"
	"github.com/renderix/facegate/internal/server"
	"github.com/renderix/facegate/internal/store"
)

func main() {
	fmt.Println("Facegate - Face Verification Service")

	// Initialize the store
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dataDir := filepath.Join(homeDir, ".facegate")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "facegate.db")
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	det := newDetector()
	defer det.Close()

	svc, err := face.NewService(det, st.Faces(), face.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to initialize face service: %v", err)
	}

	// Find web directory
	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	// Configure and start server
	cfg := server.Config{
		StaticDir: webDir,
		Service:   svc,
		Limiter:   ratelimit.New(ratelimit.DefaultMinInterval),
	}

	srv := server.New(cfg)

	addr := ":8000"
	fmt.Printf("Starting server on %s\n", addr)
	if err := srv.ListenAndServe(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// newDetector prefers the Python face_recognition backend and falls
// back to the mock detector when its service script is not installed.
func newDetector() detector.Detector {
	det, err := detector.NewFaceRecDetector(detector.DefaultConfig())
	if err != nil {
		log.Printf("face_recognition backend unavailable (%v), using mock detector", err)
		return detector.NewMockDetector()
	}
	return det
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.facegate/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".facegate", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
