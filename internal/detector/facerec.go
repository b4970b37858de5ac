package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// FaceRecDetector implements Detector using a Python face_recognition subprocess.
type FaceRecDetector struct {
	config    Config
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewFaceRecDetector creates a new face_recognition detector.
// The Python process is started lazily on first detection.
func NewFaceRecDetector(config Config) (*FaceRecDetector, error) {
	scriptPath := findFaceRecScript()
	if scriptPath == "" {
		return nil, fmt.Errorf("facerec_service.py not found")
	}

	return &FaceRecDetector{
		config: config,
	}, nil
}

// Detect analyzes an image and returns detected faces with landmarks
// and embeddings.
func (d *FaceRecDetector) Detect(img *gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	// Encode image as JPEG
	buf, err := gocv.IMEncode(".jpg", *img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	// Read JSON response
	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Faces []jsonFace `json:"faces"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := make([]Detection, 0, len(response.Faces))
	for _, f := range response.Faces {
		if f.Score < d.config.MinConfidence && f.Score > 0 {
			continue
		}
		result = append(result, f.toDetection())
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return result, nil
}

// Close shuts down the Python process.
func (d *FaceRecDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *FaceRecDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	scriptPath := findFaceRecScript()
	if scriptPath == "" {
		return fmt.Errorf("facerec_service.py not found")
	}

	// Use virtual environment Python if available
	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, scriptPath,
		fmt.Sprintf("--upsample=%d", d.config.Upsample),
		fmt.Sprintf("--jitters=%d", d.config.Jitters),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start facerec service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	return nil
}

func (d *FaceRecDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *FaceRecDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(30*time.Second, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func findFaceRecScript() string {
	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/facerec_service.py",
		"../scripts/facerec_service.py",
		filepath.Join(execDir, "scripts/facerec_service.py"),
		filepath.Join(os.Getenv("HOME"), ".facegate/scripts/facerec_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
// It checks for venv/bin/python relative to the project directory.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".facegate/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonFace represents the JSON structure from the Python service.
type jsonFace struct {
	Box       jsonBox                `json:"box"`
	Landmarks map[string][]jsonPoint `json:"landmarks"`
	Embedding []float64              `json:"embedding"`
	Score     float64                `json:"score"`
}

type jsonBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (f jsonFace) toDetection() Detection {
	det := Detection{
		Box: FaceBox{
			Top:    f.Box.Top,
			Right:  f.Box.Right,
			Bottom: f.Box.Bottom,
			Left:   f.Box.Left,
		},
		Embedding: Embedding(f.Embedding),
		Score:     f.Score,
	}

	if len(f.Landmarks) > 0 {
		det.Landmarks = make(LandmarkSet, len(f.Landmarks))
		for group, pts := range f.Landmarks {
			points := make([]Point2D, len(pts))
			for i, p := range pts {
				points[i] = Point2D{X: p.X, Y: p.Y}
			}
			det.Landmarks[group] = points
		}
		// The Python service reports landmarks in image coordinates;
		// consumers expect them local to the face box.
		det.Landmarks = det.Landmarks.Offset(-float64(f.Box.Left), -float64(f.Box.Top))
	}

	return det
}
