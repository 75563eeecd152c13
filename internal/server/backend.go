package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/sporttrack/internal/models"
)

// MaxUploadSize caps POST /upload bodies.
const MaxUploadSize = 100 << 20

var allowedExtensions = map[string]bool{"mp4": true, "avi": true, "mov": true, "mkv": true}

// Backend is a stand-in for the SportTrack.ai analysis server.
//
// It stores uploads under MediaDir, "processes" them by copying the original and reports staged progress.
// No pose detection is performed; GET /analyze always returns the same demo analysis.
type Backend struct {
	mediaDir  string
	stepDelay time.Duration
	logger    *log.Logger

	jobs     *tracker
	upgrader websocket.Upgrader
	router   *Router

	mu     sync.Mutex
	params models.Parameters

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// BackendOpts configures a [Backend]. Zero fields get defaults.
type BackendOpts struct {
	MediaDir  string // Defaults to a temp directory
	StepDelay time.Duration
	Logger    *log.Logger
}

// NewBackend creates the stub backend and its media directories.
func NewBackend(opts BackendOpts) (*Backend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	dir := opts.MediaDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "sporttrack-media-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create media dir: %w", err)
		}
		dir = tmp
	}
	for _, sub := range []string{"uploads", "processed"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create media dir: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		mediaDir:  dir,
		stepDelay: opts.StepDelay,
		logger:    logger,
		jobs:      newTracker(),
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		params:    models.DefaultParameters(),
		ctx:       ctx,
		cancel:    cancel,
	}
	b.routes()
	return b, nil
}

// MediaDir returns the directory holding uploads/ and processed/.
func (b *Backend) MediaDir() string { return b.mediaDir }

// ServeHTTP implements [http.Handler].
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// Close stops in-flight progress reporting and waits for it to finish.
func (b *Backend) Close() {
	b.cancel()
	b.wg.Wait()
}

func (b *Backend) routes() {
	r := NewRouter()
	r.Use(LogRequests(b.logger))

	r.Handle("/upload", b.handleUpload, http.MethodPost)
	r.Handle("/progress/{id}", b.handleProgress, http.MethodGet)
	r.Handle("/ws/progress/{id}", b.handleProgressStream, http.MethodGet)
	r.Handle("/analyze/{id}", b.handleAnalyze, http.MethodGet)
	r.Handle("/parameters", b.handleGetParameters, http.MethodGet)
	r.Handle("/parameters", b.handleUpdateParameters, http.MethodPost)
	r.Handle("/reprocess/{id}", b.handleReprocess, http.MethodPost)
	r.Handle("/health", b.handleHealth, http.MethodGet)
	r.Handle("/debug/video/{id}", b.handleDebugVideo, http.MethodGet)
	r.Handle("/static/uploads/{file}", b.serveMedia("uploads"), http.MethodGet, http.MethodHead)
	r.Handle("/static/processed/{file}", b.serveMedia("processed"), http.MethodGet, http.MethodHead)

	b.router = r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorBody{Error: msg})
}

func (b *Backend) originalName(id, ext string) string  { return id + "_original." + ext }
func (b *Backend) processedName(id, ext string) string { return id + "_processed." + ext }

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	file, header, err := r.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No video file provided")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if header.Filename == "" || name == "." {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if !allowedExtensions[ext] {
		writeError(w, http.StatusBadRequest, "Invalid file type. Please upload MP4, AVI, MOV, or MKV files.")
		return
	}

	id := uuid.NewString()
	original := filepath.Join(b.mediaDir, "uploads", b.originalName(id, ext))
	if err := saveFile(original, file); err != nil {
		b.logger.Error("failed to save upload", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Processing failed: "+err.Error())
		return
	}

	size, err := b.process(id, ext)
	if err != nil {
		b.logger.Error("failed to process upload", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process video")
		return
	}
	if size == 0 {
		writeError(w, http.StatusInternalServerError, "Processed video file is empty or missing")
		return
	}

	b.jobs.add(id, ext)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.jobs.run(b.ctx, id, b.stepDelay)
	}()

	b.logger.Info("video uploaded", "id", id, "name", name, "bytes", size)
	writeJSON(w, http.StatusOK, models.UploadResult{
		Success:      true,
		VideoID:      id,
		OriginalURL:  "/static/uploads/" + b.originalName(id, ext),
		ProcessedURL: "/static/processed/" + b.processedName(id, ext),
	})
}

// process writes the processed copy of an original upload and returns its size.
func (b *Backend) process(id, ext string) (int64, error) {
	src, err := os.Open(filepath.Join(b.mediaDir, "uploads", b.originalName(id, ext)))
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst := filepath.Join(b.mediaDir, "processed", b.processedName(id, ext))
	if err := saveFile(dst, src); err != nil {
		return 0, err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func saveFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (b *Backend) handleProgress(w http.ResponseWriter, r *http.Request) {
	report, ok := b.jobs.get(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ProgressReport{Stage: "unknown", Progress: 0, Message: "Video not found"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (b *Backend) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, updates, unsubscribe, ok := b.jobs.subscribe(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ProgressReport{Stage: "unknown", Progress: 0, Message: "Video not found"})
		return
	}
	defer unsubscribe()

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "id", id, "error", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(current); err != nil || current.Done() {
		return
	}

	for {
		select {
		case <-b.ctx.Done():
			return
		case report, ok := <-updates:
			if !ok {
				if final, found := b.jobs.get(id); found && final.Done() {
					_ = conn.WriteJSON(final)
				}
				return
			}
			if err := conn.WriteJSON(report); err != nil {
				b.logger.Debug("progress stream closed", "id", id, "error", err)
				return
			}
			if report.Done() {
				return
			}
		}
	}
}

// demoAnalysis is the fixed analysis served for every video. technique_score is nested under key_metrics.
func demoAnalysis(id string) map[string]any {
	return map[string]any{
		"video_id":                  id,
		"pose_detection_confidence": 0.87,
		"total_frames_analyzed":     450,
		"poses_detected":            442,
		"detection_rate":            98.2,
		"key_metrics": map[string]any{
			"average_pose_confidence": 0.89,
			"body_symmetry_score":     0.78,
			"movement_consistency":    0.82,
			"technique_score":         0.75,
		},
		"recommendations": []string{
			"Maintain consistent arm positioning throughout the movement",
			"Focus on hip alignment for better balance",
			"Consider working on shoulder stability",
		},
	}
}

func (b *Backend) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, demoAnalysis(mux.Vars(r)["id"]))
}

// Parameters returns the backend's current detection parameters.
func (b *Backend) Parameters() models.Parameters {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

func (b *Backend) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.Parameters())
}

// handleUpdateParameters merges the posted keys into the current parameters.
func (b *Backend) handleUpdateParameters(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	next := b.params
	err := json.NewDecoder(r.Body).Decode(&next)
	if err == nil {
		b.params = next
	}
	b.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update parameters: "+err.Error())
		return
	}

	b.logger.Info("parameters updated", "params", next)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "params": next})
}

func (b *Backend) handleReprocess(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ext, ok := b.jobs.ext(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Original video not found")
		return
	}

	if _, err := b.process(id, ext); err != nil {
		b.logger.Error("reprocess failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Reprocessing failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.ReprocessResult{
		Success:      true,
		ProcessedURL: "/static/processed/" + b.processedName(id, ext),
	})
}

func (b *Backend) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "SportTrack.ai"})
}

func (b *Backend) handleDebugVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ext, ok := b.jobs.ext(id)
	if !ok {
		ext = "mp4"
	}

	stat := func(dir, name string) (bool, int64) {
		info, err := os.Stat(filepath.Join(b.mediaDir, dir, name))
		if err != nil {
			return false, 0
		}
		return true, info.Size()
	}
	origExists, origSize := stat("uploads", b.originalName(id, ext))
	procExists, procSize := stat("processed", b.processedName(id, ext))

	writeJSON(w, http.StatusOK, map[string]any{
		"video_id":         id,
		"original_exists":  origExists,
		"processed_exists": procExists,
		"original_size":    origSize,
		"processed_size":   procSize,
		"original_url":     "/static/uploads/" + b.originalName(id, ext),
		"processed_url":    "/static/processed/" + b.processedName(id, ext),
	})
}

// serveMedia serves files from one media subdirectory as video/mp4.
func (b *Backend) serveMedia(sub string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(mux.Vars(r)["file"])
		path := filepath.Join(b.mediaDir, sub, name)
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "video/mp4")
		http.ServeFile(w, r, path)
	}
}
