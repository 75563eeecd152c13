// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/sporttrack/internal/models"
)

// MockAnalysisService is a test double for [services.AnalysisService].
//
// Each operation calls its Func field when set; otherwise it returns a canned success.
// Calls are recorded by operation name and are safe for concurrent use.
type MockAnalysisService struct {
	UploadFunc           func(ctx context.Context, file *models.VideoFile) (*models.UploadResult, error)
	ProgressFunc         func(ctx context.Context, videoID string) (*models.ProgressReport, error)
	AnalyzeFunc          func(ctx context.Context, videoID string) (*models.Analysis, error)
	GetParametersFunc    func(ctx context.Context) (*models.Parameters, error)
	UpdateParametersFunc func(ctx context.Context, params models.Parameters) error
	ReprocessFunc        func(ctx context.Context, videoID string) (*models.ReprocessResult, error)
	ProbeFunc            func(ctx context.Context, mediaURL string) error
	HealthFunc           func(ctx context.Context) error
	StreamProgressFunc   func(ctx context.Context, videoID string, fn func(models.ProgressReport)) error

	mu    sync.Mutex
	calls []string
}

func (m *MockAnalysisService) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns the recorded calls in order, formatted as "Op" or "Op:arg".
func (m *MockAnalysisService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many recorded calls start with prefix.
func (m *MockAnalysisService) CallCount(prefix string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (m *MockAnalysisService) Upload(ctx context.Context, file *models.VideoFile) (*models.UploadResult, error) {
	name := ""
	if file != nil {
		name = file.Name
	}
	m.record("Upload:" + name)
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, file)
	}
	return SampleUpload("vid-1"), nil
}

func (m *MockAnalysisService) Progress(ctx context.Context, videoID string) (*models.ProgressReport, error) {
	m.record("Progress:" + videoID)
	if m.ProgressFunc != nil {
		return m.ProgressFunc(ctx, videoID)
	}
	return &models.ProgressReport{Progress: 100, Message: "Analysis complete!", Stage: models.StageComplete}, nil
}

func (m *MockAnalysisService) Analyze(ctx context.Context, videoID string) (*models.Analysis, error) {
	m.record("Analyze:" + videoID)
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, videoID)
	}
	a := SampleAnalysis()
	return &a, nil
}

func (m *MockAnalysisService) GetParameters(ctx context.Context) (*models.Parameters, error) {
	m.record("GetParameters")
	if m.GetParametersFunc != nil {
		return m.GetParametersFunc(ctx)
	}
	p := models.DefaultParameters()
	return &p, nil
}

func (m *MockAnalysisService) UpdateParameters(ctx context.Context, params models.Parameters) error {
	m.record("UpdateParameters")
	if m.UpdateParametersFunc != nil {
		return m.UpdateParametersFunc(ctx, params)
	}
	return nil
}

func (m *MockAnalysisService) Reprocess(ctx context.Context, videoID string) (*models.ReprocessResult, error) {
	m.record("Reprocess:" + videoID)
	if m.ReprocessFunc != nil {
		return m.ReprocessFunc(ctx, videoID)
	}
	return &models.ReprocessResult{Success: true, ProcessedURL: "/static/processed/" + videoID + ".mp4"}, nil
}

func (m *MockAnalysisService) Probe(ctx context.Context, mediaURL string) error {
	m.record("Probe:" + mediaURL)
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, mediaURL)
	}
	return nil
}

func (m *MockAnalysisService) Health(ctx context.Context) error {
	m.record("Health")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// StreamProgress pushes a single complete report unless StreamProgressFunc is set.
func (m *MockAnalysisService) StreamProgress(ctx context.Context, videoID string, fn func(models.ProgressReport)) error {
	m.record("StreamProgress:" + videoID)
	if m.StreamProgressFunc != nil {
		return m.StreamProgressFunc(ctx, videoID, fn)
	}
	fn(models.ProgressReport{Progress: 100, Message: "Analysis complete!", Stage: models.StageComplete})
	return nil
}

// SampleUpload returns a successful upload acknowledgement for id.
func SampleUpload(id string) *models.UploadResult {
	return &models.UploadResult{
		Success:      true,
		VideoID:      id,
		OriginalURL:  "/static/original/" + id + ".mp4",
		ProcessedURL: "/static/processed/" + id + ".mp4",
		Duration:     15,
		FrameCount:   450,
		FPS:          30,
	}
}

// SampleAnalysis returns an analysis that differs from [models.FallbackAnalysis].
func SampleAnalysis() models.Analysis {
	return models.Analysis{
		PoseDetectionConfidence: 0.912,
		DetectionRate:           90,
		PosesDetected:           270,
		TechniqueScore:          0.64,
		Recommendations:         []string{"Keep your knees soft on landing"},
	}
}

// WriteVideo writes a small placeholder file named name into a temp dir and returns its [models.VideoFile].
func WriteVideo(t *testing.T, name, mediaType string) *models.VideoFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("placeholder video bytes"), 0644); err != nil {
		t.Fatalf("Failed to write video %s: %v", path, err)
	}
	return &models.VideoFile{Path: path, Name: name, Type: mediaType, Size: 23}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
