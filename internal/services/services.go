// package services defines the [AnalysisService] interface for the SportTrack.ai backend and its HTTP implementation.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/shared"
)

// AnalysisService defines the backend operations used by an upload cycle and the parameter panel.
type AnalysisService interface {
	// Upload sends the video as multipart field "video" and returns the server acknowledgement.
	Upload(ctx context.Context, file *models.VideoFile) (*models.UploadResult, error)

	// Progress returns the server-reported analysis progress for a video.
	Progress(ctx context.Context, videoID string) (*models.ProgressReport, error)

	// Analyze returns the pose analysis for a video.
	Analyze(ctx context.Context, videoID string) (*models.Analysis, error)

	// GetParameters returns the backend's current detection parameters.
	GetParameters(ctx context.Context) (*models.Parameters, error)

	// UpdateParameters replaces the backend's detection parameters.
	UpdateParameters(ctx context.Context, params models.Parameters) error

	// Reprocess re-runs detection on a previously uploaded video with the current parameters.
	Reprocess(ctx context.Context, videoID string) (*models.ReprocessResult, error)

	// Probe checks that a media URL (absolute or server-relative) is loadable.
	Probe(ctx context.Context, mediaURL string) error

	// Health checks that the backend is reachable.
	Health(ctx context.Context) error
}

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
	Kind       error
}

func (e *StatusError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel kind so callers can use [errors.Is].
func (e *StatusError) Unwrap() error { return e.Kind }

// ServerMessage returns the user-facing message carried by err when it is a [StatusError].
func ServerMessage(err error) (string, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message, true
	}
	return "", false
}

// SportTrackService implements [AnalysisService] over [APIService].
type SportTrackService struct {
	api *APIService
}

var _ AnalysisService = (*SportTrackService)(nil)

// NewSportTrackService creates a client for the backend at baseURL.
func NewSportTrackService(baseURL string, client *http.Client) *SportTrackService {
	return &SportTrackService{api: NewAPIService(baseURL, client)}
}

// API exposes the raw client.
func (s *SportTrackService) API() *APIService { return s.api }

// Upload implements [AnalysisService].
func (s *SportTrackService) Upload(ctx context.Context, file *models.VideoFile) (*models.UploadResult, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: no file provided", shared.ErrInvalidInput)
	}

	resp, err := s.api.PostFile(ctx, "/upload", "video", file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}
	if !resp.OK() {
		return nil, &StatusError{Op: "upload", StatusCode: resp.StatusCode, Message: resp.ErrorMessage("Upload failed"), Kind: shared.ErrUploadFailed}
	}

	var result models.UploadResult
	if err := resp.Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}

	return &result, nil
}

// Progress implements [AnalysisService].
func (s *SportTrackService) Progress(ctx context.Context, videoID string) (*models.ProgressReport, error) {
	resp, err := s.api.Get(ctx, "/progress/"+url.PathEscape(videoID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrProgressFailed, err)
	}
	if !resp.OK() {
		return nil, &StatusError{Op: "progress", StatusCode: resp.StatusCode, Message: resp.ErrorMessage("Failed to get progress"), Kind: shared.ErrProgressFailed}
	}

	var report models.ProgressReport
	if err := resp.Decode(&report); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrProgressFailed, err)
	}
	return &report, nil
}

// Analyze implements [AnalysisService].
func (s *SportTrackService) Analyze(ctx context.Context, videoID string) (*models.Analysis, error) {
	resp, err := s.api.Get(ctx, "/analyze/"+url.PathEscape(videoID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAnalysisFailed, err)
	}
	if !resp.OK() {
		return nil, &StatusError{Op: "analyze", StatusCode: resp.StatusCode, Message: resp.ErrorMessage("Failed to get analysis"), Kind: shared.ErrAnalysisFailed}
	}

	var analysis models.Analysis
	if err := resp.Decode(&analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAnalysisFailed, err)
	}
	return &analysis, nil
}

// GetParameters implements [AnalysisService].
func (s *SportTrackService) GetParameters(ctx context.Context) (*models.Parameters, error) {
	resp, err := s.api.Get(ctx, "/parameters")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return nil, &StatusError{Op: "parameters", StatusCode: resp.StatusCode, Message: resp.ErrorMessage("Failed to load parameters"), Kind: shared.ErrAPIRequest}
	}

	var params models.Parameters
	if err := resp.Decode(&params); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return &params, nil
}

// UpdateParameters implements [AnalysisService].
func (s *SportTrackService) UpdateParameters(ctx context.Context, params models.Parameters) error {
	resp, err := s.api.PostJSON(ctx, "/parameters", params)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return &StatusError{Op: "update parameters", StatusCode: resp.StatusCode, Message: "Failed to update parameters", Kind: shared.ErrAPIRequest}
	}
	return nil
}

// Reprocess implements [AnalysisService].
func (s *SportTrackService) Reprocess(ctx context.Context, videoID string) (*models.ReprocessResult, error) {
	resp, err := s.api.Post(ctx, "/reprocess/"+url.PathEscape(videoID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrReprocessFailed, err)
	}
	if !resp.OK() {
		return nil, &StatusError{Op: "reprocess", StatusCode: resp.StatusCode, Message: "Failed to reprocess video", Kind: shared.ErrReprocessFailed}
	}

	var result models.ReprocessResult
	if err := resp.Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrReprocessFailed, err)
	}
	if result.ProcessedURL == "" {
		return nil, fmt.Errorf("%w: response is missing processed_url", shared.ErrReprocessFailed)
	}
	return &result, nil
}

// Probe implements [AnalysisService].
func (s *SportTrackService) Probe(ctx context.Context, mediaURL string) error {
	target, err := shared.ResolveURL(s.api.BaseURL(), mediaURL)
	if err != nil {
		return err
	}

	resp, err := s.api.Head(ctx, target)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrVideoNotFound, err)
	}
	if !resp.OK() {
		return &StatusError{Op: "probe", StatusCode: resp.StatusCode, Message: fmt.Sprintf("media returned status %d", resp.StatusCode), Kind: shared.ErrVideoNotFound}
	}
	return nil
}

// Health implements [AnalysisService].
func (s *SportTrackService) Health(ctx context.Context) error {
	resp, err := s.api.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}
