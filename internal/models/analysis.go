package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Stages reported by GET /progress/{id} that end polling.
const (
	StageComplete = "complete"
	StageError    = "error"
)

// UploadResult is the success payload of POST /upload.
type UploadResult struct {
	Success      bool    `json:"success"`
	VideoID      string  `json:"video_id"`
	OriginalURL  string  `json:"original_url"`
	ProcessedURL string  `json:"processed_url"`
	Duration     float64 `json:"duration,omitempty"`
	FrameCount   int     `json:"frame_count,omitempty"`
	FPS          float64 `json:"fps,omitempty"`
}

// Validate checks the fields the client depends on.
func (u UploadResult) Validate() error {
	if u.VideoID == "" {
		return fmt.Errorf("upload response is missing video_id")
	}
	if u.OriginalURL == "" || u.ProcessedURL == "" {
		return fmt.Errorf("upload response is missing media URLs")
	}
	return nil
}

// ProgressReport is the payload of GET /progress/{id}.
type ProgressReport struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	Stage    string  `json:"stage"`
}

// Done reports whether the stage ends polling.
func (p ProgressReport) Done() bool {
	return p.Stage == StageComplete || p.Stage == StageError
}

// KeyMetrics is the nested metrics block some backends return alongside the flat fields.
type KeyMetrics struct {
	AveragePoseConfidence float64  `json:"average_pose_confidence"`
	BodySymmetryScore     float64  `json:"body_symmetry_score"`
	MovementConsistency   float64  `json:"movement_consistency"`
	TechniqueScore        *float64 `json:"technique_score,omitempty"`
}

// Analysis is the payload of GET /analyze/{id}.
type Analysis struct {
	VideoID                 string      `json:"video_id,omitempty"`
	PoseDetectionConfidence float64     `json:"pose_detection_confidence"`
	DetectionRate           float64     `json:"detection_rate"`
	PosesDetected           int         `json:"poses_detected"`
	TotalFramesAnalyzed     int         `json:"total_frames_analyzed,omitempty"`
	TechniqueScore          float64     `json:"technique_score"`
	Recommendations         []string    `json:"recommendations"`
	KeyMetrics              *KeyMetrics `json:"key_metrics,omitempty"`
}

// UnmarshalJSON decodes an analysis, taking technique_score from key_metrics when the flat field is absent.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	type plain Analysis
	var raw struct {
		plain
		TechniqueScore *float64 `json:"technique_score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = Analysis(raw.plain)
	switch {
	case raw.TechniqueScore != nil:
		a.TechniqueScore = *raw.TechniqueScore
	case a.KeyMetrics != nil && a.KeyMetrics.TechniqueScore != nil:
		a.TechniqueScore = *a.KeyMetrics.TechniqueScore
	}
	return nil
}

// FallbackAnalysis returns the fixed placeholder payload rendered when GET /analyze fails.
func FallbackAnalysis() Analysis {
	return Analysis{
		PoseDetectionConfidence: 0.87,
		DetectionRate:           98.2,
		PosesDetected:           442,
		TechniqueScore:          0.75,
		Recommendations: []string{
			"Maintain consistent arm positioning throughout the movement",
			"Focus on hip alignment for better balance",
			"Consider working on shoulder stability",
		},
	}
}

// ReprocessResult is the payload of POST /reprocess/{id}.
type ReprocessResult struct {
	Success      bool   `json:"success"`
	ProcessedURL string `json:"processed_url"`
}

// ErrorBody is the error envelope returned by the backend on non-success responses.
type ErrorBody struct {
	Error string `json:"error"`
}

// Parameter names, matching the JSON keys of [Parameters].
const (
	ParamMinDetectionConfidence      = "min_detection_confidence"
	ParamMinTrackingConfidence       = "min_tracking_confidence"
	ParamModelComplexity             = "model_complexity"
	ParamLandmarkVisibilityThreshold = "landmark_visibility_threshold"
	ParamConfidentLandmarksThreshold = "confident_landmarks_threshold"
	ParamStabilityRatio              = "stability_ratio"
)

// ParameterNames lists the tunable parameters in panel order.
var ParameterNames = []string{
	ParamMinDetectionConfidence,
	ParamMinTrackingConfidence,
	ParamModelComplexity,
	ParamLandmarkVisibilityThreshold,
	ParamConfidentLandmarksThreshold,
	ParamStabilityRatio,
}

// Parameters are the tunable pose-detection settings exchanged with /parameters.
type Parameters struct {
	MinDetectionConfidence      float64 `json:"min_detection_confidence"`
	MinTrackingConfidence       float64 `json:"min_tracking_confidence"`
	ModelComplexity             int     `json:"model_complexity"`
	LandmarkVisibilityThreshold float64 `json:"landmark_visibility_threshold"`
	ConfidentLandmarksThreshold int     `json:"confident_landmarks_threshold"`
	StabilityRatio              float64 `json:"stability_ratio"`
}

// DefaultParameters returns the built-in parameter set restored by a panel reset.
func DefaultParameters() Parameters {
	return Parameters{
		MinDetectionConfidence:      0.4,
		MinTrackingConfidence:       0.3,
		ModelComplexity:             1,
		LandmarkVisibilityThreshold: 0.4,
		ConfidentLandmarksThreshold: 6,
		StabilityRatio:              0.4,
	}
}

// Get returns the display form of the named parameter.
func (p Parameters) Get(name string) (string, bool) {
	switch name {
	case ParamMinDetectionConfidence:
		return FormatNumber(p.MinDetectionConfidence), true
	case ParamMinTrackingConfidence:
		return FormatNumber(p.MinTrackingConfidence), true
	case ParamModelComplexity:
		return strconv.Itoa(p.ModelComplexity), true
	case ParamLandmarkVisibilityThreshold:
		return FormatNumber(p.LandmarkVisibilityThreshold), true
	case ParamConfidentLandmarksThreshold:
		return strconv.Itoa(p.ConfidentLandmarksThreshold), true
	case ParamStabilityRatio:
		return FormatNumber(p.StabilityRatio), true
	default:
		return "", false
	}
}

// Set parses value into the named parameter.
//
// Integer parameters reject fractional input and float parameters reject NaN and infinities;
// no range checks are applied.
func (p *Parameters) Set(name, value string) error {
	if _, ok := p.Get(name); !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}

	switch name {
	case ParamModelComplexity, ParamConfidentLandmarksThreshold:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", name, err)
		}
		if name == ParamModelComplexity {
			p.ModelComplexity = n
		} else {
			p.ConfidentLandmarksThreshold = n
		}
		return nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s must be a number: %w", name, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%s must be a finite number, got %q", name, value)
	}

	switch name {
	case ParamMinDetectionConfidence:
		p.MinDetectionConfidence = f
	case ParamMinTrackingConfidence:
		p.MinTrackingConfidence = f
	case ParamLandmarkVisibilityThreshold:
		p.LandmarkVisibilityThreshold = f
	case ParamStabilityRatio:
		p.StabilityRatio = f
	}
	return nil
}

// FormatNumber renders f in its shortest decimal form ("98.2", "1", "0.4").
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
