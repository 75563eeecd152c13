package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrUploadFailed       = fmt.Errorf("upload failed")
	ErrAnalysisFailed     = fmt.Errorf("analysis failed")
	ErrProgressFailed     = fmt.Errorf("progress reporting failed")
	ErrReprocessFailed    = fmt.Errorf("reprocess failed")
	ErrVideoNotFound      = fmt.Errorf("video not found")

	// Session errors
	ErrNoVideo        = fmt.Errorf("no video to reprocess")
	ErrCycleCancelled = fmt.Errorf("upload cycle cancelled")
	ErrApplyCancelled = fmt.Errorf("parameter apply cancelled")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
