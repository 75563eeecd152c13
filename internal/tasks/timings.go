package tasks

import (
	"context"
	"time"

	"github.com/desertthunder/sporttrack/internal/shared"
)

// Timings holds the presentation delays of an upload cycle and the parameter panel.
//
// None of them are semantically required; they pace the view so a user can follow it.
type Timings struct {
	UploadStepDelay   time.Duration // Per 10% step of the simulated upload
	PollInterval      time.Duration // Spacing of GET /progress requests
	RenderDelay       time.Duration // Pause between the analysis result and rendering
	ReloadDelay       time.Duration // Wait before the single processed-video retry
	ErrorDismissDelay time.Duration // Lifetime of a transient error; <= 0 keeps it until reset
	FeedbackDelay     time.Duration // How long "Applied Successfully!" stays on the button
	SimulationScale   float64       // Multiplier for the simulated analysis step delays
}

// DefaultTimings returns the stock pacing.
func DefaultTimings() Timings {
	return Timings{
		UploadStepDelay:   100 * time.Millisecond,
		PollInterval:      500 * time.Millisecond,
		RenderDelay:       500 * time.Millisecond,
		ReloadDelay:       time.Second,
		ErrorDismissDelay: 5 * time.Second,
		FeedbackDelay:     2 * time.Second,
		SimulationScale:   1,
	}
}

// TimingsFromConfig reads the [analysis] section of cfg.
func TimingsFromConfig(cfg *shared.Config) Timings {
	if cfg == nil {
		return DefaultTimings()
	}

	a := cfg.Analysis
	return Timings{
		UploadStepDelay:   a.UploadStepDelay,
		PollInterval:      a.PollInterval,
		RenderDelay:       a.RenderDelay,
		ReloadDelay:       a.ReloadDelay,
		ErrorDismissDelay: a.ErrorDismissDelay,
		FeedbackDelay:     a.FeedbackDelay,
		SimulationScale:   a.SimulationScale,
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
