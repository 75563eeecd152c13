package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/shared"
)

// ReportFunc receives analysis progress from a [ProgressDriver].
type ReportFunc func(pct float64, text string)

// ProgressDriver produces analysis progress for one uploaded video.
//
// Run returns once the analysis is reported finished or ctx is done.
type ProgressDriver interface {
	Name() string
	Run(ctx context.Context, videoID string, report ReportFunc) error
}

// ProgressSource is the subset of [services.AnalysisService] needed for polling.
type ProgressSource interface {
	Progress(ctx context.Context, videoID string) (*models.ProgressReport, error)
}

// ProgressStreamer pushes server-side progress over a long-lived connection.
type ProgressStreamer interface {
	StreamProgress(ctx context.Context, videoID string, fn func(models.ProgressReport)) error
}

// SimulationStep is one fixed (percentage, label, delay) step of the simulated analysis.
type SimulationStep struct {
	Percent float64
	Label   string
	Delay   time.Duration
}

// CompleteLabel is the final label of a simulated analysis.
const CompleteLabel = "Analysis complete!"

// SimulationSteps is the stock analysis simulation. Each delay precedes its update.
var SimulationSteps = []SimulationStep{
	{Percent: 20, Label: "Analysing video frames...", Delay: 1500 * time.Millisecond},
	{Percent: 35, Label: "Detecting human poses...", Delay: 2000 * time.Millisecond},
	{Percent: 50, Label: "Mapping body landmarks...", Delay: 2500 * time.Millisecond},
	{Percent: 65, Label: "Generating skeletal overlay...", Delay: 3000 * time.Millisecond},
	{Percent: 80, Label: "Calculating technique metrics...", Delay: 2000 * time.Millisecond},
	{Percent: 95, Label: "Finalising analysis...", Delay: 1000 * time.Millisecond},
}

// SimulationDriver walks a fixed sequence of steps and finishes at 100%.
type SimulationDriver struct {
	Steps []SimulationStep
	Scale float64
}

// NewSimulationDriver creates a driver over [SimulationSteps] with delays multiplied by scale.
func NewSimulationDriver(scale float64) *SimulationDriver {
	return &SimulationDriver{Steps: SimulationSteps, Scale: scale}
}

func (d *SimulationDriver) Name() string { return shared.ProgressSimulate }

// Run implements [ProgressDriver]. The video id is unused.
func (d *SimulationDriver) Run(ctx context.Context, _ string, report ReportFunc) error {
	for _, step := range d.Steps {
		if err := sleep(ctx, time.Duration(float64(step.Delay)*d.Scale)); err != nil {
			return err
		}
		report(step.Percent, step.Label)
	}

	report(100, CompleteLabel)
	return nil
}

// PollDriver reports server-side progress from GET /progress/{id}.
//
// Requests are spaced by a [rate.Limiter]; the first one is issued one interval after Run starts.
// A failed request or a non-2xx status hands the rest of the cycle to Fallback.
type PollDriver struct {
	Source   ProgressSource
	Interval time.Duration
	Fallback ProgressDriver
	Logger   *log.Logger
}

// NewPollDriver creates a polling driver that falls back to fallback.
func NewPollDriver(source ProgressSource, interval time.Duration, fallback ProgressDriver, logger *log.Logger) *PollDriver {
	if logger == nil {
		logger = log.Default()
	}
	return &PollDriver{Source: source, Interval: interval, Fallback: fallback, Logger: logger}
}

func (d *PollDriver) Name() string { return shared.ProgressPoll }

// Run implements [ProgressDriver].
func (d *PollDriver) Run(ctx context.Context, videoID string, report ReportFunc) error {
	if d.Source == nil {
		return fmt.Errorf("%w: progress source not initialized", shared.ErrServiceUnavailable)
	}

	limiter := rate.NewLimiter(rate.Every(d.Interval), 1)
	limiter.Allow()

	for {
		// Wait fails early when the next slot lies past the deadline.
		if err := limiter.Wait(ctx); err != nil {
			<-ctx.Done()
			return ctx.Err()
		}

		progress, err := d.Source.Progress(ctx, videoID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return d.fallback(ctx, videoID, report, err)
		}

		report(progress.Progress, progress.Message)
		if progress.Done() {
			d.Logger.Debug("progress polling finished", "video_id", videoID, "stage", progress.Stage)
			return nil
		}
	}
}

func (d *PollDriver) fallback(ctx context.Context, videoID string, report ReportFunc, cause error) error {
	d.Logger.Warn("progress polling failed, using simulation", "video_id", videoID, "error", cause)
	if d.Fallback == nil {
		return errors.Join(shared.ErrProgressFailed, cause)
	}
	return d.Fallback.Run(ctx, videoID, report)
}

// StreamDriver reports progress pushed over the backend's websocket feed.
//
// If the feed cannot be opened, or breaks before a terminal stage, the rest of the cycle goes to Fallback.
type StreamDriver struct {
	Streamer ProgressStreamer
	Fallback ProgressDriver
	Logger   *log.Logger
}

// NewStreamDriver creates a streaming driver that falls back to fallback.
func NewStreamDriver(streamer ProgressStreamer, fallback ProgressDriver, logger *log.Logger) *StreamDriver {
	if logger == nil {
		logger = log.Default()
	}
	return &StreamDriver{Streamer: streamer, Fallback: fallback, Logger: logger}
}

func (d *StreamDriver) Name() string { return shared.ProgressStream }

// Run implements [ProgressDriver].
func (d *StreamDriver) Run(ctx context.Context, videoID string, report ReportFunc) error {
	if d.Streamer == nil {
		return fmt.Errorf("%w: progress stream not initialized", shared.ErrServiceUnavailable)
	}

	err := d.Streamer.StreamProgress(ctx, videoID, func(p models.ProgressReport) {
		report(p.Progress, p.Message)
	})
	if err == nil || ctx.Err() != nil {
		return ctx.Err()
	}

	d.Logger.Warn("progress stream failed, using simulation", "video_id", videoID, "error", err)
	if d.Fallback == nil {
		return errors.Join(shared.ErrProgressFailed, err)
	}
	return d.Fallback.Run(ctx, videoID, report)
}

// NewProgressDriver returns the driver named by kind; polling and streaming fall back to the simulation.
//
// The stream driver needs a source that also implements [ProgressStreamer].
func NewProgressDriver(kind string, source ProgressSource, timings Timings, logger *log.Logger) (ProgressDriver, error) {
	sim := NewSimulationDriver(timings.SimulationScale)
	switch kind {
	case shared.ProgressPoll, "":
		return NewPollDriver(source, timings.PollInterval, sim, logger), nil
	case shared.ProgressSimulate:
		return sim, nil
	case shared.ProgressStream:
		streamer, ok := source.(ProgressStreamer)
		if !ok {
			return nil, fmt.Errorf("%w: progress source cannot stream", shared.ErrInvalidArgument)
		}
		return NewStreamDriver(streamer, sim, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown progress driver %q", shared.ErrInvalidArgument, kind)
	}
}
