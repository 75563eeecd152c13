package tasks

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/services"
	"github.com/desertthunder/sporttrack/internal/shared"
)

// Alerts raised by the parameter panel.
const (
	NoVideoAlert      = "No video to reprocess. Please upload a video first."
	ApplyFailedPrefix = "Failed to apply parameters: "
)

// ReprocessJournal is notified of successful reprocesses. It is optional.
type ReprocessJournal interface {
	Reprocessed(videoID, processedURL string) error
}

// Panel tunes the detection parameters and reprocesses the session's current video.
type Panel struct {
	session *Session
	svc     services.AnalysisService
	journal ReprocessJournal
	now     func() time.Time
	logger  *log.Logger
}

// NewPanel creates a panel bound to session. journal may be nil.
func NewPanel(session *Session, svc services.AnalysisService, journal ReprocessJournal, logger *log.Logger) *Panel {
	if logger == nil {
		logger = session.logger
	}
	return &Panel{session: session, svc: svc, journal: journal, now: time.Now, logger: logger}
}

// Controls returns the parameter values currently in the controls.
func (p *Panel) Controls() models.Parameters {
	return p.session.Snapshot().View.Controls
}

// LoadCurrentParameters fills the controls from GET /parameters.
//
// A failure is logged and returned; the controls keep their previous values.
func (p *Panel) LoadCurrentParameters(ctx context.Context) error {
	params, err := p.svc.GetParameters(ctx)
	if err != nil {
		p.logger.Error("failed to load parameters", "error", err)
		return err
	}

	p.setControls(*params)
	p.logger.Debug("parameters loaded", "params", *params)
	return nil
}

// ResetParameters writes the built-in defaults into the controls. No request is made.
func (p *Panel) ResetParameters() {
	p.setControls(models.DefaultParameters())
}

func (p *Panel) setControls(params models.Parameters) {
	p.session.update(0, func(v *ViewModel) {
		v.Controls = params
		v.refreshEchoes()
	})
}

// SetControl edits the control named by its JSON key and refreshes its echo.
func (p *Panel) SetControl(name, value string) error {
	var err error
	p.session.update(0, func(v *ViewModel) {
		next := v.Controls
		if err = next.Set(name, value); err != nil {
			return
		}
		v.Controls = next
		v.refreshEchoes()
	})
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return nil
}

// ApplyParameters sends the controls with POST /parameters and reprocesses the current video.
//
// Without a current video a blocking alert is raised and no request is made. Any failure short-circuits,
// raises an alert and restores the button at once; a parameter update is never rolled back.
//
// The requests run under the session: a reset or a new cycle cancels them, and their outcome is then
// dropped with [shared.ErrApplyCancelled] instead of reaching the view or the journal.
func (p *Panel) ApplyParameters(ctx context.Context) error {
	ctx, gen, release := p.session.bind(ctx)
	defer release()

	videoID := p.session.VideoID()
	if videoID == "" {
		p.session.RaiseAlert(NoVideoAlert)
		return shared.ErrNoVideo
	}

	params := p.Controls()
	logger := p.logger.With("video_id", videoID)

	if err := p.svc.UpdateParameters(ctx, params); err != nil {
		return p.failed(gen, logger, err)
	}

	applying := p.session.updateFor(gen, func(v *ViewModel) {
		p.session.stopFeedbackLocked()
		v.ApplyButton = ApplyButton{Label: ApplyingLabel, Disabled: true}
	})
	if !applying {
		return p.dropped(logger, nil)
	}

	result, err := p.svc.Reprocess(ctx, videoID)
	if err != nil {
		return p.failed(gen, logger, err)
	}

	src := result.ProcessedURL + "?t=" + strconv.FormatInt(p.now().UnixMilli(), 10)
	shown := p.session.updateFor(gen, func(v *ViewModel) {
		v.ProcessedSrc = src
		v.ProcessedReloads++
	})
	if !shown {
		return p.dropped(logger, nil)
	}

	if p.journal != nil {
		if err := p.journal.Reprocessed(videoID, result.ProcessedURL); err != nil {
			logger.Warn("failed to journal reprocess", "error", err)
		}
	}

	p.session.scheduleFeedback(gen, ApplySuccessLabel)
	logger.Info("video reprocessed", "processed_url", result.ProcessedURL)
	return nil
}

func (p *Panel) failed(gen uint64, logger *log.Logger, err error) error {
	alerted := p.session.updateFor(gen, func(v *ViewModel) {
		p.session.stopFeedbackLocked()
		v.Alert = ApplyFailedPrefix + err.Error()
		v.ApplyButton = ApplyButton{Label: ApplyLabel}
	})
	if !alerted {
		return p.dropped(logger, err)
	}

	logger.Error("error applying parameters", "error", err)
	return err
}

func (p *Panel) dropped(logger *log.Logger, cause error) error {
	logger.Debug("apply result dropped after reset", "error", cause)
	if cause != nil {
		return fmt.Errorf("%w: %v", shared.ErrApplyCancelled, cause)
	}
	return shared.ErrApplyCancelled
}

// ToggleParameterTuning flips the panel. Opening it reloads the parameters.
func (p *Panel) ToggleParameterTuning(ctx context.Context) bool {
	var open bool
	p.session.update(0, func(v *ViewModel) {
		v.PanelVisible = !v.PanelVisible
		open = v.PanelVisible
		if open {
			v.ToggleLabel = ToggleCloseLabel
		} else {
			v.ToggleLabel = ToggleOpenLabel
		}
	})

	if open {
		_ = p.LoadCurrentParameters(ctx)
	}
	return open
}

// DismissAlert acknowledges the blocking alert.
func (p *Panel) DismissAlert() {
	p.session.DismissAlert()
}
