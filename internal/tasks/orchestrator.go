package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/services"
	"github.com/desertthunder/sporttrack/internal/shared"
)

// User-facing messages of an upload cycle.
const (
	InvalidFileMessage   = "Please upload a valid video file (MP4, AVI, MOV, MKV)"
	ProcessFailedMessage = "Failed to process video"
)

// Journal records upload cycles. It is optional.
type Journal interface {
	Begin(rec *models.CycleRecord) error
	Save(rec *models.CycleRecord) error
}

// CycleResult is the outcome of one successful upload cycle.
type CycleResult struct {
	Generation uint64
	File       models.VideoFile
	Upload     models.UploadResult
	Analysis   models.Analysis
	Metrics    models.Metrics
	Fallback   bool   // Analysis is the placeholder payload
	Driver     string // Progress driver that ran
	RecordID   string // Journal id, empty without a journal
}

// Orchestrator drives upload cycles for one [Session].
type Orchestrator struct {
	session *Session
	svc     services.AnalysisService
	driver  ProgressDriver
	journal Journal
	probe   bool
	events  chan<- Event
	logger  *log.Logger
}

// OrchestratorOpts configures an [Orchestrator]. Nil fields get defaults.
type OrchestratorOpts struct {
	Driver     ProgressDriver // Defaults to polling with simulation fallback
	Journal    Journal
	ProbeMedia bool
	Events     chan<- Event // Receives state transitions without blocking
	Logger     *log.Logger
}

// NewOrchestrator creates an orchestrator bound to session and svc.
func NewOrchestrator(session *Session, svc services.AnalysisService, opts OrchestratorOpts) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = session.logger
	}

	driver := opts.Driver
	if driver == nil {
		t := session.Timings()
		driver = NewPollDriver(svc, t.PollInterval, NewSimulationDriver(t.SimulationScale), logger)
	}

	return &Orchestrator{
		session: session,
		svc:     svc,
		driver:  driver,
		journal: opts.Journal,
		probe:   opts.ProbeMedia,
		events:  opts.Events,
		logger:  logger,
	}
}

// Session returns the session the orchestrator mutates.
func (o *Orchestrator) Session() *Session { return o.session }

// HandleVideoUpload runs one cycle for file: validate, simulated upload, POST /upload, analysis progress,
// GET /analyze and rendering.
//
// Starting a cycle cancels the previous one. The file input is cleared whatever the outcome.
// Analysis fetch failures are not errors: the placeholder analysis is rendered and Fallback is set.
func (o *Orchestrator) HandleVideoUpload(ctx context.Context, file *models.VideoFile) (*CycleResult, error) {
	ctx, gen := o.session.beginCycle(ctx)
	defer o.session.endCycle(gen)
	defer o.session.update(gen, func(v *ViewModel) { v.FileInput = "" })

	logger := o.logger.With("cycle", gen)
	sendEvent(o.events, validatingEvent(gen, file))

	if file == nil {
		logger.Warn("no file provided")
		return nil, o.reject(gen, fmt.Errorf("%w: no file provided", shared.ErrInvalidInput))
	}

	validation := file.Validate()
	logger.Debug("file validation", validation.KeyVals()...)
	if !validation.Valid() {
		return nil, o.reject(gen, fmt.Errorf("%w: %s is not a supported video", shared.ErrInvalidInput, file.Name))
	}

	rec := o.beginRecord(logger, file)

	sendEvent(o.events, simulatingUploadEvent(gen))
	o.session.update(gen, func(v *ViewModel) {
		v.DropZoneVisible = false
		v.ProgressVisible = true
		v.ResultsVisible = false
	})
	if err := o.simulateUpload(ctx, gen); err != nil {
		return nil, o.abort(gen, logger, rec, err)
	}

	sendEvent(o.events, awaitingAckEvent(gen, file))
	upload, err := o.svc.Upload(ctx, file)
	if err != nil {
		if ctx.Err() != nil {
			return nil, o.abort(gen, logger, rec, ctx.Err())
		}
		return nil, o.uploadFailed(gen, logger, rec, err)
	}
	logger.Info("upload acknowledged", "video_id", upload.VideoID)
	if rec != nil {
		rec.Uploaded(*upload)
	}

	sendEvent(o.events, analysisRunningEvent(gen, upload, o.driver.Name()))
	err = o.driver.Run(ctx, upload.VideoID, func(pct float64, text string) {
		o.session.updateAnalysis(gen, pct, text)
	})
	if ctx.Err() != nil {
		return nil, o.abort(gen, logger, rec, ctx.Err())
	}
	if err != nil {
		logger.Warn("progress driver failed", "driver", o.driver.Name(), "error", err)
	}

	analysis, fallback := o.fetchAnalysis(ctx, logger, upload.VideoID)
	if ctx.Err() != nil {
		return nil, o.abort(gen, logger, rec, ctx.Err())
	}

	if err := sleep(ctx, o.session.timings.RenderDelay); err != nil {
		return nil, o.abort(gen, logger, rec, err)
	}

	sendEvent(o.events, renderingEvent(gen, &analysis, fallback))
	result := &CycleResult{
		Generation: gen,
		File:       *file,
		Upload:     *upload,
		Analysis:   analysis,
		Metrics:    models.ComputeMetrics(analysis),
		Fallback:   fallback,
		Driver:     o.driver.Name(),
	}
	if !o.render(gen, result) {
		return nil, o.abort(gen, logger, rec, context.Canceled)
	}

	if o.probe {
		o.probeMedia(ctx, gen, logger, upload)
	}

	if rec != nil {
		rec.Complete(analysis, fallback)
		o.saveRecord(logger, rec)
		result.RecordID = rec.ID()
	}

	sendEvent(o.events, idleEvent(gen))
	logger.Info("cycle complete", "video_id", upload.VideoID, "fallback", fallback)
	return result, nil
}

func (o *Orchestrator) simulateUpload(ctx context.Context, gen uint64) error {
	o.session.updateUpload(gen, 0, "Starting upload...")
	o.session.updateAnalysis(gen, 0, "Waiting for upload...")

	for pct := 10; pct <= 100; pct += 10 {
		if err := sleep(ctx, o.session.timings.UploadStepDelay); err != nil {
			return err
		}

		label := fmt.Sprintf("Uploading... %d%%", pct)
		if pct == 100 {
			label = "Upload complete!"
		}
		o.session.updateUpload(gen, float64(pct), label)
	}

	o.session.updateAnalysis(gen, 10, "Starting AI analysis...")
	return nil
}

// fetchAnalysis returns the server analysis, or the placeholder when it cannot be read.
func (o *Orchestrator) fetchAnalysis(ctx context.Context, logger *log.Logger, videoID string) (models.Analysis, bool) {
	analysis, err := o.svc.Analyze(ctx, videoID)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("analysis fetch failed, using placeholder", "video_id", videoID, "error", err)
		}
		return models.FallbackAnalysis(), true
	}
	return *analysis, false
}

func (o *Orchestrator) render(gen uint64, r *CycleResult) bool {
	if !o.session.setVideoID(gen, r.Upload.VideoID) {
		return false
	}

	upload := r.Upload
	return o.session.update(gen, func(v *ViewModel) {
		v.ProgressVisible = false
		v.ResultsVisible = true
		v.OriginalSrc = upload.OriginalURL
		v.ProcessedSrc = upload.ProcessedURL
		v.UploadInfo = &upload
		v.Metrics = r.Metrics
		v.Recommendations = append([]string(nil), r.Analysis.Recommendations...)
		v.ScrollTarget = ScrollResults
	})
}

// probeMedia checks both media URLs the way a player would load them.
//
// Failures are logged only. The processed video gets one reload after ReloadDelay.
func (o *Orchestrator) probeMedia(ctx context.Context, gen uint64, logger *log.Logger, upload *models.UploadResult) {
	if err := o.svc.Probe(ctx, upload.OriginalURL); err != nil {
		logger.Error("original video failed to load", "url", upload.OriginalURL, "error", err)
	}

	err := o.svc.Probe(ctx, upload.ProcessedURL)
	if err == nil {
		logger.Debug("processed video loaded", "url", upload.ProcessedURL)
		return
	}
	logger.Error("processed video failed to load", "url", upload.ProcessedURL, "error", err)

	if sleep(ctx, o.session.timings.ReloadDelay) != nil {
		return
	}

	logger.Info("retrying processed video load", "url", upload.ProcessedURL)
	o.session.update(gen, func(v *ViewModel) { v.ProcessedReloads++ })
	if err := o.svc.Probe(ctx, upload.ProcessedURL); err != nil {
		logger.Error("processed video failed to load", "url", upload.ProcessedURL, "error", err)
	}
}

// showError returns the view to the drop zone and displays a transient error.
func (o *Orchestrator) showError(gen uint64, text string) {
	s := o.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	s.view.ProgressVisible = false
	s.view.DropZoneVisible = true
	s.showErrorLocked(text)
}

func (o *Orchestrator) reject(gen uint64, err error) error {
	o.showError(gen, InvalidFileMessage)
	sendEvent(o.events, errorEvent(gen, err))
	sendEvent(o.events, idleEvent(gen))
	return err
}

func (o *Orchestrator) uploadFailed(gen uint64, logger *log.Logger, rec *models.CycleRecord, err error) error {
	msg, ok := services.ServerMessage(err)
	if !ok {
		msg = err.Error()
	}
	if msg == "" {
		msg = ProcessFailedMessage
	}

	logger.Error("upload failed", "error", err)
	o.showError(gen, msg)

	if rec != nil {
		rec.Fail(models.CycleFailed, msg)
		o.saveRecord(logger, rec)
	}

	sendEvent(o.events, errorEvent(gen, err))
	sendEvent(o.events, idleEvent(gen))

	if !errors.Is(err, shared.ErrUploadFailed) {
		err = fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}
	return err
}

// abort ends a cycle that was cancelled or superseded. The view is left to whoever cancelled it.
func (o *Orchestrator) abort(gen uint64, logger *log.Logger, rec *models.CycleRecord, cause error) error {
	logger.Info("cycle cancelled", "reason", cause)
	if rec != nil {
		rec.Fail(models.CycleCancelled, cause.Error())
		o.saveRecord(logger, rec)
	}
	sendEvent(o.events, errorEvent(gen, shared.ErrCycleCancelled))
	return fmt.Errorf("%w: %v", shared.ErrCycleCancelled, cause)
}

func (o *Orchestrator) beginRecord(logger *log.Logger, file *models.VideoFile) *models.CycleRecord {
	if o.journal == nil {
		return nil
	}

	rec := models.NewCycleRecord(file.Name)
	if err := o.journal.Begin(rec); err != nil {
		logger.Warn("failed to journal cycle", "error", err)
		return nil
	}
	return rec
}

func (o *Orchestrator) saveRecord(logger *log.Logger, rec *models.CycleRecord) {
	if o.journal == nil || rec == nil {
		return
	}
	if err := o.journal.Save(rec); err != nil {
		logger.Warn("failed to update cycle journal", "id", rec.ID(), "error", err)
	}
}
