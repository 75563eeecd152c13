package tasks

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/sporttrack/internal/models"
)

// Initial labels of the two progress bars.
const (
	UploadIdleLabel   = "Uploading..."
	AnalysisIdleLabel = "Preparing analysis..."
)

// Labels of the parameter panel toggle and apply button.
const (
	ToggleOpenLabel   = "Tune Parameters"
	ToggleCloseLabel  = "Hide Parameters"
	ApplyLabel        = "Apply & Reprocess"
	ApplyingLabel     = "Reprocessing..."
	ApplySuccessLabel = "Applied Successfully!"
)

// Scroll targets.
const (
	ScrollTop     = "top"
	ScrollResults = "results"
)

// ProgressBar is one progress indicator: a fill percentage and a label.
type ProgressBar struct {
	Percent float64
	Label   string
}

// Width returns the fill for a bar total cells wide.
//
// Out of range percentages are clipped for drawing only; Percent keeps the caller's value.
func (p ProgressBar) Width(total int) int {
	if total <= 0 {
		return 0
	}
	w := int(p.Percent / 100 * float64(total))
	return max(0, min(total, w))
}

// ErrorMessage is a transient, user-visible error.
type ErrorMessage struct {
	ID   int
	Text string
}

// ApplyButton is the state of the parameter panel's apply control.
type ApplyButton struct {
	Label    string
	Disabled bool
}

// ViewModel is everything a renderer needs to draw the widget.
type ViewModel struct {
	DropZoneVisible bool
	ProgressVisible bool
	ResultsVisible  bool
	PanelVisible    bool

	FileInput string // Path of the selected file; cleared after every cycle

	Upload   ProgressBar
	Analysis ProgressBar

	Errors []ErrorMessage
	Alert  string // Blocking notice; must be dismissed

	OriginalSrc      string
	ProcessedSrc     string
	ProcessedReloads int // Bumped whenever the processed player must reload

	Metrics         models.Metrics
	Recommendations []string
	UploadInfo      *models.UploadResult // Server acknowledgement of the last upload

	Controls    models.Parameters
	Echoes      map[string]string
	ApplyButton ApplyButton
	ToggleLabel string

	ScrollTarget string
}

// Snapshot is a copy of the view published after each change.
type Snapshot struct {
	Generation uint64
	VideoID    string
	View       ViewModel
}

func initialView() ViewModel {
	v := ViewModel{
		DropZoneVisible: true,
		Upload:          ProgressBar{Percent: 0, Label: UploadIdleLabel},
		Analysis:        ProgressBar{Percent: 0, Label: AnalysisIdleLabel},
		Controls:        models.DefaultParameters(),
		ApplyButton:     ApplyButton{Label: ApplyLabel},
		ToggleLabel:     ToggleOpenLabel,
		ScrollTarget:    ScrollTop,
	}
	v.refreshEchoes()
	return v
}

func (v *ViewModel) refreshEchoes() {
	v.Echoes = make(map[string]string, len(models.ParameterNames))
	for _, name := range models.ParameterNames {
		v.Echoes[name], _ = v.Controls.Get(name)
	}
}

func (v ViewModel) clone() ViewModel {
	v.Errors = slices.Clone(v.Errors)
	v.Recommendations = slices.Clone(v.Recommendations)
	v.Echoes = maps.Clone(v.Echoes)
	if v.UploadInfo != nil {
		info := *v.UploadInfo
		v.UploadInfo = &info
	}
	return v
}

// Session owns the state of one widget: the view-model, the current video id and the running cycle.
//
// All mutation goes through Session methods; renderers observe it via [Session.Subscribe] or [Session.Snapshot].
// Mutations made on behalf of a cycle carry its generation and are dropped once a newer cycle starts or the
// session is reset.
type Session struct {
	mu      sync.Mutex
	view    ViewModel
	videoID string

	gen    uint64
	cancel context.CancelFunc

	tasks    map[int]context.CancelFunc // Panel requests bound to the current generation
	nextTask int

	nextErrID     int
	errTimers     map[int]*time.Timer
	feedbackTimer *time.Timer

	subs    map[int]chan Snapshot
	nextSub int

	timings Timings
	logger  *log.Logger
}

// NewSession creates a session in the initial drop-zone view.
func NewSession(timings Timings, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		view:      initialView(),
		errTimers: make(map[int]*time.Timer),
		tasks:     make(map[int]context.CancelFunc),
		subs:      make(map[int]chan Snapshot),
		timings:   timings,
		logger:    logger,
	}
}

// Timings returns the pacing the session was created with.
func (s *Session) Timings() Timings { return s.timings }

// Subscribe registers a snapshot listener with the given buffer.
//
// Sends never block: a listener that falls behind misses intermediate snapshots.
// The returned func unsubscribes and closes the channel.
func (s *Session) Subscribe(buffer int) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{Generation: s.gen, VideoID: s.videoID, View: s.view.clone()}
}

// publishLocked sends the current snapshot to every subscriber without blocking.
func (s *Session) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// update applies fn to the view and publishes.
//
// gen 0 is unconditional; any other generation must match the running cycle.
func (s *Session) update(gen uint64, fn func(*ViewModel)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != 0 && gen != s.gen {
		return false
	}
	fn(&s.view)
	s.publishLocked()
	return true
}

// updateFor applies fn only while gen is still the current generation, including generation 0.
func (s *Session) updateFor(gen uint64, fn func(*ViewModel)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	fn(&s.view)
	s.publishLocked()
	return true
}

// bind derives a context for work done on behalf of the current generation.
//
// The context is cancelled by the next cycle, [Session.Cancel], [Session.ResetAnalysis] and
// [Session.Close]. The returned func releases it.
func (s *Session) bind(parent context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextTask
	s.nextTask++
	s.tasks[id] = cancel
	gen := s.gen

	return ctx, gen, func() {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
		cancel()
	}
}

func (s *Session) cancelTasksLocked() {
	for id, cancel := range s.tasks {
		cancel()
		delete(s.tasks, id)
	}
}

// VideoID returns the id of the most recently uploaded video, or "" when there is none.
func (s *Session) VideoID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoID
}

// Resume makes videoID the current video without running a cycle, so a journaled upload can be
// reprocessed from a fresh session.
func (s *Session) Resume(videoID string) {
	s.setVideoID(0, videoID)
}

func (s *Session) setVideoID(gen uint64, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != 0 && gen != s.gen {
		return false
	}
	s.videoID = id
	s.publishLocked()
	return true
}

// beginCycle cancels any running cycle and starts a new generation bound to parent.
func (s *Session) beginCycle(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.cancelTasksLocked()
	s.gen++
	s.cancel = cancel
	return ctx, s.gen
}

// endCycle releases the cycle's context if it is still the running one.
func (s *Session) endCycle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen == s.gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Generation returns the id of the most recent cycle.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Cancel stops the running cycle and any panel request, without touching the view.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.cancelTasksLocked()
	s.gen++
}

// UpdateUploadProgress overwrites the upload bar.
func (s *Session) UpdateUploadProgress(pct float64, text string) {
	s.updateUpload(0, pct, text)
}

// UpdateAnalysisProgress overwrites the analysis bar.
func (s *Session) UpdateAnalysisProgress(pct float64, text string) {
	s.updateAnalysis(0, pct, text)
}

func (s *Session) updateUpload(gen uint64, pct float64, text string) bool {
	return s.update(gen, func(v *ViewModel) { v.Upload = ProgressBar{Percent: pct, Label: text} })
}

func (s *Session) updateAnalysis(gen uint64, pct float64, text string) bool {
	return s.update(gen, func(v *ViewModel) { v.Analysis = ProgressBar{Percent: pct, Label: text} })
}

// SelectFile records the chosen file in the file input.
func (s *Session) SelectFile(path string) {
	s.update(0, func(v *ViewModel) { v.FileInput = path })
}

// ShowError replaces any displayed error with text, removed after ErrorDismissDelay.
func (s *Session) ShowError(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showErrorLocked(text)
}

func (s *Session) showErrorLocked(text string) int {
	s.clearErrorsLocked()
	s.nextErrID++
	id := s.nextErrID
	s.view.Errors = append(s.view.Errors, ErrorMessage{ID: id, Text: text})

	if d := s.timings.ErrorDismissDelay; d > 0 {
		s.errTimers[id] = time.AfterFunc(d, func() { s.DismissError(id) })
	}

	s.publishLocked()
	return id
}

// DismissError removes one transient error.
func (s *Session) DismissError(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.errTimers[id]; ok {
		t.Stop()
		delete(s.errTimers, id)
	}

	n := len(s.view.Errors)
	s.view.Errors = slices.DeleteFunc(s.view.Errors, func(e ErrorMessage) bool { return e.ID == id })
	if len(s.view.Errors) != n {
		s.publishLocked()
	}
}

func (s *Session) clearErrorsLocked() {
	for id, t := range s.errTimers {
		t.Stop()
		delete(s.errTimers, id)
	}
	s.view.Errors = nil
}

// RaiseAlert shows a blocking notice.
func (s *Session) RaiseAlert(text string) {
	s.update(0, func(v *ViewModel) { v.Alert = text })
}

// DismissAlert acknowledges the blocking notice.
func (s *Session) DismissAlert() {
	s.update(0, func(v *ViewModel) { v.Alert = "" })
}

// ResetAnalysis returns the session to the drop-zone view.
//
// The running cycle and any panel request are cancelled and can no longer mutate the view.
func (s *Session) ResetAnalysis() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.cancelTasksLocked()
	s.gen++

	s.videoID = ""
	s.clearErrorsLocked()
	s.stopFeedbackLocked()

	v := &s.view
	v.ResultsVisible = false
	v.ProgressVisible = false
	v.PanelVisible = false
	v.DropZoneVisible = true
	v.FileInput = ""
	v.Upload = ProgressBar{Percent: 0, Label: UploadIdleLabel}
	v.Analysis = ProgressBar{Percent: 0, Label: AnalysisIdleLabel}
	v.ToggleLabel = ToggleOpenLabel
	v.ApplyButton = ApplyButton{Label: ApplyLabel}
	v.ScrollTarget = ScrollTop

	s.publishLocked()
	s.logger.Debug("analysis reset", "generation", s.gen)
}

// scheduleFeedback shows label on the apply button and restores it after FeedbackDelay.
// Nothing happens once gen is stale.
func (s *Session) scheduleFeedback(gen uint64, label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	s.stopFeedbackLocked()
	s.view.ApplyButton = ApplyButton{Label: label}
	s.publishLocked()

	if d := s.timings.FeedbackDelay; d > 0 {
		s.feedbackTimer = time.AfterFunc(d, func() {
			s.update(0, func(v *ViewModel) { v.ApplyButton = ApplyButton{Label: ApplyLabel} })
		})
		return true
	}
	s.view.ApplyButton = ApplyButton{Label: ApplyLabel}
	s.publishLocked()
	return true
}

func (s *Session) stopFeedbackLocked() {
	if s.feedbackTimer != nil {
		s.feedbackTimer.Stop()
		s.feedbackTimer = nil
	}
}

// Close cancels the running cycle, stops every timer and closes all subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.cancelTasksLocked()
	s.gen++
	s.clearErrorsLocked()
	s.stopFeedbackLocked()

	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
