package server

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/sporttrack/internal/models"
)

// Stage names reported while the stub processes a video.
const (
	StageQueued     = "queued"
	StageProcessing = "processing"
)

type processingStep struct {
	progress float64
	message  string
}

var processingSteps = []processingStep{
	{15, "Reading video frames..."},
	{40, "Detecting poses..."},
	{65, "Drawing skeleton overlay..."},
	{90, "Writing processed video..."},
}

// job is the state of one uploaded video.
type job struct {
	ext    string
	report models.ProgressReport
	subs   map[chan models.ProgressReport]struct{}
}

// tracker holds per-video progress and fans updates out to websocket subscribers.
type tracker struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func newTracker() *tracker {
	return &tracker{jobs: map[string]*job{}}
}

func (t *tracker) add(id, ext string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &job{
		ext:    ext,
		report: models.ProgressReport{Progress: 0, Message: "Queued for processing", Stage: StageQueued},
		subs:   map[chan models.ProgressReport]struct{}{},
	}
}

func (t *tracker) ext(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return "", false
	}
	return j.ext, true
}

func (t *tracker) get(id string) (models.ProgressReport, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return models.ProgressReport{}, false
	}
	return j.report, true
}

// set records report and sends it to every subscriber without blocking. A terminal stage closes them.
func (t *tracker) set(id string, report models.ProgressReport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok {
		return
	}
	j.report = report

	for ch := range j.subs {
		select {
		case ch <- report:
		default:
		}
		if report.Done() {
			close(ch)
			delete(j.subs, ch)
		}
	}
}

// subscribe returns the current report and a channel of later ones. The channel is nil once the job is done.
func (t *tracker) subscribe(id string) (models.ProgressReport, <-chan models.ProgressReport, func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok {
		return models.ProgressReport{}, nil, func() {}, false
	}
	if j.report.Done() {
		return j.report, nil, func() {}, true
	}

	ch := make(chan models.ProgressReport, len(processingSteps)+1)
	j.subs[ch] = struct{}{}

	unsubscribe := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := j.subs[ch]; ok {
			delete(j.subs, ch)
			close(ch)
		}
	}
	return j.report, ch, unsubscribe, true
}

// run walks the processing steps for id, one every delay, and finishes at 100%.
func (t *tracker) run(ctx context.Context, id string, delay time.Duration) {
	for _, step := range processingSteps {
		if !wait(ctx, delay) {
			return
		}
		t.set(id, models.ProgressReport{Progress: step.progress, Message: step.message, Stage: StageProcessing})
	}

	if !wait(ctx, delay) {
		return
	}
	t.set(id, models.ProgressReport{Progress: 100, Message: "Analysis complete!", Stage: models.StageComplete})
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
