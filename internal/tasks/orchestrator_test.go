package tasks

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/services"
	"github.com/desertthunder/sporttrack/internal/shared"
	tu "github.com/desertthunder/sporttrack/internal/testing"
)

type fakeJournal struct {
	mu       sync.Mutex
	begun    int
	statuses []models.CycleStatus
	last     *models.CycleRecord
}

func (j *fakeJournal) Begin(rec *models.CycleRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.begun++
	rec.SetID("rec-1")
	return nil
}

func (j *fakeJournal) Save(rec *models.CycleRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.statuses = append(j.statuses, rec.Status())
	j.last = rec
	return nil
}

func newTestOrchestrator(svc services.AnalysisService, opts OrchestratorOpts) *Orchestrator {
	session := NewSession(fastTimings(), quietLogger())
	if opts.Driver == nil {
		opts.Driver = NewPollDriver(svc, time.Millisecond, NewSimulationDriver(0), quietLogger())
	}
	return NewOrchestrator(session, svc, opts)
}

func drainEvents(ch chan Event) []State {
	var states []State
	for {
		select {
		case ev := <-ch:
			states = append(states, ev.State)
		default:
			return states
		}
	}
}

func TestHandleVideoUpload(t *testing.T) {
	t.Run("Completes A Cycle", func(t *testing.T) {
		svc := &tu.MockAnalysisService{UploadFunc: func(ctx context.Context, f *models.VideoFile) (*models.UploadResult, error) {
			return tu.SampleUpload("abc"), nil
		}}
		events := make(chan Event, 32)
		o := newTestOrchestrator(svc, OrchestratorOpts{Events: events})
		o.Session().SelectFile("/videos/jump.mp4")

		result, err := o.HandleVideoUpload(context.Background(), tu.WriteVideo(t, "jump.mp4", "video/mp4"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Fallback {
			t.Error("expected real analysis")
		}
		if result.Driver != shared.ProgressPoll {
			t.Errorf("expected poll driver, got %s", result.Driver)
		}
		want := models.Metrics{DetectionConfidence: "91%", PosesDetected: "270/300", DetectionRate: "90%", TechniqueScore: "64%"}
		if result.Metrics != want {
			t.Errorf("expected metrics %+v, got %+v", want, result.Metrics)
		}

		snap := o.Session().Snapshot()
		v := snap.View
		if snap.VideoID != "abc" {
			t.Errorf("expected current video 'abc', got %q", snap.VideoID)
		}
		if !v.ResultsVisible || v.ProgressVisible || v.DropZoneVisible {
			t.Errorf("expected results view, got %+v", v)
		}
		if v.OriginalSrc != "/static/original/abc.mp4" || v.ProcessedSrc != "/static/processed/abc.mp4" {
			t.Errorf("unexpected sources %q %q", v.OriginalSrc, v.ProcessedSrc)
		}
		if v.Upload != (ProgressBar{Percent: 100, Label: "Upload complete!"}) {
			t.Errorf("unexpected upload bar %+v", v.Upload)
		}
		if v.Analysis != (ProgressBar{Percent: 100, Label: "Analysis complete!"}) {
			t.Errorf("unexpected analysis bar %+v", v.Analysis)
		}
		if !slices.Equal(v.Recommendations, tu.SampleAnalysis().Recommendations) {
			t.Errorf("unexpected recommendations %v", v.Recommendations)
		}
		if v.ScrollTarget != ScrollResults {
			t.Errorf("expected scroll to results, got %q", v.ScrollTarget)
		}
		if v.FileInput != "" {
			t.Errorf("expected file input cleared, got %q", v.FileInput)
		}

		wantStates := []State{Validating, SimulatingUpload, AwaitingServerAck, AnalysisRunning, Rendering, Idle}
		if got := drainEvents(events); !slices.Equal(got, wantStates) {
			t.Errorf("expected states %v, got %v", wantStates, got)
		}

		wantCalls := []string{"Upload:jump.mp4", "Progress:abc", "Analyze:abc"}
		if got := svc.Calls(); !slices.Equal(got, wantCalls) {
			t.Errorf("expected calls %v, got %v", wantCalls, got)
		}
	})

	t.Run("Upload Bar Is Monotonic", func(t *testing.T) {
		o := newTestOrchestrator(&tu.MockAnalysisService{}, OrchestratorOpts{})
		ch, unsubscribe := o.Session().Subscribe(256)

		if _, err := o.HandleVideoUpload(context.Background(), tu.WriteVideo(t, "a.mp4", "video/mp4")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		unsubscribe()

		var labels []string
		last := -1.0
		for snap := range ch {
			pct := snap.View.Upload.Percent
			if pct < last {
				t.Fatalf("upload progress went backwards: %v after %v", pct, last)
			}
			last = pct
			if n := len(labels); n == 0 || labels[n-1] != snap.View.Upload.Label {
				labels = append(labels, snap.View.Upload.Label)
			}
		}

		want := []string{UploadIdleLabel, "Starting upload...", "Uploading... 10%", "Uploading... 20%", "Uploading... 30%",
			"Uploading... 40%", "Uploading... 50%", "Uploading... 60%", "Uploading... 70%",
			"Uploading... 80%", "Uploading... 90%", "Upload complete!"}
		if !slices.Equal(labels, want) {
			t.Errorf("expected labels %v, got %v", want, labels)
		}
	})

	t.Run("Rejects Invalid File Without Network", func(t *testing.T) {
		svc := &tu.MockAnalysisService{}
		events := make(chan Event, 8)
		o := newTestOrchestrator(svc, OrchestratorOpts{Events: events})

		_, err := o.HandleVideoUpload(context.Background(), &models.VideoFile{Name: "clip.txt", Type: "text/plain"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if calls := svc.Calls(); len(calls) != 0 {
			t.Errorf("expected no network calls, got %v", calls)
		}

		v := o.Session().Snapshot().View
		if len(v.Errors) != 1 || v.Errors[0].Text != InvalidFileMessage {
			t.Errorf("expected invalid file message, got %v", v.Errors)
		}
		if !v.DropZoneVisible || v.ProgressVisible {
			t.Errorf("expected drop zone view, got %+v", v)
		}
		if got := drainEvents(events); !slices.Equal(got, []State{Validating, Error, Idle}) {
			t.Errorf("unexpected states %v", got)
		}
	})

	t.Run("Rejects Missing File", func(t *testing.T) {
		svc := &tu.MockAnalysisService{}
		o := newTestOrchestrator(svc, OrchestratorOpts{})

		if _, err := o.HandleVideoUpload(context.Background(), nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if len(svc.Calls()) != 0 {
			t.Error("expected no network calls")
		}
	})

	t.Run("Accepts Extension With Empty Type", func(t *testing.T) {
		o := newTestOrchestrator(&tu.MockAnalysisService{}, OrchestratorOpts{})
		if _, err := o.HandleVideoUpload(context.Background(), tu.WriteVideo(t, "clip.MOV", "")); err != nil {
			t.Errorf("expected clip.MOV to be accepted, got %v", err)
		}
	})

	t.Run("Upload Failure", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want string
		}{
			{"Server Message", &services.StatusError{StatusCode: 400, Message: "Invalid file type", Kind: shared.ErrUploadFailed}, "Invalid file type"},
			{"Generic Server Failure", &services.StatusError{StatusCode: 500, Message: "Upload failed", Kind: shared.ErrUploadFailed}, "Upload failed"},
			{"Transport Error", errors.New("connection refused"), "connection refused"},
			{"Empty Message", errors.New(""), ProcessFailedMessage},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := &tu.MockAnalysisService{UploadFunc: func(ctx context.Context, f *models.VideoFile) (*models.UploadResult, error) {
					return nil, tt.err
				}}
				journal := &fakeJournal{}
				o := newTestOrchestrator(svc, OrchestratorOpts{Journal: journal})
				o.Session().SelectFile("/videos/a.mp4")

				_, err := o.HandleVideoUpload(context.Background(), tu.WriteVideo(t, "a.mp4", "video/mp4"))
				if !errors.Is(err, shared.ErrUploadFailed) {
					t.Fatalf("expected ErrUploadFailed, got %v", err)
				}

				snap := o.Session().Snapshot()
				if len(snap.View.Errors) != 1 || snap.View.Errors[0].Text != tt.want {
					t.Errorf("expected error %q, got %v", tt.want, snap.View.Errors)
				}
				if !snap.View.DropZoneVisible || snap.View.ProgressVisible {
					t.Errorf("expected drop zone view, got %+v", snap.View)
				}
				if snap.VideoID != "" {
					t.Errorf("expected no video id, got %q", snap.VideoID)
				}
				if snap.View.FileInput != "" {
					t.Errorf("expected file input cleared, got %q", snap.View.FileInput)
				}
				if svc.CallCount("Progress") != 0 || svc.CallCount("Analyze") != 0 {
					t.Errorf("expected the cycle to stop at upload, got %v", svc.Calls())
				}
				if !slices.Equal(journal.statuses, []models.CycleStatus{models.CycleFailed}) {
					t.Errorf("expected a failed journal entry, got %v", journal.statuses)
				}
			})
		}
	})

	t.Run("Analysis Failure Renders Placeholder", func(t *testing.T) {
		svc := &tu.MockAnalysisService{AnalyzeFunc: func(ctx context.Context, id string) (*models.Analysis, error) {
			return nil, shared.ErrAnalysisFailed
		}}
		events := make(chan Event, 32)
		o := newTestOrchestrator(svc, OrchestratorOpts{Events: events})

		result, err := o.HandleVideoUpload(context.Background(), tu.WriteVideo(t, "a.mp4", "video/mp4"))
		if err != nil {
			t.Fatalf("expected the cycle to succeed, got %v", err)
		}
		if !result.Fallback {
			t.Error("expected Fallback to be set")
		}

		fb := models.FallbackAnalysis()
		if result.Analysis.PoseDetectionConfidence != 0.87 || result.Analysis.DetectionRate != 98.2 ||
			result.Analysis.PosesDetected != 442 || result.Analysis.TechniqueScore != 0.75 {
			t.Errorf("expected placeholder analysis, got %+v", result.Analysis)
		}
		if !slices.Equal(result.Analysis.Recommendations, fb.Recommendations) {
			t.Errorf("expected placeholder recommendations, got %v", result.Analysis.Recommendations)
		}
		if result.Metrics.PosesDetected != "442/450" {
			t.Errorf("expected '442/450', got %q", result.Metrics.PosesDetected)
		}
		if !slices.Contains(drainEvents(events), Rendering) {
			t.Error("expected the cycle to reach Rendering")
		}
	})

	t.Run("Progress Failure Falls Back To Simulation", func(t *testing.T) {
		svc := &tu.MockAnalysisService{ProgressFunc: func(ctx context.Context, id string) (*models.ProgressReport, error) {
			return nil, shared.ErrProgressFailed
		}}
		events := make(chan Event, 32)
		o := newTestOrchestrator(svc, OrchestratorOpts{Events: events})

		result, err := o.HandleVideoUpload(context.Background(), tu.WriteVideo(t, "a.mp4", "video/mp4"))
		if err != nil {
			t.Fatalf("expected the cycle to succeed, got %v", err)
		}
		if result.Fallback {
			t.Error("expected the real analysis")
		}
		if got := o.Session().Snapshot().View.Analysis.Label; got != CompleteLabel {
			t.Errorf("expected simulated completion label, got %q", got)
		}
		if len(o.Session().Snapshot().View.Errors) != 0 {
			t.Error("expected progress failure to stay hidden from the user")
		}
		if !slices.Contains(drainEvents(events), Rendering) {
			t.Error("expected the cycle to reach Rendering")
		}
	})

	t.Run("Probe Retries Processed Video Once", func(t *testing.T) {
		svc := &tu.MockAnalysisService{ProbeFunc: func(ctx context.Context, url string) error {
			if url == "/static/processed/vid-1.mp4" {
				return shared.ErrVideoNotFound
			}
			return nil
		}}
		o := newTestOrchestrator(svc, OrchestratorOpts{ProbeMedia: true})

		if _, err := o.HandleVideoUpload(context.Background(), tu.WriteVideo(t, "a.mp4", "video/mp4")); err != nil {
			t.Fatalf("expected probe failures to be non-fatal, got %v", err)
		}
		if n := svc.CallCount("Probe:/static/original/"); n != 1 {
			t.Errorf("expected 1 original probe, got %d", n)
		}
		if n := svc.CallCount("Probe:/static/processed/"); n != 2 {
			t.Errorf("expected 2 processed probes, got %d", n)
		}
		if got := o.Session().Snapshot().View.ProcessedReloads; got != 1 {
			t.Errorf("expected 1 reload, got %d", got)
		}
	})

	t.Run("Journal Records Completion", func(t *testing.T) {
		journal := &fakeJournal{}
		o := newTestOrchestrator(&tu.MockAnalysisService{}, OrchestratorOpts{Journal: journal})

		result, err := o.HandleVideoUpload(context.Background(), tu.WriteVideo(t, "a.mp4", "video/mp4"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.RecordID != "rec-1" {
			t.Errorf("expected record id 'rec-1', got %q", result.RecordID)
		}
		if journal.begun != 1 || !slices.Equal(journal.statuses, []models.CycleStatus{models.CycleCompleted}) {
			t.Errorf("unexpected journal activity: begun=%d statuses=%v", journal.begun, journal.statuses)
		}
		if journal.last.VideoID() != "vid-1" {
			t.Errorf("expected journal video id 'vid-1', got %q", journal.last.VideoID())
		}
	})

	t.Run("New Cycle Cancels Previous", func(t *testing.T) {
		started := make(chan struct{}, 1)
		svc := &tu.MockAnalysisService{UploadFunc: func(ctx context.Context, f *models.VideoFile) (*models.UploadResult, error) {
			if f.Name == "slow.mp4" {
				started <- struct{}{}
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return tu.SampleUpload("fast"), nil
		}}
		o := newTestOrchestrator(svc, OrchestratorOpts{})

		slow := tu.WriteVideo(t, "slow.mp4", "video/mp4")
		errc := make(chan error, 1)
		go func() {
			_, err := o.HandleVideoUpload(context.Background(), slow)
			errc <- err
		}()
		<-started

		if _, err := o.HandleVideoUpload(context.Background(), tu.WriteVideo(t, "fast.mp4", "video/mp4")); err != nil {
			t.Fatalf("expected second cycle to succeed, got %v", err)
		}

		select {
		case err := <-errc:
			if !errors.Is(err, shared.ErrCycleCancelled) {
				t.Errorf("expected ErrCycleCancelled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("first cycle did not stop")
		}

		snap := o.Session().Snapshot()
		if snap.VideoID != "fast" || !snap.View.ResultsVisible {
			t.Errorf("expected the second cycle's results, got video %q", snap.VideoID)
		}
		if len(snap.View.Errors) != 0 {
			t.Errorf("expected cancelled cycle to show no error, got %v", snap.View.Errors)
		}
	})

	t.Run("Reset Cancels Running Cycle", func(t *testing.T) {
		started := make(chan struct{}, 1)
		svc := &tu.MockAnalysisService{ProgressFunc: func(ctx context.Context, id string) (*models.ProgressReport, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		o := newTestOrchestrator(svc, OrchestratorOpts{})

		file := tu.WriteVideo(t, "a.mp4", "video/mp4")
		errc := make(chan error, 1)
		go func() {
			_, err := o.HandleVideoUpload(context.Background(), file)
			errc <- err
		}()
		<-started

		o.Session().ResetAnalysis()

		if err := <-errc; !errors.Is(err, shared.ErrCycleCancelled) {
			t.Errorf("expected ErrCycleCancelled, got %v", err)
		}
		if svc.CallCount("Analyze") != 0 {
			t.Error("expected no analysis fetch after reset")
		}

		snap := o.Session().Snapshot()
		if snap.VideoID != "" || !snap.View.DropZoneVisible || snap.View.ResultsVisible {
			t.Errorf("expected reset view to survive the cancelled cycle, got %+v", snap.View)
		}
		if snap.View.Analysis.Label != AnalysisIdleLabel {
			t.Errorf("expected idle analysis label, got %q", snap.View.Analysis.Label)
		}
	})
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		Idle:              "idle",
		Validating:        "validating",
		SimulatingUpload:  "simulating_upload",
		AwaitingServerAck: "awaiting_server_ack",
		AnalysisRunning:   "analysis_running",
		Rendering:         "rendering",
		Error:             "error",
		State(99):         "",
	}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), name)
		}
	}
}
