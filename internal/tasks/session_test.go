package tasks

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func fastTimings() Timings {
	return Timings{PollInterval: time.Millisecond, SimulationScale: 0}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestProgressBar(t *testing.T) {
	t.Run("Width Is Proportional", func(t *testing.T) {
		tests := []struct {
			pct   float64
			total int
			want  int
		}{
			{0, 40, 0},
			{25, 40, 10},
			{50, 40, 20},
			{100, 40, 40},
			{150, 40, 40},
			{-10, 40, 0},
			{50, 0, 0},
		}

		for _, tt := range tests {
			if got := (ProgressBar{Percent: tt.pct}).Width(tt.total); got != tt.want {
				t.Errorf("Width(%v%% of %d) = %d, want %d", tt.pct, tt.total, got, tt.want)
			}
		}
	})
}

func TestSession(t *testing.T) {
	t.Run("Initial View", func(t *testing.T) {
		s := NewSession(fastTimings(), quietLogger())
		v := s.Snapshot().View

		if !v.DropZoneVisible || v.ProgressVisible || v.ResultsVisible || v.PanelVisible {
			t.Errorf("expected only the drop zone visible, got %+v", v)
		}
		if v.Upload.Label != UploadIdleLabel || v.Analysis.Label != AnalysisIdleLabel {
			t.Errorf("unexpected idle labels %q %q", v.Upload.Label, v.Analysis.Label)
		}
		if v.ApplyButton.Label != ApplyLabel || v.ToggleLabel != ToggleOpenLabel {
			t.Errorf("unexpected panel labels %+v %q", v.ApplyButton, v.ToggleLabel)
		}
		if v.Echoes["model_complexity"] != "1" {
			t.Errorf("expected default echo '1', got %q", v.Echoes["model_complexity"])
		}
	})

	t.Run("Progress Updates Overwrite Exactly", func(t *testing.T) {
		s := NewSession(fastTimings(), quietLogger())

		s.UpdateUploadProgress(42, "Uploading... 42%")
		s.UpdateAnalysisProgress(120, "")
		s.UpdateAnalysisProgress(120, "")

		v := s.Snapshot().View
		if v.Upload != (ProgressBar{Percent: 42, Label: "Uploading... 42%"}) {
			t.Errorf("unexpected upload bar %+v", v.Upload)
		}
		if v.Analysis.Percent != 120 || v.Analysis.Label != "" {
			t.Errorf("expected unclamped analysis bar, got %+v", v.Analysis)
		}
	})

	t.Run("ResetAnalysis", func(t *testing.T) {
		s := NewSession(Timings{}, quietLogger())
		s.setVideoID(0, "abc")
		s.SelectFile("/tmp/jump.mp4")
		s.UpdateUploadProgress(100, "Upload complete!")
		s.UpdateAnalysisProgress(60, "Mapping body landmarks...")
		s.ShowError("boom")
		s.update(0, func(v *ViewModel) {
			v.DropZoneVisible = false
			v.ResultsVisible = true
			v.PanelVisible = true
			v.ToggleLabel = ToggleCloseLabel
			v.ScrollTarget = ScrollResults
		})

		s.ResetAnalysis()
		snap := s.Snapshot()
		v := snap.View

		if snap.VideoID != "" || s.VideoID() != "" {
			t.Errorf("expected video id cleared, got %q", snap.VideoID)
		}
		if v.Upload.Percent != 0 || v.Analysis.Percent != 0 {
			t.Errorf("expected both bars at 0, got %v %v", v.Upload.Percent, v.Analysis.Percent)
		}
		if v.Upload.Label != UploadIdleLabel || v.Analysis.Label != AnalysisIdleLabel {
			t.Errorf("expected idle labels, got %q %q", v.Upload.Label, v.Analysis.Label)
		}
		if !v.DropZoneVisible || v.ResultsVisible || v.ProgressVisible || v.PanelVisible {
			t.Errorf("expected drop zone view, got %+v", v)
		}
		if len(v.Errors) != 0 {
			t.Errorf("expected no errors, got %v", v.Errors)
		}
		if v.FileInput != "" || v.ToggleLabel != ToggleOpenLabel || v.ScrollTarget != ScrollTop {
			t.Errorf("unexpected reset view %+v", v)
		}
	})

	t.Run("ResetAnalysis Cancels Cycle", func(t *testing.T) {
		s := NewSession(fastTimings(), quietLogger())
		ctx, gen := s.beginCycle(context.Background())

		s.ResetAnalysis()

		if ctx.Err() == nil {
			t.Error("expected cycle context to be cancelled")
		}
		if s.updateUpload(gen, 50, "stale") {
			t.Error("expected stale update to be dropped")
		}
		if got := s.Snapshot().View.Upload.Label; got != UploadIdleLabel {
			t.Errorf("expected stale update to leave %q, got %q", UploadIdleLabel, got)
		}
	})

	t.Run("Bound Work Ends With Its Generation", func(t *testing.T) {
		for name, end := range map[string]func(*Session){
			"Cancel":        (*Session).Cancel,
			"ResetAnalysis": (*Session).ResetAnalysis,
			"Close":         (*Session).Close,
		} {
			t.Run(name, func(t *testing.T) {
				s := NewSession(fastTimings(), quietLogger())
				ctx, gen, release := s.bind(context.Background())
				defer release()

				if !s.updateFor(gen, func(v *ViewModel) { v.ProcessedReloads++ }) {
					t.Fatal("expected update for the current generation to apply")
				}

				end(s)

				if ctx.Err() == nil {
					t.Error("expected bound context to be cancelled")
				}
				if s.updateFor(gen, func(v *ViewModel) { v.ProcessedReloads++ }) {
					t.Error("expected stale update to be dropped")
				}
				if s.scheduleFeedback(gen, ApplySuccessLabel) {
					t.Error("expected stale feedback to be dropped")
				}
			})
		}
	})

	t.Run("New Cycle Supersedes Old", func(t *testing.T) {
		s := NewSession(fastTimings(), quietLogger())
		first, oldGen := s.beginCycle(context.Background())
		_, newGen := s.beginCycle(context.Background())

		if first.Err() == nil {
			t.Error("expected first cycle context to be cancelled")
		}
		if newGen <= oldGen {
			t.Errorf("expected generation to increase, got %d then %d", oldGen, newGen)
		}
		if s.setVideoID(oldGen, "old") {
			t.Error("expected stale video id to be dropped")
		}
		if !s.setVideoID(newGen, "new") || s.VideoID() != "new" {
			t.Errorf("expected current cycle to set video id, got %q", s.VideoID())
		}
	})

	t.Run("Errors", func(t *testing.T) {
		t.Run("Auto Dismiss", func(t *testing.T) {
			s := NewSession(Timings{ErrorDismissDelay: 10 * time.Millisecond}, quietLogger())
			s.ShowError("temporary")

			if got := len(s.Snapshot().View.Errors); got != 1 {
				t.Fatalf("expected 1 error, got %d", got)
			}

			deadline := time.Now().Add(2 * time.Second)
			for len(s.Snapshot().View.Errors) > 0 {
				if time.Now().After(deadline) {
					t.Fatal("error was not dismissed")
				}
				time.Sleep(5 * time.Millisecond)
			}
		})

		t.Run("Replaces Previous", func(t *testing.T) {
			s := NewSession(Timings{}, quietLogger())
			s.ShowError("first")
			s.ShowError("second")

			errs := s.Snapshot().View.Errors
			if len(errs) != 1 || errs[0].Text != "second" {
				t.Errorf("expected only 'second', got %v", errs)
			}
		})

		t.Run("Dismiss By ID", func(t *testing.T) {
			s := NewSession(Timings{}, quietLogger())
			id := s.ShowError("x")
			s.DismissError(id)

			if got := len(s.Snapshot().View.Errors); got != 0 {
				t.Errorf("expected no errors, got %d", got)
			}
		})
	})

	t.Run("Alert", func(t *testing.T) {
		s := NewSession(Timings{}, quietLogger())
		s.RaiseAlert("blocking")
		if s.Snapshot().View.Alert != "blocking" {
			t.Error("expected alert to be raised")
		}

		s.DismissAlert()
		if s.Snapshot().View.Alert != "" {
			t.Error("expected alert to be dismissed")
		}
	})

	t.Run("Resume", func(t *testing.T) {
		s := NewSession(Timings{}, quietLogger())
		s.Resume("abc")

		if s.VideoID() != "abc" || s.Snapshot().VideoID != "abc" {
			t.Errorf("expected resumed video abc, got %q", s.VideoID())
		}
		if !s.Snapshot().View.DropZoneVisible {
			t.Error("resume should not touch the view")
		}
	})

	t.Run("Subscribe", func(t *testing.T) {
		t.Run("Receives Snapshots", func(t *testing.T) {
			s := NewSession(Timings{}, quietLogger())
			ch, unsubscribe := s.Subscribe(4)
			defer unsubscribe()

			s.UpdateUploadProgress(30, "Uploading... 30%")

			select {
			case snap := <-ch:
				if snap.View.Upload.Percent != 30 {
					t.Errorf("expected 30%%, got %v", snap.View.Upload.Percent)
				}
			case <-time.After(time.Second):
				t.Fatal("expected a snapshot")
			}
		})

		t.Run("Never Blocks", func(t *testing.T) {
			s := NewSession(Timings{}, quietLogger())
			_, unsubscribe := s.Subscribe(0)
			defer unsubscribe()

			done := make(chan struct{})
			go func() {
				for i := range 100 {
					s.UpdateUploadProgress(float64(i), "x")
				}
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("updates blocked on a slow subscriber")
			}
		})

		t.Run("Unsubscribe Closes", func(t *testing.T) {
			s := NewSession(Timings{}, quietLogger())
			ch, unsubscribe := s.Subscribe(1)
			unsubscribe()
			unsubscribe()

			if _, ok := <-ch; ok {
				t.Error("expected channel to be closed")
			}
		})

		t.Run("Close Closes Subscribers", func(t *testing.T) {
			s := NewSession(Timings{}, quietLogger())
			ch, unsubscribe := s.Subscribe(1)
			s.Close()
			unsubscribe()

			if _, ok := <-ch; ok {
				t.Error("expected channel to be closed")
			}
		})
	})

	t.Run("Snapshot Is A Copy", func(t *testing.T) {
		s := NewSession(Timings{}, quietLogger())
		s.ShowError("x")

		snap := s.Snapshot()
		snap.View.Errors[0].Text = "mutated"
		snap.View.Echoes["model_complexity"] = "9"

		v := s.Snapshot().View
		if v.Errors[0].Text != "x" || v.Echoes["model_complexity"] != "1" {
			t.Error("expected snapshot mutation to not affect the session")
		}
	})
}
