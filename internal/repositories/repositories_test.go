package repositories

import (
	"database/sql"
	"errors"
	"slices"
	"testing"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/shared"
	tu "github.com/desertthunder/sporttrack/internal/testing"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func completedCycle(name, videoID string) *models.CycleRecord {
	rec := models.NewCycleRecord(name)
	upload := tu.SampleUpload(videoID)
	rec.Uploaded(*upload)
	rec.Complete(tu.SampleAnalysis(), false)
	return rec
}

func TestNextSequence(t *testing.T) {
	t.Run("Counts Up", func(t *testing.T) {
		db := setupTestDB(t)

		for want := 1; want <= 3; want++ {
			got, err := NextSequence(db, "cycles")
			if err != nil {
				t.Fatalf("failed to get sequence: %v", err)
			}
			if got != want {
				t.Errorf("expected sequence %d, got %d", want, got)
			}
		}
	})

	t.Run("Unknown Table", func(t *testing.T) {
		if _, err := NextSequence(setupTestDB(t), "cycles; DROP TABLE cycles"); err == nil {
			t.Error("expected error for a table without a sequence")
		}
	})

	t.Run("Rolled Back Number Is Reused", func(t *testing.T) {
		db := setupTestDB(t)

		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("failed to begin: %v", err)
		}
		if got, err := NextSequence(tx, "cycles"); err != nil || got != 1 {
			t.Fatalf("expected 1 inside the transaction, got %d (%v)", got, err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("failed to roll back: %v", err)
		}

		if got, err := NextSequence(db, "cycles"); err != nil || got != 1 {
			t.Errorf("expected 1 after rollback, got %d (%v)", got, err)
		}
	})

	t.Run("Failed Insert Keeps Counter", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCycleRepository(db)

		if _, err := db.Exec(`CREATE TRIGGER reject_cycles BEFORE INSERT ON cycles BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
			t.Fatalf("failed to create trigger: %v", err)
		}
		if err := repo.Create(models.NewCycleRecord("jump.mp4")); err == nil {
			t.Fatal("expected insert to fail")
		}
		if _, err := db.Exec(`DROP TRIGGER reject_cycles`); err != nil {
			t.Fatalf("failed to drop trigger: %v", err)
		}

		rec := models.NewCycleRecord("jump.mp4")
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create cycle: %v", err)
		}
		if rec.Sequence() != 1 {
			t.Errorf("expected the failed insert to leave number 1 free, got %d", rec.Sequence())
		}
	})
}

func TestCycleRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewCycleRepository(setupTestDB(t))
		rec := models.NewCycleRecord("jump.mp4")

		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create cycle: %v", err)
		}
		if rec.ID() == "" {
			t.Error("cycle ID should be set after creation")
		}
		if rec.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", rec.Sequence())
		}
	})

	t.Run("Create Rejects Invalid", func(t *testing.T) {
		repo := NewCycleRepository(setupTestDB(t))

		if err := repo.Create(models.NewCycleRecord("")); err == nil {
			t.Error("expected validation error for empty file name")
		}
	})

	t.Run("Get Round Trip", func(t *testing.T) {
		repo := NewCycleRepository(setupTestDB(t))
		rec := completedCycle("jump.mp4", "vid-1")

		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create cycle: %v", err)
		}

		got, err := repo.Get(rec.ID())
		if err != nil {
			t.Fatalf("failed to get cycle: %v", err)
		}

		if got.Status() != models.CycleCompleted || got.VideoID() != "vid-1" || got.FileName() != "jump.mp4" {
			t.Errorf("unexpected cycle %+v", got)
		}
		if got.ProcessedURL() != "/static/processed/vid-1.mp4" {
			t.Errorf("expected processed URL, got %q", got.ProcessedURL())
		}

		a := got.Analysis()
		want := tu.SampleAnalysis()
		if a.PosesDetected != want.PosesDetected || a.TechniqueScore != want.TechniqueScore {
			t.Errorf("expected analysis %+v, got %+v", want, a)
		}
		if !slices.Equal(a.Recommendations, want.Recommendations) {
			t.Errorf("expected recommendations %v, got %v", want.Recommendations, a.Recommendations)
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		repo := NewCycleRepository(setupTestDB(t))

		if _, err := repo.Get("nonexistent-id"); !errors.Is(err, ErrCycleNotFound) {
			t.Errorf("expected ErrCycleNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewCycleRepository(setupTestDB(t))
		rec := models.NewCycleRecord("jump.mp4")
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create cycle: %v", err)
		}

		rec.Fail(models.CycleFailed, "Invalid file type")
		if err := repo.Update(rec); err != nil {
			t.Fatalf("failed to update cycle: %v", err)
		}

		got, err := repo.Get(rec.ID())
		if err != nil {
			t.Fatalf("failed to get cycle: %v", err)
		}
		if got.Status() != models.CycleFailed || got.Message() != "Invalid file type" {
			t.Errorf("expected failed cycle, got %s %q", got.Status(), got.Message())
		}
	})

	t.Run("Update NotFound", func(t *testing.T) {
		repo := NewCycleRepository(setupTestDB(t))
		rec := models.NewCycleRecord("jump.mp4")
		rec.SetID("nonexistent-id")

		if err := repo.Update(rec); !errors.Is(err, ErrCycleNotFound) {
			t.Errorf("expected ErrCycleNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewCycleRepository(setupTestDB(t))
		rec := models.NewCycleRecord("jump.mp4")
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create cycle: %v", err)
		}

		if err := repo.Delete(rec.ID()); err != nil {
			t.Fatalf("failed to delete cycle: %v", err)
		}
		if _, err := repo.Get(rec.ID()); !errors.Is(err, ErrCycleNotFound) {
			t.Error("deleted cycle should not be retrievable")
		}
		if err := repo.Delete(rec.ID()); err == nil {
			t.Error("expected error deleting an already deleted cycle")
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewCycleRepository(setupTestDB(t))

		first := completedCycle("a.mp4", "vid-a")
		second := models.NewCycleRecord("b.avi")
		second.Fail(models.CycleFailed, "Upload failed")
		third := completedCycle("c.mov", "vid-c")
		for _, rec := range []*models.CycleRecord{first, second, third} {
			if err := repo.Create(rec); err != nil {
				t.Fatalf("failed to create cycle: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list cycles: %v", err)
		}
		if len(all) != 3 || all[0].FileName() != "c.mov" || all[2].FileName() != "a.mp4" {
			t.Errorf("expected newest first, got %d cycles", len(all))
		}

		completed, err := repo.List(map[string]any{"status": models.CycleCompleted})
		if err != nil {
			t.Fatalf("failed to list cycles: %v", err)
		}
		if len(completed) != 2 {
			t.Errorf("expected 2 completed cycles, got %d", len(completed))
		}

		failed, _ := repo.List(map[string]any{"status": "failed"})
		if len(failed) != 1 || failed[0].Message() != "Upload failed" {
			t.Errorf("expected the failed cycle, got %d", len(failed))
		}

		limited, _ := repo.List(map[string]any{"limit": 1})
		if len(limited) != 1 || limited[0].Sequence() != 3 {
			t.Errorf("expected only the newest cycle, got %d", len(limited))
		}

		byVideo, _ := repo.List(map[string]any{"video_id": "vid-a"})
		if len(byVideo) != 1 || byVideo[0].ID() != first.ID() {
			t.Errorf("expected the vid-a cycle, got %d", len(byVideo))
		}
	})

	t.Run("GetBySequence And VideoID", func(t *testing.T) {
		repo := NewCycleRepository(setupTestDB(t))
		rec := completedCycle("a.mp4", "vid-a")
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create cycle: %v", err)
		}

		bySeq, err := repo.GetBySequence(1)
		if err != nil || bySeq.ID() != rec.ID() {
			t.Errorf("expected cycle #1, got %v", err)
		}

		byVideo, err := repo.GetByVideoID("vid-a")
		if err != nil || byVideo.ID() != rec.ID() {
			t.Errorf("expected cycle for vid-a, got %v", err)
		}

		if _, err := repo.GetByVideoID("vid-z"); !errors.Is(err, ErrCycleNotFound) {
			t.Errorf("expected ErrCycleNotFound, got %v", err)
		}
	})
}

func TestCycleJournal(t *testing.T) {
	t.Run("Begin And Save", func(t *testing.T) {
		j := NewCycleJournal(setupTestDB(t))
		rec := models.NewCycleRecord("jump.mp4")

		if err := j.Begin(rec); err != nil {
			t.Fatalf("failed to begin: %v", err)
		}

		rec.Uploaded(*tu.SampleUpload("vid-1"))
		rec.Complete(models.FallbackAnalysis(), true)
		if err := j.Save(rec); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		got, err := j.Repository().Get(rec.ID())
		if err != nil {
			t.Fatalf("failed to get cycle: %v", err)
		}
		if !got.Fallback() || got.Analysis().PosesDetected != 442 {
			t.Errorf("expected fallback analysis to be stored, got %+v", got.Analysis())
		}
	})

	t.Run("Reprocessed", func(t *testing.T) {
		j := NewCycleJournal(setupTestDB(t))
		rec := completedCycle("jump.mp4", "vid-1")
		if err := j.Begin(rec); err != nil {
			t.Fatalf("failed to begin: %v", err)
		}

		if err := j.Reprocessed("vid-1", "/static/processed/vid-1_v2.mp4"); err != nil {
			t.Fatalf("failed to record reprocess: %v", err)
		}

		got, _ := j.Repository().Get(rec.ID())
		if got.ReprocessCount() != 1 || got.ProcessedURL() != "/static/processed/vid-1_v2.mp4" {
			t.Errorf("expected reprocess to be recorded, got %d %q", got.ReprocessCount(), got.ProcessedURL())
		}

		if err := j.Reprocessed("unknown", "/x.mp4"); !errors.Is(err, ErrCycleNotFound) {
			t.Errorf("expected ErrCycleNotFound, got %v", err)
		}
	})
}
