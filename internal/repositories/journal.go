package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/sporttrack/internal/models"
)

// CycleJournal records upload cycles and reprocesses in a [CycleRepository].
type CycleJournal struct {
	repo *CycleRepository
}

// NewCycleJournal creates a journal backed by db.
func NewCycleJournal(db *sql.DB) *CycleJournal {
	return &CycleJournal{repo: NewCycleRepository(db)}
}

// Repository exposes the underlying repository for history queries.
func (j *CycleJournal) Repository() *CycleRepository { return j.repo }

// Begin stores a freshly started cycle and assigns its ID.
func (j *CycleJournal) Begin(rec *models.CycleRecord) error {
	return j.repo.Create(rec)
}

// Save writes the current state of a journaled cycle.
func (j *CycleJournal) Save(rec *models.CycleRecord) error {
	return j.repo.Update(rec)
}

// Reprocessed bumps the reprocess count of the latest cycle for videoID and stores its new processed URL.
func (j *CycleJournal) Reprocessed(videoID, processedURL string) error {
	rec, err := j.repo.GetByVideoID(videoID)
	if err != nil {
		return fmt.Errorf("failed to find cycle for video %s: %w", videoID, err)
	}

	rec.Reprocessed(processedURL)
	return j.repo.Update(rec)
}
