package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/shared"
)

// ErrCycleNotFound is returned when no live cycle matches a lookup.
var ErrCycleNotFound = errors.New("cycle not found")

const cycleColumns = `id, sequence, video_id, file_name, status, message, fallback, original_url, processed_url,
	detection_confidence, detection_rate, poses_detected, technique_score, recommendations, reprocess_count,
	created_at, updated_at, deleted_at`

// CycleRepository implements models.Store[*models.CycleRecord] over the cycles table.
//
// Rows are soft deleted; every read skips rows with deleted_at set.
type CycleRepository struct {
	db *sql.DB
}

var _ models.Store[*models.CycleRecord] = (*CycleRepository)(nil)

// NewCycleRepository creates a new CycleRepository with the given database connection
func NewCycleRepository(db *sql.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

// Create inserts rec with a generated ID and the next cycle number
func (r *CycleRepository) Create(rec *models.CycleRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	recommendations, err := encodeRecommendations(rec.Analysis().Recommendations)
	if err != nil {
		return err
	}

	id := shared.GenerateID()
	a := rec.Analysis()
	var sequence int

	query := `
		INSERT INTO cycles (id, sequence, video_id, file_name, status, message, fallback, original_url, processed_url,
			detection_confidence, detection_rate, poses_detected, technique_score, recommendations, reprocess_count,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = inTx(r.db, func(tx *sql.Tx) error {
		n, err := NextSequence(tx, "cycles")
		if err != nil {
			return err
		}
		sequence = n

		_, err = tx.Exec(query,
			id,
			sequence,
			rec.VideoID(),
			rec.FileName(),
			string(rec.Status()),
			rec.Message(),
			rec.Fallback(),
			rec.OriginalURL(),
			rec.ProcessedURL(),
			a.PoseDetectionConfidence,
			a.DetectionRate,
			a.PosesDetected,
			a.TechniqueScore,
			recommendations,
			rec.ReprocessCount(),
			rec.CreatedAt(),
			rec.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert cycle: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	rec.SetID(id)
	rec.SetSequence(sequence)
	return nil
}

// Get retrieves a cycle by ID, excluding soft-deleted cycles
func (r *CycleRepository) Get(id string) (*models.CycleRecord, error) {
	query := `SELECT ` + cycleColumns + ` FROM cycles WHERE id = ? AND deleted_at IS NULL`
	return scanCycle(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a cycle by its human-readable number
func (r *CycleRepository) GetBySequence(sequence int) (*models.CycleRecord, error) {
	query := `SELECT ` + cycleColumns + ` FROM cycles WHERE sequence = ? AND deleted_at IS NULL`
	return scanCycle(r.db.QueryRow(query, sequence))
}

// GetByVideoID retrieves the most recent cycle that uploaded videoID
func (r *CycleRepository) GetByVideoID(videoID string) (*models.CycleRecord, error) {
	query := `
		SELECT ` + cycleColumns + `
		FROM cycles
		WHERE video_id = ? AND deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT 1
	`
	return scanCycle(r.db.QueryRow(query, videoID))
}

// Update writes the mutable fields of rec
func (r *CycleRepository) Update(rec *models.CycleRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	recommendations, err := encodeRecommendations(rec.Analysis().Recommendations)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	a := rec.Analysis()

	query := `
		UPDATE cycles
		SET video_id = ?, status = ?, message = ?, fallback = ?, original_url = ?, processed_url = ?,
			detection_confidence = ?, detection_rate = ?, poses_detected = ?, technique_score = ?,
			recommendations = ?, reprocess_count = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		rec.VideoID(),
		string(rec.Status()),
		rec.Message(),
		rec.Fallback(),
		rec.OriginalURL(),
		rec.ProcessedURL(),
		a.PoseDetectionConfidence,
		a.DetectionRate,
		a.PosesDetected,
		a.TechniqueScore,
		recommendations,
		rec.ReprocessCount(),
		now,
		rec.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update cycle: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", ErrCycleNotFound, rec.ID())
	}

	rec.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a cycle by ID
func (r *CycleRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE cycles SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete cycle: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", ErrCycleNotFound, id)
	}

	return nil
}

// List retrieves cycles newest first.
//
// Supported criteria: "status" (string or [models.CycleStatus]), "video_id" (string) and "limit" (int).
func (r *CycleRepository) List(criteria map[string]any) ([]*models.CycleRecord, error) {
	query := `SELECT ` + cycleColumns + ` FROM cycles WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.CycleStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	if videoID, ok := criteria["video_id"].(string); ok && videoID != "" {
		query += " AND video_id = ?"
		args = append(args, videoID)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*models.CycleRecord
	for rows.Next() {
		rec, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return cycles, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(row scanner) (*models.CycleRecord, error) {
	var (
		id              string
		sequence        int
		videoID         string
		fileName        string
		status          string
		message         string
		fallback        bool
		originalURL     string
		processedURL    string
		a               models.Analysis
		recommendations string
		reprocessCount  int
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := row.Scan(&id, &sequence, &videoID, &fileName, &status, &message, &fallback, &originalURL, &processedURL,
		&a.PoseDetectionConfidence, &a.DetectionRate, &a.PosesDetected, &a.TechniqueScore, &recommendations,
		&reprocessCount, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCycleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cycle: %w", err)
	}

	if recommendations != "" {
		if err := json.Unmarshal([]byte(recommendations), &a.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to decode recommendations for cycle %s: %w", id, err)
		}
	}
	a.VideoID = videoID

	rec := models.NewCycleRecord(fileName)
	rec.SetID(id)
	rec.SetSequence(sequence)
	rec.Restore(videoID, models.CycleStatus(status), message, fallback, originalURL, processedURL, a, reprocessCount)
	rec.SetCreatedAt(createdAt)
	rec.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		rec.SetDeletedAt(&deletedAt.Time)
	}

	return rec, nil
}

func encodeRecommendations(recs []string) (string, error) {
	if recs == nil {
		recs = []string{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return "", fmt.Errorf("failed to encode recommendations: %w", err)
	}
	return string(data), nil
}
