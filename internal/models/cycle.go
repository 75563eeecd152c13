package models

import (
	"fmt"
	"time"
)

// CycleStatus is the terminal outcome of an upload cycle.
type CycleStatus string

const (
	CycleRunning   CycleStatus = "running"
	CycleCompleted CycleStatus = "completed"
	CycleFailed    CycleStatus = "failed"
	CycleCancelled CycleStatus = "cancelled"
)

// CycleRecord is one upload-through-render cycle as stored by the journal.
type CycleRecord struct {
	id             string
	sequence       int
	videoID        string
	fileName       string
	status         CycleStatus
	message        string
	fallback       bool
	originalURL    string
	processedURL   string
	analysis       Analysis
	reprocessCount int
	createdAt      time.Time
	updatedAt      time.Time
	deletedAt      *time.Time
}

var _ Record = (*CycleRecord)(nil)

// NewCycleRecord creates a running cycle for fileName.
func NewCycleRecord(fileName string) *CycleRecord {
	now := time.Now().UTC()
	return &CycleRecord{
		fileName:  fileName,
		status:    CycleRunning,
		createdAt: now,
		updatedAt: now,
	}
}

func (c *CycleRecord) ID() string              { return c.id }
func (c *CycleRecord) Sequence() int            { return c.sequence }
func (c *CycleRecord) VideoID() string         { return c.videoID }
func (c *CycleRecord) FileName() string        { return c.fileName }
func (c *CycleRecord) Status() CycleStatus     { return c.status }
func (c *CycleRecord) Message() string         { return c.message }
func (c *CycleRecord) Fallback() bool          { return c.fallback }
func (c *CycleRecord) OriginalURL() string     { return c.originalURL }
func (c *CycleRecord) ProcessedURL() string    { return c.processedURL }
func (c *CycleRecord) Analysis() Analysis      { return c.analysis }
func (c *CycleRecord) ReprocessCount() int     { return c.reprocessCount }
func (c *CycleRecord) CreatedAt() time.Time    { return c.createdAt }
func (c *CycleRecord) UpdatedAt() time.Time    { return c.updatedAt }
func (c *CycleRecord) DeletedAt() *time.Time   { return c.deletedAt }

func (c *CycleRecord) SetID(id string)           { c.id = id }
func (c *CycleRecord) SetSequence(n int)         { c.sequence = n }
func (c *CycleRecord) SetCreatedAt(t time.Time)  { c.createdAt = t }
func (c *CycleRecord) SetUpdatedAt(t time.Time)  { c.updatedAt = t }
func (c *CycleRecord) SetDeletedAt(t *time.Time) { c.deletedAt = t }

// Uploaded records the server acknowledgement.
func (c *CycleRecord) Uploaded(u UploadResult) {
	c.videoID = u.VideoID
	c.originalURL = u.OriginalURL
	c.processedURL = u.ProcessedURL
}

// Complete marks the cycle rendered with analysis a.
func (c *CycleRecord) Complete(a Analysis, fallback bool) {
	c.status = CycleCompleted
	c.analysis = a
	c.fallback = fallback
	c.message = ""
}

// Fail marks the cycle failed (or cancelled) with a reason.
func (c *CycleRecord) Fail(status CycleStatus, reason string) {
	c.status = status
	c.message = reason
}

// Reprocessed records a successful reprocess that produced processedURL.
func (c *CycleRecord) Reprocessed(processedURL string) {
	c.processedURL = processedURL
	c.reprocessCount++
}

// Restore sets the fields loaded from storage.
func (c *CycleRecord) Restore(videoID string, status CycleStatus, message string, fallback bool, originalURL, processedURL string, a Analysis, reprocessCount int) {
	c.videoID = videoID
	c.status = status
	c.message = message
	c.fallback = fallback
	c.originalURL = originalURL
	c.processedURL = processedURL
	c.analysis = a
	c.reprocessCount = reprocessCount
}

// Validate checks required fields and the status value.
func (c *CycleRecord) Validate() error {
	if c.fileName == "" {
		return fmt.Errorf("file name is required")
	}
	switch c.status {
	case CycleRunning, CycleCompleted, CycleFailed, CycleCancelled:
	default:
		return fmt.Errorf("invalid cycle status %q", c.status)
	}
	if c.status == CycleCompleted && c.videoID == "" {
		return fmt.Errorf("completed cycle requires a video ID")
	}
	return nil
}
