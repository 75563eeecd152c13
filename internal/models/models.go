// package models defines the data model for the sporttrack client
package models

import "time"

// Record is an entity kept in the local journal.
//
// Records are keyed by a UUID, carry a per-table display number assigned on insert,
// and are soft deleted: DeletedAt is nil for live rows.
type Record interface {
	ID() string
	Sequence() int
	CreatedAt() time.Time
	UpdatedAt() time.Time
	DeletedAt() *time.Time
	Validate() error
}

// Store persists one kind of [Record]. Reads never return soft-deleted rows.
type Store[T Record] interface {
	Create(rec T) error
	Get(id string) (T, error)
	GetBySequence(n int) (T, error)
	Update(rec T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
