// Package repositories implements SQLite persistence for the cycle journal.
//
// [CycleRepository] implements models.Store[*models.CycleRecord]. Rows are soft deleted via
// deleted_at and excluded from every query. Each cycle also gets a number from [NextSequence],
// drawn inside the insert's transaction so a failed insert does not consume it.
//
// [CycleJournal] adapts the repository to the journal hooks of the upload orchestrator and the
// parameter panel.
package repositories
