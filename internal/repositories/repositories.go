package repositories

import (
	"database/sql"
	"fmt"
)

// counters names the tables that own a "<table>_sequence" row.
var counters = map[string]bool{"cycles": true}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence advances the display-number counter of table and returns the new value.
//
// Pass the transaction that inserts the row; when it rolls back the number is reused.
func NextSequence(q rowQuerier, table string) (int, error) {
	if !counters[table] {
		return 0, fmt.Errorf("table %q has no sequence counter", table)
	}

	var n int
	stmt := "UPDATE " + table + "_sequence SET value = value + 1 WHERE id = 1 RETURNING value"
	if err := q.QueryRow(stmt).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return n, nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func inTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
