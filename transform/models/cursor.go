// Package models implements the warehouse transformations: the cleaned
// staging models, the dimension builders, and the incremental fact builders.
// Full-refresh models recreate their table every run; incremental models
// append past an explicit persisted cursor.
package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/keys"
)

// CursorStore reads and writes the per-task incremental cursor. The cursor
// is the authoritative watermark for incremental fact loads: it is advanced
// in the same transaction as the rows it covers, so a failed append never
// moves it.
type CursorStore struct {
	db    *sql.DB
	table string
}

// NewCursorStore creates a cursor store over the given fully qualified
// cursor table.
func NewCursorStore(db *sql.DB, table string) *CursorStore {
	return &CursorStore{db: db, table: table}
}

// Load returns the cursor position for a task. ok is false when the task has
// never completed an incremental append, which means process everything.
func (s *CursorStore) Load(ctx context.Context, task string) (pos time.Time, ok bool, err error) {
	query := fmt.Sprintf("SELECT position, key_version FROM %s WHERE task_name = ?", s.table)

	var keyVersion int
	err = s.db.QueryRowContext(ctx, query, task).Scan(&pos, &keyVersion)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to load cursor for %s: %w", task, err)
	}

	if keyVersion != keys.Version {
		return time.Time{}, false, fmt.Errorf(
			"cursor for %s was written with key version %d, current is %d; facts need a rebuild before continuing",
			task, keyVersion, keys.Version)
	}

	return pos, true, nil
}

// SaveTx upserts the cursor inside the caller's transaction.
func (s *CursorStore) SaveTx(ctx context.Context, tx *sql.Tx, task string, pos time.Time) error {
	upsert := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (task_name, position, key_version, updated_at) VALUES (?, ?, ?, ?)",
		s.table)
	if _, err := tx.ExecContext(ctx, upsert, task, pos.UTC(), keys.Version, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save cursor for %s: %w", task, err)
	}
	return nil
}
