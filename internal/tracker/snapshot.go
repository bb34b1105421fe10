package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SnapshotRepository persists the last published tracker state per group
// so composites survive restarts without losing their position.
type SnapshotRepository interface {
	Save(ctx context.Context, state TrackerState) error
	Get(ctx context.Context, groupID string) (*TrackerState, error)
	Delete(ctx context.Context, groupID string) error
}

// SQLiteSnapshotRepository implements SnapshotRepository using SQLite.
//
// Security: Uses parameterised SQL queries to prevent injection.
type SQLiteSnapshotRepository struct {
	db *sql.DB
}

// NewSQLiteSnapshotRepository creates a new SQLite-backed snapshot repository.
func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

// Save upserts the snapshot for the state's group.
func (r *SQLiteSnapshotRepository) Save(ctx context.Context, state TrackerState) error {
	if state.GroupID == "" {
		return fmt.Errorf("snapshot group ID is required")
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	query := `INSERT INTO tracker_snapshots (group_id, state, attributes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			state = excluded.state,
			attributes = excluded.attributes,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		state.GroupID,
		state.State,
		string(payload),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// Get retrieves the snapshot for a group.
// Returns ErrSnapshotNotFound when none exists.
func (r *SQLiteSnapshotRepository) Get(ctx context.Context, groupID string) (*TrackerState, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		"SELECT attributes FROM tracker_snapshots WHERE group_id = ?", groupID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	var state TrackerState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("unmarshalling snapshot: %w", err)
	}
	return &state, nil
}

// Delete removes a group's snapshot. Missing snapshots are not an error.
func (r *SQLiteSnapshotRepository) Delete(ctx context.Context, groupID string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM tracker_snapshots WHERE group_id = ?", groupID,
	); err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}
