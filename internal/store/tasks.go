package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/planhq/depgraph/internal/types"
)

// TaskRecord is the locally persisted projection of a task. Task content is
// owned by the surrounding task service; this table only mirrors the fields
// the dependency layer surfaces, plus the project id used for scoping.
type TaskRecord struct {
	ID        string
	Title     string
	Slug      string
	Status    string
	ProjectID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertTask inserts or updates a task projection.
func (db *DB) UpsertTask(ctx context.Context, task *TaskRecord) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if task.Title == "" {
		return fmt.Errorf("task title is required")
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}

	query := `
	INSERT INTO tasks (id, title, slug, status, project_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		slug = excluded.slug,
		status = excluded.status,
		project_id = excluded.project_id,
		updated_at = excluded.updated_at
	`

	_, err := db.conn.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Slug,
		task.Status,
		task.ProjectID,
		task.CreatedAt.Format(time.RFC3339),
		task.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
	}

	return nil
}

// DeleteTask removes a task projection. Edges referencing it cascade away.
// Idempotent; returns nil if the task doesn't exist.
func (db *DB) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return nil
}

// TaskRef returns the minimal projection for a task id.
// Returns types.ErrTaskNotFound if the task does not exist.
func (db *DB) TaskRef(ctx context.Context, taskID string) (*types.TaskRef, error) {
	query := `SELECT id, title, slug, status FROM tasks WHERE id = ?`

	var ref types.TaskRef
	err := db.conn.QueryRowContext(ctx, query, taskID).Scan(&ref.ID, &ref.Title, &ref.Slug, &ref.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", types.ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to query task %s: %w", taskID, err)
	}

	return &ref, nil
}
