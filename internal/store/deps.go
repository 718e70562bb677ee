package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/planhq/depgraph/internal/types"
)

// CreateDep inserts a new dependency edge.
//
// Returns types.ErrDuplicateDependency if an edge for the same
// (task_id, depends_on_id) pair already exists, and types.ErrTaskNotFound
// if either endpoint has no task row.
func (db *DB) CreateDep(ctx context.Context, dep *types.Dependency) error {
	if err := dep.Validate(); err != nil {
		return fmt.Errorf("invalid dependency: %w", err)
	}

	query := `
	INSERT INTO task_deps (id, task_id, depends_on_id, type, created_by, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		dep.ID,
		dep.TaskID,
		dep.DependsOnID,
		string(dep.Type),
		dep.CreatedBy,
		dep.CreatedAt.Format(time.RFC3339),
		dep.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to insert dependency %s -> %s: %w", dep.TaskID, dep.DependsOnID, err)
	}

	return nil
}

// GetDep retrieves a dependency edge by id.
// Returns types.ErrDependencyNotFound if no edge matches.
func (db *DB) GetDep(ctx context.Context, id string) (*types.Dependency, error) {
	query := `
	SELECT id, task_id, depends_on_id, type, created_by, created_at, updated_at
	FROM task_deps
	WHERE id = ?
	`

	dep, err := scanDep(db.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %s", types.ErrDependencyNotFound, id)
		}
		return nil, fmt.Errorf("failed to query dependency %s: %w", id, err)
	}
	return dep, nil
}

// GetDepByTasks retrieves the edge for an ordered (task, depends_on) pair.
// Returns types.ErrDependencyNotFound if no edge matches.
func (db *DB) GetDepByTasks(ctx context.Context, taskID, dependsOnID string) (*types.Dependency, error) {
	query := `
	SELECT id, task_id, depends_on_id, type, created_by, created_at, updated_at
	FROM task_deps
	WHERE task_id = ? AND depends_on_id = ?
	`

	dep, err := scanDep(db.conn.QueryRowContext(ctx, query, taskID, dependsOnID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s -> %s", types.ErrDependencyNotFound, taskID, dependsOnID)
		}
		return nil, fmt.Errorf("failed to query dependency %s -> %s: %w", taskID, dependsOnID, err)
	}
	return dep, nil
}

// UpdateDep persists new endpoints and type for an existing edge.
// The id, created_by, and created_at columns are immutable.
//
// Returns types.ErrDependencyNotFound if the edge does not exist and
// types.ErrDuplicateDependency if the new pair collides with another edge.
func (db *DB) UpdateDep(ctx context.Context, dep *types.Dependency) error {
	if err := dep.Validate(); err != nil {
		return fmt.Errorf("invalid dependency: %w", err)
	}

	query := `
	UPDATE task_deps
	SET task_id = ?, depends_on_id = ?, type = ?, updated_at = ?
	WHERE id = ?
	`

	res, err := db.conn.ExecContext(ctx, query,
		dep.TaskID,
		dep.DependsOnID,
		string(dep.Type),
		dep.UpdatedAt.Format(time.RFC3339),
		dep.ID,
	)
	if err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update dependency %s: %w", dep.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %s", types.ErrDependencyNotFound, dep.ID)
	}

	return nil
}

// DeleteDep removes a dependency edge by id.
// Returns types.ErrDependencyNotFound if no edge matches.
func (db *DB) DeleteDep(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM task_deps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dependency %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %s", types.ErrDependencyNotFound, id)
	}

	return nil
}

// DepFilter narrows ListDeps. Zero values mean "no filter".
type DepFilter struct {
	// TaskID restricts to edges where the given task is the dependent.
	TaskID string
	// DependsOnID restricts to edges where the given task is the blocker.
	DependsOnID string
	// ProjectID restricts to edges whose dependent task belongs to the
	// given project (join through the tasks table).
	ProjectID string
}

// ListDeps retrieves dependency edges matching the filter, newest first.
func (db *DB) ListDeps(ctx context.Context, filter DepFilter) ([]*types.Dependency, error) {
	var conditions []string
	var args []interface{}

	query := `
	SELECT d.id, d.task_id, d.depends_on_id, d.type, d.created_by, d.created_at, d.updated_at
	FROM task_deps d
	`

	if filter.ProjectID != "" {
		query += ` JOIN tasks t ON t.id = d.task_id`
		conditions = append(conditions, "t.project_id = ?")
		args = append(args, filter.ProjectID)
	}

	if filter.TaskID != "" {
		conditions = append(conditions, "d.task_id = ?")
		args = append(args, filter.TaskID)
	}

	if filter.DependsOnID != "" {
		conditions = append(conditions, "d.depends_on_id = ?")
		args = append(args, filter.DependsOnID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY d.created_at DESC, d.id DESC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	defer rows.Close()

	return scanDeps(rows)
}

// DependsOnIDs returns the ids of tasks the given task directly depends on,
// restricted to the given relation types. An edge id may be excluded from
// consideration, which update re-validation uses to ignore the edge being
// re-pointed. A task with no outgoing edges yields an empty slice.
func (db *DB) DependsOnIDs(ctx context.Context, taskID string, depTypes []types.DependencyType, excludeEdgeID string) ([]string, error) {
	if len(depTypes) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(depTypes))
	placeholders = placeholders[:len(placeholders)-1]

	query := `
	SELECT depends_on_id
	FROM task_deps
	WHERE task_id = ? AND type IN (` + placeholders + `)`

	args := make([]interface{}, 0, len(depTypes)+2)
	args = append(args, taskID)
	for _, t := range depTypes {
		args = append(args, string(t))
	}

	if excludeEdgeID != "" {
		query += " AND id != ?"
		args = append(args, excludeEdgeID)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outgoing edges for %s: %w", taskID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan depends_on_id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outgoing edges: %w", err)
	}

	return ids, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDep(row rowScanner) (*types.Dependency, error) {
	var dep types.Dependency
	var typ, createdAt, updatedAt string

	err := row.Scan(
		&dep.ID,
		&dep.TaskID,
		&dep.DependsOnID,
		&typ,
		&dep.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	dep.Type = types.DependencyType(typ)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		dep.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		dep.UpdatedAt = t
	}

	return &dep, nil
}

func scanDeps(rows *sql.Rows) ([]*types.Dependency, error) {
	var deps []*types.Dependency
	for rows.Next() {
		dep, err := scanDep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}
	return deps, nil
}
