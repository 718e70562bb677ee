// Package analytics derives aggregate statistics from the dependency
// graph. It reads the same SQLite database as the store but owns its own
// queries; nothing here mutates graph state.
package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/planhq/depgraph/internal/store"
)

// Stats summarizes a project's dependency sub-graph.
//
// CriticalPath is a placeholder: longest-chain computation is not
// implemented and the field is always an empty slice. Callers must not
// assume it is populated.
type Stats struct {
	TotalDependencies int      `json:"total_dependencies"`
	BlockedTasks      int      `json:"blocked_tasks"`
	CriticalPath      []string `json:"critical_path"`
}

// Analyzer runs read-only aggregate queries over the dependency store.
type Analyzer struct {
	conn *sql.DB
}

// New creates an Analyzer over the given store.
func New(db *store.DB) *Analyzer {
	return &Analyzer{conn: db.RawDB()}
}

// ProjectStats returns edge totals for a project scope. An edge is in
// scope when its dependent task belongs to the project; an empty projectID
// covers the whole graph. BlockedTasks counts distinct dependent tasks,
// i.e. tasks that are blocked by at least one thing.
func (a *Analyzer) ProjectStats(ctx context.Context, projectID string) (*Stats, error) {
	query := `
	SELECT COUNT(*), COUNT(DISTINCT d.task_id)
	FROM task_deps d
	JOIN tasks t ON t.id = d.task_id
	WHERE ? = '' OR t.project_id = ?
	`

	stats := &Stats{CriticalPath: []string{}}
	err := a.conn.QueryRowContext(ctx, query, projectID, projectID).
		Scan(&stats.TotalDependencies, &stats.BlockedTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to compute project stats: %w", err)
	}

	return stats, nil
}

// TransitiveBlockers returns the ids of every task that directly or
// transitively blocks the given task, following blocks edges only. The
// result excludes the task itself and contains no duplicates.
func (a *Analyzer) TransitiveBlockers(ctx context.Context, taskID string) ([]string, error) {
	query := `
	WITH RECURSIVE blocking AS (
		-- Base case: direct blockers
		SELECT depends_on_id AS blocker_id
		FROM task_deps
		WHERE task_id = ? AND type = 'blocks'

		UNION

		-- Recursive case: blockers of blockers
		SELECT d.depends_on_id
		FROM task_deps d
		JOIN blocking b ON d.task_id = b.blocker_id
		WHERE d.type = 'blocks'
	)
	SELECT blocker_id FROM blocking WHERE blocker_id != ?
	ORDER BY blocker_id
	`

	rows, err := a.conn.QueryContext(ctx, query, taskID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitive blockers: %w", err)
	}
	defer rows.Close()

	var blockers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan blocker id: %w", err)
		}
		blockers = append(blockers, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blockers: %w", err)
	}

	return blockers, nil
}
