// Package types defines the core entities of the task dependency graph:
// dependency edges, relation types, and the minimal task projection the
// graph layer needs from the surrounding task service.
package types

import (
	"fmt"
	"time"
)

// DependencyType is the kind of relationship an edge encodes. It is an open
// enumeration: callers may persist types beyond the predefined constants as
// long as they pass IsValid. Only types in the configured cycle-check set
// (DepBlocks by default) participate in the acyclicity invariant.
type DependencyType string

const (
	// DepBlocks means the depended-on task must complete before the
	// dependent task can proceed. This is the default type and the one
	// subject to cycle prevention.
	DepBlocks DependencyType = "blocks"

	// DepRelated is an informational link with no ordering semantics.
	DepRelated DependencyType = "related"

	// DepParentChild links a subtask to its parent.
	DepParentChild DependencyType = "parent-child"

	// DepDiscoveredFrom records that one task was discovered while
	// working on another.
	DepDiscoveredFrom DependencyType = "discovered-from"
)

// IsValid reports whether the type is usable as a stored relation type.
func (t DependencyType) IsValid() bool {
	return len(t) >= 1 && len(t) <= 50
}

// Dependency is one directed edge in the task dependency graph.
// TaskID is the dependent task ("blocked by"); DependsOnID is the blocking
// task ("must complete first"). ID and CreatedBy are set once at creation.
type Dependency struct {
	ID          string         `json:"id"`
	TaskID      string         `json:"task_id"`
	DependsOnID string         `json:"depends_on_id"`
	Type        DependencyType `json:"type"`
	CreatedBy   string         `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Validate checks field values. It enforces the structural per-edge
// invariants (non-empty endpoints, no self-loop, valid type) but not the
// graph-level ones, which need store access.
func (d *Dependency) Validate() error {
	if d.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if d.DependsOnID == "" {
		return fmt.Errorf("depends_on_id is required")
	}
	if d.TaskID == d.DependsOnID {
		return fmt.Errorf("task cannot depend on itself")
	}
	if !d.Type.IsValid() {
		return fmt.Errorf("invalid dependency type: %q (must be 1-50 characters)", d.Type)
	}
	return nil
}

// TaskRef is the minimal projection of a task that the dependency layer
// surfaces to callers. Tasks themselves are owned by the task service; the
// graph layer never mutates them.
type TaskRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Slug   string `json:"slug,omitempty"`
	Status string `json:"status"`
}

// DependencyInfo is an edge enriched with both endpoint projections.
type DependencyInfo struct {
	Dependency
	Task      *TaskRef `json:"task,omitempty"`
	DependsOn *TaskRef `json:"depends_on,omitempty"`
}
