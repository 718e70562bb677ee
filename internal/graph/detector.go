// Package graph implements reachability checks over the persisted
// dependency graph. The detector answers "does a directed path exist from
// A to B" without loading the whole graph into memory: it walks the
// depends-on direction one node at a time, querying the store for each
// visited node's outgoing edges.
package graph

import (
	"context"
	"fmt"

	"github.com/planhq/depgraph/internal/types"
)

// EdgeSource supplies outgoing edges in the depends-on direction.
// Implemented by the store; tests substitute in-memory fakes.
type EdgeSource interface {
	// DependsOnIDs returns the tasks that taskID directly depends on,
	// restricted to depTypes. When excludeEdgeID is non-empty, the edge
	// with that id is ignored.
	DependsOnIDs(ctx context.Context, taskID string, depTypes []types.DependencyType, excludeEdgeID string) ([]string, error)
}

// Detector runs reachability queries over an EdgeSource. Only edges whose
// type is in checkedTypes are followed; by default that is just "blocks",
// the relation that encodes a hard ordering constraint.
type Detector struct {
	source       EdgeSource
	checkedTypes []types.DependencyType
}

// NewDetector creates a detector following the given relation types.
// A nil or empty set defaults to {blocks}.
func NewDetector(source EdgeSource, checkedTypes []types.DependencyType) *Detector {
	if len(checkedTypes) == 0 {
		checkedTypes = []types.DependencyType{types.DepBlocks}
	}
	return &Detector{
		source:       source,
		checkedTypes: checkedTypes,
	}
}

// CheckedTypes returns the relation types that participate in acyclicity.
func (d *Detector) CheckedTypes() []types.DependencyType {
	return d.checkedTypes
}

// ChecksType reports whether edges of the given type are cycle-checked.
func (d *Detector) ChecksType(t types.DependencyType) bool {
	for _, ct := range d.checkedTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// PathExists reports whether a directed path exists from fromID to toID in
// the depends-on direction. fromID == toID trivially returns true. The
// traversal visits each node at most once, so it terminates even if the
// stored graph already contains a cycle. A node with no outgoing edges is
// a leaf, not an error.
func (d *Detector) PathExists(ctx context.Context, fromID, toID string) (bool, error) {
	return d.pathExists(ctx, fromID, toID, "")
}

// PathExistsExcluding is PathExists with one edge removed from
// consideration. Update re-validation uses this to check the hypothetical
// new endpoints without the stale edge contributing paths.
func (d *Detector) PathExistsExcluding(ctx context.Context, fromID, toID, excludeEdgeID string) (bool, error) {
	return d.pathExists(ctx, fromID, toID, excludeEdgeID)
}

func (d *Detector) pathExists(ctx context.Context, fromID, toID, excludeEdgeID string) (bool, error) {
	if fromID == toID {
		return true, nil
	}

	visited := map[string]bool{}
	stack := []string{fromID}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current == toID {
			return true, nil
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		next, err := d.source.DependsOnIDs(ctx, current, d.checkedTypes, excludeEdgeID)
		if err != nil {
			return false, fmt.Errorf("failed to expand node %s: %w", current, err)
		}
		for _, id := range next {
			if !visited[id] {
				stack = append(stack, id)
			}
		}
	}

	return false, nil
}

// WouldCycle reports whether inserting the edge taskID -> dependsOnID would
// close a loop: true iff a path already exists from dependsOnID back to
// taskID. The caller is expected to have rejected self-loops already, but a
// same-id pair reports true here too.
func (d *Detector) WouldCycle(ctx context.Context, taskID, dependsOnID string) (bool, error) {
	return d.pathExists(ctx, dependsOnID, taskID, "")
}

// WouldCycleExcluding is WouldCycle with one edge ignored, for re-pointing
// an existing edge.
func (d *Detector) WouldCycleExcluding(ctx context.Context, taskID, dependsOnID, excludeEdgeID string) (bool, error) {
	return d.pathExists(ctx, dependsOnID, taskID, excludeEdgeID)
}
