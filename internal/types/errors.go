package types

import "errors"

// Sentinel errors for dependency graph operations. Callers classify
// failures with errors.Is; anything not matching one of these is an
// infrastructure fault and propagates unchanged.
var (
	// ErrSelfDependency is returned when an edge would connect a task to
	// itself.
	ErrSelfDependency = errors.New("task cannot depend on itself")

	// ErrCycle is returned when inserting or re-pointing an edge would
	// close a directed cycle in the blocking graph.
	ErrCycle = errors.New("dependency would create a cycle")

	// ErrDuplicateDependency is returned when an edge already exists for
	// the ordered (task, depends_on) pair.
	ErrDuplicateDependency = errors.New("dependency already exists")

	// ErrDependencyNotFound is returned when no edge matches the given id
	// or task pair.
	ErrDependencyNotFound = errors.New("dependency not found")

	// ErrTaskNotFound is returned when an endpoint task id does not
	// reference an existing task.
	ErrTaskNotFound = errors.New("task not found")
)

// IsInvalidArgument reports whether err is a business-rule rejection of the
// request itself (self-loop or would-create-cycle).
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrSelfDependency) || errors.Is(err, ErrCycle)
}

// IsNotFound reports whether err indicates a missing edge or a missing
// referenced task.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDependencyNotFound) || errors.Is(err, ErrTaskNotFound)
}

// IsConflict reports whether err indicates a duplicate edge.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateDependency)
}
