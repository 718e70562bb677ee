// Package deps implements the task dependency service: validated creation,
// mutation, and querying of dependency edges.
//
// Every mutation passes through the same gate: structural checks first
// (self-loop, endpoint existence, duplicate pair), then the cycle check,
// and only then the store write. The cycle check and the subsequent insert
// are not wrapped in a transaction; see the concurrency note on Create.
package deps

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/planhq/depgraph/internal/graph"
	"github.com/planhq/depgraph/internal/store"
	"github.com/planhq/depgraph/internal/types"
)

// EdgeStore is the persistence contract the service consumes.
// *store.DB satisfies it.
type EdgeStore interface {
	graph.EdgeSource

	CreateDep(ctx context.Context, dep *types.Dependency) error
	GetDep(ctx context.Context, id string) (*types.Dependency, error)
	GetDepByTasks(ctx context.Context, taskID, dependsOnID string) (*types.Dependency, error)
	UpdateDep(ctx context.Context, dep *types.Dependency) error
	DeleteDep(ctx context.Context, id string) error
	ListDeps(ctx context.Context, filter store.DepFilter) ([]*types.Dependency, error)
}

// TaskDirectory resolves task ids to their minimal projections. It is the
// service's view of the task system: existence checks and endpoint
// enrichment, nothing else. *store.DB satisfies it.
type TaskDirectory interface {
	TaskRef(ctx context.Context, taskID string) (*types.TaskRef, error)
}

// Notifier receives dependency change events. Implementations must not
// block; the service calls them synchronously after each successful
// mutation.
type Notifier interface {
	DependencyCreated(dep *types.Dependency)
	DependencyUpdated(dep *types.Dependency)
	DependencyRemoved(dep *types.Dependency)
}

// Service orchestrates dependency graph mutations and queries.
type Service struct {
	edges    EdgeStore
	tasks    TaskDirectory
	detector *graph.Detector
	logger   *log.Logger
	notifier Notifier
}

// New creates a dependency service. If logger is nil, a default logger
// writing to stderr is used.
func New(edges EdgeStore, tasks TaskDirectory, detector *graph.Detector, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[deps] ", log.LstdFlags)
	}
	return &Service{
		edges:    edges,
		tasks:    tasks,
		detector: detector,
		logger:   logger,
	}
}

// SetNotifier registers a change-event receiver. Pass nil to disable.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// CreateRequest describes a single edge to create. Type is optional and
// defaults to blocks; CreatedBy records the acting user.
type CreateRequest struct {
	TaskID      string               `json:"task_id"`
	DependsOnID string               `json:"depends_on_id"`
	Type        types.DependencyType `json:"type,omitempty"`
	CreatedBy   string               `json:"created_by,omitempty"`
}

func (r CreateRequest) effectiveType() types.DependencyType {
	if r.Type == "" {
		return types.DepBlocks
	}
	return r.Type
}

// Create validates and persists a new dependency edge.
//
// Failure modes, in check order: types.ErrSelfDependency for a same-task
// pair, types.ErrTaskNotFound if either endpoint is missing,
// types.ErrDuplicateDependency if the ordered pair already has an edge, and
// types.ErrCycle if the blocking task already (transitively) depends on the
// dependent task.
//
// The cycle check and the insert are two separate store operations; a
// concurrent request can slip an edge in between them. Duplicate-pair races
// are caught by the store's uniqueness constraint, but two concurrent
// inserts of different pairs can still close a loop. That window is
// accepted; there is no serializing lock here.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*types.DependencyInfo, error) {
	if req.TaskID == req.DependsOnID {
		return nil, fmt.Errorf("%w: %s", types.ErrSelfDependency, req.TaskID)
	}

	task, dependsOn, err := s.resolveEndpoints(ctx, req.TaskID, req.DependsOnID)
	if err != nil {
		return nil, err
	}

	if _, err := s.edges.GetDepByTasks(ctx, req.TaskID, req.DependsOnID); err == nil {
		return nil, fmt.Errorf("%w: %s -> %s", types.ErrDuplicateDependency, req.TaskID, req.DependsOnID)
	} else if !errors.Is(err, types.ErrDependencyNotFound) {
		return nil, err
	}

	depType := req.effectiveType()
	if s.detector.ChecksType(depType) {
		cyclic, err := s.detector.WouldCycle(ctx, req.TaskID, req.DependsOnID)
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, fmt.Errorf("%w: %s -> %s", types.ErrCycle, req.TaskID, req.DependsOnID)
		}
	}

	now := time.Now().UTC()
	dep := &types.Dependency{
		ID:          uuid.NewString(),
		TaskID:      req.TaskID,
		DependsOnID: req.DependsOnID,
		Type:        depType,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.edges.CreateDep(ctx, dep); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.DependencyCreated(dep)
	}

	return &types.DependencyInfo{
		Dependency: *dep,
		Task:       task,
		DependsOn:  dependsOn,
	}, nil
}

// BulkResult is the outcome of one item in a bulk creation.
// Exactly one of Info and Err is set.
type BulkResult struct {
	Request CreateRequest
	Info    *types.DependencyInfo
	Err     error
}

// CreateBulk processes the requests sequentially through Create and
// continues past individual failures: a cyclic or duplicate entry must not
// abort the remaining valid entries. Items are processed in order so that
// each one observes the edges created before it in the same batch.
//
// Skipped items are logged; the per-item outcome is also returned so
// callers that want error detail can have it. The call as a whole never
// fails because of one bad item.
func (s *Service) CreateBulk(ctx context.Context, reqs []CreateRequest) []BulkResult {
	results := make([]BulkResult, 0, len(reqs))
	for _, req := range reqs {
		info, err := s.Create(ctx, req)
		if err != nil {
			s.logger.Printf("Skipping dependency %s -> %s: %v", req.TaskID, req.DependsOnID, err)
			results = append(results, BulkResult{Request: req, Err: err})
			continue
		}
		results = append(results, BulkResult{Request: req, Info: info})
	}
	return results
}

// Created extracts the successfully created edges from bulk results.
func Created(results []BulkResult) []*types.DependencyInfo {
	var infos []*types.DependencyInfo
	for _, r := range results {
		if r.Err == nil {
			infos = append(infos, r.Info)
		}
	}
	return infos
}

// FindAll returns all edges, newest first, each enriched with endpoint
// projections. A non-empty projectID scopes the result to edges whose
// dependent task belongs to that project.
func (s *Service) FindAll(ctx context.Context, projectID string) ([]*types.DependencyInfo, error) {
	dependencies, err := s.edges.ListDeps(ctx, store.DepFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, dependencies)
}

// FindOne returns the edge with the given id, endpoint-enriched.
// Returns types.ErrDependencyNotFound if absent.
func (s *Service) FindOne(ctx context.Context, id string) (*types.DependencyInfo, error) {
	dep, err := s.edges.GetDep(ctx, id)
	if err != nil {
		return nil, err
	}
	infos, err := s.enrich(ctx, []*types.Dependency{dep})
	if err != nil {
		return nil, err
	}
	return infos[0], nil
}

// TaskDependencies holds the two disjoint edge sets around one task:
// DependsOn are edges where the task is the dependent (what blocks it),
// Dependents are edges where the task is the blocker (what it blocks).
type TaskDependencies struct {
	DependsOn  []*types.DependencyInfo `json:"depends_on"`
	Dependents []*types.DependencyInfo `json:"dependents"`
}

// GetTaskDependencies returns both edge sets for a task, each entry
// enriched with the opposite endpoint's projection. A task with no edges
// yields two empty sets, not an error.
func (s *Service) GetTaskDependencies(ctx context.Context, taskID string) (*TaskDependencies, error) {
	dependsOn, err := s.edges.ListDeps(ctx, store.DepFilter{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	dependents, err := s.edges.ListDeps(ctx, store.DepFilter{DependsOnID: taskID})
	if err != nil {
		return nil, err
	}

	out := &TaskDependencies{}
	if out.DependsOn, err = s.enrich(ctx, dependsOn); err != nil {
		return nil, err
	}
	if out.Dependents, err = s.enrich(ctx, dependents); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBlockedTasks returns the edges where taskID is the blocker, i.e. the
// tasks currently prevented from proceeding by it.
func (s *Service) GetBlockedTasks(ctx context.Context, taskID string) ([]*types.DependencyInfo, error) {
	blocked, err := s.edges.ListDeps(ctx, store.DepFilter{DependsOnID: taskID})
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, blocked)
}

// UpdateRequest patches an edge. Nil fields keep their current values.
type UpdateRequest struct {
	TaskID      *string               `json:"task_id,omitempty"`
	DependsOnID *string               `json:"depends_on_id,omitempty"`
	Type        *types.DependencyType `json:"type,omitempty"`
}

// Update re-points or re-types an existing edge.
//
// The effective new (task, depends_on) pair is derived from the patch with
// existing values filling unspecified fields. If the pair changes, the
// self-loop, endpoint-existence, and duplicate checks run against it, and
// the cycle check runs with the edge itself excluded: validation targets
// the hypothetical new endpoints, not the stale row. Re-typing an edge
// into a cycle-checked relation re-runs the cycle check too, so the
// acyclicity invariant holds after every successful mutation.
func (s *Service) Update(ctx context.Context, id string, patch UpdateRequest) (*types.DependencyInfo, error) {
	existing, err := s.edges.GetDep(ctx, id)
	if err != nil {
		return nil, err
	}

	newTaskID := existing.TaskID
	if patch.TaskID != nil {
		newTaskID = *patch.TaskID
	}
	newDependsOnID := existing.DependsOnID
	if patch.DependsOnID != nil {
		newDependsOnID = *patch.DependsOnID
	}
	newType := existing.Type
	if patch.Type != nil {
		newType = *patch.Type
	}

	endpointsChanged := newTaskID != existing.TaskID || newDependsOnID != existing.DependsOnID

	if endpointsChanged {
		if newTaskID == newDependsOnID {
			return nil, fmt.Errorf("%w: %s", types.ErrSelfDependency, newTaskID)
		}
		if _, _, err := s.resolveEndpoints(ctx, newTaskID, newDependsOnID); err != nil {
			return nil, err
		}
		if other, err := s.edges.GetDepByTasks(ctx, newTaskID, newDependsOnID); err == nil && other.ID != id {
			return nil, fmt.Errorf("%w: %s -> %s", types.ErrDuplicateDependency, newTaskID, newDependsOnID)
		} else if err != nil && !errors.Is(err, types.ErrDependencyNotFound) {
			return nil, err
		}
	}

	if s.detector.ChecksType(newType) && (endpointsChanged || newType != existing.Type) {
		cyclic, err := s.detector.WouldCycleExcluding(ctx, newTaskID, newDependsOnID, id)
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, fmt.Errorf("%w: %s -> %s", types.ErrCycle, newTaskID, newDependsOnID)
		}
	}

	updated := &types.Dependency{
		ID:          existing.ID,
		TaskID:      newTaskID,
		DependsOnID: newDependsOnID,
		Type:        newType,
		CreatedBy:   existing.CreatedBy,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}

	if err := s.edges.UpdateDep(ctx, updated); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.DependencyUpdated(updated)
	}

	infos, err := s.enrich(ctx, []*types.Dependency{updated})
	if err != nil {
		return nil, err
	}
	return infos[0], nil
}

// Remove deletes an edge by id. No cascading graph repair happens;
// downstream consumers must re-query.
// Returns types.ErrDependencyNotFound if no edge matches.
func (s *Service) Remove(ctx context.Context, id string) error {
	dep, err := s.edges.GetDep(ctx, id)
	if err != nil {
		return err
	}
	if err := s.edges.DeleteDep(ctx, id); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.DependencyRemoved(dep)
	}
	return nil
}

// RemoveByTasks deletes the edge for an ordered (task, depends_on) pair.
// Returns types.ErrDependencyNotFound if no edge matches.
func (s *Service) RemoveByTasks(ctx context.Context, taskID, dependsOnID string) error {
	dep, err := s.edges.GetDepByTasks(ctx, taskID, dependsOnID)
	if err != nil {
		return err
	}
	return s.Remove(ctx, dep.ID)
}

// resolveEndpoints fetches both endpoint projections, checking the two
// task ids concurrently. Either missing task fails the whole resolution
// with types.ErrTaskNotFound.
func (s *Service) resolveEndpoints(ctx context.Context, taskID, dependsOnID string) (*types.TaskRef, *types.TaskRef, error) {
	var task, dependsOn *types.TaskRef

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ref, err := s.tasks.TaskRef(gctx, taskID)
		if err != nil {
			return err
		}
		task = ref
		return nil
	})
	g.Go(func() error {
		ref, err := s.tasks.TaskRef(gctx, dependsOnID)
		if err != nil {
			return err
		}
		dependsOn = ref
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return task, dependsOn, nil
}

// enrich attaches endpoint projections to each edge. Task refs are fetched
// once per distinct id. A task that has vanished since the edge was
// written leaves a nil projection rather than failing the query.
func (s *Service) enrich(ctx context.Context, dependencies []*types.Dependency) ([]*types.DependencyInfo, error) {
	refs := make(map[string]*types.TaskRef)
	lookup := func(id string) (*types.TaskRef, error) {
		if ref, ok := refs[id]; ok {
			return ref, nil
		}
		ref, err := s.tasks.TaskRef(ctx, id)
		if err != nil {
			if errors.Is(err, types.ErrTaskNotFound) {
				refs[id] = nil
				return nil, nil
			}
			return nil, err
		}
		refs[id] = ref
		return ref, nil
	}

	infos := make([]*types.DependencyInfo, 0, len(dependencies))
	for _, dep := range dependencies {
		task, err := lookup(dep.TaskID)
		if err != nil {
			return nil, err
		}
		dependsOn, err := lookup(dep.DependsOnID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, &types.DependencyInfo{
			Dependency: *dep,
			Task:       task,
			DependsOn:  dependsOn,
		})
	}
	return infos, nil
}
