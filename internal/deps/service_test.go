package deps

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/planhq/depgraph/internal/graph"
	"github.com/planhq/depgraph/internal/store"
	"github.com/planhq/depgraph/internal/types"
)

func newTestService(t *testing.T, taskIDs ...string) *Service {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	for _, id := range taskIDs {
		err := db.UpsertTask(ctx, &store.TaskRecord{ID: id, Title: "Task " + id, Status: "open"})
		if err != nil {
			t.Fatalf("failed to upsert task %s: %v", id, err)
		}
	}

	detector := graph.NewDetector(db, nil)
	return New(db, db, detector, log.New(io.Discard, "", 0))
}

func TestCreate(t *testing.T) {
	svc := newTestService(t, "t1", "t2")
	ctx := context.Background()

	info, err := svc.Create(ctx, CreateRequest{TaskID: "t1", DependsOnID: "t2", CreatedBy: "user-1"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if info.ID == "" {
		t.Error("Create() returned empty edge id")
	}
	if info.Type != types.DepBlocks {
		t.Errorf("Create() type = %s, want blocks (default)", info.Type)
	}
	if info.Task == nil || info.Task.Title != "Task t1" {
		t.Errorf("Create() task projection = %+v", info.Task)
	}
	if info.DependsOn == nil || info.DependsOn.ID != "t2" {
		t.Errorf("Create() depends_on projection = %+v", info.DependsOn)
	}
	if info.CreatedAt.IsZero() || !info.CreatedAt.Equal(info.UpdatedAt) {
		t.Errorf("Create() timestamps = %v / %v", info.CreatedAt, info.UpdatedAt)
	}
}

func TestCreate_SelfDependency(t *testing.T) {
	svc := newTestService(t, "t1")

	_, err := svc.Create(context.Background(), CreateRequest{TaskID: "t1", DependsOnID: "t1"})
	if !errors.Is(err, types.ErrSelfDependency) {
		t.Errorf("Create(self) error = %v, want ErrSelfDependency", err)
	}
	if !types.IsInvalidArgument(err) {
		t.Error("self dependency should classify as invalid argument")
	}
}

func TestCreate_MissingTask(t *testing.T) {
	svc := newTestService(t, "t1")
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{TaskID: "t1", DependsOnID: "ghost"})
	if !errors.Is(err, types.ErrTaskNotFound) {
		t.Errorf("Create(missing blocker) error = %v, want ErrTaskNotFound", err)
	}

	_, err = svc.Create(ctx, CreateRequest{TaskID: "ghost", DependsOnID: "t1"})
	if !errors.Is(err, types.ErrTaskNotFound) {
		t.Errorf("Create(missing dependent) error = %v, want ErrTaskNotFound", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc := newTestService(t, "t1", "t2")
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateRequest{TaskID: "t1", DependsOnID: "t2"}); err != nil {
		t.Fatalf("first Create() failed: %v", err)
	}

	_, err := svc.Create(ctx, CreateRequest{TaskID: "t1", DependsOnID: "t2"})
	if !errors.Is(err, types.ErrDuplicateDependency) {
		t.Errorf("Create(duplicate) error = %v, want ErrDuplicateDependency", err)
	}
	if !types.IsConflict(err) {
		t.Error("duplicate should classify as conflict")
	}

	// A second edge with a different type is still the same ordered pair.
	_, err = svc.Create(ctx, CreateRequest{TaskID: "t1", DependsOnID: "t2", Type: types.DepRelated})
	if !errors.Is(err, types.ErrDuplicateDependency) {
		t.Errorf("Create(duplicate, other type) error = %v, want ErrDuplicateDependency", err)
	}
}

func TestCreate_CyclePrevention(t *testing.T) {
	svc := newTestService(t, "a", "b", "c")
	ctx := context.Background()

	mustCreate(t, svc, "a", "b")
	mustCreate(t, svc, "b", "c")

	_, err := svc.Create(ctx, CreateRequest{TaskID: "c", DependsOnID: "a"})
	if !errors.Is(err, types.ErrCycle) {
		t.Errorf("Create(closing edge) error = %v, want ErrCycle", err)
	}
	if !types.IsInvalidArgument(err) {
		t.Error("cycle should classify as invalid argument")
	}

	// The two-node version is caught as well.
	_, err = svc.Create(ctx, CreateRequest{TaskID: "b", DependsOnID: "a"})
	if !errors.Is(err, types.ErrCycle) {
		t.Errorf("Create(direct back edge) error = %v, want ErrCycle", err)
	}
}

func TestCreate_RelatedSkipsCycleCheck(t *testing.T) {
	svc := newTestService(t, "a", "b")
	ctx := context.Background()

	mustCreate(t, svc, "a", "b")

	// The reverse direction is allowed for a non-ordering relation.
	_, err := svc.Create(ctx, CreateRequest{TaskID: "b", DependsOnID: "a", Type: types.DepRelated})
	if err != nil {
		t.Fatalf("Create(related back edge) failed: %v", err)
	}
}

func TestCreate_ReverseAfterRemoval(t *testing.T) {
	svc := newTestService(t, "t1", "t2")
	ctx := context.Background()

	info := mustCreate(t, svc, "t1", "t2")

	if _, err := svc.Create(ctx, CreateRequest{TaskID: "t2", DependsOnID: "t1"}); !errors.Is(err, types.ErrCycle) {
		t.Fatalf("Create(reverse) error = %v, want ErrCycle", err)
	}

	if err := svc.Remove(ctx, info.ID); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	if _, err := svc.Create(ctx, CreateRequest{TaskID: "t2", DependsOnID: "t1"}); err != nil {
		t.Errorf("Create(reverse after removal) failed: %v", err)
	}
}

func TestCreateBulk_BestEffort(t *testing.T) {
	svc := newTestService(t, "t1", "t2", "t3")
	ctx := context.Background()

	results := svc.CreateBulk(ctx, []CreateRequest{
		{TaskID: "t1", DependsOnID: "t2"},
		{TaskID: "t2", DependsOnID: "t3"},
		{TaskID: "t3", DependsOnID: "t1"},
	})

	if len(results) != 3 {
		t.Fatalf("CreateBulk() returned %d results, want 3", len(results))
	}
	if results[0].Err != nil || results[1].Err != nil {
		t.Errorf("valid entries failed: %v / %v", results[0].Err, results[1].Err)
	}
	if !errors.Is(results[2].Err, types.ErrCycle) {
		t.Errorf("closing entry error = %v, want ErrCycle", results[2].Err)
	}

	created := Created(results)
	if len(created) != 2 {
		t.Errorf("Created() = %d edges, want 2", len(created))
	}

	// Only the two valid edges landed.
	all, err := svc.FindAll(ctx, "")
	if err != nil {
		t.Fatalf("FindAll() failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("FindAll() = %d edges after bulk, want 2", len(all))
	}
}

func TestCreateBulk_MidBatchFailureDoesNotAbort(t *testing.T) {
	svc := newTestService(t, "t1", "t2", "t3")

	results := svc.CreateBulk(context.Background(), []CreateRequest{
		{TaskID: "t1", DependsOnID: "t1"}, // self loop, skipped
		{TaskID: "t1", DependsOnID: "t2"},
		{TaskID: "t1", DependsOnID: "t2"}, // duplicate of previous entry
		{TaskID: "t2", DependsOnID: "t3"},
	})

	if !errors.Is(results[0].Err, types.ErrSelfDependency) {
		t.Errorf("results[0] error = %v, want ErrSelfDependency", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("results[1] failed: %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, types.ErrDuplicateDependency) {
		t.Errorf("results[2] error = %v, want ErrDuplicateDependency", results[2].Err)
	}
	if results[3].Err != nil {
		t.Errorf("results[3] failed: %v", results[3].Err)
	}
}

func TestFindOne_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.FindOne(context.Background(), "no-such-edge")
	if !errors.Is(err, types.ErrDependencyNotFound) {
		t.Errorf("FindOne(missing) error = %v, want ErrDependencyNotFound", err)
	}
	if !types.IsNotFound(err) {
		t.Error("missing edge should classify as not found")
	}
}

func TestGetTaskDependencies(t *testing.T) {
	svc := newTestService(t, "t1", "t2", "t3")
	ctx := context.Background()

	mustCreate(t, svc, "t1", "t2")
	mustCreate(t, svc, "t3", "t1")

	td, err := svc.GetTaskDependencies(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTaskDependencies() failed: %v", err)
	}
	if len(td.DependsOn) != 1 || td.DependsOn[0].DependsOnID != "t2" {
		t.Errorf("DependsOn = %d edges, want the t1 -> t2 edge", len(td.DependsOn))
	}
	if len(td.Dependents) != 1 || td.Dependents[0].TaskID != "t3" {
		t.Errorf("Dependents = %d edges, want the t3 -> t1 edge", len(td.Dependents))
	}
	if td.DependsOn[0].DependsOn == nil || td.DependsOn[0].DependsOn.Title != "Task t2" {
		t.Errorf("DependsOn projection missing: %+v", td.DependsOn[0].DependsOn)
	}

	// Reads do not change graph state: querying again yields the same sets.
	again, err := svc.GetTaskDependencies(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTaskDependencies() second call failed: %v", err)
	}
	if len(again.DependsOn) != 1 || len(again.Dependents) != 1 {
		t.Errorf("second call = %d/%d edges, want 1/1", len(again.DependsOn), len(again.Dependents))
	}
	if again.DependsOn[0].ID != td.DependsOn[0].ID {
		t.Error("second call returned a different edge")
	}

	empty, err := svc.GetTaskDependencies(ctx, "t2")
	if err != nil {
		t.Fatalf("GetTaskDependencies(no outgoing) failed: %v", err)
	}
	if len(empty.DependsOn) != 0 {
		t.Errorf("t2 DependsOn = %d edges, want 0", len(empty.DependsOn))
	}
}

func TestGetBlockedTasks(t *testing.T) {
	svc := newTestService(t, "t1", "t2", "t3")
	ctx := context.Background()

	mustCreate(t, svc, "t1", "t3")
	mustCreate(t, svc, "t2", "t3")

	blocked, err := svc.GetBlockedTasks(ctx, "t3")
	if err != nil {
		t.Fatalf("GetBlockedTasks() failed: %v", err)
	}
	if len(blocked) != 2 {
		t.Fatalf("GetBlockedTasks(t3) = %d edges, want 2", len(blocked))
	}
	for _, info := range blocked {
		if info.DependsOnID != "t3" {
			t.Errorf("blocked edge %s has blocker %s, want t3", info.ID, info.DependsOnID)
		}
	}

	none, err := svc.GetBlockedTasks(ctx, "t1")
	if err != nil {
		t.Fatalf("GetBlockedTasks(t1) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("GetBlockedTasks(t1) = %d edges, want 0", len(none))
	}
}

func TestUpdate_RePoint(t *testing.T) {
	svc := newTestService(t, "t1", "t2", "t3")
	ctx := context.Background()

	info := mustCreate(t, svc, "t1", "t2")

	newTarget := "t3"
	updated, err := svc.Update(ctx, info.ID, UpdateRequest{DependsOnID: &newTarget})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.DependsOnID != "t3" {
		t.Errorf("Update() depends_on = %s, want t3", updated.DependsOnID)
	}
	if updated.ID != info.ID {
		t.Errorf("Update() changed edge id: %s -> %s", info.ID, updated.ID)
	}
	// Stored timestamps carry second precision.
	if !updated.CreatedAt.Equal(info.CreatedAt.Truncate(time.Second)) {
		t.Error("Update() changed created_at")
	}
	if updated.DependsOn == nil || updated.DependsOn.ID != "t3" {
		t.Errorf("Update() projection = %+v", updated.DependsOn)
	}
}

func TestUpdate_RejectsCycle(t *testing.T) {
	svc := newTestService(t, "t1", "t2", "t3")
	ctx := context.Background()

	info := mustCreate(t, svc, "t1", "t2")
	mustCreate(t, svc, "t3", "t1")

	// Re-pointing t1 -> t2 at t3 would close t1 -> t3 -> t1.
	newTarget := "t3"
	_, err := svc.Update(ctx, info.ID, UpdateRequest{DependsOnID: &newTarget})
	if !errors.Is(err, types.ErrCycle) {
		t.Fatalf("Update(cyclic) error = %v, want ErrCycle", err)
	}

	// The original edge is untouched.
	got, err := svc.FindOne(ctx, info.ID)
	if err != nil {
		t.Fatalf("FindOne() failed: %v", err)
	}
	if got.DependsOnID != "t2" {
		t.Errorf("edge mutated by failed update: depends_on = %s, want t2", got.DependsOnID)
	}
}

func TestUpdate_SelfReferentialExclusion(t *testing.T) {
	svc := newTestService(t, "t1", "t2")
	ctx := context.Background()

	// Swapping the direction of the only edge is legal: the edge being
	// re-pointed must not count against its own cycle check.
	info := mustCreate(t, svc, "t1", "t2")

	newTask, newTarget := "t2", "t1"
	updated, err := svc.Update(ctx, info.ID, UpdateRequest{TaskID: &newTask, DependsOnID: &newTarget})
	if err != nil {
		t.Fatalf("Update(swap) failed: %v", err)
	}
	if updated.TaskID != "t2" || updated.DependsOnID != "t1" {
		t.Errorf("Update(swap) = %s -> %s, want t2 -> t1", updated.TaskID, updated.DependsOnID)
	}
}

func TestUpdate_RetypeIntoCheckedRelation(t *testing.T) {
	svc := newTestService(t, "t1", "t2")
	ctx := context.Background()

	mustCreate(t, svc, "t1", "t2")

	related, err := svc.Create(ctx, CreateRequest{TaskID: "t2", DependsOnID: "t1", Type: types.DepRelated})
	if err != nil {
		t.Fatalf("Create(related) failed: %v", err)
	}

	// Turning the related back edge into blocks would close a loop.
	newType := types.DepBlocks
	_, err = svc.Update(ctx, related.ID, UpdateRequest{Type: &newType})
	if !errors.Is(err, types.ErrCycle) {
		t.Errorf("Update(retype into cycle) error = %v, want ErrCycle", err)
	}
}

func TestUpdate_DuplicateTarget(t *testing.T) {
	svc := newTestService(t, "t1", "t2", "t3")
	ctx := context.Background()

	mustCreate(t, svc, "t1", "t2")
	other := mustCreate(t, svc, "t1", "t3")

	newTarget := "t2"
	_, err := svc.Update(ctx, other.ID, UpdateRequest{DependsOnID: &newTarget})
	if !errors.Is(err, types.ErrDuplicateDependency) {
		t.Errorf("Update(onto existing pair) error = %v, want ErrDuplicateDependency", err)
	}
}

func TestUpdate_NoopKeepsPair(t *testing.T) {
	svc := newTestService(t, "t1", "t2")
	ctx := context.Background()

	info := mustCreate(t, svc, "t1", "t2")

	// A patch naming the current values must not trip the duplicate check
	// against the edge itself.
	task, target := "t1", "t2"
	updated, err := svc.Update(ctx, info.ID, UpdateRequest{TaskID: &task, DependsOnID: &target})
	if err != nil {
		t.Fatalf("Update(noop) failed: %v", err)
	}
	if updated.TaskID != "t1" || updated.DependsOnID != "t2" {
		t.Errorf("Update(noop) = %s -> %s", updated.TaskID, updated.DependsOnID)
	}
}

func TestRemove(t *testing.T) {
	svc := newTestService(t, "t1", "t2")
	ctx := context.Background()

	info := mustCreate(t, svc, "t1", "t2")

	if err := svc.Remove(ctx, info.ID); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	_, err := svc.FindOne(ctx, info.ID)
	if !types.IsNotFound(err) {
		t.Errorf("FindOne(removed) error = %v, want not-found", err)
	}

	if err := svc.Remove(ctx, info.ID); !errors.Is(err, types.ErrDependencyNotFound) {
		t.Errorf("Remove(again) error = %v, want ErrDependencyNotFound", err)
	}
}

func TestRemoveByTasks(t *testing.T) {
	svc := newTestService(t, "t1", "t2")
	ctx := context.Background()

	mustCreate(t, svc, "t1", "t2")

	if err := svc.RemoveByTasks(ctx, "t1", "t2"); err != nil {
		t.Fatalf("RemoveByTasks() failed: %v", err)
	}
	if err := svc.RemoveByTasks(ctx, "t1", "t2"); !errors.Is(err, types.ErrDependencyNotFound) {
		t.Errorf("RemoveByTasks(again) error = %v, want ErrDependencyNotFound", err)
	}
}

type recordingNotifier struct {
	created []string
	updated []string
	removed []string
}

func (r *recordingNotifier) DependencyCreated(dep *types.Dependency) {
	r.created = append(r.created, dep.ID)
}

func (r *recordingNotifier) DependencyUpdated(dep *types.Dependency) {
	r.updated = append(r.updated, dep.ID)
}

func (r *recordingNotifier) DependencyRemoved(dep *types.Dependency) {
	r.removed = append(r.removed, dep.ID)
}

func TestNotifier_FiresOnMutations(t *testing.T) {
	svc := newTestService(t, "t1", "t2", "t3")
	ctx := context.Background()

	rec := &recordingNotifier{}
	svc.SetNotifier(rec)

	info := mustCreate(t, svc, "t1", "t2")

	newTarget := "t3"
	if _, err := svc.Update(ctx, info.ID, UpdateRequest{DependsOnID: &newTarget}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if err := svc.Remove(ctx, info.ID); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	if len(rec.created) != 1 || rec.created[0] != info.ID {
		t.Errorf("created events = %v", rec.created)
	}
	if len(rec.updated) != 1 || len(rec.removed) != 1 {
		t.Errorf("updated/removed events = %v / %v", rec.updated, rec.removed)
	}

	// Failed mutations emit nothing.
	if _, err := svc.Create(ctx, CreateRequest{TaskID: "t1", DependsOnID: "t1"}); err == nil {
		t.Fatal("Create(self) unexpectedly succeeded")
	}
	if len(rec.created) != 1 {
		t.Errorf("failed create emitted an event: %v", rec.created)
	}
}

func mustCreate(t *testing.T, svc *Service, taskID, dependsOnID string) *types.DependencyInfo {
	t.Helper()
	info, err := svc.Create(context.Background(), CreateRequest{TaskID: taskID, DependsOnID: dependsOnID})
	if err != nil {
		t.Fatalf("Create(%s -> %s) failed: %v", taskID, dependsOnID, err)
	}
	return info
}
