package types

import (
	"fmt"
	"testing"
	"time"
)

func TestDependency_Validate(t *testing.T) {
	tests := []struct {
		name    string
		dep     Dependency
		wantErr bool
	}{
		{
			name: "valid blocks dependency",
			dep: Dependency{
				ID:          "dep-1",
				TaskID:      "task-a",
				DependsOnID: "task-b",
				Type:        DepBlocks,
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			},
			wantErr: false,
		},
		{
			name: "missing task id",
			dep: Dependency{
				DependsOnID: "task-b",
				Type:        DepBlocks,
			},
			wantErr: true,
		},
		{
			name: "missing depends_on id",
			dep: Dependency{
				TaskID: "task-a",
				Type:   DepBlocks,
			},
			wantErr: true,
		},
		{
			name: "self dependency",
			dep: Dependency{
				TaskID:      "task-a",
				DependsOnID: "task-a",
				Type:        DepBlocks,
			},
			wantErr: true,
		},
		{
			name: "empty type",
			dep: Dependency{
				TaskID:      "task-a",
				DependsOnID: "task-b",
			},
			wantErr: true,
		},
		{
			name: "type too long",
			dep: Dependency{
				TaskID:      "task-a",
				DependsOnID: "task-b",
				Type:        DependencyType("this-type-name-is-far-too-long-to-be-stored-as-a-relation-type"),
			},
			wantErr: true,
		},
		{
			name: "valid related dependency",
			dep: Dependency{
				TaskID:      "task-a",
				DependsOnID: "task-b",
				Type:        DepRelated,
			},
			wantErr: false,
		},
		{
			name: "valid custom type",
			dep: Dependency{
				TaskID:      "task-a",
				DependsOnID: "task-b",
				Type:        DependencyType("duplicates"),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dep.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Validate() error = nil, wantErr true")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestDependencyType_IsValid(t *testing.T) {
	tests := []struct {
		typ  DependencyType
		want bool
	}{
		{DepBlocks, true},
		{DepRelated, true},
		{DepParentChild, true},
		{DepDiscoveredFrom, true},
		{DependencyType("x"), true},
		{DependencyType(""), false},
		{DependencyType("this-type-name-is-far-too-long-to-be-stored-as-a-relation-type"), false},
	}

	for _, tt := range tests {
		if got := tt.typ.IsValid(); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		invalidArgument bool
		notFound        bool
		conflict        bool
	}{
		{"self dependency", ErrSelfDependency, true, false, false},
		{"cycle", ErrCycle, true, false, false},
		{"duplicate", ErrDuplicateDependency, false, false, true},
		{"dependency not found", ErrDependencyNotFound, false, true, false},
		{"task not found", ErrTaskNotFound, false, true, false},
		{"wrapped cycle", fmt.Errorf("create failed: %w", ErrCycle), true, false, false},
		{"wrapped duplicate", fmt.Errorf("%w: a -> b", ErrDuplicateDependency), false, false, true},
		{"unrelated error", fmt.Errorf("disk full"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvalidArgument(tt.err); got != tt.invalidArgument {
				t.Errorf("IsInvalidArgument() = %v, want %v", got, tt.invalidArgument)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := IsConflict(tt.err); got != tt.conflict {
				t.Errorf("IsConflict() = %v, want %v", got, tt.conflict)
			}
		})
	}
}
