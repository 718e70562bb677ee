// Package importer moves dependency edges in and out of the graph as
// JSONL streams, one edge per line. Imports go through the dependency
// service so every edge is validated the same way as an interactive
// create: invalid lines are skipped, valid lines land.
package importer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/planhq/depgraph/internal/deps"
	"github.com/planhq/depgraph/internal/types"
)

// EdgeLine is the JSONL wire format for one dependency edge.
type EdgeLine struct {
	TaskID      string `json:"task_id"`
	DependsOnID string `json:"depends_on_id"`
	Type        string `json:"type,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

// Result contains statistics about an import run.
type Result struct {
	Imported int
	Skipped  int
	Errors   []string
}

// Import reads JSONL edges from r and creates them through the service as
// one best-effort batch, in input order. Malformed lines and edges
// rejected by validation (cycle, duplicate, missing task) are recorded and
// skipped; the rest land.
func Import(ctx context.Context, svc *deps.Service, r io.Reader) (*Result, error) {
	result := &Result{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	var reqs []deps.CreateRequest
	var lines []int

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var edge EdgeLine
		if err := json.Unmarshal(line, &edge); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors,
				fmt.Sprintf("invalid JSON at line %d: %v", lineNum, err))
			continue
		}

		reqs = append(reqs, deps.CreateRequest{
			TaskID:      edge.TaskID,
			DependsOnID: edge.DependsOnID,
			Type:        types.DependencyType(edge.Type),
			CreatedBy:   edge.CreatedBy,
		})
		lines = append(lines, lineNum)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import stream: %w", err)
	}

	for i, res := range svc.CreateBulk(ctx, reqs) {
		if res.Err != nil {
			result.Skipped++
			result.Errors = append(result.Errors,
				fmt.Sprintf("line %d (%s -> %s): %v",
					lines[i], res.Request.TaskID, res.Request.DependsOnID, res.Err))
			continue
		}
		result.Imported++
	}

	return result, nil
}

// ImportFile imports JSONL edges from a file path.
func ImportFile(ctx context.Context, svc *deps.Service, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	return Import(ctx, svc, f)
}

// Export writes every edge (optionally scoped to a project) to w as JSONL,
// newest first, matching the service's listing order.
func Export(ctx context.Context, svc *deps.Service, projectID string, w io.Writer) (int, error) {
	infos, err := svc.FindAll(ctx, projectID)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for _, info := range infos {
		line := EdgeLine{
			TaskID:      info.TaskID,
			DependsOnID: info.DependsOnID,
			Type:        string(info.Type),
			CreatedBy:   info.CreatedBy,
		}
		if err := enc.Encode(&line); err != nil {
			return 0, fmt.Errorf("failed to encode edge %s: %w", info.ID, err)
		}
	}

	return len(infos), nil
}

// ExportFile exports JSONL edges to a file path, written atomically via a
// temp file.
func ExportFile(ctx context.Context, svc *deps.Service, projectID, path string) (int, error) {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}

	n, err := Export(ctx, svc, projectID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to rename export file: %w", err)
	}

	return n, nil
}
