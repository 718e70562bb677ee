// Package watcher runs the import spool: a directory that external
// producers drop JSONL edge files into. Each file is imported through the
// dependency service and then removed, so the spool drains to empty.
// Files whose import aborts are renamed aside with a .failed suffix.
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/planhq/depgraph/internal/deps"
	"github.com/planhq/depgraph/internal/importer"
)

// Watcher watches a spool directory and imports dropped edge files.
type Watcher struct {
	svc    *deps.Service
	dir    string
	logger *log.Logger
}

// New creates a spool watcher over dir. The directory is created if it
// doesn't exist. If logger is nil, a default stderr logger is used.
func New(svc *deps.Service, dir string, logger *log.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[watcher] ", log.LstdFlags)
	}
	return &Watcher{
		svc:    svc,
		dir:    dir,
		logger: logger,
	}, nil
}

// Start drains any files already in the spool, then blocks watching for
// new ones until ctx is cancelled. Returns nil on clean shutdown.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.DrainOnce(ctx); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch spool directory %s: %w", w.dir, err)
	}

	w.logger.Printf("Watching spool directory: %s", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isSpoolFile(event.Name) {
				continue
			}
			w.processFile(ctx, event.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("Watch error: %v", err)
		}
	}
}

// DrainOnce imports every spool file currently present, oldest name first.
func (w *Watcher) DrainOnce(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read spool directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isSpoolFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.processFile(ctx, filepath.Join(w.dir, name))
	}

	return nil
}

// processFile imports one spool file and removes it. Per-edge rejections
// (cycle, duplicate, missing task) are logged by the service and recorded
// in the import result; only a whole-file failure leaves the file behind,
// renamed with a .failed suffix so it isn't retried forever.
func (w *Watcher) processFile(ctx context.Context, path string) {
	result, err := importer.ImportFile(ctx, w.svc, path)
	if err != nil {
		w.logger.Printf("Import failed for %s: %v", path, err)
		if rerr := os.Rename(path, path+".failed"); rerr != nil && !os.IsNotExist(rerr) {
			w.logger.Printf("Failed to set aside %s: %v", path, rerr)
		}
		return
	}

	w.logger.Printf("Imported %s: %d created, %d skipped", filepath.Base(path), result.Imported, result.Skipped)
	for _, msg := range result.Errors {
		w.logger.Printf("  %s", msg)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.logger.Printf("Failed to remove processed file %s: %v", path, err)
	}
}

func isSpoolFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".failed") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	return strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".json")
}
