// Package watch re-ingests files into the local index as they change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driving"
	"github.com/custodia-labs/deepone/internal/logger"
)

// DefaultDebounce is how long the watcher waits after the last change
// before ingesting the batch.
const DefaultDebounce = 500 * time.Millisecond

// ReportFunc is called once per flushed file.
type ReportFunc func(path string, result *domain.IngestResult, err error)

// Watcher batches create and write events below a directory and passes
// each changed file to the ingest service.
type Watcher struct {
	ingest   driving.IngestService
	debounce time.Duration
	filter   func(path string) bool
	report   ReportFunc
	ready    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a batch is flushed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter restricts which files are queued for ingestion.
func WithFilter(f func(path string) bool) Option {
	return func(w *Watcher) { w.filter = f }
}

// WithReporter receives the outcome of every ingested file.
func WithReporter(r ReportFunc) Option {
	return func(w *Watcher) { w.report = r }
}

// New creates a watcher feeding ingest.
func New(ingest driving.IngestService, opts ...Option) *Watcher {
	w := &Watcher{
		ingest:   ingest,
		debounce: DefaultDebounce,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready is closed once the initial directory tree is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches dir recursively until ctx is cancelled. Pending changes are
// dropped on cancellation.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			logger.Warn("Failed to close file watcher: %v", err)
		}
	}()

	if _, err := w.addTree(fw, dir); err != nil {
		return err
	}
	logger.Info("Watching %s", dir)
	close(w.ready)

	pending := make(map[string]struct{})
	var (
		timer  *time.Timer
		flushC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	queue := func(path string) {
		if w.filter != nil && !w.filter(path) {
			return
		}
		pending[path] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			timer.Reset(w.debounce)
		}
		flushC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					files, err := w.addTree(fw, event.Name)
					if err != nil {
						logger.Warn("Could not watch %s: %v", event.Name, err)
					}
					for _, f := range files {
						queue(f)
					}
					continue
				}
			}
			logger.Debug("File event %s %s", event.Op, event.Name)
			queue(event.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error: %v", err)

		case <-flushC:
			flushC = nil
			w.flush(ctx, pending)
			pending = make(map[string]struct{})
		}
	}
}

// addTree watches root and every non-hidden directory below it, returning
// the regular files already present in newly added directories.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		result, err := w.ingest.IngestFile(ctx, path)
		if err != nil {
			logger.Warn("Failed to ingest %s: %v", path, err)
		} else {
			logger.Debug("Ingested %s: %d chunks", path, result.Chunks)
		}
		if w.report != nil {
			w.report(path, result, err)
		}
	}
}
