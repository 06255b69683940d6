package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mapwright/docexpert/internal/logging"
)

// Watcher re-ingests markdown files when they change on disk. Bursts of
// events for the same file (editors write several times per save) collapse
// into a single re-ingestion after a debounce interval.
type Watcher struct {
	service  *Service
	dir      string
	debounce time.Duration
	logger   *logging.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher over the docs directory configured on svc.
func NewWatcher(svc *Service, logger *logging.Logger) (*Watcher, error) {
	if svc.cfg.DocsDir == "" {
		return nil, fmt.Errorf("docs directory not configured")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		service:  svc,
		dir:      svc.cfg.DocsDir,
		debounce: svc.cfg.WatchDebounce.Duration(),
		logger:   logger.Named("watcher"),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Run watches until the context is canceled. Subdirectories existing at
// start and those created later are watched too.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := addRecursive(fw, w.dir); err != nil {
		return err
	}
	w.logger.Info(ctx, "watching docs directory", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(fw, event.Name); err != nil {
						w.logger.Warn(ctx, "failed to watch new directory",
							zap.String("dir", event.Name), zap.Error(err))
					}
					continue
				}
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				w.schedule(ctx, event.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(ctx, "watcher error", zap.Error(err))
		}
	}
}

// schedule arms (or re-arms) the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if err := w.service.IngestTarget(ctx, path); err != nil {
			w.logger.Error(ctx, "re-ingestion failed",
				zap.String("path", path), zap.Error(err))
			return
		}
		w.logger.Info(ctx, "re-ingested changed file", zap.String("path", path))
	})
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
		}
		return nil
	})
}
