// Package filewatcher reports documents dropped into an inbox directory.
package filewatcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultSettle = 500 * time.Millisecond

// Watcher emits a path once its file has stopped changing for the settle
// period, so partially copied files are not picked up.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	settle     time.Duration
	logger     *slog.Logger
}

func New(extensions []string, settle time.Duration, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = []string{".pdf"}
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		normalized = append(normalized, strings.ToLower(ext))
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		watcher:    w,
		extensions: normalized,
		settle:     settle,
		logger:     logger,
	}, nil
}

// Watch starts monitoring dir. The returned channel closes when ctx ends or
// the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	paths := make(chan string, 16)
	go func() {
		defer close(paths)

		pending := make(map[string]time.Time)
		ticker := time.NewTicker(w.settle / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}
				switch {
				case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
					pending[event.Name] = time.Now()
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					delete(pending, event.Name)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("inbox_watch_error", "dir", dir, "error", err)
			case now := <-ticker.C:
				for _, path := range settled(pending, now, w.settle) {
					delete(pending, path)
					select {
					case paths <- path:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return paths, nil
}

func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) isWatchedExtension(path string) bool {
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}

// settled lists the pending paths quiet for at least settle, oldest first.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var ready []string
	for path, seen := range pending {
		if now.Sub(seen) >= settle {
			ready = append(ready, path)
		}
	}
	slices.SortFunc(ready, func(a, b string) int {
		return pending[a].Compare(pending[b])
	})
	return ready
}
