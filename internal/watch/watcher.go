// Package watch reloads a local archive when its index files change.
package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/platform"
)

var watchLog = logging.ForComponent(logging.CompWatch)

// DefaultDebounce is how long the archive must stay quiet before onChange
// runs; regenerating an archive rewrites many shard files in a burst.
const DefaultDebounce = 250 * time.Millisecond

// Watcher watches an archive directory and its search/ subdirectory.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	last     time.Time
	warning  string
}

// NewWatcher creates a watcher for dir. onChange runs on the watcher's own
// goroutine after each settled burst of changes.
func NewWatcher(dir string, onChange func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:      dir,
		watcher:  fsWatcher,
		onChange: onChange,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetDebounce sets the debounce duration. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start begins watching. The search/ directory is optional.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	if warn := platform.CheckFsnotifySupport(w.dir); warn != "" {
		w.warning = warn
		watchLog.Warn("watch_unreliable_fs", slog.String("dir", w.dir), slog.String("detail", warn))
	}
	searchDir := filepath.Join(w.dir, "search")
	if fi, err := os.Stat(searchDir); err == nil && fi.IsDir() {
		if err := w.watcher.Add(searchDir); err != nil {
			watchLog.Warn("watch_search_dir_failed", slog.String("dir", searchDir), slog.String("error", err.Error()))
		}
	}
	go w.watchLoop()
	watchLog.Info("watch_started", slog.String("dir", w.dir))
	return nil
}

// Warning describes why change events may not arrive for this directory,
// or is empty. Valid after Start.
func (w *Watcher) Warning() string { return w.warning }

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
	})
	return err
}

// relevant reports whether a change to name can affect the loaded archive.
// Transcripts are fetched on demand and never need a reload.
func (w *Watcher) relevant(name string) bool {
	rel, err := filepath.Rel(w.dir, name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "search/") || rel == "search" {
		return strings.HasSuffix(rel, ".json") || rel == "search"
	}
	return strings.HasSuffix(rel, ".json") && !strings.Contains(rel, "/")
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			// A search/ directory created after Start is picked up here.
			if event.Op&fsnotify.Create != 0 && filepath.Base(event.Name) == "search" {
				_ = w.watcher.Add(event.Name)
			}

			w.mu.Lock()
			w.last = time.Now()
			w.mu.Unlock()

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.mu.Lock()
				elapsed := time.Since(w.last)
				w.mu.Unlock()
				if elapsed >= w.debounce {
					watchLog.Debug("archive_changed", slog.String("dir", w.dir))
					w.onChange()
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			watchLog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}
