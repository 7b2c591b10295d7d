package ui

import (
	"log/slog"
	"sync"
	"time"

	"github.com/asheshgoplani/archive-deck/internal/statedb"
)

// AnnotationWatcher notices stars and notes written by another process
// (e.g. `archive-deck star` while the browser is open) by polling the
// database's last_modified stamp.
type AnnotationWatcher struct {
	db        *statedb.StateDB
	interval  time.Duration
	reloadCh  chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once

	modMu        sync.Mutex
	lastModified int64

	saveMu       sync.RWMutex
	lastSaveTime time.Time
}

// pollInterval is how often we check for external changes.
const pollInterval = 2 * time.Second

// ignoreWindow must exceed pollInterval so the first poll after our own
// save always falls inside it.
const ignoreWindow = 3 * time.Second

// NewAnnotationWatcher returns nil when db is nil.
func NewAnnotationWatcher(db *statedb.StateDB) *AnnotationWatcher {
	if db == nil {
		return nil
	}
	lastMod, _ := db.LastModified()
	return &AnnotationWatcher{
		db:           db,
		interval:     pollInterval,
		lastModified: lastMod,
		reloadCh:     make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
	}
}

// Start begins polling (non-blocking).
func (aw *AnnotationWatcher) Start() {
	go func() {
		ticker := time.NewTicker(aw.interval)
		defer ticker.Stop()
		for {
			select {
			case <-aw.closeCh:
				return
			case <-ticker.C:
				aw.checkAndNotify()
			}
		}
	}()
}

func (aw *AnnotationWatcher) checkAndNotify() {
	ts, err := aw.db.LastModified()
	if err != nil {
		uiLog.Debug("annotation_poll_failed", slog.String("error", err.Error()))
		return
	}

	aw.modMu.Lock()
	changed := ts > aw.lastModified
	if changed {
		aw.lastModified = ts
	}
	aw.modMu.Unlock()
	if !changed {
		return
	}

	aw.saveMu.RLock()
	lastSave := aw.lastSaveTime
	aw.saveMu.RUnlock()
	if time.Since(lastSave) < ignoreWindow {
		return
	}

	select {
	case aw.reloadCh <- struct{}{}:
	default:
	}
}

// ReloadChannel signals that annotations changed on disk.
func (aw *AnnotationWatcher) ReloadChannel() <-chan struct{} {
	return aw.reloadCh
}

// NotifySave marks a save made by this process so the resulting change is
// not reported back.
func (aw *AnnotationWatcher) NotifySave() {
	aw.saveMu.Lock()
	aw.lastSaveTime = time.Now()
	aw.saveMu.Unlock()
}

// Close stops polling. Safe to call multiple times.
func (aw *AnnotationWatcher) Close() {
	aw.closeOnce.Do(func() { close(aw.closeCh) })
}
