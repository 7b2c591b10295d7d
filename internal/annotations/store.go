// Package annotations holds the user's per-conversation stars and notes,
// keyed by the conversation's file.
package annotations

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/statedb"
)

var annLog = logging.ForComponent(logging.CompAnnotations)

// Annotation is the user state attached to one conversation.
type Annotation struct {
	Starred   bool
	Note      string
	UpdatedAt time.Time
}

// Empty reports whether the annotation carries nothing worth storing.
func (a Annotation) Empty() bool {
	return !a.Starred && strings.TrimSpace(a.Note) == ""
}

// Store is the key-value interface the browser and the filter pipeline use.
type Store interface {
	Get(file string) Annotation
	Set(file string, a Annotation) error
	Starred(file string) bool
	All() map[string]Annotation
	Persist() error
}

// MemoryStore keeps annotations in memory only.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Annotation
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Annotation)}
}

func (m *MemoryStore) Get(file string) Annotation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[file]
}

func (m *MemoryStore) Set(file string, a Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	setLocked(m.data, file, a)
	return nil
}

func (m *MemoryStore) Starred(file string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[file].Starred
}

func (m *MemoryStore) All() map[string]Annotation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyMap(m.data)
}

func (m *MemoryStore) Persist() error { return nil }

// DBStore caches every annotation in memory and writes changes to the
// state database on Persist.
type DBStore struct {
	db *statedb.StateDB

	mu    sync.RWMutex
	data  map[string]Annotation
	dirty map[string]struct{}
}

// OpenDBStore loads all annotations from db.
func OpenDBStore(db *statedb.StateDB) (*DBStore, error) {
	rows, err := db.LoadAnnotations()
	if err != nil {
		return nil, err
	}
	s := &DBStore{
		db:    db,
		data:  make(map[string]Annotation, len(rows)),
		dirty: make(map[string]struct{}),
	}
	for _, r := range rows {
		s.data[r.File] = Annotation{Starred: r.Starred, Note: r.Note, UpdatedAt: r.UpdatedAt}
	}
	annLog.Debug("annotations_loaded", slog.Int("count", len(rows)))
	return s, nil
}

func (s *DBStore) Get(file string) Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[file]
}

func (s *DBStore) Set(file string, a Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	setLocked(s.data, file, a)
	s.dirty[file] = struct{}{}
	return nil
}

func (s *DBStore) Starred(file string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[file].Starred
}

func (s *DBStore) All() map[string]Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.data)
}

// Persist writes every annotation changed since the last Persist in one
// transaction. On failure the changes stay pending.
func (s *DBStore) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirty) == 0 {
		return nil
	}

	rows := make([]statedb.AnnotationRow, 0, len(s.dirty))
	for file := range s.dirty {
		a := s.data[file]
		rows = append(rows, statedb.AnnotationRow{File: file, Starred: a.Starred, Note: a.Note, UpdatedAt: a.UpdatedAt})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].File < rows[j].File })

	if err := s.db.SaveAnnotations(rows, false); err != nil {
		annLog.Error("annotations_persist_failed", slog.Int("pending", len(rows)), slog.String("error", err.Error()))
		return err
	}
	s.dirty = make(map[string]struct{})
	annLog.Debug("annotations_persisted", slog.Int("count", len(rows)))
	return nil
}

// Reload re-reads the database, picking up changes made by other
// processes. Unpersisted local changes win over what is on disk.
func (s *DBStore) Reload() error {
	rows, err := s.db.LoadAnnotations()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make(map[string]Annotation, len(rows))
	for _, r := range rows {
		fresh[r.File] = Annotation{Starred: r.Starred, Note: r.Note, UpdatedAt: r.UpdatedAt}
	}
	for file := range s.dirty {
		if a, ok := s.data[file]; ok {
			fresh[file] = a
		} else {
			delete(fresh, file)
		}
	}
	s.data = fresh
	return nil
}

// DB returns the backing database.
func (s *DBStore) DB() *statedb.StateDB { return s.db }

// setLocked stores a normalized copy of a, or removes the key when a is
// empty.
func setLocked(data map[string]Annotation, file string, a Annotation) {
	if file == "" {
		return
	}
	a.Note = strings.TrimSpace(a.Note)
	if a.Empty() {
		delete(data, file)
		return
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	data[file] = a
}

func copyMap(src map[string]Annotation) map[string]Annotation {
	out := make(map[string]Annotation, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// ToggleStar flips the star on file and returns the new state.
func ToggleStar(s Store, file string) (bool, error) {
	a := s.Get(file)
	a.Starred = !a.Starred
	a.UpdatedAt = time.Time{}
	return a.Starred, s.Set(file, a)
}

// SetNote replaces the note on file, keeping its star.
func SetNote(s Store, file, note string) error {
	a := s.Get(file)
	a.Note = note
	a.UpdatedAt = time.Time{}
	return s.Set(file, a)
}

// StarredFiles returns the starred files in sorted order.
func StarredFiles(s Store) []string {
	var out []string
	for f, a := range s.All() {
		if a.Starred {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
