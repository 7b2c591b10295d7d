package statedb

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 2

// migrations[i] upgrades a database from version i to i+1.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS annotations (
		file       TEXT PRIMARY KEY,
		starred    INTEGER NOT NULL DEFAULT 0,
		note       TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_annotations_starred ON annotations (starred) WHERE starred = 1`,
}

// Migrate creates the metadata table and applies every pending migration in
// one transaction.
func (s *StateDB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create metadata: %w", err)
	}

	current := 0
	var raw string
	err = tx.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&raw)
	if err == nil {
		if current, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("statedb: bad schema version %q: %w", raw, err)
		}
	}
	if current > SchemaVersion {
		return fmt.Errorf("statedb: schema version %d is newer than supported %d", current, SchemaVersion)
	}

	for v := current; v < SchemaVersion; v++ {
		if _, err := tx.Exec(migrations[v]); err != nil {
			return fmt.Errorf("statedb: migration %d: %w", v+1, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)",
		strconv.Itoa(SchemaVersion),
	); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}

	return tx.Commit()
}

// legacyState is the shape of the browser-side storage dump: a list of
// starred files and a file → note map.
type legacyState struct {
	Stars []string          `json:"stars"`
	Notes map[string]string `json:"notes"`
}

// MigrateFromJSON reads a legacy stars/notes dump and merges it into the
// database. Returns the number of rows written.
func MigrateFromJSON(jsonPath string, db *StateDB) (int, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("read json: %w", err)
	}

	var legacy legacyState
	if err := json.Unmarshal(data, &legacy); err != nil {
		return 0, fmt.Errorf("parse json: %w", err)
	}

	merged := make(map[string]*AnnotationRow)
	get := func(file string) *AnnotationRow {
		if r, ok := merged[file]; ok {
			return r
		}
		r := &AnnotationRow{File: file}
		merged[file] = r
		return r
	}
	for _, f := range legacy.Stars {
		get(f).Starred = true
	}
	for f, note := range legacy.Notes {
		get(f).Note = note
	}

	files := make([]string, 0, len(merged))
	for f := range merged {
		files = append(files, f)
	}
	sort.Strings(files)

	rows := make([]AnnotationRow, 0, len(files))
	for _, f := range files {
		if r := merged[f]; r.Starred || r.Note != "" {
			rows = append(rows, *r)
		}
	}
	if err := db.SaveAnnotations(rows, false); err != nil {
		return 0, fmt.Errorf("save annotations: %w", err)
	}
	return len(rows), nil
}
