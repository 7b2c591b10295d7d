package statedb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// StateDB wraps the SQLite database holding per-user browsing state (stars
// and notes). Safe for concurrent use; several processes may share one file
// through WAL mode and the busy timeout.
type StateDB struct {
	db *sql.DB
}

// AnnotationRow is one row of the annotations table.
type AnnotationRow struct {
	File      string
	Starred   bool
	Note      string
	UpdatedAt time.Time
}

// Open creates or opens a SQLite database at dbPath with WAL mode and busy timeout.
func Open(dbPath string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}

	pragmas := []struct{ name, stmt string }{
		{"wal mode", "PRAGMA journal_mode=WAL"},
		{"busy timeout", "PRAGMA busy_timeout=5000"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("statedb: %s: %w", p.name, err)
		}
	}

	return &StateDB{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (s *StateDB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DB returns the underlying sql.DB for tests.
func (s *StateDB) DB() *sql.DB {
	return s.db
}

// --- Annotations ---

// SaveAnnotation inserts or replaces the row for a.File. A row that is
// neither starred nor carries a note is deleted instead.
func (s *StateDB) SaveAnnotation(a AnnotationRow) error {
	if !a.Starred && a.Note == "" {
		return s.DeleteAnnotation(a.File)
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO annotations (file, starred, note, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			starred = excluded.starred,
			note = excluded.note,
			updated_at = excluded.updated_at
	`, a.File, boolToInt(a.Starred), a.Note, a.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("statedb: save annotation %s: %w", a.File, err)
	}
	return nil
}

// SaveAnnotations writes rows in a single transaction. When replace is set
// every existing row not in rows is removed first.
func (s *StateDB) SaveAnnotations(rows []AnnotationRow, replace bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.Exec("DELETE FROM annotations"); err != nil {
			return fmt.Errorf("statedb: clear annotations: %w", err)
		}
	}

	upsert, err := tx.Prepare(`
		INSERT INTO annotations (file, starred, note, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			starred = excluded.starred,
			note = excluded.note,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("statedb: prepare: %w", err)
	}
	defer upsert.Close()

	del, err := tx.Prepare("DELETE FROM annotations WHERE file = ?")
	if err != nil {
		return fmt.Errorf("statedb: prepare: %w", err)
	}
	defer del.Close()

	now := time.Now()
	for _, a := range rows {
		if a.File == "" {
			continue
		}
		if !a.Starred && a.Note == "" {
			if _, err := del.Exec(a.File); err != nil {
				return fmt.Errorf("statedb: delete annotation %s: %w", a.File, err)
			}
			continue
		}
		ts := a.UpdatedAt
		if ts.IsZero() {
			ts = now
		}
		if _, err := upsert.Exec(a.File, boolToInt(a.Starred), a.Note, ts.Unix()); err != nil {
			return fmt.Errorf("statedb: save annotation %s: %w", a.File, err)
		}
	}

	if err := touchTx(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadAnnotation returns the row for file; ok is false when none exists.
func (s *StateDB) LoadAnnotation(file string) (AnnotationRow, bool, error) {
	var (
		row     AnnotationRow
		starred int
		ts      int64
	)
	err := s.db.QueryRow(
		"SELECT file, starred, note, updated_at FROM annotations WHERE file = ?", file,
	).Scan(&row.File, &starred, &row.Note, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return AnnotationRow{}, false, nil
	}
	if err != nil {
		return AnnotationRow{}, false, fmt.Errorf("statedb: load annotation %s: %w", file, err)
	}
	row.Starred = starred != 0
	row.UpdatedAt = time.Unix(ts, 0)
	return row, true, nil
}

// LoadAnnotations returns every row ordered by file.
func (s *StateDB) LoadAnnotations() ([]AnnotationRow, error) {
	rows, err := s.db.Query("SELECT file, starred, note, updated_at FROM annotations ORDER BY file")
	if err != nil {
		return nil, fmt.Errorf("statedb: load annotations: %w", err)
	}
	defer rows.Close()

	var out []AnnotationRow
	for rows.Next() {
		var (
			a       AnnotationRow
			starred int
			ts      int64
		)
		if err := rows.Scan(&a.File, &starred, &a.Note, &ts); err != nil {
			return nil, fmt.Errorf("statedb: scan annotation: %w", err)
		}
		a.Starred = starred != 0
		a.UpdatedAt = time.Unix(ts, 0)
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAnnotation removes the row for file, if any.
func (s *StateDB) DeleteAnnotation(file string) error {
	if _, err := s.db.Exec("DELETE FROM annotations WHERE file = ?", file); err != nil {
		return fmt.Errorf("statedb: delete annotation %s: %w", file, err)
	}
	return nil
}

// CountAnnotations returns the number of starred rows and of rows with a note.
func (s *StateDB) CountAnnotations() (starred, noted int, err error) {
	err = s.db.QueryRow(`
		SELECT COALESCE(SUM(starred), 0), COALESCE(SUM(CASE WHEN note <> '' THEN 1 ELSE 0 END), 0)
		FROM annotations
	`).Scan(&starred, &noted)
	if err != nil {
		return 0, 0, fmt.Errorf("statedb: count annotations: %w", err)
	}
	return starred, noted, nil
}

// --- Metadata ---

// SetMeta sets a key-value pair in the metadata table.
func (s *StateDB) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta gets a value from the metadata table. Returns "" if not found.
func (s *StateDB) GetMeta(key string) (string, error) {
	var val string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// Touch records a change timestamp other processes can poll.
func (s *StateDB) Touch() error {
	return s.SetMeta("last_modified", strconv.FormatInt(time.Now().UnixNano(), 10))
}

func touchTx(tx *sql.Tx) error {
	_, err := tx.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES ('last_modified', ?)",
		strconv.FormatInt(time.Now().UnixNano(), 10),
	)
	if err != nil {
		return fmt.Errorf("statedb: touch: %w", err)
	}
	return nil
}

// LastModified returns the last_modified timestamp from metadata.
func (s *StateDB) LastModified() (int64, error) {
	val, err := s.GetMeta("last_modified")
	if err != nil || val == "" {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
