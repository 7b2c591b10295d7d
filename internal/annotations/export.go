package annotations

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"
)

// ExportVersion is written into every export document.
const ExportVersion = 1

type exportDoc struct {
	Version     int           `json:"version"`
	ExportedUTC string        `json:"exported_utc"`
	Annotations []exportEntry `json:"annotations"`

	// Legacy browser dumps carry these two keys instead.
	Stars []string          `json:"stars,omitempty"`
	Notes map[string]string `json:"notes,omitempty"`
}

type exportEntry struct {
	File       string `json:"file"`
	Starred    bool   `json:"starred,omitempty"`
	Note       string `json:"note,omitempty"`
	UpdatedUTC string `json:"updated_utc,omitempty"`
}

const exportTimeLayout = "2006-01-02 15:04:05Z"

// ExportJSON writes every annotation in s to w, sorted by file.
func ExportJSON(w io.Writer, s Store) error {
	all := s.All()
	doc := exportDoc{
		Version:     ExportVersion,
		ExportedUTC: time.Now().UTC().Format(exportTimeLayout),
		Annotations: make([]exportEntry, 0, len(all)),
	}
	for file, a := range all {
		e := exportEntry{File: file, Starred: a.Starred, Note: a.Note}
		if !a.UpdatedAt.IsZero() {
			e.UpdatedUTC = a.UpdatedAt.UTC().Format(exportTimeLayout)
		}
		doc.Annotations = append(doc.Annotations, e)
	}
	sort.Slice(doc.Annotations, func(i, j int) bool {
		return doc.Annotations[i].File < doc.Annotations[j].File
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("annotations: export: %w", err)
	}
	return nil
}

// ImportJSON reads an export (or a legacy stars/notes dump) into s and
// persists it. With replace, annotations absent from the document are
// cleared. It returns the number of annotations imported.
func ImportJSON(r io.Reader, s Store, replace bool) (int, error) {
	var doc exportDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("annotations: import: %w", err)
	}
	if doc.Version > ExportVersion {
		return 0, fmt.Errorf("annotations: import: unsupported version %d", doc.Version)
	}

	incoming := make(map[string]Annotation, len(doc.Annotations)+len(doc.Stars)+len(doc.Notes))
	for _, e := range doc.Annotations {
		if e.File == "" {
			continue
		}
		a := Annotation{Starred: e.Starred, Note: e.Note}
		if t, err := time.Parse(exportTimeLayout, e.UpdatedUTC); err == nil {
			a.UpdatedAt = t
		}
		incoming[e.File] = a
	}
	for _, f := range doc.Stars {
		a := incoming[f]
		a.Starred = true
		incoming[f] = a
	}
	for f, note := range doc.Notes {
		a := incoming[f]
		a.Note = note
		incoming[f] = a
	}

	if replace {
		for f := range s.All() {
			if _, ok := incoming[f]; !ok {
				if err := s.Set(f, Annotation{}); err != nil {
					return 0, err
				}
			}
		}
	}

	files := make([]string, 0, len(incoming))
	for f := range incoming {
		files = append(files, f)
	}
	sort.Strings(files)

	n := 0
	for _, f := range files {
		a := incoming[f]
		if a.Empty() {
			continue
		}
		if err := s.Set(f, a); err != nil {
			return n, err
		}
		n++
	}
	if err := s.Persist(); err != nil {
		return n, fmt.Errorf("annotations: import: %w", err)
	}
	annLog.Info("annotations_imported", slog.Int("count", n), slog.Bool("replace", replace))
	return n, nil
}
