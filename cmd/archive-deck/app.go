package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/asheshgoplani/archive-deck/internal/annotations"
	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/config"
	"github.com/asheshgoplani/archive-deck/internal/fetch"
	"github.com/asheshgoplani/archive-deck/internal/searchindex"
	"github.com/asheshgoplani/archive-deck/internal/session"
	"github.com/asheshgoplani/archive-deck/internal/statedb"
)

// app is everything a command needs: the archive, the session over it and
// the annotation database.
type app struct {
	out      io.Writer
	location string
	archive  config.ArchiveSettings
	search   config.SearchSettings
	fetcher  fetch.Fetcher
	db       *statedb.StateDB
	store    annotations.Store
	sess     *session.Session
}

// resolveLocation picks the archive: the flag, then config, then the
// current directory.
func resolveLocation(flagValue string, settings config.ArchiveSettings) string {
	if flagValue != "" {
		return config.ExpandHome(flagValue)
	}
	if loc := settings.Location(); loc != "" {
		return loc
	}
	return "."
}

func openApp(ctx context.Context, location string, out io.Writer) (*app, error) {
	a := &app{
		out:     out,
		archive: config.GetArchiveSettings(),
		search:  config.GetSearchSettings(),
	}
	a.location = resolveLocation(location, a.archive)

	f, err := fetch.New(a.location, a.search.RequestsPerSecond)
	if err != nil {
		return nil, err
	}
	a.fetcher = f

	a.store, a.db = openStore()

	loader := searchindex.NewLoader(f, searchindex.WithSources(
		searchindex.ShardedSource{Manifest: a.archive.ManifestFile, Concurrency: a.search.ShardConcurrency},
		searchindex.MonolithicSource{Path: a.archive.FallbackFile},
	))
	sess, err := session.New(ctx, session.Options{
		Fetcher:      f,
		Store:        a.store,
		Loader:       loader,
		IndexFile:    a.archive.IndexFile,
		FileRoot:     a.archive.FileRoot,
		SimilarLimit: a.search.SimilarLimit,
	})
	if err != nil {
		a.Close()
		if errors.Is(err, fetch.ErrMissing) {
			return nil, fmt.Errorf("no archive at %s (missing %s); pass -a <dir|url>", a.location, a.archive.IndexFile)
		}
		return nil, err
	}
	a.sess = sess
	return a, nil
}

// openStore opens the annotation database. When it cannot be opened the
// archive is still browsable; annotations then live in memory only.
func openStore() (annotations.Store, *statedb.StateDB) {
	path, err := config.StateDBPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: annotations unavailable: %v\n", err)
		return annotations.NewMemoryStore(), nil
	}
	db, err := statedb.Open(path)
	if err == nil {
		err = db.Migrate()
	}
	if err != nil {
		if db != nil {
			db.Close()
		}
		fmt.Fprintf(os.Stderr, "Warning: annotations unavailable: %v\n", err)
		return annotations.NewMemoryStore(), nil
	}
	store, err := annotations.OpenDBStore(db)
	if err != nil {
		db.Close()
		fmt.Fprintf(os.Stderr, "Warning: annotations unavailable: %v\n", err)
		return annotations.NewMemoryStore(), nil
	}
	return store, db
}

// Close releases the database.
func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
}

// localDir returns the archive directory for local archives, "" for HTTP.
func (a *app) localDir() string {
	if d, ok := a.fetcher.(*fetch.DirFetcher); ok {
		return d.Root()
	}
	return ""
}

// requireDB fails annotation writes that would otherwise be lost on exit.
func (a *app) requireDB() error {
	if a.db == nil {
		return errors.New("annotation database unavailable; changes would not be saved")
	}
	return nil
}

// resolveItem finds a conversation by file key, index number, or a unique
// substring of its file name.
func resolveItem(corpus *archive.Corpus, ref string) (*archive.Item, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("empty conversation reference")
	}
	if it, ok := corpus.Get(ref); ok {
		return it, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		for _, it := range corpus.Items() {
			if it.Index == n {
				return it, nil
			}
		}
	}

	var matches []*archive.Item
	lower := strings.ToLower(ref)
	for _, it := range corpus.Items() {
		if strings.Contains(strings.ToLower(filepath.Base(it.File)), lower) {
			matches = append(matches, it)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no conversation matches %q", ref)
	case 1:
		return matches[0], nil
	}
	names := make([]string, 0, 5)
	for i, it := range matches {
		if i == 5 {
			names = append(names, "…")
			break
		}
		names = append(names, filepath.Base(it.File))
	}
	return nil, fmt.Errorf("%q is ambiguous: %s", ref, strings.Join(names, ", "))
}
