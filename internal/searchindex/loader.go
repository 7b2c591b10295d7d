// Package searchindex lazily loads the full-text search index of an archive
// and exposes it as a file → normalized text lookup. Failures never reach
// the caller: the index simply stays empty and free-text search degrades to
// metadata-only matching.
package searchindex

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/asheshgoplani/archive-deck/internal/fetch"
	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/metrics"
)

var indexLog = logging.ForComponent(logging.CompSearchIndex)

// SourceEmpty is reported by Index.Source when no source could be loaded.
const SourceEmpty = "empty"

// Index is a loaded search index. Callers never learn more about the
// variant than its name.
type Index interface {
	Lookup(file string) (string, bool)
	Len() int
	Source() string
}

type table struct {
	text   map[string]string
	source string
}

func (t *table) Lookup(file string) (string, bool) {
	s, ok := t.text[file]
	return s, ok
}

func (t *table) Len() int       { return len(t.text) }
func (t *table) Source() string { return t.source }

var emptyTable = &table{text: map[string]string{}, source: SourceEmpty}

// Empty returns an index with no entries.
func Empty() Index { return emptyTable }

// Loader memoizes the search index of one archive. The first Load fetches;
// concurrent callers share that fetch; later calls return the cached index.
type Loader struct {
	fetcher fetch.Fetcher
	sources []Source

	group      singleflight.Group
	current    atomic.Pointer[table]
	loaded     atomic.Bool
	loading    atomic.Bool
	generation atomic.Uint64
}

// Option configures a Loader.
type Option func(*Loader)

// WithSources replaces the default source order (sharded, then monolithic).
func WithSources(sources ...Source) Option {
	return func(l *Loader) { l.sources = sources }
}

// NewLoader returns a loader reading from f.
func NewLoader(f fetch.Fetcher, opts ...Option) *Loader {
	l := &Loader{
		fetcher: f,
		sources: []Source{
			ShardedSource{Manifest: DefaultManifest, Concurrency: 8},
			MonolithicSource{Path: DefaultFallback},
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.current.Store(emptyTable)
	return l
}

// Loading reports whether a load is in flight.
func (l *Loader) Loading() bool { return l.loading.Load() }

// Loaded reports whether a load has completed since the last Reset.
func (l *Loader) Loaded() bool { return l.loaded.Load() }

// Current returns whatever index is cached right now without blocking. It
// is empty until the first load completes.
func (l *Loader) Current() Index { return l.current.Load() }

// Lookup is a best-effort read of the cached index.
func (l *Loader) Lookup(file string) (string, bool) {
	return l.current.Load().Lookup(file)
}

// Load returns the index, fetching it on first use. It never fails: when
// no source can be read the result is an empty index. A load whose ctx is
// cancelled returns what it got without caching it.
func (l *Loader) Load(ctx context.Context) Index {
	if l.loaded.Load() {
		return l.current.Load()
	}
	gen := l.generation.Load()
	v, _, _ := l.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		if l.loaded.Load() && l.generation.Load() == gen {
			return l.current.Load(), nil
		}
		l.loading.Store(true)
		t := l.fetchAll(ctx)
		// A cancelled load proves nothing about the sources; leave the cache
		// unset so the next Load fetches again.
		if l.generation.Load() == gen && ctx.Err() == nil {
			l.current.Store(t)
			l.loaded.Store(true)
			metrics.SearchIndexEntries.Set(float64(t.Len()))
		}
		l.loading.Store(false)
		return t, nil
	})
	return v.(*table)
}

// Start begins a background load unless one is done or already running.
// onDone, when non-nil, runs on the loading goroutine after completion.
// It reports whether a new load was started.
func (l *Loader) Start(ctx context.Context, onDone func(Index)) bool {
	if l.loaded.Load() || ctx.Err() != nil {
		return false
	}
	if !l.loading.CompareAndSwap(false, true) {
		return false
	}
	if l.loaded.Load() {
		l.loading.Store(false)
		return false
	}
	go func() {
		idx := l.Load(ctx)
		// Load may have returned from the cache without clearing the flag.
		if l.loaded.Load() {
			l.loading.Store(false)
		}
		if onDone != nil {
			onDone(idx)
		}
	}()
	return true
}

// Reset drops the cached index so the next Load fetches again. A load in
// flight at the time of the reset does not overwrite the cache.
func (l *Loader) Reset() {
	l.generation.Add(1)
	l.current.Store(emptyTable)
	l.loaded.Store(false)
}

func (l *Loader) fetchAll(ctx context.Context) *table {
	start := time.Now()
	defer func() { metrics.SearchIndexLoadDuration.Observe(time.Since(start).Seconds()) }()

	for _, src := range l.sources {
		entries, err := src.Load(ctx, l.fetcher)
		if err != nil {
			indexLog.Info("search_index_source_unavailable",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()))
			continue
		}
		t := &table{text: make(map[string]string, len(entries)), source: src.Name()}
		for _, e := range entries {
			if e.File == "" {
				continue
			}
			t.text[e.File] = strings.ToLower(e.SearchText)
		}
		metrics.SearchIndexLoads.WithLabelValues(src.Name()).Inc()
		indexLog.Info("search_index_loaded",
			slog.String("source", src.Name()),
			slog.Int("entries", len(t.text)),
			slog.Duration("elapsed", time.Since(start)))
		return t
	}

	metrics.SearchIndexLoads.WithLabelValues(SourceEmpty).Inc()
	indexLog.Warn("search_index_unavailable", slog.Int("sources_tried", len(l.sources)))
	return &table{text: map[string]string{}, source: SourceEmpty}
}
