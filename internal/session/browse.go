// Package session is the explicit browsing context: one loaded archive,
// its search index, the user's annotations and the active query.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/asheshgoplani/archive-deck/internal/annotations"
	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/fetch"
	"github.com/asheshgoplani/archive-deck/internal/filter"
	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/metrics"
	"github.com/asheshgoplani/archive-deck/internal/searchindex"
	"github.com/asheshgoplani/archive-deck/internal/similarity"
	"github.com/asheshgoplani/archive-deck/internal/transcript"
)

var sessionLog = logging.ForComponent(logging.CompSession)

// transcriptCacheSize bounds the parsed transcripts kept in memory.
const transcriptCacheSize = 64

// ErrUnknownFile is returned for a file key that is not in the corpus.
var ErrUnknownFile = errors.New("unknown conversation")

// Options configure a Session. Fetcher is required.
type Options struct {
	Fetcher fetch.Fetcher
	Store   annotations.Store
	Loader  *searchindex.Loader

	IndexFile    string
	FileRoot     string
	SimilarLimit int

	// OnIndexReady runs after a background search index load triggered by
	// a query completes.
	OnIndexReady func()
}

// Session holds the state every browsing surface shares. All methods are
// safe for concurrent use.
type Session struct {
	fetcher      fetch.Fetcher
	store        annotations.Store
	loader       *searchindex.Loader
	indexFile    string
	fileRoot     string
	similarLimit int

	mu           sync.RWMutex
	corpus       *archive.Corpus
	query        filter.Query
	onIndexReady func()

	opens   singleflight.Group
	cacheMu sync.Mutex
	cache   map[string]transcriptEntry
	order   []string
}

type transcriptEntry struct {
	all []transcript.Message
}

// New loads the corpus and returns a ready session.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("session: no fetcher")
	}
	s := &Session{
		fetcher:      opts.Fetcher,
		store:        opts.Store,
		loader:       opts.Loader,
		indexFile:    opts.IndexFile,
		fileRoot:     strings.Trim(opts.FileRoot, "/"),
		similarLimit: opts.SimilarLimit,
		onIndexReady: opts.OnIndexReady,
		cache:        make(map[string]transcriptEntry),
	}
	if s.store == nil {
		s.store = annotations.NewMemoryStore()
	}
	if s.loader == nil {
		s.loader = searchindex.NewLoader(opts.Fetcher)
	}
	if s.similarLimit <= 0 {
		s.similarLimit = similarity.DefaultLimit
	}

	corpus, err := archive.LoadCorpus(ctx, s.fetcher, s.indexFile)
	if err != nil {
		return nil, err
	}
	s.corpus = corpus
	return s, nil
}

// Corpus returns the currently loaded corpus.
func (s *Session) Corpus() *archive.Corpus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corpus
}

// Store returns the annotation store.
func (s *Session) Store() annotations.Store { return s.store }

// Loader returns the search index loader.
func (s *Session) Loader() *searchindex.Loader { return s.loader }

// Query returns the active query.
func (s *Session) Query() filter.Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// SetQuery replaces the active query.
func (s *Session) SetQuery(q filter.Query) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
}

// SetIndexReadyHook replaces the function run when a background search
// index load started by Apply completes.
func (s *Session) SetIndexReadyHook(fn func()) {
	s.mu.Lock()
	s.onIndexReady = fn
	s.mu.Unlock()
}

// Apply runs the filter pipeline for the active query.
func (s *Session) Apply(ctx context.Context) filter.Result {
	s.mu.RLock()
	corpus, q, hook := s.corpus, s.query, s.onIndexReady
	s.mu.RUnlock()
	return filter.Apply(ctx, corpus, q, filter.Deps{
		Stars:        s.store,
		Index:        s.loader,
		OnIndexReady: hook,
	})
}

// Item looks up one conversation by file.
func (s *Session) Item(file string) (*archive.Item, bool) {
	return s.Corpus().Get(file)
}

// Similar ranks the corpus against file.
func (s *Session) Similar(file string) ([]similarity.Match, error) {
	corpus := s.Corpus()
	target, ok := corpus.Get(file)
	if !ok {
		return nil, fmt.Errorf("session: similar %s: %w", file, ErrUnknownFile)
	}
	return similarity.Rank(target, corpus.Items(), s.similarLimit), nil
}

// ToggleStar flips the star on file and persists it.
func (s *Session) ToggleStar(file string) (bool, error) {
	if _, ok := s.Item(file); !ok {
		return false, fmt.Errorf("session: star %s: %w", file, ErrUnknownFile)
	}
	starred, err := annotations.ToggleStar(s.store, file)
	if err != nil {
		return false, err
	}
	return starred, s.store.Persist()
}

// SetStar sets the star on file to starred and persists it.
func (s *Session) SetStar(file string, starred bool) error {
	if _, ok := s.Item(file); !ok {
		return fmt.Errorf("session: star %s: %w", file, ErrUnknownFile)
	}
	a := s.store.Get(file)
	if a.Starred == starred {
		return nil
	}
	if err := s.store.Set(file, annotations.Annotation{Starred: starred, Note: a.Note}); err != nil {
		return err
	}
	return s.store.Persist()
}

// SetNote replaces the note on file and persists it.
func (s *Session) SetNote(file, note string) error {
	if _, ok := s.Item(file); !ok {
		return fmt.Errorf("session: note %s: %w", file, ErrUnknownFile)
	}
	if err := annotations.SetNote(s.store, file, note); err != nil {
		return err
	}
	return s.store.Persist()
}

// Reload re-reads the index document and drops the search index and the
// transcript cache. On error the previous corpus stays in place.
func (s *Session) Reload(ctx context.Context) error {
	corpus, err := archive.LoadCorpus(ctx, s.fetcher, s.indexFile)
	if err != nil {
		sessionLog.Warn("reload_failed", slog.String("error", err.Error()))
		return err
	}
	s.mu.Lock()
	s.corpus = corpus
	s.mu.Unlock()

	s.loader.Reset()
	s.cacheMu.Lock()
	s.cache = make(map[string]transcriptEntry)
	s.order = nil
	s.cacheMu.Unlock()

	sessionLog.Info("archive_reloaded", slog.Int("items", corpus.Len()))
	return nil
}

// TranscriptPath maps an item's file key to the archive-relative path it
// is fetched from, stripping the configured file root.
func (s *Session) TranscriptPath(file string) string {
	p := strings.TrimPrefix(strings.ReplaceAll(file, "\\", "/"), "/")
	if root := strings.Trim(s.fileRoot, "/"); root != "" {
		p = strings.TrimPrefix(p, root+"/")
	}
	return path.Clean(p)
}

// Open returns the visible messages of one transcript. Missing or
// unparseable transcripts yield an empty list; the failure is logged.
func (s *Session) Open(ctx context.Context, file string) []transcript.Message {
	var out []transcript.Message
	for _, m := range s.OpenAll(ctx, file) {
		if vis := m.Visible(); len(vis) > 0 {
			out = append(out, transcript.Message{Role: m.Role, Segments: vis})
		}
	}
	return out
}

// OpenAll is Open with tool invocations kept and flagged.
func (s *Session) OpenAll(ctx context.Context, file string) []transcript.Message {
	s.cacheMu.Lock()
	if e, ok := s.cache[file]; ok {
		s.cacheMu.Unlock()
		return e.all
	}
	s.cacheMu.Unlock()

	v, _, _ := s.opens.Do(file, func() (any, error) {
		return s.fetchTranscript(ctx, file), nil
	})
	return v.([]transcript.Message)
}

func (s *Session) fetchTranscript(ctx context.Context, file string) []transcript.Message {
	name := s.TranscriptPath(file)
	data, err := s.fetcher.Fetch(ctx, name)
	if err != nil {
		metrics.TranscriptOpens.WithLabelValues("missing").Inc()
		sessionLog.Warn("transcript_unavailable", slog.String("file", file), slog.String("error", err.Error()))
		return nil
	}

	msgs := transcript.ParseAll(string(data))
	if len(msgs) == 0 {
		metrics.TranscriptOpens.WithLabelValues("empty").Inc()
		sessionLog.Info("transcript_empty", slog.String("file", file), slog.Int("bytes", len(data)))
	} else {
		metrics.TranscriptOpens.WithLabelValues("ok").Inc()
	}

	s.cacheMu.Lock()
	if _, ok := s.cache[file]; !ok {
		s.cache[file] = transcriptEntry{all: msgs}
		s.order = append(s.order, file)
		if len(s.order) > transcriptCacheSize {
			delete(s.cache, s.order[0])
			s.order = s.order[1:]
		}
	}
	s.cacheMu.Unlock()
	return msgs
}
