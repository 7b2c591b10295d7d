// Package filter runs the browse pipeline: predicate filtering of the
// corpus followed by a stable sort.
package filter

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/metrics"
	"github.com/asheshgoplani/archive-deck/internal/searchindex"
)

// StarChecker answers the star-only predicate.
type StarChecker interface {
	Starred(file string) bool
}

// TextIndex is the part of searchindex.Loader the pipeline needs.
type TextIndex interface {
	Lookup(file string) (string, bool)
	Loaded() bool
	Loading() bool
	Start(ctx context.Context, onDone func(searchindex.Index)) bool
}

// Deps are the collaborators of a pass. Any of them may be nil.
type Deps struct {
	Stars StarChecker
	Index TextIndex
	// OnIndexReady runs after a load triggered by this pass completes, so
	// the caller can re-run the pass with full search text.
	OnIndexReady func()
}

// Result is the outcome of one pass.
type Result struct {
	Items []*archive.Item
	// Partial is set when a free-text query ran before the search index
	// finished loading; matches may be missing.
	Partial bool
}

// Apply filters and sorts the corpus. Items are shared with the corpus and
// never modified.
func Apply(ctx context.Context, corpus *archive.Corpus, q Query, deps Deps) Result {
	start := time.Now()
	tokens := q.Tokens()

	partial := false
	if len(tokens) > 0 && deps.Index != nil && !deps.Index.Loaded() {
		partial = true
		if !deps.Index.Loading() {
			onReady := deps.OnIndexReady
			deps.Index.Start(ctx, func(searchindex.Index) {
				if onReady != nil {
					onReady()
				}
			})
		}
	}

	var items []*archive.Item
	if corpus != nil {
		items = make([]*archive.Item, 0, corpus.Len())
		for _, it := range corpus.Items() {
			if match(it, q, tokens, deps) {
				items = append(items, it)
			}
		}
	}
	Sort(items, q.Sort)

	elapsed := time.Since(start)
	metrics.FilterPassDuration.Observe(elapsed.Seconds())
	logging.Aggregate(logging.CompFilter, "filter_pass",
		slog.Int("matched", len(items)),
		slog.Bool("partial", partial),
		slog.Duration("elapsed", elapsed))

	return Result{Items: items, Partial: partial}
}

// match evaluates the predicates cheapest first and stops at the first
// failure.
func match(it *archive.Item, q Query, tokens []string, deps Deps) bool {
	if it.Messages < q.MinMessages {
		return false
	}
	if q.StarredOnly && (deps.Stars == nil || !deps.Stars.Starred(it.File)) {
		return false
	}
	if q.Keyword != "" && !it.HasKeyword(q.Keyword) {
		return false
	}
	if q.Cluster != "" && it.Cluster() != q.Cluster {
		return false
	}
	if q.HasDateBound() && !inRange(it, q.From, q.To) {
		return false
	}
	if len(tokens) > 0 && !matchText(it, tokens, deps.Index) {
		return false
	}
	return true
}

func inRange(it *archive.Item, from, to time.Time) bool {
	created, ok := it.Created()
	if !ok {
		return false
	}
	if !from.IsZero() && created.Before(from) {
		return false
	}
	if !to.IsZero() && created.After(to) {
		return false
	}
	return true
}

func matchText(it *archive.Item, tokens []string, idx TextIndex) bool {
	search := it.LowerSearchText()
	if idx != nil {
		if s, ok := idx.Lookup(it.File); ok {
			search = s
		}
	}
	fields := [...]string{it.LowerTitle(), it.LowerKeywords(), it.LowerSnippet(), search}
	for _, tok := range tokens {
		found := false
		for _, f := range fields {
			if strings.Contains(f, tok) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Sort orders items in place. Ties keep their incoming order.
func Sort(items []*archive.Item, mode SortMode) {
	switch mode {
	case SortNone:
		return
	case SortCreated:
		sort.SliceStable(items, func(i, j int) bool {
			a, aok := items[i].Created()
			b, bok := items[j].Created()
			if aok != bok {
				return aok
			}
			return aok && a.Before(b)
		})
	case SortUpdated:
		sort.SliceStable(items, func(i, j int) bool {
			a, aok := items[i].Updated()
			b, bok := items[j].Updated()
			if aok != bok {
				return aok
			}
			return aok && a.After(b)
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Messages > items[j].Messages
		})
	}
}
