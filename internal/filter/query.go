package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

// SortMode selects the ordering of a filter pass.
type SortMode string

const (
	SortMessages SortMode = "messages" // message count, descending
	SortCreated  SortMode = "created"  // creation date, ascending, unknown last
	SortUpdated  SortMode = "updated"  // last update, descending, unknown last
	SortNone     SortMode = "none"     // corpus order
)

var sortCycle = []SortMode{SortMessages, SortCreated, SortUpdated}

// ParseSortMode accepts the mode names above; "" means SortMessages.
func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SortMessages, nil
	case SortMessages, SortCreated, SortUpdated, SortNone:
		return m, nil
	}
	return "", fmt.Errorf("filter: unknown sort mode %q (want messages, created, updated or none)", s)
}

// Next returns the following mode in the browser's sort cycle.
func (m SortMode) Next() SortMode {
	for i, c := range sortCycle {
		if c == m {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return sortCycle[0]
}

// Query is the full set of active filters plus the sort mode. The zero
// value matches everything, sorted by message count.
type Query struct {
	MinMessages int
	StarredOnly bool
	Keyword     string
	Cluster     string
	// From and To bound created_utc inclusively; zero means unbounded.
	From time.Time
	To   time.Time
	Text string
	Sort SortMode
}

// Tokens returns the lower-cased whitespace-separated terms of Text.
func (q Query) Tokens() []string {
	return strings.Fields(strings.ToLower(q.Text))
}

// HasDateBound reports whether either end of the date range is set.
func (q Query) HasDateBound() bool {
	return !q.From.IsZero() || !q.To.IsZero()
}

// DateRange parses "YYYY-MM-DD" (or full timestamp) bounds. A bare date as
// the upper bound covers that whole day. Empty strings leave the bound open.
func DateRange(from, to string) (time.Time, time.Time, error) {
	var lo, hi time.Time
	if from = strings.TrimSpace(from); from != "" {
		t, ok := archive.ParseTimestamp(from)
		if !ok {
			return lo, hi, fmt.Errorf("filter: invalid from date %q", from)
		}
		lo = t
	}
	if to = strings.TrimSpace(to); to != "" {
		if d, err := time.Parse(time.DateOnly, to); err == nil {
			hi = d.Add(24*time.Hour - time.Nanosecond)
		} else if t, ok := archive.ParseTimestamp(to); ok {
			hi = t
		} else {
			return lo, hi, fmt.Errorf("filter: invalid to date %q", to)
		}
	}
	if !lo.IsZero() && !hi.IsZero() && hi.Before(lo) {
		return lo, hi, fmt.Errorf("filter: date range ends before it starts (%s > %s)", from, to)
	}
	return lo, hi, nil
}
