// Package archive models the conversation corpus described by an archive's
// index.json: the items, their cached derived fields and the insights block.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/asheshgoplani/archive-deck/internal/fetch"
	"github.com/asheshgoplani/archive-deck/internal/logging"
)

var archiveLog = logging.ForComponent(logging.CompArchive)

// DefaultIndexFile is the index document name relative to the archive root.
const DefaultIndexFile = "index.json"

// TermCount is a keyword with its document frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// ClusterCount is a topic label with the number of items carrying it.
type ClusterCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Insights is the aggregate block the export pipeline writes next to items.
type Insights struct {
	MonthCounts map[string]int `json:"month_counts"`
	TopKeywords []TermCount    `json:"top_keywords"`
	Clusters    []ClusterCount `json:"clusters"`
}

// IndexDocument is the decoded shape of index.json.
type IndexDocument struct {
	GeneratedUTC string   `json:"generated_utc"`
	Total        int      `json:"total"`
	Items        []*Item  `json:"items"`
	Insights     Insights `json:"insights"`
}

// Corpus is the read-only, in-memory set of items for one archive. Item
// order is the index order and is what "corpus order" means everywhere.
type Corpus struct {
	items    []*Item
	byFile   map[string]*Item
	insights Insights
	genUTC   string
}

// NewCorpus prepares items and indexes them by file. Items without a file
// key or repeating an earlier file are dropped; file is the join key for
// stars, notes and search text, so it must be unique.
func NewCorpus(items []*Item) *Corpus {
	c := &Corpus{
		items:  make([]*Item, 0, len(items)),
		byFile: make(map[string]*Item, len(items)),
	}
	for _, it := range items {
		if it == nil || it.File == "" {
			continue
		}
		if _, dup := c.byFile[it.File]; dup {
			archiveLog.Warn("duplicate_item_dropped", slog.String("file", it.File))
			continue
		}
		it.Prepare()
		c.items = append(c.items, it)
		c.byFile[it.File] = it
	}
	return c
}

// LoadCorpus fetches and decodes the index document. Unlike the search
// index, the corpus is required: a missing or malformed index is an error.
func LoadCorpus(ctx context.Context, f fetch.Fetcher, name string) (*Corpus, error) {
	if name == "" {
		name = DefaultIndexFile
	}
	var doc IndexDocument
	if err := fetch.FetchJSON(ctx, f, name, &doc); err != nil {
		return nil, fmt.Errorf("archive: load %s: %w", name, err)
	}
	c := NewCorpus(doc.Items)
	c.insights = doc.Insights
	c.genUTC = doc.GeneratedUTC
	archiveLog.Info("corpus_loaded",
		slog.String("index", name),
		slog.Int("items", len(c.items)),
		slog.Int("declared_total", doc.Total))
	return c, nil
}

// Items returns the items in corpus order. The slice must not be modified.
func (c *Corpus) Items() []*Item { return c.items }

// Len returns the number of items.
func (c *Corpus) Len() int { return len(c.items) }

// Get returns the item with the given file key.
func (c *Corpus) Get(file string) (*Item, bool) {
	it, ok := c.byFile[file]
	return it, ok
}

// GeneratedUTC returns the index generation stamp, if present.
func (c *Corpus) GeneratedUTC() string { return c.genUTC }

// Insights returns the insights block, filling month counts, top keywords
// and clusters from the items when the index omitted them.
func (c *Corpus) Insights() Insights {
	ins := c.insights
	if len(ins.MonthCounts) == 0 {
		ins.MonthCounts = c.MonthCounts()
	}
	if len(ins.TopKeywords) == 0 {
		ins.TopKeywords = c.Keywords()
		if len(ins.TopKeywords) > 40 {
			ins.TopKeywords = ins.TopKeywords[:40]
		}
	}
	if len(ins.Clusters) == 0 {
		ins.Clusters = c.Clusters()
	}
	return ins
}

// MonthCounts buckets items by creation month (YYYY-MM).
func (c *Corpus) MonthCounts() map[string]int {
	counts := make(map[string]int)
	for _, it := range c.items {
		if t, ok := it.Created(); ok {
			counts[t.Format("2006-01")]++
		}
	}
	return counts
}

// Keywords returns every keyword with the number of items carrying it,
// most frequent first, ties alphabetical.
func (c *Corpus) Keywords() []TermCount {
	counts := make(map[string]int)
	for _, it := range c.items {
		for kw := range it.KeywordSet() {
			counts[kw]++
		}
	}
	out := make([]TermCount, 0, len(counts))
	for term, n := range counts {
		out = append(out, TermCount{Term: term, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	return out
}

// Clusters returns every cluster label with its item count, largest first.
func (c *Corpus) Clusters() []ClusterCount {
	counts := make(map[string]int)
	for _, it := range c.items {
		if label := it.Cluster(); label != "" {
			counts[label]++
		}
	}
	out := make([]ClusterCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, ClusterCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return strings.Compare(out[i].Label, out[j].Label) < 0
	})
	return out
}
