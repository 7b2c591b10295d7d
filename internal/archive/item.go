package archive

import (
	"strings"
	"time"
)

// Item is one archived conversation as listed in index.json.
type Item struct {
	Index        int      `json:"index"`
	Title        string   `json:"title"`
	CreatedUTC   string   `json:"created_utc"`
	UpdatedUTC   string   `json:"updated_utc"`
	Messages     int      `json:"messages"`
	File         string   `json:"file"`
	Snippet      string   `json:"snippet"`
	Keywords     []string `json:"keywords"`
	ClusterLabel *string  `json:"cluster_label"`
	Highlights   []string `json:"highlights"`

	// SearchText is only present when the index was built with inline
	// search text; normally it lives in the search shards.
	SearchText string `json:"search_text,omitempty"`

	lowerTitle    string
	lowerSnippet  string
	lowerKeywords string
	lowerSearch   string
	keywordSet    map[string]struct{}
	created       time.Time
	hasCreated    bool
	updated       time.Time
	hasUpdated    bool
}

// Prepare computes the lower-cased and parsed fields used on every filter
// pass. NewCorpus calls it once per item; call it yourself before sharing
// an Item that is not part of a corpus across goroutines.
func (it *Item) Prepare() {
	it.lowerTitle = strings.ToLower(it.Title)
	it.lowerSnippet = strings.ToLower(it.Snippet)
	it.lowerKeywords = strings.ToLower(strings.Join(it.Keywords, " "))
	it.lowerSearch = strings.ToLower(it.SearchText)
	it.keywordSet = make(map[string]struct{}, len(it.Keywords))
	for _, kw := range it.Keywords {
		it.keywordSet[kw] = struct{}{}
	}
	it.created, it.hasCreated = ParseTimestamp(it.CreatedUTC)
	it.updated, it.hasUpdated = ParseTimestamp(it.UpdatedUTC)
}

// ensurePrepared fills the cached fields of an Item that never went
// through NewCorpus, such as a literal built by hand. It writes to the
// Item, so it is only safe before the Item is shared; NewCorpus prepares
// every item it keeps, which makes the getters read-only on a corpus.
func (it *Item) ensurePrepared() {
	if it.keywordSet == nil {
		it.Prepare()
	}
}

// LowerTitle returns the cached lower-cased title.
func (it *Item) LowerTitle() string { it.ensurePrepared(); return it.lowerTitle }

// LowerSnippet returns the cached lower-cased snippet.
func (it *Item) LowerSnippet() string { it.ensurePrepared(); return it.lowerSnippet }

// LowerKeywords returns the keywords lower-cased and joined by spaces.
func (it *Item) LowerKeywords() string { it.ensurePrepared(); return it.lowerKeywords }

// LowerSearchText returns the inline search text lower-cased ("" when the
// index was built without it).
func (it *Item) LowerSearchText() string { it.ensurePrepared(); return it.lowerSearch }

// KeywordSet returns the materialized keyword set. Callers must not modify it.
func (it *Item) KeywordSet() map[string]struct{} { it.ensurePrepared(); return it.keywordSet }

// HasKeyword reports whether kw is one of the item's keywords.
func (it *Item) HasKeyword(kw string) bool {
	_, ok := it.KeywordSet()[kw]
	return ok
}

// Created returns the parsed creation time; ok is false for "unknown".
func (it *Item) Created() (time.Time, bool) { it.ensurePrepared(); return it.created, it.hasCreated }

// Updated returns the parsed last-update time; ok is false for "unknown".
func (it *Item) Updated() (time.Time, bool) { it.ensurePrepared(); return it.updated, it.hasUpdated }

// Cluster returns the topic label, or "" when the item has none.
func (it *Item) Cluster() string {
	if it.ClusterLabel == nil {
		return ""
	}
	return *it.ClusterLabel
}
