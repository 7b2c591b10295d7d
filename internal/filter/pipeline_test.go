package filter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/fetch"
	"github.com/asheshgoplani/archive-deck/internal/searchindex"
)

func strPtr(s string) *string { return &s }

func testCorpus() *archive.Corpus {
	return archive.NewCorpus([]*archive.Item{
		{File: "a.md", Title: "Kubernetes networking", Messages: 12, CreatedUTC: "2024-03-01 10:00:00Z", UpdatedUTC: "2024-05-01 10:00:00Z",
			Keywords: []string{"kubernetes", "cni"}, ClusterLabel: strPtr("infra"), Snippet: "pods cannot reach each other"},
		{File: "b.md", Title: "Sourdough starter", Messages: 4, CreatedUTC: "2023-11-20 08:30:00Z", UpdatedUTC: "unknown",
			Keywords: []string{"baking"}, ClusterLabel: strPtr("food"), Snippet: "hydration ratios"},
		{File: "c.md", Title: "Go generics", Messages: 12, CreatedUTC: "unknown", UpdatedUTC: "2024-06-01 00:00:00Z",
			Keywords: []string{"go", "generics"}, Snippet: "type parameters"},
		{File: "d.md", Title: "Helm charts", Messages: 30, CreatedUTC: "2024-03-31 23:59:00Z", UpdatedUTC: "2024-04-01 00:00:00Z",
			Keywords: []string{"kubernetes", "helm"}, ClusterLabel: strPtr("infra"), Snippet: "values files"},
	})
}

func files(items []*archive.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.File
	}
	return out
}

type starSet map[string]bool

func (s starSet) Starred(file string) bool { return s[file] }

// fakeIndex is a TextIndex whose contents and state are set by the test.
type fakeIndex struct {
	mu      sync.Mutex
	text    map[string]string
	loaded  bool
	loading bool
	starts  int
	onDone  func(searchindex.Index)
}

func (f *fakeIndex) Lookup(file string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.text[file]
	return s, ok
}
func (f *fakeIndex) Loaded() bool  { f.mu.Lock(); defer f.mu.Unlock(); return f.loaded }
func (f *fakeIndex) Loading() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.loading }
func (f *fakeIndex) Start(_ context.Context, onDone func(searchindex.Index)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.loading = true
	f.onDone = onDone
	return true
}

func apply(q Query, deps Deps) []string {
	return files(Apply(context.Background(), testCorpus(), q, deps).Items)
}

func TestEmptyQuerySortsByMessages(t *testing.T) {
	// a and c tie on 12 messages and keep corpus order
	assert.Equal(t, []string{"d.md", "a.md", "c.md", "b.md"}, apply(Query{}, Deps{}))
}

func TestSortNoneKeepsCorpusOrder(t *testing.T) {
	assert.Equal(t, []string{"a.md", "b.md", "c.md", "d.md"}, apply(Query{Sort: SortNone}, Deps{}))
}

func TestSortCreatedUnknownLast(t *testing.T) {
	assert.Equal(t, []string{"b.md", "a.md", "d.md", "c.md"}, apply(Query{Sort: SortCreated}, Deps{}))
}

func TestSortUpdatedUnknownLast(t *testing.T) {
	assert.Equal(t, []string{"c.md", "a.md", "d.md", "b.md"}, apply(Query{Sort: SortUpdated}, Deps{}))
}

// tieCorpus interleaves exact date ties and fully undated items with one
// distinct item, all with the same message count.
func tieCorpus() *archive.Corpus {
	return archive.NewCorpus([]*archive.Item{
		{File: "u1.md", Messages: 5, CreatedUTC: "unknown", UpdatedUTC: "unknown"},
		{File: "t1.md", Messages: 5, CreatedUTC: "2024-02-02 12:00:00Z", UpdatedUTC: "2024-03-03 12:00:00Z"},
		{File: "u2.md", Messages: 5, CreatedUTC: "", UpdatedUTC: "not a date"},
		{File: "t2.md", Messages: 5, CreatedUTC: "2024-02-02 12:00:00Z", UpdatedUTC: "2024-03-03 12:00:00Z"},
		{File: "x.md", Messages: 5, CreatedUTC: "2023-01-01 00:00:00Z", UpdatedUTC: "2024-09-09 00:00:00Z"},
	})
}

func TestSortIsStableForEveryMode(t *testing.T) {
	tests := []struct {
		mode SortMode
		want []string
	}{
		{SortMessages, []string{"u1.md", "t1.md", "u2.md", "t2.md", "x.md"}},
		{SortCreated, []string{"x.md", "t1.md", "t2.md", "u1.md", "u2.md"}},
		{SortUpdated, []string{"x.md", "t1.md", "t2.md", "u1.md", "u2.md"}},
		{SortNone, []string{"u1.md", "t1.md", "u2.md", "t2.md", "x.md"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			for i := 0; i < 3; i++ {
				got := files(Apply(context.Background(), tieCorpus(), Query{Sort: tt.mode}, Deps{}).Items)
				assert.Equal(t, tt.want, got, "ties keep corpus order")
			}
		})
	}
}

func TestMinMessages(t *testing.T) {
	assert.Equal(t, []string{"d.md", "a.md", "c.md"}, apply(Query{MinMessages: 12}, Deps{}))
}

func TestStarredOnly(t *testing.T) {
	got := apply(Query{StarredOnly: true}, Deps{Stars: starSet{"b.md": true, "c.md": true}})
	assert.Equal(t, []string{"c.md", "b.md"}, got)

	assert.Empty(t, apply(Query{StarredOnly: true}, Deps{}))
}

func TestKeywordAndClusterFacets(t *testing.T) {
	assert.Equal(t, []string{"d.md", "a.md"}, apply(Query{Keyword: "kubernetes"}, Deps{}))
	assert.Equal(t, []string{"b.md"}, apply(Query{Cluster: "food"}, Deps{}))
	assert.Equal(t, []string{"d.md"}, apply(Query{Keyword: "helm", Cluster: "infra"}, Deps{}))
	assert.Empty(t, apply(Query{Cluster: "nope"}, Deps{}))
}

func TestDateRangeExcludesUnknown(t *testing.T) {
	from, to, err := DateRange("2024-03-01", "2024-03-31")
	require.NoError(t, err)

	// d.md at 23:59 on the last day is inside; c.md has no date
	assert.Equal(t, []string{"d.md", "a.md"}, apply(Query{From: from, To: to}, Deps{}))

	_, to, err = DateRange("", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.md"}, apply(Query{To: to}, Deps{}))

	// no bound: unknown dates are included
	assert.Contains(t, apply(Query{}, Deps{}), "c.md")
}

func TestDateRangeErrors(t *testing.T) {
	_, _, err := DateRange("yesterday", "")
	assert.Error(t, err)
	_, _, err = DateRange("", "2024-13-40")
	assert.Error(t, err)
	_, _, err = DateRange("2024-05-01", "2024-04-01")
	assert.Error(t, err)
}

func TestTextMatchesAcrossFields(t *testing.T) {
	// "kubernetes" from keywords, "pods" from snippet: AND across tokens
	assert.Equal(t, []string{"a.md"}, apply(Query{Text: "Kubernetes PODS"}, Deps{}))
	// substring of title
	assert.Equal(t, []string{"c.md"}, apply(Query{Text: "generic"}, Deps{}))
	assert.Empty(t, apply(Query{Text: "kubernetes baking"}, Deps{}))
}

func TestTextUsesLoadedSearchText(t *testing.T) {
	idx := &fakeIndex{loaded: true, text: map[string]string{"b.md": "levain and autolyse"}}
	res := Apply(context.Background(), testCorpus(), Query{Text: "autolyse"}, Deps{Index: idx})

	assert.Equal(t, []string{"b.md"}, files(res.Items))
	assert.False(t, res.Partial)
	assert.Zero(t, idx.starts)
}

func TestTextQueryStartsLoaderWithoutBlocking(t *testing.T) {
	idx := &fakeIndex{}
	var ready atomic.Bool
	deps := Deps{Index: idx, OnIndexReady: func() { ready.Store(true) }}

	res := Apply(context.Background(), testCorpus(), Query{Text: "helm"}, deps)
	assert.True(t, res.Partial)
	assert.Equal(t, []string{"d.md"}, files(res.Items), "metadata still matches while loading")
	assert.Equal(t, 1, idx.starts)

	// a second pass while loading must not start another load
	Apply(context.Background(), testCorpus(), Query{Text: "helm"}, deps)
	assert.Equal(t, 1, idx.starts)

	idx.onDone(searchindex.Empty())
	assert.True(t, ready.Load())
}

func TestTextMatchesMetadataWhenIndexIsMissing(t *testing.T) {
	// neither the manifest nor the fallback file exists
	loader := searchindex.NewLoader(fetch.NewDirFetcher(t.TempDir()))
	var ready atomic.Bool
	deps := Deps{Index: loader, OnIndexReady: func() { ready.Store(true) }}

	res := Apply(context.Background(), testCorpus(), Query{Text: "kubernetes"}, deps)
	assert.True(t, res.Partial)
	assert.Equal(t, []string{"d.md", "a.md"}, files(res.Items))

	require.Eventually(t, ready.Load, time.Second, 5*time.Millisecond)
	require.True(t, loader.Loaded())
	assert.Equal(t, searchindex.SourceEmpty, loader.Current().Source())

	res = Apply(context.Background(), testCorpus(), Query{Text: "kubernetes"}, deps)
	assert.False(t, res.Partial)
	assert.Equal(t, []string{"d.md", "a.md"}, files(res.Items), "keywords still match")

	assert.Equal(t, []string{"a.md"}, files(Apply(context.Background(), testCorpus(), Query{Text: "reach each"}, deps).Items), "snippet")
	assert.Equal(t, []string{"c.md"}, files(Apply(context.Background(), testCorpus(), Query{Text: "go generics"}, deps).Items), "title")
}

func TestMetadataQueryDoesNotStartLoader(t *testing.T) {
	idx := &fakeIndex{}
	res := Apply(context.Background(), testCorpus(), Query{Keyword: "go"}, Deps{Index: idx})
	assert.False(t, res.Partial)
	assert.Zero(t, idx.starts)
}

func TestApplyDoesNotMutateCorpus(t *testing.T) {
	c := testCorpus()
	before := files(c.Items())
	Apply(context.Background(), c, Query{Sort: SortCreated, Text: "k"}, Deps{})
	assert.Equal(t, before, files(c.Items()))
}

func TestParseSortMode(t *testing.T) {
	tests := []struct {
		in   string
		want SortMode
		err  bool
	}{
		{"", SortMessages, false},
		{"Created", SortCreated, false},
		{"updated", SortUpdated, false},
		{"none", SortNone, false},
		{"random", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSortMode(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, SortCreated, SortMessages.Next())
	assert.Equal(t, SortMessages, SortUpdated.Next())
	assert.Equal(t, SortMessages, SortNone.Next())
}

func TestDebouncerRunsLatestOnce(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var mu sync.Mutex
	var ran []int
	for i := 1; i <= 5; i++ {
		d.Trigger(func() {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
		})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) > 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{5}, ran)
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var ran atomic.Bool
	d.Trigger(func() { ran.Store(true) })
	d.Stop()
	time.Sleep(40 * time.Millisecond)
	assert.False(t, ran.Load())
}
