package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/archive-deck/internal/annotations"
	"github.com/asheshgoplani/archive-deck/internal/fetch"
	"github.com/asheshgoplani/archive-deck/internal/filter"
	"github.com/asheshgoplani/archive-deck/internal/transcript"
)

const testIndex = `{
  "generated_utc": "2024-06-01 12:00:00Z",
  "total": 3,
  "items": [
    {"index": 1, "title": "Kubernetes networking", "created_utc": "2024-03-01 10:00:00Z", "updated_utc": "2024-03-02 10:00:00Z",
     "messages": 12, "file": "data/conversations/0001_k8s.md", "snippet": "pods", "keywords": ["kubernetes", "cni", "pods"],
     "cluster_label": "infra", "highlights": []},
    {"index": 2, "title": "Helm charts", "created_utc": "2024-04-01 10:00:00Z", "updated_utc": "unknown",
     "messages": 30, "file": "data/conversations/0002_helm.md", "snippet": "values", "keywords": ["kubernetes", "helm"],
     "cluster_label": "infra", "highlights": []},
    {"index": 3, "title": "Bread", "created_utc": "unknown", "updated_utc": "unknown",
     "messages": 4, "file": "data/conversations/0003_bread.md", "snippet": "flour", "keywords": ["baking"],
     "cluster_label": null, "highlights": []}
  ],
  "insights": {"month_counts": {}, "top_keywords": [], "clusters": []}
}`

const testTranscript = "# Kubernetes networking\n\n- created_utc: 2024-03-01 10:00:00Z\n\n---\n\n" +
	"<!-- MSG role: user (2024-03-01 10:00:00Z) -->\n### user (2024-03-01 10:00:00Z)\n\nWhy can't my pods talk?\n\n<!-- /MSG -->\n\n" +
	"<!-- MSG role: assistant -->\n### assistant\n\n```unknown\n{\"search_query\": \"cni\"}\n```\n\n<!-- /MSG -->\n\n" +
	"<!-- MSG role: assistant -->\n### assistant\n\nCheck the CNI.\n\n```bash\nkubectl get pods\n```\n\n<!-- /MSG -->\n"

func writeArchive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.json":                 testIndex,
		"search/manifest.json":       `{"shards":[{"file":"shard_000.json"}]}`,
		"search/shard_000.json":      `{"items":[{"file":"data/conversations/0003_bread.md","search_text":"Sourdough levain"}]}`,
		"conversations/0001_k8s.md":  testTranscript,
		"conversations/0002_helm.md": "no messages here",
	}
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func newSession(t *testing.T, dir string, opts Options) *Session {
	t.Helper()
	opts.Fetcher = fetch.NewDirFetcher(dir)
	if opts.FileRoot == "" {
		opts.FileRoot = "data"
	}
	s, err := New(context.Background(), opts)
	require.NoError(t, err)
	return s
}

func TestNewRequiresIndex(t *testing.T) {
	_, err := New(context.Background(), Options{Fetcher: fetch.NewDirFetcher(t.TempDir())})
	assert.ErrorIs(t, err, fetch.ErrMissing)

	_, err = New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestApplyWithQuery(t *testing.T) {
	s := newSession(t, writeArchive(t), Options{})
	assert.Equal(t, 3, s.Corpus().Len())

	s.SetQuery(filter.Query{Keyword: "kubernetes", Sort: filter.SortMessages})
	res := s.Apply(context.Background())
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Helm charts", res.Items[0].Title)
	assert.False(t, res.Partial)
}

func TestFreeTextTriggersIndexLoad(t *testing.T) {
	ready := make(chan struct{})
	s := newSession(t, writeArchive(t), Options{OnIndexReady: func() { close(ready) }})

	s.SetQuery(filter.Query{Text: "levain"})
	first := s.Apply(context.Background())
	if first.Partial {
		assert.Empty(t, first.Items, "search text is not available yet")
		select {
		case <-ready:
		case <-time.After(2 * time.Second):
			t.Fatal("index load never completed")
		}
	}

	second := s.Apply(context.Background())
	assert.False(t, second.Partial)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "Bread", second.Items[0].Title)
}

func TestOpenParsesAndCaches(t *testing.T) {
	dir := writeArchive(t)
	s := newSession(t, dir, Options{})
	file := "data/conversations/0001_k8s.md"

	msgs := s.Open(context.Background(), file)
	require.Len(t, msgs, 2, "the tool-only message is dropped")
	assert.Equal(t, "user", msgs[0].RoleClass())
	assert.Equal(t, transcript.KindCode, msgs[1].Segments[1].Kind)
	assert.Equal(t, "kubectl get pods", msgs[1].Segments[1].Content)

	all := s.OpenAll(context.Background(), file)
	require.Len(t, all, 3)
	assert.True(t, all[1].Segments[0].Tool)

	// cached: removing the file does not matter any more
	require.NoError(t, os.Remove(filepath.Join(dir, "conversations", "0001_k8s.md")))
	assert.Len(t, s.Open(context.Background(), file), 2)
}

func TestOpenMissingOrEmpty(t *testing.T) {
	s := newSession(t, writeArchive(t), Options{})
	assert.Empty(t, s.Open(context.Background(), "data/conversations/0003_bread.md"))
	assert.Empty(t, s.Open(context.Background(), "data/conversations/0002_helm.md"))
}

func TestTranscriptPath(t *testing.T) {
	s := newSession(t, writeArchive(t), Options{FileRoot: "/data/"})
	assert.Equal(t, "conversations/a.md", s.TranscriptPath("data/conversations/a.md"))
	assert.Equal(t, "conversations/a.md", s.TranscriptPath("conversations/a.md"))
	assert.Equal(t, "other/a.md", s.TranscriptPath("/other/a.md"))
}

func TestSimilar(t *testing.T) {
	s := newSession(t, writeArchive(t), Options{SimilarLimit: 3})

	matches, err := s.Similar("data/conversations/0001_k8s.md")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Helm charts", matches[0].Item.Title)
	assert.InDelta(t, 0.25, matches[0].Score, 1e-9)

	_, err = s.Similar("nope.md")
	assert.ErrorIs(t, err, ErrUnknownFile)
}

func TestAnnotations(t *testing.T) {
	store := annotations.NewMemoryStore()
	s := newSession(t, writeArchive(t), Options{Store: store})
	file := "data/conversations/0002_helm.md"

	starred, err := s.ToggleStar(file)
	require.NoError(t, err)
	assert.True(t, starred)
	require.NoError(t, s.SetNote(file, "charts"))

	s.SetQuery(filter.Query{StarredOnly: true})
	res := s.Apply(context.Background())
	require.Len(t, res.Items, 1)
	assert.Equal(t, file, res.Items[0].File)

	require.NoError(t, s.SetStar(file, false))
	assert.Equal(t, "charts", store.Get(file).Note)
	assert.False(t, store.Starred(file))

	_, err = s.ToggleStar("nope.md")
	assert.ErrorIs(t, err, ErrUnknownFile)
	assert.ErrorIs(t, s.SetNote("nope.md", "x"), ErrUnknownFile)
}

func TestReload(t *testing.T) {
	dir := writeArchive(t)
	s := newSession(t, dir, Options{})
	s.Loader().Load(context.Background())
	require.True(t, s.Loader().Loaded())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"),
		[]byte(`{"items":[{"file":"x.md","title":"Only one","messages":1,"keywords":[]}]}`), 0o644))
	require.NoError(t, s.Reload(context.Background()))

	assert.Equal(t, 1, s.Corpus().Len())
	assert.False(t, s.Loader().Loaded(), "reload drops the search index")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte(`{`), 0o644))
	assert.Error(t, s.Reload(context.Background()))
	assert.Equal(t, 1, s.Corpus().Len(), "failed reload keeps the previous corpus")
}

func TestStats(t *testing.T) {
	store := annotations.NewMemoryStore()
	require.NoError(t, store.Set("data/conversations/0001_k8s.md", annotations.Annotation{Starred: true, Note: "n"}))
	require.NoError(t, store.Set("gone.md", annotations.Annotation{Starred: true}))
	s := newSession(t, writeArchive(t), Options{Store: store})

	st := s.Stats()
	assert.Equal(t, 3, st.Items)
	assert.Equal(t, 46, st.Messages)
	assert.Equal(t, 1, st.Starred)
	assert.Equal(t, 1, st.Noted)
	assert.False(t, st.IndexLoaded)
	assert.Equal(t, map[string]int{"2024-03": 1, "2024-04": 1}, st.Months)

	s.Loader().Load(context.Background())
	st = s.Stats()
	assert.True(t, st.IndexLoaded)
	assert.Equal(t, "sharded", st.IndexSource)
	assert.Equal(t, 1, st.IndexEntries)
}
