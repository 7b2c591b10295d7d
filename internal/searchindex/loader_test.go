package searchindex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/archive-deck/internal/fetch"
)

// mapFetcher serves resources from memory and counts every request.
type mapFetcher struct {
	mu    sync.Mutex
	files map[string]string
	calls map[string]int
	gate  chan struct{}
}

func newMapFetcher(files map[string]string) *mapFetcher {
	return &mapFetcher{files: files, calls: map[string]int{}}
}

func (m *mapFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	body, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, fetch.ErrMissing)
	}
	return []byte(body), nil
}

func (m *mapFetcher) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func shardedFiles() map[string]string {
	return map[string]string{
		"search/manifest.json": `{"shards":[{"file":"shard_000.json"},{"file":"search/shard_001.json"}]}`,
		"search/shard_000.json": `{"items":[
			{"file":"a.md","search_text":"Alpha BETA"},
			{"file":"b.md","search_text":"gamma"}]}`,
		"search/shard_001.json": `{"items":[
			{"file":"c.md","search_text":"Delta"},
			{"file":"a.md","search_text":"alpha overwritten"}]}`,
	}
}

func TestLoadSharded(t *testing.T) {
	f := newMapFetcher(shardedFiles())
	l := NewLoader(f)

	idx := l.Load(context.Background())
	assert.Equal(t, "sharded", idx.Source())
	assert.Equal(t, 3, idx.Len())

	text, ok := idx.Lookup("c.md")
	require.True(t, ok)
	assert.Equal(t, "delta", text)

	// later shard wins on a duplicate file
	text, _ = idx.Lookup("a.md")
	assert.Equal(t, "alpha overwritten", text)

	assert.True(t, l.Loaded())
	assert.False(t, l.Loading())
	assert.Zero(t, f.count(DefaultFallback))
}

func TestLoadFallbackBareList(t *testing.T) {
	f := newMapFetcher(map[string]string{
		"search_index.json": `[{"file":"x.md","search_text":"Hello World"}]`,
	})
	idx := NewLoader(f).Load(context.Background())

	assert.Equal(t, "monolithic", idx.Source())
	text, ok := idx.Lookup("x.md")
	require.True(t, ok)
	assert.Equal(t, "hello world", text)
}

func TestLoadFallbackItemsObject(t *testing.T) {
	f := newMapFetcher(map[string]string{
		"search/manifest.json": `{"shards":[]}`,
		"search_index.json":    `{"items":[{"file":"y.md","search_text":"Kubernetes"}]}`,
	})
	idx := NewLoader(f).Load(context.Background())

	assert.Equal(t, "monolithic", idx.Source())
	text, _ := idx.Lookup("y.md")
	assert.Equal(t, "kubernetes", text)
}

func TestLoadFallsBackWhenAnyShardFails(t *testing.T) {
	files := shardedFiles()
	delete(files, "search/shard_001.json")
	files["search_index.json"] = `{"items":[{"file":"z.md","search_text":"fallback"}]}`

	idx := NewLoader(newMapFetcher(files)).Load(context.Background())

	assert.Equal(t, "monolithic", idx.Source())
	_, ok := idx.Lookup("a.md")
	assert.False(t, ok, "partial shard data must not leak into the index")
	_, ok = idx.Lookup("z.md")
	assert.True(t, ok)
}

func TestLoadNothingAvailable(t *testing.T) {
	l := NewLoader(newMapFetcher(map[string]string{
		"search_index.json": `not json`,
	}))
	idx := l.Load(context.Background())

	assert.Equal(t, SourceEmpty, idx.Source())
	assert.Zero(t, idx.Len())
	assert.True(t, l.Loaded())

	_, ok := l.Lookup("anything.md")
	assert.False(t, ok)
}

func TestLoadIsMemoized(t *testing.T) {
	f := newMapFetcher(shardedFiles())
	l := NewLoader(f)

	first := l.Load(context.Background())
	second := l.Load(context.Background())

	assert.Same(t, first, second)
	assert.Equal(t, 1, f.count("search/manifest.json"))
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	f := newMapFetcher(shardedFiles())
	f.gate = make(chan struct{})
	l := NewLoader(f)

	var wg sync.WaitGroup
	results := make([]Index, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = l.Load(context.Background())
		}()
	}

	require.Eventually(t, l.Loading, time.Second, 5*time.Millisecond)
	close(f.gate)
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, 1, f.count("search/manifest.json"))
}

func TestStartLoadsInBackground(t *testing.T) {
	f := newMapFetcher(shardedFiles())
	f.gate = make(chan struct{})
	l := NewLoader(f)

	var done atomic.Int32
	require.True(t, l.Start(context.Background(), func(Index) { done.Add(1) }))
	assert.True(t, l.Loading())
	assert.False(t, l.Start(context.Background(), nil), "second start while loading is a no-op")

	// Lookups while loading are best-effort and empty.
	_, ok := l.Lookup("a.md")
	assert.False(t, ok)

	close(f.gate)
	require.Eventually(t, func() bool { return done.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !l.Loading() }, time.Second, 5*time.Millisecond)

	assert.True(t, l.Loaded())
	assert.False(t, l.Start(context.Background(), nil), "start after load is a no-op")
	_, ok = l.Lookup("a.md")
	assert.True(t, ok)
}

func TestCancelledLoadIsNotCached(t *testing.T) {
	f := newMapFetcher(shardedFiles())
	f.gate = make(chan struct{})
	l := NewLoader(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idx := l.Load(ctx)
	assert.Equal(t, SourceEmpty, idx.Source())
	assert.False(t, l.Loaded(), "a cancelled load must not look finished")
	assert.False(t, l.Loading())
	assert.False(t, l.Start(ctx, nil), "no background load on a cancelled context")

	close(f.gate)
	idx = l.Load(context.Background())
	assert.Equal(t, "sharded", idx.Source())
	assert.Equal(t, 3, idx.Len())
	assert.True(t, l.Loaded())
}

func TestResetForcesRefetch(t *testing.T) {
	f := newMapFetcher(shardedFiles())
	l := NewLoader(f)

	l.Load(context.Background())
	l.Reset()
	assert.False(t, l.Loaded())
	assert.Zero(t, l.Current().Len())

	l.Load(context.Background())
	assert.Equal(t, 2, f.count("search/manifest.json"))
}

func TestWithSourcesOverridesOrder(t *testing.T) {
	f := newMapFetcher(map[string]string{
		"search/manifest.json": `{"shards":[{"file":"s.json"}]}`,
		"search/s.json":        `{"items":[{"file":"a.md","search_text":"sharded"}]}`,
		"custom.json":          `[{"file":"a.md","search_text":"custom"}]`,
	})
	l := NewLoader(f, WithSources(MonolithicSource{Path: "custom.json"}))

	text, _ := l.Load(context.Background()).Lookup("a.md")
	assert.Equal(t, "custom", text)
}
