package similarity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

func set(terms ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		s[t] = struct{}{}
	}
	return s
}

func TestJaccardProperties(t *testing.T) {
	cases := []struct {
		a, b map[string]struct{}
		want float64
	}{
		{set("a", "b"), set("b", "c"), 1.0 / 3.0},
		{set("a", "b", "c"), set("a", "b", "c"), 1},
		{set("a"), set("b"), 0},
		{set(), set("a"), 0},
		{set(), set(), 0},
		{set("x", "y", "z", "w"), set("x"), 0.25},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, Jaccard(c.a, c.b), 1e-9)
		assert.Equal(t, Jaccard(c.a, c.b), Jaccard(c.b, c.a), "symmetric")
	}
	for _, s := range []map[string]struct{}{set("a"), set("a", "b", "c")} {
		assert.Equal(t, 1.0, Jaccard(s, s))
	}
}

func TestRankTopN(t *testing.T) {
	target := &archive.Item{File: "target", Keywords: []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8"}}
	corpus := []*archive.Item{target}
	for i := 1; i <= 8; i++ {
		kws := make([]string, 0, i)
		for j := 1; j <= i; j++ {
			kws = append(kws, fmt.Sprintf("k%d", j))
		}
		corpus = append(corpus, &archive.Item{File: fmt.Sprintf("f%d", i), Keywords: kws})
	}
	corpus = append(corpus, &archive.Item{File: "unrelated", Keywords: []string{"zz"}})
	_ = archive.NewCorpus(corpus)

	got := Rank(target, corpus, DefaultLimit)
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
	assert.Equal(t, "f8", got[0].Item.File)
	assert.Equal(t, 1.0, got[0].Score)
	for _, m := range got {
		assert.NotEqual(t, "target", m.Item.File)
		assert.Greater(t, m.Score, 0.0)
	}
}

func TestRankTiesKeepCorpusOrder(t *testing.T) {
	target := &archive.Item{File: "t", Keywords: []string{"go", "rust"}}
	corpus := []*archive.Item{
		{File: "b", Keywords: []string{"go"}},
		target,
		{File: "a", Keywords: []string{"rust"}},
		{File: "c", Keywords: []string{"go"}},
		{File: "none", Keywords: nil},
	}
	got := Rank(target, corpus, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Item.File)
	assert.Equal(t, "a", got[1].Item.File)
	assert.Equal(t, "c", got[2].Item.File)
}

func TestRankEmptyTarget(t *testing.T) {
	target := &archive.Item{File: "t"}
	corpus := []*archive.Item{{File: "a", Keywords: []string{"go"}}}
	assert.Empty(t, Rank(target, corpus, 5))
	assert.Nil(t, Rank(nil, corpus, 5))
}
