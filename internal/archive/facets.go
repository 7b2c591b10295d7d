package archive

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// ResolveFacet maps user input onto one of the known facet values. An exact
// match wins, then a case-insensitive one, then the best fuzzy match. ok is
// false when nothing matches at all.
func ResolveFacet(input string, candidates []string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" || len(candidates) == 0 {
		return "", false
	}
	for _, c := range candidates {
		if c == input {
			return c, true
		}
	}
	for _, c := range candidates {
		if strings.EqualFold(c, input) {
			return c, true
		}
	}
	matches := fuzzy.Find(input, candidates)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0].Str, true
}

// SuggestFacets returns up to limit fuzzy matches for input, best first.
func SuggestFacets(input string, candidates []string, limit int) []string {
	matches := fuzzy.Find(strings.TrimSpace(input), candidates)
	out := make([]string, 0, limit)
	for _, m := range matches {
		if len(out) >= limit {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// KeywordTerms returns the corpus keywords as plain strings, most frequent
// first, for use as facet candidates.
func (c *Corpus) KeywordTerms() []string {
	kws := c.Keywords()
	out := make([]string, len(kws))
	for i, k := range kws {
		out[i] = k.Term
	}
	return out
}

// ClusterLabels returns the corpus cluster labels, largest first.
func (c *Corpus) ClusterLabels() []string {
	cls := c.Clusters()
	out := make([]string, len(cls))
	for i, cl := range cls {
		out[i] = cl.Label
	}
	return out
}
