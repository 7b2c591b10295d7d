// Package similarity ranks conversations by keyword overlap.
package similarity

import (
	"sort"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

// DefaultLimit is the number of recommendations returned by Rank.
const DefaultLimit = 5

// Jaccard returns |a ∩ b| / |a ∪ b|. Either set being empty yields 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		union = 1
	}
	return float64(inter) / float64(union)
}

// Match is one recommended item with its score.
type Match struct {
	Item  *archive.Item
	Score float64
}

// Rank scores every corpus item against target and returns the best limit
// matches with a positive score, highest first. The target itself (by file
// key) is skipped. Equal scores keep corpus order.
func Rank(target *archive.Item, corpus []*archive.Item, limit int) []Match {
	if target == nil {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	targetSet := target.KeywordSet()

	matches := make([]Match, 0, limit)
	for _, it := range corpus {
		if it == nil || it.File == target.File {
			continue
		}
		score := Jaccard(targetSet, it.KeywordSet())
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{Item: it, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
