package session

import (
	"github.com/asheshgoplani/archive-deck/internal/archive"
)

// Stats summarizes the loaded archive and the user's annotations.
type Stats struct {
	GeneratedUTC string                 `json:"generated_utc"`
	Items        int                    `json:"items"`
	Messages     int                    `json:"messages"`
	Starred      int                    `json:"starred"`
	Noted        int                    `json:"noted"`
	IndexLoaded  bool                   `json:"index_loaded"`
	IndexSource  string                 `json:"index_source,omitempty"`
	IndexEntries int                    `json:"index_entries"`
	Months       map[string]int         `json:"months"`
	Keywords     []archive.TermCount    `json:"keywords"`
	Clusters     []archive.ClusterCount `json:"clusters"`
}

// Stats reports corpus and annotation totals. Only annotations for files
// in the current corpus are counted.
func (s *Session) Stats() Stats {
	corpus := s.Corpus()
	st := Stats{
		GeneratedUTC: corpus.GeneratedUTC(),
		Items:        corpus.Len(),
		Months:       corpus.MonthCounts(),
		Keywords:     corpus.Keywords(),
		Clusters:     corpus.Clusters(),
		IndexLoaded:  s.loader.Loaded(),
	}
	for _, it := range corpus.Items() {
		st.Messages += it.Messages
	}
	for file, a := range s.store.All() {
		if _, ok := corpus.Get(file); !ok {
			continue
		}
		if a.Starred {
			st.Starred++
		}
		if a.Note != "" {
			st.Noted++
		}
	}
	if st.IndexLoaded {
		idx := s.loader.Current()
		st.IndexSource = idx.Source()
		st.IndexEntries = idx.Len()
	}
	return st
}
