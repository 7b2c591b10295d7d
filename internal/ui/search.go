package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheshgoplani/archive-deck/internal/filter"
)

// SearchBar is the free-text input plus a summary of the active facets.
type SearchBar struct {
	input textinput.Model
	width int
}

// NewSearchBar creates an unfocused search bar.
func NewSearchBar() *SearchBar {
	ti := textinput.New()
	ti.Placeholder = "Search title, keywords, snippet and full text..."
	ti.Prompt = "/ "
	ti.CharLimit = 200
	return &SearchBar{input: ti}
}

// SetWidth sets the outer width.
func (s *SearchBar) SetWidth(w int) {
	s.width = w
	s.input.Width = w - 6
}

// Focus puts the cursor in the input.
func (s *SearchBar) Focus() tea.Cmd { return s.input.Focus() }

// Blur leaves the input.
func (s *SearchBar) Blur() { s.input.Blur() }

// Focused reports whether the input has the cursor.
func (s *SearchBar) Focused() bool { return s.input.Focused() }

// Value returns the typed query.
func (s *SearchBar) Value() string { return s.input.Value() }

// SetValue replaces the typed query.
func (s *SearchBar) SetValue(v string) { s.input.SetValue(v) }

// Update forwards a message to the input and reports whether the text
// changed.
func (s *SearchBar) Update(msg tea.Msg) (bool, tea.Cmd) {
	before := s.input.Value()
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s.input.Value() != before, cmd
}

// View renders the input box and the facet line.
func (s *SearchBar) View(q filter.Query, shown, total int, indexing bool) string {
	// Styles are rebuilt on theme switches, so pick them up per render.
	s.input.PromptStyle = SearchPromptStyle
	box := SearchBoxStyle.Width(max(s.width-2, 10)).Render(s.input.View())

	var chips []string
	if q.StarredOnly {
		chips = append(chips, FacetStyle.Render("★ starred"))
	}
	if q.Keyword != "" {
		chips = append(chips, FacetStyle.Render("#"+q.Keyword))
	}
	if q.Cluster != "" {
		chips = append(chips, FacetStyle.Render("topic: "+q.Cluster))
	}
	if q.MinMessages > 0 {
		chips = append(chips, FacetStyle.Render(fmt.Sprintf("≥%d msgs", q.MinMessages)))
	}
	sortMode := q.Sort
	if sortMode == "" {
		sortMode = filter.SortMessages
	}
	chips = append(chips, DimStyle.Render("sort: "+string(sortMode)))
	chips = append(chips, CountStyle.Render(fmt.Sprintf("%d/%d", shown, total)))
	if indexing {
		chips = append(chips, WarningStyle.Render("indexing…"))
	}
	return box + "\n" + strings.Join(chips, " ")
}
