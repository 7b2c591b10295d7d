package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var helpSections = []struct {
	title string
	keys  [][2]string
}{
	{"Navigate", [][2]string{
		{"↑/↓ j/k", "move"},
		{"pgup/pgdn", "page"},
		{"g/G", "first/last"},
		{"enter", "open conversation"},
		{"tab", "switch pane"},
		{"esc", "back / clear input"},
	}},
	{"Filter", [][2]string{
		{"/", "search text"},
		{"f", "starred only"},
		{"K", "filter by selected keyword"},
		{"c", "filter by selected topic"},
		{"m", "cycle minimum messages"},
		{"s", "cycle sort"},
		{"x", "clear all filters"},
	}},
	{"Conversation", [][2]string{
		{"*", "star / unstar"},
		{"n", "edit note"},
		{"t", "show tool calls"},
		{"y", "copy transcript"},
		{"1-5", "open similar"},
	}},
	{"", [][2]string{
		{"R", "reload archive"},
		{"?", "toggle help"},
		{"q", "quit"},
	}},
}

// HelpOverlay shows keyboard shortcuts in a modal
type HelpOverlay struct {
	visible bool
}

// Toggle shows or hides the overlay.
func (h *HelpOverlay) Toggle() { h.visible = !h.visible }

// Hide hides the help overlay
func (h *HelpOverlay) Hide() { h.visible = false }

// IsVisible returns whether the help overlay is visible
func (h *HelpOverlay) IsVisible() bool { return h.visible }

// View renders the overlay centered in width x height.
func (h *HelpOverlay) View(width, height int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("archive-deck keys"))
	b.WriteString("\n")
	for _, sec := range helpSections {
		b.WriteString("\n")
		if sec.title != "" {
			b.WriteString(InfoStyle.Render(sec.title))
			b.WriteString("\n")
		}
		for _, kv := range sec.keys {
			b.WriteString("  ")
			b.WriteString(MenuKeyStyle.Render(padRight(kv[0], 12)))
			b.WriteString(MenuDescStyle.Render(kv[1]))
			b.WriteString("\n")
		}
	}
	box := PanelActiveStyle.Padding(1, 2).Render(strings.TrimRight(b.String(), "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
