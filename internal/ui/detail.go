package ui

import (
	"fmt"
	"strings"

	"github.com/asheshgoplani/archive-deck/internal/annotations"
	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/similarity"
	"github.com/asheshgoplani/archive-deck/internal/transcript"
)

// Detail is the right-hand pane: one conversation, its transcript and the
// conversations similar to it.
type Detail struct {
	item       *archive.Item
	annotation annotations.Annotation
	messages   []transcript.Message
	similar    []similarity.Match
	loading    bool
	showTools  bool
	scroll     int

	// lines caches the last render; width is the width it was built for.
	lines []string
	width int
}

// Show switches the pane to item and marks the transcript as loading.
func (d *Detail) Show(item *archive.Item, a annotations.Annotation) {
	d.item = item
	d.annotation = a
	d.messages = nil
	d.similar = nil
	d.loading = true
	d.scroll = 0
	d.invalidate()
}

// SetTranscript fills in the loaded transcript, unless the pane moved on to
// another item meanwhile.
func (d *Detail) SetTranscript(file string, msgs []transcript.Message, similar []similarity.Match) {
	if d.item == nil || d.item.File != file {
		return
	}
	d.messages = msgs
	d.similar = similar
	d.loading = false
	d.invalidate()
}

// SetAnnotation refreshes the star/note header.
func (d *Detail) SetAnnotation(a annotations.Annotation) {
	d.annotation = a
	d.invalidate()
}

// ToggleTools shows or hides tool invocations.
func (d *Detail) ToggleTools() {
	d.showTools = !d.showTools
	d.invalidate()
}

// File returns the file of the shown item, or "".
func (d *Detail) File() string {
	if d.item == nil {
		return ""
	}
	return d.item.File
}

// Messages returns the loaded transcript, nil while it is loading.
func (d *Detail) Messages() []transcript.Message { return d.messages }

// Similar returns the ranked similar items of the shown conversation.
func (d *Detail) Similar() []similarity.Match { return d.similar }

// Scroll moves the view by delta lines, clamped to the content.
func (d *Detail) Scroll(delta, height int) {
	d.scroll += delta
	maxScroll := len(d.lines) - height
	if d.scroll > maxScroll {
		d.scroll = maxScroll
	}
	if d.scroll < 0 {
		d.scroll = 0
	}
}

func (d *Detail) invalidate() { d.lines = nil }

// View renders the visible window of the pane.
func (d *Detail) View(width, height int) string {
	if d.lines == nil || d.width != width {
		d.lines = d.render(width)
		d.width = width
	}
	if height <= 0 {
		return ""
	}
	start := d.scroll
	if start > len(d.lines) {
		start = len(d.lines)
	}
	end := start + height
	if end > len(d.lines) {
		end = len(d.lines)
	}
	return strings.Join(d.lines[start:end], "\n")
}

func (d *Detail) render(width int) []string {
	if d.item == nil {
		return []string{DimStyle.Render("Select a conversation and press enter.")}
	}
	it := d.item
	var out []string
	add := func(lines ...string) { out = append(out, lines...) }

	title := it.Title
	if d.annotation.Starred {
		title = "★ " + title
	}
	for _, l := range wrap(title, width) {
		add(TitleStyle.Render(l))
	}
	created, cok := it.Created()
	updated, uok := it.Updated()
	add(DimStyle.Render(truncate(fmt.Sprintf("%d messages · created %s · updated %s",
		it.Messages, shortDate(created, cok), relativeDate(updated, uok)), width)))
	if len(it.Keywords) > 0 {
		add(KeywordStyle.Render(truncate(strings.Join(it.Keywords, ", "), width)))
	}
	if c := it.Cluster(); c != "" {
		add(DimStyle.Render(truncate("topic: "+c, width)))
	}
	if d.annotation.Note != "" {
		add("")
		for _, l := range wrap("✎ "+d.annotation.Note, width) {
			add(NoteStyle.Render(l))
		}
	}
	if len(it.Highlights) > 0 {
		add("", HeaderStyle.Render("Highlights"))
		for _, h := range it.Highlights {
			for i, l := range wrap(h, width-2) {
				prefix := "  "
				if i == 0 {
					prefix = "• "
				}
				add(prefix + l)
			}
		}
	}

	add("", HeaderStyle.Render("Transcript"))
	switch {
	case d.loading:
		add(DimStyle.Render("loading…"))
	case len(d.messages) == 0:
		add(DimStyle.Render("Transcript unavailable."))
	default:
		for _, m := range d.messages {
			add(d.renderMessage(m, width)...)
		}
	}

	if !d.loading {
		add("", HeaderStyle.Render("Similar"))
		if len(d.similar) == 0 {
			add(DimStyle.Render("No similar conversations."))
		}
		for _, m := range d.similar {
			line := fmt.Sprintf("%3.0f%%  %s", m.Score*100, m.Item.Title)
			add(SimilarStyle.Render(truncate(line, width)))
		}
	}
	return out
}

func (d *Detail) renderMessage(m transcript.Message, width int) []string {
	segs := m.Segments
	if !d.showTools {
		segs = m.Visible()
		if len(segs) == 0 {
			return nil
		}
	}
	label := m.Role
	out := []string{"", RoleStyle(m.RoleClass()).Render(truncate(label, width))}
	for _, seg := range segs {
		switch {
		case seg.Tool:
			out = append(out, ToolStyle.Render(truncate("⚙ tool call: "+firstLine(seg.Content), width)))
		case seg.Kind == transcript.KindCode:
			if seg.Language != "" {
				out = append(out, CodeLangStyle.Render(truncate(seg.Language, width)))
			}
			for _, l := range strings.Split(seg.Content, "\n") {
				out = append(out, CodeStyle.Render(padRight("  "+l, width)))
			}
		default:
			out = append(out, wrap(seg.Content, width)...)
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
