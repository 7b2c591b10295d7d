package ui

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

// truncate cuts s to width terminal cells, marking the cut with "…".
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// padRight pads s with spaces to exactly width cells (truncating first).
func padRight(s string, width int) string {
	s = truncate(s, width)
	return runewidth.FillRight(s, width)
}

// wrap breaks text into lines of at most width cells, splitting on spaces
// where possible. Existing newlines are kept.
func wrap(text string, width int) []string {
	if width <= 0 {
		return nil
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		if para == "" {
			out = append(out, "")
			continue
		}
		line, lineW := "", 0
		for _, word := range strings.Fields(para) {
			w := runewidth.StringWidth(word)
			for w > width {
				// A single word wider than the pane is hard-split.
				head := runewidth.Truncate(word, width, "")
				if head == "" {
					_, size := utf8.DecodeRuneInString(word)
					head = word[:size]
				}
				if line != "" {
					out = append(out, line)
					line, lineW = "", 0
				}
				out = append(out, head)
				word = word[len(head):]
				w = runewidth.StringWidth(word)
			}
			if word == "" {
				continue
			}
			switch {
			case line == "":
				line, lineW = word, w
			case lineW+1+w <= width:
				line += " " + word
				lineW += 1 + w
			default:
				out = append(out, line)
				line, lineW = word, w
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// relativeDate renders a timestamp as "3 months ago", or "unknown".
func relativeDate(t time.Time, ok bool) string {
	if !ok {
		return archive.UnknownTimestamp
	}
	return humanize.Time(t)
}

// shortDate renders YYYY-MM-DD, or "unknown".
func shortDate(t time.Time, ok bool) string {
	if !ok {
		return archive.UnknownTimestamp
	}
	return t.Format(time.DateOnly)
}
