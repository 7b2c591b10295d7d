// Package transcript turns an exported conversation document into ordered,
// role-tagged messages made of prose and code segments.
package transcript

import (
	"strings"
	"time"
	"unicode"
)

// SegmentKind distinguishes prose from fenced code.
type SegmentKind string

const (
	KindText SegmentKind = "text"
	KindCode SegmentKind = "code"
)

// Segment is one renderable run inside a message body.
type Segment struct {
	Kind     SegmentKind `json:"type"`
	Language string      `json:"language,omitempty"`
	Content  string      `json:"content"`

	// Tool marks a code segment that carries an internal tool-call payload.
	// Such segments are kept by ParseAll and dropped by Parse.
	Tool bool `json:"tool,omitempty"`
}

// Message is one role-tagged turn of a conversation.
type Message struct {
	Role     string    `json:"role"`
	Segments []Segment `json:"segments"`
}

// RoleClass returns the first whitespace- or colon-delimited token of the
// role label, lower-cased. "tool:browser (2025-01-01 10:00:00Z)" → "tool".
func (m Message) RoleClass() string {
	role := strings.TrimSpace(m.Role)
	end := strings.IndexFunc(role, func(r rune) bool {
		return r == ':' || unicode.IsSpace(r)
	})
	if end >= 0 {
		role = role[:end]
	}
	return strings.ToLower(role)
}

// Timestamp extracts the "(YYYY-MM-DD HH:MM:SSZ)" suffix the exporter
// appends to role labels.
func (m Message) Timestamp() (time.Time, bool) {
	role := strings.TrimSpace(m.Role)
	if !strings.HasSuffix(role, ")") {
		return time.Time{}, false
	}
	open := strings.LastIndex(role, "(")
	if open < 0 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02 15:04:05Z", role[open+1:len(role)-1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Visible returns the segments that are rendered, i.e. without tool calls.
func (m Message) Visible() []Segment {
	out := make([]Segment, 0, len(m.Segments))
	for _, s := range m.Segments {
		if !s.Tool {
			out = append(out, s)
		}
	}
	return out
}

// PlainText joins the visible segments, fencing code blocks again.
func (m Message) PlainText() string {
	var b strings.Builder
	for i, s := range m.Visible() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if s.Kind == KindCode {
			b.WriteString("```" + s.Language + "\n" + s.Content + "\n```")
			continue
		}
		b.WriteString(s.Content)
	}
	return b.String()
}

// Markdown renders messages in the heading encoding: one "### role" line
// per message followed by its visible segments. Parse reads it back.
func Markdown(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		body := m.PlainText()
		if body == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("### " + m.Role + "\n\n" + body)
	}
	return b.String()
}
