package transcript

import (
	"strings"
)

// Encoding identifies how messages are delimited in a transcript body.
type Encoding int

const (
	// EncodingNone means no message delimiters were found.
	EncodingNone Encoding = iota
	// EncodingMarker delimits messages with <!-- MSG role: x --> … <!-- /MSG -->.
	EncodingMarker
	// EncodingHeading starts each message with a "### role" line.
	EncodingHeading
)

func (e Encoding) String() string {
	switch e {
	case EncodingMarker:
		return "marker"
	case EncodingHeading:
		return "heading"
	default:
		return "none"
	}
}

const (
	frontMatterDelimiter = "---"
	headingPrefix        = "### "
	fence                = "```"
)

type rawMessage struct {
	role string
	body string
}

// Parse returns the renderable messages of a transcript: tool-call segments
// are removed and messages left without segments are omitted. It never
// fails; text without recognizable messages yields an empty slice.
func Parse(raw string) []Message {
	all := ParseAll(raw)
	out := make([]Message, 0, len(all))
	for _, m := range all {
		visible := m.Visible()
		if len(visible) == 0 {
			continue
		}
		out = append(out, Message{Role: m.Role, Segments: visible})
	}
	return out
}

// ParseAll returns every message in document order with tool-call segments
// still present (flagged with Segment.Tool). Messages whose body cleans to
// nothing carry an empty segment list.
func ParseAll(raw string) []Message {
	body := stripFrontMatter(normalizeNewlines(raw))
	lines := strings.Split(body, "\n")

	var msgs []rawMessage
	switch DetectEncoding(lines) {
	case EncodingMarker:
		msgs = scanMarkers(lines)
	case EncodingHeading:
		msgs = scanHeadings(lines)
	}

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{Role: m.role, Segments: segmentBody(m.body)})
	}
	return out
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// stripFrontMatter drops everything up to and including the first line
// consisting solely of "---". Without such a line the whole text is body.
func stripFrontMatter(s string) string {
	offset := 0
	for offset <= len(s) {
		end := strings.IndexByte(s[offset:], '\n')
		line := s[offset:]
		if end >= 0 {
			line = s[offset : offset+end]
		}
		if strings.TrimSpace(line) == frontMatterDelimiter {
			if end < 0 {
				return ""
			}
			return s[offset+end+1:]
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return s
}

// DetectEncoding decides the encoding up front: marker form requires at
// least one start marker followed later by an end marker; heading form
// requires at least one heading line outside a code fence.
func DetectEncoding(lines []string) Encoding {
	sawStart := false
	sawHeading := false
	inFence := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if _, ok := markerStartRole(trimmed); ok {
			sawStart = true
			continue
		}
		if sawStart && isMarkerEnd(trimmed) {
			return EncodingMarker
		}
		if strings.HasPrefix(trimmed, fence) {
			inFence = !inFence
			continue
		}
		if !inFence && headingRole(line) != "" {
			sawHeading = true
		}
	}
	if sawHeading {
		return EncodingHeading
	}
	return EncodingNone
}

// markerStartRole parses "<!-- MSG role: <label> -->".
func markerStartRole(trimmed string) (string, bool) {
	inner, ok := commentBody(trimmed)
	if !ok || !strings.HasPrefix(inner, "MSG") {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(inner, "MSG"))
	if !strings.HasPrefix(rest, "role:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(rest, "role:")), true
}

func isMarkerEnd(trimmed string) bool {
	inner, ok := commentBody(trimmed)
	return ok && inner == "/MSG"
}

func commentBody(trimmed string) (string, bool) {
	if !strings.HasPrefix(trimmed, "<!--") || !strings.HasSuffix(trimmed, "-->") || len(trimmed) < 7 {
		return "", false
	}
	return strings.TrimSpace(trimmed[4 : len(trimmed)-3]), true
}

func headingRole(line string) string {
	if !strings.HasPrefix(line, headingPrefix) {
		return ""
	}
	return strings.TrimSpace(line[len(headingPrefix):])
}

type markerState int

const (
	outsideMessage markerState = iota
	afterStart
	inBody
)

// scanMarkers walks the lines once. A start marker opens a message; the
// first non-blank line after it is skipped when it is a heading; an end marker closes
// the message. A message left open at the end of the text is discarded,
// since it has no matching end marker.
func scanMarkers(lines []string) []rawMessage {
	var (
		out   []rawMessage
		state = outsideMessage
		role  string
		body  []string
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch state {
		case outsideMessage:
			if r, ok := markerStartRole(trimmed); ok {
				role, body, state = r, body[:0], afterStart
			}
		case afterStart, inBody:
			if isMarkerEnd(trimmed) {
				out = append(out, rawMessage{role: role, body: strings.TrimSpace(strings.Join(body, "\n"))})
				state = outsideMessage
				body = nil
				continue
			}
			if state == afterStart {
				if trimmed == "" {
					body = append(body, line)
					continue
				}
				state = inBody
				if headingRole(line) != "" {
					continue
				}
			}
			body = append(body, line)
		}
	}
	return out
}

// scanHeadings splits on "### role" lines that sit outside code fences.
func scanHeadings(lines []string) []rawMessage {
	var (
		out     []rawMessage
		current *rawMessage
		body    []string
		inFence bool
	)
	flush := func() {
		if current != nil {
			current.body = strings.TrimSpace(strings.Join(body, "\n"))
			out = append(out, *current)
		}
		body = nil
	}
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			inFence = !inFence
		} else if !inFence {
			if role := headingRole(line); role != "" {
				flush()
				current = &rawMessage{role: role}
				continue
			}
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()
	return out
}

// segmentBody splits a message body on triple-backtick fences. Even spans
// are prose, odd spans are code whose first line is the language tag.
func segmentBody(body string) []Segment {
	parts := strings.Split(body, fence)
	segs := make([]Segment, 0, len(parts))
	for i, part := range parts {
		if i%2 == 0 {
			if text := cleanProse(part); text != "" {
				segs = append(segs, Segment{Kind: KindText, Content: text})
			}
			continue
		}
		lang, code := part, ""
		if nl := strings.IndexByte(part, '\n'); nl >= 0 {
			lang, code = part[:nl], part[nl+1:]
		}
		lang = strings.TrimSpace(lang)
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		segs = append(segs, Segment{
			Kind:     KindCode,
			Language: lang,
			Content:  code,
			Tool:     IsToolInvocation(lang, code),
		})
	}
	return segs
}
