package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const markerTranscript = `# Planning a trip

- id: abc
- created_utc: 2025-01-05 09:00:00Z
- messages: 2

---

<!-- MSG role: user -->
### user

  Where should I go in spring?

<!-- /MSG -->

<!-- MSG role: assistant -->
### assistant

Kyoto is lovely in April.

<!-- /MSG -->
`

func TestParseMarkerForm(t *testing.T) {
	msgs := Parse(markerTranscript)
	require.Len(t, msgs, 2)

	assert.Equal(t, "user", msgs[0].Role)
	require.Len(t, msgs[0].Segments, 1)
	assert.Equal(t, Segment{Kind: KindText, Content: "Where should I go in spring?"}, msgs[0].Segments[0])

	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "Kyoto is lovely in April.", msgs[1].Segments[0].Content)
}

func TestParseMarkerSkipsHeadingAfterBlankLines(t *testing.T) {
	msgs := Parse("<!-- MSG role: user -->\n\n### user\n\nhello\n<!-- /MSG -->")
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Segments, 1)
	assert.Equal(t, "hello", msgs[0].Segments[0].Content)

	msgs = Parse("<!-- MSG role: user -->\n\nhello\n### assistant\n<!-- /MSG -->")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello\n### assistant", msgs[0].Segments[0].Content, "only the leading heading is dropped")
}

func TestParseIsIdempotent(t *testing.T) {
	first := Parse(markerTranscript)
	second := Parse(markerTranscript)
	assert.Equal(t, first, second)
}

func TestParseCRLF(t *testing.T) {
	msgs := Parse(strings.ReplaceAll(markerTranscript, "\n", "\r\n"))
	require.Len(t, msgs, 2)
	assert.Equal(t, "Kyoto is lovely in April.", msgs[1].Segments[0].Content)
}

func TestParseHeadingFallback(t *testing.T) {
	raw := "title\n---\n### user (2025-01-05 09:00:00Z)\n\nhello\n\n### assistant\n\nfirst line\n\n```go\n### not a heading\nfmt.Println()\n```\n"
	msgs := Parse(raw)
	require.Len(t, msgs, 2)

	assert.Equal(t, "user (2025-01-05 09:00:00Z)", msgs[0].Role)
	assert.Equal(t, "user", msgs[0].RoleClass())
	ts, ok := msgs[0].Timestamp()
	require.True(t, ok)
	assert.Equal(t, 2025, ts.Year())

	require.Len(t, msgs[1].Segments, 2)
	assert.Equal(t, KindText, msgs[1].Segments[0].Kind)
	assert.Equal(t, Segment{Kind: KindCode, Language: "go", Content: "### not a heading\nfmt.Println()"}, msgs[1].Segments[1])
}

func TestParseUnclosedMarkerFallsBackToHeadings(t *testing.T) {
	raw := "<!-- MSG role: user -->\n### user\n\nhi there\n"
	msgs := Parse(raw)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "hi there", msgs[0].Segments[0].Content)
}

func TestParseNoMessages(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("just some notes\nwithout any structure"))
	assert.Empty(t, Parse("---"))
	assert.NotNil(t, Parse("plain"))
}

func TestDetectEncoding(t *testing.T) {
	assert.Equal(t, EncodingMarker, DetectEncoding(strings.Split(markerTranscript, "\n")))
	assert.Equal(t, EncodingHeading, DetectEncoding([]string{"### user", "hi"}))
	assert.Equal(t, EncodingNone, DetectEncoding([]string{"```", "### inside fence", "```"}))
	assert.Equal(t, "marker", EncodingMarker.String())
}

func TestCodeSegments(t *testing.T) {
	raw := "<!-- MSG role: assistant -->\nBefore\n```python\nprint(1)\n```\nmiddle\n```\n   \n```\n```\nno language\n```\n<!-- /MSG -->"
	msgs := Parse(raw)
	require.Len(t, msgs, 1)
	segs := msgs[0].Segments
	require.Len(t, segs, 4)
	assert.Equal(t, Segment{Kind: KindText, Content: "Before"}, segs[0])
	assert.Equal(t, Segment{Kind: KindCode, Language: "python", Content: "print(1)"}, segs[1])
	assert.Equal(t, Segment{Kind: KindText, Content: "middle"}, segs[2])
	assert.Equal(t, Segment{Kind: KindCode, Language: "", Content: "no language"}, segs[3])
}

func TestToolCallSuppression(t *testing.T) {
	raw := "<!-- MSG role: assistant -->\n```unknown\n{\"tool_calls\": []}\n```\n<!-- /MSG -->\n" +
		"<!-- MSG role: tool -->\nResult text\n```Unknown\n{\"search_query\": [{\"q\": \"x\"}]}\n```\n<!-- /MSG -->\n"

	all := ParseAll(raw)
	require.Len(t, all, 2)
	require.Len(t, all[0].Segments, 1)
	assert.True(t, all[0].Segments[0].Tool)

	msgs := Parse(raw)
	require.Len(t, msgs, 1, "message holding only a tool call is omitted")
	assert.Equal(t, "tool", msgs[0].Role)
	require.Len(t, msgs[0].Segments, 1)
	assert.Equal(t, "Result text", msgs[0].Segments[0].Content)
}

func TestIsToolInvocation(t *testing.T) {
	tests := []struct {
		name    string
		lang    string
		content string
		want    bool
	}{
		{"tool calls", "unknown", `{"tool_calls": []}`, true},
		{"case insensitive tag", "UNKNOWN", `{"function": "f"}`, true},
		{"other language", "json", `{"tool_calls": []}`, false},
		{"no tag", "", `{"tool_calls": []}`, false},
		{"unrecognized keys", "unknown", `{"answer": 42}`, false},
		{"array payload", "unknown", `[{"tool": 1}]`, false},
		{"malformed", "unknown", `{"tool": `, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsToolInvocation(tt.lang, tt.content))
		})
	}
}

func TestProseCleaning(t *testing.T) {
	body := strings.Join([]string{
		"",
		`{"content_type": "audio_transcription", "text": " spoken words "}`,
		`{"content_type": "audio_transcription", "text":`,
		"[image] (640x480) sediment://file_abc",
		"Rates rose\ue200cite\ue202turn0search1\ue201 last year.",
		"Source【4†source】 noted",
		"\ue200cite\ue202turn0news2\ue201",
		"   ",
		`{"note": "export metadata"}`,
		`{"content_type": "audio_transcription", "text": ""}`,
		`{not json at all}`,
		"Plain {braces} stay",
	}, "\n")
	got := cleanProse(body)
	assert.Equal(t, strings.Join([]string{
		"spoken words",
		`{"content_type": "audio_transcription", "text":`,
		"Rates rose last year.",
		"Source noted",
		"Plain {braces} stay",
	}, "\n"), got)
}

func TestRoleClass(t *testing.T) {
	assert.Equal(t, "tool", Message{Role: "tool:browser (2025-01-01 10:00:00Z)"}.RoleClass())
	assert.Equal(t, "assistant", Message{Role: "Assistant"}.RoleClass())
	assert.Equal(t, "", Message{Role: ""}.RoleClass())
	_, ok := Message{Role: "user"}.Timestamp()
	assert.False(t, ok)
}

func TestPlainText(t *testing.T) {
	m := Message{Role: "assistant", Segments: []Segment{
		{Kind: KindText, Content: "See:"},
		{Kind: KindCode, Language: "sh", Content: "ls"},
		{Kind: KindCode, Language: "unknown", Content: `{"tool":1}`, Tool: true},
	}}
	assert.Equal(t, "See:\n\n```sh\nls\n```", m.PlainText())
}

func TestMarkdownReparses(t *testing.T) {
	msgs := Parse(markerTranscript)
	md := Markdown(msgs)
	assert.True(t, strings.HasPrefix(md, "### user\n\nWhere should I go"))
	assert.Equal(t, msgs, Parse(md))

	assert.Empty(t, Markdown([]Message{{Role: "tool", Segments: []Segment{{Kind: KindCode, Tool: true, Content: "{}"}}}}))
}

func FuzzParse(f *testing.F) {
	f.Add(markerTranscript)
	f.Add("### a\n```unknown\n{\"call\":1}\n```")
	f.Add("<!-- MSG role: -->\n<!-- /MSG -->")
	f.Fuzz(func(t *testing.T, raw string) {
		_ = Parse(raw)
	})
}
