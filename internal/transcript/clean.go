package transcript

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ToolLanguage is the fence language the exporter writes for code blocks
// whose real language was not recorded; tool-call payloads arrive that way.
const ToolLanguage = "unknown"

// resourceMarker appears in lines pointing at uploaded assets that are not
// part of the export.
const resourceMarker = "sediment://"

// toolKeys are the payload fields that identify a tool or function call.
var toolKeys = []string{
	"search_query",
	"response_length",
	"path",
	"args",
	"tool_calls",
	"tool",
	"function",
	"call",
}

// citationRe matches inline citation markers: the private-use bracketed
// form (U+E200 … U+E201), the older 【n†source】 form, and stray
// private-use delimiters left behind by truncated markers.
var citationRe = regexp.MustCompile(`\x{E200}[^\x{E201}]*\x{E201}|【[^】]*†[^】]*】|[\x{E200}-\x{E206}]`)

// cleanProse removes export noise from a prose span line by line and
// returns the remaining lines joined by newlines.
func cleanProse(span string) string {
	lines := strings.Split(span, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if cleaned := cleanLine(line); cleaned != "" {
			kept = append(kept, cleaned)
		}
	}
	return strings.Join(kept, "\n")
}

func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		// Export metadata; only voice transcriptions carry readable text.
		text, _ := transcriptionText(trimmed)
		return text
	}
	if strings.Contains(trimmed, resourceMarker) {
		return ""
	}
	return strings.TrimSpace(citationRe.ReplaceAllString(trimmed, ""))
}

// transcriptionText unwraps a voice-transcription JSON line:
// {"content_type": "audio_transcription", "text": "..."}.
func transcriptionText(trimmed string) (string, bool) {
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return "", false
	}
	var obj struct {
		ContentType string `json:"content_type"`
		Text        any    `json:"text"`
	}
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return "", false
	}
	text, ok := obj.Text.(string)
	if !ok || !strings.Contains(obj.ContentType, "transcription") {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// IsToolInvocation reports whether a code block is an internal tool call:
// fenced with the ToolLanguage tag and holding a JSON object with at least
// one recognized call field.
func IsToolInvocation(language, content string) bool {
	if !strings.EqualFold(strings.TrimSpace(language), ToolLanguage) {
		return false
	}
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return false
	}
	for _, k := range toolKeys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}
