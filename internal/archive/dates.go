package archive

import (
	"strings"
	"time"
)

// UnknownTimestamp is the sentinel the export pipeline writes when a
// conversation carries no usable time.
const UnknownTimestamp = "unknown"

// TimestampLayout is the layout written into index.json and transcript
// role labels.
const TimestampLayout = "2006-01-02 15:04:05Z"

var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats found in exported archives.
// Empty strings and the "unknown" sentinel report ok=false.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, UnknownTimestamp) {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
