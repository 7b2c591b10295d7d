package ui

import (
	"os"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// TestMain points the state directory at a scratch dir so no test can touch
// the user's real annotations, and renders without color so views can be
// matched as plain text.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "archive-deck-ui-test")
	if err != nil {
		panic(err)
	}
	os.Setenv("ARCHIVE_DECK_DIR", dir)
	lipgloss.SetColorProfile(termenv.Ascii)

	code := m.Run()

	os.RemoveAll(dir)
	os.Exit(code)
}
