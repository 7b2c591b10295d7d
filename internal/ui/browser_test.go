package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/archive-deck/internal/annotations"
	"github.com/asheshgoplani/archive-deck/internal/clipboard"
	"github.com/asheshgoplani/archive-deck/internal/fetch"
	"github.com/asheshgoplani/archive-deck/internal/filter"
	"github.com/asheshgoplani/archive-deck/internal/session"
)

const browserIndex = `{
  "generated_utc": "2024-06-01 12:00:00Z",
  "total": 3,
  "items": [
    {"index": 1, "title": "Kubernetes networking", "created_utc": "2024-03-01 10:00:00Z", "updated_utc": "2024-03-02 10:00:00Z",
     "messages": 12, "file": "data/conversations/0001_k8s.md", "snippet": "pods", "keywords": ["kubernetes", "cni"],
     "cluster_label": "infra", "highlights": []},
    {"index": 2, "title": "Helm charts", "created_utc": "2024-04-01 10:00:00Z", "updated_utc": "unknown",
     "messages": 30, "file": "data/conversations/0002_helm.md", "snippet": "values", "keywords": ["kubernetes", "helm"],
     "cluster_label": "infra", "highlights": []},
    {"index": 3, "title": "Bread", "created_utc": "unknown", "updated_utc": "unknown",
     "messages": 4, "file": "data/conversations/0003_bread.md", "snippet": "flour", "keywords": ["baking"],
     "cluster_label": null, "highlights": []}
  ]
}`

const browserTranscript = "# Kubernetes networking\n\n---\n\n" +
	"<!-- MSG role: user -->\nWhy can't my pods talk?\n<!-- /MSG -->\n" +
	"<!-- MSG role: assistant -->\nCheck the CNI.\n<!-- /MSG -->\n"

func newTestBrowser(t *testing.T) (*Browser, annotations.Store) {
	t.Helper()
	return newTestBrowserAt(t, t.TempDir())
}

func newTestBrowserAt(t *testing.T, dir string) (*Browser, annotations.Store) {
	t.Helper()
	files := map[string]string{
		"index.json":                browserIndex,
		"search_index.json":         `[]`,
		"conversations/0001_k8s.md": browserTranscript,
	}
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}

	store := annotations.NewMemoryStore()
	sess, err := session.New(context.Background(), session.Options{
		Fetcher:  fetch.NewDirFetcher(dir),
		Store:    store,
		FileRoot: "data",
	})
	require.NoError(t, err)

	b := NewBrowser(context.Background(), Options{Session: sess})
	t.Cleanup(b.Close)
	b.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	b.Update(filterMsg{})
	return b, store
}

func press(b *Browser, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd = b.Update(msg)
	}
	return cmd
}

func titles(b *Browser) []string {
	out := make([]string, len(b.items))
	for i, it := range b.items {
		out[i] = it.Title
	}
	return out
}

func TestBrowserInitialList(t *testing.T) {
	b, _ := newTestBrowser(t)

	assert.Equal(t, []string{"Helm charts", "Kubernetes networking", "Bread"}, titles(b))
	assert.Equal(t, filter.SortMessages, b.sess.Query().Sort, "an unset sort starts at messages")
	view := b.View()
	assert.Contains(t, view, "Helm charts")
	assert.Contains(t, view, "Bread")
}

func TestBrowserSortCycle(t *testing.T) {
	b, _ := newTestBrowser(t)

	press(b, "s")
	assert.Equal(t, filter.SortCreated, b.sess.Query().Sort)
	assert.Equal(t, []string{"Kubernetes networking", "Helm charts", "Bread"}, titles(b))

	press(b, "s", "s")
	assert.Equal(t, filter.SortMessages, b.sess.Query().Sort)
}

func TestBrowserStarAndStarredFilter(t *testing.T) {
	b, store := newTestBrowser(t)

	press(b, "*")
	assert.True(t, store.Starred("data/conversations/0002_helm.md"))
	assert.Equal(t, "starred", b.status)

	press(b, "f")
	assert.Equal(t, []string{"Helm charts"}, titles(b))
	assert.Contains(t, b.View(), "★")

	press(b, "*")
	assert.Empty(t, b.items, "unstarring under the starred filter drops the row")

	press(b, "x")
	assert.Len(t, b.items, 3)
	assert.False(t, b.sess.Query().StarredOnly)
}

func TestBrowserSelectionSurvivesRefilter(t *testing.T) {
	b, _ := newTestBrowser(t)

	press(b, "j")
	require.Equal(t, "Kubernetes networking", b.selected().Title)
	press(b, "s")
	assert.Equal(t, "Kubernetes networking", b.selected().Title)
	assert.Equal(t, 0, b.cursor)
}

func TestBrowserSearchIsDebounced(t *testing.T) {
	b, _ := newTestBrowser(t)

	press(b, "/")
	require.True(t, b.search.Focused())
	press(b, "h", "e", "l", "m")
	assert.Equal(t, "helm", b.sess.Query().Text)
	assert.Len(t, b.items, 3, "results change only after the debounced pass")

	b.Update(filterMsg{})
	assert.Equal(t, []string{"Helm charts"}, titles(b))

	press(b, "esc")
	assert.False(t, b.search.Focused())
	assert.Equal(t, "", b.sess.Query().Text)
}

func TestBrowserKeywordAndMinMessages(t *testing.T) {
	b, _ := newTestBrowser(t)

	press(b, "K")
	assert.Equal(t, "kubernetes", b.sess.Query().Keyword)
	assert.Equal(t, []string{"Helm charts", "Kubernetes networking"}, titles(b))
	press(b, "K")
	assert.Equal(t, "", b.sess.Query().Keyword)

	press(b, "m", "m")
	assert.Equal(t, 10, b.sess.Query().MinMessages)
	assert.Equal(t, []string{"Helm charts", "Kubernetes networking"}, titles(b))
}

func TestBrowserOpenShowsTranscript(t *testing.T) {
	b, _ := newTestBrowser(t)

	press(b, "j")
	cmd := press(b, "enter")
	require.NotNil(t, cmd)
	assert.Equal(t, "data/conversations/0001_k8s.md", b.detail.File())

	msg := cmd()
	tm, ok := msg.(transcriptMsg)
	require.True(t, ok)
	assert.Len(t, tm.messages, 2)
	require.NotEmpty(t, tm.similar)
	assert.Equal(t, "Helm charts", tm.similar[0].Item.Title)

	b.Update(msg)
	assert.Contains(t, b.View(), "Check the CNI.")
}

func TestBrowserNoteEditing(t *testing.T) {
	b, store := newTestBrowser(t)

	press(b, "n")
	require.True(t, b.editingNote)
	press(b, "w", "o", "w")
	press(b, "enter")
	assert.False(t, b.editingNote)
	assert.Equal(t, "wow", store.Get("data/conversations/0002_helm.md").Note)

	press(b, "n", "z", "esc")
	assert.Equal(t, "wow", store.Get("data/conversations/0002_helm.md").Note)
}

func TestBrowserHelpOverlay(t *testing.T) {
	b, _ := newTestBrowser(t)

	press(b, "?")
	assert.True(t, b.help.IsVisible())
	assert.Contains(t, b.View(), "archive-deck keys")

	press(b, "s")
	assert.False(t, b.help.IsVisible())
	assert.Equal(t, filter.SortMessages, b.sess.Query().Sort, "the dismissing key is swallowed")
}

func TestBrowserNarrowLayoutSwitchesPanes(t *testing.T) {
	b, _ := newTestBrowser(t)
	b.Update(tea.WindowSizeMsg{Width: 80, Height: 30})

	press(b, "enter")
	assert.Equal(t, paneDetail, b.focus)
	assert.NotContains(t, b.View(), "Bread")

	press(b, "esc")
	assert.Equal(t, paneList, b.focus)
	assert.Contains(t, b.View(), "Bread")
}

func TestBrowserCopyTranscript(t *testing.T) {
	b, _ := newTestBrowser(t)
	var copied string
	b.copyFn = func(text string) (*clipboard.CopyResult, error) {
		copied = text
		return &clipboard.CopyResult{Method: "test", ByteSize: len(text), LineCount: 7}, nil
	}

	assert.Nil(t, press(b, "y"), "nothing open yet")
	assert.Equal(t, "open a conversation to copy it", b.status)

	press(b, "j")
	b.Update(press(b, "enter")())
	cmd := press(b, "y")
	require.NotNil(t, cmd)
	b.Update(cmd())
	assert.Equal(t, "### user\n\nWhy can't my pods talk?\n\n### assistant\n\nCheck the CNI.", copied)
	assert.Contains(t, b.status, "copied 7 lines")

	b.copyFn = func(string) (*clipboard.CopyResult, error) { return nil, errors.New("no clipboard") }
	b.Update(press(b, "y")())
	assert.Contains(t, b.View(), "no clipboard")
}

func TestBrowserReloadPicksUpNewIndex(t *testing.T) {
	dir := t.TempDir()
	b, _ := newTestBrowserAt(t, dir)
	require.Len(t, b.items, 3)

	reduced := `{"generated_utc": "2024-07-01 12:00:00Z", "total": 1, "items": [
	  {"index": 3, "title": "Bread", "created_utc": "unknown", "updated_utc": "unknown",
	   "messages": 4, "file": "data/conversations/0003_bread.md", "snippet": "flour", "keywords": ["baking"]}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte(reduced), 0o644))

	press(b, "R")
	assert.Equal(t, []string{"Bread"}, titles(b))
	assert.Equal(t, "archive reloaded", b.status)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte("{"), 0o644))
	b.Update(archiveChangedMsg{})
	assert.Equal(t, []string{"Bread"}, titles(b), "a failed reload keeps the previous corpus")
	require.Error(t, b.err)
}

func TestNextStep(t *testing.T) {
	assert.Equal(t, 5, nextStep(0))
	assert.Equal(t, 0, nextStep(50))
	assert.Equal(t, 0, nextStep(7))
}
