// Package ui is the interactive terminal browser for an archive.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/asheshgoplani/archive-deck/internal/annotations"
	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/clipboard"
	"github.com/asheshgoplani/archive-deck/internal/filter"
	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/session"
	"github.com/asheshgoplani/archive-deck/internal/similarity"
	"github.com/asheshgoplani/archive-deck/internal/statedb"
	"github.com/asheshgoplani/archive-deck/internal/transcript"
)

var uiLog = logging.ForComponent(logging.CompUI)

// minMessageSteps is the cycle of the "m" key.
var minMessageSteps = []int{0, 5, 10, 25, 50}

// splitWidth is the terminal width from which list and detail are shown
// side by side.
const splitWidth = 100

// Options configure a Browser. Session is required.
type Options struct {
	Session *session.Session

	// DB enables picking up annotation changes made by other processes.
	DB *statedb.StateDB

	// ArchiveChanges delivers a value whenever the archive on disk changed.
	ArchiveChanges <-chan struct{}

	// Debounce is the quiet period before typed text is applied.
	Debounce time.Duration

	// FollowSystemTheme switches palette when the OS dark mode changes.
	FollowSystemTheme bool

	// Notice is shown in the status line until the first key press.
	Notice string

	// Copy puts text on the clipboard; clipboard.Copy when nil.
	Copy func(text string) (*clipboard.CopyResult, error)
}

type pane int

const (
	paneList pane = iota
	paneDetail
)

// Messages
type (
	filterMsg             struct{}
	indexReadyMsg         struct{}
	archiveChangedMsg     struct{}
	annotationsChangedMsg struct{}
	themeChangedMsg       struct{ dark bool }
	transcriptMsg         struct {
		file     string
		messages []transcript.Message
		similar  []similarity.Match
	}
	copiedMsg struct {
		res *clipboard.CopyResult
		err error
	}
)

// Browser is the bubbletea model of the archive browser.
type Browser struct {
	ctx    context.Context
	cancel context.CancelFunc

	sess         *session.Session
	annWatcher   *AnnotationWatcher
	themeWatcher *ThemeWatcher
	archiveCh    <-chan struct{}
	debouncer    *filter.Debouncer
	copyFn       func(string) (*clipboard.CopyResult, error)
	filterCh     chan struct{}
	indexCh      chan struct{}

	search    *SearchBar
	noteInput textinput.Model
	help      HelpOverlay
	detail    Detail

	width, height int
	items         []*archive.Item
	partial       bool
	cursor        int
	offset        int
	focus         pane
	editingNote   bool
	status        string
	err           error
}

// NewBrowser builds the model. Call Close when the program exits.
func NewBrowser(ctx context.Context, opts Options) *Browser {
	ctx, cancel := context.WithCancel(ctx)
	b := &Browser{
		ctx:       ctx,
		cancel:    cancel,
		sess:      opts.Session,
		archiveCh: opts.ArchiveChanges,
		debouncer: filter.NewDebouncer(opts.Debounce),
		copyFn:    opts.Copy,
		status:    opts.Notice,
		filterCh:  make(chan struct{}, 1),
		indexCh:   make(chan struct{}, 1),
		search:    NewSearchBar(),
		width:     80,
		height:    24,
	}
	if b.copyFn == nil {
		b.copyFn = clipboard.Copy
	}
	q := b.sess.Query()
	if q.Sort == "" {
		q.Sort = filter.SortMessages
		b.sess.SetQuery(q)
	}
	b.search.SetValue(q.Text)

	ni := textinput.New()
	ni.Placeholder = "Note for this conversation (empty to remove)"
	ni.Prompt = "✎ "
	ni.CharLimit = 2000
	b.noteInput = ni

	b.sess.SetIndexReadyHook(func() { signal(b.indexCh) })
	if opts.DB != nil {
		b.annWatcher = NewAnnotationWatcher(opts.DB)
		b.annWatcher.Start()
	}
	if opts.FollowSystemTheme {
		b.themeWatcher = NewThemeWatcher(ctx)
	}
	return b
}

// Close stops the background watchers.
func (b *Browser) Close() {
	b.debouncer.Stop()
	b.sess.SetIndexReadyHook(nil)
	if b.annWatcher != nil {
		b.annWatcher.Close()
	}
	if b.themeWatcher != nil {
		b.themeWatcher.Close()
	}
	b.cancel()
}

// Run starts the browser on the terminal and blocks until it quits.
func Run(ctx context.Context, opts Options) error {
	b := NewBrowser(ctx, opts)
	defer b.Close()
	_, err := tea.NewProgram(b, tea.WithAltScreen()).Run()
	return err
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func waitFor(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		<-ch
		return msg
	}
}

func (b *Browser) waitTheme() tea.Cmd {
	if b.themeWatcher == nil {
		return nil
	}
	return func() tea.Msg {
		return themeChangedMsg{dark: <-b.themeWatcher.ChangeChannel()}
	}
}

func (b *Browser) waitAnnotations() tea.Cmd {
	if b.annWatcher == nil {
		return nil
	}
	return waitFor(b.annWatcher.ReloadChannel(), annotationsChangedMsg{})
}

// Init initializes the model
func (b *Browser) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return filterMsg{} },
		waitFor(b.filterCh, filterMsg{}),
		waitFor(b.indexCh, indexReadyMsg{}),
		waitFor(b.archiveCh, archiveChangedMsg{}),
		b.waitAnnotations(),
		b.waitTheme(),
	)
}

// Update handles messages.
func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
		b.search.SetWidth(b.width)
		b.noteInput.Width = b.width - 6
		b.detail.invalidate()
		return b, nil

	case filterMsg:
		b.applyFilter()
		return b, waitFor(b.filterCh, filterMsg{})

	case indexReadyMsg:
		b.applyFilter()
		return b, waitFor(b.indexCh, indexReadyMsg{})

	case archiveChangedMsg:
		return b, tea.Batch(b.reload(), waitFor(b.archiveCh, archiveChangedMsg{}))

	case annotationsChangedMsg:
		if r, ok := b.sess.Store().(interface{ Reload() error }); ok {
			if err := r.Reload(); err != nil {
				uiLog.Warn("annotations_reload_failed", slog.String("error", err.Error()))
			}
		}
		b.refreshAnnotation()
		b.applyFilter()
		return b, b.waitAnnotations()

	case themeChangedMsg:
		if msg.dark {
			InitTheme("dark")
		} else {
			InitTheme("light")
		}
		b.detail.invalidate()
		return b, b.waitTheme()

	case transcriptMsg:
		b.detail.SetTranscript(msg.file, msg.messages, msg.similar)
		return b, nil

	case copiedMsg:
		if msg.err != nil {
			b.err = msg.err
			return b, nil
		}
		b.status = fmt.Sprintf("copied %d lines (%s) via %s",
			msg.res.LineCount, humanize.Bytes(uint64(msg.res.ByteSize)), msg.res.Method)
		return b, nil

	case tea.KeyMsg:
		return b.handleKey(msg)
	}
	return b, nil
}

func (b *Browser) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return b, tea.Quit
	}

	if b.editingNote {
		switch key {
		case "enter":
			b.saveNote(b.noteInput.Value())
			b.editingNote = false
			b.noteInput.Blur()
			return b, nil
		case "esc":
			b.editingNote = false
			b.noteInput.Blur()
			return b, nil
		}
		var cmd tea.Cmd
		b.noteInput, cmd = b.noteInput.Update(msg)
		return b, cmd
	}

	if b.help.IsVisible() {
		b.help.Hide()
		return b, nil
	}

	if b.search.Focused() {
		switch key {
		case "esc":
			if b.search.Value() != "" {
				b.search.SetValue("")
				b.setText("")
			}
			b.search.Blur()
			return b, nil
		case "enter", "down", "tab":
			b.search.Blur()
			return b, nil
		}
		changed, cmd := b.search.Update(msg)
		if changed {
			b.setText(b.search.Value())
		}
		return b, cmd
	}

	b.err = nil
	b.status = ""
	page := max(b.bodyHeight()-2, 1)

	switch key {
	case "q":
		return b, tea.Quit
	case "?":
		b.help.Toggle()
	case "/":
		b.focus = paneList
		return b, b.search.Focus()
	case "tab":
		if b.focus == paneList && b.detail.File() != "" {
			b.focus = paneDetail
		} else {
			b.focus = paneList
		}
	case "esc":
		if b.focus == paneDetail {
			b.focus = paneList
		}
	case "up", "k":
		b.move(-1, page)
	case "down", "j":
		b.move(1, page)
	case "pgup":
		b.move(-page, page)
	case "pgdown":
		b.move(page, page)
	case "g", "home":
		b.move(-len(b.items)-b.detailLines(), page)
	case "G", "end":
		b.move(len(b.items)+b.detailLines(), page)
	case "enter":
		if it := b.selected(); it != nil {
			if b.width < splitWidth {
				b.focus = paneDetail
			}
			return b, b.open(it)
		}
	case "*":
		b.toggleStar()
	case "n":
		if file := b.currentFile(); file != "" {
			b.editingNote = true
			b.noteInput.SetValue(b.sess.Store().Get(file).Note)
			b.noteInput.CursorEnd()
			return b, b.noteInput.Focus()
		}
	case "t":
		b.detail.ToggleTools()
	case "y":
		return b, b.copyTranscript()
	case "R":
		return b, b.reload()
	case "f":
		b.updateQuery(func(q *filter.Query) { q.StarredOnly = !q.StarredOnly })
	case "s":
		b.updateQuery(func(q *filter.Query) { q.Sort = q.Sort.Next() })
	case "m":
		b.updateQuery(func(q *filter.Query) { q.MinMessages = nextStep(q.MinMessages) })
	case "K":
		b.updateQuery(func(q *filter.Query) {
			if q.Keyword != "" {
				q.Keyword = ""
			} else if it := b.selected(); it != nil && len(it.Keywords) > 0 {
				q.Keyword = it.Keywords[0]
			}
		})
	case "c":
		b.updateQuery(func(q *filter.Query) {
			if q.Cluster != "" {
				q.Cluster = ""
			} else if it := b.selected(); it != nil {
				q.Cluster = it.Cluster()
			}
		})
	case "x":
		b.search.SetValue("")
		b.updateQuery(func(q *filter.Query) { *q = filter.Query{Sort: q.Sort} })
	case "1", "2", "3", "4", "5":
		return b, b.openSimilar(int(key[0] - '1'))
	}
	return b, nil
}

func nextStep(current int) int {
	for i, v := range minMessageSteps {
		if v == current {
			return minMessageSteps[(i+1)%len(minMessageSteps)]
		}
	}
	return minMessageSteps[0]
}

// setText updates the free-text part of the query and schedules a
// debounced pass.
func (b *Browser) setText(text string) {
	q := b.sess.Query()
	q.Text = text
	b.sess.SetQuery(q)
	b.debouncer.Trigger(func() { signal(b.filterCh) })
}

func (b *Browser) updateQuery(fn func(q *filter.Query)) {
	q := b.sess.Query()
	fn(&q)
	b.sess.SetQuery(q)
	b.applyFilter()
}

// applyFilter re-runs the pipeline, keeping the selection on the same
// conversation when it is still listed.
func (b *Browser) applyFilter() {
	var keep string
	if it := b.selected(); it != nil {
		keep = it.File
	}
	res := b.sess.Apply(b.ctx)
	b.items = res.Items
	b.partial = res.Partial

	b.cursor = 0
	for i, it := range b.items {
		if it.File == keep {
			b.cursor = i
			break
		}
	}
	b.clampOffset(b.listHeight())
}

func (b *Browser) selected() *archive.Item {
	if b.cursor < 0 || b.cursor >= len(b.items) {
		return nil
	}
	return b.items[b.cursor]
}

// currentFile is the conversation the key applies to: the detail pane's
// when it has focus, the list selection otherwise.
func (b *Browser) currentFile() string {
	if b.focus == paneDetail && b.detail.File() != "" {
		return b.detail.File()
	}
	if it := b.selected(); it != nil {
		return it.File
	}
	return ""
}

func (b *Browser) detailLines() int { return len(b.detail.lines) }

func (b *Browser) move(delta, page int) {
	if b.focus == paneDetail {
		b.detail.Scroll(delta, b.bodyHeight()-2)
		return
	}
	if len(b.items) == 0 {
		return
	}
	b.cursor += delta
	if b.cursor < 0 {
		b.cursor = 0
	}
	if b.cursor >= len(b.items) {
		b.cursor = len(b.items) - 1
	}
	b.clampOffset(b.listHeight())
}

func (b *Browser) clampOffset(h int) {
	if h <= 0 {
		return
	}
	if b.cursor < b.offset {
		b.offset = b.cursor
	}
	if b.cursor >= b.offset+h {
		b.offset = b.cursor - h + 1
	}
	if b.offset > max(len(b.items)-h, 0) {
		b.offset = max(len(b.items)-h, 0)
	}
}

func (b *Browser) open(it *archive.Item) tea.Cmd {
	b.detail.Show(it, b.sess.Store().Get(it.File))
	sess, ctx, file := b.sess, b.ctx, it.File
	return func() tea.Msg {
		msgs := sess.OpenAll(ctx, file)
		similar, _ := sess.Similar(file)
		return transcriptMsg{file: file, messages: msgs, similar: similar}
	}
}

// reload re-reads the archive and reopens the conversation in the detail
// pane, if it survived.
func (b *Browser) reload() tea.Cmd {
	if err := b.sess.Reload(b.ctx); err != nil {
		b.err = fmt.Errorf("reload failed: %w", err)
		return nil
	}
	b.status = "archive reloaded"
	b.applyFilter()
	if it, ok := b.sess.Item(b.detail.File()); ok {
		return b.open(it)
	}
	return nil
}

// copyTranscript copies the open conversation as markdown.
func (b *Browser) copyTranscript() tea.Cmd {
	msgs := b.detail.Messages()
	if len(msgs) == 0 {
		b.status = "open a conversation to copy it"
		return nil
	}
	text, copyFn := transcript.Markdown(msgs), b.copyFn
	return func() tea.Msg {
		res, err := copyFn(text)
		return copiedMsg{res: res, err: err}
	}
}

func (b *Browser) openSimilar(i int) tea.Cmd {
	sim := b.detail.Similar()
	if i < 0 || i >= len(sim) {
		return nil
	}
	target := sim[i].Item
	for idx, it := range b.items {
		if it.File == target.File {
			b.cursor = idx
			b.clampOffset(b.listHeight())
			break
		}
	}
	return b.open(target)
}

func (b *Browser) toggleStar() {
	file := b.currentFile()
	if file == "" {
		return
	}
	if b.annWatcher != nil {
		b.annWatcher.NotifySave()
	}
	starred, err := b.sess.ToggleStar(file)
	if err != nil {
		b.err = err
		return
	}
	if starred {
		b.status = "starred"
	} else {
		b.status = "unstarred"
	}
	b.refreshAnnotation()
	if b.sess.Query().StarredOnly {
		b.applyFilter()
	}
}

func (b *Browser) saveNote(note string) {
	file := b.currentFile()
	if file == "" {
		return
	}
	if b.annWatcher != nil {
		b.annWatcher.NotifySave()
	}
	if err := b.sess.SetNote(file, note); err != nil {
		b.err = err
		return
	}
	b.status = "note saved"
	b.refreshAnnotation()
}

func (b *Browser) refreshAnnotation() {
	if file := b.detail.File(); file != "" {
		b.detail.SetAnnotation(b.sess.Store().Get(file))
	}
}

// --- View ---

const headerHeight = 4 // search box (3) + facet line

func (b *Browser) bodyHeight() int {
	return max(b.height-headerHeight-1, 3)
}

func (b *Browser) listHeight() int {
	return b.bodyHeight() - 2
}

func (b *Browser) listWidth() int {
	if b.width >= splitWidth {
		return b.width * 2 / 5
	}
	return b.width
}

// View renders the model.
func (b *Browser) View() string {
	if b.help.IsVisible() {
		return b.help.View(b.width, b.height)
	}

	loader := b.sess.Loader()
	header := b.search.View(b.sess.Query(), len(b.items), b.sess.Corpus().Len(), b.partial && loader.Loading())

	bodyH := b.bodyHeight()
	var body string
	switch {
	case b.width >= splitWidth:
		lw := b.listWidth()
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			b.renderList(lw, bodyH),
			b.renderDetail(b.width-lw, bodyH))
	case b.focus == paneDetail:
		body = b.renderDetail(b.width, bodyH)
	default:
		body = b.renderList(b.width, bodyH)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, b.renderMenu())
}

func (b *Browser) renderList(width, height int) string {
	style := PanelStyle
	if b.focus == paneList {
		style = PanelActiveStyle
	}
	inner := max(width-4, 10)
	h := height - 2

	var rows []string
	if len(b.items) == 0 {
		rows = append(rows, DimStyle.Render("No conversations match."))
	}
	store := b.sess.Store()
	for i := b.offset; i < len(b.items) && len(rows) < h; i++ {
		rows = append(rows, b.renderRow(b.items[i], store, inner, i == b.cursor))
	}
	return style.Width(width - 2).Height(h).Render(strings.Join(rows, "\n"))
}

func (b *Browser) renderRow(it *archive.Item, store annotations.Store, width int, selected bool) string {
	star := " "
	if store.Starred(it.File) {
		star = "★"
	}
	created, ok := it.Created()
	meta := fmt.Sprintf(" %4d %s", it.Messages, shortDate(created, ok))
	titleW := max(width-2-len(meta), 4)
	title := padRight(it.Title, titleW)

	if selected {
		return RowSelectedStyle.Render(padRight(star+" "+title+meta, width))
	}
	return StarStyle.Render(star) + RowStyle.Render(" "+title) +
		CountStyle.Render(fmt.Sprintf(" %4d", it.Messages)) +
		DateStyle.Render(" "+shortDate(created, ok))
}

func (b *Browser) renderDetail(width, height int) string {
	style := PanelStyle
	if b.focus == paneDetail {
		style = PanelActiveStyle
	}
	h := height - 2
	content := b.detail.View(max(width-4, 10), h)
	return style.Width(width - 2).Height(h).Render(content)
}

func (b *Browser) renderMenu() string {
	if b.editingNote {
		return b.noteInput.View()
	}
	if b.err != nil {
		return ErrorStyle.Render(truncate(b.err.Error(), b.width))
	}
	hints := []string{
		MenuKey("/", "search"),
		MenuKey("enter", "open"),
		MenuKey("*", "star"),
		MenuKey("n", "note"),
		MenuKey("y", "copy"),
		MenuKey("s", "sort"),
		MenuKey("f", "starred"),
		MenuKey("?", "help"),
		MenuKey("q", "quit"),
	}
	line := strings.Join(hints, "  ")
	if b.status != "" {
		line = InfoStyle.Render(b.status) + "  " + line
	}
	return MenuBarStyle.Render(line)
}
