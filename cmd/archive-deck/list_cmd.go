package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/asheshgoplani/archive-deck/internal/annotations"
	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/filter"
	"github.com/asheshgoplani/archive-deck/internal/ui"
)

// Table column widths for list output
const (
	tableColStar     = 1
	tableColMessages = 5
	tableColDate     = 10
	tableColIndex    = 5
	minTitleWidth    = 20
)

type itemJSON struct {
	Index      int      `json:"index"`
	Title      string   `json:"title"`
	File       string   `json:"file"`
	Messages   int      `json:"messages"`
	CreatedUTC string   `json:"created_utc"`
	UpdatedUTC string   `json:"updated_utc"`
	Keywords   []string `json:"keywords"`
	Topic      string   `json:"topic,omitempty"`
	Snippet    string   `json:"snippet,omitempty"`
	Starred    bool     `json:"starred"`
	Note       string   `json:"note,omitempty"`
}

func toItemJSON(it *archive.Item, store annotations.Store) itemJSON {
	a := store.Get(it.File)
	kws := it.Keywords
	if kws == nil {
		kws = []string{}
	}
	return itemJSON{
		Index:      it.Index,
		Title:      it.Title,
		File:       it.File,
		Messages:   it.Messages,
		CreatedUTC: it.CreatedUTC,
		UpdatedUTC: it.UpdatedUTC,
		Keywords:   kws,
		Topic:      it.Cluster(),
		Snippet:    it.Snippet,
		Starred:    a.Starred,
		Note:       a.Note,
	}
}

// handleList lists conversations. As "search", the positional arguments
// are the free-text query.
func handleList(ctx context.Context, a *app, args []string, search bool) error {
	name := "list"
	if search {
		name = "search"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	minMessages := fs.Int("min", 0, "Only conversations with at least this many messages")
	starred := fs.Bool("starred", false, "Only starred conversations")
	keyword := fs.String("keyword", "", "Only conversations with this keyword (fuzzy matched)")
	topic := fs.String("topic", "", "Only conversations in this topic (fuzzy matched)")
	from := fs.String("from", "", "Created on or after `YYYY-MM-DD`")
	to := fs.String("to", "", "Created on or before `YYYY-MM-DD`")
	sortFlag := fs.String("sort", "messages", "Sort by messages, created, updated or none")
	limit := fs.Int("limit", 0, "Show at most this many rows (0 = all)")
	text := fs.String("text", "", "Free-text query")

	fs.Usage = func() {
		fmt.Printf("Usage: archive-deck %s [options]", name)
		if search {
			fmt.Print(" <text>")
		}
		fmt.Println()
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  archive-deck list --starred")
		fmt.Println("  archive-deck list --keyword kubernetes --sort created")
		fmt.Println("  archive-deck search sourdough levain --json")
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	q := filter.Query{MinMessages: *minMessages, StarredOnly: *starred, Text: *text}
	if search {
		q.Text = strings.TrimSpace(strings.Join(append([]string{q.Text}, fs.Args()...), " "))
		if q.Text == "" {
			return usagef("search <text> [options]")
		}
	} else if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	var err error
	if q.Sort, err = filter.ParseSortMode(*sortFlag); err != nil {
		return err
	}
	if q.From, q.To, err = filter.DateRange(*from, *to); err != nil {
		return err
	}

	corpus := a.sess.Corpus()
	if *keyword != "" {
		q.Keyword = resolveFacetFlag("keyword", *keyword, corpus.KeywordTerms())
	}
	if *topic != "" {
		q.Cluster = resolveFacetFlag("topic", *topic, corpus.ClusterLabels())
	}

	// A one-shot listing waits for search text instead of reporting a
	// partial result.
	if len(q.Tokens()) > 0 {
		a.sess.Loader().Load(ctx)
	}
	a.sess.SetQuery(q)
	items := a.sess.Apply(ctx).Items
	total := len(items)
	if *limit > 0 && len(items) > *limit {
		items = items[:*limit]
	}

	out := NewCLIOutput(a.out, *jsonOutput)
	if *jsonOutput {
		rows := make([]itemJSON, len(items))
		for i, it := range items {
			rows[i] = toItemJSON(it, a.store)
		}
		return out.Print("", rows)
	}
	if total == 0 {
		return out.Print("No conversations match.\n", nil)
	}
	return out.Print(renderTable(items, a.store, terminalWidth(100))+
		ui.DimStyle.Render(fmt.Sprintf("Showing %s of %s conversations (%s total)",
			humanize.Comma(int64(len(items))), humanize.Comma(int64(total)),
			humanize.Comma(int64(corpus.Len()))))+"\n", nil)
}

// resolveFacetFlag maps a facet flag onto a corpus value, telling the user
// on stderr when a fuzzy match was substituted. An unmatched value is kept
// as typed so the listing comes back empty rather than unfiltered.
func resolveFacetFlag(kind, input string, candidates []string) string {
	resolved, ok := archive.ResolveFacet(input, candidates)
	if !ok {
		fmt.Fprintf(os.Stderr, "No %s matches %q\n", kind, input)
		return input
	}
	if !strings.EqualFold(resolved, input) {
		msg := fmt.Sprintf("Using %s %q", kind, resolved)
		if others := archive.SuggestFacets(input, candidates, 4); len(others) > 1 {
			msg += fmt.Sprintf(" (also close: %s)", strings.Join(others[1:], ", "))
		}
		fmt.Fprintln(os.Stderr, msg)
	}
	return resolved
}

func renderTable(items []*archive.Item, store annotations.Store, width int) string {
	titleW := width - tableColStar - tableColIndex - tableColMessages - tableColDate - 4
	if titleW < minTitleWidth {
		titleW = minTitleWidth
	}

	var b strings.Builder
	header := fmt.Sprintf("%-*s %*s %*s %-*s %s", tableColStar, "", tableColIndex, "#",
		tableColMessages, "MSGS", tableColDate, "CREATED", "TITLE")
	b.WriteString(ui.DimStyle.Render(header))
	b.WriteString("\n")
	for _, it := range items {
		star := " "
		if store.Starred(it.File) {
			star = ui.StarStyle.Render(starSymbol)
		}
		created, ok := it.Created()
		fmt.Fprintf(&b, "%s %*d %s %s %s\n",
			star,
			tableColIndex, it.Index,
			ui.CountStyle.Render(fmt.Sprintf("%*d", tableColMessages, it.Messages)),
			ui.DateStyle.Render(padRight(shortDate(created, ok), tableColDate)),
			truncate(it.Title, titleW))
	}
	return b.String()
}
