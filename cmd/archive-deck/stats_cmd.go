package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/asheshgoplani/archive-deck/internal/ui"
)

const (
	statsTopN     = 10
	statsBarWidth = 40
)

func handleStats(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	skipIndex := fs.Bool("no-index", false, "Do not load the search index")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if !*skipIndex {
		a.sess.Loader().Load(ctx)
	}
	st := a.sess.Stats()

	out := NewCLIOutput(a.out, *jsonOutput)
	if *jsonOutput {
		return out.Print("", st)
	}

	var b strings.Builder
	b.WriteString(ui.TitleStyle.Render("Archive") + " " + ui.DimStyle.Render(a.location) + "\n")
	if st.GeneratedUTC != "" {
		fmt.Fprintf(&b, "  Generated:      %s\n", st.GeneratedUTC)
	}
	fmt.Fprintf(&b, "  Conversations:  %s\n", humanize.Comma(int64(st.Items)))
	fmt.Fprintf(&b, "  Messages:       %s\n", humanize.Comma(int64(st.Messages)))
	fmt.Fprintf(&b, "  Starred:        %s\n", humanize.Comma(int64(st.Starred)))
	fmt.Fprintf(&b, "  With notes:     %s\n", humanize.Comma(int64(st.Noted)))
	switch {
	case *skipIndex:
	case st.IndexEntries > 0:
		fmt.Fprintf(&b, "  Search index:   %s entries (%s)\n", humanize.Comma(int64(st.IndexEntries)), st.IndexSource)
	default:
		fmt.Fprintf(&b, "  Search index:   %s\n", ui.WarningStyle.Render("unavailable (title, keyword and snippet search only)"))
	}

	if len(st.Months) > 0 {
		b.WriteString("\n" + ui.TitleStyle.Render("By month") + "\n")
		months := make([]string, 0, len(st.Months))
		peak := 0
		for m, n := range st.Months {
			months = append(months, m)
			peak = max(peak, n)
		}
		sort.Strings(months)
		for _, m := range months {
			n := st.Months[m]
			bar := strings.Repeat("█", max(1, n*statsBarWidth/max(peak, 1)))
			fmt.Fprintf(&b, "  %s %s %d\n", m, ui.CountStyle.Render(bar), n)
		}
	}

	if len(st.Keywords) > 0 {
		b.WriteString("\n" + ui.TitleStyle.Render("Top keywords") + "\n")
		for i, kw := range st.Keywords {
			if i == statsTopN {
				break
			}
			fmt.Fprintf(&b, "  %s %s\n", ui.KeywordStyle.Render(padRight(kw.Term, 24)), humanize.Comma(int64(kw.Count)))
		}
	}
	if len(st.Clusters) > 0 {
		b.WriteString("\n" + ui.TitleStyle.Render("Topics") + "\n")
		for i, c := range st.Clusters {
			if i == statsTopN {
				break
			}
			fmt.Fprintf(&b, "  %s %s\n", padRight(c.Label, 24), humanize.Comma(int64(c.Count)))
		}
	}
	return out.Print(b.String(), nil)
}
