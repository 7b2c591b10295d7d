package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/asheshgoplani/archive-deck/internal/clipboard"
	"github.com/asheshgoplani/archive-deck/internal/transcript"
	"github.com/asheshgoplani/archive-deck/internal/ui"
)

type showJSON struct {
	Item     itemJSON             `json:"item"`
	Messages []transcript.Message `json:"messages"`
}

func handleShow(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	tools := fs.Bool("tools", false, "Include tool invocations")
	copyOut := fs.Bool("copy", false, "Copy the transcript to the clipboard as markdown")
	fs.Usage = func() {
		fmt.Println("Usage: archive-deck show <ref> [options]")
		fmt.Println()
		fmt.Println("Print one conversation: metadata, note and transcript.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("show <ref> [--tools] [--copy] [--json]")
	}

	it, err := resolveItem(a.sess.Corpus(), fs.Arg(0))
	if err != nil {
		return err
	}
	var msgs []transcript.Message
	if *tools {
		msgs = a.sess.OpenAll(ctx, it.File)
	} else {
		msgs = a.sess.Open(ctx, it.File)
	}

	out := NewCLIOutput(a.out, *jsonOutput)
	if *copyOut {
		res, err := clipboard.Copy(transcript.Markdown(msgs))
		if err != nil {
			if errors.Is(err, clipboard.ErrEmpty) {
				return fmt.Errorf("nothing to copy: transcript for %s is unavailable", it.File)
			}
			return err
		}
		return out.Success(fmt.Sprintf("Copied %s (%d lines, %s) via %s",
			it.Title, res.LineCount, humanize.Bytes(uint64(res.ByteSize)), res.Method), map[string]any{
			"file":   it.File,
			"method": res.Method,
			"bytes":  res.ByteSize,
			"lines":  res.LineCount,
		})
	}
	if *jsonOutput {
		if msgs == nil {
			msgs = []transcript.Message{}
		}
		return out.Print("", showJSON{Item: toItemJSON(it, a.store), Messages: msgs})
	}

	var b strings.Builder
	ann := a.store.Get(it.File)
	title := ui.TitleStyle.Render(it.Title)
	if ann.Starred {
		title = ui.StarStyle.Render(starSymbol) + " " + title
	}
	b.WriteString(title + "\n")
	created, okC := it.Created()
	updated, okU := it.Updated()
	fmt.Fprintf(&b, "%s\n", ui.DimStyle.Render(it.File))
	fmt.Fprintf(&b, "Created:  %s\n", humanDate(created, okC))
	fmt.Fprintf(&b, "Updated:  %s\n", humanDate(updated, okU))
	fmt.Fprintf(&b, "Messages: %d\n", it.Messages)
	if topic := it.Cluster(); topic != "" {
		fmt.Fprintf(&b, "Topic:    %s\n", topic)
	}
	if len(it.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", ui.KeywordStyle.Render(strings.Join(it.Keywords, ", ")))
	}
	if ann.Note != "" {
		fmt.Fprintf(&b, "Note:     %s\n", ui.NoteStyle.Render(ann.Note))
	}
	for _, h := range it.Highlights {
		fmt.Fprintf(&b, "  %s %s\n", bulletSymbol, h)
	}
	b.WriteString("\n")

	if len(msgs) == 0 {
		b.WriteString(ui.WarningStyle.Render("Transcript unavailable.") + "\n")
		return out.Print(b.String(), nil)
	}
	for _, m := range msgs {
		writeMessage(&b, m)
	}
	return out.Print(b.String(), nil)
}

func writeMessage(b *strings.Builder, m transcript.Message) {
	b.WriteString(ui.RoleStyle(m.RoleClass()).Render(m.Role) + "\n")
	for _, seg := range m.Segments {
		switch {
		case seg.Tool:
			b.WriteString(ui.ToolStyle.Render("[tool] "+firstLine(seg.Content)) + "\n")
		case seg.Kind == transcript.KindCode:
			b.WriteString(ui.CodeLangStyle.Render("```"+seg.Language) + "\n")
			b.WriteString(ui.CodeStyle.Render(seg.Content) + "\n")
			b.WriteString(ui.CodeLangStyle.Render("```") + "\n")
		default:
			b.WriteString(seg.Content + "\n")
		}
	}
	b.WriteString("\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

type similarJSON struct {
	Score float64  `json:"score"`
	Item  itemJSON `json:"item"`
}

func handleSimilar(a *app, args []string) error {
	fs := flag.NewFlagSet("similar", flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Println("Usage: archive-deck similar <ref> [--json]")
		fmt.Println()
		fmt.Println("Rank conversations by keyword overlap with <ref>.")
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("similar <ref> [--json]")
	}
	it, err := resolveItem(a.sess.Corpus(), fs.Arg(0))
	if err != nil {
		return err
	}
	matches, err := a.sess.Similar(it.File)
	if err != nil {
		return err
	}

	out := NewCLIOutput(a.out, *jsonOutput)
	if *jsonOutput {
		rows := make([]similarJSON, len(matches))
		for i, m := range matches {
			rows[i] = similarJSON{Score: m.Score, Item: toItemJSON(m.Item, a.store)}
		}
		return out.Print("", rows)
	}
	if len(matches) == 0 {
		return out.Print(fmt.Sprintf("Nothing shares keywords with %q.\n", it.Title), nil)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Similar to %s\n", ui.TitleStyle.Render(it.Title))
	width := terminalWidth(100)
	for _, m := range matches {
		fmt.Fprintf(&b, "%s %s  %s\n",
			ui.SimilarStyle.Render(fmt.Sprintf("%3.0f%%", m.Score*100)),
			ui.DimStyle.Render(fmt.Sprintf("%*d", tableColIndex, m.Item.Index)),
			truncate(m.Item.Title, width-tableColIndex-7))
	}
	return out.Print(b.String(), nil)
}
