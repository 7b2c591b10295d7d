package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/asheshgoplani/archive-deck/internal/ui"
)

type annotationJSON struct {
	File    string `json:"file"`
	Starred bool   `json:"starred"`
	Note    string `json:"note"`
}

func handleStar(a *app, args []string, starred bool) error {
	name := "star"
	if !starred {
		name = "unstar"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("%s <ref>", name)
	}
	if err := a.requireDB(); err != nil {
		return err
	}
	it, err := resolveItem(a.sess.Corpus(), fs.Arg(0))
	if err != nil {
		return err
	}
	if err := a.sess.SetStar(it.File, starred); err != nil {
		return err
	}

	ann := a.store.Get(it.File)
	verb := "Starred"
	if !starred {
		verb = "Unstarred"
	}
	return NewCLIOutput(a.out, *jsonOutput).Success(
		fmt.Sprintf("%s %q", verb, it.Title),
		annotationJSON{File: it.File, Starred: ann.Starred, Note: ann.Note})
}

// handleNote prints the note with only a ref, sets it with text, and clears
// it with --clear.
func handleNote(a *app, args []string) error {
	fs := flag.NewFlagSet("note", flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	clearNote := fs.Bool("clear", false, "Remove the note")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usagef("note <ref> [text...] [--clear]")
	}
	it, err := resolveItem(a.sess.Corpus(), fs.Arg(0))
	if err != nil {
		return err
	}
	out := NewCLIOutput(a.out, *jsonOutput)
	text := strings.Join(fs.Args()[1:], " ")

	if text == "" && !*clearNote {
		ann := a.store.Get(it.File)
		human := ui.DimStyle.Render("(no note)") + "\n"
		if ann.Note != "" {
			human = ann.Note + "\n"
		}
		return out.Print(human, annotationJSON{File: it.File, Starred: ann.Starred, Note: ann.Note})
	}

	if err := a.requireDB(); err != nil {
		return err
	}
	if *clearNote {
		text = ""
	}
	if err := a.sess.SetNote(it.File, text); err != nil {
		return err
	}
	ann := a.store.Get(it.File)
	msg := fmt.Sprintf("Saved note on %q", it.Title)
	if ann.Note == "" {
		msg = fmt.Sprintf("Cleared note on %q", it.Title)
	}
	return out.Success(msg, annotationJSON{File: it.File, Starred: ann.Starred, Note: ann.Note})
}
