package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// normalizeArgs moves flags in front of positional arguments. The flag
// package stops at the first positional, so "show 12 --json" would
// otherwise ignore --json.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") {
				continue
			}
			if !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

// parseFlags parses args into fs, turning -h into a clean exit path.
func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	err := fs.Parse(normalizeArgs(fs, args))
	if errors.Is(err, flag.ErrHelp) {
		fs.SetOutput(os.Stdout)
		fs.Usage()
		return errHelpShown
	}
	return err
}

var errHelpShown = errors.New("help shown")

// CLIOutput handles consistent output formatting across all CLI commands
type CLIOutput struct {
	w        io.Writer
	jsonMode bool
}

// NewCLIOutput creates a new CLI output handler
func NewCLIOutput(w io.Writer, jsonMode bool) *CLIOutput {
	return &CLIOutput{w: w, jsonMode: jsonMode}
}

// Success prints a success message or JSON response
func (c *CLIOutput) Success(message string, data any) error {
	if c.jsonMode {
		return c.printJSON(data)
	}
	_, err := fmt.Fprintf(c.w, "%s %s\n", successSymbol, message)
	return err
}

// Print prints data (human-readable or JSON)
func (c *CLIOutput) Print(humanOutput string, jsonData any) error {
	if c.jsonMode {
		return c.printJSON(jsonData)
	}
	_, err := io.WriteString(c.w, humanOutput)
	return err
}

func (c *CLIOutput) printJSON(data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("format JSON: %w", err)
	}
	_, err = fmt.Fprintln(c.w, string(output))
	return err
}

// Symbols for human-readable output
const (
	successSymbol = "✓"
	starSymbol    = "★"
	bulletSymbol  = "•"
)

// terminalWidth returns the stdout width, or fallback when stdout is not a
// terminal.
func terminalWidth(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return fallback
}

// truncate cuts s to width cells, ending with "…" when cut.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

func padRight(s string, width int) string {
	return runewidth.FillRight(truncate(s, width), width)
}

// humanDate renders t as "Mar 1, 2024 (2 years ago)", or "unknown".
func humanDate(t time.Time, ok bool) string {
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s (%s)", t.Format("Jan 2, 2006"), humanize.Time(t))
}

func shortDate(t time.Time, ok bool) string {
	if !ok {
		return "—"
	}
	return t.Format("2006-01-02")
}
