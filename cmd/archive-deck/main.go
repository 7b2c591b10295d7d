package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/asheshgoplani/archive-deck/internal/config"
	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/ui"
)

const Version = "0.4.0"

// usageError is printed as-is, without the "Error:" prefix.
type usageError string

func (e usageError) Error() string { return string(e) }

func usagef(format string, args ...any) error {
	return usageError("Usage: archive-deck " + fmt.Sprintf(format, args...))
}

func init() {
	initColorProfile()
}

// initColorProfile configures the lipgloss color profile. Output that is not
// a terminal is never colored.
func initColorProfile() {
	// ARCHIVE_DECK_COLOR: truecolor, 256, 16, none
	if colorEnv := os.Getenv("ARCHIVE_DECK_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	t := os.Getenv("TERM")
	for _, known := range []string{"256color", "direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(t, known) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	location, args := extractArchiveFlag(os.Args[1:])

	command := "browse"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "version", "--version", "-v":
		fmt.Printf("archive-deck v%s\n", Version)
		return
	case "help", "--help", "-h":
		printHelp(os.Stdout)
		return
	}

	ui.InitTheme(config.ResolveTheme())
	stopLogging := setupLogging(command)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := dispatch(ctx, location, command, args, os.Stdout)
	stop()
	stopLogging()

	if err != nil && !errors.Is(err, errHelpShown) {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, ue)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// dispatch runs one subcommand. It never exits the process.
func dispatch(ctx context.Context, location, command string, args []string, out io.Writer) error {
	switch command {
	case "config":
		return handleConfig(args, out)
	case "serve":
		return handleServe(ctx, location, args, out)
	}

	if !archiveCommands[command] {
		return fmt.Errorf("unknown command %q (run 'archive-deck help')", command)
	}
	a, err := openApp(ctx, location, out)
	if err != nil {
		return err
	}
	defer a.Close()

	switch command {
	case "browse":
		return handleBrowse(ctx, a, args)
	case "list", "ls":
		return handleList(ctx, a, args, false)
	case "search":
		return handleList(ctx, a, args, true)
	case "show":
		return handleShow(ctx, a, args)
	case "similar":
		return handleSimilar(a, args)
	case "star":
		return handleStar(a, args, true)
	case "unstar":
		return handleStar(a, args, false)
	case "note":
		return handleNote(a, args)
	case "stats":
		return handleStats(ctx, a, args)
	case "export":
		return handleExport(a, args)
	case "import":
		return handleImport(a, args)
	}
	return nil
}

// archiveCommands are the commands that need a loaded archive.
var archiveCommands = map[string]bool{
	"browse": true, "list": true, "ls": true, "search": true, "show": true,
	"similar": true, "star": true, "unstar": true, "note": true,
	"stats": true, "export": true, "import": true,
}

// setupLogging installs the rotated log file when [logs] enabled = true or
// ARCHIVE_DECK_DEBUG is set. The returned function flushes and closes it.
func setupLogging(command string) func() {
	debugMode := os.Getenv("ARCHIVE_DECK_DEBUG") != ""
	ls := config.GetLogSettings()
	if !ls.Enabled && !debugMode {
		logging.Init(logging.Config{})
		return logging.Shutdown
	}
	logDir, err := config.LogDir()
	if err != nil {
		logging.Init(logging.Config{})
		return logging.Shutdown
	}

	logging.Init(logging.Config{
		Debug:                 debugMode,
		LogDir:                logDir,
		Level:                 ls.Level,
		Format:                ls.Format,
		MaxSizeMB:             ls.MaxSizeMB,
		MaxBackups:            ls.Backups,
		MaxAgeDays:            ls.RetentionDays,
		Compress:              ls.Compress,
		AggregateIntervalSecs: ls.AggregateIntervalS,
	})
	logging.Logger().Info("process_started",
		slog.String("version", Version),
		slog.String("command", command),
		slog.Int("pid", os.Getpid()))

	// SIGUSR1 dumps the ring buffer for post-mortem debugging
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	go func() {
		for range usr1 {
			dumpPath := filepath.Join(logDir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(dumpPath); err != nil {
				logging.Logger().Error("crash_dump_failed", slog.String("error", err.Error()))
			} else {
				logging.Logger().Info("crash_dump_written", slog.String("path", dumpPath))
			}
		}
	}()

	return func() {
		signal.Stop(usr1)
		logging.Shutdown()
	}
}

// extractArchiveFlag extracts -a or --archive from args, returning the
// location and the remaining args.
func extractArchiveFlag(args []string) (string, []string) {
	var location string
	var remaining []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-a=") {
			location = strings.TrimPrefix(arg, "-a=")
			continue
		}
		if strings.HasPrefix(arg, "--archive=") {
			location = strings.TrimPrefix(arg, "--archive=")
			continue
		}
		if (arg == "-a" || arg == "--archive") && i+1 < len(args) {
			location = args[i+1]
			i++
			continue
		}

		remaining = append(remaining, arg)
	}

	return location, remaining
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, "archive-deck v%s - browse an exported conversation archive\n", Version)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: archive-deck [-a <dir|url>] [command] [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  browse              Interactive browser (default)")
	fmt.Fprintln(w, "  list, ls            List conversations (filters, sort, --json)")
	fmt.Fprintln(w, "  search <text>       List conversations matching text")
	fmt.Fprintln(w, "  show <ref>          Print one conversation's transcript")
	fmt.Fprintln(w, "  similar <ref>       Conversations sharing keywords with <ref>")
	fmt.Fprintln(w, "  star <ref>          Star a conversation")
	fmt.Fprintln(w, "  unstar <ref>        Remove a star")
	fmt.Fprintln(w, "  note <ref> [text]   Set (or with no text, print) a note")
	fmt.Fprintln(w, "  stats               Archive and annotation totals")
	fmt.Fprintln(w, "  export [-o file]    Write stars and notes as JSON")
	fmt.Fprintln(w, "  import <file>       Merge stars and notes from a backup")
	fmt.Fprintln(w, "  serve               Serve the archive directory over HTTP")
	fmt.Fprintln(w, "  config init|path    Create or locate config.toml")
	fmt.Fprintln(w, "  version             Show version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "A <ref> is a file key, an index number or a unique part of a file name.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Archive location: -a flag, then [archive] in ~/.archive-deck/config.toml,")
	fmt.Fprintln(w, "then the current directory.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  ARCHIVE_DECK_DIR     State directory (default ~/.archive-deck)")
	fmt.Fprintln(w, "  ARCHIVE_DECK_DEBUG   Write debug logs")
	fmt.Fprintln(w, "  ARCHIVE_DECK_COLOR   truecolor, 256, 16 or none")
}
