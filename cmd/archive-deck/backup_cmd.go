package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/asheshgoplani/archive-deck/internal/annotations"
	"github.com/asheshgoplani/archive-deck/internal/statedb"
)

func handleExport(a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	output := fs.String("o", "", "Write to `file` instead of stdout")
	fs.Usage = func() {
		fmt.Println("Usage: archive-deck export [-o file]")
		fmt.Println()
		fmt.Println("Write all stars and notes as JSON.")
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if *output == "" {
		return annotations.ExportJSON(a.out, a.store)
	}

	// Written next to the target and renamed, so a failed export never
	// truncates an earlier backup.
	dir := filepath.Dir(*output)
	tmp, err := os.CreateTemp(dir, ".archive-deck-export-*")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := annotations.ExportJSON(tmp, a.store); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.Rename(tmp.Name(), *output); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return NewCLIOutput(a.out, false).Success(
		fmt.Sprintf("Exported %d annotations to %s", len(a.store.All()), *output), nil)
}

// handleImport merges a backup into the annotation store. "-" reads stdin.
// --legacy merges a bare {"stars":[...],"notes":{...}} dump straight into
// the database.
func handleImport(a *app, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	replace := fs.Bool("replace", false, "Clear annotations missing from the backup")
	legacy := fs.Bool("legacy", false, "Input is a legacy stars/notes dump")
	fs.Usage = func() {
		fmt.Println("Usage: archive-deck import [--replace] [--legacy] <file|->")
		fmt.Println()
		fmt.Println("Merge stars and notes from an export.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("import [--replace] [--legacy] <file|->")
	}
	if err := a.requireDB(); err != nil {
		return err
	}
	path := fs.Arg(0)

	if *legacy {
		if *replace {
			return fmt.Errorf("--legacy merges only; use a full export with --replace")
		}
		n, err := statedb.MigrateFromJSON(path, a.db)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		if reloader, ok := a.store.(*annotations.DBStore); ok {
			if err := reloader.Reload(); err != nil {
				return err
			}
		}
		return NewCLIOutput(a.out, false).Success(fmt.Sprintf("Imported %d annotations", n), nil)
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		defer f.Close()
		r = f
	}
	n, err := annotations.ImportJSON(r, a.store, *replace)
	if err != nil {
		return err
	}
	return NewCLIOutput(a.out, false).Success(fmt.Sprintf("Imported %d annotations", n), nil)
}
