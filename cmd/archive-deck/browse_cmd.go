package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/asheshgoplani/archive-deck/internal/config"
	"github.com/asheshgoplani/archive-deck/internal/ui"
	"github.com/asheshgoplani/archive-deck/internal/watch"
)

func handleBrowse(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	noWatch := fs.Bool("no-watch", false, "Do not reload when the archive changes on disk")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	opts := ui.Options{
		Session:           a.sess,
		DB:                a.db,
		Debounce:          a.search.Debounce(),
		FollowSystemTheme: config.GetTheme() == "system",
	}

	if dir := a.localDir(); dir != "" && !*noWatch {
		changes := make(chan struct{}, 1)
		w, err := watch.NewWatcher(dir, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
		} else {
			defer w.Stop()
			opts.ArchiveChanges = changes
			opts.Notice = w.Warning()
		}
	}

	return ui.Run(ctx, opts)
}
