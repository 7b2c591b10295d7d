package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asheshgoplani/archive-deck/internal/config"
	"github.com/asheshgoplani/archive-deck/internal/watch"
	"github.com/asheshgoplani/archive-deck/internal/web"
)

// buildServer parses serve flags and returns a ready-to-start server plus
// the directory it serves.
func buildServer(location string, args []string) (*web.Server, string, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listenAddr := fs.String("listen", config.GetServeSettings().Listen, "Listen address")
	fs.Usage = func() {
		fmt.Println("Usage: archive-deck [-a dir] serve [--listen addr]")
		fmt.Println()
		fmt.Println("Serve the archive directory read-only over HTTP, for")
		fmt.Println("'archive-deck -a http://host:port' on another machine.")
		fmt.Println("Also serves /healthz, /metrics and /events/archive.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, args); err != nil {
		return nil, "", err
	}
	if fs.NArg() > 0 {
		return nil, "", fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	settings := config.GetArchiveSettings()
	dir := location
	if dir == "" {
		dir = settings.Dir
	}
	if dir == "" {
		dir = "."
	}
	dir = config.ExpandHome(dir)
	if strings.HasPrefix(dir, "http://") || strings.HasPrefix(dir, "https://") {
		return nil, "", errors.New("serve needs a local archive directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", err
	}
	if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
		return nil, "", fmt.Errorf("not a directory: %s", abs)
	}

	srv := web.NewServer(web.Config{
		ListenAddr: *listenAddr,
		Root:       abs,
		IndexFile:  settings.IndexFile,
	})
	return srv, abs, nil
}

func handleServe(ctx context.Context, location string, args []string, out io.Writer) error {
	srv, dir, err := buildServer(location, args)
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, config.GetArchiveSettings().IndexFile)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s has no index file yet\n", dir)
	}

	watcher, err := watch.NewWatcher(dir, srv.NotifyArchiveChanged)
	if err == nil {
		err = watcher.Start()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: change notifications disabled: %v\n", err)
	} else {
		defer watcher.Stop()
		if warn := watcher.Warning(); warn != "" {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warn)
		}
	}

	fmt.Fprintf(out, "Serving %s on http://%s (Ctrl+C to stop)\n", dir, srv.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
