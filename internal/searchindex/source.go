package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/archive-deck/internal/fetch"
)

// Default archive-relative locations written by the export pipeline.
const (
	DefaultManifest = "search/manifest.json"
	DefaultFallback = "search_index.json"
)

// Entry is one record of a shard or of the fallback file.
type Entry struct {
	File       string `json:"file"`
	SearchText string `json:"search_text"`
}

// Manifest lists the shard files of a sharded index.
type Manifest struct {
	Shards []ShardRef `json:"shards"`
	Total  int        `json:"total,omitempty"`
}

// ShardRef names one shard relative to the manifest's directory.
type ShardRef struct {
	File  string `json:"file"`
	Count int    `json:"count,omitempty"`
}

type entryList struct {
	Items []Entry `json:"items"`
}

// Source is one way of obtaining the search index. Load returns entries in
// source order; the loader flattens them into the lookup table.
type Source interface {
	Name() string
	Load(ctx context.Context, f fetch.Fetcher) ([]Entry, error)
}

// ShardedSource reads a manifest and then every shard it lists. All shards
// are fetched concurrently and the attempt fails as a whole if any shard
// fails.
type ShardedSource struct {
	Manifest string
	// Concurrency caps in-flight shard fetches; <= 0 means unlimited.
	Concurrency int
}

func (s ShardedSource) Name() string { return "sharded" }

func (s ShardedSource) manifestPath() string {
	if s.Manifest == "" {
		return DefaultManifest
	}
	return s.Manifest
}

// shardPath resolves a shard reference against the manifest directory,
// accepting references that already carry that directory.
func (s ShardedSource) shardPath(ref string) string {
	ref = strings.TrimPrefix(ref, "/")
	dir := path.Dir(s.manifestPath())
	if dir == "." || strings.HasPrefix(ref, dir+"/") {
		return ref
	}
	return path.Join(dir, ref)
}

func (s ShardedSource) Load(ctx context.Context, f fetch.Fetcher) ([]Entry, error) {
	var m Manifest
	if err := fetch.FetchJSON(ctx, f, s.manifestPath(), &m); err != nil {
		return nil, err
	}
	if len(m.Shards) == 0 {
		return nil, fmt.Errorf("searchindex: manifest %s lists no shards: %w", s.manifestPath(), fetch.ErrMalformed)
	}

	for i, ref := range m.Shards {
		if ref.File == "" {
			return nil, fmt.Errorf("searchindex: shard %d has no file: %w", i, fetch.ErrMalformed)
		}
	}

	shards := make([][]Entry, len(m.Shards))
	g, gctx := errgroup.WithContext(ctx)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, ref := range m.Shards {
		name := s.shardPath(ref.File)
		g.Go(func() error {
			var list entryList
			if err := fetch.FetchJSON(gctx, f, name, &list); err != nil {
				return err
			}
			shards[i] = list.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, sh := range shards {
		total += len(sh)
	}
	out := make([]Entry, 0, total)
	for _, sh := range shards {
		out = append(out, sh...)
	}
	return out, nil
}

// MonolithicSource reads a single index file whose top level is either an
// object with an "items" list or a bare list of entries.
type MonolithicSource struct {
	Path string
}

func (s MonolithicSource) Name() string { return "monolithic" }

func (s MonolithicSource) Load(ctx context.Context, f fetch.Fetcher) ([]Entry, error) {
	name := s.Path
	if name == "" {
		name = DefaultFallback
	}
	data, err := f.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	return decodeEntries(name, data)
}

func decodeEntries(name string, data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("searchindex: %s is empty: %w", name, fetch.ErrMalformed)
	}
	if trimmed[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("searchindex: decode %s: %w: %v", name, fetch.ErrMalformed, err)
		}
		return entries, nil
	}
	var list entryList
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("searchindex: decode %s: %w: %v", name, fetch.ErrMalformed, err)
	}
	if list.Items == nil {
		return nil, fmt.Errorf("searchindex: %s has no items list: %w", name, fetch.ErrMalformed)
	}
	return list.Items, nil
}
