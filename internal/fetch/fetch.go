// Package fetch retrieves named static resources from an archive, either a
// local directory or an HTTP base URL. Every failure to retrieve a resource
// surfaces as ErrMissing so callers can degrade instead of aborting.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/metrics"
)

var fetchLog = logging.ForComponent(logging.CompFetch)

var (
	// ErrMissing reports that a resource could not be retrieved: absent,
	// unreadable, or answered with a non-success status.
	ErrMissing = errors.New("resource missing")

	// ErrMalformed reports that a resource was retrieved but could not be
	// decoded into the expected shape.
	ErrMalformed = errors.New("resource malformed")
)

// Fetcher retrieves a resource by its archive-relative path.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FetchJSON fetches name and decodes it into v.
func FetchJSON(ctx context.Context, f Fetcher, name string, v any) error {
	data, err := f.Fetch(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("fetch: decode %s: %w: %v", name, ErrMalformed, err)
	}
	return nil
}

// cleanName normalizes an archive path and rejects anything that would
// escape the archive root.
func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "/")
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("fetch: invalid path %q: %w", name, ErrMissing)
	}
	return cleaned, nil
}

// DirFetcher reads resources from a local directory.
type DirFetcher struct {
	root string
	fsys fs.FS
}

// NewDirFetcher returns a fetcher rooted at dir.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{root: dir, fsys: os.DirFS(dir)}
}

// Root returns the directory the fetcher reads from.
func (d *DirFetcher) Root() string { return d.root }

func (d *DirFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleaned, err := cleanName(name)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("dir", "invalid").Inc()
		return nil, err
	}
	data, err := fs.ReadFile(d.fsys, cleaned)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("dir", "missing").Inc()
		fetchLog.Debug("fetch_missing", slog.String("path", cleaned), slog.String("error", err.Error()))
		return nil, fmt.Errorf("fetch: %s: %w", cleaned, ErrMissing)
	}
	metrics.FetchTotal.WithLabelValues("dir", "ok").Inc()
	return data, nil
}

// HTTPFetcher issues plain GET requests against a base URL. Requests are
// paced by a token bucket so a shard fan-out cannot hammer a small static
// host.
type HTTPFetcher struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPFetcher) { h.client = c }
}

// WithRateLimit bounds requests per second; rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(h *HTTPFetcher) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewHTTPFetcher parses baseURL and returns a fetcher for it.
func NewHTTPFetcher(baseURL string, opts ...HTTPOption) (*HTTPFetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("fetch: unsupported scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	h := &HTTPFetcher{
		base:    u,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(20), 8),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("http", "invalid").Inc()
		return nil, err
	}
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := h.base.ResolveReference(&url.URL{Path: cleaned})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("http", "missing").Inc()
		fetchLog.Debug("fetch_failed", slog.String("url", target.String()), slog.String("error", err.Error()))
		return nil, fmt.Errorf("fetch: %s: %w", cleaned, ErrMissing)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.FetchTotal.WithLabelValues("http", "missing").Inc()
		fetchLog.Debug("fetch_status", slog.String("url", target.String()), slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("fetch: %s: status %d: %w", cleaned, resp.StatusCode, ErrMissing)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("http", "missing").Inc()
		return nil, fmt.Errorf("fetch: read %s: %w", cleaned, ErrMissing)
	}
	metrics.FetchTotal.WithLabelValues("http", "ok").Inc()
	return data, nil
}

// New picks an HTTPFetcher for http(s) locations and a DirFetcher otherwise.
func New(location string, rps float64) (Fetcher, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPFetcher(location, WithRateLimit(rps, 8))
	}
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("fetch: archive dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fetch: archive %s is not a directory", location)
	}
	return NewDirFetcher(location), nil
}
