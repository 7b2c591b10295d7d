// Package metrics exposes Prometheus collectors for archive loading and
// browsing. They are served on /metrics by `archive-deck serve`.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchTotal counts resource fetches.
	// Labels: transport (dir, http), result (ok, missing, invalid)
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive_deck",
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Total number of archive resource fetches by transport and result",
		},
		[]string{"transport", "result"},
	)

	// SearchIndexLoads counts completed search index loads.
	// Labels: source (sharded, monolithic, empty)
	SearchIndexLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive_deck",
			Subsystem: "searchindex",
			Name:      "loads_total",
			Help:      "Total number of search index loads by resolved source",
		},
		[]string{"source"},
	)

	// SearchIndexEntries is the size of the currently cached search index.
	SearchIndexEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "archive_deck",
			Subsystem: "searchindex",
			Name:      "entries",
			Help:      "Number of entries in the loaded search index",
		},
	)

	// SearchIndexLoadDuration tracks how long a full index load takes.
	SearchIndexLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "archive_deck",
			Subsystem: "searchindex",
			Name:      "load_duration_seconds",
			Help:      "Duration of search index loads in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// FilterPassDuration tracks one pass of the filter/sort pipeline.
	FilterPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "archive_deck",
			Subsystem: "filter",
			Name:      "pass_duration_seconds",
			Help:      "Duration of filter/sort passes in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	// TranscriptOpens counts transcript loads.
	// Labels: result (ok, missing, empty)
	TranscriptOpens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive_deck",
			Subsystem: "transcript",
			Name:      "opens_total",
			Help:      "Total number of transcripts opened by result",
		},
		[]string{"result"},
	)

	// WebRequests counts requests answered by the archive server.
	// Labels: route (file, healthz, events), code (2xx, 3xx, 4xx, 5xx)
	WebRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive_deck",
			Subsystem: "web",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served by route and status class",
		},
		[]string{"route", "code"},
	)
)
