package logging

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type eventKey struct {
	component string
	event     string
}

type eventTally struct {
	count int64
	last  []slog.Attr
}

// Aggregator counts repeated events and logs one summary line per event
// type every interval. Debounced filter passes fire on every keystroke
// burst; logging each one individually would drown the file.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	tally  map[eventKey]*eventTally
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewAggregator creates an aggregator flushing every intervalSecs seconds
// (default 30). A nil logger drops everything.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		tally:    make(map[eventKey]*eventTally),
		done:     make(chan struct{}),
	}
}

// Start launches the flush loop.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.flush()
			case <-a.done:
				return
			}
		}
	}()
}

// Stop ends the flush loop and writes whatever is still pending.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()
	a.flush()
}

// Record bumps the counter for (component, event). The attributes of the
// latest call are kept for the summary.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := eventKey{component: component, event: event}
	t, ok := a.tally[key]
	if !ok {
		t = &eventTally{}
		a.tally[key] = t
	}
	t.count++
	if len(fields) > 0 {
		t.last = fields
	}
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	if len(a.tally) == 0 {
		a.mu.Unlock()
		return
	}
	pending := a.tally
	a.tally = make(map[eventKey]*eventTally)
	a.mu.Unlock()

	if a.logger == nil {
		return
	}

	keys := make([]eventKey, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].component != keys[j].component {
			return keys[i].component < keys[j].component
		}
		return keys[i].event < keys[j].event
	})

	for _, k := range keys {
		t := pending[k]
		attrs := []any{
			slog.String("component", k.component),
			slog.String("event", k.event),
			slog.Int64("count", t.count),
			slog.Int("window_seconds", int(a.interval.Seconds())),
		}
		for _, f := range t.last {
			attrs = append(attrs, f)
		}
		a.logger.Info("event_summary", attrs...)
	}
}
