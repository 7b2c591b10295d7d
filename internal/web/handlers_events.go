package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

var archiveEventsHeartbeatInterval = 15 * time.Second

type archiveEvent struct {
	Generation uint64 `json:"generation"`
	Time       string `json:"time"`
}

// handleArchiveEvents streams an "archive" event every time the archive
// changes, so open clients know to refetch index.json.
func (s *Server) handleArchiveEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unavailable", http.StatusInternalServerError)
		return
	}

	changes := s.subscribe()
	defer s.unsubscribe(changes)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeSSEEvent(w, flusher, "hello", s.currentEvent()); err != nil {
		return
	}

	heartbeat := time.NewTicker(archiveEventsHeartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := writeSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		case <-changes:
			if err := writeSSEEvent(w, flusher, "archive", s.currentEvent()); err != nil {
				return
			}
		}
	}
}

func (s *Server) currentEvent() archiveEvent {
	return archiveEvent{
		Generation: s.generation.Load(),
		Time:       time.Now().UTC().Format(time.RFC3339),
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEComment(w http.ResponseWriter, flusher http.Flusher, comment string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
