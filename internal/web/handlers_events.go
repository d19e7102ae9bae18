package web

// handlers_events.go bridges the event bus onto an SSE stream so clients
// follow dataset and analysis lifecycle events without polling.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// keepaliveInterval paces SSE comments that hold idle connections open
// through proxies.
const keepaliveInterval = 15 * time.Second

// handleEvents streams every bus event as an SSE message typed by the
// event's own type. The stream ends when the client disconnects or the
// bus closes during shutdown.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, unsubscribe, err := s.bus.Subscribe()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unsubscribe()

	flusher, ok := setupSSE(w)
	if !ok {
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
