package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const streamKeepAlive = 15 * time.Second

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := s.visits.Summary(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"on_premises": sum.OnPremises,
		"scheduled":   sum.Scheduled,
		"reported":    sum.Reported,
		"total":       sum.Total,
	})
}

// handleStream pushes visit changes as server-sent events until the client
// goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "unsupported", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	_, _ = fmt.Fprintf(w, "event: hello\ndata: {}\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(ev)
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, b)
			flusher.Flush()
		}
	}
}
