package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/signbridge/internal/events"
)

// DefaultKeepAlive is how often an idle event stream sends a comment line.
const DefaultKeepAlive = 15 * time.Second

// handleEvents streams bridge events as server-sent events. The types
// query (comma separated prefixes such as Video.,watchdog.) narrows the
// stream; Last-Event-ID resumes after the last event an observer saw.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	filter := events.ParseFilter(r.URL.Query().Get("types"))
	lastID := parseLastEventID(r.Header.Get("Last-Event-ID"))

	// Subscribe before reading the backlog; the overlap is skipped by ID.
	live, cancel := s.deps.Events.Subscribe(filter)
	defer cancel()
	backlog, gap := s.deps.Events.Since(lastID, filter)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	stream := &sseStream{w: w, flusher: flusher}
	if gap {
		stream.comment(fmt.Sprintf("events after id %d are no longer buffered", lastID))
	}
	sent := lastID
	for _, ev := range backlog {
		stream.event(ev)
		sent = ev.ID
	}
	if stream.flush() != nil {
		return
	}

	keepAlive := s.config.EventsKeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-live:
			if !ok {
				return
			}
			if ev.ID <= sent {
				continue
			}
			stream.event(ev)
			sent = ev.ID
		case <-ticker.C:
			stream.comment("keep-alive")
		}
		if stream.flush() != nil {
			return
		}
	}
}

func parseLastEventID(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// sseStream writes event-stream frames and remembers the first write error.
type sseStream struct {
	w       io.Writer
	flusher http.Flusher
	err     error
}

func (s *sseStream) event(ev events.Event) {
	if s.err != nil {
		return
	}
	// Payloads are single-line JSON, so one data line suffices.
	_, s.err = fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, ev.Data)
}

func (s *sseStream) comment(text string) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, ": %s\n\n", text)
}

func (s *sseStream) flush() error {
	if s.err == nil {
		s.flusher.Flush()
	}
	return s.err
}
