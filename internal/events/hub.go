package events

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/signbridge/internal/clock"
)

// Event is one published bridge event; Data is its JSON payload.
type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"`
}

// Filter selects events by type prefix ("Video.", "watchdog."). An empty
// filter selects everything.
type Filter []string

// ParseFilter reads a comma separated prefix list.
func ParseFilter(s string) Filter {
	var f Filter
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			f = append(f, p)
		}
	}
	return f
}

func (f Filter) Match(eventType string) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if strings.HasPrefix(eventType, p) {
			return true
		}
	}
	return false
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Hub fans bridge events out to live subscribers and keeps the newest
// ones as a backlog for observers that connect late or reconnect. IDs are
// assigned under the hub lock, so backlog order is ID order.
type Hub struct {
	clock clock.Clock
	limit int

	mu      sync.Mutex
	lastID  int64
	backlog []Event
	subs    map[*subscriber]struct{}
}

func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = 100
	}
	return &Hub{
		clock: clock.Real(),
		limit: limit,
		subs:  make(map[*subscriber]struct{}),
	}
}

// Publish records the event and offers it to every matching subscriber.
// Payloads that cannot be encoded are published as {}.
func (h *Hub) Publish(eventType string, data any) {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	ev := Event{ID: h.lastID, Type: eventType, At: h.clock.Now().UTC(), Data: payload}
	h.backlog = append(h.backlog, ev)
	if over := len(h.backlog) - h.limit; over > 0 {
		h.backlog = slices.Delete(h.backlog, 0, over)
	}

	for sub := range h.subs {
		if !sub.filter.Match(eventType) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Slow observers lose events; publishers never wait.
		}
	}
}

// Subscribe returns a live feed of events matching f and its cancel func.
func (h *Hub) Subscribe(f Filter) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, 128), filter: f}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Since returns backlog events after lastID that match f, oldest first.
// gap reports that events after lastID have already left the backlog.
func (h *Hub) Since(lastID int64, f Filter) (out []Event, gap bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if lastID > 0 && len(h.backlog) > 0 && h.backlog[0].ID > lastID+1 {
		gap = true
	}
	for _, ev := range h.backlog {
		if ev.ID > lastID && f.Match(ev.Type) {
			out = append(out, ev)
		}
	}
	return out, gap
}

// Subscribers counts live feeds.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
