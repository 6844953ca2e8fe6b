package channel

import (
	"errors"
	"sync"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

// Reserved local events. They never travel on the wire.
const (
	EventConnected    = "$connected"
	EventDisconnected = "$disconnected"
)

// Connection roles, announced by the client in the role query parameter.
// Applications are the long-lived display runtime; tools are short CLI
// sessions that are never supervised.
const (
	RoleApplication = "application"
	RoleTool        = "tool"
)

// ErrDisconnected is returned when a frame cannot be sent because the
// transport is down, and is used to reject work bound to a lost connection.
var ErrDisconnected = errors.New("channel disconnected")

// Message is one received frame plus the codec needed to decode it.
type Message struct {
	Event string
	Data  protocol.Raw
	codec protocol.Codec
}

// NewMessage builds a Message, mostly for tests and local dispatch.
func NewMessage(event string, data protocol.Raw, codec protocol.Codec) Message {
	return Message{Event: event, Data: data, codec: codec}
}

// Decode unmarshals the payload into v. A frame without data leaves v untouched.
func (m Message) Decode(v any) error {
	if m.Data.IsNull() {
		return nil
	}
	if m.codec == nil {
		return errors.New("message has no codec")
	}
	return m.codec.Unmarshal(m.Data, v)
}

// Codec returns the codec of the connection that delivered the message.
func (m Message) Codec() protocol.Codec { return m.codec }

// Handler receives frames for one event name.
type Handler func(Message)

// Socket is the event-emitter view of a channel endpoint.
type Socket interface {
	Emit(event string, payload any) error
	On(event string, h Handler) (cancel func())
	Once(event string, h Handler) (cancel func())
	// Codec is the codec frames are encoded with on this socket.
	Codec() protocol.Codec
}

// Session is a server-side socket bound to one client connection.
type Session interface {
	Socket
	ID() string
	// Role is RoleApplication unless the client announced another.
	Role() string
}

type subscription struct {
	id      int
	handler Handler
	once    bool
}

// Bus fans received frames out to per-event subscribers in registration order.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]*subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

func (b *Bus) On(event string, h Handler) func() {
	return b.add(event, h, false)
}

// Once registers a handler that is removed before its first call.
func (b *Bus) Once(event string, h Handler) func() {
	return b.add(event, h, true)
}

func (b *Bus) add(event string, h Handler, once bool) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], &subscription{id: id, handler: h, once: once})

	return func() { b.remove(event, id) }
}

func (b *Bus) remove(event string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[event]
	for i, s := range subs {
		if s.id == id {
			b.subs[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[event]) == 0 {
		delete(b.subs, event)
	}
}

// Dispatch delivers msg to every current subscriber of msg.Event and
// reports whether anyone was listening.
func (b *Bus) Dispatch(msg Message) bool {
	b.mu.Lock()
	subs := b.subs[msg.Event]
	if len(subs) == 0 {
		b.mu.Unlock()
		return false
	}
	handlers := make([]Handler, 0, len(subs))
	kept := subs[:0:0]
	for _, s := range subs {
		handlers = append(handlers, s.handler)
		if !s.once {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.subs, msg.Event)
	} else {
		b.subs[msg.Event] = kept
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return true
}

// Listeners returns the number of subscribers for event.
func (b *Bus) Listeners(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event])
}
