package channel

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

// Endpoint is one side of an in-memory Pipe. Frames are encoded with the
// pipe's codec and delivered in order on the peer's own goroutine, so the
// receiving side sees the same asynchrony as over a real socket.
type Endpoint struct {
	id    string
	role  string
	codec protocol.Codec
	bus   *Bus
	peer  *Endpoint

	inbox chan Message
	mu    sync.Mutex
	done  chan struct{}
}

// Pipe returns two connected endpoints, already in the connected state.
func Pipe(codec protocol.Codec) (*Endpoint, *Endpoint) {
	a := newEndpoint(codec)
	b := newEndpoint(codec)
	a.peer, b.peer = b, a
	go a.deliver()
	go b.deliver()
	return a, b
}

func newEndpoint(codec protocol.Codec) *Endpoint {
	return &Endpoint{
		id:    uuid.NewString(),
		role:  RoleApplication,
		codec: codec,
		bus:   NewBus(),
		inbox: make(chan Message, 1024),
		done:  make(chan struct{}),
	}
}

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) Role() string { return e.role }

func (e *Endpoint) Codec() protocol.Codec { return e.codec }

func (e *Endpoint) Emit(event string, payload any) error {
	b, err := protocol.EncodeFrame(e.codec, event, payload)
	if err != nil {
		return err
	}
	frame, err := protocol.DecodeFrame(e.codec, b)
	if err != nil {
		return err
	}

	select {
	case <-e.done:
		return ErrDisconnected
	default:
	}
	if !e.peer.push(Message{Event: frame.Event, Data: frame.Data, codec: e.codec}) {
		return ErrDisconnected
	}
	return nil
}

func (e *Endpoint) push(msg Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.done:
		return false
	default:
	}
	e.inbox <- msg
	return true
}

func (e *Endpoint) On(event string, h Handler) func()   { return e.bus.On(event, h) }
func (e *Endpoint) Once(event string, h Handler) func() { return e.bus.Once(event, h) }

// Listeners reports the subscriber count for event on this side.
func (e *Endpoint) Listeners(event string) int { return e.bus.Listeners(event) }

// Close disconnects both sides; each side observes EventDisconnected.
func (e *Endpoint) Close() {
	e.shutdown()
	e.peer.shutdown()
}

func (e *Endpoint) shutdown() {
	e.mu.Lock()
	select {
	case <-e.done:
		e.mu.Unlock()
		return
	default:
	}
	close(e.done)
	e.inbox <- Message{Event: EventDisconnected, codec: e.codec}
	close(e.inbox)
	e.mu.Unlock()
}

func (e *Endpoint) deliver() {
	for msg := range e.inbox {
		e.bus.Dispatch(msg)
	}
}
