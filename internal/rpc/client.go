package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

type outcome struct {
	resp  *protocol.Response
	codec protocol.Codec
	err   error
}

type pendingCall struct {
	msgType string
	ch      chan outcome
}

// Client correlates requests and responses over a channel socket.
//
// Every call registers a one-shot entry keyed by a fresh invocation id.
// The first response carrying that id consumes the entry; later or unknown
// ids are logged and dropped. When the socket disconnects every pending
// call fails with channel.ErrDisconnected.
type Client struct {
	sock    channel.Socket
	timeout time.Duration
	logger  *slog.Logger
	newID   func() string

	mu      sync.Mutex
	pending map[string]pendingCall
	cancel  []func()
}

type ClientOption func(*Client)

// WithTimeout sets the default per-call timeout applied when the caller's
// context has no deadline. Zero disables it.
func WithTimeout(d time.Duration) ClientOption { return func(c *Client) { c.timeout = d } }

func WithLogger(l *slog.Logger) ClientOption { return func(c *Client) { c.logger = l } }

// WithIDGenerator overrides the invocation id source.
func WithIDGenerator(fn func() string) ClientOption { return func(c *Client) { c.newID = fn } }

func NewClient(sock channel.Socket, opts ...ClientOption) *Client {
	c := &Client{
		sock:    sock,
		logger:  slog.Default(),
		newID:   uuid.NewString,
		pending: make(map[string]pendingCall),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cancel = []func(){
		sock.On(protocol.EventMessageResponse, c.handleResponse),
		sock.On(channel.EventDisconnected, func(channel.Message) { c.rejectAll(channel.ErrDisconnected) }),
	}
	return c
}

// Close unsubscribes from the socket and fails any pending calls.
func (c *Client) Close() {
	for _, cancel := range c.cancel {
		cancel()
	}
	c.rejectAll(channel.ErrDisconnected)
}

// Pending returns the number of calls awaiting a response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Invoke sends message and waits for its response. On success the
// response payload is decoded into result, which may be nil.
func (c *Client) Invoke(ctx context.Context, message any, result any) error {
	codec := c.sock.Codec()
	raw, err := codec.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	msgType, err := protocol.MessageType(codec, raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	id := c.newID()
	ch := make(chan outcome, 1)

	c.mu.Lock()
	if _, dup := c.pending[id]; dup {
		c.mu.Unlock()
		return fmt.Errorf("invocation id %s already pending", id)
	}
	c.pending[id] = pendingCall{msgType: msgType, ch: ch}
	c.mu.Unlock()

	if err := c.sock.Emit(protocol.EventMessage, protocol.Envelope{InvocationUID: id, Message: raw}); err != nil {
		c.forget(id)
		return fmt.Errorf("send %s: %w", msgType, err)
	}

	select {
	case out := <-ch:
		if out.err != nil {
			return fmt.Errorf("%s: %w", msgType, out.err)
		}
		if !out.resp.Success {
			return &RequestFailedError{Type: msgType, Message: out.resp.Error}
		}
		if result == nil || out.resp.Response.IsNull() {
			return nil
		}
		if err := out.codec.Unmarshal(out.resp.Response, result); err != nil {
			return fmt.Errorf("decode %s response: %w", msgType, err)
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return fmt.Errorf("%s: %w", msgType, ctx.Err())
	}
}

// Call is Invoke with a typed result.
func Call[T any](ctx context.Context, c *Client, message any) (T, error) {
	var out T
	err := c.Invoke(ctx, message, &out)
	return out, err
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) handleResponse(msg channel.Message) {
	resp, err := protocol.DecodeResponse(msg.Codec(), msg.Data)
	if err != nil {
		c.logger.Warn("protocol violation: malformed response", "error", err)
		return
	}

	c.mu.Lock()
	call, ok := c.pending[resp.InvocationUID]
	delete(c.pending, resp.InvocationUID)
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("protocol violation: response for unknown invocation",
			"invocation_uid", resp.InvocationUID)
		return
	}
	call.ch <- outcome{resp: resp, codec: msg.Codec()}
}

func (c *Client) rejectAll(err error) {
	c.mu.Lock()
	calls := c.pending
	c.pending = make(map[string]pendingCall)
	c.mu.Unlock()

	for id, call := range calls {
		c.logger.Debug("rejecting pending invocation", "invocation_uid", id, "type", call.msgType, "error", err)
		call.ch <- outcome{err: err}
	}
}

// IsTransport reports whether err came from a lost connection rather than
// from the server.
func IsTransport(err error) bool {
	return errors.Is(err, channel.ErrDisconnected)
}
