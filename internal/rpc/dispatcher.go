package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

// Request is one decoded invocation as seen by a handler.
type Request struct {
	Type string
	// SessionID is empty for requests that arrived over HTTP.
	SessionID string
	Data      protocol.Raw
	codec     protocol.Codec
}

// Decode unmarshals the full message (including its type tag) into v.
func (r Request) Decode(v any) error {
	if err := r.codec.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidMessage, r.Type, err)
	}
	return nil
}

// HandlerFunc serves one message type. A nil result is sent as an empty response.
type HandlerFunc func(ctx context.Context, req Request) (any, error)

// PanicError wraps a recovered handler panic.
type PanicError struct {
	Type  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler for %s panicked: %v", e.Type, e.Value)
}

// Dispatcher routes messages to handlers by their "type" tag.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers h for msgType, replacing any previous handler.
func (d *Dispatcher) Handle(msgType string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[msgType] = h
}

// Types lists registered message types in sorted order.
func (d *Dispatcher) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Dispatch decodes message with codec and runs its handler. A handler
// panic is returned as *PanicError so callers decide how loudly to fail.
func (d *Dispatcher) Dispatch(ctx context.Context, codec protocol.Codec, sessionID string, message []byte) (result any, err error) {
	msgType, err := protocol.MessageType(codec, message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	d.mu.RLock()
	h, ok := d.handlers[msgType]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msgType)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Type: msgType, Value: r, Stack: debug.Stack()}
		}
	}()
	return h(ctx, Request{Type: msgType, SessionID: sessionID, Data: message, codec: codec})
}

// Attach serves invocations arriving on s until it disconnects. Each
// invocation runs on its own goroutine so a slow handler does not block
// the connection.
func (d *Dispatcher) Attach(s channel.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := d.logger.With("session_id", s.ID())

	s.On(channel.EventDisconnected, func(channel.Message) { cancel() })
	s.On(protocol.EventMessage, func(msg channel.Message) {
		var env protocol.Envelope
		if err := msg.Decode(&env); err != nil || env.InvocationUID == "" {
			logger.Warn("dropping malformed invocation", "error", err)
			return
		}
		go d.serve(ctx, s, msg.Codec(), env, logger)
	})
}

func (d *Dispatcher) serve(ctx context.Context, s channel.Session, codec protocol.Codec, env protocol.Envelope, logger *slog.Logger) {
	resp := protocol.Response{InvocationUID: env.InvocationUID}

	result, err := d.Dispatch(ctx, codec, s.ID(), env.Message)
	switch {
	case err == nil:
		resp.Success = true
		if result != nil {
			raw, encErr := codec.Marshal(result)
			if encErr != nil {
				resp.Success = false
				resp.Error = encErr.Error()
				logger.Error("failed to encode invocation result", "invocation_uid", env.InvocationUID, "error", encErr)
			} else {
				resp.Response = raw
			}
		}
	default:
		resp.Error = err.Error()
		var pe *PanicError
		if errors.As(err, &pe) {
			logger.Error("invocation handler panicked", "invocation_uid", env.InvocationUID,
				"type", pe.Type, "panic", fmt.Sprint(pe.Value), "stack", string(pe.Stack))
		} else {
			logger.Debug("invocation failed", "invocation_uid", env.InvocationUID, "error", err)
		}
	}

	if err := s.Emit(protocol.EventMessageResponse, resp); err != nil {
		logger.Warn("failed to send invocation response", "invocation_uid", env.InvocationUID, "error", err)
	}
}
