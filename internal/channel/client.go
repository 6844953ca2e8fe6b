package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

// Backoff configures the redial schedule: Initial * 2^(attempt-1), capped at Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // 0 = retry forever
}

// DefaultBackoff returns the default redial schedule.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 1 * time.Second,
		Max:     30 * time.Second,
	}
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Initial
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

// Client keeps one connection to a bridge server alive, redialing on loss.
// Subscriptions live on the client and survive reconnects.
type Client struct {
	url     string
	codec   protocol.Codec
	dialer  *websocket.Dialer
	backoff Backoff
	logger  *slog.Logger
	token   string
	role    string
	bus     *Bus

	mu   sync.RWMutex
	conn *Conn
}

type ClientOption func(*Client)

func WithBackoff(b Backoff) ClientOption { return func(c *Client) { c.backoff = b } }

func WithClientLogger(l *slog.Logger) ClientOption { return func(c *Client) { c.logger = l } }

// WithToken sends token as a bearer credential on every dial.
func WithToken(token string) ClientOption { return func(c *Client) { c.token = token } }

// WithRole announces role to the server on every dial.
func WithRole(role string) ClientOption { return func(c *Client) { c.role = role } }

func NewClient(url string, codec protocol.Codec, opts ...ClientOption) *Client {
	c := &Client{
		url:     url,
		codec:   codec,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff: DefaultBackoff(),
		logger:  slog.Default(),
		bus:     NewBus(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run dials and redials until ctx is cancelled or MaxRetries consecutive
// dials fail. It returns ctx.Err() on cancellation.
func (c *Client) Run(ctx context.Context) error {
	header := http.Header{}
	header.Set("Sec-WebSocket-Protocol", protocol.Subprotocol(c.codec))
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	target, err := c.dialURL()
	if err != nil {
		return err
	}

	failures := 0
	for {
		ws, _, err := c.dialer.DialContext(ctx, target, header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if c.backoff.MaxRetries > 0 && failures > c.backoff.MaxRetries {
				return fmt.Errorf("channel: max retries exceeded (%d attempts): %w", c.backoff.MaxRetries, err)
			}
			delay := c.backoff.Delay(failures)
			c.logger.Warn("bridge dial failed, retrying", "url", c.url, "attempt", failures, "delay", delay, "error", err)
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			continue
		}
		failures = 0

		conn := newConn(uuid.NewString(), ws, c.codec, c.bus, c.logger)
		c.setConn(conn)
		conn.logger.Info("connected to bridge", "url", c.url)
		c.bus.Dispatch(Message{Event: EventConnected, codec: c.codec})

		stop := context.AfterFunc(ctx, conn.Close)
		runErr := conn.run()
		stop()

		c.setConn(nil)
		c.bus.Dispatch(Message{Event: EventDisconnected, codec: c.codec})

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("bridge connection lost, reconnecting", "error", runErr)
		if !sleepCtx(ctx, c.backoff.Delay(1)) {
			return ctx.Err()
		}
	}
}

func (c *Client) dialURL() (string, error) {
	if c.role == "" {
		return c.url, nil
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("channel: parse url: %w", err)
	}
	q := u.Query()
	q.Set("role", c.role)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) setConn(conn *Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Client) Emit(event string, payload any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrDisconnected
	}
	return conn.Emit(event, payload)
}

func (c *Client) Codec() protocol.Codec { return c.codec }

func (c *Client) On(event string, h Handler) func()   { return c.bus.On(event, h) }
func (c *Client) Once(event string, h Handler) func() { return c.bus.Once(event, h) }

// WaitConnected blocks until a connection is up or ctx ends.
func (c *Client) WaitConnected(ctx context.Context) error {
	ready := make(chan struct{})
	var once sync.Once
	cancel := c.bus.On(EventConnected, func(Message) { once.Do(func() { close(ready) }) })
	defer cancel()

	if c.Connected() {
		return nil
	}
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
