package channel

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// maxFrameBytes caps a single inbound frame.
	maxFrameBytes = 16 << 20
)

// Conn is one live WebSocket connection. Received frames are dispatched
// on bus, which may be shared with other connections (the client reuses
// one bus across reconnects).
type Conn struct {
	id     string
	role   string
	ws     *websocket.Conn
	codec  protocol.Codec
	bus    *Bus
	logger *slog.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, codec protocol.Codec, bus *Bus, logger *slog.Logger) *Conn {
	return &Conn{
		id:     id,
		role:   RoleApplication,
		ws:     ws,
		codec:  codec,
		bus:    bus,
		logger: logger.With("session_id", id, "codec", codec.Name()),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Role() string { return c.role }

func (c *Conn) Codec() protocol.Codec { return c.codec }

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Emit(event string, payload any) error {
	select {
	case <-c.done:
		return ErrDisconnected
	default:
	}

	b, err := protocol.EncodeFrame(c.codec, event, payload)
	if err != nil {
		return err
	}
	msgType := websocket.TextMessage
	if c.codec.Binary() {
		msgType = websocket.BinaryMessage
	}

	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.ws.WriteMessage(msgType, b)
	c.writeMu.Unlock()
	if err != nil {
		c.Close()
		return fmt.Errorf("%w: write %s: %v", ErrDisconnected, event, err)
	}
	return nil
}

func (c *Conn) On(event string, h Handler) func()   { return c.bus.On(event, h) }
func (c *Conn) Once(event string, h Handler) func() { return c.bus.Once(event, h) }

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		// WriteControl is safe alongside WriteMessage.
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.ws.Close()
	})
}

// run pumps frames until the connection fails or is closed.
func (c *Conn) run() error {
	defer c.Close()

	c.ws.SetReadLimit(maxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		frame, err := protocol.DecodeFrame(c.codec, data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		if !c.bus.Dispatch(Message{Event: frame.Event, Data: frame.Data, codec: c.codec}) {
			c.logger.Debug("no listener for event", "event", frame.Event)
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}
