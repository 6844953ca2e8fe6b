package channel

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

// Server accepts client connections on an HTTP route and runs each one
// until it drops. Components attach per-connection handlers through
// OnConnect.
type Server struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	conns    map[string]*Conn
	handlers []func(Session)
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols: []string{
				protocol.Subprotocol(protocol.CBOR),
				protocol.Subprotocol(protocol.JSON),
			},
			// The display runtime loads from file:// and localhost origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[string]*Conn),
	}
}

// OnConnect registers fn to run for every new connection, before its
// first frame is read. Register all hooks before serving.
func (s *Server) OnConnect(fn func(Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// ServeHTTP upgrades the request and blocks until the connection ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	codec, err := protocol.CodecByName(ws.Subprotocol())
	if err != nil {
		codec = protocol.JSON
	}

	conn := newConn(uuid.NewString(), ws, codec, NewBus(), s.logger)
	if role := r.URL.Query().Get("role"); role != "" {
		conn.role = role
	}

	s.mu.Lock()
	s.conns[conn.id] = conn
	handlers := append([]func(Session){}, s.handlers...)
	s.mu.Unlock()

	conn.logger.Info("client connected", "remote", r.RemoteAddr, "role", conn.role)
	for _, fn := range handlers {
		fn(conn)
	}
	conn.bus.Dispatch(Message{Event: EventConnected, codec: codec})

	if err := conn.run(); err != nil {
		conn.logger.Warn("client connection lost", "error", err)
	} else {
		conn.logger.Info("client disconnected")
	}

	s.mu.Lock()
	delete(s.conns, conn.id)
	s.mu.Unlock()

	conn.bus.Dispatch(Message{Event: EventDisconnected, codec: codec})
}

// Broadcast emits to every connected client and returns how many received it.
func (s *Server) Broadcast(event string, payload any) int {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	sent := 0
	for _, c := range conns {
		if err := c.Emit(event, payload); err != nil {
			c.logger.Debug("broadcast failed", "event", event, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// Sessions returns the number of live connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close drops every live connection.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
