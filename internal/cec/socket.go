package cec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack"
)

// SocketFileName is the socket created under the socket root.
const SocketFileName = "cec.sock"

// Frame is one notification written by the decoder process. Channel names
// the sub-channel, which for keys is the decimal key code.
type Frame struct {
	Channel string `msgpack:"channel"`
	Data    []byte `msgpack:"data,omitempty"`
}

// Socket serves a local unix socket and fans decoder frames out to
// per-channel listeners.
type Socket struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[string][]func(Frame)
	ln        net.Listener
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
}

func NewSocket(path string, logger *slog.Logger) *Socket {
	return &Socket{
		path:      path,
		logger:    logger,
		listeners: make(map[string][]func(Frame)),
		conns:     make(map[net.Conn]struct{}),
	}
}

func (s *Socket) Path() string { return s.path }

// AddListener subscribes fn to frames on channel.
func (s *Socket) AddListener(channel string, fn func(Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[channel] = append(s.listeners[channel], fn)
}

// Listen binds the socket, replacing a stale file, and accepts decoder
// connections until Close or ctx ends.
func (s *Socket) Listen(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go s.accept(ln)
	context.AfterFunc(ctx, func() { _ = s.Close() })
	s.logger.Info("cec socket listening", "path", s.path)
	return nil
}

func (s *Socket) accept(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("cec socket accept failed", "error", err)
			}
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Socket) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	dec := msgpack.NewDecoder(conn)
	for {
		var f Frame
		if err := dec.Decode(&f); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("cec frame decode failed, dropping connection", "error", err)
			}
			return
		}
		s.dispatch(f)
	}
}

func (s *Socket) dispatch(f Frame) {
	s.mu.RLock()
	fns := s.listeners[f.Channel]
	s.mu.RUnlock()
	if len(fns) == 0 {
		s.logger.Debug("cec frame on unknown channel", "channel", f.Channel)
		return
	}
	for _, fn := range fns {
		fn(f)
	}
}

// Close stops accepting, drops decoder connections and removes the file.
func (s *Socket) Close() error {
	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	err := ln.Close()
	s.wg.Wait()
	return err
}
