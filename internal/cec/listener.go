package cec

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/events"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

// ListenerID identifies a keypress subscription.
type ListenerID int

type Config struct {
	SocketRoot string
	Debouncer  *Debouncer
	// Decoder is optional; without it the socket waits for an externally
	// started decoder.
	Decoder *Decoder
	Events  events.Publisher
	Logger  *slog.Logger
}

// Listener turns per-key decoder frames into one debounced keypress stream.
type Listener struct {
	socket    *Socket
	debouncer *Debouncer
	decoder   *Decoder
	events    events.Publisher
	logger    *slog.Logger

	mu        sync.RWMutex
	nextID    ListenerID
	callbacks map[ListenerID]func(Key)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewListener(cfg Config) *Listener {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Debouncer == nil {
		cfg.Debouncer = NewDebouncer(DefaultDebounce, nil)
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	l := &Listener{
		socket:    NewSocket(filepath.Join(cfg.SocketRoot, SocketFileName), cfg.Logger),
		debouncer: cfg.Debouncer,
		decoder:   cfg.Decoder,
		events:    cfg.Events,
		logger:    cfg.Logger,
		callbacks: make(map[ListenerID]func(Key)),
	}
	for _, k := range Keys() {
		k := k
		l.socket.AddListener(strconv.Itoa(int(k)), func(Frame) { l.press(k) })
	}
	return l
}

// SocketPath is where the decoder must connect.
func (l *Listener) SocketPath() string { return l.socket.Path() }

// Listen opens the socket and then launches the decoder, if configured.
func (l *Listener) Listen(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	if err := l.socket.Listen(ctx); err != nil {
		cancel()
		return err
	}
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
	if l.decoder == nil || len(l.decoder.Command) == 0 {
		return nil
	}
	if l.decoder.Logger == nil {
		l.decoder.Logger = l.logger
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.decoder.Run(ctx, l.socket.Path())
	}()
	return nil
}

// Close stops the socket and the decoder.
func (l *Listener) Close() error {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	err := l.socket.Close()
	l.wg.Wait()
	return err
}

// OnKeypress subscribes fn to debounced keypresses.
func (l *Listener) OnKeypress(fn func(Key)) ListenerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.callbacks[l.nextID] = fn
	return l.nextID
}

func (l *Listener) RemoveListener(id ListenerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.callbacks, id)
}

func (l *Listener) press(k Key) {
	if !l.debouncer.Allow(k) {
		l.logger.Debug("cec key debounced", "key", k.String())
		return
	}

	l.mu.RLock()
	ids := make([]int, 0, len(l.callbacks))
	for id := range l.callbacks {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	fns := make([]func(Key), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.callbacks[ListenerID(id)])
	}
	l.mu.RUnlock()

	l.events.Publish(protocol.CECKeyPress, protocol.KeyPress{Key: int(k), Name: k.String()})
	for _, fn := range fns {
		fn(k)
	}
}

// Forward pushes keypresses to sess until it disconnects.
func (l *Listener) Forward(sess channel.Session) {
	id := l.OnKeypress(func(k Key) {
		if err := sess.Emit(protocol.CECKeyPress, protocol.KeyPress{Key: int(k), Name: k.String()}); err != nil {
			l.logger.Debug("failed to forward keypress", "session_id", sess.ID(), "error", err)
		}
	})
	sess.On(channel.EventDisconnected, func(channel.Message) { l.RemoveListener(id) })
}
