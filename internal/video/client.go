package video

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

// Event kinds delivered on a Playback.
const (
	EventStarted = "started"
	EventEnded   = "ended"
	EventStopped = "stopped"
	EventFailed  = "failed"
)

var eventKinds = map[string]string{
	protocol.VideoStarted: EventStarted,
	protocol.VideoEnded:   EventEnded,
	protocol.VideoStopped: EventStopped,
	protocol.VideoError:   EventFailed,
}

// Event is a playback notification. Args.URI is the caller's full URI.
type Event struct {
	Type    string
	Args    protocol.VideoArgs
	Message string
}

// Playback is the caller's handle on a playing video.
type Playback struct {
	id     string
	args   protocol.VideoArgs
	events <-chan Event
}

func (p *Playback) ID() string               { return p.id }
func (p *Playback) Args() protocol.VideoArgs { return p.args }

// Events is closed when the playback is stopped or cleared.
func (p *Playback) Events() <-chan Event { return p.events }

type entry struct {
	id   string
	args protocol.VideoArgs // relative URI

	control     chan Result
	events      chan Event
	closed      bool
	placeholder Placeholder
}

// Client drives server-side video playback over a channel socket. All
// operations are serialized by one FIFO lock per client; server events
// are matched to operations by region tuple.
type Client struct {
	sock         channel.Socket
	root         string
	placeholders Placeholders
	logger       *slog.Logger

	lock    TicketLock
	waiters *Waiters

	// mu guards the tables below. They change only while lock is held,
	// but event routing reads them from the socket goroutine.
	mu       sync.Mutex
	prepared map[string]struct{}
	playing  map[string]*entry
}

type ClientConfig struct {
	// FileSystemRoot is the URL prefix all video URIs must start with.
	FileSystemRoot string
	Placeholders   Placeholders
	Logger         *slog.Logger
}

func NewClient(sock channel.Socket, cfg ClientConfig) *Client {
	if cfg.Placeholders == nil {
		cfg.Placeholders = NopPlaceholders{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Client{
		sock:         sock,
		root:         strings.TrimSuffix(cfg.FileSystemRoot, "/"),
		placeholders: cfg.Placeholders,
		logger:       cfg.Logger,
		waiters:      NewWaiters(),
		prepared:     make(map[string]struct{}),
		playing:      make(map[string]*entry),
	}

	for _, kind := range []string{
		protocol.VideoPrepared, protocol.VideoStarted, protocol.VideoEnded,
		protocol.VideoStopped, protocol.VideoError,
	} {
		kind := kind
		sock.On(kind, func(msg channel.Message) { c.handleEvent(kind, msg) })
	}
	sock.On(protocol.AllVideosStopped, func(channel.Message) {
		c.waiters.Deliver(protocol.AllVideosStopped, protocol.VideoEvent{})
	})
	sock.On(channel.EventDisconnected, func(channel.Message) { c.handleDisconnect() })
	return c
}

func (c *Client) relative(args protocol.VideoArgs) (protocol.VideoArgs, error) {
	prefix := c.root + "/"
	if !strings.HasPrefix(args.URI, prefix) || len(args.URI) == len(prefix) {
		return protocol.VideoArgs{}, fmt.Errorf("%w: %s", ErrNotLocalStorage, args.URI)
	}
	args.URI = args.URI[len(prefix):]
	return args, nil
}

func (c *Client) absolute(args protocol.VideoArgs) protocol.VideoArgs {
	args.URI = c.root + "/" + args.URI
	return args
}

// Prepare asks the server to warm up a decoder for args. Preparing an
// already prepared region returns immediately.
func (c *Client) Prepare(ctx context.Context, args protocol.VideoArgs, isStream bool) error {
	rel, err := c.relative(args)
	if err != nil {
		return err
	}
	if err := c.lock.Lock(ctx); err != nil {
		return err
	}
	defer c.lock.Unlock()
	return c.prepareLocked(ctx, rel, isStream)
}

func (c *Client) prepareLocked(ctx context.Context, rel protocol.VideoArgs, isStream bool) error {
	id := ResourceID(rel)
	c.mu.Lock()
	_, done := c.prepared[id]
	c.mu.Unlock()
	if done {
		return nil
	}

	ch, cancel := c.waiters.Add(rel, protocol.VideoPrepared, protocol.VideoError)
	defer cancel()

	if err := c.sock.Emit(protocol.PrepareVideo, protocol.VideoCommand{VideoArgs: rel, IsStream: isStream}); err != nil {
		return fmt.Errorf("send prepare: %w", err)
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("prepare %s: %w", rel.URI, res.Err)
		}
		if res.Kind == protocol.VideoError {
			return &EventError{Op: "prepare", Args: c.absolute(rel), Message: eventMessage(res.Event)}
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	c.prepared[id] = struct{}{}
	c.mu.Unlock()
	c.logger.Debug("video prepared", "video_id", id)
	return nil
}

// Play prepares args if needed, starts playback and shows the
// freeze-frame placeholder over the region.
func (c *Client) Play(ctx context.Context, args protocol.VideoArgs, isStream bool) (*Playback, error) {
	rel, err := c.relative(args)
	if err != nil {
		return nil, err
	}
	if err := c.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer c.lock.Unlock()

	id := ResourceID(rel)
	c.mu.Lock()
	_, exists := c.playing[id]
	c.mu.Unlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPlaying, args.URI)
	}

	if err := c.prepareLocked(ctx, rel, isStream); err != nil {
		return nil, err
	}
	e, err := c.playLocked(ctx, id, rel)
	if err != nil {
		return nil, err
	}

	ph, err := c.placeholders.Show(ctx, id, rel)
	if err != nil {
		c.logger.Warn("failed to show freeze frame", "video_id", id, "error", err)
	} else {
		c.mu.Lock()
		gone := e.closed
		if !gone {
			e.placeholder = ph
		}
		c.mu.Unlock()
		if gone {
			// Disconnected while showing it.
			if err := ph.Hide(ctx); err != nil {
				c.logger.Warn("failed to remove freeze frame", "video_id", id, "error", err)
			}
		}
	}

	return &Playback{id: id, args: args, events: e.events}, nil
}

func (c *Client) playLocked(ctx context.Context, id string, rel protocol.VideoArgs) (*entry, error) {
	e := &entry{
		id:      id,
		args:    rel,
		control: make(chan Result, 8),
		events:  make(chan Event, 16),
	}
	c.mu.Lock()
	c.playing[id] = e
	c.mu.Unlock()

	fail := func(err error) (*entry, error) {
		c.mu.Lock()
		c.removeLocked(e)
		delete(c.prepared, id)
		c.mu.Unlock()
		return nil, err
	}

	if err := c.sock.Emit(protocol.PlayVideo, protocol.VideoCommand{VideoArgs: rel}); err != nil {
		return fail(fmt.Errorf("send play: %w", err))
	}

	for {
		select {
		case res := <-e.control:
			switch {
			case res.Err != nil:
				return fail(fmt.Errorf("play %s: %w", rel.URI, res.Err))
			case res.Kind == protocol.VideoStarted:
				return e, nil
			case res.Kind == protocol.VideoError:
				return fail(&EventError{Op: "play", Args: c.absolute(rel), Message: eventMessage(res.Event)})
			}
		case <-ctx.Done():
			return fail(ctx.Err())
		}
	}
}

// Stop ends playback of args and removes its placeholder.
func (c *Client) Stop(ctx context.Context, args protocol.VideoArgs) error {
	rel, err := c.relative(args)
	if err != nil {
		return err
	}
	if err := c.lock.Lock(ctx); err != nil {
		return err
	}
	defer c.lock.Unlock()

	id := ResourceID(rel)
	c.mu.Lock()
	e, ok := c.playing[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPlaying, args.URI)
	}

	drain(e.control)
	if err := c.sock.Emit(protocol.StopVideo, protocol.VideoCommand{VideoArgs: rel}); err != nil {
		return fmt.Errorf("send stop: %w", err)
	}

wait:
	for {
		select {
		case res := <-e.control:
			// Stopped and Error both mean the decoder is gone.
			if res.Err != nil || res.Kind == protocol.VideoStopped || res.Kind == protocol.VideoError {
				break wait
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.hidePlaceholder(ctx, e)
	c.mu.Lock()
	c.removeLocked(e)
	delete(c.prepared, id)
	c.mu.Unlock()
	return nil
}

// ClearAll stops every video on the server and resets local bookkeeping
// once the server acknowledges, without waiting for per-video replies.
func (c *Client) ClearAll(ctx context.Context) error {
	if err := c.lock.Lock(ctx); err != nil {
		return err
	}
	defer c.lock.Unlock()

	c.mu.Lock()
	entries := make([]*entry, 0, len(c.playing))
	for _, e := range c.playing {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	// The tables are emptied on every return once freeze frames start
	// going away, acknowledged or not.
	defer c.reset()
	for _, e := range entries {
		c.hidePlaceholder(ctx, e)
	}

	ch, cancel := c.waiters.Add(protocol.VideoArgs{}, protocol.AllVideosStopped)
	defer cancel()
	if err := c.sock.Emit(protocol.StopAllVideos, nil); err != nil {
		return fmt.Errorf("send stop all: %w", err)
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("stop all: %w", res.Err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// reset drops every playing entry and forgets prepared regions.
func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.playing {
		c.removeLocked(e)
	}
	c.prepared = make(map[string]struct{})
}

// Pause is not supported by the decoder.
func (c *Client) Pause(context.Context, protocol.VideoArgs) error { return ErrNotImplemented }

// Resume is not supported by the decoder.
func (c *Client) Resume(context.Context, protocol.VideoArgs) error { return ErrNotImplemented }

// PreparedCount returns the number of regions known to be prepared.
func (c *Client) PreparedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prepared)
}

// PlayingCount returns the number of tracked playbacks.
func (c *Client) PlayingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.playing)
}

func (c *Client) hidePlaceholder(ctx context.Context, e *entry) {
	c.mu.Lock()
	ph := e.placeholder
	e.placeholder = nil
	c.mu.Unlock()
	if ph == nil {
		return
	}
	if err := ph.Hide(ctx); err != nil {
		c.logger.Warn("failed to remove freeze frame", "video_id", e.id, "error", err)
	}
}

// removeLocked drops e from the playing table and closes its event stream.
func (c *Client) removeLocked(e *entry) {
	if cur, ok := c.playing[e.id]; ok && cur == e {
		delete(c.playing, e.id)
	}
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}

func (c *Client) handleEvent(kind string, msg channel.Message) {
	var ev protocol.VideoEvent
	if err := msg.Decode(&ev); err != nil {
		c.logger.Warn("dropping malformed video event", "event", kind, "error", err)
		return
	}
	c.waiters.Deliver(kind, ev)

	public, ok := eventKinds[kind]
	if !ok {
		return
	}
	id := ResourceID(ev.VideoArgs)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.playing[id]
	if !ok || e.closed {
		return
	}
	if kind != protocol.VideoStarted {
		// The decoder is gone; the next play has to prepare again.
		delete(c.prepared, id)
	}
	select {
	case e.control <- Result{Kind: kind, Event: ev}:
	default:
		c.logger.Warn("video control queue full", "video_id", id, "event", kind)
	}
	select {
	case e.events <- Event{Type: public, Args: c.absolute(ev.VideoArgs), Message: eventMessage(ev)}:
	default:
		c.logger.Warn("video event dropped, consumer too slow", "video_id", id, "event", kind)
	}
}

func (c *Client) handleDisconnect() {
	c.waiters.FailAll(channel.ErrDisconnected)

	// The server may come back without our decoders.
	c.mu.Lock()
	var placeholders []Placeholder
	for _, e := range c.playing {
		select {
		case e.control <- Result{Err: channel.ErrDisconnected}:
		default:
		}
		if e.placeholder != nil {
			placeholders = append(placeholders, e.placeholder)
			e.placeholder = nil
		}
		c.removeLocked(e)
	}
	c.prepared = make(map[string]struct{})
	c.mu.Unlock()

	if len(placeholders) == 0 {
		return
	}
	// Hiding may block; the socket goroutine must not.
	go func() {
		for _, ph := range placeholders {
			if err := ph.Hide(context.Background()); err != nil {
				c.logger.Warn("failed to remove freeze frame", "error", err)
			}
		}
	}()
}

func eventMessage(ev protocol.VideoEvent) string {
	if ev.Data == nil {
		return ""
	}
	return ev.Data.Message
}

func drain(ch chan Result) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
