package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/signbridge/internal/clock"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

const (
	DefaultSlots  = 2
	DefaultWarmUp = time.Second
)

type PlayerConfig struct {
	Slots  int
	WarmUp time.Duration
	Clock  clock.Clock
	Logger *slog.Logger
}

// Player owns a fixed pool of slots and routes commands to the slot bound
// to the command's region.
type Player struct {
	logger *slog.Logger

	// mu serializes slot selection and directives; warm-up waits run
	// outside it.
	mu    sync.Mutex
	slots []*Slot

	listenerMu sync.RWMutex
	listeners  []func(ExitEvent)
}

func NewPlayer(launcher Launcher, cfg PlayerConfig) *Player {
	if cfg.Slots <= 0 {
		cfg.Slots = DefaultSlots
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Player{logger: cfg.Logger}
	p.slots = make([]*Slot, cfg.Slots)
	for i := range p.slots {
		p.slots[i] = newSlot(i, launcher, cfg.WarmUp, cfg.Clock, p.emitExit, cfg.Logger)
	}
	return p
}

// OnExit registers fn for decoder processes that end on their own.
func (p *Player) OnExit(fn func(ExitEvent)) {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *Player) emitExit(ev ExitEvent) {
	p.listenerMu.RLock()
	listeners := append([]func(ExitEvent){}, p.listeners...)
	p.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// Prepare binds cmd to a slot: the slot already bound to the same region
// if there is one, otherwise a free slot.
func (p *Player) Prepare(ctx context.Context, cmd protocol.VideoCommand) error {
	p.mu.Lock()
	slot := p.findLocked(cmd.VideoArgs)
	if slot == nil {
		for _, s := range p.slots {
			if s.free() {
				slot = s
				break
			}
		}
	}
	if slot == nil {
		p.mu.Unlock()
		return ErrNoFreeSlot
	}
	err := slot.attach(ctx, cmd)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return slot.waitWarmUp(ctx)
}

func (p *Player) Play(ctx context.Context, args protocol.VideoArgs) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot := p.findLocked(args)
	if slot == nil {
		return fmt.Errorf("%s: %w", args.URI, ErrNotPrepared)
	}
	return slot.Play(ctx)
}

func (p *Player) Stop(ctx context.Context, args protocol.VideoArgs) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot := p.findLocked(args)
	if slot == nil {
		return fmt.Errorf("%s: %w", args.URI, ErrNotPlaying)
	}
	return slot.Stop(ctx)
}

// StopAll stops every slot with an attached process.
func (p *Player) StopAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, s := range p.slots {
		if !s.attached() {
			continue
		}
		if err := s.Stop(ctx); err != nil && !errors.Is(err, ErrNotPlaying) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Player) findLocked(args protocol.VideoArgs) *Slot {
	for _, s := range p.slots {
		if s.boundTo(args) {
			return s
		}
	}
	return nil
}

// SlotInfo is a point-in-time view of one slot.
type SlotInfo struct {
	Index int    `json:"index"`
	State string `json:"state"`
	URI   string `json:"uri,omitempty"`
}

func (p *Player) Snapshot() []SlotInfo {
	out := make([]SlotInfo, len(p.slots))
	for i, s := range p.slots {
		info := SlotInfo{Index: i, State: s.State().String()}
		if args, ok := s.Args(); ok {
			info.URI = args.URI
		}
		out[i] = info
	}
	return out
}

// Busy returns how many slots have a process attached.
func (p *Player) Busy() int {
	n := 0
	for _, s := range p.slots {
		if s.attached() {
			n++
		}
	}
	return n
}
