package video

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/signbridge/internal/clock"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

type SlotState int

const (
	StateIdle SlotState = iota
	StateHasProcess
	StatePlaying
)

func (s SlotState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHasProcess:
		return "has_process"
	case StatePlaying:
		return "playing"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

// ExitEvent reports a decoder that ended on its own. Kind is one of
// protocol.VideoEnded, protocol.VideoStopped or protocol.VideoError.
type ExitEvent struct {
	Kind    string
	Args    protocol.VideoArgs
	Status  ExitStatus
	Message string
}

func exitEvent(args protocol.VideoArgs, st ExitStatus) ExitEvent {
	ev := ExitEvent{Args: args, Status: st}
	switch {
	case st.Signaled:
		ev.Kind = protocol.VideoStopped
	case st.Code == 0:
		ev.Kind = protocol.VideoEnded
	default:
		ev.Kind = protocol.VideoError
		ev.Message = fmt.Sprintf("Process finished with exit code %d", st.Code)
	}
	return ev
}

// Slot is one unit of decode capacity. Its state changes through
// directives (prepare, play, stop) and through the attached process
// exiting; either may happen at any time.
type Slot struct {
	index    int
	launcher Launcher
	warmUp   time.Duration
	clock    clock.Clock
	onExit   func(ExitEvent)
	logger   *slog.Logger

	mu    sync.Mutex
	state SlotState
	proc  Process
	args  *protocol.VideoCommand
	// finished is set when the attached process exited by itself, so stop
	// must not signal it again.
	finished bool
}

func newSlot(index int, launcher Launcher, warmUp time.Duration, clk clock.Clock, onExit func(ExitEvent), logger *slog.Logger) *Slot {
	return &Slot{
		index:    index,
		launcher: launcher,
		warmUp:   warmUp,
		clock:    clk,
		onExit:   onExit,
		logger:   logger.With("slot", index),
	}
}

// Prepare replaces any attached process with a new one for cmd and
// waits for the decoder to warm up.
func (s *Slot) Prepare(ctx context.Context, cmd protocol.VideoCommand) error {
	if err := s.attach(ctx, cmd); err != nil {
		return err
	}
	return s.waitWarmUp(ctx)
}

func (s *Slot) attach(ctx context.Context, cmd protocol.VideoCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil {
		if err := s.stopLocked(ctx); err != nil {
			s.logger.Warn("failed to stop previous video", "error", err)
		}
	}

	proc, err := s.launcher.Launch(ctx, cmd)
	if err != nil {
		return fmt.Errorf("launch decoder: %w", err)
	}
	s.proc = proc
	s.args = &cmd
	s.state = StateHasProcess
	s.finished = false

	go s.watch(proc, cmd.VideoArgs)
	s.logger.Info("video prepared", "uri", cmd.URI, "stream", cmd.IsStream)
	return nil
}

func (s *Slot) waitWarmUp(ctx context.Context) error {
	if s.warmUp <= 0 {
		return nil
	}
	select {
	case <-s.clock.After(s.warmUp):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Slot) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc == nil {
		return fmt.Errorf("slot %d: %w", s.index, ErrNotPrepared)
	}
	if err := s.proc.Play(ctx); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	s.finished = false
	s.state = StatePlaying
	return nil
}

func (s *Slot) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc == nil {
		return fmt.Errorf("slot %d: %w", s.index, ErrNotPlaying)
	}
	return s.stopLocked(ctx)
}

func (s *Slot) stopLocked(ctx context.Context) error {
	var err error
	if !s.finished {
		err = s.proc.Stop(ctx)
	}
	s.state = StateIdle
	s.proc = nil
	s.args = nil
	s.finished = false
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// Pause is not supported by the decoder.
func (s *Slot) Pause(context.Context) error { return ErrNotImplemented }

// Resume is not supported by the decoder.
func (s *Slot) Resume(context.Context) error { return ErrNotImplemented }

func (s *Slot) watch(proc Process, args protocol.VideoArgs) {
	st, ok := <-proc.Wait()
	if !ok {
		return
	}

	s.mu.Lock()
	if s.proc != proc {
		// Stopped or replaced through a directive; the directive's caller
		// reports the outcome.
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.finished = true
	s.mu.Unlock()

	ev := exitEvent(args, st)
	s.logger.Info("video process exited", "uri", args.URI, "status", st.String(), "event", ev.Kind)
	if s.onExit != nil {
		s.onExit(ev)
	}
}

func (s *Slot) State() SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Args returns the command the slot is bound to, if any.
func (s *Slot) Args() (protocol.VideoCommand, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.args == nil {
		return protocol.VideoCommand{}, false
	}
	return *s.args, true
}

func (s *Slot) boundTo(args protocol.VideoArgs) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.args != nil && s.args.VideoArgs == args
}

// free reports whether the slot can take a new video.
func (s *Slot) free() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc == nil || s.finished
}

func (s *Slot) attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil
}
