package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/clock"
	"github.com/mattjoyce/signbridge/internal/events"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

// DefaultTimeout is how long a session may stay silent.
const DefaultTimeout = 60 * time.Second

// Reason says why a restart happened.
type Reason string

const (
	ReasonTimeout    Reason = "timeout"
	ReasonDisconnect Reason = "disconnect"
)

// EventRestart is published on the events hub for every restart.
const EventRestart = "watchdog.restart"

//go:generate mockgen -destination=mocks/mock_watchdog.go -package=mocks github.com/mattjoyce/signbridge/internal/watchdog Restarter,Recorder

// Restarter restarts the native application. It runs synchronously on the
// goroutine that detected the failure.
type Restarter interface {
	Restart(ctx context.Context, reason Reason) error
}

// Restart is one journalled restart.
type Restart struct {
	Reason    Reason    `json:"reason"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Error     string    `json:"error,omitempty"`
}

// Recorder persists restarts.
type Recorder interface {
	RecordRestart(ctx context.Context, r Restart) error
}

type Config struct {
	Timeout   time.Duration
	Clock     clock.Clock
	Restarter Restarter
	Recorder  Recorder
	Events    events.Publisher
	Logger    *slog.Logger
}

// supervised is the single active deadline and its session bindings.
type supervised struct {
	session channel.Session
	timer   *clock.Timer
	cancels []func()
}

type Watchdog struct {
	timeout   time.Duration
	clock     clock.Clock
	restarter Restarter
	recorder  Recorder
	events    events.Publisher
	logger    *slog.Logger

	mu       sync.Mutex
	current  *supervised
	restarts int
}

func New(cfg Config) *Watchdog {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watchdog{
		timeout:   cfg.Timeout,
		clock:     cfg.Clock,
		restarter: cfg.Restarter,
		recorder:  cfg.Recorder,
		events:    cfg.Events,
		logger:    cfg.Logger,
	}
}

// Attach starts supervising sess, replacing any previously supervised
// session without restarting.
func (w *Watchdog) Attach(sess channel.Session) {
	s := &supervised{session: sess}

	w.mu.Lock()
	if prev := w.current; prev != nil {
		w.logger.Info("watchdog replacing supervised session", "old_session_id", prev.session.ID(), "session_id", sess.ID())
		prev.release()
	}
	w.current = s
	s.timer = w.clock.AfterFunc(w.timeout, func() { w.fire(s, ReasonTimeout) })
	s.cancels = append(s.cancels,
		sess.On(protocol.NotifyApplicationAlive, func(channel.Message) { w.alive(s) }),
		sess.On(channel.EventDisconnected, func(channel.Message) { w.fire(s, ReasonDisconnect) }),
	)
	w.mu.Unlock()

	w.logger.Debug("watchdog armed", "session_id", sess.ID(), "timeout", w.timeout)
}

// Restarts is the number of restarts since start.
func (w *Watchdog) Restarts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.restarts
}

// Supervising reports whether a session currently holds a deadline.
func (w *Watchdog) Supervising() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current != nil
}

// Stop disarms the watchdog without restarting.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil {
		w.current.release()
		w.current = nil
	}
}

func (w *Watchdog) alive(s *supervised) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != s {
		return
	}
	s.timer.Reset(w.timeout)
}

func (w *Watchdog) fire(s *supervised, reason Reason) {
	w.mu.Lock()
	if w.current != s {
		w.mu.Unlock()
		return
	}
	w.current = nil
	w.restarts++
	w.mu.Unlock()

	// Cancelling subscriptions from inside a dispatch is safe on the bus.
	s.release()
	w.restart(s.session.ID(), reason)
}

func (w *Watchdog) restart(sessionID string, reason Reason) {
	w.logger.Warn("restarting application", "reason", string(reason), "session_id", sessionID)

	rec := Restart{Reason: reason, SessionID: sessionID, At: w.clock.Now().UTC()}
	ctx := context.Background()
	if w.restarter != nil {
		if err := w.restarter.Restart(ctx, reason); err != nil {
			rec.Error = err.Error()
			w.logger.Error("application restart failed", "reason", string(reason), "error", err)
		}
	}
	if w.recorder != nil {
		if err := w.recorder.RecordRestart(ctx, rec); err != nil {
			w.logger.Error("failed to journal restart", "error", err)
		}
	}
	w.events.Publish(EventRestart, rec)
}

func (s *supervised) release() {
	if s.timer != nil {
		s.timer.Stop()
	}
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}
