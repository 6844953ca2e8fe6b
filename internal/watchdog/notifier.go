package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/clock"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

// DefaultNotifyInterval keeps a healthy client well inside DefaultTimeout.
const DefaultNotifyInterval = 20 * time.Second

// Notifier is the client half: it reports aliveness on a fixed interval.
type Notifier struct {
	Socket   channel.Socket
	Interval time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
}

// NotifyAlive emits one alive frame.
func NotifyAlive(sock channel.Socket) error {
	return sock.Emit(protocol.NotifyApplicationAlive, nil)
}

// Run emits immediately and then every Interval until ctx ends. Send
// failures are logged; a disconnected channel recovers on its own.
func (n *Notifier) Run(ctx context.Context) error {
	interval := n.Interval
	if interval <= 0 {
		interval = DefaultNotifyInterval
	}
	clk := n.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for {
		if err := NotifyAlive(n.Socket); err != nil {
			logger.Debug("alive notification not sent", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(interval):
		}
	}
}
