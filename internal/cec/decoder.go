package cec

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/mattjoyce/signbridge/internal/channel"
)

// Decoder runs the external process that reads the CEC bus and writes
// key frames to the socket. Arguments may contain {socket}; without it the
// socket path is appended.
type Decoder struct {
	Command []string
	// Respawn restarts the process after it exits, on the backoff schedule.
	Respawn bool
	Backoff channel.Backoff
	Logger  *slog.Logger
}

// Run starts the decoder and blocks until it exits for good or ctx ends.
// Exits are logged, never returned.
func (d *Decoder) Run(ctx context.Context, socketPath string) {
	args := d.args(socketPath)
	if d.Backoff.Initial <= 0 {
		d.Backoff = channel.DefaultBackoff()
	}
	attempt := 0
	for {
		started := time.Now()
		err := d.runOnce(ctx, args)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			d.Logger.Error("cec decoder failed", "error", err)
		} else {
			d.Logger.Warn("cec decoder exited unexpectedly")
		}
		if !d.Respawn {
			return
		}

		// A decoder that ran for a while earns a fresh schedule.
		if time.Since(started) > d.Backoff.Max {
			attempt = 0
		}
		attempt++
		if d.Backoff.MaxRetries > 0 && attempt > d.Backoff.MaxRetries {
			d.Logger.Error("cec decoder respawn limit reached", "attempts", attempt-1)
			return
		}
		delay := d.Backoff.Delay(attempt)
		d.Logger.Info("respawning cec decoder", "attempt", attempt, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (d *Decoder) runOnce(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	d.Logger.Info("cec decoder started", "pid", cmd.Process.Pid)
	return cmd.Wait()
}

func (d *Decoder) args(socketPath string) []string {
	out := make([]string, 0, len(d.Command)+1)
	templated := false
	for _, a := range d.Command {
		if strings.Contains(a, "{socket}") {
			templated = true
			a = strings.ReplaceAll(a, "{socket}", socketPath)
		}
		out = append(out, a)
	}
	if !templated {
		out = append(out, socketPath)
	}
	return out
}
