package sysproc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/process"

	"github.com/mattjoyce/signbridge/internal/watchdog"
)

// DefaultKillAfter is how long a terminated application gets to exit
// before it is killed.
const DefaultKillAfter = 5 * time.Second

// proc is the part of *process.Process the restarter drives.
type proc interface {
	NameWithContext(ctx context.Context) (string, error)
	TerminateWithContext(ctx context.Context) error
	KillWithContext(ctx context.Context) error
	IsRunningWithContext(ctx context.Context) (bool, error)
}

// AppRestarter restarts the native display application: it stops every
// process named ProcessName, then runs Command if set. With no Command
// the application's supervisor is expected to bring it back.
type AppRestarter struct {
	ProcessName string
	Command     []string
	KillAfter   time.Duration
	Logger      *slog.Logger

	list func(ctx context.Context) ([]proc, error)
	run  runFunc
	poll time.Duration
}

var _ watchdog.Restarter = (*AppRestarter)(nil)

func (r *AppRestarter) Restart(ctx context.Context, reason watchdog.Reason) error {
	logger := r.logger().With("reason", reason)
	if r.ProcessName != "" {
		stopped, err := r.stopAll(ctx)
		if err != nil {
			return err
		}
		logger.Info("stopped application processes", "process", r.ProcessName, "count", stopped)
	}
	if len(r.Command) == 0 {
		return nil
	}
	run := r.run
	if run == nil {
		run = runCommand
	}
	if _, err := run(ctx, r.Command); err != nil {
		return fmt.Errorf("restart command: %w", err)
	}
	logger.Info("application restarted", "command", r.Command[0])
	return nil
}

func (r *AppRestarter) stopAll(ctx context.Context) (int, error) {
	list := r.list
	if list == nil {
		list = listProcesses
	}
	procs, err := list(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	stopped := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name != r.ProcessName {
			continue
		}
		if err := r.stop(ctx, p); err != nil {
			return stopped, err
		}
		stopped++
	}
	return stopped, nil
}

// stop sends SIGTERM, waits up to KillAfter, then sends SIGKILL.
func (r *AppRestarter) stop(ctx context.Context, p proc) error {
	if err := p.TerminateWithContext(ctx); err != nil {
		if !alive(ctx, p) {
			return nil
		}
		return fmt.Errorf("terminate %s: %w", r.ProcessName, err)
	}

	killAfter := r.KillAfter
	if killAfter <= 0 {
		killAfter = DefaultKillAfter
	}
	poll := r.poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	deadline := time.Now().Add(killAfter)
	for time.Now().Before(deadline) {
		if !alive(ctx, p) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}

	r.logger().Warn("application ignored SIGTERM, killing", "process", r.ProcessName)
	if err := p.KillWithContext(ctx); err != nil && alive(ctx, p) {
		return fmt.Errorf("kill %s: %w", r.ProcessName, err)
	}
	return nil
}

// alive treats a process whose state can no longer be read as gone.
func alive(ctx context.Context, p proc) bool {
	running, err := p.IsRunningWithContext(ctx)
	return err == nil && running
}

func (r *AppRestarter) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func listProcesses(ctx context.Context) ([]proc, error) {
	ps, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]proc, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out, nil
}
