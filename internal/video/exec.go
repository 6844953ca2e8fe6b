package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

// Stdin directives understood by the decoder wrapper.
const (
	directivePlay = "play\n"
	directiveStop = "stop\n"
)

// ExecLauncher runs the configured decoder command. Arguments may use the
// placeholders {uri} {x} {y} {width} {height}. File URIs are relative to
// Root; stream URIs are passed through.
type ExecLauncher struct {
	Command       []string
	StreamCommand []string
	Root          string
	// KillAfter is how long a stopped process may linger before SIGKILL.
	KillAfter time.Duration
	Logger    *slog.Logger
}

func (l *ExecLauncher) Launch(_ context.Context, cmd protocol.VideoCommand) (Process, error) {
	tmpl := l.Command
	uri := cmd.URI
	if cmd.IsStream {
		tmpl = l.StreamCommand
	} else {
		uri = filepath.Join(l.Root, filepath.FromSlash(cmd.URI))
		if !strings.HasPrefix(uri, filepath.Clean(l.Root)+string(filepath.Separator)) {
			return nil, fmt.Errorf("video path %q escapes storage root", cmd.URI)
		}
	}
	if len(tmpl) == 0 {
		return nil, errors.New("no decoder command configured")
	}

	args := expandArgs(tmpl, uri, cmd.VideoArgs)
	// The process outlives the request that prepared it, so it is not
	// bound to the caller's context.
	c := exec.Command(args[0], args[1:]...)
	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdin: %w", err)
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("start decoder %s: %w", args[0], err)
	}

	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	killAfter := l.KillAfter
	if killAfter <= 0 {
		killAfter = 5 * time.Second
	}

	p := &execProcess{
		cmd:       c,
		stdin:     stdin,
		killAfter: killAfter,
		logger:    logger.With("pid", c.Process.Pid, "uri", cmd.URI),
		exited:    make(chan struct{}),
		wait:      make(chan ExitStatus, 1),
	}
	go p.reap()
	p.logger.Debug("decoder started", "args", args)
	return p, nil
}

func expandArgs(tmpl []string, uri string, a protocol.VideoArgs) []string {
	r := strings.NewReplacer(
		"{uri}", uri,
		"{x}", strconv.Itoa(a.X),
		"{y}", strconv.Itoa(a.Y),
		"{width}", strconv.Itoa(a.Width),
		"{height}", strconv.Itoa(a.Height),
	)
	out := make([]string, len(tmpl))
	for i, arg := range tmpl {
		out[i] = r.Replace(arg)
	}
	return out
}

type execProcess struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	killAfter time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	stopping bool

	exited chan struct{}
	wait   chan ExitStatus
}

func (p *execProcess) Wait() <-chan ExitStatus { return p.wait }

func (p *execProcess) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.stdin, directivePlay); err != nil {
		return fmt.Errorf("send play directive: %w", err)
	}
	return nil
}

func (p *execProcess) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopping {
		return nil
	}
	p.stopping = true

	_, err := io.WriteString(p.stdin, directiveStop)
	_ = p.stdin.Close()
	if err != nil {
		// Decoder no longer reads stdin; fall back to a signal.
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
	}

	go func() {
		t := time.NewTimer(p.killAfter)
		defer t.Stop()
		select {
		case <-p.exited:
		case <-t.C:
			p.logger.Warn("decoder ignored stop directive, killing")
			_ = p.cmd.Process.Kill()
		}
	}()
	return nil
}

func (p *execProcess) reap() {
	err := p.cmd.Wait()
	close(p.exited)

	status := ExitStatus{}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		status.Code = exitErr.ExitCode()
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			status.Signaled = true
			status.Signal = ws.Signal().String()
		}
	default:
		status.Code = -1
		p.logger.Error("decoder wait failed", "error", err)
	}

	p.logger.Debug("decoder exited", "status", status.String())
	p.wait <- status
	close(p.wait)
}
