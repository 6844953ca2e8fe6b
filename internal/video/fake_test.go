package video

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

type fakeProcess struct {
	cmd protocol.VideoCommand

	mu      sync.Mutex
	played  int
	stopped int
	exited  bool
	playErr error
	wait    chan ExitStatus
}

func (p *fakeProcess) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.played++
	return nil
}

// Stop behaves like a real decoder: it dies from the stop signal.
func (p *fakeProcess) Stop(context.Context) error {
	p.mu.Lock()
	p.stopped++
	p.mu.Unlock()
	p.exit(ExitStatus{Code: -1, Signaled: true, Signal: "terminated"})
	return nil
}

func (p *fakeProcess) Wait() <-chan ExitStatus { return p.wait }

func (p *fakeProcess) exit(st ExitStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return
	}
	p.exited = true
	p.wait <- st
	close(p.wait)
}

func (p *fakeProcess) counts() (played, stopped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.played, p.stopped
}

type fakeLauncher struct {
	mu    sync.Mutex
	procs []*fakeProcess
	err   error
}

func (l *fakeLauncher) Launch(_ context.Context, cmd protocol.VideoCommand) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := &fakeProcess{cmd: cmd, wait: make(chan ExitStatus, 1)}
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) last() *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.procs) == 0 {
		return nil
	}
	return l.procs[len(l.procs)-1]
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

var errLaunch = errors.New("no decoder")

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

func args(uri string) protocol.VideoArgs {
	return protocol.VideoArgs{URI: uri, X: 0, Y: 0, Width: 1920, Height: 1080}
}
