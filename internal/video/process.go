package video

import (
	"context"
	"fmt"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

// ExitStatus is how a decoder process ended.
type ExitStatus struct {
	Code     int
	Signaled bool
	Signal   string
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return "killed by signal " + s.Signal
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

// Process is a running decoder bound to one region.
type Process interface {
	Play(ctx context.Context) error
	// Stop asks the process to terminate; it does not wait for exit.
	Stop(ctx context.Context) error
	// Wait delivers the exit status once, then closes.
	Wait() <-chan ExitStatus
}

// Launcher spawns decoder processes.
type Launcher interface {
	Launch(ctx context.Context, cmd protocol.VideoCommand) (Process, error)
}
