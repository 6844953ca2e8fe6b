package video

import (
	"errors"
	"fmt"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

var (
	ErrNotPrepared     = errors.New("video not prepared")
	ErrNotPlaying      = errors.New("video not playing")
	ErrAlreadyPlaying  = errors.New("video already playing")
	ErrNoFreeSlot      = errors.New("no free video slot")
	ErrNotLocalStorage = errors.New("videos can only be played from local storage")
	ErrNotImplemented  = errors.New("not implemented")
)

// EventError is returned when the server answers a command with Video.Error.
type EventError struct {
	Op      string
	Args    protocol.VideoArgs
	Message string
}

func (e *EventError) Error() string {
	msg := fmt.Sprintf("failed to %s video %s (%d,%d %dx%d)", e.Op, e.Args.URI, e.Args.X, e.Args.Y, e.Args.Width, e.Args.Height)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}
