package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestFailed matches any *RequestFailedError.
	ErrRequestFailed = errors.New("bridge request failed")
	// ErrInvalidMessage is returned for messages with no or an unknown type,
	// or a payload the handler cannot decode.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrResourceNotFound is returned by handlers when the message refers
	// to something that does not exist.
	ErrResourceNotFound = errors.New("resource not found")
)

// RequestFailedError is the caller-side error for a response with success=false.
type RequestFailedError struct {
	Type    string
	Message string
}

func (e *RequestFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bridge request %s failed", e.Type)
	}
	return fmt.Sprintf("bridge request %s failed: %s", e.Type, e.Message)
}

func (e *RequestFailedError) Is(target error) bool { return target == ErrRequestFailed }
