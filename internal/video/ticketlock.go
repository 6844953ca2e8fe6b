package video

import (
	"context"
	"sync"
)

// TicketLock is a FIFO mutex whose Lock honours context cancellation.
// Waiters are served strictly in arrival order.
type TicketLock struct {
	mu    sync.Mutex
	held  bool
	queue []chan struct{}
}

func (l *TicketLock) Lock(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return nil
	}
	ticket := make(chan struct{})
	l.queue = append(l.queue, ticket)
	l.mu.Unlock()

	select {
	case <-ticket:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, t := range l.queue {
			if t == ticket {
				l.queue = append(l.queue[:i], l.queue[i+1:]...)
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// Ownership was handed over while we were giving up; pass it on.
		l.Unlock()
		return ctx.Err()
	}
}

func (l *TicketLock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		panic("video: unlock of unlocked TicketLock")
	}
	if len(l.queue) == 0 {
		l.held = false
		return
	}
	next := l.queue[0]
	l.queue = l.queue[1:]
	close(next)
}

// Waiting returns the number of queued lockers.
func (l *TicketLock) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
