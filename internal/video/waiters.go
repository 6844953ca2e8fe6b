package video

import (
	"sync"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

// Result is what a waiter receives: the matching event or a transport error.
type Result struct {
	Kind  string
	Event protocol.VideoEvent
	Err   error
}

type waiter struct {
	id    int
	kinds []string
	ch    chan Result
}

func (w *waiter) accepts(kind string) bool {
	for _, k := range w.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Waiters is a one-shot subscription table keyed by the exact region
// tuple. An event resolves only waiters registered for its tuple and
// kind; each waiter is removed when it resolves. Events without a region
// (Video.AllStopped) use the zero tuple.
type Waiters struct {
	mu     sync.Mutex
	nextID int
	byArgs map[protocol.VideoArgs][]*waiter
}

func NewWaiters() *Waiters {
	return &Waiters{byArgs: make(map[protocol.VideoArgs][]*waiter)}
}

// Add registers a waiter for args accepting any of kinds. The returned
// cancel removes it if it has not resolved.
func (w *Waiters) Add(args protocol.VideoArgs, kinds ...string) (<-chan Result, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	wt := &waiter{id: w.nextID, kinds: kinds, ch: make(chan Result, 1)}
	w.byArgs[args] = append(w.byArgs[args], wt)
	return wt.ch, func() { w.remove(args, wt.id) }
}

func (w *Waiters) remove(args protocol.VideoArgs, id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := w.byArgs[args]
	for i, wt := range list {
		if wt.id == id {
			w.byArgs[args] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(w.byArgs[args]) == 0 {
		delete(w.byArgs, args)
	}
}

// Deliver resolves every waiter on ev's tuple that accepts kind and
// returns how many resolved.
func (w *Waiters) Deliver(kind string, ev protocol.VideoEvent) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := w.byArgs[ev.VideoArgs]
	kept := list[:0:0]
	n := 0
	for _, wt := range list {
		if wt.accepts(kind) {
			wt.ch <- Result{Kind: kind, Event: ev}
			n++
			continue
		}
		kept = append(kept, wt)
	}
	if len(kept) == 0 {
		delete(w.byArgs, ev.VideoArgs)
	} else {
		w.byArgs[ev.VideoArgs] = kept
	}
	return n
}

// FailAll resolves every waiter with err.
func (w *Waiters) FailAll(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for args, list := range w.byArgs {
		for _, wt := range list {
			wt.ch <- Result{Err: err}
		}
		delete(w.byArgs, args)
	}
}

// Len returns the number of unresolved waiters.
func (w *Waiters) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, list := range w.byArgs {
		n += len(list)
	}
	return n
}
