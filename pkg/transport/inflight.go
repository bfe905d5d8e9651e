package transport

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrCancelledByID is the cancellation cause of calls ended through
// InFlight.Cancel.
var ErrCancelledByID = errors.New("call cancelled by request ID")

// InFlight tracks running calls by request ID so that they can be
// cancelled from outside the goroutine that issued them, for example a
// stream abandoned by a UI. Several calls may share one ID; each Track
// returns a handle that removes only its own registration.
//
// All methods are safe for concurrent use.
type InFlight struct {
	mu    sync.Mutex
	seq   uint64
	calls map[string]map[uint64]context.CancelCauseFunc
}

// NewInFlight creates an empty registry.
func NewInFlight() *InFlight {
	return &InFlight{calls: make(map[string]map[uint64]context.CancelCauseFunc)}
}

// Track registers cancel under id. The returned func unregisters this
// registration without cancelling it and may be called more than once.
func (f *InFlight) Track(id string, cancel context.CancelCauseFunc) (untrack func()) {
	f.mu.Lock()
	f.seq++
	token := f.seq
	if f.calls[id] == nil {
		f.calls[id] = make(map[uint64]context.CancelCauseFunc)
	}
	f.calls[id][token] = cancel
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if set := f.calls[id]; set != nil {
			delete(set, token)
			if len(set) == 0 {
				delete(f.calls, id)
			}
		}
	}
}

// Cancel cancels every call registered under id with ErrCancelledByID and
// returns how many there were.
func (f *InFlight) Cancel(id string) int {
	f.mu.Lock()
	set := f.calls[id]
	delete(f.calls, id)
	f.mu.Unlock()

	for _, cancel := range set {
		cancel(ErrCancelledByID)
	}
	return len(set)
}

// Len returns the number of registered calls.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, set := range f.calls {
		n += len(set)
	}
	return n
}

// IDs returns the request IDs with at least one running call, sorted.
func (f *InFlight) IDs() []string {
	f.mu.Lock()
	ids := make([]string, 0, len(f.calls))
	for id := range f.calls {
		ids = append(ids, id)
	}
	f.mu.Unlock()
	slices.Sort(ids)
	return ids
}
