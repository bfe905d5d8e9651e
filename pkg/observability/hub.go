package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Observer receives request lifecycle events. Callbacks run synchronously
// on the calling goroutine, so they should return quickly.
type Observer interface {
	OnRequestStart(ctx context.Context, e RequestStarted)
	OnRequestEnd(ctx context.Context, e ResponseCompleted)
	OnError(ctx context.Context, e ErrorRaised)
}

// NopObserver implements Observer with no-op callbacks. Embed it to
// implement only the callbacks you need.
type NopObserver struct{}

func (NopObserver) OnRequestStart(context.Context, RequestStarted)  {}
func (NopObserver) OnRequestEnd(context.Context, ResponseCompleted) {}
func (NopObserver) OnError(context.Context, ErrorRaised)            {}

// ObserverFuncs adapts optional functions to the Observer interface. Nil
// fields are skipped.
type ObserverFuncs struct {
	RequestStart func(ctx context.Context, e RequestStarted)
	RequestEnd   func(ctx context.Context, e ResponseCompleted)
	Error        func(ctx context.Context, e ErrorRaised)
}

func (f ObserverFuncs) OnRequestStart(ctx context.Context, e RequestStarted) {
	if f.RequestStart != nil {
		f.RequestStart(ctx, e)
	}
}

func (f ObserverFuncs) OnRequestEnd(ctx context.Context, e ResponseCompleted) {
	if f.RequestEnd != nil {
		f.RequestEnd(ctx, e)
	}
}

func (f ObserverFuncs) OnError(ctx context.Context, e ErrorRaised) {
	if f.Error != nil {
		f.Error(ctx, e)
	}
}

// Hub fans events out to observers in registration order. A panicking
// observer is logged and skipped; it never prevents delivery to the
// observers after it. The zero value is ready to use and Hub is safe for
// concurrent use.
type Hub struct {
	mu        sync.RWMutex
	observers []Observer
	logger    *slog.Logger
}

// NewHub creates a Hub with the given observers registered in order.
func NewHub(observers ...Observer) *Hub {
	h := &Hub{}
	for _, o := range observers {
		h.Register(o)
	}
	return h
}

// SetLogger sets the logger used to report observer panics. Defaults to
// slog.Default().
func (h *Hub) SetLogger(logger *slog.Logger) {
	h.mu.Lock()
	h.logger = logger
	h.mu.Unlock()
}

// Register appends an observer. Nil observers are ignored.
func (h *Hub) Register(o Observer) {
	if o == nil {
		return
	}
	h.mu.Lock()
	h.observers = append(h.observers, o)
	h.mu.Unlock()
}

// Len returns the number of registered observers.
func (h *Hub) Len() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Emit delivers e to every observer. Emitting on a nil Hub is a no-op.
func (h *Hub) Emit(ctx context.Context, e Event) {
	if h == nil || e == nil {
		return
	}

	h.mu.RLock()
	observers := h.observers
	logger := h.logger
	h.mu.RUnlock()

	if logger == nil {
		logger = slog.Default()
	}
	for _, o := range observers {
		h.deliver(ctx, logger, o, e)
	}
}

func (h *Hub) deliver(ctx context.Context, logger *slog.Logger, o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.WarnContext(ctx, "observer panicked",
				"observer", fmt.Sprintf("%T", o),
				"event", e.eventName(),
				"request_id", e.ID(),
				"panic", fmt.Sprint(r),
			)
		}
	}()

	switch ev := e.(type) {
	case RequestStarted:
		o.OnRequestStart(ctx, ev)
	case *RequestStarted:
		o.OnRequestStart(ctx, *ev)
	case ResponseCompleted:
		o.OnRequestEnd(ctx, ev)
	case *ResponseCompleted:
		o.OnRequestEnd(ctx, *ev)
	case ErrorRaised:
		o.OnError(ctx, ev)
	case *ErrorRaised:
		o.OnError(ctx, *ev)
	}
}
