// Package observability delivers request lifecycle events to registered
// observers. It ships a structured logging observer, an in-memory metrics
// aggregator and a Prometheus observer.
package observability

import (
	"time"

	"github.com/rhuss/zaguan/pkg/api"
	"github.com/rhuss/zaguan/pkg/failure"
)

// Event is one of RequestStarted, ResponseCompleted or ErrorRaised.
type Event interface {
	// ID returns the request identifier of the logical call.
	ID() string
	eventName() string
}

// RequestStarted is emitted once per logical call, before the first attempt.
type RequestStarted struct {
	RequestID string
	Time      time.Time
	Method    string
	Path      string
	Model     string
	Stream    bool
}

// ResponseCompleted is emitted once when a logical call succeeds. For
// streaming calls it is emitted when the stream ends cleanly.
type ResponseCompleted struct {
	RequestID  string
	Time       time.Time
	Latency    time.Duration
	StatusCode int
	Model      string
	Stream     bool
	Attempts   int

	// Usage and Cost are nil when the gateway did not report them.
	Usage *api.Usage
	Cost  *float64
}

// ErrorRaised is emitted once per failed attempt, and once when the caller
// cancels the call.
type ErrorRaised struct {
	RequestID  string
	Time       time.Time
	Latency    time.Duration
	Model      string
	Kind       failure.Kind
	Message    string
	StatusCode int
	Attempt    int

	// WillRetry reports whether the orchestrator schedules another attempt,
	// RetryDelay how long it waits before it.
	WillRetry  bool
	RetryDelay time.Duration

	// Cancelled is set when the caller's context ended the call. Kind is
	// meaningless in that case.
	Cancelled bool

	Err error
}

// ID implements Event.
func (e RequestStarted) ID() string { return e.RequestID }

// ID implements Event.
func (e ResponseCompleted) ID() string { return e.RequestID }

// ID implements Event.
func (e ErrorRaised) ID() string { return e.RequestID }

func (RequestStarted) eventName() string    { return "request_started" }
func (ResponseCompleted) eventName() string { return "response_completed" }
func (ErrorRaised) eventName() string       { return "error_raised" }

// Final reports whether no further attempt follows this error.
func (e ErrorRaised) Final() bool {
	return !e.WillRetry
}
