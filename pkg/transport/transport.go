package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Request describes one call to the gateway. The orchestrator builds it once
// per logical call and resends the same value on every attempt, so
// transports and middleware must not mutate it.
type Request struct {
	Method string

	// Path is relative to the transport's base URL, e.g. "/v1/chat/completions".
	Path  string
	Query url.Values

	Header http.Header
	Body   []byte

	// Stream marks a text/event-stream response.
	Stream bool

	// Timeout overrides the configured per-attempt timeout when > 0.
	Timeout time.Duration

	// RequestID is the identifier of the logical call.
	RequestID string
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if r.Query != nil {
		c.Query = url.Values(http.Header(r.Query).Clone())
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

// Response is a raw gateway response. Body must be closed by the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport sends a Request. Errors are network-level faults only; any
// HTTP status, including 4xx and 5xx, is returned as a Response.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func is an adapter that allows using an ordinary function as a Transport.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Do calls f(ctx, req).
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
