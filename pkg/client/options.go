package client

import (
	"net/http"
	"time"
)

// CallOption configures a single call.
type CallOption func(*callOptions)

type callOptions struct {
	requestID string
	timeout   time.Duration
	header    http.Header
}

// WithRequestID sets the request identifier instead of generating one. It
// is reused across retries of the call.
func WithRequestID(id string) CallOption {
	return func(o *callOptions) { o.requestID = id }
}

// WithTimeout overrides the per-attempt timeout for this call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithHeader adds a header to this call.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.header == nil {
			o.header = make(http.Header)
		}
		o.header.Add(key, value)
	}
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
