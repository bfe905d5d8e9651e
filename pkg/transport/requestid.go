package transport

import (
	"context"

	"github.com/rhuss/zaguan/pkg/api"
)

// RequestID returns middleware that guarantees every outgoing request
// carries an X-Request-Id header. The identifier is taken, in order, from
// the header already set on the request, Request.RequestID, the context,
// or freshly generated. The resolved ID is stored in the context passed
// down the chain.
func RequestID() Middleware {
	return func(next Transport) Transport {
		return Func(func(ctx context.Context, req *Request) (*Response, error) {
			id := req.Header.Get(api.RequestIDHeader)
			if id == "" {
				id = req.RequestID
			}
			if id == "" {
				id = RequestIDFromContext(ctx)
			}
			if id == "" {
				id = api.NewRequestID()
			}

			if req.Header.Get(api.RequestIDHeader) != id {
				req = req.Clone()
				if req.Header == nil {
					req.Header = make(map[string][]string)
				}
				req.Header.Set(api.RequestIDHeader, id)
			}
			return next.Do(ContextWithRequestID(ctx, id), req)
		})
	}
}
