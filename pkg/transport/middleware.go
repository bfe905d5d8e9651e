package transport

import "context"

// Middleware decorates a Transport.
type Middleware func(Transport) Transport

// Chain composes middleware so that the first one sees a request first:
// Chain(a, b, c)(t) is a(b(c(t))). Nil middleware are skipped.
func Chain(mws ...Middleware) Middleware {
	return func(t Transport) Transport {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				t = mws[i](t)
			}
		}
		return t
	}
}

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDFromContext returns the request ID stored by ContextWithRequestID,
// or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithRequestID stores a request ID in ctx for middleware further
// down the chain.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
