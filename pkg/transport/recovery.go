package transport

import (
	"context"
	"fmt"
)

// PanicError is returned by Recovery when the wrapped transport panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("transport panic: %v", e.Value)
}

// Recovery returns middleware that catches panics in the wrapped transport
// and converts them to a *PanicError. Useful around caller-supplied
// transports.
func Recovery() Middleware {
	return func(next Transport) Transport {
		return Func(func(ctx context.Context, req *Request) (resp *Response, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					resp = nil
					retErr = &PanicError{Value: r}
				}
			}()
			return next.Do(ctx, req)
		})
	}
}
