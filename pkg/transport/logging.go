package transport

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that emits one structured DEBUG entry per
// attempt: method, path, request ID, status or error, and the time until
// response headers arrived.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Transport) Transport {
		return Func(func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()

			resp, err := next.Do(ctx, req)

			id := RequestIDFromContext(ctx)
			if id == "" {
				id = req.RequestID
			}
			attrs := []slog.Attr{
				slog.String("request_id", id),
				slog.String("method", req.Method),
				slog.String("path", req.Path),
				slog.Bool("stream", req.Stream),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelDebug, "gateway request failed", attrs...)
			} else {
				attrs = append(attrs, slog.Int("status", resp.StatusCode))
				logger.LogAttrs(ctx, slog.LevelDebug, "gateway request sent", attrs...)
			}

			return resp, err
		})
	}
}
