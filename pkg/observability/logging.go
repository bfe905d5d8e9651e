package observability

import (
	"context"
	"log/slog"
)

// LoggingObserver writes one structured log line per event.
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates a LoggingObserver. A nil logger uses
// slog.Default().
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

// OnRequestStart logs at DEBUG.
func (l *LoggingObserver) OnRequestStart(ctx context.Context, e RequestStarted) {
	l.logger.LogAttrs(ctx, slog.LevelDebug, "request started",
		slog.String("request_id", e.RequestID),
		slog.String("method", e.Method),
		slog.String("path", e.Path),
		slog.String("model", e.Model),
		slog.Bool("stream", e.Stream),
	)
}

// OnRequestEnd logs at INFO.
func (l *LoggingObserver) OnRequestEnd(ctx context.Context, e ResponseCompleted) {
	attrs := []slog.Attr{
		slog.String("request_id", e.RequestID),
		slog.String("model", e.Model),
		slog.Int("status", e.StatusCode),
		slog.Bool("stream", e.Stream),
		slog.Int("attempts", e.Attempts),
		slog.Duration("latency", e.Latency),
	}
	if e.Usage != nil {
		attrs = append(attrs,
			slog.Int("prompt_tokens", e.Usage.PromptTokens),
			slog.Int("completion_tokens", e.Usage.CompletionTokens),
			slog.Int("total_tokens", e.Usage.TotalTokens),
		)
		if r := e.Usage.ReasoningTokens(); r > 0 {
			attrs = append(attrs, slog.Int("reasoning_tokens", r))
		}
	}
	if e.Cost != nil {
		attrs = append(attrs, slog.Float64("cost", *e.Cost))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
}

// OnError logs retried attempts at WARN, cancellations at INFO and final
// failures at ERROR.
func (l *LoggingObserver) OnError(ctx context.Context, e ErrorRaised) {
	attrs := []slog.Attr{
		slog.String("request_id", e.RequestID),
		slog.String("model", e.Model),
		slog.Int("attempt", e.Attempt),
		slog.Duration("latency", e.Latency),
	}

	if e.Cancelled {
		if e.Err != nil {
			attrs = append(attrs, slog.String("error", e.Err.Error()))
		}
		l.logger.LogAttrs(ctx, slog.LevelInfo, "request cancelled", attrs...)
		return
	}

	attrs = append(attrs,
		slog.String("kind", e.Kind.String()),
		slog.String("error", e.Message),
	)
	if e.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status", e.StatusCode))
	}

	if e.WillRetry {
		attrs = append(attrs, slog.Duration("retry_in", e.RetryDelay))
		l.logger.LogAttrs(ctx, slog.LevelWarn, "request attempt failed, retrying", attrs...)
		return
	}
	l.logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
}
