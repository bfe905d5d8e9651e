package retry

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/zaguan/pkg/failure"
)

// Sleep waits for d or until ctx is done, whichever comes first. It returns
// ctx.Err() when the wait was abandoned.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Options tune Do.
type Options struct {
	// Policy overrides the policy built from the config (e.g., to inject randomness).
	Policy *Policy

	// OnRetry is called before each wait with the failed attempt number,
	// its failure and the chosen delay.
	OnRetry func(attempt int, f *failure.Error, delay time.Duration)

	// Sleep replaces Sleep, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// policy gives up. Errors carrying a *failure.Error are judged by its kind,
// transport faults are mapped with failure.FromTransportError, and any
// other error is returned at once.
//
// Cancellation of ctx is never retried: Do returns ctx.Err() as soon as it
// observes it, including during a wait.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, opts ...Options) error {
	_, err := DoValue(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// DoValue is Do for functions returning a value.
func DoValue[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error), opts ...Options) (T, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	policy := o.Policy
	if policy == nil {
		policy = NewPolicy(cfg)
	}
	sleep := o.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var zero T
	var state State
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return zero, ctxErr
		}

		f, ok := failure.As(err)
		if !ok {
			if !failure.IsTransportError(err) {
				return zero, err
			}
			f = failure.FromTransportError(err)
		}
		decision := state.Fail(policy, f)
		if !decision.Retry {
			return zero, f
		}
		if o.OnRetry != nil {
			o.OnRetry(state.Attempt, f, decision.Delay)
		}
		if err := sleep(ctx, decision.Delay); err != nil {
			return zero, err
		}
		state.Advance(decision.Delay)
	}
}
