// Package retry decides whether and when a failed call is retried.
//
// A Policy is a pure function of the attempt number and the classified
// failure, plus a source of randomness for jitter. It keeps no state across
// calls; per-call progress lives in State, owned by a single logical call.
package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/rhuss/zaguan/pkg/failure"
)

// Config controls retry behavior.
type Config struct {
	// MaxRetries is the number of retries after the first attempt. Default 3.
	MaxRetries int

	// InitialDelay is the backoff for attempt 0. Default 1s.
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff. Default 60s.
	MaxDelay time.Duration

	// Base is the exponential growth factor. Default 2.0.
	Base float64

	// Jitter enables full jitter: the delay is drawn uniformly from [0, backoff).
	Jitter bool

	// RetryOn lists the retryable failure kinds. Default: rate limited,
	// server error, network error, timeout.
	RetryOn []failure.Kind
}

// DefaultRetryOn is the default retryable set.
var DefaultRetryOn = []failure.Kind{
	failure.KindRateLimited,
	failure.KindServer,
	failure.KindNetwork,
	failure.KindTimeout,
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Base:         2.0,
		Jitter:       true,
		RetryOn:      append([]failure.Kind(nil), DefaultRetryOn...),
	}
}

// NoRetry returns a Config that never retries.
func NoRetry() Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	return cfg
}

// Decision is the outcome of Policy.Decide.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// GiveUp is the decision to stop retrying.
var GiveUp = Decision{}

// Policy applies a Config.
type Policy struct {
	Config Config

	// Rand returns a value in [0,1) for jitter. Defaults to math/rand/v2.Float64.
	Rand func() float64
}

// NewPolicy creates a Policy for cfg using the default randomness source.
func NewPolicy(cfg Config) *Policy {
	return &Policy{Config: cfg}
}

// Retryable reports whether kind is in the configured retryable set.
func (p *Policy) Retryable(kind failure.Kind) bool {
	for _, k := range p.Config.RetryOn {
		if k == kind {
			return true
		}
	}
	return false
}

// Decide returns whether to retry after the failure of the given attempt
// (0-indexed) and how long to wait first.
//
// Non-retryable kinds and attempts at or past MaxRetries give up. A rate
// limited failure with an explicit retry-after waits exactly that long;
// anything else waits the (jittered) exponential backoff.
func (p *Policy) Decide(attempt int, f *failure.Error) Decision {
	if f == nil || !p.Retryable(f.Kind) {
		return GiveUp
	}
	if attempt >= p.Config.MaxRetries {
		return GiveUp
	}

	if f.Kind == failure.KindRateLimited && f.RetryAfterExplicit {
		return Decision{Retry: true, Delay: f.RetryAfter}
	}

	delay := p.Backoff(attempt)
	if p.Config.Jitter {
		delay = time.Duration(float64(delay) * p.random())
	}
	return Decision{Retry: true, Delay: delay}
}

// Backoff returns min(MaxDelay, InitialDelay * Base^attempt), without jitter.
func (p *Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.Config.InitialDelay) * math.Pow(p.Config.Base, float64(attempt))
	// The negated comparisons also catch +Inf and NaN.
	if p.Config.MaxDelay > 0 && !(d < float64(p.Config.MaxDelay)) {
		return p.Config.MaxDelay
	}
	if !(d < math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (p *Policy) random() float64 {
	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	v := r()
	if v < 0 || v >= 1 || math.IsNaN(v) {
		return 0
	}
	return v
}

// State tracks one logical call across its attempts.
type State struct {
	// Attempt is the number of the attempt in flight (0 for the first).
	Attempt int

	// Waited is the total delay spent between attempts.
	Waited time.Duration

	// Last is the most recent failure.
	Last *failure.Error
}

// Fail records a failed attempt and returns the policy decision for it.
func (s *State) Fail(p *Policy, f *failure.Error) Decision {
	s.Last = f
	return p.Decide(s.Attempt, f)
}

// Advance moves to the next attempt after waiting delay.
func (s *State) Advance(delay time.Duration) {
	s.Waited += delay
	s.Attempt++
}
