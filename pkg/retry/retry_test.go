package retry

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rhuss/zaguan/pkg/failure"
)

var allKinds = []failure.Kind{
	failure.KindUnknown,
	failure.KindAuthentication,
	failure.KindInsufficientCredits,
	failure.KindRateLimited,
	failure.KindBandAccessDenied,
	failure.KindValidation,
	failure.KindServer,
	failure.KindNetwork,
	failure.KindTimeout,
	failure.KindStreamDecode,
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialDelay != time.Second || cfg.MaxDelay != 60*time.Second || cfg.Base != 2.0 || !cfg.Jitter {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.RetryOn) != 4 {
		t.Errorf("RetryOn = %v, want 4 kinds", cfg.RetryOn)
	}
}

func TestDecide_RetryableGivesUpAtMax(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	for _, kind := range DefaultRetryOn {
		for attempt := 0; attempt <= 6; attempt++ {
			d := p.Decide(attempt, failure.New(kind, "x"))
			wantRetry := attempt < p.Config.MaxRetries
			if d.Retry != wantRetry {
				t.Errorf("kind=%v attempt=%d: retry=%v, want %v", kind, attempt, d.Retry, wantRetry)
			}
		}
	}
}

func TestDecide_NonRetryableAlwaysGivesUp(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	for _, kind := range allKinds {
		if p.Retryable(kind) {
			continue
		}
		for attempt := 0; attempt < 5; attempt++ {
			if d := p.Decide(attempt, failure.New(kind, "x")); d.Retry {
				t.Errorf("kind=%v attempt=%d should give up", kind, attempt)
			}
		}
	}
}

func TestDecide_NilFailure(t *testing.T) {
	if d := NewPolicy(DefaultConfig()).Decide(0, nil); d.Retry {
		t.Error("nil failure should give up")
	}
}

func TestDecide_CustomRetrySet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryOn = []failure.Kind{failure.KindUnknown}
	p := NewPolicy(cfg)

	if !p.Decide(0, failure.New(failure.KindUnknown, "x")).Retry {
		t.Error("unknown should be retried when configured")
	}
	if p.Decide(0, failure.New(failure.KindServer, "x")).Retry {
		t.Error("server error should not be retried when not configured")
	}
}

func TestBackoff_Formula(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialDelay = 100 * time.Millisecond
	cfg.MaxDelay = 5 * time.Second
	cfg.Base = 3
	p := NewPolicy(cfg)

	for n := 0; n < 10; n++ {
		want := time.Duration(math.Min(float64(cfg.MaxDelay), float64(cfg.InitialDelay)*math.Pow(cfg.Base, float64(n))))
		if got := p.Backoff(n); got != want {
			t.Errorf("Backoff(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestBackoff_HugeAttemptCapped(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	if got := p.Backoff(10000); got != 60*time.Second {
		t.Errorf("Backoff(10000) = %v, want MaxDelay", got)
	}
}

func TestDecide_JitterBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 100
	p := NewPolicy(cfg)
	rng := rand.New(rand.NewPCG(1, 2))
	p.Rand = rng.Float64

	for n := 0; n < 50; n++ {
		d := p.Decide(n%8, failure.New(failure.KindServer, "x"))
		if !d.Retry {
			t.Fatalf("attempt %d: expected retry", n)
		}
		if d.Delay < 0 || d.Delay > p.Backoff(n%8) {
			t.Errorf("attempt %d: jittered delay %v outside [0, %v]", n, d.Delay, p.Backoff(n%8))
		}
	}
}

func TestDecide_FullJitterScalesComputedDelay(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	p.Rand = func() float64 { return 0.25 }

	d := p.Decide(2, failure.New(failure.KindNetwork, "x"))
	if want := time.Second; d.Delay != want {
		t.Errorf("delay = %v, want %v (0.25 * 4s)", d.Delay, want)
	}
}

func TestDecide_NoJitter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jitter = false
	p := NewPolicy(cfg)
	p.Rand = func() float64 { return 0 }

	if d := p.Decide(1, failure.New(failure.KindTimeout, "x")); d.Delay != 2*time.Second {
		t.Errorf("delay = %v, want 2s", d.Delay)
	}
}

func TestDecide_BadRandomnessClamped(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	p.Rand = func() float64 { return 1.5 }
	if d := p.Decide(0, failure.New(failure.KindServer, "x")); d.Delay != 0 {
		t.Errorf("out-of-range randomness should clamp to 0, got %v", d.Delay)
	}
}

// An explicit retry-after wins over the exponential value.
func TestDecide_RetryAfterWins(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	p.Rand = func() float64 { return 0.9 }

	f := failure.Classify(429, nil, []byte(`{"retry_after": 2}`))
	d := p.Decide(0, f)
	if !d.Retry || d.Delay != 2*time.Second {
		t.Errorf("decision = %+v, want Retry(2s)", d)
	}
}

func TestDecide_DefaultRetryAfterUsesBackoff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jitter = false
	p := NewPolicy(cfg)

	f := failure.Classify(429, nil, nil)
	if d := p.Decide(3-1, f); d.Delay != 4*time.Second {
		t.Errorf("delay = %v, want computed backoff 4s", d.Delay)
	}
}

func TestDecide_AuthAndCreditsGiveUp(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	if d := p.Decide(0, failure.Classify(401, nil, nil)); d.Retry {
		t.Error("authentication must not be retried")
	}
	if d := p.Decide(0, failure.Classify(402, nil, []byte(`{"credits_required": 10, "credits_remaining": 3}`))); d.Retry {
		t.Error("insufficient credits must not be retried")
	}
}

func TestState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.Jitter = false
	p := NewPolicy(cfg)

	var s State
	f := failure.New(failure.KindServer, "x")
	for {
		d := s.Fail(p, f)
		if !d.Retry {
			break
		}
		s.Advance(d.Delay)
	}
	if s.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", s.Attempt)
	}
	if s.Waited != 3*time.Second {
		t.Errorf("Waited = %v, want 3s", s.Waited)
	}
	if s.Last != f {
		t.Error("Last should hold the final failure")
	}
}
