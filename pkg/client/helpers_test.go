package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rhuss/zaguan/pkg/observability"
	"github.com/rhuss/zaguan/pkg/retry"
)

// recorder captures every event delivered by the hub.
type recorder struct {
	mu     sync.Mutex
	starts []observability.RequestStarted
	ends   []observability.ResponseCompleted
	errs   []observability.ErrorRaised
}

func (r *recorder) OnRequestStart(_ context.Context, e observability.RequestStarted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, e)
}

func (r *recorder) OnRequestEnd(_ context.Context, e observability.ResponseCompleted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, e)
}

func (r *recorder) OnError(_ context.Context, e observability.ErrorRaised) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, e)
}

func (r *recorder) counts() (starts, ends, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts), len(r.ends), len(r.errs)
}

func (r *recorder) errors() []observability.ErrorRaised {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]observability.ErrorRaised(nil), r.errs...)
}

func (r *recorder) lastEnd() observability.ResponseCompleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ends) == 0 {
		return observability.ResponseCompleted{}
	}
	return r.ends[len(r.ends)-1]
}

// harness is a client wired to an httptest server with waits recorded
// instead of slept.
type harness struct {
	c      *Client
	rec    *recorder
	srv    *httptest.Server
	hits   atomic.Int32
	mu     sync.Mutex
	sleeps []time.Duration
	reqs   []*http.Request
}

// newHarness serves each request with the handler at index attempt, the
// last handler repeating.
func newHarness(t *testing.T, cfg Config, handlers ...http.HandlerFunc) *harness {
	t.Helper()
	h := &harness{rec: &recorder{}}

	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(h.hits.Add(1)) - 1
		h.mu.Lock()
		h.reqs = append(h.reqs, r.Clone(context.Background()))
		h.mu.Unlock()
		if n >= len(handlers) {
			n = len(handlers) - 1
		}
		handlers[n](w, r)
	}))
	t.Cleanup(h.srv.Close)

	cfg.BaseURL = h.srv.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}

	policy := retry.NewPolicy(retry.DefaultConfig())
	if cfg.Retry != nil {
		policy = retry.NewPolicy(*cfg.Retry)
	}
	policy.Rand = func() float64 { return 0.5 }

	c, err := New(cfg, WithObserver(h.rec), WithRetryPolicy(policy))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		h.mu.Lock()
		h.sleeps = append(h.sleeps, d)
		h.mu.Unlock()
		return ctx.Err()
	}
	h.c = c
	return h
}

func (h *harness) waits() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.sleeps...)
}

func (h *harness) requests() []*http.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*http.Request(nil), h.reqs...)
}

func status(code int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write([]byte(body))
	}
}

func sseBody(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, l := range lines {
			w.Write([]byte(l + "\n\n"))
			w.(http.Flusher).Flush()
		}
	}
}

const chatOK = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"openai/gpt-4o",
"choices":[{"index":0,"message":{"role":"assistant","content":"Hi!"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5,"cost":0.001}}`

func retries(n int) *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = n
	return &cfg
}
