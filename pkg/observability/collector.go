package observability

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/rhuss/zaguan/pkg/api"
)

// ModelMetrics aggregates calls for one model.
type ModelMetrics struct {
	Requests         int64
	Succeeded        int64
	Failed           int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Cost             float64
	TotalLatency     time.Duration
}

// Metrics is a point-in-time copy of a MetricsObserver's aggregates.
type Metrics struct {
	TotalRequests     int64
	SucceededRequests int64
	FailedRequests    int64
	CancelledRequests int64
	Retries           int64

	// TotalLatency sums the latency of succeeded calls.
	TotalLatency time.Duration

	PromptTokens     int64
	CompletionTokens int64
	ReasoningTokens  int64
	TotalTokens      int64
	TotalCost        float64

	// ErrorsByKind counts every failed attempt by failure kind name.
	ErrorsByKind map[string]int64

	// Models is keyed by the model name of the request.
	Models map[string]ModelMetrics
}

// AverageLatency returns the mean latency of succeeded calls.
func (m Metrics) AverageLatency() time.Duration {
	if m.SucceededRequests == 0 {
		return 0
	}
	return m.TotalLatency / time.Duration(m.SucceededRequests)
}

// SuccessRate returns succeeded / (succeeded + failed), or 0 when no call
// finished yet.
func (m Metrics) SuccessRate() float64 {
	done := m.SucceededRequests + m.FailedRequests
	if done == 0 {
		return 0
	}
	return float64(m.SucceededRequests) / float64(done)
}

// MetricsObserver aggregates request counts, latency, token usage and cost
// in memory. It is safe for concurrent use.
type MetricsObserver struct {
	mu sync.Mutex
	m  Metrics
}

// NewMetricsObserver creates an empty MetricsObserver.
func NewMetricsObserver() *MetricsObserver {
	o := &MetricsObserver{}
	o.reset()
	return o
}

func (o *MetricsObserver) reset() {
	o.m = Metrics{
		ErrorsByKind: make(map[string]int64),
		Models:       make(map[string]ModelMetrics),
	}
}

// OnRequestStart implements Observer.
func (o *MetricsObserver) OnRequestStart(_ context.Context, e RequestStarted) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.init()

	o.m.TotalRequests++
	o.updateModel(e.Model, func(mm *ModelMetrics) { mm.Requests++ })
}

// OnRequestEnd implements Observer.
func (o *MetricsObserver) OnRequestEnd(_ context.Context, e ResponseCompleted) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.init()

	o.m.SucceededRequests++
	o.m.TotalLatency += e.Latency
	o.addUsage(e.Usage)

	var cost float64
	if e.Cost != nil {
		cost = *e.Cost
		o.m.TotalCost += cost
	}

	o.updateModel(e.Model, func(mm *ModelMetrics) {
		mm.Succeeded++
		mm.TotalLatency += e.Latency
		mm.Cost += cost
		if e.Usage != nil {
			mm.PromptTokens += int64(e.Usage.PromptTokens)
			mm.CompletionTokens += int64(e.Usage.CompletionTokens)
			mm.TotalTokens += int64(e.Usage.TotalTokens)
		}
	})
}

// OnError implements Observer.
func (o *MetricsObserver) OnError(_ context.Context, e ErrorRaised) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.init()

	if e.Cancelled {
		o.m.CancelledRequests++
		return
	}

	o.m.ErrorsByKind[e.Kind.String()]++
	if e.WillRetry {
		o.m.Retries++
		return
	}
	o.m.FailedRequests++
	o.updateModel(e.Model, func(mm *ModelMetrics) { mm.Failed++ })
}

// Snapshot returns a deep copy of the current aggregates.
func (o *MetricsObserver) Snapshot() Metrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.init()

	out := o.m
	out.ErrorsByKind = maps.Clone(o.m.ErrorsByKind)
	out.Models = maps.Clone(o.m.Models)
	return out
}

// Reset clears all aggregates.
func (o *MetricsObserver) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reset()
}

// init makes the zero value usable. Callers hold mu.
func (o *MetricsObserver) init() {
	if o.m.ErrorsByKind == nil {
		o.reset()
	}
}

func (o *MetricsObserver) addUsage(u *api.Usage) {
	if u == nil {
		return
	}
	o.m.PromptTokens += int64(u.PromptTokens)
	o.m.CompletionTokens += int64(u.CompletionTokens)
	o.m.ReasoningTokens += int64(u.ReasoningTokens())
	o.m.TotalTokens += int64(u.TotalTokens)
}

func (o *MetricsObserver) updateModel(model string, fn func(*ModelMetrics)) {
	if model == "" {
		model = "unknown"
	}
	mm := o.m.Models[model]
	fn(&mm)
	o.m.Models[model] = mm
}
