package observability

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// PrometheusObserver exports client call metrics to a Prometheus registry.
type PrometheusObserver struct {
	// RequestsTotal counts finished logical calls by model and outcome
	// (success, failure, cancelled).
	RequestsTotal *prometheus.CounterVec

	// RequestDuration records the latency of succeeded calls in seconds.
	RequestDuration *prometheus.HistogramVec

	// InFlight tracks logical calls that have started but not finished.
	InFlight prometheus.Gauge

	// ErrorsTotal counts failed attempts by failure kind and status code.
	ErrorsTotal *prometheus.CounterVec

	// RetriesTotal counts scheduled retries by failure kind.
	RetriesTotal *prometheus.CounterVec

	// TokensTotal counts tokens by model and direction (prompt, completion,
	// reasoning).
	TokensTotal *prometheus.CounterVec

	// CostTotal sums the gateway-reported cost by model.
	CostTotal *prometheus.CounterVec
}

// NewPrometheusObserver creates the collectors and registers them on reg.
// A nil reg registers on prometheus.DefaultRegisterer. Collectors that are
// already registered (for example by a second client sharing the registry)
// are reused.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusObserver{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zaguan_client_requests_total",
				Help: "Finished client calls",
			},
			[]string{"model", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zaguan_client_request_duration_seconds",
				Help:    "Client call latency",
				Buckets: LLMBuckets,
			},
			[]string{"model"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "zaguan_client_requests_in_flight",
				Help: "Client calls in flight",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zaguan_client_errors_total",
				Help: "Failed attempts",
			},
			[]string{"kind", "status"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zaguan_client_retries_total",
				Help: "Scheduled retries",
			},
			[]string{"kind"},
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zaguan_client_tokens_total",
				Help: "Token count",
			},
			[]string{"model", "direction"},
		),
		CostTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zaguan_client_cost_total",
				Help: "Gateway-reported cost",
			},
			[]string{"model"},
		),
	}

	var err error
	p.RequestsTotal, err = register(reg, p.RequestsTotal)
	if err != nil {
		return nil, err
	}
	p.RequestDuration, err = register(reg, p.RequestDuration)
	if err != nil {
		return nil, err
	}
	p.InFlight, err = register(reg, p.InFlight)
	if err != nil {
		return nil, err
	}
	p.ErrorsTotal, err = register(reg, p.ErrorsTotal)
	if err != nil {
		return nil, err
	}
	p.RetriesTotal, err = register(reg, p.RetriesTotal)
	if err != nil {
		return nil, err
	}
	p.TokensTotal, err = register(reg, p.TokensTotal)
	if err != nil {
		return nil, err
	}
	p.CostTotal, err = register(reg, p.CostTotal)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// register registers c, returning the existing collector if an identical
// one is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// OnRequestStart implements Observer.
func (p *PrometheusObserver) OnRequestStart(context.Context, RequestStarted) {
	p.InFlight.Inc()
}

// OnRequestEnd implements Observer.
func (p *PrometheusObserver) OnRequestEnd(_ context.Context, e ResponseCompleted) {
	model := modelLabel(e.Model)
	p.InFlight.Dec()
	p.RequestsTotal.WithLabelValues(model, "success").Inc()
	p.RequestDuration.WithLabelValues(model).Observe(e.Latency.Seconds())

	if e.Usage != nil {
		p.TokensTotal.WithLabelValues(model, "prompt").Add(float64(e.Usage.PromptTokens))
		p.TokensTotal.WithLabelValues(model, "completion").Add(float64(e.Usage.CompletionTokens))
		if r := e.Usage.ReasoningTokens(); r > 0 {
			p.TokensTotal.WithLabelValues(model, "reasoning").Add(float64(r))
		}
	}
	if e.Cost != nil && *e.Cost > 0 {
		p.CostTotal.WithLabelValues(model).Add(*e.Cost)
	}
}

// OnError implements Observer.
func (p *PrometheusObserver) OnError(_ context.Context, e ErrorRaised) {
	model := modelLabel(e.Model)
	if e.Cancelled {
		p.InFlight.Dec()
		p.RequestsTotal.WithLabelValues(model, "cancelled").Inc()
		return
	}

	kind := e.Kind.String()
	p.ErrorsTotal.WithLabelValues(kind, statusLabel(e.StatusCode)).Inc()
	if e.WillRetry {
		p.RetriesTotal.WithLabelValues(kind).Inc()
		return
	}
	p.InFlight.Dec()
	p.RequestsTotal.WithLabelValues(model, "failure").Inc()
}

func modelLabel(model string) string {
	if model == "" {
		return "unknown"
	}
	return model
}

func statusLabel(code int) string {
	if code == 0 {
		return "none"
	}
	return strconv.Itoa(code)
}
