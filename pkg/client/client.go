package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/zaguan/pkg/observability"
	"github.com/rhuss/zaguan/pkg/retry"
	"github.com/rhuss/zaguan/pkg/transport"
)

// Defaults applied by New.
const (
	DefaultTimeout = 30 * time.Second
	DefaultModel   = "openai/gpt-4o-mini"
)

// Config holds the settings of a Client.
type Config struct {
	// BaseURL is the gateway root, e.g. "https://api.zaguanai.com".
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Timeout bounds one attempt. For streaming calls it bounds the time
	// until response headers arrive. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Retry configures the retry policy. Nil means retry.DefaultConfig().
	Retry *retry.Config

	// RateLimit throttles attempts to this many per second; 0 disables it.
	RateLimit float64
	RateBurst int

	// DefaultModel is used by ChatSimple and ChatWithSystem when no model
	// is given. Defaults to DefaultModel.
	DefaultModel string

	// UserAgent overrides transport.DefaultUserAgent.
	UserAgent string
}

// Option configures a Client beyond Config.
type Option func(*Client)

// WithTransport replaces the net/http transport, for example with a test
// double. Middleware (request ID, throttling, logging) still wraps it.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.base = t }
}

// WithHTTPClient sets the *http.Client used by the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver registers an observer on the client's hub.
func WithObserver(o observability.Observer) Option {
	return func(c *Client) { c.hub.Register(o) }
}

// WithLogger sets the logger used by transport logging and the hub.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetryPolicy replaces the policy built from Config.Retry, e.g. to
// inject deterministic randomness.
func WithRetryPolicy(p *retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// Client is a CoreX gateway client. It is safe for concurrent use.
type Client struct {
	cfg        Config
	base       transport.Transport
	transport  transport.Transport
	httpClient *http.Client
	policy     *retry.Policy
	hub        *observability.Hub
	inflight   *transport.InFlight
	logger     *slog.Logger

	// sleep and now are replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a Client. BaseURL and APIKey are required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("API key cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:      cfg,
		hub:      observability.NewHub(),
		inflight: transport.NewInFlight(),
		sleep:    retry.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.hub.SetLogger(c.logger)

	if c.policy == nil {
		rc := retry.DefaultConfig()
		if cfg.Retry != nil {
			rc = *cfg.Retry
		}
		c.policy = retry.NewPolicy(rc)
	}

	if c.base == nil {
		h, err := transport.NewHTTP(cfg.BaseURL,
			transport.WithHTTPClient(c.httpClient),
			transport.WithUserAgent(cfg.UserAgent),
		)
		if err != nil {
			return nil, err
		}
		c.base = h
	}

	c.transport = transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.RateLimit(transport.NewLimiter(cfg.RateLimit, cfg.RateBurst)),
		transport.Logging(c.logger),
	)(c.base)

	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Hub returns the observability hub.
func (c *Client) Hub() *observability.Hub {
	return c.hub
}

// Observe registers an observer.
func (c *Client) Observe(o observability.Observer) {
	c.hub.Register(o)
}

// Cancel cancels the running calls with the given request ID, including
// open streams. It reports whether such a call was found. The cancelled
// call returns context.Canceled with cause transport.ErrCancelledByID.
func (c *Client) Cancel(requestID string) bool {
	return c.inflight.Cancel(requestID) > 0
}

// InFlight returns the number of calls currently in flight.
func (c *Client) InFlight() int {
	return c.inflight.Len()
}
