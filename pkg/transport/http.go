package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/zaguan/pkg/debug"
)

// DefaultUserAgent is sent when a request carries no User-Agent header.
const DefaultUserAgent = "zaguan-go"

// HTTP is a Transport backed by net/http.
type HTTP struct {
	baseURL      *url.URL
	client       *http.Client
	streamClient *http.Client
	userAgent    string
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient sets the client used for non-streaming requests. Its
// Transport is shared with the streaming client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithUserAgent sets the default User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) {
		if ua != "" {
			h.userAgent = ua
		}
	}
}

// NewHTTP creates an HTTP transport for the given base URL.
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTP, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}

	h := &HTTP{
		baseURL:   u,
		client:    &http.Client{},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(h)
	}

	// Use a client without timeout for streaming. The context controls
	// the request lifetime instead.
	h.streamClient = &http.Client{
		Transport:     h.client.Transport,
		CheckRedirect: h.client.CheckRedirect,
		Jar:           h.client.Jar,
	}
	return h, nil
}

// BaseURL returns the normalized base URL.
func (h *HTTP) BaseURL() string {
	return h.baseURL.String()
}

// Do sends req. Non-2xx statuses are returned as a Response, not an error.
func (h *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	target := h.resolve(req)

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", h.userAgent)
	}

	client := h.client
	if req.Stream {
		client = h.streamClient
	}

	debug.Log(debug.Transport, "sending request",
		"method", req.Method, "url", target, "stream", req.Stream, "request_id", req.RequestID)
	if req.Body != nil {
		debug.Body(debug.Transport, "request body", req.Body, "request_id", req.RequestID)
	}

	start := time.Now()
	httpResp, err := client.Do(httpReq)
	if err != nil {
		debug.Log(debug.Transport, "request failed", "error", err, "request_id", req.RequestID)
		return nil, unwrapContextError(ctx, err)
	}

	debug.Log(debug.Transport, "response received",
		"status", httpResp.StatusCode,
		"duration", time.Since(start),
		"content_type", httpResp.Header.Get("Content-Type"),
		"request_id", req.RequestID,
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       httpResp.Body,
	}, nil
}

func (h *HTTP) resolve(req *Request) string {
	u := *h.baseURL
	path := req.Path
	rawQuery := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, rawQuery = path[:i], path[i+1:]
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(req.Query) > 0 {
		q, _ := url.ParseQuery(rawQuery)
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		rawQuery = q.Encode()
	}
	u.RawQuery = rawQuery
	return u.String()
}

// unwrapContextError returns the bare context error when the send failed
// because ctx ended, so callers can match it with errors.Is and ==.
func unwrapContextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	return err
}
