package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rhuss/zaguan/pkg/api"
	"github.com/rhuss/zaguan/pkg/debug"
	"github.com/rhuss/zaguan/pkg/failure"
	"github.com/rhuss/zaguan/pkg/observability"
	"github.com/rhuss/zaguan/pkg/retry"
	"github.com/rhuss/zaguan/pkg/transport"
)

// errAttemptTimeout is the cancel cause of a streaming attempt whose
// response headers did not arrive in time.
var errAttemptTimeout = errors.New("attempt timed out")

// maxResponseBody bounds a non-streaming success body.
var maxResponseBody int64 = 32 << 20

// call is one logical call: a descriptor resent on every attempt plus the
// data needed for its observability events.
type call struct {
	req   *transport.Request
	model string
	start time.Time
}

// outcome is a successful attempt.
type outcome struct {
	status   int
	header   http.Header
	attempts int

	// body is set for non-streaming calls.
	body []byte

	// resp and cancel are set for streaming calls; the caller owns both.
	resp   *transport.Response
	cancel context.CancelFunc
}

// newCall builds the request descriptor. body is JSON-encoded when non-nil.
func (c *Client) newCall(method, path string, query url.Values, body any, model string, stream bool, opts []CallOption) (*call, error) {
	o := applyCallOptions(opts)

	id := o.requestID
	if id == "" {
		id = api.NewRequestID()
	}

	header := make(http.Header)
	for k, vs := range o.header {
		header[k] = append([]string(nil), vs...)
	}
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	header.Set(api.RequestIDHeader, id)
	if stream {
		header.Set("Accept", "text/event-stream")
	} else {
		header.Set("Accept", "application/json")
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		header.Set("Content-Type", "application/json")
	}

	return &call{
		req: &transport.Request{
			Method:    method,
			Path:      path,
			Query:     query,
			Header:    header,
			Body:      payload,
			Stream:    stream,
			Timeout:   o.timeout,
			RequestID: id,
		},
		model: model,
	}, nil
}

// execute runs the retry loop for cl and returns the successful attempt.
//
// Failed attempts emit one ErrorRaised each. When the policy gives up the
// last failure is returned. Cancellation of ctx returns the context error
// and emits a single cancelled ErrorRaised.
func (c *Client) execute(ctx context.Context, cl *call) (*outcome, error) {
	cl.start = c.now()
	req := cl.req

	c.hub.Emit(ctx, observability.RequestStarted{
		RequestID: req.RequestID,
		Time:      cl.start,
		Method:    req.Method,
		Path:      req.Path,
		Model:     cl.model,
		Stream:    req.Stream,
	})

	var state retry.State
	for {
		if err := ctx.Err(); err != nil {
			c.emitCancelled(ctx, cl, state.Attempt+1, err)
			return nil, err
		}

		out, f := c.attempt(ctx, cl)
		if f == nil {
			out.attempts = state.Attempt + 1
			return out, nil
		}

		if err := ctx.Err(); err != nil {
			c.emitCancelled(ctx, cl, state.Attempt+1, err)
			return nil, err
		}

		if f.RequestID == "" {
			f = f.WithRequestID(req.RequestID)
		}
		decision := state.Fail(c.policy, f)

		c.hub.Emit(ctx, observability.ErrorRaised{
			RequestID:  req.RequestID,
			Time:       c.now(),
			Latency:    c.now().Sub(cl.start),
			Model:      cl.model,
			Kind:       f.Kind,
			Message:    f.Error(),
			StatusCode: f.StatusCode,
			Attempt:    state.Attempt + 1,
			WillRetry:  decision.Retry,
			RetryDelay: decision.Delay,
			Err:        f,
		})

		if !decision.Retry {
			return nil, f
		}

		debug.Log(debug.Retry, "retrying request",
			"request_id", req.RequestID,
			"attempt", state.Attempt+1,
			"kind", f.Kind.String(),
			"delay", decision.Delay,
		)
		if err := c.sleep(ctx, decision.Delay); err != nil {
			c.emitCancelled(ctx, cl, state.Attempt+1, err)
			return nil, err
		}
		state.Advance(decision.Delay)
	}
}

// attempt sends the descriptor once. It returns either a successful
// outcome or the classified failure of this attempt.
func (c *Client) attempt(ctx context.Context, cl *call) (*outcome, *failure.Error) {
	req := cl.req
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	if req.Stream {
		return c.attemptStream(ctx, req, timeout)
	}

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.transport.Do(actx, req)
	if err != nil {
		return nil, attemptFailure(actx, err, timeout)
	}
	defer resp.Body.Close()

	if !resp.OK() {
		return nil, classify(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, attemptFailure(actx, err, timeout)
	}
	if int64(len(body)) > maxResponseBody {
		f := failure.New(failure.KindUnknown, fmt.Sprintf("response body too large: exceeds %d bytes", maxResponseBody))
		f.StatusCode = resp.StatusCode
		return nil, f
	}
	debug.Body(debug.Transport, "response body", body, "request_id", req.RequestID)

	return &outcome{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// attemptStream bounds only the wait for response headers; the open body
// lives until the caller cancels.
func (c *Client) attemptStream(ctx context.Context, req *transport.Request, timeout time.Duration) (*outcome, *failure.Error) {
	actx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(timeout, func() { cancel(errAttemptTimeout) })

	resp, err := c.transport.Do(actx, req)
	if !timer.Stop() && err == nil {
		// The timer fired while headers were arriving.
		resp.Body.Close()
		err = errAttemptTimeout
	}
	if err != nil {
		f := attemptFailure(actx, err, timeout)
		cancel(nil)
		return nil, f
	}

	if !resp.OK() {
		f := classify(resp)
		resp.Body.Close()
		cancel(nil)
		return nil, f
	}

	return &outcome{
		status: resp.StatusCode,
		header: resp.Header,
		resp:   resp,
		cancel: func() { cancel(nil) },
	}, nil
}

// classify reads the error body of resp and classifies it.
func classify(resp *transport.Response) *failure.Error {
	return failure.ClassifyResponse(&http.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	})
}

// attemptFailure maps a transport error. An attempt that hit its own
// timeout is KindTimeout even when the transport reports a cancellation.
func attemptFailure(actx context.Context, err error, timeout time.Duration) *failure.Error {
	if f, ok := failure.As(err); ok {
		return f
	}
	if errors.Is(err, errAttemptTimeout) || errors.Is(context.Cause(actx), errAttemptTimeout) ||
		errors.Is(actx.Err(), context.DeadlineExceeded) {
		return &failure.Error{
			Kind:    failure.KindTimeout,
			Message: fmt.Sprintf("no response within %s", timeout),
			Err:     err,
		}
	}
	return failure.FromTransportError(err)
}

func (c *Client) emitCancelled(ctx context.Context, cl *call, attempt int, err error) {
	c.hub.Emit(ctx, observability.ErrorRaised{
		RequestID: cl.req.RequestID,
		Time:      c.now(),
		Latency:   c.now().Sub(cl.start),
		Model:     cl.model,
		Message:   err.Error(),
		Attempt:   attempt,
		Cancelled: true,
		Err:       err,
	})
}

func (c *Client) emitCompleted(ctx context.Context, cl *call, out *outcome, model string, usage *api.Usage) {
	// Events are keyed by the requested model; the response model is the
	// fallback for calls that name none.
	if cl.model != "" {
		model = cl.model
	}
	var cost *float64
	if usage != nil {
		cost = usage.Cost
	}
	c.hub.Emit(ctx, observability.ResponseCompleted{
		RequestID:  cl.req.RequestID,
		Time:       c.now(),
		Latency:    c.now().Sub(cl.start),
		StatusCode: out.status,
		Model:      model,
		Stream:     cl.req.Stream,
		Attempts:   out.attempts,
		Usage:      usage,
		Cost:       cost,
	})
}

// decodeFailure reports a 2xx body that could not be decoded. It is final
// and not retried.
func (c *Client) decodeFailure(ctx context.Context, cl *call, out *outcome, err error) *failure.Error {
	f := &failure.Error{
		Kind:       failure.KindUnknown,
		StatusCode: out.status,
		Message:    fmt.Sprintf("failed to parse response: %v", err),
		RequestID:  cl.req.RequestID,
		Err:        err,
	}
	c.hub.Emit(ctx, observability.ErrorRaised{
		RequestID:  cl.req.RequestID,
		Time:       c.now(),
		Latency:    c.now().Sub(cl.start),
		Model:      cl.model,
		Kind:       f.Kind,
		Message:    f.Error(),
		StatusCode: f.StatusCode,
		Attempt:    out.attempts,
		Err:        f,
	})
	return f
}

// track registers the call for Client.Cancel and returns a context that
// Cancel ends, plus a release func.
func (c *Client) track(ctx context.Context, cl *call) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	ctx = transport.ContextWithRequestID(ctx, cl.req.RequestID)
	untrack := c.inflight.Track(cl.req.RequestID, cancel)
	return ctx, func() {
		untrack()
		cancel(nil)
	}
}

// doJSON runs a non-streaming call and decodes the body into out.
func (c *Client) doJSON(ctx context.Context, cl *call, out any) (*outcome, error) {
	ctx, release := c.track(ctx, cl)
	defer release()

	res, err := c.execute(ctx, cl)
	if err != nil {
		return nil, err
	}
	if out != nil && len(bytes.TrimSpace(res.body)) > 0 {
		if err := json.Unmarshal(res.body, out); err != nil {
			return nil, c.decodeFailure(ctx, cl, res, err)
		}
	}
	return res, nil
}
