package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/rhuss/zaguan/pkg/api"
	"github.com/rhuss/zaguan/pkg/debug"
	"github.com/rhuss/zaguan/pkg/failure"
	"github.com/rhuss/zaguan/pkg/observability"
	"github.com/rhuss/zaguan/pkg/sse"
	"github.com/rhuss/zaguan/pkg/stream"
)

// Stream is an open streaming chat completion. Iterate with Next, read the
// chunk with Current and check Err once Next returns false. Close releases
// the connection and must be called, also after a failure.
//
//	s, err := c.ChatStream(ctx, req)
//	if err != nil { ... }
//	defer s.Close()
//	for s.Next() {
//		fmt.Print(s.Current().Choices[0].Delta.Content)
//	}
//	if err := s.Err(); err != nil { ... }
//
// Failures after the first byte are never retried. The chunks received so
// far stay available through Accumulator.
type Stream struct {
	c       *Client
	ctx     context.Context
	cl      *call
	out     *outcome
	release func()

	parser  *sse.Parser
	acc     *stream.Accumulator
	current *api.ChatChunk
	err     error

	closeOnce sync.Once
	finished  bool
}

func newStream(ctx context.Context, c *Client, cl *call, out *outcome, release func()) *Stream {
	return &Stream{
		c:       c,
		ctx:     ctx,
		cl:      cl,
		out:     out,
		release: release,
		parser:  sse.NewParser(out.resp.Body),
		acc:     stream.NewAccumulator(),
	}
}

// Next advances to the next chunk. It returns false at the end of the
// stream or on failure; Err tells them apart.
func (s *Stream) Next() bool {
	if s.finished {
		return false
	}

	for {
		ev, err := s.parser.Next()
		if err == io.EOF {
			s.finish(nil)
			return false
		}
		if err != nil {
			s.fail(err)
			return false
		}

		data := bytes.TrimSpace([]byte(ev.Data))
		if len(data) == 0 {
			continue
		}
		debug.Trace(debug.Streaming, "stream event", "request_id", s.cl.req.RequestID, "event", ev.Name, "data", ev.Data)

		if f := inStreamError(data, s.out.status); f != nil {
			s.fail(f)
			return false
		}

		var chunk api.ChatChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			s.fail(failure.StreamDecode(err, ev.Data))
			return false
		}

		s.acc.AddChunk(&chunk)
		s.current = &chunk
		return true
	}
}

// Current returns the chunk read by the last successful Next.
func (s *Stream) Current() *api.ChatChunk {
	return s.current
}

// Err returns the error that ended the stream, or nil after a clean end.
// Cancellation of the call's context is reported as the context error.
func (s *Stream) Err() error {
	return s.err
}

// Accumulator returns the state reconstructed from all chunks so far.
func (s *Stream) Accumulator() *stream.Accumulator {
	return s.acc
}

// Message returns the accumulated message of choice 0.
func (s *Stream) Message() stream.Message {
	m, _ := s.acc.Message(0)
	return m
}

// Response converts the accumulated chunks into a non-streaming response.
func (s *Stream) Response() *api.ChatResponse {
	return s.acc.Response()
}

// RequestID returns the identifier of the call.
func (s *Stream) RequestID() string {
	return s.cl.req.RequestID
}

// Close releases the connection. Closing a stream before its end counts as
// a cancellation of the call. Close must not run concurrently with Next;
// use Client.Cancel to abort a stream from another goroutine.
func (s *Stream) Close() error {
	if !s.finished {
		s.finished = true
		s.c.emitCancelled(s.ctx, s.cl, s.out.attempts, context.Canceled)
	}
	s.closeBody()
	return nil
}

func (s *Stream) closeBody() {
	s.closeOnce.Do(func() {
		s.out.resp.Body.Close()
		s.out.cancel()
		s.release()
	})
}

// finish ends a cleanly terminated stream and emits ResponseCompleted.
func (s *Stream) finish(err error) {
	s.finished = true
	s.err = err
	s.closeBody()
	s.c.emitCompleted(s.ctx, s.cl, s.out, s.acc.Model(), s.acc.Usage())
}

// fail ends the stream with a mid-stream failure. Nothing is retried: bytes
// were already delivered to the caller.
func (s *Stream) fail(err error) {
	s.finished = true
	defer s.closeBody()

	if ctxErr := s.ctx.Err(); ctxErr != nil {
		s.err = ctxErr
		s.c.emitCancelled(s.ctx, s.cl, s.out.attempts, ctxErr)
		return
	}

	f, ok := failure.As(err)
	switch {
	case ok:
	case errors.Is(err, bufio.ErrTooLong):
		f = failure.StreamDecode(err, "")
		f.Message = "stream event exceeds the maximum line size"
	default:
		f = failure.FromTransportError(err)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			f.Message = "stream ended unexpectedly"
		}
	}
	if f.RequestID == "" {
		f = f.WithRequestID(s.cl.req.RequestID)
	}
	s.err = f

	s.c.hub.Emit(s.ctx, observability.ErrorRaised{
		RequestID:  s.cl.req.RequestID,
		Time:       s.c.now(),
		Latency:    s.c.now().Sub(s.cl.start),
		Model:      s.cl.model,
		Kind:       f.Kind,
		Message:    f.Error(),
		StatusCode: f.StatusCode,
		Attempt:    s.out.attempts,
		Err:        f,
	})
}

// inStreamError detects an error object sent as a stream event, e.g.
// data: {"error":{"message":"upstream overloaded","type":"server_error"}}.
func inStreamError(data []byte, status int) *failure.Error {
	var probe struct {
		Error   json.RawMessage `json:"error"`
		Choices json.RawMessage `json:"choices"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil
	}
	if len(probe.Error) == 0 || string(probe.Error) == "null" || len(probe.Choices) > 0 {
		return nil
	}
	f := failure.Classify(status, nil, data)
	if f.Kind == failure.KindUnknown {
		// A 2xx status carries no kind; fall back to the error type.
		if k, err := failure.ParseKind(f.Code); err == nil {
			f.Kind = k
		}
	}
	return f
}
