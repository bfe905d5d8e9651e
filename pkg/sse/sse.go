// Package sse parses text/event-stream response bodies into discrete events.
//
// Expected framing:
//
//	event: message\n
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Comment lines (":" prefix), unknown fields and lines without a colon are
// skipped, since gateways are allowed to interleave keep-alive and
// diagnostic lines.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// DoneSentinel is the data payload that ends an OpenAI-style stream.
const DoneSentinel = "[DONE]"

// maxLineSize bounds a single SSE line.
const maxLineSize = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	// Name is the "event:" field, empty when absent.
	Name string

	// ID is the "id:" field, empty when absent.
	ID string

	// Data is the payload; multiple data lines are joined with "\n".
	Data string
}

// Parser reads events from one response body. It is forward-only and is
// exhausted exactly once.
type Parser struct {
	scanner *bufio.Scanner
	done    bool
	err     error
}

// NewParser creates a Parser reading from r.
func NewParser(r io.Reader) *Parser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Parser{scanner: scanner}
}

// Next returns the next event. It returns io.EOF once the stream ended,
// either at the [DONE] sentinel or at the end of the body. Read errors
// from the underlying reader are returned as-is and are sticky.
func (p *Parser) Next() (Event, error) {
	if p.err != nil {
		return Event{}, p.err
	}
	if p.done {
		return Event{}, io.EOF
	}

	var (
		ev      Event
		data    strings.Builder
		hasData bool
	)

	dispatch := func() (Event, bool) {
		if !hasData {
			// Per SSE rules an event without data is not dispatched.
			ev = Event{}
			return Event{}, false
		}
		ev.Data = data.String()
		return ev, true
	}

	for p.scanner.Scan() {
		line := strings.TrimSuffix(p.scanner.Text(), "\r")

		if line == "" {
			out, ok := dispatch()
			if !ok {
				continue
			}
			if out.Data == DoneSentinel {
				p.done = true
				return Event{}, io.EOF
			}
			return out, nil
		}

		field, value, found := strings.Cut(line, ":")
		if !found || field == "" {
			// Lines without a colon and comments.
			continue
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			ev.Name = value
		case "id":
			ev.ID = value
		}
	}

	if err := p.scanner.Err(); err != nil {
		p.err = err
		return Event{}, err
	}

	// The body ended without a trailing blank line: dispatch what is pending.
	p.done = true
	if out, ok := dispatch(); ok && out.Data != DoneSentinel {
		return out, nil
	}
	return Event{}, io.EOF
}

// Collect drains the parser and returns all events. Intended for tests and
// small bodies.
func Collect(r io.Reader) ([]Event, error) {
	p := NewParser(r)
	var events []Event
	for {
		ev, err := p.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
