// Package stream reassembles streamed delta fragments into complete
// messages, one per choice index.
package stream

import (
	"sort"
	"strings"

	"github.com/rhuss/zaguan/pkg/api"
)

// Message is the reconstructed state of one choice.
type Message struct {
	Index            int
	Role             string
	Content          string
	ReasoningContent string
	ToolCalls        []api.ToolCall
	FinishReason     string
}

// Finished reports whether a finish reason was observed.
func (m Message) Finished() bool {
	return m.FinishReason != ""
}

// toolCallBuffer tracks incremental tool call assembly for one tool call
// index.
type toolCallBuffer struct {
	ID   string
	Type string
	Name string
	Args strings.Builder
}

type choiceBuffer struct {
	role      string
	content   strings.Builder
	reasoning strings.Builder
	toolCalls map[int]*toolCallBuffer
	finish    string
}

// Accumulator folds delta fragments into per-index messages. It is not safe
// for concurrent mutation; a stream owns its accumulator.
type Accumulator struct {
	choices map[int]*choiceBuffer

	id      string
	model   string
	created int64
	usage   *api.Usage
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{choices: make(map[int]*choiceBuffer)}
}

// Add applies one fragment. A never-seen index is initialized lazily.
// Fragments arriving after the index reported a finish reason are ignored.
func (a *Accumulator) Add(f api.DeltaFragment) {
	if a.choices == nil {
		a.choices = make(map[int]*choiceBuffer)
	}
	cb, ok := a.choices[f.Index]
	if !ok {
		cb = &choiceBuffer{toolCalls: make(map[int]*toolCallBuffer)}
		a.choices[f.Index] = cb
	}
	if cb.finish != "" {
		return
	}

	if cb.role == "" && f.Role != "" {
		cb.role = f.Role
	}
	if f.Content != nil {
		cb.content.WriteString(*f.Content)
	}
	if f.ReasoningContent != nil {
		cb.reasoning.WriteString(*f.ReasoningContent)
	}

	for _, tc := range f.ToolCalls {
		buf, ok := cb.toolCalls[tc.Index]
		if !ok {
			buf = &toolCallBuffer{}
			cb.toolCalls[tc.Index] = buf
		}
		if buf.ID == "" {
			buf.ID = tc.ID
		}
		if buf.Type == "" {
			buf.Type = tc.Type
		}
		if buf.Name == "" {
			buf.Name = tc.Function.Name
		}
		buf.Args.WriteString(tc.Function.Arguments)
	}

	if f.FinishReason != nil && *f.FinishReason != "" {
		cb.finish = *f.FinishReason
	}
}

// AddChunk applies every choice of an OpenAI-style chunk. The response id,
// model and creation time are taken from the first chunk that carries them;
// usage is replaced by the latest chunk that reports it.
func (a *Accumulator) AddChunk(c *api.ChatChunk) {
	if c == nil {
		return
	}
	if a.id == "" {
		a.id = c.ID
	}
	if a.model == "" {
		a.model = c.Model
	}
	if a.created == 0 {
		a.created = c.Created
	}
	if c.Usage != nil {
		a.usage = c.Usage
	}
	for _, f := range c.Fragments() {
		a.Add(f)
	}
}

// Message returns the accumulated message for index.
func (a *Accumulator) Message(index int) (Message, bool) {
	cb, ok := a.choices[index]
	if !ok {
		return Message{}, false
	}
	return cb.snapshot(index), true
}

// Messages returns all accumulated messages ordered by index.
func (a *Accumulator) Messages() []Message {
	indices := make([]int, 0, len(a.choices))
	for i := range a.choices {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	out := make([]Message, 0, len(indices))
	for _, i := range indices {
		out = append(out, a.choices[i].snapshot(i))
	}
	return out
}

// Content returns the content of choice 0, or "" if none arrived.
func (a *Accumulator) Content() string {
	m, _ := a.Message(0)
	return m.Content
}

// ID returns the response id reported by the stream.
func (a *Accumulator) ID() string { return a.id }

// Model returns the model reported by the stream.
func (a *Accumulator) Model() string { return a.model }

// Created returns the creation timestamp reported by the stream.
func (a *Accumulator) Created() int64 { return a.created }

// Usage returns the latest usage block, or nil if the stream reported none.
func (a *Accumulator) Usage() *api.Usage { return a.usage }

// Response converts the accumulated state into a non-streaming response
// shape.
func (a *Accumulator) Response() *api.ChatResponse {
	resp := &api.ChatResponse{
		ID:      a.id,
		Object:  "chat.completion",
		Created: a.created,
		Model:   a.model,
		Usage:   a.usage,
	}
	for _, m := range a.Messages() {
		msg := api.NewMessage(m.Role, m.Content)
		if m.ReasoningContent != "" {
			reasoning := m.ReasoningContent
			msg.ReasoningContent = &reasoning
		}
		msg.ToolCalls = m.ToolCalls
		resp.Choices = append(resp.Choices, api.Choice{
			Index:        m.Index,
			Message:      &msg,
			FinishReason: m.FinishReason,
		})
	}
	return resp
}

// Reset clears all accumulated state.
func (a *Accumulator) Reset() {
	a.choices = make(map[int]*choiceBuffer)
	a.id = ""
	a.model = ""
	a.created = 0
	a.usage = nil
}

func (cb *choiceBuffer) snapshot(index int) Message {
	m := Message{
		Index:            index,
		Role:             cb.role,
		Content:          cb.content.String(),
		ReasoningContent: cb.reasoning.String(),
		FinishReason:     cb.finish,
	}
	if len(cb.toolCalls) == 0 {
		return m
	}

	keys := make([]int, 0, len(cb.toolCalls))
	for k := range cb.toolCalls {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		buf := cb.toolCalls[k]
		typ := buf.Type
		if typ == "" {
			typ = "function"
		}
		m.ToolCalls = append(m.ToolCalls, api.ToolCall{
			ID:   buf.ID,
			Type: typ,
			Function: api.FunctionCall{
				Name:      buf.Name,
				Arguments: buf.Args.String(),
			},
		})
	}
	return m
}
