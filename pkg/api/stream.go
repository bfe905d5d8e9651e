package api

import "encoding/json"

// ChatChunk is a single SSE chunk of a streaming chat completion.
type ChatChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`

	// Usage is typically only present on the final chunk, and only when
	// stream_options.include_usage was requested.
	Usage *Usage `json:"usage,omitempty"`

	Extra *Fields `json:"-"`
}

// flatFragmentKeys are the members of a single-choice payload sent without
// a "choices" wrapper, e.g. {"index":0,"content":"Hel"}.
var flatFragmentKeys = []string{"index", "delta", "role", "content", "reasoning_content", "tool_calls", "finish_reason"}

// UnmarshalJSON decodes the chunk and keeps unknown members in Extra. A
// payload without "choices" that carries fragment members is decoded as a
// single choice.
func (c *ChatChunk) UnmarshalJSON(data []byte) error {
	type plain ChatChunk
	extra, err := decodeObject(data, (*plain)(c))
	if err != nil {
		return err
	}
	c.Extra = extra

	if c.Choices != nil || !hasAnyField(extra, flatFragmentKeys) {
		return nil
	}

	var choice ChunkChoice
	if _, ok := extra.Get("delta"); ok {
		if err := json.Unmarshal(data, &choice); err != nil {
			return err
		}
		choice.Extra = nil
	} else {
		var f DeltaFragment
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		choice = f.choice()
	}
	c.Choices = []ChunkChoice{choice}

	for _, k := range flatFragmentKeys {
		extra.Delete(k)
	}
	if extra.Len() == 0 {
		c.Extra = nil
	}
	return nil
}

func hasAnyField(fields *Fields, keys []string) bool {
	if fields == nil {
		return false
	}
	for _, k := range keys {
		if _, ok := fields.Get(k); ok {
			return true
		}
	}
	return false
}

// Fragments returns one DeltaFragment per choice, in wire order.
func (c *ChatChunk) Fragments() []DeltaFragment {
	frags := make([]DeltaFragment, 0, len(c.Choices))
	for _, ch := range c.Choices {
		frags = append(frags, ch.Fragment())
	}
	return frags
}

// ChunkChoice is a streaming choice delta.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`

	Extra *Fields `json:"-"`
}

// UnmarshalJSON decodes the choice and keeps unknown members in Extra.
func (c *ChunkChoice) UnmarshalJSON(data []byte) error {
	type plain ChunkChoice
	extra, err := decodeObject(data, (*plain)(c))
	if err != nil {
		return err
	}
	c.Extra = extra
	return nil
}

// Fragment flattens the choice into a DeltaFragment.
func (c ChunkChoice) Fragment() DeltaFragment {
	return DeltaFragment{
		Index:            c.Index,
		Role:             c.Delta.Role,
		Content:          c.Delta.Content,
		ReasoningContent: c.Delta.ReasoningContent,
		ToolCalls:        c.Delta.ToolCalls,
		FinishReason:     c.FinishReason,
	}
}

// ChunkDelta holds incremental content in a streaming chunk.
type ChunkDelta struct {
	Role             string             `json:"role,omitempty"`
	Content          *string            `json:"content,omitempty"`
	ReasoningContent *string            `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCallFragment `json:"tool_calls,omitempty"`

	Extra *Fields `json:"-"`
}

// UnmarshalJSON decodes the delta and keeps unknown members in Extra.
func (d *ChunkDelta) UnmarshalJSON(data []byte) error {
	type plain ChunkDelta
	extra, err := decodeObject(data, (*plain)(d))
	if err != nil {
		return err
	}
	d.Extra = extra
	return nil
}

// ToolCallFragment is an incremental tool call. The first fragment for an
// index usually carries the id and function name; later ones only append
// argument text.
type ToolCallFragment struct {
	Index    int          `json:"index"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// DeltaFragment is the incremental piece of one logical choice. It decodes
// from the flat form {"index":0,"content":"Hel"} and is produced from
// OpenAI-style chunks by ChunkChoice.Fragment.
type DeltaFragment struct {
	Index            int                `json:"index"`
	Role             string             `json:"role,omitempty"`
	Content          *string            `json:"content,omitempty"`
	ReasoningContent *string            `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCallFragment `json:"tool_calls,omitempty"`
	FinishReason     *string            `json:"finish_reason,omitempty"`
}

// choice wraps the fragment as an OpenAI-style chunk choice.
func (f DeltaFragment) choice() ChunkChoice {
	return ChunkChoice{
		Index: f.Index,
		Delta: ChunkDelta{
			Role:             f.Role,
			Content:          f.Content,
			ReasoningContent: f.ReasoningContent,
			ToolCalls:        f.ToolCalls,
		},
		FinishReason: f.FinishReason,
	}
}
