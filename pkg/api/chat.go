package api

import "encoding/json"

// Chat Completions request/response types. These mirror the OpenAI Chat
// Completions wire format plus the CoreX extensions, which are passed
// through without interpretation.

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleDeveloper = "developer"
)

// ChatRequest is the request body for /v1/chat/completions.
type ChatRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      *int           `json:"max_tokens,omitempty"`
	TopP           *float64       `json:"top_p,omitempty"`
	Stream         bool           `json:"stream,omitempty"`
	StreamOptions  *StreamOptions `json:"stream_options,omitempty"`
	Tools          []Tool         `json:"tools,omitempty"`
	ToolChoice     any            `json:"tool_choice,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`

	N                *int               `json:"n,omitempty"`
	PresencePenalty  *float64           `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64           `json:"frequency_penalty,omitempty"`
	LogitBias        map[string]float64 `json:"logit_bias,omitempty"`
	Stop             any                `json:"stop,omitempty"`
	Seed             *int               `json:"seed,omitempty"`
	User             string             `json:"user,omitempty"`
	Metadata         map[string]string  `json:"metadata,omitempty"`
	Modalities       []string           `json:"modalities,omitempty"`
	Audio            map[string]any     `json:"audio,omitempty"`

	// Provider extensions. Their meaning belongs to the upstream provider.
	ReasoningEffort        string         `json:"reasoning_effort,omitempty"`
	Thinking               *bool          `json:"thinking,omitempty"`
	VirtualModelID         string         `json:"virtual_model_id,omitempty"`
	Store                  *bool          `json:"store,omitempty"`
	Verbosity              string         `json:"verbosity,omitempty"`
	ParallelToolCalls      *bool          `json:"parallel_tool_calls,omitempty"`
	ProviderSpecificParams map[string]any `json:"provider_specific_params,omitempty"`

	// ExtraBody is merged into provider_specific_params on the wire, with
	// ExtraBody winning on key conflicts.
	ExtraBody map[string]any `json:"-"`

	// Extra holds additional top-level members sent verbatim.
	Extra *Fields `json:"-"`
}

// StreamOptions controls streaming behavior.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// MarshalJSON encodes the request, folding ExtraBody into
// provider_specific_params and appending Extra members.
func (r ChatRequest) MarshalJSON() ([]byte, error) {
	type plain ChatRequest
	p := plain(r)

	if len(r.ExtraBody) > 0 {
		merged := make(map[string]any, len(r.ProviderSpecificParams)+len(r.ExtraBody))
		for k, v := range r.ProviderSpecificParams {
			merged[k] = v
		}
		for k, v := range r.ExtraBody {
			merged[k] = v
		}
		p.ProviderSpecificParams = merged
	}

	return encodeObject(p, r.Extra)
}

// UnmarshalJSON decodes the request and keeps unknown members in Extra.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	type plain ChatRequest
	extra, err := decodeObject(data, (*plain)(r))
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}

// Message is one conversation turn. Content is either a string or a list of
// content parts (maps with a "type" member).
type Message struct {
	Role         string        `json:"role,omitempty"`
	Content      any           `json:"content,omitempty"`
	Name         string        `json:"name,omitempty"`
	ToolCallID   string        `json:"tool_call_id,omitempty"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`

	// ReasoningContent is reported by reasoning models (e.g., DeepSeek R1).
	ReasoningContent *string `json:"reasoning_content,omitempty"`

	Extra *Fields `json:"-"`
}

// MarshalJSON encodes the message including Extra members.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	return encodeObject(plain(m), m.Extra)
}

// UnmarshalJSON decodes the message and keeps unknown members in Extra.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	extra, err := decodeObject(data, (*plain)(m))
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

// Text returns Content when it is a plain string, and "" otherwise.
func (m Message) Text() string {
	if s, ok := m.Content.(string); ok {
		return s
	}
	return ""
}

// NewMessage creates a plain-text message with the given role.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// ToolCall is a tool invocation requested by the assistant.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds a function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is a tool definition offered to the model.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef is a function definition for a tool.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatResponse is the non-streaming response from /v1/chat/completions.
type ChatResponse struct {
	ID       string         `json:"id"`
	Object   string         `json:"object"`
	Created  int64          `json:"created"`
	Model    string         `json:"model"`
	Choices  []Choice       `json:"choices"`
	Usage    *Usage         `json:"usage,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	Extra *Fields `json:"-"`
}

// UnmarshalJSON decodes the response and keeps unknown members in Extra.
func (r *ChatResponse) UnmarshalJSON(data []byte) error {
	type plain ChatResponse
	extra, err := decodeObject(data, (*plain)(r))
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}

// Content returns the text of the first choice, or "" if there is none.
func (r *ChatResponse) Content() string {
	if len(r.Choices) == 0 || r.Choices[0].Message == nil {
		return ""
	}
	return r.Choices[0].Message.Text()
}

// Choice is one completion alternative in a non-streaming response.
type Choice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`

	Extra *Fields `json:"-"`
}

// UnmarshalJSON decodes the choice and keeps unknown members in Extra.
func (c *Choice) UnmarshalJSON(data []byte) error {
	type plain Choice
	extra, err := decodeObject(data, (*plain)(c))
	if err != nil {
		return err
	}
	c.Extra = extra
	return nil
}

// Usage holds token accounting for one call.
type Usage struct {
	PromptTokens            int           `json:"prompt_tokens"`
	CompletionTokens        int           `json:"completion_tokens"`
	TotalTokens             int           `json:"total_tokens"`
	PromptTokensDetails     *TokenDetails `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *TokenDetails `json:"completion_tokens_details,omitempty"`

	// Cost is the gateway-reported cost of the call, when it reports one.
	Cost *float64 `json:"cost,omitempty"`

	Extra *Fields `json:"-"`
}

// UnmarshalJSON decodes usage and keeps unknown members in Extra.
func (u *Usage) UnmarshalJSON(data []byte) error {
	type plain Usage
	extra, err := decodeObject(data, (*plain)(u))
	if err != nil {
		return err
	}
	u.Extra = extra
	return nil
}

// ReasoningTokens returns the reasoning token count, or 0 if not reported.
func (u *Usage) ReasoningTokens() int {
	if u == nil || u.CompletionTokensDetails == nil {
		return 0
	}
	return u.CompletionTokensDetails.ReasoningTokens
}

// TokenDetails breaks down prompt or completion tokens.
type TokenDetails struct {
	ReasoningTokens          int `json:"reasoning_tokens,omitempty"`
	CachedTokens             int `json:"cached_tokens,omitempty"`
	AudioTokens              int `json:"audio_tokens,omitempty"`
	AcceptedPredictionTokens int `json:"accepted_prediction_tokens,omitempty"`
	RejectedPredictionTokens int `json:"rejected_prediction_tokens,omitempty"`
}
