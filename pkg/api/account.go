package api

// ModelInfo describes a model served by the gateway.
type ModelInfo struct {
	ID          string         `json:"id"`
	Object      string         `json:"object"`
	OwnedBy     string         `json:"owned_by,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	Extra *Fields `json:"-"`
}

// UnmarshalJSON decodes the model and keeps unknown members in Extra.
func (m *ModelInfo) UnmarshalJSON(data []byte) error {
	type plain ModelInfo
	extra, err := decodeObject(data, (*plain)(m))
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

// ModelList is the response from /v1/models.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ModelCapabilities describes what a model supports.
type ModelCapabilities struct {
	ModelID           string         `json:"model_id"`
	SupportsVision    bool           `json:"supports_vision"`
	SupportsTools     bool           `json:"supports_tools"`
	SupportsReasoning bool           `json:"supports_reasoning"`
	MaxContextTokens  *int           `json:"max_context_tokens,omitempty"`
	ProviderSpecific  map[string]any `json:"provider_specific,omitempty"`

	Extra *Fields `json:"-"`
}

// UnmarshalJSON decodes capabilities and keeps unknown members in Extra.
func (c *ModelCapabilities) UnmarshalJSON(data []byte) error {
	type plain ModelCapabilities
	extra, err := decodeObject(data, (*plain)(c))
	if err != nil {
		return err
	}
	c.Extra = extra
	return nil
}

// CreditsBalance is the response from /v1/credits/balance.
type CreditsBalance struct {
	CreditsRemaining int            `json:"credits_remaining"`
	Tier             string         `json:"tier"`
	Bands            []string       `json:"bands"`
	ResetDate        string         `json:"reset_date,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`

	Extra *Fields `json:"-"`
}

// UnmarshalJSON decodes the balance and keeps unknown members in Extra.
func (b *CreditsBalance) UnmarshalJSON(data []byte) error {
	type plain CreditsBalance
	extra, err := decodeObject(data, (*plain)(b))
	if err != nil {
		return err
	}
	b.Extra = extra
	return nil
}

// CreditsHistoryEntry is one debited call.
type CreditsHistoryEntry struct {
	ID               string  `json:"id"`
	Timestamp        string  `json:"timestamp"`
	RequestID        string  `json:"request_id"`
	Model            string  `json:"model"`
	Provider         string  `json:"provider"`
	Band             string  `json:"band"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CreditsDebited   int     `json:"credits_debited"`
	Cost             float64 `json:"cost"`
	LatencyMS        int     `json:"latency_ms"`
	Status           string  `json:"status"`
}

// CreditsHistory is a page of the credits history.
type CreditsHistory struct {
	Entries      []CreditsHistoryEntry `json:"entries"`
	TotalEntries int                   `json:"total_entries"`
	NextCursor   string                `json:"next_cursor,omitempty"`
}

// CreditsStats aggregates credit usage over a period.
type CreditsStats struct {
	Period           string           `json:"period"`
	TotalCreditsUsed int              `json:"total_credits_used"`
	TotalCost        float64          `json:"total_cost"`
	ModelBreakdown   []map[string]any `json:"model_breakdown"`
}
