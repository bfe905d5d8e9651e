package api

import (
	"fmt"
	"slices"
)

var knownRoles = []string{RoleSystem, RoleUser, RoleAssistant, RoleTool, RoleDeveloper, "function"}

// ValidationError reports a request field that fails a local check. Such
// requests are never sent.
type ValidationError struct {
	Param   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s (param: %s)", e.Message, e.Param)
}

func invalid(param, message string) *ValidationError {
	return &ValidationError{Param: param, Message: message}
}

// ValidateChatRequest checks a ChatRequest for validity. It returns the
// first problem found, or nil. Provider extension fields are not checked.
func ValidateChatRequest(req *ChatRequest) *ValidationError {
	if req.Model == "" {
		return invalid("model", "model is required")
	}

	if len(req.Messages) == 0 {
		return invalid("messages", "messages must contain at least one message")
	}
	for i, m := range req.Messages {
		param := fmt.Sprintf("messages[%d].role", i)
		if m.Role == "" {
			return invalid(param, "role is required")
		}
		if !slices.Contains(knownRoles, m.Role) {
			return invalid(param, fmt.Sprintf("unknown role %q", m.Role))
		}
		if m.Role == RoleTool && m.ToolCallID == "" {
			return invalid(fmt.Sprintf("messages[%d].tool_call_id", i), "tool messages need a tool_call_id")
		}
	}

	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return invalid("max_tokens", "max_tokens must be positive")
	}

	if req.Temperature != nil {
		if *req.Temperature < 0.0 || *req.Temperature > 2.0 {
			return invalid("temperature", "temperature must be between 0.0 and 2.0")
		}
	}

	if req.TopP != nil {
		if *req.TopP < 0.0 || *req.TopP > 1.0 {
			return invalid("top_p", "top_p must be between 0.0 and 1.0")
		}
	}

	if req.N != nil && *req.N < 1 {
		return invalid("n", "n must be at least 1")
	}

	for name, p := range map[string]*float64{"presence_penalty": req.PresencePenalty, "frequency_penalty": req.FrequencyPenalty} {
		if p != nil && (*p < -2.0 || *p > 2.0) {
			return invalid(name, name+" must be between -2.0 and 2.0")
		}
	}

	for i, tool := range req.Tools {
		if tool.Type != "" && tool.Type != "function" {
			return invalid(fmt.Sprintf("tools[%d].type", i), fmt.Sprintf("unsupported tool type %q", tool.Type))
		}
		if tool.Function.Name == "" {
			return invalid(fmt.Sprintf("tools[%d].function.name", i), "function name is required")
		}
	}

	return nil
}

// ValidateEmbeddingRequest checks an EmbeddingRequest for validity.
func ValidateEmbeddingRequest(req *EmbeddingRequest) *ValidationError {
	if req.Model == "" {
		return invalid("model", "model is required")
	}

	switch in := req.Input.(type) {
	case nil:
		return invalid("input", "input is required")
	case string:
		if in == "" {
			return invalid("input", "input must not be empty")
		}
	case []string:
		if len(in) == 0 {
			return invalid("input", "input must contain at least one entry")
		}
	}

	if req.Dimensions != nil && *req.Dimensions <= 0 {
		return invalid("dimensions", "dimensions must be positive")
	}

	return nil
}
