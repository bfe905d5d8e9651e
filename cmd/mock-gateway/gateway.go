package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/rhuss/zaguan/pkg/api"
)

const mockModel = "mock/echo-1"

// gateway serves the CoreX endpoints with canned data.
type gateway struct {
	logger *slog.Logger

	mu       sync.Mutex
	attempts map[string]int
}

func newGateway(logger *slog.Logger) http.Handler {
	g := &gateway{logger: logger, attempts: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", g.withFaults(g.handleChat))
	mux.HandleFunc("POST /v1/embeddings", g.withFaults(g.handleEmbeddings))
	mux.HandleFunc("GET /v1/models", g.withFaults(handleModels))
	mux.HandleFunc("GET /v1/capabilities", g.withFaults(handleCapabilities))
	mux.HandleFunc("GET /v1/credits/balance", g.withFaults(handleBalance))
	mux.HandleFunc("GET /v1/credits/history", g.withFaults(handleHistory))
	mux.HandleFunc("GET /v1/credits/stats", g.withFaults(handleStats))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	return mux
}

// withFaults answers with the fault named in X-Mock-Fault, if any, until
// X-Mock-Fail-Times attempts of the request ID have failed.
func (g *gateway) withFaults(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			writeError(w, http.StatusUnauthorized, "missing API key", "authentication_error", nil)
			return
		}

		fault := r.Header.Get("X-Mock-Fault")
		switch fault {
		case "", "drop", "malformed":
			// Stream faults are applied by the chat handler.
			next(w, r)
			return
		}
		if !g.shouldFail(r) {
			next(w, r)
			return
		}
		g.logger.Info("injecting fault", "fault", fault, "request_id", r.Header.Get(api.RequestIDHeader))

		switch fault {
		case "401":
			writeError(w, http.StatusUnauthorized, "invalid API key", "authentication_error", nil)
		case "402":
			writeError(w, http.StatusPaymentRequired, "insufficient credits", "insufficient_credits",
				map[string]any{"credits_required": 10, "credits_remaining": 2})
		case "403":
			writeError(w, http.StatusForbidden, "band access denied", "band_access_denied",
				map[string]any{"band": "D", "required_tier": "platinum", "current_tier": "pro"})
		case "429":
			if ra := r.Header.Get("X-Mock-Retry-After"); ra != "" {
				w.Header().Set("Retry-After", ra)
			}
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limit_exceeded", nil)
		case "500":
			writeError(w, http.StatusInternalServerError, "internal error", "server_error", nil)
		case "503":
			writeError(w, http.StatusServiceUnavailable, "upstream overloaded", "server_error", nil)
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mock fault %q", fault), "invalid_request_error", nil)
		}
	}
}

// shouldFail counts an attempt for the request ID and reports whether it
// is still within X-Mock-Fail-Times. Without the header every attempt fails.
func (g *gateway) shouldFail(r *http.Request) bool {
	limit, err := strconv.Atoi(r.Header.Get("X-Mock-Fail-Times"))
	if err != nil {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	id := r.Header.Get(api.RequestIDHeader)
	g.attempts[id]++
	return g.attempts[id] <= limit
}

func (g *gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request_error", nil)
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "model and messages are required", "invalid_request_error", nil)
		return
	}

	text := reply(&req)
	if req.Stream {
		g.streamChat(w, r, &req, text)
		return
	}

	resp := api.ChatResponse{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion",
		Created: 1700000000,
		Model:   req.Model,
		Choices: []api.Choice{{
			Index:        0,
			Message:      &api.Message{Role: api.RoleAssistant, Content: text},
			FinishReason: "stop",
		}},
		Usage: usageFor(&req, text),
	}
	writeJSON(w, http.StatusOK, resp)
}

// streamChat sends the reply word by word, then a usage chunk and [DONE].
func (g *gateway) streamChat(w http.ResponseWriter, r *http.Request, req *api.ChatRequest, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "server_error", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	send := func(v any) {
		data, _ := json.Marshal(v)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	chunk := func(delta map[string]any, finish any) map[string]any {
		return map[string]any{
			"id": "chatcmpl-mock-stream", "object": "chat.completion.chunk", "created": 1700000000, "model": req.Model,
			"choices": []any{map[string]any{"index": 0, "delta": delta, "finish_reason": finish}},
		}
	}

	send(chunk(map[string]any{"role": api.RoleAssistant}, nil))

	fault := r.Header.Get("X-Mock-Fault")
	words := strings.SplitAfter(text, " ")
	for i, word := range words {
		if i == 1 && fault == "drop" && g.shouldFail(r) {
			panic(http.ErrAbortHandler)
		}
		if i == 1 && fault == "malformed" && g.shouldFail(r) {
			fmt.Fprint(w, "data: {\"choices\":[\n\n")
			flusher.Flush()
			return
		}
		send(chunk(map[string]any{"content": word}, nil))
	}

	send(chunk(map[string]any{}, "stop"))
	if req.StreamOptions != nil && req.StreamOptions.IncludeUsage {
		send(map[string]any{
			"id": "chatcmpl-mock-stream", "object": "chat.completion.chunk", "model": req.Model,
			"choices": []any{}, "usage": usageFor(req, text),
		})
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// reply echoes the last user message, prefixed by the system prompt's
// first word when there is one.
func reply(req *api.ChatRequest) string {
	var system, last string
	for _, m := range req.Messages {
		switch m.Role {
		case api.RoleSystem, api.RoleDeveloper:
			system = m.Text()
		case api.RoleUser:
			last = m.Text()
		}
	}
	text := "echo: " + last
	if fields := strings.Fields(system); len(fields) > 0 {
		text = "(" + fields[0] + ") " + text
	}
	return text
}

func usageFor(req *api.ChatRequest, text string) *api.Usage {
	prompt := 0
	for _, m := range req.Messages {
		prompt += len(strings.Fields(m.Text()))
	}
	completion := len(strings.Fields(text))
	cost := float64(prompt+completion) * 0.00001
	return &api.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Cost:             &cost,
	}
}

func (g *gateway) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req api.EmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request_error", nil)
		return
	}

	var inputs []string
	switch in := req.Input.(type) {
	case string:
		inputs = []string{in}
	case []any:
		for _, v := range in {
			inputs = append(inputs, fmt.Sprint(v))
		}
	}

	resp := api.EmbeddingResponse{Object: "list", Model: req.Model, Usage: &api.Usage{}}
	for i, in := range inputs {
		resp.Data = append(resp.Data, api.Embedding{
			Object:    "embedding",
			Index:     i,
			Embedding: []float64{float64(len(in)), float64(len(strings.Fields(in))), 1},
		})
		resp.Usage.PromptTokens += len(strings.Fields(in))
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens
	writeJSON(w, http.StatusOK, resp)
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": mockModel, "object": "model", "owned_by": "zaguan-mock"},
			{"id": "mock/reasoner-1", "object": "model", "owned_by": "zaguan-mock"},
		},
	})
}

func handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]any{
		{"model_id": mockModel, "supports_vision": false, "supports_tools": true, "supports_reasoning": false, "max_context_tokens": 8192},
		{"model_id": "mock/reasoner-1", "supports_vision": false, "supports_tools": false, "supports_reasoning": true},
	})
}

func handleBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"credits_remaining": 1000, "tier": "pro", "bands": []string{"A", "B", "C"}})
}

func handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 2
	}
	entries := make([]map[string]any, 0, limit)
	for i := range limit {
		entries = append(entries, map[string]any{
			"id": fmt.Sprintf("h%d", i+1), "timestamp": "2026-01-01T00:00:00Z", "model": mockModel,
			"total_tokens": 10, "credits_debited": 1, "status": "success",
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total_entries": limit})
}

func handleStats(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period": period, "total_credits_used": 42, "total_cost": 0.42,
		"model_breakdown": []map[string]any{{"model": mockModel, "credits": 42}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, typ string, extra map[string]any) {
	body := map[string]any{"message": message, "type": typ}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, map[string]any{"error": body})
}
