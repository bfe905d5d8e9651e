package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rhuss/zaguan/pkg/api"
)

// gateway starts a fake gateway and points the ZAGUAN_* environment at it.
func gateway(t *testing.T) *atomic.Int32 {
	t.Helper()
	var chats atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		chats.Add(1)
		var req api.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		prompt := req.Messages[len(req.Messages)-1].Text()

		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, part := range []string{"echo: ", prompt} {
				chunk, _ := json.Marshal(map[string]any{
					"id": "c1", "object": "chat.completion.chunk", "model": req.Model,
					"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": part}}},
				})
				w.Write([]byte("data: " + string(chunk) + "\n\n"))
			}
			w.Write([]byte("data: [DONE]\n\n"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "c1", "object": "chat.completion", "model": req.Model,
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": "echo: " + prompt}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 2, "completion_tokens": 3, "total_tokens": 5},
		})
	})
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"list","data":[{"id":"openai/gpt-4o","object":"model","owned_by":"openai"}]}`))
	})
	mux.HandleFunc("GET /v1/credits/history", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "3" {
			http.Error(w, `{"error":{"message":"bad limit"}}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"entries":[{"timestamp":"2026-01-01T00:00:00Z","model":"openai/gpt-4o","total_tokens":9,"credits_debited":1,"status":"ok"}],"total_entries":1,"next_cursor":"p2"}`))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "config"))
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "ZAGUAN_") {
			t.Setenv(key, "")
		}
	}
	t.Setenv("ZAGUAN_BASE_URL", srv.URL)
	t.Setenv("ZAGUAN_API_KEY", "sk-test")
	t.Setenv("ZAGUAN_LOG_LEVEL", "ERROR")
	return &chats
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestRun_Chat(t *testing.T) {
	gateway(t)

	out, err := runCLI(t, "chat", "-model", "openai/gpt-4o", "hello", "there")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "echo: hello there" {
		t.Errorf("output = %q", out)
	}
}

func TestRun_ChatStream(t *testing.T) {
	gateway(t)

	out, err := runCLI(t, "chat", "-stream", "hi")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "echo: hi\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRun_Batch(t *testing.T) {
	chats := gateway(t)

	out, err := runCLI(t, "-metrics", "batch", "-parallel", "2", "one", "two", "three")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if chats.Load() != 3 {
		t.Errorf("chat calls = %d, want 3", chats.Load())
	}
	for _, want := range []string{"[1] echo: one", "[2] echo: two", "[3] echo: three", "requests: 3 (succeeded 3", "tokens: 6 prompt"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_Models(t *testing.T) {
	gateway(t)

	out, err := runCLI(t, "models")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "openai/gpt-4o") || !strings.Contains(out, "OWNED BY") {
		t.Errorf("output = %q", out)
	}
}

func TestRun_CreditsHistory(t *testing.T) {
	gateway(t)

	out, err := runCLI(t, "credits", "history", "-limit", "3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "next cursor: p2") {
		t.Errorf("output = %q", out)
	}
}

func TestRun_Health(t *testing.T) {
	gateway(t)

	out, err := runCLI(t, "health")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, `"status": "ok"`) {
		t.Errorf("output = %q", out)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	gateway(t)

	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"chat"},
		{"credits", "refund"},
		{"-nope"},
	} {
		if _, err := runCLI(t, args...); !errors.Is(err, errUsage) {
			t.Errorf("run(%v) = %v, want usage error", args, err)
		}
	}
}

func TestRun_MissingConfig(t *testing.T) {
	gateway(t)
	t.Setenv("ZAGUAN_BASE_URL", "")

	_, err := runCLI(t, "health")
	if err == nil || !strings.Contains(err.Error(), "gateway.base_url is required") {
		t.Errorf("err = %v", err)
	}
}
