package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rhuss/zaguan/pkg/api"
	"github.com/rhuss/zaguan/pkg/failure"
)

const (
	pathChatCompletions = "/v1/chat/completions"
	pathEmbeddings      = "/v1/embeddings"
)

// Chat performs a non-streaming chat completion. Stream is forced off.
func (c *Client) Chat(ctx context.Context, req *api.ChatRequest, opts ...CallOption) (*api.ChatResponse, error) {
	if req == nil {
		return nil, errors.New("chat request cannot be nil")
	}
	if verr := api.ValidateChatRequest(req); verr != nil {
		return nil, invalidRequest(verr)
	}
	body := *req
	body.Stream = false
	body.StreamOptions = nil

	cl, err := c.newCall(http.MethodPost, pathChatCompletions, nil, body, req.Model, false, opts)
	if err != nil {
		return nil, err
	}

	var resp api.ChatResponse
	out, err := c.doJSON(ctx, cl, &resp)
	if err != nil {
		return nil, err
	}
	c.emitCompleted(ctx, cl, out, resp.Model, resp.Usage)
	return &resp, nil
}

// ChatStream starts a streaming chat completion. Stream is forced on and
// usage reporting is requested unless the caller set StreamOptions. The
// returned Stream must be closed.
//
// Failures before the first byte (connection errors, error statuses) are
// retried like any other call; ChatStream then returns the final error.
func (c *Client) ChatStream(ctx context.Context, req *api.ChatRequest, opts ...CallOption) (*Stream, error) {
	if req == nil {
		return nil, errors.New("chat request cannot be nil")
	}
	if verr := api.ValidateChatRequest(req); verr != nil {
		return nil, invalidRequest(verr)
	}
	body := *req
	body.Stream = true
	if body.StreamOptions == nil {
		body.StreamOptions = &api.StreamOptions{IncludeUsage: true}
	}

	cl, err := c.newCall(http.MethodPost, pathChatCompletions, nil, body, req.Model, true, opts)
	if err != nil {
		return nil, err
	}

	ctx, release := c.track(ctx, cl)
	out, err := c.execute(ctx, cl)
	if err != nil {
		release()
		return nil, err
	}
	return newStream(ctx, c, cl, out, release), nil
}

// CollectStream runs a streaming completion to its end and returns the
// accumulated response. On a mid-stream failure the partial response is
// returned together with the error.
func (c *Client) CollectStream(ctx context.Context, req *api.ChatRequest, opts ...CallOption) (*api.ChatResponse, error) {
	s, err := c.ChatStream(ctx, req, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	for s.Next() {
	}
	return s.Response(), s.Err()
}

// ChatSimple sends a single user message. An empty model uses the
// configured default model.
func (c *Client) ChatSimple(ctx context.Context, model, message string, opts ...CallOption) (*api.ChatResponse, error) {
	return c.Chat(ctx, &api.ChatRequest{
		Model:    c.model(model),
		Messages: []api.Message{api.NewMessage(api.RoleUser, message)},
	}, opts...)
}

// ChatWithSystem sends a system prompt followed by a user message. An
// empty model uses the configured default model.
func (c *Client) ChatWithSystem(ctx context.Context, model, system, message string, opts ...CallOption) (*api.ChatResponse, error) {
	return c.Chat(ctx, &api.ChatRequest{
		Model: c.model(model),
		Messages: []api.Message{
			api.NewMessage(api.RoleSystem, system),
			api.NewMessage(api.RoleUser, message),
		},
	}, opts...)
}

// Embeddings creates embeddings for the request input.
func (c *Client) Embeddings(ctx context.Context, req *api.EmbeddingRequest, opts ...CallOption) (*api.EmbeddingResponse, error) {
	if req == nil {
		return nil, errors.New("embedding request cannot be nil")
	}
	if verr := api.ValidateEmbeddingRequest(req); verr != nil {
		return nil, invalidRequest(verr)
	}
	cl, err := c.newCall(http.MethodPost, pathEmbeddings, nil, req, req.Model, false, opts)
	if err != nil {
		return nil, err
	}

	var resp api.EmbeddingResponse
	out, err := c.doJSON(ctx, cl, &resp)
	if err != nil {
		return nil, err
	}
	c.emitCompleted(ctx, cl, out, resp.Model, resp.Usage)
	return &resp, nil
}

func (c *Client) model(m string) string {
	if m == "" {
		return c.cfg.DefaultModel
	}
	return m
}

// invalidRequest reports a request rejected before sending. No events are
// emitted for it.
func invalidRequest(verr *api.ValidationError) error {
	return &failure.Error{
		Kind:    failure.KindValidation,
		Message: fmt.Sprintf("%s: %s", verr.Param, verr.Message),
		Code:    "invalid_request",
		Err:     verr,
	}
}
