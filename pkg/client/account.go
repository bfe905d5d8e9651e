package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rhuss/zaguan/pkg/api"
)

// ListModels returns the models served by the gateway (GET /v1/models).
func (c *Client) ListModels(ctx context.Context, opts ...CallOption) ([]api.ModelInfo, error) {
	var list api.ModelList
	if err := c.get(ctx, "/v1/models", nil, &list, opts); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// Capabilities returns per-model capabilities (GET /v1/capabilities).
func (c *Client) Capabilities(ctx context.Context, opts ...CallOption) ([]api.ModelCapabilities, error) {
	var caps []api.ModelCapabilities
	if err := c.get(ctx, "/v1/capabilities", nil, &caps, opts); err != nil {
		return nil, err
	}
	return caps, nil
}

// CreditsBalance returns the account's credit balance.
func (c *Client) CreditsBalance(ctx context.Context, opts ...CallOption) (*api.CreditsBalance, error) {
	var b api.CreditsBalance
	if err := c.get(ctx, "/v1/credits/balance", nil, &b, opts); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreditsHistory returns one page of credit history. limit <= 0 and an
// empty cursor are omitted.
func (c *Client) CreditsHistory(ctx context.Context, limit int, cursor string, opts ...CallOption) (*api.CreditsHistory, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var h api.CreditsHistory
	if err := c.get(ctx, "/v1/credits/history", q, &h, opts); err != nil {
		return nil, err
	}
	return &h, nil
}

// CreditsStats returns aggregated credit usage for a period such as "day",
// "week" or "month". An empty period uses the gateway default.
func (c *Client) CreditsStats(ctx context.Context, period string, opts ...CallOption) (*api.CreditsStats, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", period)
	}

	var s api.CreditsStats
	if err := c.get(ctx, "/v1/credits/stats", q, &s, opts); err != nil {
		return nil, err
	}
	return &s, nil
}

// Health returns the gateway health document (GET /health).
func (c *Client) Health(ctx context.Context, opts ...CallOption) (map[string]any, error) {
	status := map[string]any{}
	if err := c.get(ctx, "/health", nil, &status, opts); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any, opts []CallOption) error {
	cl, err := c.newCall(http.MethodGet, path, query, nil, "", false, opts)
	if err != nil {
		return err
	}
	res, err := c.doJSON(ctx, cl, out)
	if err != nil {
		return err
	}
	c.emitCompleted(ctx, cl, res, "", nil)
	return nil
}
