package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/zaguan/pkg/api"
	"github.com/rhuss/zaguan/pkg/observability"
)

func (a *app) chat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	model := fs.String("model", "", "model id (default from config)")
	system := fs.String("system", "", "system prompt")
	streaming := fs.Bool("stream", false, "print tokens as they arrive")
	maxTokens := fs.Int("max-tokens", 0, "completion token limit")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	prompt := strings.Join(fs.Args(), " ")
	if prompt == "" {
		return fmt.Errorf("%w: chat needs a prompt", errUsage)
	}

	req := &api.ChatRequest{Model: *model}
	if req.Model == "" {
		req.Model = a.client.Config().DefaultModel
	}
	if *system != "" {
		req.Messages = append(req.Messages, api.NewMessage(api.RoleSystem, *system))
	}
	req.Messages = append(req.Messages, api.NewMessage(api.RoleUser, prompt))
	if *maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	if !*streaming {
		resp, err := a.client.Chat(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, resp.Content())
		return nil
	}

	s, err := a.client.ChatStream(ctx, req)
	if err != nil {
		return err
	}
	defer s.Close()

	for s.Next() {
		for _, choice := range s.Current().Choices {
			if choice.Index == 0 && choice.Delta.Content != nil {
				fmt.Fprint(a.out, *choice.Delta.Content)
			}
		}
	}
	fmt.Fprintln(a.out)
	return s.Err()
}

// batch sends every prompt concurrently and prints the answers in order.
func (a *app) batch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	model := fs.String("model", "", "model id (default from config)")
	parallel := fs.Int("parallel", 4, "maximum concurrent requests")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	prompts := fs.Args()
	if len(prompts) == 0 {
		return fmt.Errorf("%w: batch needs at least one prompt", errUsage)
	}

	answers := make([]string, len(prompts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*parallel, 1))
	for i, p := range prompts {
		g.Go(func() error {
			resp, err := a.client.ChatSimple(gctx, *model, p)
			if err != nil {
				return fmt.Errorf("prompt %d: %w", i+1, err)
			}
			answers[i] = resp.Content()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, answer := range answers {
		fmt.Fprintf(a.out, "[%d] %s\n", i+1, answer)
	}
	return nil
}

func (a *app) models(ctx context.Context) error {
	models, err := a.client.ListModels(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOWNED BY")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\n", m.ID, m.OwnedBy)
	}
	return tw.Flush()
}

func (a *app) capabilities(ctx context.Context) error {
	caps, err := a.client.Capabilities(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tVISION\tTOOLS\tREASONING\tCONTEXT")
	for _, c := range caps {
		window := "-"
		if c.MaxContextTokens != nil {
			window = fmt.Sprint(*c.MaxContextTokens)
		}
		fmt.Fprintf(tw, "%s\t%v\t%v\t%v\t%s\n", c.ModelID, c.SupportsVision, c.SupportsTools, c.SupportsReasoning, window)
	}
	return tw.Flush()
}

func (a *app) credits(ctx context.Context, args []string) error {
	sub := "balance"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "balance":
		b, err := a.client.CreditsBalance(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "credits remaining: %d\ntier: %s\nbands: %s\n", b.CreditsRemaining, b.Tier, strings.Join(b.Bands, ", "))
		return nil

	case "history":
		fs := flag.NewFlagSet("credits history", flag.ContinueOnError)
		limit := fs.Int("limit", 20, "entries per page")
		cursor := fs.String("cursor", "", "page cursor")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		h, err := a.client.CreditsHistory(ctx, *limit, *cursor)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tMODEL\tTOKENS\tCREDITS\tSTATUS")
		for _, e := range h.Entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", e.Timestamp, e.Model, e.TotalTokens, e.CreditsDebited, e.Status)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if h.NextCursor != "" {
			fmt.Fprintf(a.out, "next cursor: %s\n", h.NextCursor)
		}
		return nil

	case "stats":
		fs := flag.NewFlagSet("credits stats", flag.ContinueOnError)
		period := fs.String("period", "", "day, week or month")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		s, err := a.client.CreditsStats(ctx, *period)
		if err != nil {
			return err
		}
		return writeJSON(a.out, s)

	default:
		return fmt.Errorf("%w: unknown credits command %q", errUsage, sub)
	}
}

func (a *app) health(ctx context.Context) error {
	status, err := a.client.Health(ctx)
	if err != nil {
		return err
	}
	return writeJSON(a.out, status)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMetrics(w io.Writer, m observability.Metrics) {
	fmt.Fprintf(w, "\nrequests: %d (succeeded %d, failed %d, cancelled %d, retries %d)\n",
		m.TotalRequests, m.SucceededRequests, m.FailedRequests, m.CancelledRequests, m.Retries)
	fmt.Fprintf(w, "success rate: %.1f%%  avg latency: %v\n", m.SuccessRate()*100, m.AverageLatency())
	fmt.Fprintf(w, "tokens: %d prompt / %d completion / %d total  cost: %.6f\n",
		m.PromptTokens, m.CompletionTokens, m.TotalTokens, m.TotalCost)

	for _, kind := range slices.Sorted(maps.Keys(m.ErrorsByKind)) {
		fmt.Fprintf(w, "  errors[%s]: %d\n", kind, m.ErrorsByKind[kind])
	}
	for _, model := range slices.Sorted(maps.Keys(m.Models)) {
		mm := m.Models[model]
		fmt.Fprintf(w, "  %s: %d requests, %d tokens, cost %.6f\n", model, mm.Requests, mm.TotalTokens, mm.Cost)
	}
}
