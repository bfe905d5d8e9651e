// Command zaguan talks to a CoreX gateway from the command line.
//
// Usage:
//
//	zaguan [global flags] <command> [flags] [args]
//
// Commands:
//
//	chat [-model m] [-system s] [-stream] <prompt>  one chat completion
//	batch [-model m] [-parallel n] <prompt>...      prompts sent concurrently
//	models                                          list models
//	capabilities                                    list model capabilities
//	credits [balance|history|stats]                 credit information
//	health                                          gateway health
//
// Configuration is read from .env, a YAML file and ZAGUAN_* environment
// variables; see package config. Useful variables:
//
//	ZAGUAN_BASE_URL      - Gateway URL (required)
//	ZAGUAN_API_KEY       - API key (required unless api_key_file is set)
//	ZAGUAN_DEBUG         - Debug categories, e.g. "transport,retry"
//	ZAGUAN_LOG_LEVEL     - TRACE, DEBUG, INFO, WARN or ERROR
//	ZAGUAN_METRICS_ADDR  - Serve Prometheus metrics on this address
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/zaguan/pkg/client"
	"github.com/rhuss/zaguan/pkg/config"
	"github.com/rhuss/zaguan/pkg/debug"
	"github.com/rhuss/zaguan/pkg/observability"
)

var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		slog.Error("zaguan failed", "error", err)
		os.Exit(1)
	}
}

// app carries what every command needs.
type app struct {
	client  *client.Client
	metrics *observability.MetricsObserver
	out     io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("zaguan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	envFile := fs.String("env", "", "path to a .env file (default ./.env if present)")
	showMetrics := fs.Bool("metrics", false, "print aggregated call metrics when done")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: zaguan [flags] chat|batch|models|capabilities|credits|health [args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(*configPath, envFiles...)
	if err != nil {
		return err
	}

	logger := debug.Init(debug.Options{
		Categories: strings.Join(cfg.Logging.Debug, ","),
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     stderr,
	})

	clientCfg, err := cfg.Client()
	if err != nil {
		return err
	}

	metrics := observability.NewMetricsObserver()
	opts := []client.Option{
		client.WithLogger(logger),
		client.WithObserver(observability.NewLoggingObserver(logger)),
		client.WithObserver(metrics),
	}

	if cfg.Observability.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		prom, err := observability.NewPrometheusObserver(reg)
		if err != nil {
			return fmt.Errorf("creating prometheus observer: %w", err)
		}
		opts = append(opts, client.WithObserver(prom))

		srv := serveMetrics(cfg.Observability.Metrics, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	c, err := client.New(clientCfg, opts...)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	a := &app{client: c, metrics: metrics, out: stdout}
	err = a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])

	if *showMetrics {
		printMetrics(stdout, metrics.Snapshot())
	}
	return err
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "chat":
		return a.chat(ctx, args)
	case "batch":
		return a.batch(ctx, args)
	case "models":
		return a.models(ctx)
	case "capabilities":
		return a.capabilities(ctx)
	case "credits":
		return a.credits(ctx, args)
	case "health":
		return a.health(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// serveMetrics starts the Prometheus endpoint in the background.
func serveMetrics(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("metrics endpoint starting", "addr", cfg.Addr, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics endpoint failed", "error", err)
		}
	}()
	return srv
}
