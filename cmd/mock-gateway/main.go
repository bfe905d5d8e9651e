// Command mock-gateway runs a deterministic CoreX gateway for local
// testing of the client and the zaguan CLI. Responses are predictable and
// failures can be injected per request.
//
// Fault injection headers:
//
//	X-Mock-Fault       - status to return: 401, 402, 403, 429, 500, 503,
//	                     "malformed" (bad stream chunk) or "drop" (stream cut)
//	X-Mock-Fail-Times  - apply the fault only to the first n attempts of a
//	                     request ID, then answer normally
//	X-Mock-Retry-After - Retry-After seconds sent with 429
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newGateway(slog.Default()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock gateway starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock gateway failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock gateway shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
