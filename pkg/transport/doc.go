// Package transport sends request descriptors to the gateway and returns raw
// responses. It knows nothing about retries, failure classification or
// decoding; those belong to the orchestrator in pkg/client.
//
// # Transport
//
// Transport is the single collaborator contract: Do sends one Request and
// returns a Response whose Body the caller must close. HTTP is the net/http
// implementation. Streaming requests use a client without an overall
// timeout, since a stream can legitimately outlive any fixed deadline;
// their lifetime is controlled through the context.
//
// # Middleware
//
// Middleware wraps a Transport with cross-cutting behavior. Built-in
// middleware provides panic recovery, request ID propagation
// (X-Request-Id), structured logging via log/slog and client-side
// throttling with a token bucket (golang.org/x/time/rate).
package transport
