// Package client is the request orchestrator for a CoreX gateway. It builds
// one request descriptor per logical call, sends it through a
// transport.Transport, classifies failures, retries transient ones with the
// configured retry.Policy and reports every step to the observability hub.
//
// Non-streaming calls decode the JSON body into typed results. Streaming
// calls return a *Stream that yields decoded chunks and folds them into a
// stream.Accumulator, so partial output survives a mid-stream failure.
//
// Every blocking call takes a context.Context. Cancelling it ends the call
// with the context error; cancellation is never retried.
package client
