// Package api defines the wire types exchanged with an OpenAI-compatible
// CoreX gateway: chat completion requests and responses, streaming chunks,
// delta fragments, token usage, model listings, capabilities and credit
// reports.
//
// The package performs no I/O. Every decoded entity keeps the JSON fields it
// does not recognize in an insertion-ordered Extra map so that fields added
// by the gateway after this package was written survive a decode unchanged.
//
// Core types:
//   - [ChatRequest]: Client request for a chat completion
//   - [ChatResponse]: Complete non-streaming response
//   - [ChatChunk]: One decoded server-sent event of a streaming response
//   - [DeltaFragment]: The incremental piece of one choice inside a chunk
//   - [Usage]: Token accounting reported by the gateway
//
// Request identifiers are generated with [NewRequestID].
package api
