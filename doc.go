// Package actionkit provides a typed RPC layer for "server actions":
// named operations invoked over plain HTTP with JSON envelopes, plus
// server-sent-event streaming for incremental results.
//
// # Architecture
//
// The module is split into a server side and a client side that share
// only the wire contract:
//
// Server side:
//   - action: the execution pipeline (parse, validate, middleware,
//     handler, output validation) and its streaming variant
//   - schema: validation schemas and the adapter accepting plain
//     validator functions
//   - server: the HTTP gateway mapping routes to actions, including
//     SSE delivery and Prometheus metrics
//
// Client side:
//   - client: invokers with deduplication, debounce/throttle windows,
//     optimistic updates with rollback, an SSE stream consumer, and a
//     query cache
//
// Shared:
//   - errors: the ActionError taxonomy and server-error classification
//   - pkg/serialize: deterministic value serialization for cache keys
//   - pkg/deepmerge: map merging with prototype-pollution guards
//   - pkg/ratelimit: debounce/throttle primitives with shared outcomes
//
// # Wire contract
//
// Every unary action settles with a result envelope:
//
//	{"success": true,  "data": ...}
//	{"success": false, "error": {"code": "...", "message": "...", "statusCode": 422}}
//
// Streaming actions emit SSE data frames; an object payload carrying
// the reserved "__actionError" or "__done" key terminates the stream.
//
// See cmd/actiond for a runnable server wiring a few example actions.
package actionkit
