// Package server hosts the StreamGate API from a single HTTP server.
//
// The server builds a consistent middleware chain of logging, request IDs,
// metrics, and rate limiting so handlers all share common protections and
// instrumentation, and wires the auth, media, analytics, and stream routes
// behind one multiplexer.
package server
