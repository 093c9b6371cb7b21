// Package realtime owns the live WebSocket connections: the connection
// registry, the per-connection writer goroutines, the event broadcaster
// and the wire message envelope. Fan-out is best-effort at-most-once; a
// dead or slow recipient is skipped, never waited on.
package realtime
