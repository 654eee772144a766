// Package types defines the Go types shared across the monitor packages.
// These are the canonical in-memory representations of vital-sign readings,
// risk classifications and poller status, independent of any wire format
// (JSON API, WebSocket frames, XLSX report).
package types
