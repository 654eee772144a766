// Package api serves the monitor's read-only REST API under /api/v1, the
// Prometheus /metrics endpoint and the WebSocket stream route.
//
// Every /api/v1 route answers GET only. JSON is the default body; charts
// are PNG and the report is an XLSX attachment.
package api
