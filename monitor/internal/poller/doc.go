// Package poller drives the fetch → validate → append → classify cycle.
//
// Poller.Run fires one cycle immediately and then one per interval until ctx
// is cancelled. An atomic in-flight flag guarantees at most one cycle runs at
// a time: a tick that arrives while a cycle is still fetching is skipped and
// counted, never queued.
//
// Each cycle ends in one of three statuses:
//   - connected: the sample was valid, appended to the window and classified
//   - invalid_data: the source answered but a vital was missing or non-finite;
//     window and classification are left untouched
//   - connection_failed: the fetch itself failed
//
// Both failure kinds are non-fatal and clear on the next successful cycle.
// Subscribers registered with Subscribe receive every completed Cycle, which
// is how alerts and the WebSocket hub are fed.
//
// Uptime is the share of the last 20 cycles that ended connected.
package poller
