package api

import (
	"github.com/vitalwatch/vitalwatch/monitor/internal/window"
	"github.com/vitalwatch/vitalwatch/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        types.Status `json:"status"`
	StatusMessage string       `json:"status_message"`
	Error         string       `json:"error,omitempty"`
	Tier          types.Tier   `json:"tier"`
	TierLabel     string       `json:"tier_label"`
	UptimePct     float64      `json:"uptime_pct"`
	Cycles        uint64       `json:"cycles"`
	Skipped       uint64       `json:"skipped"`
	LastCycleAt   string       `json:"last_cycle_at,omitempty"` // RFC3339
	AlertCount    int          `json:"alert_count"`
}

// ReadingsResponse is the payload for GET /api/v1/readings.
type ReadingsResponse struct {
	Count    int             `json:"count"`
	Capacity int             `json:"capacity"`
	Readings []types.Reading `json:"readings"`
	Series   window.Series   `json:"series"`
}

// ClassificationResponse is the payload for GET /api/v1/classification.
type ClassificationResponse struct {
	Tier      types.Tier `json:"tier"`
	TierLabel string     `json:"tier_label"`
	Color     string     `json:"color"`
	Advisory  string     `json:"advisory"`
	Triggers  []string   `json:"triggers"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket push.
type SnapshotResponse struct {
	Status         types.Status           `json:"status"`
	StatusMessage  string                 `json:"status_message"`
	Readings       []types.Reading        `json:"readings"`
	Series         window.Series          `json:"series"`
	Latest         *types.Reading         `json:"latest,omitempty"`
	Classification ClassificationResponse `json:"classification"`
	UptimePct      float64                `json:"uptime_pct"`
	GeneratedAt    string                 `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
