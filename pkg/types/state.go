package types

import "time"

// Status is the tri-state data-source indicator, plus Pending before the
// first cycle has completed.
type Status string

const (
	StatusPending          Status = "pending"
	StatusConnected        Status = "connected"
	StatusInvalidData      Status = "invalid_data"
	StatusConnectionFailed Status = "connection_failed"
)

// Message returns the fixed human-readable text for the status.
func (s Status) Message() string {
	switch s {
	case StatusConnected:
		return "Live data connected"
	case StatusInvalidData:
		return "Invalid or missing data."
	case StatusConnectionFailed:
		return "Connection failed. No live data."
	default:
		return "Waiting for first reading."
	}
}

// State is a point-in-time view of the poller.
type State struct {
	Status        Status    `json:"status"`
	StatusMessage string    `json:"status_message"`
	Error         string    `json:"error,omitempty"`
	LastCycleAt   time.Time `json:"last_cycle_at"`

	// Latest is the most recent valid reading; nil until one is accepted.
	Latest *Reading `json:"latest,omitempty"`

	// Classification is the result for Latest; nil until one is accepted.
	Classification *ClassificationResult `json:"classification,omitempty"`

	// UptimePct is the share of recent cycles that produced valid data.
	UptimePct float64 `json:"uptime_pct"`

	Cycles  uint64 `json:"cycles"`
	Skipped uint64 `json:"skipped"`
}

// Tier returns the tier of the latest classification, or TierUnknown.
func (s State) Tier() Tier {
	if s.Classification == nil {
		return TierUnknown
	}
	return s.Classification.Tier
}

// CertStatus describes the TLS leaf certificate served by an endpoint.
type CertStatus struct {
	Endpoint string `json:"endpoint"`
	AuthType string `json:"auth_type"`
	Status   string `json:"status"` // valid | expiring | expired | unreachable
	DaysLeft int32  `json:"days_left"`
	Issuer   string `json:"issuer,omitempty"`
	NotAfter string `json:"not_after,omitempty"`
}
