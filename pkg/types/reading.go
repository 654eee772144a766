package types

import (
	"math"
	"time"
)

// Reading is one timestamped triple of vital-sign measurements.
type Reading struct {
	// Label is the display timestamp shown on chart axes and report rows.
	Label string `json:"label"`

	// At is the wall-clock time the reading was accepted into the window.
	At time.Time `json:"at"`

	// SpO2 is blood oxygen saturation in percent.
	SpO2 float64 `json:"spo2"`

	// HeartRate is in beats per minute.
	HeartRate float64 `json:"heart_rate"`

	// Temperature is body temperature in degrees Celsius.
	Temperature float64 `json:"temperature"`
}

// Valid reports whether all three vitals are finite numbers.
func (r Reading) Valid() bool {
	return finite(r.SpO2) && finite(r.HeartRate) && finite(r.Temperature)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Tier is a discrete risk classification.
type Tier string

const (
	TierUnknown      Tier = "unknown"
	TierNormal       Tier = "normal"
	TierModerateRisk Tier = "moderate_risk"
	TierCritical     Tier = "critical"
)

// Label returns the human-readable tier name used in reports and dashboards.
func (t Tier) Label() string {
	switch t {
	case TierNormal:
		return "Normal"
	case TierModerateRisk:
		return "Moderate Risk"
	case TierCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Color returns the tier's display colour as a #RRGGBB hex string.
func (t Tier) Color() string {
	switch t {
	case TierNormal:
		return "#22C55E"
	case TierModerateRisk:
		return "#FACC15"
	case TierCritical:
		return "#EF4444"
	default:
		return "#94A3B8"
	}
}

// Rank orders tiers by severity: unknown < normal < moderate_risk < critical.
func (t Tier) Rank() int {
	switch t {
	case TierNormal:
		return 1
	case TierModerateRisk:
		return 2
	case TierCritical:
		return 3
	default:
		return 0
	}
}

// ClassificationResult is the outcome of classifying one reading.
type ClassificationResult struct {
	Tier     Tier   `json:"tier"`
	Advisory string `json:"advisory"`

	// Triggers lists the conditions of the matching rule that held,
	// e.g. "heart_rate > 120". Empty for Normal.
	Triggers []string `json:"triggers,omitempty"`
}
