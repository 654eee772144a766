package classify

import (
	"fmt"
	"strconv"

	"github.com/vitalwatch/vitalwatch/pkg/types"
)

// Vital field names used in conditions and trigger strings.
const (
	FieldSpO2        = "spo2"
	FieldHeartRate   = "heart_rate"
	FieldTemperature = "temperature"
)

// Fixed advisory text per tier.
const (
	AdvisoryNormal   = "Vitals are within normal range."
	AdvisoryModerate = "Mild abnormality detected. Hydrate and rest."
	AdvisoryCritical = "Immediate medical attention recommended."
)

// Vitals is the classifier input.
type Vitals struct {
	HeartRate   float64
	SpO2        float64
	Temperature float64
}

// Condition compares one vital against a threshold.
type Condition struct {
	Field     string
	Op        string // "<" | ">"
	Threshold float64
}

// String renders the condition as "field op threshold", e.g. "spo2 < 90".
func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, strconv.FormatFloat(c.Threshold, 'f', -1, 64))
}

// Holds reports whether v satisfies the condition.
func (c Condition) Holds(v Vitals) bool {
	return compareFloat(fieldValue(c.Field, v), c.Op, c.Threshold)
}

// Rule assigns Tier when any of its conditions holds.
type Rule struct {
	Tier       types.Tier
	Advisory   string
	Conditions []Condition
}

// rules is the ordered rule list. Order is significant: first match wins.
var rules = []Rule{
	{
		Tier:     types.TierCritical,
		Advisory: AdvisoryCritical,
		Conditions: []Condition{
			{FieldSpO2, "<", 90},
			{FieldHeartRate, ">", 120},
			{FieldTemperature, ">", 38.0},
		},
	},
	{
		Tier:     types.TierModerateRisk,
		Advisory: AdvisoryModerate,
		Conditions: []Condition{
			{FieldSpO2, "<", 94},
			{FieldHeartRate, ">", 100},
			{FieldTemperature, ">", 37.5},
		},
	},
}

// Classify returns the risk tier and advisory for one reading.
func Classify(heartRate, spo2, temperature float64) types.ClassificationResult {
	return Evaluate(rules, Vitals{HeartRate: heartRate, SpO2: spo2, Temperature: temperature})
}

// DefaultRules returns a copy of the compiled-in rule list, in evaluation
// order. Changing the copy does not affect Classify.
func DefaultRules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		r.Conditions = append([]Condition(nil), r.Conditions...)
		out[i] = r
	}
	return out
}

// Evaluate applies rules in order to v and returns the first match, or
// Normal when none match.
func Evaluate(rules []Rule, v Vitals) types.ClassificationResult {
	for _, r := range rules {
		var triggers []string
		for _, c := range r.Conditions {
			if c.Holds(v) {
				triggers = append(triggers, c.String())
			}
		}
		if len(triggers) > 0 {
			return types.ClassificationResult{
				Tier:     r.Tier,
				Advisory: r.Advisory,
				Triggers: triggers,
			}
		}
	}
	return types.ClassificationResult{
		Tier:     types.TierNormal,
		Advisory: AdvisoryNormal,
	}
}

// AdvisoryFor returns the fixed advisory text for a tier.
func AdvisoryFor(t types.Tier) string {
	switch t {
	case types.TierCritical:
		return AdvisoryCritical
	case types.TierModerateRisk:
		return AdvisoryModerate
	case types.TierNormal:
		return AdvisoryNormal
	default:
		return ""
	}
}

func fieldValue(field string, v Vitals) float64 {
	switch field {
	case FieldSpO2:
		return v.SpO2
	case FieldHeartRate:
		return v.HeartRate
	case FieldTemperature:
		return v.Temperature
	default:
		return 0
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	default:
		return false
	}
}
