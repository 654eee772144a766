// Package classify maps a vital-sign triple to a risk tier.
//
// Classify is a pure function. It walks the rule list
// (see DefaultRules) in order and returns the tier
// of the first rule with any condition satisfied (first match wins), falling
// back to Normal. Critical is listed before ModerateRisk: every Critical
// condition also satisfies the Moderate condition on the same vital, so the
// order is what separates the two tiers.
//
//	Critical:     spo2 < 90  || heart_rate > 120 || temperature > 38.0
//	ModerateRisk: spo2 < 94  || heart_rate > 100 || temperature > 37.5
//	Normal:       otherwise
//
// Thresholds are fixed. Inputs must be finite; callers validate first.
package classify
