// Package metrics exposes the monitor's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitalwatch/vitalwatch/pkg/types"
)

// OutcomeSkipped labels ticks dropped because a cycle was still in flight.
const OutcomeSkipped = "skipped"

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vitalwatch",
			Name:      "poll_cycles_total",
			Help:      "Poll cycles, partitioned by outcome (connected, invalid_data, connection_failed, skipped).",
		},
		[]string{"outcome"},
	)

	fetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vitalwatch",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of a single source fetch in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	vitalValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vitalwatch",
			Name:      "vital",
			Help:      "Latest accepted value per vital sign.",
		},
		[]string{"vital"},
	)

	riskTier = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vitalwatch",
			Name:      "risk_tier",
			Help:      "Latest risk tier: 0 unknown, 1 normal, 2 moderate risk, 3 critical.",
		},
	)

	windowReadings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vitalwatch",
			Name:      "window_readings",
			Help:      "Readings currently held in the sliding window.",
		},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vitalwatch",
			Name:      "alerts_total",
			Help:      "Alert state transitions, partitioned by rule and state.",
		},
		[]string{"rule", "state"},
	)
)

// Register attaches the monitor collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cyclesTotal,
		fetchDurationSeconds,
		vitalValue,
		riskTier,
		windowReadings,
		alertsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCycle records one cycle outcome and, when d > 0, the fetch latency.
func ObserveCycle(outcome string, d time.Duration) {
	cyclesTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		fetchDurationSeconds.Observe(d.Seconds())
	}
}

// ObserveReading records the latest accepted reading and its tier.
func ObserveReading(r types.Reading, tier types.Tier, windowLen int) {
	vitalValue.WithLabelValues("spo2").Set(r.SpO2)
	vitalValue.WithLabelValues("heart_rate").Set(r.HeartRate)
	vitalValue.WithLabelValues("temperature").Set(r.Temperature)
	riskTier.Set(float64(tier.Rank()))
	windowReadings.Set(float64(windowLen))
}

// ObserveAlert records an alert firing or resolving.
func ObserveAlert(rule, state string) {
	alertsTotal.WithLabelValues(rule, state).Inc()
}
