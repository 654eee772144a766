package report

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/vitalwatch/vitalwatch/monitor/internal/window"
)

// ErrNoData is returned when there are no readings to render.
var ErrNoData = errors.New("report: no readings")

// ErrUnknownMetric is returned by ParseMetric for an unrecognised name.
var ErrUnknownMetric = errors.New("report: unknown metric")

const (
	chartWidth  = 640
	chartHeight = 300
)

// Metric names one charted vital series.
type Metric string

const (
	MetricSpO2        Metric = "spo2"
	MetricHeartRate   Metric = "heart_rate"
	MetricTemperature Metric = "temperature"
)

// Metrics lists every chartable metric in report order.
var Metrics = []Metric{MetricSpO2, MetricHeartRate, MetricTemperature}

// ParseMetric maps a URL path segment to a Metric.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMetric, s)
}

// Title is the chart heading, matching the report table column header.
func (m Metric) Title() string {
	switch m {
	case MetricSpO2:
		return "SpO₂ (%)"
	case MetricHeartRate:
		return "Heart Rate (bpm)"
	case MetricTemperature:
		return "Temperature (°C)"
	default:
		return string(m)
	}
}

func (m Metric) hex() string {
	switch m {
	case MetricSpO2:
		return "#06B6D4"
	case MetricHeartRate:
		return "#10B981"
	default:
		return "#F97316"
	}
}

func (m Metric) values(s window.Series) []float64 {
	switch m {
	case MetricSpO2:
		return s.SpO2
	case MetricHeartRate:
		return s.HeartRate
	default:
		return s.Temperature
	}
}

// RenderChart draws metric m of s as a PNG line chart. Labels become the
// x-axis ticks.
func RenderChart(s window.Series, m Metric) ([]byte, error) {
	ys := m.values(s)
	if len(ys) == 0 {
		return nil, ErrNoData
	}

	xs := make([]float64, len(ys))
	ticks := make([]chart.Tick, len(ys))
	for i := range ys {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: s.Labels[i]}
	}
	ys = append([]float64(nil), ys...)
	// go-chart needs at least two x values; pad a single point into a flat segment.
	if len(xs) == 1 {
		xs = append(xs, 1)
		ys = append(ys, ys[0])
		ticks = append(ticks, chart.Tick{Value: 1, Label: ""})
	}

	col := colorFromHex(m.hex())
	ch := chart.Chart{
		Title:      m.Title(),
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Ticks: ticks},
		YAxis:      chart.YAxis{Range: yRange(ys)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    m.Title(),
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: col,
					StrokeWidth: 2,
					FillColor:   col.WithAlpha(51),
					DotWidth:    3,
					DotColor:    col,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("report: render %s chart: %w", m, err)
	}
	return buf.Bytes(), nil
}

// yRange pads the data range so flat series still have a non-zero span.
func yRange(ys []float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range ys {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 1
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func colorFromHex(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}
