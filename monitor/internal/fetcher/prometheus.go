package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"

	"github.com/go-resty/resty/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/vitalwatch/vitalwatch/monitor/internal/config"
)

type promFetcher struct {
	src    config.Source
	client *resty.Client
}

// Fetch GETs a Prometheus text exposition and reads each vital from the
// metric family named in the field map.
func (f *promFetcher) Fetch(ctx context.Context) (Sample, error) {
	body, err := get(ctx, f.client, f.src.Endpoint, string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err != nil {
		return Sample{}, fmt.Errorf("prometheus fetch %q: %w", f.src.Endpoint, err)
	}
	mfs, err := parseMetrics(bytes.NewReader(body))
	if err != nil {
		return Sample{}, fmt.Errorf("prometheus fetch %q: %w", f.src.Endpoint, err)
	}
	return Sample{
		HeartRate:   firstValue(mfs[f.src.Fields.HeartRate]),
		SpO2:        firstValue(mfs[f.src.Fields.SpO2]),
		Temperature: firstValue(mfs[f.src.Fields.Temperature]),
	}, nil
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// firstValue returns the value of the first gauge, untyped or counter sample
// in mf, or NaN if mf is nil or empty.
func firstValue(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return math.NaN()
	}
	for _, m := range mf.GetMetric() {
		switch {
		case m.Gauge != nil:
			return m.Gauge.GetValue()
		case m.Untyped != nil:
			return m.Untyped.GetValue()
		case m.Counter != nil:
			return m.Counter.GetValue()
		}
	}
	return math.NaN()
}
