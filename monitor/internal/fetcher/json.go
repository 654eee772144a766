package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/vitalwatch/vitalwatch/monitor/internal/config"
)

type jsonFetcher struct {
	src    config.Source
	client *resty.Client
}

// Fetch GETs the source and reads the three vitals from a JSON object.
func (f *jsonFetcher) Fetch(ctx context.Context) (Sample, error) {
	body, err := get(ctx, f.client, f.src.Endpoint, "application/json")
	if err != nil {
		return Sample{}, fmt.Errorf("json fetch %q: %w", f.src.Endpoint, err)
	}
	return decodeJSON(body, f.src.Fields)
}

// decodeJSON parses body and coerces each configured field to a float.
// A body that is not exactly one valid JSON value is a fetch failure. A valid JSON value that
// is not an object yields an all-NaN sample.
func decodeJSON(body []byte, fields config.FieldMap) (Sample, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Sample{}, fmt.Errorf("decode json: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Sample{}, fmt.Errorf("decode json: trailing data after top-level value")
	}

	obj, _ := v.(map[string]any)
	return Sample{
		HeartRate:   coerce(obj[fields.HeartRate]),
		SpO2:        coerce(obj[fields.SpO2]),
		Temperature: coerce(obj[fields.Temperature]),
	}, nil
}

// coerce converts a decoded JSON value to float64. Numbers and numeric
// strings convert; anything else (missing, null, bool, empty string,
// objects) is NaN.
func coerce(v any) float64 {
	switch x := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
