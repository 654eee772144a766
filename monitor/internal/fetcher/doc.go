// Package fetcher retrieves one vital-sign sample from the configured source.
//
// New(config.Source) returns a Fetcher for the source format:
//   - json: a JSON object whose heart-rate, SpO2 and temperature keys are
//     named by config.FieldMap. Numbers and numeric strings are accepted.
//   - prometheus: a Prometheus text exposition; each vital is read from the
//     metric family named by config.FieldMap.
//
// Fetch returns an error only for fetch failures (transport errors, non-2xx
// responses, undecodable bodies). Missing or non-numeric fields come back as
// NaN in the Sample; Sample.Validate reports them as ErrInvalidData so the
// caller can reject the whole cycle.
//
// Authentication (mTLS, API key, bearer token, basic) is handled by the
// shared authRoundTripper in base.go, installed under a resty client.
package fetcher
