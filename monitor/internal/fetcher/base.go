package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vitalwatch/vitalwatch/monitor/internal/config"
)

const defaultFetchTimeout = 10 * time.Second

// ErrInvalidData marks a response that was fetched and decoded but carried
// one or more missing or non-finite vitals.
var ErrInvalidData = errors.New("invalid or missing data")

// Sample is one raw set of vitals as returned by the source.
// Fields the source omitted or could not be coerced hold NaN.
type Sample struct {
	HeartRate   float64
	SpO2        float64
	Temperature float64
}

// Validate returns nil when all vitals are finite, otherwise an error
// wrapping ErrInvalidData that names the offending fields.
func (s Sample) Validate() error {
	var bad []string
	if !finite(s.HeartRate) {
		bad = append(bad, "heart_rate")
	}
	if !finite(s.SpO2) {
		bad = append(bad, "spo2")
	}
	if !finite(s.Temperature) {
		bad = append(bad, "temperature")
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidData, strings.Join(bad, ", "))
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Fetcher is the interface implemented by every source format.
type Fetcher interface {
	Fetch(ctx context.Context) (Sample, error)
}

// New returns the Fetcher for the source's format.
// It builds the HTTP client once and reuses it across fetches.
func New(src config.Source) (Fetcher, error) {
	client, err := buildClient(src)
	if err != nil {
		return nil, fmt.Errorf("fetcher: build http client: %w", err)
	}
	switch src.Format {
	case "json", "":
		return &jsonFetcher{src: src, client: client}, nil
	case "prometheus":
		return &promFetcher{src: src, client: client}, nil
	default:
		return nil, fmt.Errorf("fetcher: unsupported format %q", src.Format)
	}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	src  config.Source
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.src.Auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.src.Auth.Header, t.src.Auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.src.Auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.src.Auth.Username, t.src.Auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildClient constructs a resty client for the source's auth and TLS
// settings. Retries are left at zero: a failed fetch waits for the next tick.
func buildClient(src config.Source) (*resty.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if src.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(src.Auth.CertFile, src.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if src.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(src.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", src.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	timeout := src.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	transport := &authRoundTripper{
		base: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsCfg,
		},
		src: src,
	}
	return resty.New().
		SetTransport(transport).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Cache-Control", "no-store"), nil
}

// get performs an HTTP GET to url and returns the body of a 2xx response.
func get(ctx context.Context, client *resty.Client, url, accept string) ([]byte, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
