package fetcher

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vitalwatch/vitalwatch/monitor/internal/config"
)

func defaultFields() config.FieldMap {
	return config.FieldMap{HeartRate: "heartrate", SpO2: "spo2", Temperature: "temperature"}
}

// serve starts a test server that answers every request with status and body.
func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newJSONFetcher(t *testing.T, endpoint string) Fetcher {
	t.Helper()
	f, err := New(config.Source{Endpoint: endpoint, Format: "json", Fields: defaultFields()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func TestJSONFetcher_Fetch(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"heartrate": 72, "spo2": "97", "temperature": 36.64}`)

	s, err := newJSONFetcher(t, srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if s.HeartRate != 72 || s.SpO2 != 97 || s.Temperature != 36.64 {
		t.Errorf("sample = %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestJSONFetcher_MissingField_IsInvalidData(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"heartrate": 72, "spo2": 97}`)

	s, err := newJSONFetcher(t, srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil (invalid data is not a fetch failure)", err)
	}
	if !math.IsNaN(s.Temperature) {
		t.Errorf("Temperature = %v, want NaN", s.Temperature)
	}
	if err := s.Validate(); !errors.Is(err, ErrInvalidData) {
		t.Errorf("Validate() = %v, want ErrInvalidData", err)
	}
}

func TestJSONFetcher_Non2xx_IsFetchFailure(t *testing.T) {
	srv := serve(t, http.StatusBadGateway, `{"heartrate": 72, "spo2": 97, "temperature": 36}`)
	if _, err := newJSONFetcher(t, srv.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestJSONFetcher_MalformedBody_IsFetchFailure(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html>oops</html>`)
	if _, err := newJSONFetcher(t, srv.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestDecodeJSON_TrailingData(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"garbage after object", `{"heartrate": 72, "spo2": 97, "temperature": 36}garbage`, true},
		{"second object", `{"heartrate": 72, "spo2": 97, "temperature": 36} {}`, true},
		{"trailing whitespace", "{\"heartrate\": 72, \"spo2\": 97, \"temperature\": 36}\n  ", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeJSON([]byte(tc.body), defaultFields())
			if (err != nil) != tc.wantErr {
				t.Errorf("decodeJSON() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestJSONFetcher_TrailingGarbage_IsFetchFailure(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"heartrate": 72, "spo2": 97, "temperature": 36}garbage`)
	if _, err := newJSONFetcher(t, srv.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for body with trailing data")
	}
}

func TestJSONFetcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := newJSONFetcher(t, url).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestJSONFetcher_SendsNoStore(t *testing.T) {
	var cacheControl string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cacheControl = r.Header.Get("Cache-Control")
		_, _ = w.Write([]byte(`{"heartrate":1,"spo2":2,"temperature":3}`))
	}))
	defer srv.Close()

	if _, err := newJSONFetcher(t, srv.URL).Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if cacheControl != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cacheControl)
	}
}

func TestJSONFetcher_CustomFields(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"bpm": 88, "oxygen": 95.5, "temp_c": 37.1}`)
	f, err := New(config.Source{
		Endpoint: srv.URL,
		Format:   "json",
		Fields:   config.FieldMap{HeartRate: "bpm", SpO2: "oxygen", Temperature: "temp_c"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if s.HeartRate != 88 || s.SpO2 != 95.5 || s.Temperature != 37.1 {
		t.Errorf("sample = %+v", s)
	}
}

func TestDecodeJSON_Coercion(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantHR  float64 // NaN sentinel checked via math.IsNaN
		wantNaN bool
	}{
		{"number", `{"heartrate": 80}`, 80, false},
		{"numeric string", `{"heartrate": " 81.5 "}`, 81.5, false},
		{"exponent", `{"heartrate": 8e1}`, 80, false},
		{"null", `{"heartrate": null}`, 0, true},
		{"bool", `{"heartrate": true}`, 0, true},
		{"empty string", `{"heartrate": ""}`, 0, true},
		{"word", `{"heartrate": "fast"}`, 0, true},
		{"nan string", `{"heartrate": "NaN"}`, 0, true},
		{"object", `{"heartrate": {"v": 1}}`, 0, true},
		{"array body", `[1,2,3]`, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := decodeJSON([]byte(tc.body), defaultFields())
			if err != nil {
				t.Fatalf("decodeJSON() error = %v", err)
			}
			if tc.wantNaN {
				if !math.IsNaN(s.HeartRate) {
					t.Errorf("HeartRate = %v, want NaN", s.HeartRate)
				}
				return
			}
			if s.HeartRate != tc.wantHR {
				t.Errorf("HeartRate = %v, want %v", s.HeartRate, tc.wantHR)
			}
		})
	}
}

func TestSample_Validate(t *testing.T) {
	if err := (Sample{HeartRate: 70, SpO2: 98, Temperature: 36.5}).Validate(); err != nil {
		t.Errorf("finite sample: %v", err)
	}
	err := Sample{HeartRate: math.NaN(), SpO2: 98, Temperature: math.Inf(1)}.Validate()
	if !errors.Is(err, ErrInvalidData) {
		t.Fatalf("Validate() = %v, want ErrInvalidData", err)
	}
	if got := err.Error(); got != "invalid or missing data: heart_rate, temperature" {
		t.Errorf("error text = %q", got)
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(config.Source{Endpoint: "http://x", Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNew_MTLSMissingCert(t *testing.T) {
	_, err := New(config.Source{
		Endpoint: "https://x",
		Format:   "json",
		Auth:     config.AuthConfig{Mode: "mtls", CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"},
	})
	if err == nil {
		t.Fatal("expected error for missing client cert")
	}
}
