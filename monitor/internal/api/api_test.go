package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitalwatch/vitalwatch/monitor/internal/alerts"
	"github.com/vitalwatch/vitalwatch/monitor/internal/api"
	"github.com/vitalwatch/vitalwatch/monitor/internal/classify"
	"github.com/vitalwatch/vitalwatch/monitor/internal/config"
	"github.com/vitalwatch/vitalwatch/pkg/types"
)

// --- test helpers -----------------------------------------------------------

var fixedNow = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

type fakeMonitor struct {
	state    types.State
	readings []types.Reading
}

func (f *fakeMonitor) State() types.State         { return f.state }
func (f *fakeMonitor) Readings() []types.Reading { return f.readings }

type fakeAlerts []*alerts.Alert

func (f fakeAlerts) Active() []*alerts.Alert { return f }

type fakeCerts []types.CertStatus

func (f fakeCerts) Statuses(context.Context) []types.CertStatus { return f }

func pending() *fakeMonitor {
	return &fakeMonitor{state: types.State{
		Status:        types.StatusPending,
		StatusMessage: types.StatusPending.Message(),
		UptimePct:     100,
	}}
}

func live(hr, spo2, temp float64) *fakeMonitor {
	res := classify.Classify(hr, spo2, temp)
	r := types.Reading{Label: "07:08:09", At: fixedNow, SpO2: spo2, HeartRate: hr, Temperature: temp}
	return &fakeMonitor{
		state: types.State{
			Status:         types.StatusConnected,
			StatusMessage:  types.StatusConnected.Message(),
			LastCycleAt:    fixedNow,
			Latest:         &r,
			Classification: &res,
			UptimePct:      95,
			Cycles:         20,
		},
		readings: []types.Reading{r},
	}
}

func newHandler(m api.Monitor, opts api.Options) http.Handler {
	opts.Now = func() time.Time { return fixedNow }
	return api.New(m, opts)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_Pending(t *testing.T) {
	rr := get(t, newHandler(pending(), api.Options{}), "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.Status != types.StatusPending || resp.Tier != types.TierUnknown {
		t.Errorf("resp = %+v", resp)
	}
	if resp.LastCycleAt != "" {
		t.Errorf("last_cycle_at = %q, want empty before first cycle", resp.LastCycleAt)
	}
}

func TestHealth_Live(t *testing.T) {
	al := fakeAlerts{
		{RuleName: alerts.RuleRiskTier, State: alerts.StateFiring},
		{RuleName: alerts.RuleSourceUnavailable, State: alerts.StateResolved},
	}
	rr := get(t, newHandler(live(121, 95, 36), api.Options{Alerts: al}), "/api/v1/health")

	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.Status != types.StatusConnected || resp.StatusMessage != "Live data connected" {
		t.Errorf("status = %q / %q", resp.Status, resp.StatusMessage)
	}
	if resp.Tier != types.TierCritical || resp.TierLabel != "Critical" {
		t.Errorf("tier = %q / %q", resp.Tier, resp.TierLabel)
	}
	if resp.AlertCount != 1 {
		t.Errorf("alert_count = %d, want 1 firing", resp.AlertCount)
	}
	if resp.LastCycleAt != "2026-05-06T07:08:09Z" {
		t.Errorf("last_cycle_at = %q", resp.LastCycleAt)
	}
}

// --- /api/v1/readings -------------------------------------------------------

func TestReadings_Empty(t *testing.T) {
	rr := get(t, newHandler(pending(), api.Options{}), "/api/v1/readings")
	var resp map[string]interface{}
	decode(t, rr, &resp)

	if resp["count"].(float64) != 0 || resp["capacity"].(float64) != 10 {
		t.Errorf("resp = %v", resp)
	}
	if rs, ok := resp["readings"].([]interface{}); !ok || len(rs) != 0 {
		t.Errorf("readings = %v, want []", resp["readings"])
	}
}

func TestReadings_Series(t *testing.T) {
	rr := get(t, newHandler(live(72, 98, 36.6), api.Options{}), "/api/v1/readings")
	var resp api.ReadingsResponse
	decode(t, rr, &resp)

	if resp.Count != 1 || len(resp.Series.Labels) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Series.HeartRate[0] != 72 || resp.Series.Labels[0] != "07:08:09" {
		t.Errorf("series = %+v", resp.Series)
	}
}

// --- /api/v1/classification -------------------------------------------------

func TestClassification(t *testing.T) {
	tests := []struct {
		name     string
		m        *fakeMonitor
		tier     types.Tier
		advisory string
	}{
		{"none yet", pending(), types.TierUnknown, ""},
		{"moderate", live(80, 93, 36), types.TierModerateRisk, classify.AdvisoryModerate},
		{"normal", live(80, 96, 37), types.TierNormal, classify.AdvisoryNormal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := get(t, newHandler(tc.m, api.Options{}), "/api/v1/classification")
			var resp api.ClassificationResponse
			decode(t, rr, &resp)
			if resp.Tier != tc.tier || resp.Advisory != tc.advisory {
				t.Errorf("got %q / %q, want %q / %q", resp.Tier, resp.Advisory, tc.tier, tc.advisory)
			}
			if resp.Color != tc.tier.Color() {
				t.Errorf("color = %q", resp.Color)
			}
		})
	}
}

// --- /api/v1/snapshot -------------------------------------------------------

func TestSnapshot(t *testing.T) {
	rr := get(t, newHandler(live(80, 93, 36), api.Options{}), "/api/v1/snapshot")
	var resp api.SnapshotResponse
	decode(t, rr, &resp)

	if resp.GeneratedAt != "2026-05-06T07:08:09Z" {
		t.Errorf("generated_at = %q", resp.GeneratedAt)
	}
	if len(resp.Readings) != 1 || resp.Latest == nil {
		t.Errorf("readings = %v, latest = %v", resp.Readings, resp.Latest)
	}
	if resp.Classification.Tier != types.TierModerateRisk {
		t.Errorf("classification = %+v", resp.Classification)
	}
	if len(resp.Classification.Triggers) != 1 || resp.Classification.Triggers[0] != "spo2 < 94" {
		t.Errorf("triggers = %v", resp.Classification.Triggers)
	}
}

// --- /api/v1/alerts, /api/v1/certs -----------------------------------------

func TestAlerts_NilSourceIsEmptyList(t *testing.T) {
	rr := get(t, newHandler(pending(), api.Options{}), "/api/v1/alerts")
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("body = %s, want []", body)
	}
}

func TestCerts(t *testing.T) {
	certs := fakeCerts{{Endpoint: "https://vitals.example", Status: "valid", DaysLeft: 80}}
	rr := get(t, newHandler(pending(), api.Options{Certs: certs}), "/api/v1/certs")
	var resp []types.CertStatus
	decode(t, rr, &resp)
	if len(resp) != 1 || resp[0].Status != "valid" {
		t.Errorf("certs = %+v", resp)
	}
}

// --- /api/v1/charts/{metric} -----------------------------------------------

func TestChart(t *testing.T) {
	h := newHandler(live(72, 98, 36.6), api.Options{})

	rr := get(t, h, "/api/v1/charts/heart_rate")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content-type = %q", ct)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestChart_Errors(t *testing.T) {
	tests := []struct {
		name string
		m    *fakeMonitor
		path string
		want int
	}{
		{"unknown metric", live(72, 98, 36.6), "/api/v1/charts/blood_pressure", http.StatusNotFound},
		{"empty window", pending(), "/api/v1/charts/spo2", http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := get(t, newHandler(tc.m, api.Options{}), tc.path)
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

// --- /api/v1/report ---------------------------------------------------------

func TestReport(t *testing.T) {
	opts := api.Options{Report: config.ReportConfig{
		Title:    config.DefaultReportTitle,
		Footer:   config.DefaultReportFooter,
		Filename: "Health_Report.xlsx",
	}}
	for name, m := range map[string]*fakeMonitor{"empty": pending(), "live": live(72, 98, 36.6)} {
		t.Run(name, func(t *testing.T) {
			rr := get(t, newHandler(m, opts), "/api/v1/report")
			if rr.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
			}
			if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="Health_Report.xlsx"` {
				t.Errorf("content-disposition = %q", cd)
			}
			// XLSX is a zip container.
			if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
				t.Error("body is not an XLSX workbook")
			}
		})
	}
}

// --- method, auth, metrics --------------------------------------------------

func TestMethodNotAllowed(t *testing.T) {
	h := newHandler(pending(), api.Options{})
	for _, path := range []string{"/api/v1/health", "/api/v1/report", "/api/v1/charts/spo2"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, rr.Code)
		}
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	h := newHandler(pending(), api.Options{Auth: config.APIAuthConfig{
		Mode:   "apikey",
		Header: "X-API-Key",
		KeyEnv: "TEST_API_KEY",
	}})

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"correct", "supersecret", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestAPIKey_StreamRoute(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stream")) //nolint:errcheck
	})
	h := newHandler(pending(), api.Options{
		Stream: stream,
		Auth: config.APIAuthConfig{
			Mode:   "apikey",
			Header: "X-API-Key",
			KeyEnv: "TEST_API_KEY",
		},
	})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing", "/ws/stream", "", http.StatusUnauthorized},
		{"wrong query", "/ws/stream?api_key=nope", "", http.StatusUnauthorized},
		{"header", "/ws/stream", "supersecret", http.StatusOK},
		{"query", "/ws/stream?api_key=supersecret", "", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("X-API-Key", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
			if tc.want == http.StatusUnauthorized && strings.Contains(rr.Body.String(), "stream") {
				t.Error("stream handler ran without a valid key")
			}
		})
	}
}

func TestAPIKey_QueryNotAcceptedOnRESTRoutes(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	h := newHandler(pending(), api.Options{Auth: config.APIAuthConfig{
		Mode:   "apikey",
		Header: "X-API-Key",
		KeyEnv: "TEST_API_KEY",
	}})
	rr := get(t, h, "/api/v1/health?api_key=supersecret")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestAPIKey_ModeNonePassesThrough(t *testing.T) {
	h := api.RequireAPIKey("none", "X-API-Key", "secret", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("status: got %d, want pass-through", rr.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "vitalwatch_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rr := get(t, newHandler(pending(), api.Options{Gatherer: reg}), "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "vitalwatch_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", rr.Body.String())
	}
}

func TestWrap_RecoversPanics(t *testing.T) {
	h := api.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), "X-API-Key")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
}

func TestWrap_CORS(t *testing.T) {
	h := api.Wrap(newHandler(pending(), api.Options{}), "X-API-Key")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
