package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitalwatch/vitalwatch/monitor/internal/alerts"
	"github.com/vitalwatch/vitalwatch/monitor/internal/config"
	"github.com/vitalwatch/vitalwatch/monitor/internal/report"
	"github.com/vitalwatch/vitalwatch/monitor/internal/window"
	"github.com/vitalwatch/vitalwatch/pkg/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Monitor is the read side of the poller.
type Monitor interface {
	State() types.State
	Readings() []types.Reading
}

// AlertSource lists firing and recently resolved alerts.
type AlertSource interface {
	Active() []*alerts.Alert
}

// CertSource reports the source endpoint's certificate status.
type CertSource interface {
	Statuses(ctx context.Context) []types.CertStatus
}

// Options wires the optional collaborators of the API.
type Options struct {
	// Capacity is the window size reported by /readings.
	Capacity int

	Alerts AlertSource
	Certs  CertSource
	Report config.ReportConfig
	Auth   config.APIAuthConfig

	// Gatherer backs /metrics. Nil leaves the route unregistered.
	Gatherer prometheus.Gatherer

	// Stream serves /ws/stream behind the same API-key check as /api/v1.
	// Nil leaves the route unregistered.
	Stream http.Handler

	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler is the HTTP handler for all monitor endpoints.
type Handler struct {
	monitor Monitor
	opts    Options
	mux     *http.ServeMux
}

// New creates a Handler reading from m and registers all routes.
func New(m Monitor, opts Options) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Capacity <= 0 {
		opts.Capacity = window.DefaultCapacity
	}
	h := &Handler{monitor: m, opts: opts, mux: http.NewServeMux()}

	v1 := http.NewServeMux()
	v1.HandleFunc("/api/v1/health", h.health)
	v1.HandleFunc("/api/v1/readings", h.readings)
	v1.HandleFunc("/api/v1/classification", h.classification)
	v1.HandleFunc("/api/v1/snapshot", h.snapshot)
	v1.HandleFunc("/api/v1/alerts", h.alerts)
	v1.HandleFunc("/api/v1/certs", h.certs)
	v1.HandleFunc("/api/v1/charts/", h.chart) // subtree, extracts {metric}
	v1.HandleFunc("/api/v1/report", h.report)

	h.mux.Handle("/api/v1/", RequireAPIKey(opts.Auth.Mode, opts.Auth.Header, opts.Auth.Key(), v1))
	if opts.Gatherer != nil {
		h.mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.Stream != nil {
		h.mux.Handle("/ws/stream", RequireStreamKey(opts.Auth.Mode, opts.Auth.Header, opts.Auth.Key(), opts.Stream))
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health, the tri-state status indicator.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	st := h.monitor.State()
	resp := HealthResponse{
		Status:        st.Status,
		StatusMessage: st.StatusMessage,
		Error:         st.Error,
		Tier:          st.Tier(),
		TierLabel:     st.Tier().Label(),
		UptimePct:     st.UptimePct,
		Cycles:        st.Cycles,
		Skipped:       st.Skipped,
	}
	if !st.LastCycleAt.IsZero() {
		resp.LastCycleAt = st.LastCycleAt.UTC().Format(time.RFC3339)
	}
	if h.opts.Alerts != nil {
		for _, a := range h.opts.Alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// readings returns GET /api/v1/readings, the window contents.
func (h *Handler) readings(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	rs := h.monitor.Readings()
	jsonResp(w, http.StatusOK, ReadingsResponse{
		Count:    len(rs),
		Capacity: h.opts.Capacity,
		Readings: nonNil(rs),
		Series:   window.SeriesOf(rs),
	})
}

// classification returns GET /api/v1/classification.
func (h *Handler) classification(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, toClassification(h.monitor.State().Classification))
}

// snapshot returns GET /api/v1/snapshot, everything a dashboard needs.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.monitor, h.opts.Now()))
}

// alerts returns GET /api/v1/alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	out := []*alerts.Alert{}
	if h.opts.Alerts != nil {
		out = append(out, h.opts.Alerts.Active()...)
	}
	jsonResp(w, http.StatusOK, out)
}

// certs returns GET /api/v1/certs, empty for a plain-HTTP source.
func (h *Handler) certs(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	out := []types.CertStatus{}
	if h.opts.Certs != nil {
		out = append(out, h.opts.Certs.Statuses(r.Context())...)
	}
	jsonResp(w, http.StatusOK, out)
}

// chart returns GET /api/v1/charts/{metric} as a PNG.
func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/charts/")
	m, err := report.ParseMetric(name)
	if err != nil {
		jsonErr(w, http.StatusNotFound, "unknown metric")
		return
	}

	png, err := report.RenderChart(window.SeriesOf(h.monitor.Readings()), m)
	switch {
	case errors.Is(err, report.ErrNoData):
		jsonErr(w, http.StatusConflict, "no readings yet")
		return
	case err != nil:
		slog.Error("api: chart render failed", "metric", m, "err", err)
		jsonErr(w, http.StatusInternalServerError, "chart render failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png) //nolint:errcheck
}

// report returns GET /api/v1/report as an XLSX attachment.
func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	st := h.monitor.State()
	b, err := report.Build(
		report.Options{Title: h.opts.Report.Title, Footer: h.opts.Report.Footer},
		report.Input{
			Readings:       h.monitor.Readings(),
			Classification: st.Classification,
			GeneratedAt:    h.opts.Now(),
		},
	)
	if err != nil {
		slog.Error("api: report export failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "report export failed")
		return
	}

	filename := h.opts.Report.Filename
	if filename == "" {
		filename = config.DefaultReportFilename
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(b) //nolint:errcheck
}

// BuildSnapshot assembles the dashboard snapshot from m at time now.
func BuildSnapshot(m Monitor, now time.Time) SnapshotResponse {
	st := m.State()
	rs := m.Readings()
	return SnapshotResponse{
		Status:         st.Status,
		StatusMessage:  st.StatusMessage,
		Readings:       nonNil(rs),
		Series:         window.SeriesOf(rs),
		Latest:         st.Latest,
		Classification: toClassification(st.Classification),
		UptimePct:      st.UptimePct,
		GeneratedAt:    now.UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func toClassification(res *types.ClassificationResult) ClassificationResponse {
	if res == nil {
		return ClassificationResponse{
			Tier:      types.TierUnknown,
			TierLabel: types.TierUnknown.Label(),
			Color:     types.TierUnknown.Color(),
			Triggers:  []string{},
		}
	}
	triggers := res.Triggers
	if triggers == nil {
		triggers = []string{}
	}
	return ClassificationResponse{
		Tier:      res.Tier,
		TierLabel: res.Tier.Label(),
		Color:     res.Tier.Color(),
		Advisory:  res.Advisory,
		Triggers:  triggers,
	}
}

func nonNil(rs []types.Reading) []types.Reading {
	if rs == nil {
		return []types.Reading{}
	}
	return rs
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
