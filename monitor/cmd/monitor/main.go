package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vitalwatch/vitalwatch/monitor/internal/alerts"
	"github.com/vitalwatch/vitalwatch/monitor/internal/api"
	"github.com/vitalwatch/vitalwatch/monitor/internal/config"
	"github.com/vitalwatch/vitalwatch/monitor/internal/fetcher"
	"github.com/vitalwatch/vitalwatch/monitor/internal/logging"
	"github.com/vitalwatch/vitalwatch/monitor/internal/metrics"
	"github.com/vitalwatch/vitalwatch/monitor/internal/poller"
	"github.com/vitalwatch/vitalwatch/monitor/internal/security"
	"github.com/vitalwatch/vitalwatch/monitor/internal/window"
	"github.com/vitalwatch/vitalwatch/monitor/internal/ws"
)

// certCheckTTL bounds how often /api/v1/certs re-dials the source.
const certCheckTTL = time.Hour

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger, _ := logging.New(os.Stdout, "info", "json")
	slog.SetDefault(logger)

	slog.Info("vitalwatch monitor starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	m := cfg.Monitor

	logger, level := logging.New(os.Stdout, m.Log.Level, m.Log.Format)
	slog.SetDefault(logger)

	slog.Info("config loaded",
		"endpoint", m.Source.Endpoint,
		"format", m.Source.Format,
		"poll_interval", m.PollInterval,
		"http_port", m.HTTPPort,
		"auth_mode", m.Source.Auth.Mode,
	)

	src, err := fetcher.New(m.Source)
	if err != nil {
		slog.Error("failed to build source fetcher", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		slog.Error("failed to register metrics", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	buf := window.New(window.DefaultCapacity)
	p := poller.New(src, buf, poller.Options{
		Interval:    m.PollInterval,
		LabelLayout: m.LabelLayout,
	})

	alertEngine := alerts.New(m.Alerts)
	p.Subscribe(alertEngine.Evaluate)

	hub := ws.New(p, m.BroadcastInterval)
	p.Subscribe(func(poller.Cycle) { hub.Notify() })
	go hub.Run(ctx)

	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(logging.ParseLevel(updated.Monitor.Log.Level))
			alertEngine.SetWebhooks(updated.Monitor.Alerts.Webhooks)
			slog.Info("config hot-reloaded",
				"log_level", updated.Monitor.Log.Level,
				"webhooks", len(updated.Monitor.Alerts.Webhooks),
			)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	handler := api.New(p, api.Options{
		Capacity: buf.Cap(),
		Alerts:   alertEngine,
		Certs:    security.NewChecker(m.Source, certCheckTTL),
		Report:   m.Report,
		Auth:     m.APIAuth,
		Gatherer: reg,
		Stream:   hub,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", m.HTTPPort),
		Handler:           api.Wrap(handler, m.APIAuth.Header),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// A port that cannot be bound is a startup failure.
	lis, err := net.Listen("tcp", httpSrv.Addr)
	if err != nil {
		slog.Error("HTTP server bind failed", "addr", httpSrv.Addr, "err", err)
		os.Exit(1)
	}
	serveFailed := make(chan struct{})
	go func() {
		slog.Info("HTTP server listening", "port", m.HTTPPort)
		if err := httpSrv.Serve(lis); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			close(serveFailed)
			cancel()
		}
	}()

	// Run blocks until ctx is cancelled and any in-flight cycle has finished.
	p.Run(ctx)

	slog.Info("vitalwatch monitor shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	alertEngine.Wait()

	select {
	case <-serveFailed:
		os.Exit(1)
	default:
	}
}
