// Package config loads and watches the monitor configuration file (config.yaml).
//
// Top-level types:
//   - Config{Monitor}: full config tree parsed from YAML
//   - MonitorConfig: poll_interval, label_layout, http_port,
//     broadcast_interval, log, source, api_auth, alerts, report
//   - Source: endpoint, format (json|prometheus), timeout, fields, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from environment variables
//   - AlertsConfig, WebhookConfig, ReportConfig, APIAuthConfig, LogConfig
//
// Load(path) reads the YAML file, applies defaults (2s poll, 10s source
// timeout, port 8080, 15:04:05 labels), then validates required fields and
// enums. Risk thresholds are not part of the configuration.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config.
package config
