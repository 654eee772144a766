package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
)

// Wrap applies the outer middleware chain: panic recovery, CORS for
// browser dashboards and a debug-level access log.
func Wrap(h http.Handler, apiKeyHeader string) http.Handler {
	logged := handlers.CustomLoggingHandler(io.Discard, h, logRequest)
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", apiKeyHeader}),
		handlers.ExposedHeaders([]string{"Content-Disposition"}),
	)(logged)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)(cors)
}

func logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	slog.Debug("http request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"bytes", p.Size,
	)
}

// recoveryLogger routes recovered panics to slog.
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	slog.Error("api: recovered from panic", "panic", fmt.Sprint(v...))
}
