package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxLoggedBody caps request and response bodies logged at DEBUG
const maxLoggedBody = 4096

// responseWriter wraps http.ResponseWriter to capture status code and response body
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       *bytes.Buffer
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.body != nil && rw.body.Len() < maxLoggedBody {
		rw.body.Write(b[:min(len(b), maxLoggedBody-rw.body.Len())])
	}
	return rw.ResponseWriter.Write(b)
}

// Flush lets streaming handlers such as the CSV export flush through the wrapper
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware logs all HTTP requests with level-based detail
//
// Log levels:
// - INFO: Every request with Remote-IP, User-Agent, HTTP-Method, and Path
// - DEBUG: Additionally logs Request-Body, Response-Body, and all Query-Parameters
// - WARN: Only failed requests (status 4xx)
// - ERROR: Only errors (status 5xx)
//
// Every request gets a correlation id, taken from X-Request-ID when the
// caller sends a valid one.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		debug := slog.Default().Enabled(r.Context(), slog.LevelDebug)

		info := &requestInfo{id: r.Header.Get(RequestIDHeader)}
		if _, err := uuid.Parse(info.id); err != nil {
			info.id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, info.id)
		r = r.WithContext(withRequestInfo(r.Context(), info))

		var requestBody []byte
		if debug && r.Body != nil {
			requestBody, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		if debug {
			wrapped.body = &bytes.Buffer{}
		}

		attrs := []any{
			"request_id", info.id,
			"remote_ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
			"method", r.Method,
			"path", r.URL.Path,
		}

		if debug {
			debugAttrs := attrs
			if len(r.URL.Query()) > 0 {
				debugAttrs = append(debugAttrs, "query_params", map[string][]string(r.URL.Query()))
			}
			if len(requestBody) > 0 {
				debugAttrs = append(debugAttrs, "request_body", truncate(requestBody))
			}
			slog.Debug("Incoming request", debugAttrs...)
		} else {
			slog.Info("Incoming request", attrs...)
		}

		next.ServeHTTP(wrapped, r)

		var logLevel slog.Level
		var logMessage string
		switch {
		case wrapped.statusCode >= 500:
			logLevel = slog.LevelError
			logMessage = "Request failed with error"
		case wrapped.statusCode >= 400:
			logLevel = slog.LevelWarn
			logMessage = "Request failed"
		default:
			logLevel = slog.LevelInfo
			logMessage = "Request completed"
		}

		attrs = append(attrs,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if info.tenantID != "" {
			attrs = append(attrs, "tenant_id", info.tenantID, "user_id", info.userID)
		}
		if debug && wrapped.body.Len() > 0 {
			attrs = append(attrs, "response_body", wrapped.body.String())
		}

		slog.Log(r.Context(), logLevel, logMessage, attrs...)
	})
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "..."
	}
	return string(b)
}
