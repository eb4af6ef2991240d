package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"go-authorisation-service/internal/cache"
)

const requestIDHeader = "X-Request-ID"

// Logging writes one access log line per request. Rejected requests carry
// the envelope's error code and message so auth failures can be told apart
// without reading the response.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", r.RemoteAddr,
		}
		if route := routePattern(r); route != "" {
			attrs = append(attrs, "route", route)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			attrs = append(attrs, "real_ip", realIP)
		}
		if rec.Header().Get(cache.HeaderCachedValue) != "" {
			attrs = append(attrs, "cached", true)
		}
		attrs = append(attrs, rec.failureAttrs(r)...)

		slog.Log(r.Context(), levelFor(rec.status), "request", attrs...)
	})
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// statusRecorder keeps the status and, for failures only, the body.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	failure     bytes.Buffer
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.wroteHeader {
		return
	}
	rec.status = status
	rec.wroteHeader = true
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status >= http.StatusBadRequest {
		rec.failure.Write(b)
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// Hijack lets the events route upgrade through the logger.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (rec *statusRecorder) failureAttrs(r *http.Request) []any {
	if rec.status < http.StatusBadRequest {
		return nil
	}

	var attrs []any
	if r.URL.RawQuery != "" {
		attrs = append(attrs, "query", r.URL.RawQuery)
	}

	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details string `json:"details"`
		} `json:"error"`
	}
	if rec.failure.Len() == 0 || json.Unmarshal(rec.failure.Bytes(), &envelope) != nil || envelope.Error == nil {
		return attrs
	}

	attrs = append(attrs, "error_code", envelope.Error.Code, "error_message", envelope.Error.Message)
	if envelope.Error.Details != "" {
		attrs = append(attrs, "error_details", envelope.Error.Details)
	}
	return attrs
}
