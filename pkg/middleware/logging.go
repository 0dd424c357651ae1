package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// RequestIDHeader carries the request ID back to the client and, when a
// trusted proxy already assigned one, in from it.
const RequestIDHeader = "X-Request-ID"

// RequestLogger returns middleware that logs HTTP requests.
// Successful requests log at DEBUG, 4xx at INFO and 5xx at WARN.
// Pass nil logger to disable logging (makes it optional/injectable).
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// If no logger provided, pass through without logging
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Int64("bytes", wrapped.bytes),
				zap.Duration("duration", time.Since(start)),
			}
			if prov, ok := models.GetProvenance(r.Context()); ok && prov.IPAddress != "" {
				fields = append(fields, zap.String("client_ip", prov.IPAddress))
			} else {
				fields = append(fields, zap.String("remote_addr", r.RemoteAddr))
			}

			logger.Log(levelForStatus(wrapped.statusCode), "HTTP request", fields...)
		})
	}
}

func levelForStatus(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.WarnLevel
	case status >= http.StatusBadRequest:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	bytes         int64
	headerWritten bool
}

// WriteHeader records the first status code. Later calls are dropped to
// avoid "superfluous WriteHeader" warnings from net/http.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = code
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.headerWritten = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
