package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/ekaya-inc/ekaya-projects/pkg/logging"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// maxUserAgentLength caps the client string stored with each audit entry.
const maxUserAgentLength = 512

// RequestOrigin records the client address and user agent in the request
// provenance, where the audit log picks them up.
//
// When trustProxy is set the first X-Forwarded-For entry wins; otherwise only
// the connection's remote address is used.
func RequestOrigin(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := models.WithRequestOrigin(r.Context(), ClientIP(r, trustProxy),
				logging.TruncateString(r.UserAgent(), maxUserAgentLength))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the caller's address in canonical text form, or "" when
// it cannot be determined.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := parseIP(first); ip != "" {
				return ip
			}
		}
		if real := parseIP(r.Header.Get("X-Real-IP")); real != "" {
			return real
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port.
		host = r.RemoteAddr
	}
	return parseIP(host)
}

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimSuffix(s, "]"), "[")
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
