// Package logging scrubs secrets from strings before they reach a log line.
package logging

import (
	"regexp"
	"unicode/utf8"
)

// RedactedText replaces every secret the sanitizers find.
const RedactedText = "[REDACTED]"

var (
	// password=, pwd=, pass= in key/value DSNs and query strings.
	passwordPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)=[^;&\s]+`)

	// Storage and session credentials named in errors or query strings.
	secretKeyPattern = regexp.MustCompile(`(?i)\b(secret[_-]?key|access[_-]?key|session[_-]?key|jwt[_-]?secret)=[^;&\s]+`)

	// A bearer header or a bare JWT, e.g. inside a cookie value.
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)
	jwtPattern    = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)

	// URL userinfo; the user part may be empty (redis://:pass@host).
	userInfoPattern = regexp.MustCompile(`://[^:/\s]*:[^@\s]+@[^/\s:]+(?::\d+)?`)
)

// SanitizeConnectionString redacts credentials from a PostgreSQL DSN or a
// postgres/redis URL so the target can be logged.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return userInfoPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError redacts credentials and tokens from an error message.
// Use it for errors from pgx, go-redis, minio-go and token parsing.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := SanitizeConnectionString(err.Error())
	sanitized = secretKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	return jwtPattern.ReplaceAllString(sanitized, RedactedText)
}

// TruncateString shortens s to at most maxLen bytes plus "...", never
// splitting a multi-byte character.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
