package auth

import (
	"net/url"
	"strings"
)

// CookieSettings contains cookie security settings derived from base URL.
type CookieSettings struct {
	// Secure indicates whether the cookie should only be sent over HTTPS.
	Secure bool
	// Domain is the cookie domain scope (e.g., ".example.internal" for cross-subdomain sharing).
	Domain string
}

// DeriveCookieSettings determines cookie security settings from base URL.
//   - localhost (http://localhost:3443) → Secure: false, Domain: ""
//   - internal network (https://pm.corp.internal) → Secure: true, Domain: ".internal"
//   - anything else → Secure from scheme, Domain isolated to the host
//
// The configCookieDomain parameter allows explicit override.
func DeriveCookieSettings(baseURL string, configCookieDomain string) CookieSettings {
	if configCookieDomain != "" {
		return CookieSettings{
			Secure: isHTTPS(baseURL),
			Domain: configCookieDomain,
		}
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		// Safe defaults for invalid URLs
		return CookieSettings{Secure: true, Domain: ""}
	}

	secure := parsedURL.Scheme != "http"
	hostname := parsedURL.Hostname()

	var domain string
	if strings.HasSuffix(hostname, ".internal") {
		domain = ".internal"
	}

	return CookieSettings{
		Secure: secure,
		Domain: domain,
	}
}

// isHTTPS determines if the given base URL uses HTTPS protocol.
// Returns true for HTTPS, false for HTTP, true for empty/invalid URLs (safe default).
func isHTTPS(baseURL string) bool {
	if baseURL == "" {
		return true
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return true
	}

	return parsedURL.Scheme != "http"
}
