package auth

import (
	"testing"
)

func TestDeriveCookieSettings(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		override string
		expected CookieSettings
	}{
		{"localhost with port", "http://localhost:3443", "", CookieSettings{Secure: false, Domain: ""}},
		{"127.0.0.1", "http://127.0.0.1:3443", "", CookieSettings{Secure: false, Domain: ""}},
		{"internal network", "https://pm.corp.internal", "", CookieSettings{Secure: true, Domain: ".internal"}},
		{"custom domain isolated", "https://projects.example.com", "", CookieSettings{Secure: true, Domain: ""}},
		{"explicit override", "https://projects.example.com", ".example.com", CookieSettings{Secure: true, Domain: ".example.com"}},
		{"override keeps http", "http://localhost:3443", "localhost", CookieSettings{Secure: false, Domain: "localhost"}},
		{"empty url", "", "", CookieSettings{Secure: true, Domain: ""}},
		{"invalid url", "://bad", "", CookieSettings{Secure: true, Domain: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DeriveCookieSettings(tt.baseURL, tt.override)
			if result.Secure != tt.expected.Secure {
				t.Errorf("Secure: expected %v, got %v", tt.expected.Secure, result.Secure)
			}
			if result.Domain != tt.expected.Domain {
				t.Errorf("Domain: expected %q, got %q", tt.expected.Domain, result.Domain)
			}
		})
	}
}

func TestIsHTTPS(t *testing.T) {
	tests := map[string]bool{
		"https://example.com":   true,
		"http://localhost:3443": false,
		"":                      true,
	}
	for url, want := range tests {
		if got := isHTTPS(url); got != want {
			t.Errorf("isHTTPS(%q) = %v, want %v", url, got, want)
		}
	}
}
