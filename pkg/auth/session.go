package auth

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// SessionName is the name of the browser session cookie.
const SessionName = "ekaya_session"

// sessionKeyToken is the session value holding the JWT.
const sessionKeyToken = "token"

// SessionStore keeps the login token in a signed cookie for browser clients.
// API clients send the token as a Bearer header instead.
type SessionStore struct {
	store *sessions.CookieStore
}

// NewSessionStore creates a cookie-backed session store.
//
// The secret parameter is used to sign session cookies. It can be any
// passphrase - it will be SHA-256 hashed to derive a 32-byte key.
// The secret must be consistent across server restarts and multiple
// servers in a load-balanced deployment.
//
// The cookie lives as long as the token it carries.
func NewSessionStore(secret string, settings CookieSettings, ttl time.Duration) *SessionStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	return &SessionStore{store: store}
}

// SetToken stores token in the session cookie.
func (s *SessionStore) SetToken(w http.ResponseWriter, r *http.Request, token string) error {
	// A cookie signed with an old key decodes to a fresh session plus an error.
	session, err := s.store.Get(r, SessionName)
	if session == nil {
		return err
	}
	session.Values[sessionKeyToken] = token
	session.Options.MaxAge = s.store.Options.MaxAge
	return session.Save(r, w)
}

// Token returns the token stored in the session cookie, if any.
func (s *SessionStore) Token(r *http.Request) (string, bool) {
	if _, err := r.Cookie(SessionName); err != nil {
		return "", false
	}
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return "", false
	}
	token, ok := session.Values[sessionKeyToken].(string)
	return token, ok && token != ""
}

// Clear expires the session cookie.
func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	delete(session.Values, sessionKeyToken)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
