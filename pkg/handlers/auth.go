package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/audit"
	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/services"
)

// RegisterRequest is the request body for POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request body for POST /api/auth/login.
// Login accepts either the email address or the username.
type LoginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	userService services.UserService
	sessions    *auth.SessionStore
	security    *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler. sessions may be nil to disable the browser cookie.
func NewAuthHandler(userService services.UserService, sessions *auth.SessionStore, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		sessions:    sessions,
		security:    audit.NewSecurityAuditor(logger),
		logger:      logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", authMiddleware.RequireAuth(h.Logout))
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireAuth(h.GetMe))
}

// Register handles POST /api/auth/register
// Creates a consultant account and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	session, err := h.userService.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err, "register")
		return
	}

	h.writeSession(w, r, http.StatusCreated, session)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	login := req.Login
	if login == "" {
		login = req.Email
	}

	session, err := h.userService.Login(r.Context(), login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInactiveUser):
			h.security.LogLoginFailure(r.Context(), login, "inactive account")
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			h.security.LogLoginFailure(r.Context(), login, "invalid credentials")
		}
		WriteServiceError(w, h.logger, err, "log in")
		return
	}
	h.security.LogLoginSuccess(r.Context(), session.User)

	h.writeSession(w, r, http.StatusOK, session)
}

// Logout handles POST /api/auth/logout
// Revokes the presented token and clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		WriteServiceError(w, h.logger, apperrors.ErrUnauthorized, "log out")
		return
	}

	if err := h.userService.Logout(r.Context(), claims); err != nil {
		WriteServiceError(w, h.logger, err, "log out")
		return
	}

	h.security.LogLogout(r.Context())

	if h.sessions != nil {
		if err := h.sessions.Clear(w, r); err != nil {
			h.logger.Warn("Failed to clear session cookie", zap.Error(err))
		}
	}

	respond(w, h.logger, http.StatusOK, map[string]string{"message": "Logged out"})
}

// GetMe handles GET /api/auth/me
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err, "load current user")
		return
	}

	user, err := h.userService.Get(r.Context(), p.UserID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "load current user")
		return
	}

	respond(w, h.logger, http.StatusOK, user)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, status int, session *services.Session) {
	if h.sessions != nil {
		if err := h.sessions.SetToken(w, r, session.Token); err != nil {
			h.logger.Warn("Failed to set session cookie", zap.Error(err))
		}
	}

	resp := SessionResponse{User: session.User, Token: session.Token}
	if session.Claims != nil && session.Claims.ExpiresAt != nil {
		resp.ExpiresAt = session.Claims.ExpiresAt.Time
	}
	respond(w, h.logger, status, resp)
}
