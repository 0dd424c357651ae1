package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/services"
)

// CreateUserRequest is the request body for POST /api/users.
type CreateUserRequest struct {
	RegisterRequest
	Role models.GlobalRole `json:"role"`
}

// UpdateUserRequest is the request body for PUT /api/users/{id}.
// Omitted fields are left unchanged.
type UpdateUserRequest struct {
	Name     *string            `json:"name,omitempty"`
	Username *string            `json:"username,omitempty"`
	Email    *string            `json:"email,omitempty"`
	Password *string            `json:"password,omitempty"`
	Role     *models.GlobalRole `json:"role,omitempty"`
}

// UsersHandler handles user administration endpoints.
type UsersHandler struct {
	userService services.UserService
	logger      *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(userService services.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{userService: userService, logger: logger}
}

// RegisterRoutes registers the user routes on the given mux.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/users", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/users/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("POST /api/users",
		authMiddleware.RequireAuth(auth.RequireCapability(auth.OpUserCreate)(h.Create)))
	mux.HandleFunc("PUT /api/users/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/users/{id}",
		authMiddleware.RequireAuth(auth.RequireCapability(auth.OpUserDeactivate)(h.Deactivate)))
}

// List handles GET /api/users
// Inactive users are included for admins when ?includeInactive=true.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := false
	if p, ok := auth.GetPrincipal(r.Context()); ok && p.IsAdmin() {
		includeInactive = r.URL.Query().Get("includeInactive") == "true"
	}

	users, err := h.userService.List(r.Context(), includeInactive)
	if err != nil {
		WriteServiceError(w, h.logger, err, "list users")
		return
	}
	if users == nil {
		users = []*models.User{}
	}

	respond(w, h.logger, http.StatusOK, users)
}

// Get handles GET /api/users/{id}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get user")
		return
	}

	respond(w, h.logger, http.StatusOK, user)
}

// Create handles POST /api/users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user, err := h.userService.Create(r.Context(), services.CreateUserInput{
		RegisterInput: services.RegisterInput{
			Name:     req.Name,
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
		},
		Role: req.Role,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err, "create user")
		return
	}

	respond(w, h.logger, http.StatusCreated, user)
}

// Update handles PUT /api/users/{id}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user, err := h.userService.Update(r.Context(), id, services.UpdateUserInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err, "update user")
		return
	}

	respond(w, h.logger, http.StatusOK, user)
}

// Deactivate handles DELETE /api/users/{id}
// Users are deactivated, never removed.
func (h *UsersHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.userService.Deactivate(r.Context(), id); err != nil {
		WriteServiceError(w, h.logger, err, "deactivate user")
		return
	}

	respond(w, h.logger, http.StatusOK, map[string]string{"message": "User deactivated"})
}
