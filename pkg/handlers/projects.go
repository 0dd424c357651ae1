package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/services"
)

// ProjectRequest is the request body for creating or updating a project.
// On update, omitted fields are left unchanged.
type ProjectRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}

func (req ProjectRequest) input() services.ProjectInput {
	return services.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
}

// AddMemberRequest is the request body for POST /api/projects/{id}/members.
type AddMemberRequest struct {
	UserID uuid.UUID          `json:"userId"`
	Role   models.ProjectRole `json:"role"`
}

// ProjectsHandler handles project and project membership endpoints.
type ProjectsHandler struct {
	projectService services.ProjectService
	logger         *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(projectService services.ProjectService, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/projects", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/projects",
		authMiddleware.RequireAuth(auth.RequireCapability(auth.OpProjectCreate)(h.Create)))
	mux.HandleFunc("GET /api/projects/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/projects/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/projects/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("POST /api/projects/{id}/members", authMiddleware.RequireAuth(h.AddMember))
	mux.HandleFunc("DELETE /api/projects/{id}/members/{userId}", authMiddleware.RequireAuth(h.RemoveMember))
}

// List handles GET /api/projects
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectService.List(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err, "list projects")
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}

	respond(w, h.logger, http.StatusOK, projects)
}

// Create handles POST /api/projects
// The caller becomes the project's lead.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	project, err := h.projectService.Create(r.Context(), req.input())
	if err != nil {
		WriteServiceError(w, h.logger, err, "create project")
		return
	}

	respond(w, h.logger, http.StatusCreated, project)
}

// Get handles GET /api/projects/{id}
// Returns the project with its members.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get project")
		return
	}

	respond(w, h.logger, http.StatusOK, project)
}

// Update handles PUT /api/projects/{id}
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req ProjectRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	project, err := h.projectService.Update(r.Context(), projectID, req.input())
	if err != nil {
		WriteServiceError(w, h.logger, err, "update project")
		return
	}

	respond(w, h.logger, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{id}
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.projectService.Delete(r.Context(), projectID); err != nil {
		WriteServiceError(w, h.logger, err, "delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddMember handles POST /api/projects/{id}/members
// Adds the user or changes their project role.
func (h *ProjectsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req AddMemberRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	member, err := h.projectService.AddMember(r.Context(), projectID, req.UserID, req.Role)
	if err != nil {
		WriteServiceError(w, h.logger, err, "add project member")
		return
	}

	respond(w, h.logger, http.StatusCreated, member)
}

// RemoveMember handles DELETE /api/projects/{id}/members/{userId}
func (h *ProjectsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.projectService.RemoveMember(r.Context(), projectID, userID); err != nil {
		WriteServiceError(w, h.logger, err, "remove project member")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
