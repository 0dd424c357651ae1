package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/services"
)

// TeamRequest is the request body for creating or updating a team.
type TeamRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// InviteRequest is the request body for POST /api/teams/{id}/invitations.
type InviteRequest struct {
	UserID uuid.UUID `json:"userId"`
}

// TeamsHandler handles teams and their invitations.
type TeamsHandler struct {
	teamService services.TeamService
	logger      *zap.Logger
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(teamService services.TeamService, logger *zap.Logger) *TeamsHandler {
	return &TeamsHandler{teamService: teamService, logger: logger}
}

// RegisterRoutes registers team and invitation routes on the given mux.
func (h *TeamsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/teams", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/teams",
		authMiddleware.RequireAuth(auth.RequireCapability(auth.OpTeamCreate)(h.Create)))
	mux.HandleFunc("GET /api/teams/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/teams/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/teams/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("POST /api/teams/{id}/invitations", authMiddleware.RequireAuth(h.Invite))
	mux.HandleFunc("DELETE /api/teams/{id}/members/{userId}", authMiddleware.RequireAuth(h.RemoveMember))

	mux.HandleFunc("GET /api/invitations", authMiddleware.RequireAuth(h.PendingInvitations))
	mux.HandleFunc("POST /api/invitations/{id}/accept", authMiddleware.RequireAuth(h.Accept))
	mux.HandleFunc("POST /api/invitations/{id}/decline", authMiddleware.RequireAuth(h.Decline))
	mux.HandleFunc("POST /api/invitations/{id}/cancel", authMiddleware.RequireAuth(h.Cancel))
}

// List handles GET /api/teams
func (h *TeamsHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teamService.List(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err, "list teams")
		return
	}
	if teams == nil {
		teams = []*models.Team{}
	}

	respond(w, h.logger, http.StatusOK, teams)
}

// Create handles POST /api/teams
// The caller becomes the team manager.
func (h *TeamsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req TeamRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	team, err := h.teamService.Create(r.Context(), services.TeamInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err, "create team")
		return
	}

	respond(w, h.logger, http.StatusCreated, team)
}

// Get handles GET /api/teams/{id}
func (h *TeamsHandler) Get(w http.ResponseWriter, r *http.Request) {
	teamID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	team, err := h.teamService.GetByID(r.Context(), teamID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get team")
		return
	}

	respond(w, h.logger, http.StatusOK, team)
}

// Update handles PUT /api/teams/{id}
func (h *TeamsHandler) Update(w http.ResponseWriter, r *http.Request) {
	teamID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req TeamRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	team, err := h.teamService.Update(r.Context(), teamID, services.TeamInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err, "update team")
		return
	}

	respond(w, h.logger, http.StatusOK, team)
}

// Delete handles DELETE /api/teams/{id}
func (h *TeamsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	teamID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.teamService.Delete(r.Context(), teamID); err != nil {
		WriteServiceError(w, h.logger, err, "delete team")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Invite handles POST /api/teams/{id}/invitations
func (h *TeamsHandler) Invite(w http.ResponseWriter, r *http.Request) {
	teamID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req InviteRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.UserID == uuid.Nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_user_id", "userId is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	inv, err := h.teamService.Invite(r.Context(), teamID, req.UserID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "invite team member")
		return
	}

	respond(w, h.logger, http.StatusCreated, inv)
}

// RemoveMember handles DELETE /api/teams/{id}/members/{userId}
func (h *TeamsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.teamService.RemoveMember(r.Context(), teamID, userID); err != nil {
		WriteServiceError(w, h.logger, err, "remove team member")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PendingInvitations handles GET /api/invitations
// Lists the caller's own pending invitations.
func (h *TeamsHandler) PendingInvitations(w http.ResponseWriter, r *http.Request) {
	invs, err := h.teamService.PendingInvitations(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err, "list invitations")
		return
	}
	if invs == nil {
		invs = []*models.TeamInvitation{}
	}

	respond(w, h.logger, http.StatusOK, invs)
}

// Accept handles POST /api/invitations/{id}/accept
func (h *TeamsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.teamService.Accept, "accept invitation")
}

// Decline handles POST /api/invitations/{id}/decline
func (h *TeamsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.teamService.Decline, "decline invitation")
}

// Cancel handles POST /api/invitations/{id}/cancel
func (h *TeamsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.teamService.Cancel, "cancel invitation")
}

type invitationTransition func(ctx context.Context, invitationID uuid.UUID) (*models.TeamInvitation, error)

func (h *TeamsHandler) transition(w http.ResponseWriter, r *http.Request, fn invitationTransition, action string) {
	invitationID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	inv, err := fn(r.Context(), invitationID)
	if err != nil {
		WriteServiceError(w, h.logger, err, action)
		return
	}

	respond(w, h.logger, http.StatusOK, inv)
}
