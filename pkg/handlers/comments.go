package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/services"
)

// CreateCommentRequest is the request body for POST /api/comments.
type CreateCommentRequest struct {
	EntityType string     `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Comment    string     `json:"comment"`
	ParentID   *uuid.UUID `json:"parentId,omitempty"`
}

// UpdateCommentRequest is the request body for PUT /api/comments/{id}.
type UpdateCommentRequest struct {
	Comment string `json:"comment"`
}

// CommentsHandler handles comment thread endpoints.
type CommentsHandler struct {
	commentService services.CommentService
	logger         *zap.Logger
}

// NewCommentsHandler creates a new comments handler.
func NewCommentsHandler(commentService services.CommentService, logger *zap.Logger) *CommentsHandler {
	return &CommentsHandler{commentService: commentService, logger: logger}
}

// RegisterRoutes registers the comment routes on the given mux.
func (h *CommentsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/comments", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/comments/{entityType}/{entityId}", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("PUT /api/comments/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/comments/{id}", authMiddleware.RequireAuth(h.Delete))
}

// Create handles POST /api/comments
func (h *CommentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err, "create comment")
		return
	}

	var req CreateCommentRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	// The kind is checked before the ID so an unknown kind always reports invalid_entity_type.
	if _, err := models.ParseEntityType(req.EntityType); err != nil {
		WriteServiceError(w, h.logger, err, "create comment")
		return
	}
	entityID, err := uuid.Parse(req.EntityID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_entity_id", "Invalid entity ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	comment, err := h.commentService.Create(r.Context(), services.CreateCommentInput{
		EntityType: req.EntityType,
		EntityID:   entityID,
		AuthorID:   p.UserID,
		Body:       req.Comment,
		ParentID:   req.ParentID,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err, "create comment")
		return
	}

	respond(w, h.logger, http.StatusCreated, comment)
}

// List handles GET /api/comments/{entityType}/{entityId}
// Returns top-level comments newest first, each with its replies oldest first.
func (h *CommentsHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := models.ParseEntityType(r.PathValue("entityType")); err != nil {
		WriteServiceError(w, h.logger, err, "list comments")
		return
	}
	entityID, ok := parseUUID(w, r, "entityId", "invalid_entity_id", "Invalid entity ID format", h.logger)
	if !ok {
		return
	}

	list, err := h.commentService.List(r.Context(), r.PathValue("entityType"), entityID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "list comments")
		return
	}

	respond(w, h.logger, http.StatusOK, list)
}

// Update handles PUT /api/comments/{id}
func (h *CommentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err, "update comment")
		return
	}
	commentID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateCommentRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	comment, err := h.commentService.Update(r.Context(), commentID, p.UserID, req.Comment)
	if err != nil {
		WriteServiceError(w, h.logger, err, "update comment")
		return
	}

	respond(w, h.logger, http.StatusOK, comment)
}

// Delete handles DELETE /api/comments/{id}
// Removes the comment and every reply under it.
func (h *CommentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err, "delete comment")
		return
	}
	commentID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.commentService.Delete(r.Context(), commentID, p.UserID, p.Role); err != nil {
		WriteServiceError(w, h.logger, err, "delete comment")
		return
	}

	respond(w, h.logger, http.StatusOK, map[string]string{"message": "Comment deleted"})
}
