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

// MeetingRequest is the request body for creating or updating a meeting.
// ProjectID is only read on create.
type MeetingRequest struct {
	ProjectID   uuid.UUID  `json:"projectId"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
}

func (req MeetingRequest) input() services.MeetingInput {
	return services.MeetingInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
}

// MeetingsHandler handles meeting endpoints.
type MeetingsHandler struct {
	meetingService services.MeetingService
	logger         *zap.Logger
}

// NewMeetingsHandler creates a new meetings handler.
func NewMeetingsHandler(meetingService services.MeetingService, logger *zap.Logger) *MeetingsHandler {
	return &MeetingsHandler{meetingService: meetingService, logger: logger}
}

// RegisterRoutes registers the meeting routes on the given mux.
func (h *MeetingsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/meetings", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/projects/{id}/meetings", authMiddleware.RequireAuth(h.ListByProject))
	mux.HandleFunc("GET /api/meetings/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/meetings/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/meetings/{id}", authMiddleware.RequireAuth(h.Delete))
}

// Create handles POST /api/meetings
func (h *MeetingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req MeetingRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	meeting, err := h.meetingService.Create(r.Context(), req.ProjectID, req.input())
	if err != nil {
		WriteServiceError(w, h.logger, err, "create meeting")
		return
	}

	respond(w, h.logger, http.StatusCreated, meeting)
}

// ListByProject handles GET /api/projects/{id}/meetings
// Meetings are returned in start time order.
func (h *MeetingsHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	meetings, err := h.meetingService.ListByProject(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "list meetings")
		return
	}
	if meetings == nil {
		meetings = []*models.Meeting{}
	}

	respond(w, h.logger, http.StatusOK, meetings)
}

// Get handles GET /api/meetings/{id}
func (h *MeetingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	meeting, err := h.meetingService.GetByID(r.Context(), meetingID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get meeting")
		return
	}

	respond(w, h.logger, http.StatusOK, meeting)
}

// Update handles PUT /api/meetings/{id}
func (h *MeetingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req MeetingRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	meeting, err := h.meetingService.Update(r.Context(), meetingID, req.input())
	if err != nil {
		WriteServiceError(w, h.logger, err, "update meeting")
		return
	}

	respond(w, h.logger, http.StatusOK, meeting)
}

// Delete handles DELETE /api/meetings/{id}
func (h *MeetingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.meetingService.Delete(r.Context(), meetingID); err != nil {
		WriteServiceError(w, h.logger, err, "delete meeting")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
