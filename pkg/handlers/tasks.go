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

// TaskRequest is the request body for creating or updating a task.
// ProjectID is only read on create.
type TaskRequest struct {
	ProjectID     uuid.UUID  `json:"projectId"`
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Priority      *string    `json:"priority,omitempty"`
	AssigneeID    *uuid.UUID `json:"assigneeId,omitempty"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	ClearAssignee bool       `json:"clearAssignee,omitempty"`
}

func (req TaskRequest) input() services.TaskInput {
	return services.TaskInput{
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		AssigneeID:    req.AssigneeID,
		DueDate:       req.DueDate,
		ClearAssignee: req.ClearAssignee,
	}
}

// TaskStatusRequest is the request body for PATCH /api/tasks/{id}/status.
type TaskStatusRequest struct {
	Status string `json:"status"`
}

// TasksHandler handles task endpoints.
type TasksHandler struct {
	taskService services.TaskService
	logger      *zap.Logger
}

// NewTasksHandler creates a new tasks handler.
func NewTasksHandler(taskService services.TaskService, logger *zap.Logger) *TasksHandler {
	return &TasksHandler{taskService: taskService, logger: logger}
}

// RegisterRoutes registers the task routes on the given mux.
func (h *TasksHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/tasks", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/projects/{id}/tasks", authMiddleware.RequireAuth(h.ListByProject))
	mux.HandleFunc("GET /api/tasks/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/tasks/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("PATCH /api/tasks/{id}/status", authMiddleware.RequireAuth(h.UpdateStatus))
	mux.HandleFunc("DELETE /api/tasks/{id}", authMiddleware.RequireAuth(h.Delete))
}

// Create handles POST /api/tasks
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	task, err := h.taskService.Create(r.Context(), req.ProjectID, req.input())
	if err != nil {
		WriteServiceError(w, h.logger, err, "create task")
		return
	}

	respond(w, h.logger, http.StatusCreated, task)
}

// ListByProject handles GET /api/projects/{id}/tasks
func (h *TasksHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	tasks, err := h.taskService.ListByProject(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "list tasks")
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}

	respond(w, h.logger, http.StatusOK, tasks)
}

// Get handles GET /api/tasks/{id}
func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	task, err := h.taskService.GetByID(r.Context(), taskID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get task")
		return
	}

	respond(w, h.logger, http.StatusOK, task)
}

// Update handles PUT /api/tasks/{id}
func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req TaskRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	task, err := h.taskService.Update(r.Context(), taskID, req.input())
	if err != nil {
		WriteServiceError(w, h.logger, err, "update task")
		return
	}

	respond(w, h.logger, http.StatusOK, task)
}

// UpdateStatus handles PATCH /api/tasks/{id}/status
func (h *TasksHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req TaskStatusRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	task, err := h.taskService.UpdateStatus(r.Context(), taskID, req.Status)
	if err != nil {
		WriteServiceError(w, h.logger, err, "update task status")
		return
	}

	respond(w, h.logger, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/{id}
func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), taskID); err != nil {
		WriteServiceError(w, h.logger, err, "delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
