package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/services"
)

// LogsHandler exposes the audit ledger to administrators.
type LogsHandler struct {
	auditService services.AuditService
	logger       *zap.Logger
}

// NewLogsHandler creates a new audit log handler.
func NewLogsHandler(auditService services.AuditService, logger *zap.Logger) *LogsHandler {
	return &LogsHandler{auditService: auditService, logger: logger}
}

// RegisterRoutes registers the audit log routes. All of them are admin only.
func (h *LogsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	adminOnly := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(auth.RequireCapability(auth.OpLogRead)(next))
	}

	mux.HandleFunc("GET /api/logs", adminOnly(h.Recent))
	mux.HandleFunc("GET /api/logs/users/{id}", adminOnly(h.ForUser))
	mux.HandleFunc("GET /api/logs/entities/{entityType}/{entityId}", adminOnly(h.ForEntity))
	mux.HandleFunc("GET /api/logs/actions/{action}", adminOnly(h.ByAction))
	mux.HandleFunc("GET /api/logs/period", adminOnly(h.InPeriod))
}

// Recent handles GET /api/logs?limit=
func (h *LogsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	logs, err := h.auditService.RecentLogs(r.Context(), limit)
	h.respondLogs(w, logs, err, "list audit logs")
}

// ForUser handles GET /api/logs/users/{id}?limit=
func (h *LogsHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	logs, err := h.auditService.LogsForUser(r.Context(), userID, limit)
	h.respondLogs(w, logs, err, "list user audit logs")
}

// ForEntity handles GET /api/logs/entities/{entityType}/{entityId}
// The full history of one entity, oldest first.
func (h *LogsHandler) ForEntity(w http.ResponseWriter, r *http.Request) {
	entityID, ok := parseUUID(w, r, "entityId", "invalid_entity_id", "Invalid entity ID format", h.logger)
	if !ok {
		return
	}

	logs, err := h.auditService.LogsForEntity(r.Context(), r.PathValue("entityType"), entityID)
	h.respondLogs(w, logs, err, "list entity audit logs")
}

// ByAction handles GET /api/logs/actions/{action}?limit=
func (h *LogsHandler) ByAction(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	logs, err := h.auditService.LogsByAction(r.Context(), r.PathValue("action"), limit)
	h.respondLogs(w, logs, err, "list audit logs by action")
}

// InPeriod handles GET /api/logs/period?start=&end=
// Both bounds are RFC 3339 timestamps and inclusive.
func (h *LogsHandler) InPeriod(w http.ResponseWriter, r *http.Request) {
	start, ok := h.parseTime(w, r, "start")
	if !ok {
		return
	}
	end, ok := h.parseTime(w, r, "end")
	if !ok {
		return
	}

	logs, err := h.auditService.LogsInPeriod(r.Context(), start, end)
	h.respondLogs(w, logs, err, "list audit logs in period")
}

func (h *LogsHandler) respondLogs(w http.ResponseWriter, logs []*models.AuditLog, err error, action string) {
	if err != nil {
		WriteServiceError(w, h.logger, err, action)
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	respond(w, h.logger, http.StatusOK, logs)
}

// parseLimit reads the optional limit query parameter. Zero lets the service pick its default.
func (h *LogsHandler) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		h.writeError(w, "invalid_limit", "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

func (h *LogsHandler) parseTime(w http.ResponseWriter, r *http.Request, param string) (time.Time, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		h.writeError(w, "invalid_"+param, param+" is required")
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		h.writeError(w, "invalid_"+param, param+" must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

func (h *LogsHandler) writeError(w http.ResponseWriter, code, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
