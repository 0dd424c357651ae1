package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
)

// maxJSONBodyBytes bounds JSON request bodies. Uploads use their own limit.
const maxJSONBodyBytes = 1 << 20

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return writeEnvelope(w, statusCode, APIResponse{Error: errorCode, Message: message})
}

// WriteJSON writes data in the success envelope and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	return writeEnvelope(w, statusCode, APIResponse{Success: true, Data: data})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, body APIResponse) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(body)
}

// serviceErrorStatus maps a service error to its status code and error code.
func serviceErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrInvalidEntityType):
		return http.StatusBadRequest, "invalid_entity_type"
	case errors.Is(err, apperrors.ErrInvalidReference):
		return http.StatusBadRequest, "invalid_reference"
	case errors.Is(err, apperrors.ErrInvalidRole):
		return http.StatusBadRequest, "invalid_role"
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteServiceError maps err onto the error taxonomy and writes it.
// Unexpected errors are logged and reported as "failed to <action>" without detail.
func WriteServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	status, code := serviceErrorStatus(err)

	body := APIResponse{Error: code, Message: err.Error()}
	switch status {
	case http.StatusInternalServerError:
		logger.Error("Failed to "+action, zap.Error(err))
		body.Message = "Failed to " + action
	case http.StatusUnauthorized:
		if code == "unauthorized" {
			body.Message = "Authentication required"
		} else {
			body.Message = "Invalid login or password"
		}
	}
	body.Fields = apperrors.ValidationFields(err)

	if err := writeEnvelope(w, status, body); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// respond writes data with status and logs encoding failures.
func respond(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	if err := WriteJSON(w, status, data); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeJSON reads the request body into v. On failure it writes a 400 and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, logger *zap.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

// parseUUID extracts and validates a UUID path parameter.
// Returns uuid.Nil and false after writing a 400 when it is malformed.
func parseUUID(w http.ResponseWriter, r *http.Request, param, errorCode, message string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(param))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, message); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// ParseID extracts and validates the {id} path parameter.
func ParseID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_id", "Invalid ID format", logger)
}

// ParseUserID extracts and validates the {userId} path parameter.
func ParseUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "userId", "invalid_user_id", "Invalid user ID format", logger)
}
