package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

func TestTasksHandler_Create(t *testing.T) {
	svc := newTestServices()
	mux := newTestMux(svc, uuid.New(), models.RoleConsultant)
	projectID := uuid.New()

	rec, _ := serve(t, mux, http.MethodPost, "/api/tasks",
		fmt.Sprintf(`{"projectId":%q,"title":"Draft requirements","priority":"high"}`, projectID))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, projectID, svc.tasks.projectID)
}

func TestTasksHandler_UpdateStatus(t *testing.T) {
	svc := newTestServices()
	mux := newTestMux(svc, uuid.New(), models.RoleConsultant)

	rec, env := serve(t, mux, http.MethodPatch, "/api/tasks/"+uuid.NewString()+"/status", `{"status":"in_progress"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in_progress", svc.tasks.statusSeen)
	assert.Contains(t, string(env.Data), "in_progress")
}

func TestTasksHandler_UpdateStatusInvalid(t *testing.T) {
	svc := newTestServices()
	svc.tasks.err = apperrors.NewValidationError("status", "must be one of todo, in_progress, review, done")
	mux := newTestMux(svc, uuid.New(), models.RoleConsultant)

	rec, env := serve(t, mux, http.MethodPatch, "/api/tasks/"+uuid.NewString()+"/status", `{"status":"blocked"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Fields, "status")
}

func TestTasksHandler_ListByProject(t *testing.T) {
	mux := newTestMux(newTestServices(), uuid.New(), models.RoleConsultant)

	rec, env := serve(t, mux, http.MethodGet, "/api/projects/"+uuid.NewString()+"/tasks", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestTasksHandler_DeleteForbidden(t *testing.T) {
	svc := newTestServices()
	svc.tasks.err = apperrors.ErrForbidden
	mux := newTestMux(svc, uuid.New(), models.RoleConsultant)

	rec, _ := serve(t, mux, http.MethodDelete, "/api/tasks/"+uuid.NewString(), "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
