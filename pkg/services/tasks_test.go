package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

type workFixture struct {
	projects *mockProjectRepository
	access   ProjectAccess
	audit    *mockAuditRepository
	auditSvc AuditService

	lead, member, observer uuid.UUID
	projectID              uuid.UUID
}

// newWorkFixture seeds one project with a lead, a member and an observer.
func newWorkFixture(t *testing.T) *workFixture {
	t.Helper()
	f := &workFixture{
		projects: newMockProjectRepository(),
		audit:    &mockAuditRepository{},
		lead:     uuid.New(),
		member:   uuid.New(),
		observer: uuid.New(),
	}
	f.access = NewProjectAccess(f.projects)
	f.auditSvc = NewAuditService(f.audit, zap.NewNop())
	f.projectID = f.projects.seed(f.lead)

	ctx := context.Background()
	require.NoError(t, f.projects.UpsertMember(ctx, &models.ProjectMember{ProjectID: f.projectID, UserID: f.member, Role: models.ProjectRoleMember}))
	require.NoError(t, f.projects.UpsertMember(ctx, &models.ProjectMember{ProjectID: f.projectID, UserID: f.observer, Role: models.ProjectRoleObserver}))
	return f
}

func (f *workFixture) taskService() (TaskService, *mockTaskRepository) {
	repo := newMockTaskRepository()
	return NewTaskService(repo, f.projects, f.access, f.auditSvc, zap.NewNop()), repo
}

func TestTaskService_Create(t *testing.T) {
	f := newWorkFixture(t)
	svc, _ := f.taskService()

	task, err := svc.Create(asCaller(f.member, models.RoleConsultant), f.projectID, TaskInput{
		Title:      strPtr("Draft budget"),
		AssigneeID: &f.lead,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusTodo, task.Status)
	assert.Equal(t, models.TaskPriorityMedium, task.Priority)
	assert.Equal(t, f.member, task.CreatedBy)

	_, err = svc.Create(asCaller(f.observer, models.RoleConsultant), f.projectID, TaskInput{Title: strPtr("Nope")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "observers cannot create tasks")

	_, err = svc.Create(asCaller(uuid.New(), models.RoleProjectManager), f.projectID, TaskInput{Title: strPtr("Nope")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Create(asCaller(uuid.New(), models.RoleAdmin), uuid.New(), TaskInput{Title: strPtr("Nope")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTaskService_Create_Validation(t *testing.T) {
	f := newWorkFixture(t)
	svc, _ := f.taskService()
	outsider := uuid.New()

	_, err := svc.Create(asCaller(f.lead, models.RoleConsultant), f.projectID, TaskInput{
		Title:      strPtr(" "),
		Priority:   strPtr("critical"),
		AssigneeID: &outsider,
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	fields := apperrors.ValidationFields(err)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "priority")
	assert.Contains(t, fields, "assigneeId")
}

func TestTaskService_UpdateStatus_Rights(t *testing.T) {
	f := newWorkFixture(t)
	svc, _ := f.taskService()
	assignee := f.observer

	task, err := svc.Create(asCaller(f.lead, models.RoleConsultant), f.projectID, TaskInput{
		Title:      strPtr("Review contract"),
		AssigneeID: &assignee,
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		ctx     context.Context
		wantErr error
	}{
		{"other member", asCaller(f.member, models.RoleConsultant), apperrors.ErrForbidden},
		{"assignee", asCaller(assignee, models.RoleConsultant), nil},
		{"lead", asCaller(f.lead, models.RoleConsultant), nil},
		{"admin", asCaller(uuid.New(), models.RoleAdmin), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateStatus(tt.ctx, task.ID, models.TaskStatusReview)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	_, err = svc.UpdateStatus(asCaller(f.lead, models.RoleConsultant), task.ID, "blocked")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	got, err := svc.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusReview, got.Status)

	// Only the first transition changes anything; repeats are no-ops.
	assert.Equal(t, []string{models.ActionCreateTask, models.ActionUpdateTaskStatus}, f.audit.actions())
}

func TestTaskService_UpdateAndDelete(t *testing.T) {
	f := newWorkFixture(t)
	svc, repo := f.taskService()

	task, err := svc.Create(asCaller(f.member, models.RoleConsultant), f.projectID, TaskInput{Title: strPtr("Order supplies")})
	require.NoError(t, err)

	updated, err := svc.Update(asCaller(f.member, models.RoleConsultant), task.ID, TaskInput{
		Priority:   strPtr(models.TaskPriorityUrgent),
		AssigneeID: &f.member,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskPriorityUrgent, updated.Priority)
	require.NotNil(t, updated.AssigneeID)

	cleared, err := svc.Update(asCaller(f.lead, models.RoleConsultant), task.ID, TaskInput{ClearAssignee: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.AssigneeID)

	err = svc.Delete(asCaller(f.observer, models.RoleConsultant), task.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, svc.Delete(asCaller(f.lead, models.RoleConsultant), task.ID))
	assert.Empty(t, repo.tasks)

	last := f.audit.entries[len(f.audit.entries)-1]
	assert.Equal(t, models.ActionDeleteTask, last.Action)
	assert.Equal(t, "Order supplies", last.OldValue["title"])
}
