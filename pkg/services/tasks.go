package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
)

// TaskInput carries the editable task fields. On update, nil fields are left unchanged.
type TaskInput struct {
	Title       *string
	Description *string
	Priority    *string
	AssigneeID  *uuid.UUID
	DueDate     *time.Time
	// ClearAssignee unassigns the task on update.
	ClearAssignee bool
}

// TaskService defines the interface for task operations.
type TaskService interface {
	Create(ctx context.Context, projectID uuid.UUID, in TaskInput) (*models.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Task, error)
	Update(ctx context.Context, id uuid.UUID, in TaskInput) (*models.Task, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type taskService struct {
	tasks    repositories.TaskRepository
	projects repositories.ProjectRepository
	access   ProjectAccess
	audit    AuditService
	logger   *zap.Logger
}

// NewTaskService creates a new task service.
func NewTaskService(
	tasks repositories.TaskRepository,
	projects repositories.ProjectRepository,
	access ProjectAccess,
	audit AuditService,
	logger *zap.Logger,
) TaskService {
	return &taskService{
		tasks:    tasks,
		projects: projects,
		access:   access,
		audit:    audit,
		logger:   logger.Named("task-service"),
	}
}

var _ TaskService = (*taskService)(nil)

func (s *taskService) Create(ctx context.Context, projectID uuid.UUID, in TaskInput) (*models.Task, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	p, err := s.access.AuthorizeMember(ctx, auth.OpTaskCreate, projectID)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ProjectID: projectID,
		Status:    models.TaskStatusTodo,
		Priority:  models.TaskPriorityMedium,
		CreatedBy: p.UserID,
	}
	if in.Title == nil {
		return nil, apperrors.NewValidationError("title", "is required")
	}
	if err := s.applyInput(ctx, task, in); err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionCreateTask,
		Description: fmt.Sprintf("Task %q created", task.Title),
		EntityType:  models.AuditEntityTask,
		EntityID:    task.ID,
		NewValue:    taskSnapshot(task),
	})
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

func (s *taskService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Task, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.tasks.ListByProject(ctx, projectID)
}

func (s *taskService) Update(ctx context.Context, id uuid.UUID, in TaskInput) (*models.Task, error) {
	task, err := s.authorizeEdit(ctx, id)
	if err != nil {
		return nil, err
	}

	before := taskSnapshot(task)
	if err := s.applyInput(ctx, task, in); err != nil {
		return nil, err
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionUpdateTask,
		Description: fmt.Sprintf("Task %q updated", task.Title),
		EntityType:  models.AuditEntityTask,
		EntityID:    task.ID,
		OldValue:    before,
		NewValue:    taskSnapshot(task),
	})
	return task, nil
}

func (s *taskService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Task, error) {
	if !models.IsValidTaskStatus(status) {
		return nil, apperrors.NewValidationError("status", "must be one of todo, in_progress, review, done")
	}

	task, err := s.authorizeEdit(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status == status {
		return task, nil
	}

	old := task.Status
	if err := s.tasks.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	task.Status = status

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionUpdateTaskStatus,
		Description: fmt.Sprintf("Task %q moved from %s to %s", task.Title, old, status),
		EntityType:  models.AuditEntityTask,
		EntityID:    task.ID,
		OldValue:    models.Snapshot{"status": old},
		NewValue:    models.Snapshot{"status": status},
	})
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, id uuid.UUID) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.access.AuthorizeLead(ctx, auth.OpTaskDelete, task.ProjectID, task.CreatedBy); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionDeleteTask,
		Description: fmt.Sprintf("Task %q deleted", task.Title),
		EntityType:  models.AuditEntityTask,
		EntityID:    id,
		OldValue:    taskSnapshot(task),
	})
	return nil
}

// authorizeEdit loads the task and checks the caller is its creator,
// assignee, the project lead or an admin.
func (s *taskService) authorizeEdit(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	owners := []uuid.UUID{task.CreatedBy}
	if task.AssigneeID != nil {
		owners = append(owners, *task.AssigneeID)
	}
	if _, err := s.access.AuthorizeLead(ctx, auth.OpTaskUpdate, task.ProjectID, owners...); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) applyInput(ctx context.Context, task *models.Task, in TaskInput) error {
	verr := &apperrors.ValidationError{}
	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
		if task.Title == "" || utf8.RuneCountInString(task.Title) > maxNameLength {
			verr.Add("title", fmt.Sprintf("must be between 1 and %d characters", maxNameLength))
		}
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		if !models.IsValidTaskPriority(*in.Priority) {
			verr.Add("priority", "must be one of low, medium, high, urgent")
		}
		task.Priority = *in.Priority
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	}
	switch {
	case in.ClearAssignee:
		task.AssigneeID = nil
	case in.AssigneeID != nil:
		role, err := s.access.MemberRole(ctx, task.ProjectID, *in.AssigneeID)
		if err != nil {
			return err
		}
		if role == "" {
			verr.Add("assigneeId", "must be a member of the project")
		}
		task.AssigneeID = in.AssigneeID
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func taskSnapshot(t *models.Task) models.Snapshot {
	return models.Snapshot{
		"title":      t.Title,
		"status":     t.Status,
		"priority":   t.Priority,
		"assigneeId": t.AssigneeID,
		"dueDate":    t.DueDate,
	}
}
