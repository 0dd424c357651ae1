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

const maxNameLength = 200

// ProjectInput carries the editable project fields. On update, nil fields are left unchanged.
type ProjectInput struct {
	Name        *string
	Description *string
	Status      *string
	StartDate   *time.Time
	EndDate     *time.Time
}

// ProjectService defines the interface for project operations.
type ProjectService interface {
	// Create makes the caller the project's lead.
	Create(ctx context.Context, in ProjectInput) (*models.Project, error)
	// GetByID returns the project with its members.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// List returns every project for admins and the caller's projects otherwise.
	List(ctx context.Context) ([]*models.Project, error)
	Update(ctx context.Context, id uuid.UUID, in ProjectInput) (*models.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AddMember(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) (*models.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
}

type projectService struct {
	projects repositories.ProjectRepository
	access   ProjectAccess
	audit    AuditService
	logger   *zap.Logger
}

// NewProjectService creates a new project service.
func NewProjectService(
	projects repositories.ProjectRepository,
	access ProjectAccess,
	audit AuditService,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projects: projects,
		access:   access,
		audit:    audit,
		logger:   logger.Named("project-service"),
	}
}

// Ensure projectService implements ProjectService at compile time.
var _ ProjectService = (*projectService)(nil)

func (s *projectService) Create(ctx context.Context, in ProjectInput) (*models.Project, error) {
	p, err := requireRole(ctx, auth.OpProjectCreate)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		Status:    models.ProjectStatusPlanning,
		CreatedBy: p.UserID,
	}
	if in.Name == nil {
		return nil, apperrors.NewValidationError("name", "is required")
	}
	if err := applyProjectInput(project, in); err != nil {
		return nil, err
	}

	if err := s.projects.Create(ctx, project, p.UserID); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionCreateProject,
		Description: fmt.Sprintf("Project %q created", project.Name),
		EntityType:  models.AuditEntityProject,
		EntityID:    project.ID,
		NewValue:    projectSnapshot(project),
	})
	return project, nil
}

func (s *projectService) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.projects.ListMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	project.Members = members
	return project, nil
}

func (s *projectService) List(ctx context.Context) ([]*models.Project, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if p.Role == models.RoleAdmin {
		return s.projects.List(ctx, nil)
	}
	return s.projects.List(ctx, &p.UserID)
}

func (s *projectService) Update(ctx context.Context, id uuid.UUID, in ProjectInput) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.AuthorizeLead(ctx, auth.OpProjectUpdate, id); err != nil {
		return nil, err
	}

	before := projectSnapshot(project)
	if err := applyProjectInput(project, in); err != nil {
		return nil, err
	}
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionUpdateProject,
		Description: fmt.Sprintf("Project %q updated", project.Name),
		EntityType:  models.AuditEntityProject,
		EntityID:    project.ID,
		OldValue:    before,
		NewValue:    projectSnapshot(project),
	})
	return project, nil
}

func (s *projectService) Delete(ctx context.Context, id uuid.UUID) error {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.access.AuthorizeLead(ctx, auth.OpProjectDelete, id); err != nil {
		return err
	}

	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionDeleteProject,
		Description: fmt.Sprintf("Project %q deleted", project.Name),
		EntityType:  models.AuditEntityProject,
		EntityID:    id,
		OldValue:    projectSnapshot(project),
	})
	return nil
}

func (s *projectService) AddMember(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) (*models.ProjectMember, error) {
	if !models.IsValidProjectRole(string(role)) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, role)
	}
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.access.AuthorizeLead(ctx, auth.OpProjectMembers, projectID); err != nil {
		return nil, err
	}

	member := &models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
	if err := s.projects.UpsertMember(ctx, member); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionAddProjectMember,
		Description: fmt.Sprintf("User added to project as %s", role),
		EntityType:  models.AuditEntityProject,
		EntityID:    projectID,
		NewValue:    models.Snapshot{"userId": userID, "role": role},
	})
	return member, nil
}

func (s *projectService) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	if _, err := s.access.AuthorizeLead(ctx, auth.OpProjectMembers, projectID); err != nil {
		return err
	}

	member, err := s.projects.GetMember(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if err := s.projects.RemoveMember(ctx, projectID, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionRemoveProjectMember,
		Description: "User removed from project",
		EntityType:  models.AuditEntityProject,
		EntityID:    projectID,
		OldValue:    models.Snapshot{"userId": userID, "role": member.Role},
	})
	return nil
}

func applyProjectInput(project *models.Project, in ProjectInput) error {
	verr := &apperrors.ValidationError{}
	if in.Name != nil {
		project.Name = strings.TrimSpace(*in.Name)
		if project.Name == "" || utf8.RuneCountInString(project.Name) > maxNameLength {
			verr.Add("name", fmt.Sprintf("must be between 1 and %d characters", maxNameLength))
		}
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		if !models.IsValidProjectStatus(*in.Status) {
			verr.Add("status", "must be one of "+strings.Join(models.ValidProjectStatuses, ", "))
		}
		project.Status = *in.Status
	}
	if in.StartDate != nil {
		project.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		project.EndDate = in.EndDate
	}
	if project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(*project.StartDate) {
		verr.Add("endDate", "must not be before startDate")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func projectSnapshot(p *models.Project) models.Snapshot {
	return models.Snapshot{
		"name":        p.Name,
		"description": p.Description,
		"status":      p.Status,
		"startDate":   p.StartDate,
		"endDate":     p.EndDate,
	}
}
