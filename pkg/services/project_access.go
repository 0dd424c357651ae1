package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
)

// ProjectAccess evaluates project-scoped ownership for the policy table.
// Project rights come from the caller's ProjectMember role, never their global role.
type ProjectAccess interface {
	// MemberRole returns the caller's role in the project, or "" if not a member.
	MemberRole(ctx context.Context, projectID, userID uuid.UUID) (models.ProjectRole, error)

	// AuthorizeLead allows op for admins, the project lead, and any of owners.
	AuthorizeLead(ctx context.Context, op auth.Operation, projectID uuid.UUID, owners ...uuid.UUID) (*auth.Principal, error)

	// AuthorizeMember allows op for admins and any member of the project.
	AuthorizeMember(ctx context.Context, op auth.Operation, projectID uuid.UUID) (*auth.Principal, error)
}

type projectAccess struct {
	projects repositories.ProjectRepository
}

// NewProjectAccess creates a ProjectAccess.
func NewProjectAccess(projects repositories.ProjectRepository) ProjectAccess {
	return &projectAccess{projects: projects}
}

var _ ProjectAccess = (*projectAccess)(nil)

func (a *projectAccess) MemberRole(ctx context.Context, projectID, userID uuid.UUID) (models.ProjectRole, error) {
	member, err := a.projects.GetMember(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return member.Role, nil
}

func (a *projectAccess) AuthorizeLead(ctx context.Context, op auth.Operation, projectID uuid.UUID, owners ...uuid.UUID) (*auth.Principal, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if auth.RoleAllowed(op, p.Role) {
		return p, nil
	}

	isOwner := false
	for _, id := range owners {
		if id == p.UserID {
			isOwner = true
			break
		}
	}
	if !isOwner {
		role, err := a.MemberRole(ctx, projectID, p.UserID)
		if err != nil {
			return nil, err
		}
		isOwner = role == models.ProjectRoleLead
	}

	if !auth.Allowed(op, p.Role, isOwner) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrForbidden, op)
	}
	return p, nil
}

func (a *projectAccess) AuthorizeMember(ctx context.Context, op auth.Operation, projectID uuid.UUID) (*auth.Principal, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if auth.RoleAllowed(op, p.Role) {
		return p, nil
	}

	role, err := a.MemberRole(ctx, projectID, p.UserID)
	if err != nil {
		return nil, err
	}
	// Observers may read but not contribute.
	isMember := role != "" && role != models.ProjectRoleObserver

	if !auth.Allowed(op, p.Role, isMember) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrForbidden, op)
	}
	return p, nil
}
