package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
)

// TeamInput carries the editable team fields. On update, nil fields are left unchanged.
type TeamInput struct {
	Name        *string
	Description *string
}

// TeamService defines the interface for teams and their invitation workflow.
type TeamService interface {
	// Create makes the caller the team's manager.
	Create(ctx context.Context, in TeamInput) (*models.Team, error)
	// GetByID returns the team with its members.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	List(ctx context.Context) ([]*models.Team, error)
	Update(ctx context.Context, id uuid.UUID, in TeamInput) (*models.Team, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error

	// Invite issues a pending invitation. Fails with ErrConflict if the user
	// is already a member or already holds a pending invitation.
	Invite(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamInvitation, error)
	// PendingInvitations returns the caller's pending invitations.
	PendingInvitations(ctx context.Context) ([]*models.TeamInvitation, error)
	Accept(ctx context.Context, invitationID uuid.UUID) (*models.TeamInvitation, error)
	Decline(ctx context.Context, invitationID uuid.UUID) (*models.TeamInvitation, error)
	Cancel(ctx context.Context, invitationID uuid.UUID) (*models.TeamInvitation, error)
}

type teamService struct {
	teams  repositories.TeamRepository
	audit  AuditService
	logger *zap.Logger
}

// NewTeamService creates a new team service.
func NewTeamService(teams repositories.TeamRepository, audit AuditService, logger *zap.Logger) TeamService {
	return &teamService{
		teams:  teams,
		audit:  audit,
		logger: logger.Named("team-service"),
	}
}

var _ TeamService = (*teamService)(nil)

func (s *teamService) Create(ctx context.Context, in TeamInput) (*models.Team, error) {
	p, err := requireRole(ctx, auth.OpTeamCreate)
	if err != nil {
		return nil, err
	}
	if in.Name == nil {
		return nil, apperrors.NewValidationError("name", "is required")
	}

	team := &models.Team{ManagerID: p.UserID}
	if err := applyTeamInput(team, in); err != nil {
		return nil, err
	}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionCreateTeam,
		Description: fmt.Sprintf("Team %q created", team.Name),
		EntityType:  models.AuditEntityTeam,
		EntityID:    team.ID,
		NewValue:    teamSnapshot(team),
	})
	return team, nil
}

func (s *teamService) GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	team, err := s.teams.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.teams.ListMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	team.Members = members
	return team, nil
}

func (s *teamService) List(ctx context.Context) ([]*models.Team, error) {
	return s.teams.List(ctx)
}

func (s *teamService) Update(ctx context.Context, id uuid.UUID, in TeamInput) (*models.Team, error) {
	team, _, err := s.authorizeManager(ctx, auth.OpTeamUpdate, id)
	if err != nil {
		return nil, err
	}

	before := teamSnapshot(team)
	if err := applyTeamInput(team, in); err != nil {
		return nil, err
	}
	if err := s.teams.Update(ctx, team); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionUpdateTeam,
		Description: fmt.Sprintf("Team %q updated", team.Name),
		EntityType:  models.AuditEntityTeam,
		EntityID:    team.ID,
		OldValue:    before,
		NewValue:    teamSnapshot(team),
	})
	return team, nil
}

func (s *teamService) Delete(ctx context.Context, id uuid.UUID) error {
	team, _, err := s.authorizeManager(ctx, auth.OpTeamDelete, id)
	if err != nil {
		return err
	}
	if err := s.teams.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionDeleteTeam,
		Description: fmt.Sprintf("Team %q deleted", team.Name),
		EntityType:  models.AuditEntityTeam,
		EntityID:    id,
		OldValue:    teamSnapshot(team),
	})
	return nil
}

func (s *teamService) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	if _, _, err := s.authorizeManager(ctx, auth.OpTeamRemoveMember, teamID); err != nil {
		return err
	}
	if err := s.teams.RemoveMember(ctx, teamID, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionRemoveTeamMember,
		Description: "User removed from team",
		EntityType:  models.AuditEntityTeam,
		EntityID:    teamID,
		OldValue:    models.Snapshot{"userId": userID},
	})
	return nil
}

func (s *teamService) Invite(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamInvitation, error) {
	_, p, err := s.authorizeManager(ctx, auth.OpTeamInvite, teamID)
	if err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, apperrors.NewValidationError("userId", "is required")
	}

	member, err := s.teams.IsMember(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, fmt.Errorf("%w: user is already a member of this team", apperrors.ErrConflict)
	}

	inv := &models.TeamInvitation{TeamID: teamID, UserID: userID, InvitedBy: p.UserID}
	purged, err := s.teams.CreateInvitation(ctx, inv)
	if err != nil {
		return nil, err
	}
	if purged > 0 {
		s.logger.Debug("Purged resolved invitations before re-invite",
			zap.String("team_id", teamID.String()),
			zap.String("user_id", userID.String()),
			zap.Int("purged", purged))
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionInviteTeamMember,
		Description: "User invited to team",
		EntityType:  models.AuditEntityInvitation,
		EntityID:    inv.ID,
		NewValue:    invitationSnapshot(inv),
	})
	return inv, nil
}

func (s *teamService) PendingInvitations(ctx context.Context) ([]*models.TeamInvitation, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	return s.teams.ListPendingForUser(ctx, p.UserID)
}

func (s *teamService) Accept(ctx context.Context, invitationID uuid.UUID) (*models.TeamInvitation, error) {
	if _, err := s.invitee(ctx, invitationID); err != nil {
		return nil, err
	}

	inv, member, err := s.teams.AcceptInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionAcceptInvitation,
		Description: "Team invitation accepted",
		EntityType:  models.AuditEntityInvitation,
		EntityID:    inv.ID,
		OldValue:    models.Snapshot{"status": models.InvitationPending},
		NewValue:    models.Snapshot{"status": inv.Status, "teamMemberId": member.ID},
	})
	return inv, nil
}

func (s *teamService) Decline(ctx context.Context, invitationID uuid.UUID) (*models.TeamInvitation, error) {
	if _, err := s.invitee(ctx, invitationID); err != nil {
		return nil, err
	}
	return s.resolve(ctx, invitationID, models.InvitationDeclined, models.ActionDeclineInvitation, "Team invitation declined")
}

func (s *teamService) Cancel(ctx context.Context, invitationID uuid.UUID) (*models.TeamInvitation, error) {
	inv, err := s.teams.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorizeManager(ctx, auth.OpTeamCancelInvite, inv.TeamID); err != nil {
		return nil, err
	}
	return s.resolve(ctx, invitationID, models.InvitationCancelled, models.ActionCancelInvitation, "Team invitation cancelled")
}

func (s *teamService) resolve(ctx context.Context, id uuid.UUID, status models.InvitationStatus, action, description string) (*models.TeamInvitation, error) {
	inv, err := s.teams.ResolveInvitation(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      action,
		Description: description,
		EntityType:  models.AuditEntityInvitation,
		EntityID:    inv.ID,
		OldValue:    models.Snapshot{"status": models.InvitationPending},
		NewValue:    models.Snapshot{"status": inv.Status},
	})
	return inv, nil
}

// invitee loads the invitation and requires the caller to be the invited user.
func (s *teamService) invitee(ctx context.Context, invitationID uuid.UUID) (*models.TeamInvitation, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := s.teams.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.UserID != p.UserID {
		return nil, fmt.Errorf("%w: invitation belongs to another user", apperrors.ErrForbidden)
	}
	return inv, nil
}

// authorizeManager loads the team and allows op for admins and for its
// manager while they still hold the project_manager role.
func (s *teamService) authorizeManager(ctx context.Context, op auth.Operation, teamID uuid.UUID) (*models.Team, *auth.Principal, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, nil, err
	}
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, nil, err
	}

	isManager := team.ManagerID == p.UserID && p.Role == models.RoleProjectManager
	if !auth.Allowed(op, p.Role, isManager) {
		return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrForbidden, op)
	}
	return team, p, nil
}

func applyTeamInput(team *models.Team, in TeamInput) error {
	if in.Name != nil {
		team.Name = strings.TrimSpace(*in.Name)
		if team.Name == "" || utf8.RuneCountInString(team.Name) > maxNameLength {
			return apperrors.NewValidationError("name", fmt.Sprintf("must be between 1 and %d characters", maxNameLength))
		}
	}
	if in.Description != nil {
		team.Description = strings.TrimSpace(*in.Description)
	}
	return nil
}

func teamSnapshot(t *models.Team) models.Snapshot {
	return models.Snapshot{
		"name":        t.Name,
		"description": t.Description,
		"managerId":   t.ManagerID,
	}
}

func invitationSnapshot(inv *models.TeamInvitation) models.Snapshot {
	return models.Snapshot{
		"teamId":    inv.TeamID,
		"userId":    inv.UserID,
		"invitedBy": inv.InvitedBy,
		"status":    inv.Status,
	}
}
