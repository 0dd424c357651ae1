package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/database"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// TeamRepository defines the interface for teams, their members and invitations.
type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	List(ctx context.Context) ([]*models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListMembers(ctx context.Context, teamID uuid.UUID) ([]*models.TeamMember, error)
	IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error)
	RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error

	// CreateInvitation issues a pending invitation for (TeamID, UserID).
	// Returns apperrors.ErrConflict if one is already pending. Resolved
	// invitations for the pair are purged first; their count is returned.
	CreateInvitation(ctx context.Context, inv *models.TeamInvitation) (int, error)
	GetInvitation(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, error)
	// ListPendingForUser returns the user's pending invitations with their team, newest first.
	ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*models.TeamInvitation, error)
	// ResolveInvitation moves a pending invitation to status. Returns
	// apperrors.ErrInvalidTransition if it is no longer pending.
	ResolveInvitation(ctx context.Context, id uuid.UUID, status models.InvitationStatus) (*models.TeamInvitation, error)
	// AcceptInvitation marks the invitation accepted and adds the member in one transaction.
	AcceptInvitation(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, *models.TeamMember, error)
}

type teamRepository struct{}

// NewTeamRepository creates a new team repository.
func NewTeamRepository() TeamRepository {
	return &teamRepository{}
}

var _ TeamRepository = (*teamRepository)(nil)

const teamSelect = `
		SELECT t.id, t.name, t.description, t.manager_id, t.created_at, t.updated_at, u.name, u.email
		FROM teams t
		JOIN users u ON u.id = t.manager_id`

const invitationColumns = `id, team_id, user_id, invited_by, status, created_at, responded_at`

func (r *teamRepository) Create(ctx context.Context, team *models.Team) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}
	now := time.Now()
	team.CreatedAt = now
	team.UpdatedAt = now

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO teams (id, name, description, manager_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		team.ID, team.Name, team.Description, team.ManagerID, team.CreatedAt, team.UpdatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("manager: %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to create team: %w", err)
	}

	return nil
}

func (r *teamRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	team, err := scanTeam(scope.Conn.QueryRow(ctx, teamSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("team %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return team, nil
}

func (r *teamRepository) List(ctx context.Context) ([]*models.Team, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	rows, err := scope.Conn.Query(ctx, teamSelect+` ORDER BY t.name, t.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}

	return teams, nil
}

func (r *teamRepository) Update(ctx context.Context, team *models.Team) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	team.UpdatedAt = time.Now()

	result, err := scope.Conn.Exec(ctx, `
		UPDATE teams SET name = $2, description = $3, manager_id = $4, updated_at = $5
		WHERE id = $1`,
		team.ID, team.Name, team.Description, team.ManagerID, team.UpdatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("manager: %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to update team: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes the team. Members and invitations cascade.
func (r *teamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *teamRepository) ListMembers(ctx context.Context, teamID uuid.UUID) ([]*models.TeamMember, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT m.id, m.team_id, m.user_id, m.joined_at, u.name, u.email
		FROM team_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.team_id = $1
		ORDER BY m.joined_at, m.id`

	rows, err := scope.Conn.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.TeamMember, 0)
	for rows.Next() {
		m := models.TeamMember{User: &models.UserSummary{}}
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserID, &m.JoinedAt, &m.User.Name, &m.User.Email); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		m.User.ID = m.UserID
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team members: %w", err)
	}

	return members, nil
}

func (r *teamRepository) IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, database.ErrNoScope
	}

	var exists bool
	err := scope.Conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)`,
		teamID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}

	return exists, nil
}

func (r *teamRepository) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	result, err := scope.Conn.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *teamRepository) CreateInvitation(ctx context.Context, inv *models.TeamInvitation) (purged int, err error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, database.ErrNoScope
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Serializes concurrent invites for the same pair; there is no row to lock yet.
	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`,
		inv.TeamID.String(), inv.UserID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to lock invitation pair: %w", err)
	}

	var pending bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM team_invitations
			WHERE team_id = $1 AND user_id = $2 AND status = 'pending'
		)`, inv.TeamID, inv.UserID).Scan(&pending)
	if err != nil {
		return 0, fmt.Errorf("failed to check pending invitation: %w", err)
	}
	if pending {
		return 0, fmt.Errorf("%w: invitation already pending", apperrors.ErrConflict)
	}

	result, err := tx.Exec(ctx, `
		DELETE FROM team_invitations
		WHERE team_id = $1 AND user_id = $2 AND status <> 'pending'`,
		inv.TeamID, inv.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge resolved invitations: %w", err)
	}

	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.Status = models.InvitationPending
	inv.CreatedAt = time.Now()
	inv.RespondedAt = nil

	_, err = tx.Exec(ctx, `
		INSERT INTO team_invitations (`+invitationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.ID, inv.TeamID, inv.UserID, inv.InvitedBy, inv.Status, inv.CreatedAt, inv.RespondedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return 0, fmt.Errorf("team or user: %w", apperrors.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to create invitation: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit invitation: %w", err)
	}

	return int(result.RowsAffected()), nil
}

func (r *teamRepository) GetInvitation(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	inv, err := scanInvitation(scope.Conn.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM team_invitations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invitation %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return inv, nil
}

func (r *teamRepository) ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*models.TeamInvitation, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT i.id, i.team_id, i.user_id, i.invited_by, i.status, i.created_at, i.responded_at,
		       t.name, t.description, t.manager_id
		FROM team_invitations i
		JOIN teams t ON t.id = i.team_id
		WHERE i.user_id = $1 AND i.status = 'pending'
		ORDER BY i.created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations: %w", err)
	}
	defer rows.Close()

	invitations := make([]*models.TeamInvitation, 0)
	for rows.Next() {
		var inv models.TeamInvitation
		team := &models.Team{}
		err := rows.Scan(
			&inv.ID, &inv.TeamID, &inv.UserID, &inv.InvitedBy, &inv.Status, &inv.CreatedAt, &inv.RespondedAt,
			&team.Name, &team.Description, &team.ManagerID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		team.ID = inv.TeamID
		inv.Team = team
		invitations = append(invitations, &inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invitations: %w", err)
	}

	return invitations, nil
}

func (r *teamRepository) ResolveInvitation(ctx context.Context, id uuid.UUID, status models.InvitationStatus) (*models.TeamInvitation, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	inv, err := resolvePending(ctx, scope.Conn, id, status)
	if err != nil {
		return nil, err
	}

	return inv, nil
}

func (r *teamRepository) AcceptInvitation(ctx context.Context, id uuid.UUID) (inv *models.TeamInvitation, member *models.TeamMember, err error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, nil, database.ErrNoScope
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	inv, err = resolvePending(ctx, tx, id, models.InvitationAccepted)
	if err != nil {
		return nil, nil, err
	}

	member = &models.TeamMember{
		ID:       uuid.New(),
		TeamID:   inv.TeamID,
		UserID:   inv.UserID,
		JoinedAt: *inv.RespondedAt,
	}
	// A user added to the team by other means keeps their original membership.
	err = tx.QueryRow(ctx, `
		INSERT INTO team_members (id, team_id, user_id, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, user_id) DO UPDATE SET team_id = EXCLUDED.team_id
		RETURNING id, joined_at`,
		member.ID, member.TeamID, member.UserID, member.JoinedAt).Scan(&member.ID, &member.JoinedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to add team member: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit invitation accept: %w", err)
	}

	return inv, member, nil
}

// querier is the subset of pgx shared by *pgxpool.Conn and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// resolvePending performs the only legal transition, pending -> status,
// as a single conditional update.
func resolvePending(ctx context.Context, q querier, id uuid.UUID, status models.InvitationStatus) (*models.TeamInvitation, error) {
	if !models.CanTransition(models.InvitationPending, status) {
		return nil, fmt.Errorf("%w: pending -> %s", apperrors.ErrInvalidTransition, status)
	}

	inv, err := scanInvitation(q.QueryRow(ctx, `
		UPDATE team_invitations
		SET status = $2, responded_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+invitationColumns, id, status))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update invitation: %w", err)
	}

	// Nothing updated: either the invitation is gone or it is already resolved.
	var current models.InvitationStatus
	err = q.QueryRow(ctx, `SELECT status FROM team_invitations WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invitation %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return nil, fmt.Errorf("%w: invitation is %s", apperrors.ErrInvalidTransition, current)
}

func scanTeam(row pgx.Row) (*models.Team, error) {
	t := models.Team{Manager: &models.UserSummary{}}
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.ManagerID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Manager.Name,
		&t.Manager.Email,
	)
	if err != nil {
		return nil, err
	}
	t.Manager.ID = t.ManagerID
	return &t, nil
}

func scanInvitation(row pgx.Row) (*models.TeamInvitation, error) {
	var inv models.TeamInvitation
	err := row.Scan(
		&inv.ID,
		&inv.TeamID,
		&inv.UserID,
		&inv.InvitedBy,
		&inv.Status,
		&inv.CreatedAt,
		&inv.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
