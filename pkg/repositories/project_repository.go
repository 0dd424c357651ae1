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

// ProjectRepository defines the interface for project and project membership data access.
type ProjectRepository interface {
	// Create inserts the project and makes leadID its lead member in one transaction.
	Create(ctx context.Context, project *models.Project, leadID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// List returns all projects, or only those memberID belongs to when set.
	List(ctx context.Context, memberID *uuid.UUID) ([]*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error

	GetMember(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectMember, error)
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectMember, error)
	// UpsertMember adds the user to the project or changes their project role.
	UpsertMember(ctx context.Context, member *models.ProjectMember) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct{}

// NewProjectRepository creates a new project repository.
func NewProjectRepository() ProjectRepository {
	return &projectRepository{}
}

var _ ProjectRepository = (*projectRepository)(nil)

const projectColumns = `id, name, description, status, start_date, end_date, created_by, created_at, updated_at`

func (r *projectRepository) Create(ctx context.Context, project *models.Project, leadID uuid.UUID) (err error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.ProjectStatusPlanning
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		project.ID,
		project.Name,
		project.Description,
		project.Status,
		project.StartDate,
		project.EndDate,
		project.CreatedBy,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`,
		project.ID, leadID, models.ProjectRoleLead, now)
	if err != nil {
		return fmt.Errorf("failed to add project lead: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}

	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	project, err := scanProject(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

func (r *projectRepository) List(ctx context.Context, memberID *uuid.UUID) ([]*models.Project, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		WHERE $1::uuid IS NULL
		   OR EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $1)
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET name = $2, description = $3, status = $4, start_date = $5, end_date = $6, updated_at = $7
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.Status,
		project.StartDate,
		project.EndDate,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes the project. Members, tasks, documents and meetings cascade;
// comments referencing the project are left in place.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *projectRepository) GetMember(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectMember, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT project_id, user_id, role, joined_at
		FROM project_members
		WHERE project_id = $1 AND user_id = $2`

	var m models.ProjectMember
	err := scope.Conn.QueryRow(ctx, query, projectID, userID).Scan(
		&m.ProjectID,
		&m.UserID,
		&m.Role,
		&m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project member: %w", err)
	}

	return &m, nil
}

func (r *projectRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectMember, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT m.project_id, m.user_id, m.role, m.joined_at, u.name, u.email
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY m.joined_at, u.name`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.ProjectMember, 0)
	for rows.Next() {
		m := models.ProjectMember{User: &models.UserSummary{}}
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt, &m.User.Name, &m.User.Email); err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		m.User.ID = m.UserID
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project members: %w", err)
	}

	return members, nil
}

func (r *projectRepository) UpsertMember(ctx context.Context, member *models.ProjectMember) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		INSERT INTO project_members (project_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING joined_at`

	err := scope.Conn.QueryRow(ctx, query, member.ProjectID, member.UserID, member.Role).Scan(&member.JoinedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("project or user: %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to upsert project member: %w", err)
	}

	return nil
}

func (r *projectRepository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	result, err := scope.Conn.Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Status,
		&p.StartDate,
		&p.EndDate,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
