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

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetByLogin finds a user by email or username, case-insensitively.
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.UserSummary, error)
	List(ctx context.Context, includeInactive bool) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct{}

// NewUserRepository creates a new user repository.
func NewUserRepository() UserRepository {
	return &userRepository{}
}

var _ UserRepository = (*userRepository)(nil)

const userColumns = `id, name, username, email, password_hash, role, is_active, last_login_at, created_at, updated_at`

// Create inserts a new user. Returns apperrors.ErrConflict if the email or
// username is already taken.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, name, username, email, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := scope.Conn.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: email or username already registered", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByLogin finds a user by email or username.
func (r *userRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1) OR LOWER(username) = LOWER($1)
		LIMIT 1`

	user, err := scanUser(scope.Conn.QueryRow(ctx, query, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by login: %w", err)
	}

	return user, nil
}

// GetSummaries returns the minimal identity of each user in ids.
// Unknown IDs are absent from the result.
func (r *userRepository) GetSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.UserSummary, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	summaries := make(map[uuid.UUID]*models.UserSummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	rows, err := scope.Conn.Query(ctx, `SELECT id, name, email FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query user summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.UserSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user summary: %w", err)
		}
		summaries[s.ID] = &s
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user summaries: %w", err)
	}

	return summaries, nil
}

// List returns users ordered by name.
func (r *userRepository) List(ctx context.Context, includeInactive bool) ([]*models.User, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_active OR $1
		ORDER BY name, id`

	rows, err := scope.Conn.Query(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// Update writes the mutable profile fields and role.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET name = $2, username = $3, email = $4, password_hash = $5, role = $6, updated_at = $7
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: email or username already registered", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// UpdateLastLogin records a successful login.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	_, err := scope.Conn.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

// SetActive activates or deactivates a user. Users are never hard-deleted.
func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to set user active state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.IsActive,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
