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

// CommentRepository defines the interface for comment data access.
// Reads join the author's minimal identity onto each comment.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)

	// ListTopLevel returns comments without a parent on ref, newest first.
	ListTopLevel(ctx context.Context, ref models.EntityRef) ([]*models.Comment, error)

	// ListReplies returns the direct replies of every parent in parentIDs, oldest first.
	ListReplies(ctx context.Context, parentIDs []uuid.UUID) ([]*models.Comment, error)

	// CountForEntity counts every comment on ref, top-level and replies alike.
	CountForEntity(ctx context.Context, ref models.EntityRef) (int, error)

	// CountReplies counts every reply under the comment, nested replies included.
	CountReplies(ctx context.Context, id uuid.UUID) (int, error)

	UpdateBody(ctx context.Context, id uuid.UUID, body string) (*models.Comment, error)

	// DeleteWithReplies removes the comment and every reply under it in one
	// transaction, returning the number of replies removed.
	DeleteWithReplies(ctx context.Context, id uuid.UUID) (int, error)
}

type commentRepository struct{}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository() CommentRepository {
	return &commentRepository{}
}

var _ CommentRepository = (*commentRepository)(nil)

const commentSelect = `
		SELECT c.id, c.entity_type, c.entity_id, c.user_id, c.body, c.parent_id,
		       c.created_at, c.updated_at, u.name, u.email
		FROM comments c
		JOIN users u ON u.id = c.user_id`

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	now := time.Now()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	query := `
		INSERT INTO comments (id, entity_type, entity_id, user_id, body, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := scope.Conn.Exec(ctx, query,
		comment.ID,
		comment.EntityType,
		comment.EntityID,
		comment.UserID,
		comment.Body,
		comment.ParentID,
		comment.CreatedAt,
		comment.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("author or parent comment: %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to create comment: %w", err)
	}

	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	comment, err := scanComment(scope.Conn.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("comment %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	return comment, nil
}

func (r *commentRepository) ListTopLevel(ctx context.Context, ref models.EntityRef) ([]*models.Comment, error) {
	query := commentSelect + `
		WHERE c.entity_type = $1 AND c.entity_id = $2 AND c.parent_id IS NULL
		ORDER BY c.created_at DESC, c.id DESC`

	return r.list(ctx, "top-level comments", query, ref.Type, ref.ID)
}

func (r *commentRepository) ListReplies(ctx context.Context, parentIDs []uuid.UUID) ([]*models.Comment, error) {
	if len(parentIDs) == 0 {
		return []*models.Comment{}, nil
	}

	query := commentSelect + `
		WHERE c.parent_id = ANY($1)
		ORDER BY c.created_at ASC, c.id ASC`

	return r.list(ctx, "replies", query, parentIDs)
}

func (r *commentRepository) list(ctx context.Context, what, query string, args ...any) ([]*models.Comment, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer rows.Close()

	comments := make([]*models.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, comment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}

	return comments, nil
}

func (r *commentRepository) CountForEntity(ctx context.Context, ref models.EntityRef) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, database.ErrNoScope
	}

	var count int
	err := scope.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM comments WHERE entity_type = $1 AND entity_id = $2`,
		ref.Type, ref.ID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}

	return count, nil
}

func (r *commentRepository) CountReplies(ctx context.Context, id uuid.UUID) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, database.ErrNoScope
	}

	var count int
	if err := scope.Conn.QueryRow(ctx, countThreadRepliesQuery, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count replies: %w", err)
	}

	return count, nil
}

func (r *commentRepository) UpdateBody(ctx context.Context, id uuid.UUID, body string) (*models.Comment, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE comments SET body = $2, updated_at = NOW() WHERE id = $1`, id, body)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, fmt.Errorf("comment %s: %w", id, apperrors.ErrNotFound)
	}

	return r.GetByID(ctx, id)
}

func (r *commentRepository) DeleteWithReplies(ctx context.Context, id uuid.UUID) (n int, err error) {
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

	var replies int
	if err := tx.QueryRow(ctx, countThreadRepliesQuery, id).Scan(&replies); err != nil {
		return 0, fmt.Errorf("failed to count replies: %w", err)
	}

	// parent_id is ON DELETE CASCADE, so this removes the whole thread.
	result, err := tx.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return 0, fmt.Errorf("comment %s: %w", id, apperrors.ErrNotFound)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit comment delete: %w", err)
	}

	return replies, nil
}

// countThreadRepliesQuery counts the replies below $1 at any depth.
const countThreadRepliesQuery = `
	WITH RECURSIVE thread AS (
		SELECT id FROM comments WHERE parent_id = $1
		UNION ALL
		SELECT c.id FROM comments c JOIN thread t ON c.parent_id = t.id
	)
	SELECT COUNT(*) FROM thread`

func scanComment(row pgx.Row) (*models.Comment, error) {
	c := models.Comment{Author: &models.UserSummary{}}
	err := row.Scan(
		&c.ID,
		&c.EntityType,
		&c.EntityID,
		&c.UserID,
		&c.Body,
		&c.ParentID,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Author.Name,
		&c.Author.Email,
	)
	if err != nil {
		return nil, err
	}
	c.Author.ID = c.UserID
	return &c, nil
}
