package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
)

// CreateCommentInput is the request to attach a comment to an entity.
type CreateCommentInput struct {
	EntityType string
	EntityID   uuid.UUID
	AuthorID   uuid.UUID
	Body       string
	ParentID   *uuid.UUID
}

// CommentService manages comment threads on projects, documents, tasks and meetings.
type CommentService interface {
	Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error)
	// List returns top-level comments newest first, each with its direct replies oldest first.
	List(ctx context.Context, entityType string, entityID uuid.UUID) (*models.CommentList, error)
	// Update replaces the body. Only the author may update, admins included.
	Update(ctx context.Context, commentID, callerID uuid.UUID, body string) (*models.Comment, error)
	// Delete removes the comment and every reply under it. The author or an admin may delete.
	Delete(ctx context.Context, commentID, callerID uuid.UUID, callerRole models.GlobalRole) error
}

type commentService struct {
	comments repositories.CommentRepository
	registry EntityRegistry
	audit    AuditService
	logger   *zap.Logger
}

// NewCommentService creates a new CommentService.
func NewCommentService(
	comments repositories.CommentRepository,
	registry EntityRegistry,
	audit AuditService,
	logger *zap.Logger,
) CommentService {
	return &commentService{
		comments: comments,
		registry: registry,
		audit:    audit,
		logger:   logger.Named("comment-service"),
	}
}

var _ CommentService = (*commentService)(nil)

func (s *commentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	entityType, err := models.ParseEntityType(in.EntityType)
	if err != nil {
		return nil, err
	}

	verr := &apperrors.ValidationError{}
	if in.EntityID == uuid.Nil {
		verr.Add("entityId", "is required")
	}
	body, err := validateCommentBody(in.Body)
	for field, msg := range apperrors.ValidationFields(err) {
		verr.Add(field, msg)
	}
	if verr.HasErrors() {
		return nil, verr
	}

	entity, err := s.registry.Resolve(ctx, string(entityType), in.EntityID)
	if err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		parent, err := s.comments.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parent comment: %w", err)
		}
		if parent.Ref() != entity.Ref {
			return nil, fmt.Errorf("%w: parent comment belongs to %s %s",
				apperrors.ErrInvalidReference, parent.EntityType, parent.EntityID)
		}
	}

	comment := &models.Comment{
		EntityType: entity.Ref.Type,
		EntityID:   entity.Ref.ID,
		UserID:     in.AuthorID,
		Body:       body,
		ParentID:   in.ParentID,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionCreateComment,
		Description: fmt.Sprintf("Comment added to %s", entity.Ref.Type),
		EntityType:  models.AuditEntityComment,
		EntityID:    comment.ID,
		NewValue: models.Snapshot{
			"entityType": comment.EntityType,
			"entityId":   comment.EntityID,
			"parentId":   comment.ParentID,
		},
		PerformedBy: in.AuthorID,
	})

	created, err := s.comments.GetByID(ctx, comment.ID)
	if err != nil {
		// The comment is stored; return it without the author join.
		s.logger.Warn("Failed to reload created comment",
			zap.String("comment_id", comment.ID.String()),
			zap.Error(err))
		return comment, nil
	}
	return created, nil
}

func (s *commentService) List(ctx context.Context, entityType string, entityID uuid.UUID) (*models.CommentList, error) {
	ref, err := s.registry.Exists(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}

	top, err := s.comments.ListTopLevel(ctx, ref)
	if err != nil {
		return nil, err
	}

	parentIDs := make([]uuid.UUID, len(top))
	for i, c := range top {
		parentIDs[i] = c.ID
	}
	replies, err := s.comments.ListReplies(ctx, parentIDs)
	if err != nil {
		return nil, err
	}

	byParent := make(map[uuid.UUID][]*models.Comment, len(top))
	for _, r := range replies {
		byParent[*r.ParentID] = append(byParent[*r.ParentID], r)
	}

	threads := make([]*models.CommentThread, len(top))
	for i, c := range top {
		threads[i] = &models.CommentThread{Comment: c, Replies: byParent[c.ID]}
		if threads[i].Replies == nil {
			threads[i].Replies = []*models.Comment{}
		}
	}

	total, err := s.comments.CountForEntity(ctx, ref)
	if err != nil {
		return nil, err
	}

	return &models.CommentList{
		Comments: threads,
		Total:    total,
		TopLevel: len(top),
	}, nil
}

func (s *commentService) Update(ctx context.Context, commentID, callerID uuid.UUID, body string) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}

	// comment.update has no role grant, so the caller's role is irrelevant.
	if !auth.Allowed(auth.OpCommentUpdate, "", comment.UserID == callerID) {
		return nil, fmt.Errorf("%w: only the author may edit a comment", apperrors.ErrForbidden)
	}

	newBody, err := validateCommentBody(body)
	if err != nil {
		return nil, err
	}

	updated, err := s.comments.UpdateBody(ctx, commentID, newBody)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionUpdateComment,
		Description: "Comment edited",
		EntityType:  models.AuditEntityComment,
		EntityID:    commentID,
		OldValue:    models.Snapshot{"comment": comment.Body},
		NewValue:    models.Snapshot{"comment": updated.Body},
		PerformedBy: callerID,
	})

	return updated, nil
}

func (s *commentService) Delete(ctx context.Context, commentID, callerID uuid.UUID, callerRole models.GlobalRole) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}

	if !auth.Allowed(auth.OpCommentDelete, callerRole, comment.UserID == callerID) {
		return fmt.Errorf("%w: only the author or an admin may delete a comment", apperrors.ErrForbidden)
	}

	replyCount, err := s.comments.CountReplies(ctx, commentID)
	if err != nil {
		return err
	}

	// Logged before the delete so the entry survives a failed delete.
	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionDeleteComment,
		Description: fmt.Sprintf("Comment deleted with %s", countNoun(replyCount, "reply")),
		EntityType:  models.AuditEntityComment,
		EntityID:    commentID,
		OldValue: models.Snapshot{
			"comment":    comment.Body,
			"entityType": comment.EntityType,
			"entityId":   comment.EntityID,
			"parentId":   comment.ParentID,
			"userId":     comment.UserID,
			"replyCount": replyCount,
		},
		PerformedBy: callerID,
	})

	removed, err := s.comments.DeleteWithReplies(ctx, commentID)
	if err != nil {
		return err
	}

	s.logger.Debug("Comment deleted",
		zap.String("comment_id", commentID.String()),
		zap.Int("replies_removed", removed))
	return nil
}

// validateCommentBody trims body and checks its length in characters.
func validateCommentBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n < models.CommentMinLength:
		return "", apperrors.NewValidationError("comment", "must not be empty")
	case n > models.CommentMaxLength:
		return "", apperrors.NewValidationError("comment",
			fmt.Sprintf("must be at most %d characters", models.CommentMaxLength))
	}
	return trimmed, nil
}

// countNoun renders "1 reply", "3 replies".
func countNoun(n int, noun string) string {
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}
