package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment body bounds, counted in characters.
const (
	CommentMinLength = 1
	CommentMaxLength = 5000
)

// Comment is a remark attached to a project, document, task or meeting.
// A comment with ParentID == nil is top-level; otherwise it is a reply to
// another comment on the same entity. A reply may itself be a parent: such
// nested replies count toward the entity's total and are removed with their
// thread, but listings only materialize replies to top-level comments.
type Comment struct {
	ID         uuid.UUID    `json:"id"`
	EntityType EntityType   `json:"entityType"`
	EntityID   uuid.UUID    `json:"entityId"`
	UserID     uuid.UUID    `json:"userId"`
	Body       string       `json:"comment"`
	ParentID   *uuid.UUID   `json:"parentId"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	Author     *UserSummary `json:"user,omitempty"`
}

// Ref returns the entity the comment is attached to.
func (c *Comment) Ref() EntityRef {
	return EntityRef{Type: c.EntityType, ID: c.EntityID}
}

// IsReply reports whether the comment has a parent.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// CommentThread is a top-level comment with its direct replies, oldest first.
type CommentThread struct {
	*Comment
	Replies []*Comment `json:"replies"`
}

// CommentList is the result of listing comments on one entity.
// Total counts every comment on the entity, TopLevel only those without a parent.
type CommentList struct {
	Comments []*CommentThread `json:"comments"`
	Total    int              `json:"total"`
	TopLevel int              `json:"topLevel"`
}
