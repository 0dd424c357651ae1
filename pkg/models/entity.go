package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
)

// EntityType is the closed set of record kinds a comment can attach to.
type EntityType string

const (
	EntityProject  EntityType = "project"
	EntityDocument EntityType = "document"
	EntityTask     EntityType = "task"
	EntityMeeting  EntityType = "meeting"
)

// EntityTypes lists every commentable kind in declaration order.
var EntityTypes = []EntityType{EntityProject, EntityDocument, EntityTask, EntityMeeting}

// ParseEntityType validates s against the closed set.
// Returns apperrors.ErrInvalidEntityType for any other value.
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(strings.ToLower(strings.TrimSpace(s))); t {
	case EntityProject, EntityDocument, EntityTask, EntityMeeting:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidEntityType, s)
	}
}

func (t EntityType) String() string {
	return string(t)
}

// EntityRef points at one record of a commentable kind.
type EntityRef struct {
	Type EntityType `json:"entityType"`
	ID   uuid.UUID  `json:"entityId"`
}

// Entity is the resolved record behind an EntityRef.
// Exactly one of the pointer fields is set, matching Ref.Type.
type Entity struct {
	Ref      EntityRef
	Project  *Project
	Document *Document
	Task     *Task
	Meeting  *Meeting
}

// ProjectID returns the project that owns the entity.
func (e *Entity) ProjectID() uuid.UUID {
	switch e.Ref.Type {
	case EntityProject:
		return e.Project.ID
	case EntityDocument:
		return e.Document.ProjectID
	case EntityTask:
		return e.Task.ProjectID
	case EntityMeeting:
		return e.Meeting.ProjectID
	}
	return uuid.Nil
}
