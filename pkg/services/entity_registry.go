package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
)

// EntityRegistry resolves polymorphic (entityType, entityId) references.
// Both methods reject an unknown entityType with apperrors.ErrInvalidEntityType
// before touching the store.
type EntityRegistry interface {
	// Resolve loads the record behind the reference, or fails with apperrors.ErrNotFound.
	Resolve(ctx context.Context, entityType string, id uuid.UUID) (*models.Entity, error)

	// Exists checks the reference without loading the record.
	Exists(ctx context.Context, entityType string, id uuid.UUID) (models.EntityRef, error)
}

type entityRegistry struct {
	projects  repositories.ProjectRepository
	documents repositories.DocumentRepository
	tasks     repositories.TaskRepository
	meetings  repositories.MeetingRepository
	entities  repositories.EntityRepository
}

// NewEntityRegistry creates an EntityRegistry over the typed repositories.
func NewEntityRegistry(
	projects repositories.ProjectRepository,
	documents repositories.DocumentRepository,
	tasks repositories.TaskRepository,
	meetings repositories.MeetingRepository,
	entities repositories.EntityRepository,
) EntityRegistry {
	return &entityRegistry{
		projects:  projects,
		documents: documents,
		tasks:     tasks,
		meetings:  meetings,
		entities:  entities,
	}
}

var _ EntityRegistry = (*entityRegistry)(nil)

func (r *entityRegistry) Resolve(ctx context.Context, entityType string, id uuid.UUID) (*models.Entity, error) {
	t, err := models.ParseEntityType(entityType)
	if err != nil {
		return nil, err
	}

	entity := &models.Entity{Ref: models.EntityRef{Type: t, ID: id}}
	switch t {
	case models.EntityProject:
		entity.Project, err = r.projects.GetByID(ctx, id)
	case models.EntityDocument:
		entity.Document, err = r.documents.GetByID(ctx, id)
	case models.EntityTask:
		entity.Task, err = r.tasks.GetByID(ctx, id)
	case models.EntityMeeting:
		entity.Meeting, err = r.meetings.GetByID(ctx, id)
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidEntityType, entityType)
	}
	if err != nil {
		return nil, err
	}

	return entity, nil
}

func (r *entityRegistry) Exists(ctx context.Context, entityType string, id uuid.UUID) (models.EntityRef, error) {
	t, err := models.ParseEntityType(entityType)
	if err != nil {
		return models.EntityRef{}, err
	}
	ref := models.EntityRef{Type: t, ID: id}

	table, err := TableFor(t)
	if err != nil {
		return models.EntityRef{}, err
	}

	ok, err := r.entities.Exists(ctx, table, id)
	if err != nil {
		return ref, err
	}
	if !ok {
		return ref, fmt.Errorf("%s %s: %w", t, id, apperrors.ErrNotFound)
	}

	return ref, nil
}

// TableFor returns the table backing an entity type. The result is used as a
// SQL identifier, so only the fixed table names are ever returned.
func TableFor(t models.EntityType) (string, error) {
	switch t {
	case models.EntityProject:
		return "projects", nil
	case models.EntityDocument:
		return "documents", nil
	case models.EntityTask:
		return "tasks", nil
	case models.EntityMeeting:
		return "meetings", nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidEntityType, t)
	}
}
