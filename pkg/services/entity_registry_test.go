package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

func TestTableFor(t *testing.T) {
	tests := map[models.EntityType]string{
		models.EntityProject:  "projects",
		models.EntityDocument: "documents",
		models.EntityTask:     "tasks",
		models.EntityMeeting:  "meetings",
	}
	for entityType, want := range tests {
		table, err := TableFor(entityType)
		require.NoError(t, err)
		assert.Equal(t, want, table)
	}

	for _, bad := range []models.EntityType{"", "comment", "users", "task; DROP TABLE tasks"} {
		_, err := TableFor(bad)
		assert.ErrorIs(t, err, apperrors.ErrInvalidEntityType, "type %q", bad)
	}
}

func TestEntityRegistry_Resolve(t *testing.T) {
	projects := newMockProjectRepository()
	tasks := newMockTaskRepository()
	documents := newMockDocumentRepository()
	meetings := newMockMeetingRepository()
	entities := &mockEntityRepository{}
	registry := NewEntityRegistry(projects, documents, tasks, meetings, entities)

	projectID := projects.seed(uuid.New())
	task := &models.Task{ProjectID: projectID, Title: "Ship it"}
	require.NoError(t, tasks.Create(context.Background(), task))

	entity, err := registry.Resolve(context.Background(), "task", task.ID)
	require.NoError(t, err)
	require.NotNil(t, entity.Task)
	assert.Equal(t, "Ship it", entity.Task.Title)
	assert.Equal(t, projectID, entity.ProjectID())

	_, err = registry.Resolve(context.Background(), "meeting", task.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "an ID only resolves under its own type")

	_, err = registry.Resolve(context.Background(), "user", task.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidEntityType)
}

func TestEntityRegistry_Exists(t *testing.T) {
	id := uuid.New()
	entities := &mockEntityRepository{rows: map[string]map[uuid.UUID]bool{
		"documents": {id: true},
	}}
	registry := NewEntityRegistry(nil, nil, nil, nil, entities)

	ref, err := registry.Exists(context.Background(), "document", id)
	require.NoError(t, err)
	assert.Equal(t, models.EntityRef{Type: models.EntityDocument, ID: id}, ref)

	_, err = registry.Exists(context.Background(), "project", id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = registry.Exists(context.Background(), "documents", id)
	assert.ErrorIs(t, err, apperrors.ErrInvalidEntityType)

	assert.Equal(t, []string{"documents", "projects"}, entities.tables, "invalid types never reach the store")
}
