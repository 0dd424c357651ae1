package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
)

var errStoreDown = errors.New("store unavailable")

// mockAuditRepository records entries in memory. Set err to simulate an outage.
type mockAuditRepository struct {
	entries []*models.AuditLog
	err     error
}

func (m *mockAuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Timestamp = time.Now()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) newestFirst(keep func(*models.AuditLog) bool, limit int) []*models.AuditLog {
	var result []*models.AuditLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		if keep(m.entries[i]) {
			result = append(result, m.entries[i])
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (m *mockAuditRepository) Recent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	return m.newestFirst(func(*models.AuditLog) bool { return true }, limit), m.err
}

func (m *mockAuditRepository) ForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	return m.newestFirst(func(e *models.AuditLog) bool { return e.PerformedBy == userID }, limit), m.err
}

func (m *mockAuditRepository) ForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLog, error) {
	return m.newestFirst(func(e *models.AuditLog) bool {
		return e.EntityType == entityType && e.EntityID == entityID
	}, 0), m.err
}

func (m *mockAuditRepository) ByAction(ctx context.Context, action string, limit int) ([]*models.AuditLog, error) {
	return m.newestFirst(func(e *models.AuditLog) bool { return e.Action == action }, limit), m.err
}

func (m *mockAuditRepository) InPeriod(ctx context.Context, start, end time.Time) ([]*models.AuditLog, error) {
	return m.newestFirst(func(e *models.AuditLog) bool {
		return !e.Timestamp.Before(start) && !e.Timestamp.After(end)
	}, 0), m.err
}

func (m *mockAuditRepository) actions() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

var _ repositories.AuditRepository = (*mockAuditRepository)(nil)

// mockCommentRepository keeps comments in memory with a monotonic clock.
type mockCommentRepository struct {
	comments  map[uuid.UUID]*models.Comment
	clock     time.Time
	deleteErr error
}

func newMockCommentRepository() *mockCommentRepository {
	return &mockCommentRepository{
		comments: make(map[uuid.UUID]*models.Comment),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *mockCommentRepository) Create(ctx context.Context, c *models.Comment) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.clock = m.clock.Add(time.Second)
	c.CreatedAt = m.clock
	c.UpdatedAt = m.clock
	stored := *c
	m.comments[c.ID] = &stored
	return nil
}

func (m *mockCommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *c
	out.Author = &models.UserSummary{ID: c.UserID}
	return &out, nil
}

func (m *mockCommentRepository) ListTopLevel(ctx context.Context, ref models.EntityRef) ([]*models.Comment, error) {
	var out []*models.Comment
	for _, c := range m.comments {
		if c.ParentID == nil && c.Ref() == ref {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockCommentRepository) ListReplies(ctx context.Context, parentIDs []uuid.UUID) ([]*models.Comment, error) {
	wanted := make(map[uuid.UUID]bool, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = true
	}
	var out []*models.Comment
	for _, c := range m.comments {
		if c.ParentID != nil && wanted[*c.ParentID] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockCommentRepository) CountForEntity(ctx context.Context, ref models.EntityRef) (int, error) {
	n := 0
	for _, c := range m.comments {
		if c.Ref() == ref {
			n++
		}
	}
	return n, nil
}

func (m *mockCommentRepository) CountReplies(ctx context.Context, id uuid.UUID) (int, error) {
	return len(m.threadReplies(id)), nil
}

// threadReplies returns the IDs of every reply below id, at any depth.
func (m *mockCommentRepository) threadReplies(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for cid, c := range m.comments {
			if c.ParentID != nil && *c.ParentID == parent {
				out = append(out, cid)
				queue = append(queue, cid)
			}
		}
	}
	return out
}

func (m *mockCommentRepository) UpdateBody(ctx context.Context, id uuid.UUID, body string) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c.Body = body
	return m.GetByID(ctx, id)
}

func (m *mockCommentRepository) DeleteWithReplies(ctx context.Context, id uuid.UUID) (int, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	if _, ok := m.comments[id]; !ok {
		return 0, apperrors.ErrNotFound
	}
	replies := m.threadReplies(id)
	for _, cid := range replies {
		delete(m.comments, cid)
	}
	delete(m.comments, id)
	return len(replies), nil
}

var _ repositories.CommentRepository = (*mockCommentRepository)(nil)

// mockEntityRegistry resolves any reference registered with add.
type mockEntityRegistry struct {
	known   map[models.EntityRef]bool
	lookups int
}

func newMockEntityRegistry() *mockEntityRegistry {
	return &mockEntityRegistry{known: make(map[models.EntityRef]bool)}
}

func (m *mockEntityRegistry) add(t models.EntityType) models.EntityRef {
	ref := models.EntityRef{Type: t, ID: uuid.New()}
	m.known[ref] = true
	return ref
}

func (m *mockEntityRegistry) Resolve(ctx context.Context, entityType string, id uuid.UUID) (*models.Entity, error) {
	ref, err := m.Exists(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	return &models.Entity{Ref: ref, Project: &models.Project{ID: id}}, nil
}

func (m *mockEntityRegistry) Exists(ctx context.Context, entityType string, id uuid.UUID) (models.EntityRef, error) {
	t, err := models.ParseEntityType(entityType)
	if err != nil {
		return models.EntityRef{}, err
	}
	m.lookups++
	ref := models.EntityRef{Type: t, ID: id}
	if !m.known[ref] {
		return ref, apperrors.ErrNotFound
	}
	return ref, nil
}

var _ EntityRegistry = (*mockEntityRegistry)(nil)
