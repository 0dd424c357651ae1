package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
	"github.com/ekaya-inc/ekaya-projects/pkg/storage"
)

// asCaller returns a context carrying an authenticated principal.
func asCaller(id uuid.UUID, role models.GlobalRole) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{UserID: id, Role: role})
}

// mockUserRepository enforces unique email and username like the real table.
type mockUserRepository struct {
	users     map[uuid.UUID]*models.User
	lastLogin map[uuid.UUID]time.Time
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:     make(map[uuid.UUID]*models.User),
		lastLogin: make(map[uuid.UUID]time.Time),
	}
}

func (m *mockUserRepository) taken(u *models.User) bool {
	for _, other := range m.users {
		if other.ID == u.ID {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) || strings.EqualFold(other.Username, u.Username) {
			return true
		}
	}
	return false
}

func (m *mockUserRepository) Create(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if m.taken(u) {
		return apperrors.ErrConflict
	}
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *mockUserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, login) || strings.EqualFold(u.Username, login) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepository) GetSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.UserSummary, error) {
	out := make(map[uuid.UUID]*models.UserSummary)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func (m *mockUserRepository) List(ctx context.Context, includeInactive bool) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.users {
		if u.IsActive || includeInactive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepository) Update(ctx context.Context, u *models.User) error {
	if _, ok := m.users[u.ID]; !ok {
		return apperrors.ErrNotFound
	}
	if m.taken(u) {
		return apperrors.ErrConflict
	}
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.lastLogin[id] = at
	return nil
}

func (m *mockUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.IsActive = active
	return nil
}

var _ repositories.UserRepository = (*mockUserRepository)(nil)

// mockTokenIssuer signs nothing; the token is derived from the user ID.
type mockTokenIssuer struct{}

func (mockTokenIssuer) Issue(user *models.User) (string, *auth.Claims, error) {
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: user.Email,
		Role:  string(user.Role),
	}
	return "token-" + user.ID.String(), claims, nil
}

// mockRevocationStore remembers revoked token IDs.
type mockRevocationStore struct {
	revoked map[string]time.Time
}

func (m *mockRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if m.revoked == nil {
		m.revoked = make(map[string]time.Time)
	}
	m.revoked[jti] = expiresAt
	return nil
}

func (m *mockRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, ok := m.revoked[jti]
	return ok, nil
}

// mockProjectRepository keeps projects and their member pivot in memory.
type mockProjectRepository struct {
	projects map[uuid.UUID]*models.Project
	members  map[uuid.UUID]map[uuid.UUID]*models.ProjectMember
}

func newMockProjectRepository() *mockProjectRepository {
	return &mockProjectRepository{
		projects: make(map[uuid.UUID]*models.Project),
		members:  make(map[uuid.UUID]map[uuid.UUID]*models.ProjectMember),
	}
}

// seed stores a project led by lead and returns its ID.
func (m *mockProjectRepository) seed(lead uuid.UUID) uuid.UUID {
	p := &models.Project{Name: "Seeded", Status: models.ProjectStatusActive, CreatedBy: lead}
	_ = m.Create(context.Background(), p, lead)
	return p.ID
}

func (m *mockProjectRepository) Create(ctx context.Context, p *models.Project, leadID uuid.UUID) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	stored := *p
	m.projects[p.ID] = &stored
	m.members[p.ID] = map[uuid.UUID]*models.ProjectMember{
		leadID: {ProjectID: p.ID, UserID: leadID, Role: models.ProjectRoleLead},
	}
	return nil
}

func (m *mockProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, apperrors.ErrNotFound)
	}
	out := *p
	return &out, nil
}

func (m *mockProjectRepository) List(ctx context.Context, memberID *uuid.UUID) ([]*models.Project, error) {
	var out []*models.Project
	for id, p := range m.projects {
		if memberID != nil {
			if _, ok := m.members[id][*memberID]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProjectRepository) Update(ctx context.Context, p *models.Project) error {
	if _, ok := m.projects[p.ID]; !ok {
		return apperrors.ErrNotFound
	}
	stored := *p
	m.projects[p.ID] = &stored
	return nil
}

func (m *mockProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.projects[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.projects, id)
	delete(m.members, id)
	return nil
}

func (m *mockProjectRepository) GetMember(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectMember, error) {
	member, ok := m.members[projectID][userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return member, nil
}

func (m *mockProjectRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectMember, error) {
	var out []*models.ProjectMember
	for _, member := range m.members[projectID] {
		out = append(out, member)
	}
	return out, nil
}

func (m *mockProjectRepository) UpsertMember(ctx context.Context, member *models.ProjectMember) error {
	if _, ok := m.projects[member.ProjectID]; !ok {
		return apperrors.ErrNotFound
	}
	if m.members[member.ProjectID] == nil {
		m.members[member.ProjectID] = make(map[uuid.UUID]*models.ProjectMember)
	}
	member.JoinedAt = time.Now()
	m.members[member.ProjectID][member.UserID] = member
	return nil
}

func (m *mockProjectRepository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	if _, ok := m.members[projectID][userID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.members[projectID], userID)
	return nil
}

var _ repositories.ProjectRepository = (*mockProjectRepository)(nil)

type mockTaskRepository struct {
	tasks map[uuid.UUID]*models.Task
}

func newMockTaskRepository() *mockTaskRepository {
	return &mockTaskRepository{tasks: make(map[uuid.UUID]*models.Task)}
}

func (m *mockTaskRepository) Create(ctx context.Context, t *models.Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	stored := *t
	m.tasks[t.ID] = &stored
	return nil
}

func (m *mockTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, apperrors.ErrNotFound)
	}
	out := *t
	return &out, nil
}

func (m *mockTaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Task, error) {
	var out []*models.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTaskRepository) Update(ctx context.Context, t *models.Task) error {
	stored := *t
	m.tasks[t.ID] = &stored
	return nil
}

func (m *mockTaskRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	t, ok := m.tasks[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *mockTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.tasks[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

var _ repositories.TaskRepository = (*mockTaskRepository)(nil)

type mockDocumentRepository struct {
	docs      map[uuid.UUID]*models.Document
	createErr error
}

func newMockDocumentRepository() *mockDocumentRepository {
	return &mockDocumentRepository{docs: make(map[uuid.UUID]*models.Document)}
}

func (m *mockDocumentRepository) Create(ctx context.Context, d *models.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	stored := *d
	m.docs[d.ID] = &stored
	return nil
}

func (m *mockDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, apperrors.ErrNotFound)
	}
	out := *d
	return &out, nil
}

func (m *mockDocumentRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Document, error) {
	var out []*models.Document
	for _, d := range m.docs {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.docs[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

var _ repositories.DocumentRepository = (*mockDocumentRepository)(nil)

type mockMeetingRepository struct {
	meetings map[uuid.UUID]*models.Meeting
}

func newMockMeetingRepository() *mockMeetingRepository {
	return &mockMeetingRepository{meetings: make(map[uuid.UUID]*models.Meeting)}
}

func (m *mockMeetingRepository) Create(ctx context.Context, mt *models.Meeting) error {
	if mt.ID == uuid.Nil {
		mt.ID = uuid.New()
	}
	stored := *mt
	m.meetings[mt.ID] = &stored
	return nil
}

func (m *mockMeetingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	mt, ok := m.meetings[id]
	if !ok {
		return nil, fmt.Errorf("meeting %s: %w", id, apperrors.ErrNotFound)
	}
	out := *mt
	return &out, nil
}

func (m *mockMeetingRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Meeting, error) {
	var out []*models.Meeting
	for _, mt := range m.meetings {
		if mt.ProjectID == projectID {
			out = append(out, mt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *mockMeetingRepository) Update(ctx context.Context, mt *models.Meeting) error {
	stored := *mt
	m.meetings[mt.ID] = &stored
	return nil
}

func (m *mockMeetingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.meetings[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.meetings, id)
	return nil
}

var _ repositories.MeetingRepository = (*mockMeetingRepository)(nil)

// mockTeamRepository mirrors the invitation rules of the real repository:
// one pending invitation per pair, resolved ones purged on re-invite.
type mockTeamRepository struct {
	teams       map[uuid.UUID]*models.Team
	members     map[uuid.UUID]map[uuid.UUID]*models.TeamMember
	invitations map[uuid.UUID]*models.TeamInvitation
}

func newMockTeamRepository() *mockTeamRepository {
	return &mockTeamRepository{
		teams:       make(map[uuid.UUID]*models.Team),
		members:     make(map[uuid.UUID]map[uuid.UUID]*models.TeamMember),
		invitations: make(map[uuid.UUID]*models.TeamInvitation),
	}
}

func (m *mockTeamRepository) Create(ctx context.Context, t *models.Team) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	stored := *t
	m.teams[t.ID] = &stored
	return nil
}

func (m *mockTeamRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	t, ok := m.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %s: %w", id, apperrors.ErrNotFound)
	}
	out := *t
	return &out, nil
}

func (m *mockTeamRepository) List(ctx context.Context) ([]*models.Team, error) {
	var out []*models.Team
	for _, t := range m.teams {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTeamRepository) Update(ctx context.Context, t *models.Team) error {
	stored := *t
	m.teams[t.ID] = &stored
	return nil
}

func (m *mockTeamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.teams[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.teams, id)
	delete(m.members, id)
	return nil
}

func (m *mockTeamRepository) ListMembers(ctx context.Context, teamID uuid.UUID) ([]*models.TeamMember, error) {
	var out []*models.TeamMember
	for _, member := range m.members[teamID] {
		out = append(out, member)
	}
	return out, nil
}

func (m *mockTeamRepository) IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error) {
	_, ok := m.members[teamID][userID]
	return ok, nil
}

func (m *mockTeamRepository) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	if _, ok := m.members[teamID][userID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.members[teamID], userID)
	return nil
}

func (m *mockTeamRepository) forPair(teamID, userID uuid.UUID) []*models.TeamInvitation {
	var out []*models.TeamInvitation
	for _, inv := range m.invitations {
		if inv.TeamID == teamID && inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out
}

func (m *mockTeamRepository) CreateInvitation(ctx context.Context, inv *models.TeamInvitation) (int, error) {
	if _, ok := m.teams[inv.TeamID]; !ok {
		return 0, apperrors.ErrNotFound
	}
	existing := m.forPair(inv.TeamID, inv.UserID)
	for _, old := range existing {
		if old.Status == models.InvitationPending {
			return 0, fmt.Errorf("%w: invitation already pending", apperrors.ErrConflict)
		}
	}
	for _, old := range existing {
		delete(m.invitations, old.ID)
	}

	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.Status = models.InvitationPending
	inv.CreatedAt = time.Now()
	stored := *inv
	m.invitations[inv.ID] = &stored
	return len(existing), nil
}

func (m *mockTeamRepository) GetInvitation(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, error) {
	inv, ok := m.invitations[id]
	if !ok {
		return nil, fmt.Errorf("invitation %s: %w", id, apperrors.ErrNotFound)
	}
	out := *inv
	return &out, nil
}

func (m *mockTeamRepository) ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*models.TeamInvitation, error) {
	var out []*models.TeamInvitation
	for _, inv := range m.invitations {
		if inv.UserID == userID && inv.Status == models.InvitationPending {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *mockTeamRepository) ResolveInvitation(ctx context.Context, id uuid.UUID, status models.InvitationStatus) (*models.TeamInvitation, error) {
	inv, ok := m.invitations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if !models.CanTransition(inv.Status, status) {
		return nil, fmt.Errorf("%w: invitation is %s", apperrors.ErrInvalidTransition, inv.Status)
	}
	now := time.Now()
	inv.Status = status
	inv.RespondedAt = &now
	out := *inv
	return &out, nil
}

func (m *mockTeamRepository) AcceptInvitation(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, *models.TeamMember, error) {
	inv, err := m.ResolveInvitation(ctx, id, models.InvitationAccepted)
	if err != nil {
		return nil, nil, err
	}
	if m.members[inv.TeamID] == nil {
		m.members[inv.TeamID] = make(map[uuid.UUID]*models.TeamMember)
	}
	member := &models.TeamMember{ID: uuid.New(), TeamID: inv.TeamID, UserID: inv.UserID, JoinedAt: time.Now()}
	m.members[inv.TeamID][inv.UserID] = member
	return inv, member, nil
}

var _ repositories.TeamRepository = (*mockTeamRepository)(nil)

// mockObjectStore keeps objects in memory.
type mockObjectStore struct {
	objects   map[string][]byte
	deleteErr error
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{objects: make(map[string][]byte)}
}

func (m *mockObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *mockObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

var _ storage.ObjectStore = (*mockObjectStore)(nil)

// mockEntityRepository reports existence for (table, id) pairs registered in rows.
type mockEntityRepository struct {
	rows   map[string]map[uuid.UUID]bool
	tables []string
}

func (m *mockEntityRepository) Exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	m.tables = append(m.tables, table)
	return m.rows[table][id], nil
}

var _ repositories.EntityRepository = (*mockEntityRepository)(nil)
