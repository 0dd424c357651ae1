package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/services"
)

// mockAuthService authenticates every request as principal.
// A nil principal rejects requests as unauthenticated.
type mockAuthService struct {
	claims    *auth.Claims
	principal *auth.Principal
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if m.principal == nil {
		return nil, "", auth.ErrMissingAuthorization
	}
	return m.claims, "test-token", nil
}

func (m *mockAuthService) ResolvePrincipal(ctx context.Context, claims *auth.Claims) (*auth.Principal, error) {
	return m.principal, nil
}

// newTestMiddleware returns auth middleware that resolves every request to a
// caller with the given id and role. role == "" leaves requests unauthenticated.
func newTestMiddleware(userID uuid.UUID, role models.GlobalRole) *auth.Middleware {
	svc := &mockAuthService{}
	if role != "" {
		claims := &auth.Claims{Role: string(role)}
		claims.Subject = userID.String()
		claims.ID = uuid.NewString()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
		svc.claims = claims
		svc.principal = &auth.Principal{UserID: userID, Role: role, Email: "caller@example.com", Name: "Caller"}
	}
	return auth.NewMiddleware(svc, zap.NewNop())
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

// mockUserService implements services.UserService.
type mockUserService struct {
	session       *services.Session
	user          *models.User
	err           error
	loginArg      string
	logoutClaims  *auth.Claims
	listInactive  bool
	deactivatedID uuid.UUID
}

func (m *mockUserService) Register(ctx context.Context, in services.RegisterInput) (*services.Session, error) {
	return m.session, m.err
}

func (m *mockUserService) Login(ctx context.Context, login, password string) (*services.Session, error) {
	m.loginArg = login
	return m.session, m.err
}

func (m *mockUserService) Logout(ctx context.Context, claims *auth.Claims) error {
	m.logoutClaims = claims
	return m.err
}

func (m *mockUserService) Create(ctx context.Context, in services.CreateUserInput) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.User{ID: uuid.New(), Name: in.Name, Email: in.Email, Role: in.Role, IsActive: true}, nil
}

func (m *mockUserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.user != nil {
		return m.user, nil
	}
	return &models.User{ID: id, IsActive: true}, nil
}

func (m *mockUserService) List(ctx context.Context, includeInactive bool) ([]*models.User, error) {
	m.listInactive = includeInactive
	return nil, m.err
}

func (m *mockUserService) Update(ctx context.Context, id uuid.UUID, in services.UpdateUserInput) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.User{ID: id}, nil
}

func (m *mockUserService) Deactivate(ctx context.Context, id uuid.UUID) error {
	m.deactivatedID = id
	return m.err
}

func (m *mockUserService) EnsureAdmin(ctx context.Context, in services.RegisterInput) (*models.User, bool, error) {
	return m.user, false, m.err
}

// mockProjectService implements services.ProjectService.
type mockProjectService struct {
	err error
}

func (m *mockProjectService) Create(ctx context.Context, in services.ProjectInput) (*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	project := &models.Project{ID: uuid.New()}
	if in.Name != nil {
		project.Name = *in.Name
	}
	return project, nil
}

func (m *mockProjectService) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Project{ID: id, Name: "Test Project"}, nil
}

func (m *mockProjectService) List(ctx context.Context) ([]*models.Project, error) {
	return nil, m.err
}

func (m *mockProjectService) Update(ctx context.Context, id uuid.UUID, in services.ProjectInput) (*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Project{ID: id}, nil
}

func (m *mockProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

func (m *mockProjectService) AddMember(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) (*models.ProjectMember, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}, nil
}

func (m *mockProjectService) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	return m.err
}

// mockTaskService implements services.TaskService.
type mockTaskService struct {
	err        error
	projectID  uuid.UUID
	statusSeen string
}

func (m *mockTaskService) Create(ctx context.Context, projectID uuid.UUID, in services.TaskInput) (*models.Task, error) {
	m.projectID = projectID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Task{ID: uuid.New(), ProjectID: projectID}, nil
}

func (m *mockTaskService) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Task{ID: id}, nil
}

func (m *mockTaskService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Task, error) {
	return nil, m.err
}

func (m *mockTaskService) Update(ctx context.Context, id uuid.UUID, in services.TaskInput) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Task{ID: id}, nil
}

func (m *mockTaskService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Task, error) {
	m.statusSeen = status
	if m.err != nil {
		return nil, m.err
	}
	return &models.Task{ID: id, Status: status}, nil
}

func (m *mockTaskService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

// mockDocumentService implements services.DocumentService.
type mockDocumentService struct {
	err      error
	uploaded services.UploadInput
	content  []byte
	doc      *models.Document
}

func (m *mockDocumentService) Upload(ctx context.Context, projectID uuid.UUID, in services.UploadInput) (*models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.uploaded = in
	m.content = body
	return &models.Document{ID: uuid.New(), ProjectID: projectID, Title: in.Title, FileName: in.FileName, SizeBytes: int64(len(body))}, nil
}

func (m *mockDocumentService) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

func (m *mockDocumentService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Document, error) {
	return nil, m.err
}

func (m *mockDocumentService) Open(ctx context.Context, id uuid.UUID) (*models.Document, io.ReadCloser, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.doc, io.NopCloser(strings.NewReader(string(m.content))), nil
}

func (m *mockDocumentService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

// mockMeetingService implements services.MeetingService.
type mockMeetingService struct {
	err       error
	projectID uuid.UUID
	input     services.MeetingInput
}

func (m *mockMeetingService) Create(ctx context.Context, projectID uuid.UUID, in services.MeetingInput) (*models.Meeting, error) {
	m.projectID = projectID
	m.input = in
	if m.err != nil {
		return nil, m.err
	}
	return &models.Meeting{ID: uuid.New(), ProjectID: projectID}, nil
}

func (m *mockMeetingService) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Meeting{ID: id}, nil
}

func (m *mockMeetingService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Meeting, error) {
	return nil, m.err
}

func (m *mockMeetingService) Update(ctx context.Context, id uuid.UUID, in services.MeetingInput) (*models.Meeting, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Meeting{ID: id}, nil
}

func (m *mockMeetingService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

// mockTeamService implements services.TeamService.
type mockTeamService struct {
	err       error
	invitedID uuid.UUID
	lastCall  string
}

func (m *mockTeamService) Create(ctx context.Context, in services.TeamInput) (*models.Team, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Team{ID: uuid.New()}, nil
}

func (m *mockTeamService) GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Team{ID: id}, nil
}

func (m *mockTeamService) List(ctx context.Context) ([]*models.Team, error) {
	return nil, m.err
}

func (m *mockTeamService) Update(ctx context.Context, id uuid.UUID, in services.TeamInput) (*models.Team, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Team{ID: id}, nil
}

func (m *mockTeamService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

func (m *mockTeamService) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	return m.err
}

func (m *mockTeamService) Invite(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamInvitation, error) {
	m.invitedID = userID
	if m.err != nil {
		return nil, m.err
	}
	return &models.TeamInvitation{ID: uuid.New(), TeamID: teamID, UserID: userID, Status: models.InvitationPending}, nil
}

func (m *mockTeamService) PendingInvitations(ctx context.Context) ([]*models.TeamInvitation, error) {
	return nil, m.err
}

func (m *mockTeamService) Accept(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, error) {
	return m.resolve("accept", id, models.InvitationAccepted)
}

func (m *mockTeamService) Decline(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, error) {
	return m.resolve("decline", id, models.InvitationDeclined)
}

func (m *mockTeamService) Cancel(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, error) {
	return m.resolve("cancel", id, models.InvitationCancelled)
}

func (m *mockTeamService) resolve(call string, id uuid.UUID, status models.InvitationStatus) (*models.TeamInvitation, error) {
	m.lastCall = call
	if m.err != nil {
		return nil, m.err
	}
	return &models.TeamInvitation{ID: id, Status: status}, nil
}

// mockAuditService implements services.AuditService.
type mockAuditService struct {
	err         error
	limit       int
	entityType  string
	action      string
	start, end  time.Time
	logs        []*models.AuditLog
	recordCalls int
}

func (m *mockAuditService) Record(ctx context.Context, entry services.AuditEntry) *models.AuditLog {
	m.recordCalls++
	return &models.AuditLog{Action: entry.Action}
}

func (m *mockAuditService) RecentLogs(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	m.limit = limit
	return m.logs, m.err
}

func (m *mockAuditService) LogsForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	m.limit = limit
	return m.logs, m.err
}

func (m *mockAuditService) LogsForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLog, error) {
	m.entityType = entityType
	return m.logs, m.err
}

func (m *mockAuditService) LogsByAction(ctx context.Context, action string, limit int) ([]*models.AuditLog, error) {
	m.action = action
	m.limit = limit
	return m.logs, m.err
}

func (m *mockAuditService) LogsInPeriod(ctx context.Context, start, end time.Time) ([]*models.AuditLog, error) {
	m.start, m.end = start, end
	return m.logs, m.err
}

var (
	_ services.UserService     = (*mockUserService)(nil)
	_ services.ProjectService  = (*mockProjectService)(nil)
	_ services.TaskService     = (*mockTaskService)(nil)
	_ services.DocumentService = (*mockDocumentService)(nil)
	_ services.MeetingService  = (*mockMeetingService)(nil)
	_ services.TeamService     = (*mockTeamService)(nil)
	_ services.AuditService    = (*mockAuditService)(nil)
	_ services.CommentService  = (*mockCommentService)(nil)
)

// mockCommentService implements services.CommentService.
type mockCommentService struct {
	err        error
	created    services.CreateCommentInput
	list       *models.CommentList
	entityType string
	callerID   uuid.UUID
	callerRole models.GlobalRole
	body       string
}

func (m *mockCommentService) Create(ctx context.Context, in services.CreateCommentInput) (*models.Comment, error) {
	m.created = in
	if m.err != nil {
		return nil, m.err
	}
	return &models.Comment{
		ID:         uuid.New(),
		EntityType: models.EntityType(in.EntityType),
		EntityID:   in.EntityID,
		UserID:     in.AuthorID,
		Body:       in.Body,
		ParentID:   in.ParentID,
	}, nil
}

func (m *mockCommentService) List(ctx context.Context, entityType string, entityID uuid.UUID) (*models.CommentList, error) {
	m.entityType = entityType
	if m.err != nil {
		return nil, m.err
	}
	if m.list != nil {
		return m.list, nil
	}
	return &models.CommentList{Comments: []*models.CommentThread{}}, nil
}

func (m *mockCommentService) Update(ctx context.Context, commentID, callerID uuid.UUID, body string) (*models.Comment, error) {
	m.callerID = callerID
	m.body = body
	if m.err != nil {
		return nil, m.err
	}
	return &models.Comment{ID: commentID, UserID: callerID, Body: body}, nil
}

func (m *mockCommentService) Delete(ctx context.Context, commentID, callerID uuid.UUID, callerRole models.GlobalRole) error {
	m.callerID = callerID
	m.callerRole = callerRole
	return m.err
}
