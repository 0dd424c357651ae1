//go:build integration

package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/testhelpers"
)

type projectTestContext struct {
	t        *testing.T
	testDB   *testhelpers.TestDB
	repo     ProjectRepository
	leadID   uuid.UUID
	memberID uuid.UUID
}

func setupProjectTest(t *testing.T) *projectTestContext {
	testDB := testhelpers.GetTestDB(t)
	tc := &projectTestContext{
		t:        t,
		testDB:   testDB,
		repo:     NewProjectRepository(),
		leadID:   testDB.CreateUser(t, "project_manager"),
		memberID: testDB.CreateUser(t, "consultant"),
	}
	t.Cleanup(func() {
		testDB.Exec(t, "DELETE FROM projects WHERE created_by = $1", tc.leadID)
		testDB.Exec(t, "DELETE FROM users WHERE id = ANY($1)", []uuid.UUID{tc.leadID, tc.memberID})
	})
	return tc
}

func (tc *projectTestContext) newProject(name string) *models.Project {
	start := time.Now().UTC().Truncate(time.Second)
	return &models.Project{
		Name:        name,
		Description: "integration test project",
		StartDate:   &start,
		CreatedBy:   tc.leadID,
	}
}

func TestProjectRepository_CreateAddsLead(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := tc.testDB.Context(t)

	p := tc.newProject("Apollo")
	require.NoError(t, tc.repo.Create(ctx, p, tc.leadID))

	got, err := tc.repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", got.Name)
	assert.Equal(t, models.ProjectStatusPlanning, got.Status)
	require.NotNil(t, got.StartDate)

	lead, err := tc.repo.GetMember(ctx, p.ID, tc.leadID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectRoleLead, lead.Role)
}

func TestProjectRepository_Create_RollsBackOnBadLead(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := tc.testDB.Context(t)

	p := tc.newProject("Orphan")
	err := tc.repo.Create(ctx, p, uuid.New())
	require.Error(t, err)

	_, err = tc.repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProjectRepository_Members(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := tc.testDB.Context(t)

	p := tc.newProject("Gemini")
	require.NoError(t, tc.repo.Create(ctx, p, tc.leadID))

	m := &models.ProjectMember{ProjectID: p.ID, UserID: tc.memberID, Role: models.ProjectRoleObserver}
	require.NoError(t, tc.repo.UpsertMember(ctx, m))
	assert.False(t, m.JoinedAt.IsZero())

	m.Role = models.ProjectRoleMember
	require.NoError(t, tc.repo.UpsertMember(ctx, m))

	members, err := tc.repo.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	roles := map[uuid.UUID]models.ProjectRole{}
	for _, member := range members {
		roles[member.UserID] = member.Role
		require.NotNil(t, member.User)
		assert.NotEmpty(t, member.User.Email)
	}
	assert.Equal(t, models.ProjectRoleLead, roles[tc.leadID])
	assert.Equal(t, models.ProjectRoleMember, roles[tc.memberID])

	mine, err := tc.repo.List(ctx, &tc.memberID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ID, mine[0].ID)

	require.NoError(t, tc.repo.RemoveMember(ctx, p.ID, tc.memberID))
	_, err = tc.repo.GetMember(ctx, p.ID, tc.memberID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, tc.repo.RemoveMember(ctx, p.ID, tc.memberID), apperrors.ErrNotFound)
}

func TestProjectRepository_UpdateDelete(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := tc.testDB.Context(t)

	p := tc.newProject("Mercury")
	require.NoError(t, tc.repo.Create(ctx, p, tc.leadID))

	p.Status = models.ProjectStatusActive
	p.Name = "Mercury II"
	require.NoError(t, tc.repo.Update(ctx, p))

	got, err := tc.repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mercury II", got.Name)
	assert.Equal(t, models.ProjectStatusActive, got.Status)

	require.NoError(t, tc.repo.Delete(ctx, p.ID))
	_, err = tc.repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, tc.repo.Delete(ctx, p.ID), apperrors.ErrNotFound)
}

func TestEntityRepository_Exists(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := tc.testDB.Context(t)
	repo := NewEntityRepository()

	p := tc.newProject("Exists")
	require.NoError(t, tc.repo.Create(ctx, p, tc.leadID))

	ok, err := repo.Exists(ctx, "projects", p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "tasks", p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
