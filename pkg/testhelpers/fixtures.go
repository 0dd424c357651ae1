package testhelpers

import (
	"testing"

	"github.com/google/uuid"
)

// CreateUser inserts an active user with the given global role and returns its ID.
func (tdb *TestDB) CreateUser(t *testing.T, role string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	short := id.String()[:8]
	tdb.Exec(t, `
		INSERT INTO users (id, name, username, email, password_hash, role)
		VALUES ($1, $2, $3, $4, 'x', $5)`,
		id, "User "+short, "user_"+short, short+"@example.com", role)
	return id
}

// CreateProject inserts a project created by ownerID and returns its ID.
// ownerID is not added as a member.
func (tdb *TestDB) CreateProject(t *testing.T, ownerID uuid.UUID) uuid.UUID {
	t.Helper()

	id := uuid.New()
	tdb.Exec(t, `INSERT INTO projects (id, name, created_by) VALUES ($1, $2, $3)`,
		id, "Project "+id.String()[:8], ownerID)
	return id
}
