package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

func TestProjectAccess_ProjectRoleNotGlobalRole(t *testing.T) {
	f := newWorkFixture(t)

	// A global project_manager without a lead membership has no lead rights.
	_, err := f.access.AuthorizeLead(asCaller(f.member, models.RoleProjectManager), auth.OpProjectUpdate, f.projectID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	// A consultant holding the project-scoped lead role does.
	p, err := f.access.AuthorizeLead(asCaller(f.lead, models.RoleConsultant), auth.OpProjectUpdate, f.projectID)
	require.NoError(t, err)
	assert.Equal(t, f.lead, p.UserID)
}

func TestProjectAccess_AuthorizeLead_Owners(t *testing.T) {
	f := newWorkFixture(t)
	owner := uuid.New()

	_, err := f.access.AuthorizeLead(asCaller(owner, models.RoleConsultant), auth.OpMeetingUpdate, f.projectID, owner)
	assert.NoError(t, err)

	_, err = f.access.AuthorizeLead(asCaller(owner, models.RoleConsultant), auth.OpMeetingUpdate, f.projectID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestProjectAccess_AuthorizeMember(t *testing.T) {
	f := newWorkFixture(t)

	tests := []struct {
		name    string
		caller  uuid.UUID
		role    models.GlobalRole
		allowed bool
	}{
		{"lead", f.lead, models.RoleConsultant, true},
		{"member", f.member, models.RoleConsultant, true},
		{"observer", f.observer, models.RoleConsultant, false},
		{"outsider", uuid.New(), models.RoleProjectManager, false},
		{"admin outsider", uuid.New(), models.RoleAdmin, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.access.AuthorizeMember(asCaller(tt.caller, tt.role), auth.OpTaskCreate, f.projectID)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrForbidden)
			}
		})
	}
}

func TestProjectAccess_Unauthenticated(t *testing.T) {
	f := newWorkFixture(t)
	_, err := f.access.AuthorizeMember(t.Context(), auth.OpTaskCreate, f.projectID)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
