package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

func TestTeamsHandler_Invite(t *testing.T) {
	svc := newTestServices()
	mux := newTestMux(svc, uuid.New(), models.RoleProjectManager)
	inviteeID := uuid.New()

	rec, env := serve(t, mux, http.MethodPost, "/api/teams/"+uuid.NewString()+"/invitations",
		fmt.Sprintf(`{"userId":%q}`, inviteeID))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, inviteeID, svc.teams.invitedID)

	var inv models.TeamInvitation
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	assert.Equal(t, models.InvitationPending, inv.Status)
}

func TestTeamsHandler_InviteRequiresUser(t *testing.T) {
	svc := newTestServices()
	mux := newTestMux(svc, uuid.New(), models.RoleProjectManager)

	rec, env := serve(t, mux, http.MethodPost, "/api/teams/"+uuid.NewString()+"/invitations", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_user_id", env.Error)
	assert.Equal(t, uuid.Nil, svc.teams.invitedID)
}

func TestTeamsHandler_InviteErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"pending invitation exists", fmt.Errorf("%w: invitation already pending", apperrors.ErrConflict), http.StatusConflict, "conflict"},
		{"not the manager", apperrors.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"team missing", apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestServices()
			svc.teams.err = tt.err
			mux := newTestMux(svc, uuid.New(), models.RoleProjectManager)

			rec, env := serve(t, mux, http.MethodPost, "/api/teams/"+uuid.NewString()+"/invitations",
				fmt.Sprintf(`{"userId":%q}`, uuid.New()))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, env.Error)
		})
	}
}

func TestTeamsHandler_InvitationTransitions(t *testing.T) {
	tests := []struct {
		action     string
		wantStatus models.InvitationStatus
	}{
		{"accept", models.InvitationAccepted},
		{"decline", models.InvitationDeclined},
		{"cancel", models.InvitationCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			svc := newTestServices()
			mux := newTestMux(svc, uuid.New(), models.RoleConsultant)
			invID := uuid.New()

			rec, env := serve(t, mux, http.MethodPost, "/api/invitations/"+invID.String()+"/"+tt.action, "")

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.action, svc.teams.lastCall)

			var inv models.TeamInvitation
			require.NoError(t, json.Unmarshal(env.Data, &inv))
			assert.Equal(t, invID, inv.ID)
			assert.Equal(t, tt.wantStatus, inv.Status)
		})
	}
}

func TestTeamsHandler_ResolvedInvitationIsAConflict(t *testing.T) {
	svc := newTestServices()
	svc.teams.err = fmt.Errorf("%w: invitation is accepted", apperrors.ErrInvalidTransition)
	mux := newTestMux(svc, uuid.New(), models.RoleConsultant)

	rec, env := serve(t, mux, http.MethodPost, "/api/invitations/"+uuid.NewString()+"/decline", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", env.Error)
}

func TestTeamsHandler_PendingInvitationsEmpty(t *testing.T) {
	mux := newTestMux(newTestServices(), uuid.New(), models.RoleConsultant)

	rec, env := serve(t, mux, http.MethodGet, "/api/invitations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestTeamsHandler_RemoveMember(t *testing.T) {
	mux := newTestMux(newTestServices(), uuid.New(), models.RoleProjectManager)

	rec, _ := serve(t, mux, http.MethodDelete, "/api/teams/"+uuid.NewString()+"/members/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env := serve(t, mux, http.MethodDelete, "/api/teams/"+uuid.NewString()+"/members/bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_user_id", env.Error)
}
