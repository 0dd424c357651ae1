package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit entity types beyond the commentable EntityType set.
const (
	AuditEntityComment    = "comment"
	AuditEntityUser       = "user"
	AuditEntityProject    = "project"
	AuditEntityTask       = "task"
	AuditEntityDocument   = "document"
	AuditEntityMeeting    = "meeting"
	AuditEntityTeam       = "team"
	AuditEntityInvitation = "team_invitation"
)

// Audit action tags. The set is open; these are the ones the API emits.
const (
	ActionCreateComment = "CREATE_COMMENT"
	ActionUpdateComment = "UPDATE_COMMENT"
	ActionDeleteComment = "DELETE_COMMENT"

	ActionRegisterUser   = "REGISTER_USER"
	ActionLoginUser      = "LOGIN"
	ActionLogoutUser     = "LOGOUT"
	ActionCreateUser     = "CREATE_USER"
	ActionUpdateUser     = "UPDATE_USER"
	ActionDeactivateUser = "DEACTIVATE_USER"

	ActionCreateProject       = "CREATE_PROJECT"
	ActionUpdateProject       = "UPDATE_PROJECT"
	ActionDeleteProject       = "DELETE_PROJECT"
	ActionAddProjectMember    = "ADD_PROJECT_MEMBER"
	ActionRemoveProjectMember = "REMOVE_PROJECT_MEMBER"

	ActionCreateTask       = "CREATE_TASK"
	ActionUpdateTask       = "UPDATE_TASK"
	ActionUpdateTaskStatus = "UPDATE_TASK_STATUS"
	ActionDeleteTask       = "DELETE_TASK"

	ActionUploadDocument = "UPLOAD_DOCUMENT"
	ActionDeleteDocument = "DELETE_DOCUMENT"

	ActionCreateMeeting = "CREATE_MEETING"
	ActionUpdateMeeting = "UPDATE_MEETING"
	ActionDeleteMeeting = "DELETE_MEETING"

	ActionCreateTeam        = "CREATE_TEAM"
	ActionUpdateTeam        = "UPDATE_TEAM"
	ActionDeleteTeam        = "DELETE_TEAM"
	ActionRemoveTeamMember  = "REMOVE_TEAM_MEMBER"
	ActionInviteTeamMember  = "INVITE_TEAM_MEMBER"
	ActionAcceptInvitation  = "ACCEPT_TEAM_INVITATION"
	ActionDeclineInvitation = "DECLINE_TEAM_INVITATION"
	ActionCancelInvitation  = "CANCEL_TEAM_INVITATION"
)

// Snapshot is a structured before/after image of a record.
// A nil Snapshot is stored as SQL NULL.
type Snapshot map[string]any

// Value implements driver.Valuer for JSONB serialization.
func (s Snapshot) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB deserialization.
func (s *Snapshot) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Snapshot", value)
	}

	if len(bytes) == 0 || string(bytes) == "null" {
		*s = nil
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// AuditLog is one append-only entry in the audit ledger.
// Entries are immutable once written.
type AuditLog struct {
	ID          uuid.UUID `json:"id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	EntityType  string    `json:"entityType"`
	EntityID    uuid.UUID `json:"entityId"`
	OldValue    Snapshot  `json:"oldValue"`
	NewValue    Snapshot  `json:"newValue"`
	PerformedBy uuid.UUID `json:"performedBy"`
	IPAddress   *string   `json:"ipAddress,omitempty"`
	UserAgent   *string   `json:"userAgent,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
