package auth

import (
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// Operation names one guarded action in the authorization matrix.
type Operation string

// Guarded operations. Reads only require authentication and are not listed.
const (
	OpUserCreate       Operation = "user.create"
	OpUserDeactivate   Operation = "user.deactivate"
	OpUserChangeRole   Operation = "user.change_role"
	OpUserUpdate       Operation = "user.update_profile"
	OpLogRead          Operation = "log.read"
	OpProjectCreate    Operation = "project.create"
	OpProjectUpdate    Operation = "project.update"
	OpProjectDelete    Operation = "project.delete"
	OpProjectMembers   Operation = "project.manage_members"
	OpTaskCreate       Operation = "task.create"
	OpTaskUpdate       Operation = "task.update"
	OpTaskDelete       Operation = "task.delete"
	OpDocumentUpload   Operation = "document.upload"
	OpDocumentDelete   Operation = "document.delete"
	OpMeetingCreate    Operation = "meeting.create"
	OpMeetingUpdate    Operation = "meeting.update"
	OpMeetingDelete    Operation = "meeting.delete"
	OpCommentUpdate    Operation = "comment.update"
	OpCommentDelete    Operation = "comment.delete"
	OpTeamCreate       Operation = "team.create"
	OpTeamUpdate       Operation = "team.update"
	OpTeamDelete       Operation = "team.delete"
	OpTeamInvite       Operation = "team.invite"
	OpTeamCancelInvite Operation = "team.cancel_invite"
	OpTeamRemoveMember Operation = "team.remove_member"
)

// Policy grants an operation to a set of global roles and, when Ownership is
// set, to any caller the service identifies as owner of the target
// (author, self, project lead, team manager, project member for creates).
type Policy struct {
	Roles     []models.GlobalRole
	Ownership bool
}

var (
	adminOnly     = []models.GlobalRole{models.RoleAdmin}
	managersAdmin = []models.GlobalRole{models.RoleProjectManager, models.RoleAdmin}
)

// policies is the single authorization matrix for the API.
var policies = map[Operation]Policy{
	OpUserCreate:     {Roles: adminOnly},
	OpUserDeactivate: {Roles: adminOnly},
	OpUserChangeRole: {Roles: adminOnly},
	OpUserUpdate:     {Roles: adminOnly, Ownership: true},
	OpLogRead:        {Roles: adminOnly},

	OpProjectCreate:  {Roles: managersAdmin},
	OpProjectUpdate:  {Roles: adminOnly, Ownership: true},
	OpProjectDelete:  {Roles: adminOnly, Ownership: true},
	OpProjectMembers: {Roles: adminOnly, Ownership: true},

	OpTaskCreate:     {Roles: adminOnly, Ownership: true},
	OpTaskUpdate:     {Roles: adminOnly, Ownership: true},
	OpTaskDelete:     {Roles: adminOnly, Ownership: true},
	OpDocumentUpload: {Roles: adminOnly, Ownership: true},
	OpDocumentDelete: {Roles: adminOnly, Ownership: true},
	OpMeetingCreate:  {Roles: adminOnly, Ownership: true},
	OpMeetingUpdate:  {Roles: adminOnly, Ownership: true},
	OpMeetingDelete:  {Roles: adminOnly, Ownership: true},

	// Admins may remove comments but never rewrite them.
	OpCommentUpdate: {Ownership: true},
	OpCommentDelete: {Roles: adminOnly, Ownership: true},

	OpTeamCreate:       {Roles: managersAdmin},
	OpTeamUpdate:       {Roles: adminOnly, Ownership: true},
	OpTeamDelete:       {Roles: adminOnly, Ownership: true},
	OpTeamInvite:       {Roles: adminOnly, Ownership: true},
	OpTeamCancelInvite: {Roles: adminOnly, Ownership: true},
	OpTeamRemoveMember: {Roles: adminOnly, Ownership: true},
}

// PolicyFor returns the policy registered for op.
func PolicyFor(op Operation) (Policy, bool) {
	p, ok := policies[op]
	return p, ok
}

// Allowed reports whether a caller with role may perform op, given whether
// the service determined the caller owns the target. Unknown operations are denied.
func Allowed(op Operation, role models.GlobalRole, isOwner bool) bool {
	p, ok := policies[op]
	if !ok {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return p.Ownership && isOwner
}

// RoleAllowed reports whether role alone grants op, ignoring ownership.
// Used by middleware, which never knows the target's owner.
func RoleAllowed(op Operation, role models.GlobalRole) bool {
	return Allowed(op, role, false)
}
