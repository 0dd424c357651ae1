package models

import (
	"time"

	"github.com/google/uuid"
)

// Team is a group of users led by exactly one manager.
type Team struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	ManagerID   uuid.UUID     `json:"managerId"`
	Manager     *UserSummary  `json:"manager,omitempty"`
	Members     []*TeamMember `json:"members,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// TeamMember is unique per (TeamID, UserID).
type TeamMember struct {
	ID       uuid.UUID    `json:"id"`
	TeamID   uuid.UUID    `json:"teamId"`
	UserID   uuid.UUID    `json:"userId"`
	User     *UserSummary `json:"user,omitempty"`
	JoinedAt time.Time    `json:"joinedAt"`
}

// InvitationStatus is the state of a TeamInvitation.
type InvitationStatus string

// Invitation states. Every state but pending is terminal.
const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationDeclined  InvitationStatus = "declined"
	InvitationCancelled InvitationStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s InvitationStatus) IsTerminal() bool {
	return s != InvitationPending
}

// CanTransition reports whether from -> to is a legal invitation transition.
func CanTransition(from, to InvitationStatus) bool {
	if from != InvitationPending {
		return false
	}
	switch to {
	case InvitationAccepted, InvitationDeclined, InvitationCancelled:
		return true
	default:
		return false
	}
}

// TeamInvitation invites a user to join a team.
// The record is kept as history once resolved.
type TeamInvitation struct {
	ID          uuid.UUID        `json:"id"`
	TeamID      uuid.UUID        `json:"teamId"`
	UserID      uuid.UUID        `json:"userId"`
	InvitedBy   uuid.UUID        `json:"invitedBy"`
	Status      InvitationStatus `json:"status"`
	Team        *Team            `json:"team,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty"`
}
