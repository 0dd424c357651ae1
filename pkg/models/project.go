// Package models contains domain types for ekaya-projects.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project status constants.
const (
	ProjectStatusPlanning  = "planning"
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
	ProjectStatusCancelled = "cancelled"
)

// ValidProjectStatuses contains all valid project status values.
var ValidProjectStatuses = []string{
	ProjectStatusPlanning, ProjectStatusActive, ProjectStatusOnHold,
	ProjectStatusCompleted, ProjectStatusCancelled,
}

// IsValidProjectStatus checks if the given project status is valid.
func IsValidProjectStatus(status string) bool {
	for _, s := range ValidProjectStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Project represents a project in the system.
type Project struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	StartDate   *time.Time       `json:"startDate,omitempty"`
	EndDate     *time.Time       `json:"endDate,omitempty"`
	CreatedBy   uuid.UUID        `json:"createdBy"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	Members     []*ProjectMember `json:"members,omitempty"`
}

// ProjectRole is the role a user holds within one project.
// It is evaluated independently of the user's GlobalRole.
type ProjectRole string

// Project-scoped role constants.
const (
	ProjectRoleLead       ProjectRole = "lead"
	ProjectRoleMember     ProjectRole = "member"
	ProjectRoleConsultant ProjectRole = "consultant"
	ProjectRoleObserver   ProjectRole = "observer"
)

// ValidProjectRoles contains all valid project-scoped role values.
var ValidProjectRoles = []ProjectRole{ProjectRoleLead, ProjectRoleMember, ProjectRoleConsultant, ProjectRoleObserver}

// IsValidProjectRole checks if the given project-scoped role is valid.
func IsValidProjectRole(role string) bool {
	for _, r := range ValidProjectRoles {
		if string(r) == role {
			return true
		}
	}
	return false
}

// ProjectMember is the pivot between a project and a user.
type ProjectMember struct {
	ProjectID uuid.UUID    `json:"projectId"`
	UserID    uuid.UUID    `json:"userId"`
	Role      ProjectRole  `json:"role"`
	User      *UserSummary `json:"user,omitempty"`
	JoinedAt  time.Time    `json:"joinedAt"`
}
