package models

import (
	"time"

	"github.com/google/uuid"
)

// GlobalRole is the system-wide role carried on the user record.
// It is distinct from ProjectRole, which only applies within one project.
type GlobalRole string

// Global role constants.
const (
	RoleAdmin          GlobalRole = "admin"
	RoleProjectManager GlobalRole = "project_manager"
	RoleConsultant     GlobalRole = "consultant"
)

// ValidRoles contains all valid global role values.
var ValidRoles = []GlobalRole{RoleAdmin, RoleProjectManager, RoleConsultant}

// IsValidRole checks if the given global role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if string(r) == role {
			return true
		}
	}
	return false
}

// User is an account able to authenticate against the API.
// Users are deactivated, never hard-deleted.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         GlobalRole `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the global admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserSummary is the minimal author identity joined onto comments and members.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Summary returns the minimal identity of the user.
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}
