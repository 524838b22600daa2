package users

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	// RoleAdmin holds full administrative override on any workflow.
	RoleAdmin Role = "admin"
	// RoleReviewer may act on any workflow, not just assigned stages.
	RoleReviewer Role = "reviewer"
	RoleEmployee Role = "employee"
)

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Avatar       string    `json:"avatar,omitempty" db:"avatar"`
	Role         Role      `json:"role" db:"role"`
	Department   string    `json:"department,omitempty" db:"department"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// IsPrivileged reports whether the user's role grants workflow access beyond
// stage assignment.
func (u *User) IsPrivileged() bool {
	return u.Role == RoleAdmin || u.Role == RoleReviewer
}
