package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleOwner   UserRole = "OWNER"
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// IsSchoolStaff reports whether the role may administer a school's bookings.
func (r UserRole) IsSchoolStaff() bool {
	return r == RoleOwner || r == RoleAdmin
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Actor identifies who is invoking an engine operation. Callers are expected
// to have authenticated the user already; the engine only validates
// actor-eligibility per transition.
type Actor struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
