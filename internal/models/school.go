package models

import (
	"time"

	"github.com/edusched/edusched-api/internal/timeutil"
)

// School represents a tutoring school (tenant) with its configured timezone.
type School struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Location resolves the school's IANA timezone, defaulting to UTC when unset
// or invalid.
func (s *School) Location() *time.Location {
	if s == nil {
		return time.UTC
	}
	return timeutil.LocationFor(s.Timezone)
}

// SchoolSettings holds a school's optional booking-policy defaults. Nil fields
// fall through to the system defaults during resolution.
type SchoolSettings struct {
	SchoolID             string     `db:"school_id" json:"school_id"`
	MinimumNoticeMinutes *int       `db:"minimum_notice_minutes" json:"minimum_notice_minutes,omitempty"`
	BufferMinutes        *int       `db:"buffer_minutes" json:"buffer_minutes,omitempty"`
	GroupBufferMinutes   *int       `db:"group_buffer_minutes" json:"group_buffer_minutes,omitempty"`
	TrialBufferMinutes   *int       `db:"trial_buffer_minutes" json:"trial_buffer_minutes,omitempty"`
	TeacherDailyCap      *int       `db:"teacher_daily_cap" json:"teacher_daily_cap,omitempty"`
	TeacherWeeklyCap     *int       `db:"teacher_weekly_cap" json:"teacher_weekly_cap,omitempty"`
	StudentDailyCap      *int       `db:"student_daily_cap" json:"student_daily_cap,omitempty"`
	StudentWeeklyCap     *int       `db:"student_weekly_cap" json:"student_weekly_cap,omitempty"`
	UpdatedAt            *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Membership links a user to a school with a role. The engine consumes it
// read-only to gate lifecycle transitions and cross-school conflict checks.
type Membership struct {
	ID       string   `db:"id" json:"id"`
	UserID   string   `db:"user_id" json:"user_id"`
	SchoolID string   `db:"school_id" json:"school_id"`
	Role     UserRole `db:"role" json:"role"`
	Active   bool     `db:"active" json:"active"`
}
