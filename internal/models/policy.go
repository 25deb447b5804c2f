package models

import "time"

// System booking-policy defaults, used when neither a teacher override nor a
// school setting provides a value.
const (
	DefaultMinimumNoticeMinutes = 120
	DefaultBufferMinutes        = 15
	DefaultTeacherDailyCap      = 8
	DefaultTeacherWeeklyCap     = 30
	DefaultStudentDailyCap      = 3
	DefaultStudentWeeklyCap     = 10
)

// BookingPolicy is the fully resolved, always-populated policy view consumed
// by the conflict detector and slot calculator. It is derived, never stored.
// Caps are never negative; a cap explicitly configured to zero means no
// bookings at all, not unlimited.
type BookingPolicy struct {
	MinimumNoticeMinutes int `json:"minimum_notice_minutes"`
	BufferMinutes        int `json:"buffer_minutes"`
	TeacherDailyCap      int `json:"teacher_daily_cap"`
	TeacherWeeklyCap     int `json:"teacher_weekly_cap"`
	StudentDailyCap      int `json:"student_daily_cap"`
	StudentWeeklyCap     int `json:"student_weekly_cap"`
}

// TeacherSchedulingProfile carries per-teacher policy overrides for one
// school. Nil fields defer to class-kind and school settings.
type TeacherSchedulingProfile struct {
	ID                   string     `db:"id" json:"id"`
	TeacherID            string     `db:"teacher_id" json:"teacher_id"`
	SchoolID             string     `db:"school_id" json:"school_id"`
	MinimumNoticeMinutes *int       `db:"minimum_notice_minutes" json:"minimum_notice_minutes,omitempty"`
	BufferMinutes        *int       `db:"buffer_minutes" json:"buffer_minutes,omitempty"`
	DailyCap             *int       `db:"daily_cap" json:"daily_cap,omitempty"`
	WeeklyCap            *int       `db:"weekly_cap" json:"weekly_cap,omitempty"`
	UpdatedAt            *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
