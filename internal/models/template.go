package models

import "time"

// RecurringSessionTemplate generates one scheduled session per matching
// calendar date inside its validity window. Expansion is idempotent: a session
// tagged with the template id already existing for (teacher, student, school,
// date, start_time) is never duplicated.
type RecurringSessionTemplate struct {
	ID              string     `db:"id" json:"id"`
	TeacherID       string     `db:"teacher_id" json:"teacher_id"`
	StudentID       string     `db:"student_id" json:"student_id"`
	SchoolID        string     `db:"school_id" json:"school_id"`
	DayOfWeek       string     `db:"day_of_week" json:"day_of_week"`
	StartTime       string     `db:"start_time" json:"start_time"`
	EndTime         string     `db:"end_time" json:"end_time"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Kind            ClassKind  `db:"kind" json:"kind"`
	StartDate       time.Time  `db:"start_date" json:"start_date"`
	EndDate         *time.Time `db:"end_date" json:"end_date,omitempty"`
	Active          bool       `db:"active" json:"active"`
	CreatedBy       string     `db:"created_by" json:"created_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
