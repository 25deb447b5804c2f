package models

import "time"

// Days of week as stored in day_of_week columns.
const (
	DayMonday    = "MONDAY"
	DayTuesday   = "TUESDAY"
	DayWednesday = "WEDNESDAY"
	DayThursday  = "THURSDAY"
	DayFriday    = "FRIDAY"
	DaySaturday  = "SATURDAY"
	DaySunday    = "SUNDAY"
)

// ValidDays enumerates the accepted day_of_week values.
var ValidDays = map[string]bool{
	DayMonday:    true,
	DayTuesday:   true,
	DayWednesday: true,
	DayThursday:  true,
	DayFriday:    true,
	DaySaturday:  true,
	DaySunday:    true,
}

// TeacherAvailability is a recurring weekly window during which a teacher can
// be booked. Overlapping windows for the same teacher/day are permitted.
type TeacherAvailability struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	DayOfWeek string    `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Active    bool      `db:"active" json:"active"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherUnavailability is a date-scoped exception overriding availability for
// that date only. When IsAllDay is false, StartTime and EndTime are required.
type TeacherUnavailability struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Date      time.Time `db:"unavailable_date" json:"date"`
	StartTime *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime   *string   `db:"end_time" json:"end_time,omitempty"`
	IsAllDay  bool      `db:"is_all_day" json:"is_all_day"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
