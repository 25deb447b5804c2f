package models

import "time"

// ConflictKind names the specific collision a candidate booking ran into.
type ConflictKind string

const (
	ConflictTeacherOverlap ConflictKind = "teacher_overlap"
	ConflictTeacherBuffer  ConflictKind = "teacher_buffer"
	ConflictStudentDouble  ConflictKind = "student_double_booking"
	ConflictStudentCross   ConflictKind = "student_cross_school"
	ConflictGroupCapacity  ConflictKind = "group_capacity"
	ConflictUnavailability ConflictKind = "unavailability"
)

// BookingConflict describes a detected collision with enough detail for a
// caller to explain the failure to an end user.
type BookingConflict struct {
	Kind              ConflictKind `json:"kind"`
	Message           string       `json:"message"`
	SessionID         string       `json:"session_id,omitempty"`
	UnavailabilityID  string       `json:"unavailability_id,omitempty"`
	StudentID         string       `json:"student_id,omitempty"`
	SchoolID          string       `json:"school_id,omitempty"`
	BufferMinutes     int          `json:"buffer_minutes"`
	EarliestAvailable *time.Time   `json:"earliest_available,omitempty"`
}

// BookingConflictError wraps a conflict as an error for the service layer.
type BookingConflictError struct {
	Conflict BookingConflict `json:"conflict"`
}

// Error implements the error interface.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Conflict.Message
}
