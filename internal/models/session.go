package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ClassKind distinguishes session formats.
type ClassKind string

const (
	KindIndividual ClassKind = "INDIVIDUAL"
	KindGroup      ClassKind = "GROUP"
	KindTrial      ClassKind = "TRIAL"
)

// ValidKinds enumerates the accepted class kinds.
var ValidKinds = map[ClassKind]bool{
	KindIndividual: true,
	KindGroup:      true,
	KindTrial:      true,
}

// SessionStatus is the lifecycle state of a booked class session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionConfirmed SessionStatus = "CONFIRMED"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
	SessionRejected  SessionStatus = "REJECTED"
	SessionNoShow    SessionStatus = "NO_SHOW"
)

// IsTerminal reports whether no further transitions are permitted.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionCancelled, SessionRejected, SessionNoShow:
		return true
	}
	return false
}

// IsActive reports whether the session still occupies its slot.
func (s SessionStatus) IsActive() bool {
	return s == SessionScheduled || s == SessionConfirmed
}

// NoShowType attributes a no-show to one side of the session.
type NoShowType string

const (
	NoShowStudent NoShowType = "STUDENT"
	NoShowTeacher NoShowType = "TEACHER"
)

// ClassSession is the booked unit of work and the unit of truth for booking
// state. Wall-clock times are local to the owning school's timezone.
type ClassSession struct {
	ID              string        `db:"id" json:"id"`
	TeacherID       string        `db:"teacher_id" json:"teacher_id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	SchoolID        string        `db:"school_id" json:"school_id"`
	TemplateID      *string       `db:"template_id" json:"template_id,omitempty"`
	Date            time.Time     `db:"session_date" json:"date"`
	StartTime       string        `db:"start_time" json:"start_time"`
	EndTime         string        `db:"end_time" json:"end_time"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	Kind            ClassKind     `db:"kind" json:"kind"`
	Status          SessionStatus `db:"status" json:"status"`
	MaxParticipants *int          `db:"max_participants" json:"max_participants,omitempty"`
	Metadata        types.JSONText `db:"metadata" json:"metadata,omitempty"`
	Notes           *string       `db:"notes" json:"notes,omitempty"`
	CreatedBy       string        `db:"created_by" json:"created_by"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`

	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ConfirmedBy *string    `db:"confirmed_by" json:"confirmed_by,omitempty"`

	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy  *string    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelReason *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`

	CompletedAt           *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy           *string    `db:"completed_by" json:"completed_by,omitempty"`
	ActualDurationMinutes *int       `db:"actual_duration_minutes" json:"actual_duration_minutes,omitempty"`

	RejectedAt *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectedBy *string    `db:"rejected_by" json:"rejected_by,omitempty"`

	NoShowAt     *time.Time  `db:"no_show_at" json:"no_show_at,omitempty"`
	NoShowBy     *string     `db:"no_show_by" json:"no_show_by,omitempty"`
	NoShowType   *NoShowType `db:"no_show_type" json:"no_show_type,omitempty"`
	NoShowReason *string     `db:"no_show_reason" json:"no_show_reason,omitempty"`

	// Additional participant user ids for group sessions, loaded from the
	// class_session_participants join table.
	Participants []string `db:"-" json:"participants,omitempty"`
}

// ParticipantCount returns the current headcount including the primary student.
func (s *ClassSession) ParticipantCount() int {
	return 1 + len(s.Participants)
}

// IsAtCapacity reports whether a group session can accept no more participants.
func (s *ClassSession) IsAtCapacity() bool {
	if s.Kind != KindGroup || s.MaxParticipants == nil {
		return false
	}
	return s.ParticipantCount() >= *s.MaxParticipants
}

// AllParticipantIDs returns the primary student plus additional participants.
func (s *ClassSession) AllParticipantIDs() []string {
	ids := make([]string, 0, 1+len(s.Participants))
	ids = append(ids, s.StudentID)
	ids = append(ids, s.Participants...)
	return ids
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	SchoolID  string
	TeacherID string
	StudentID string
	Status    string
	Kind      string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
