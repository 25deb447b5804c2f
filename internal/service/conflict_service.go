package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/internal/timeutil"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
)

type conflictSessionRepository interface {
	ListActiveByTeacherDateRange(ctx context.Context, teacherID, schoolID string, from, to time.Time) ([]models.ClassSession, error)
	ListActiveByStudentSchools(ctx context.Context, studentID string, schoolIDs []string, from, to time.Time) ([]models.ClassSession, error)
}

type conflictSchoolRepository interface {
	ListTimezones(ctx context.Context, schoolIDs []string) (map[string]string, error)
}

type conflictMembershipRepository interface {
	ListActiveSchoolIDs(ctx context.Context, userID string) ([]string, error)
}

// BookingCandidate is a would-be session checked against existing state.
// StudentIDs holds the primary student first, then any extra participants.
type BookingCandidate struct {
	TeacherID  string
	StudentIDs []string
	SchoolID   string
	Date       time.Time
	StartMin   int
	EndMin     int
	Kind       models.ClassKind

	// ExcludeSessionID skips one session during checks, used when
	// re-validating a slot for a session being rescheduled.
	ExcludeSessionID string
}

// ConflictService detects collisions between a booking candidate and the
// teacher's calendar, the students' calendars across schools, and the
// teacher's unavailability. Checks run in a fixed order so the same candidate
// always reports the same first conflict.
type ConflictService struct {
	sessions    conflictSessionRepository
	blackouts   unavailabilityRepository
	schools     conflictSchoolRepository
	memberships conflictMembershipRepository
	logger      *zap.Logger
}

// NewConflictService builds the service.
func NewConflictService(sessions conflictSessionRepository, blackouts unavailabilityRepository, schools conflictSchoolRepository, memberships conflictMembershipRepository, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{sessions: sessions, blackouts: blackouts, schools: schools, memberships: memberships, logger: logger}
}

// Check returns the first conflict for the candidate, or nil when the slot is
// clear. Order: unavailability, then teacher overlap and buffer, then student
// cross-school, then student same-school.
func (s *ConflictService) Check(ctx context.Context, cand BookingCandidate, policy models.BookingPolicy) (*models.BookingConflict, error) {
	timezones, err := s.schools.ListTimezones(ctx, []string{cand.SchoolID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school timezone")
	}
	loc := timeutil.LocationFor(timezones[cand.SchoolID])
	candStart, candEnd := timeutil.Interval(timeutil.DateOnly(cand.Date), cand.StartMin, cand.EndMin, loc)

	if conflict, err := s.checkUnavailability(ctx, cand); err != nil || conflict != nil {
		return conflict, err
	}
	if conflict, err := s.checkTeacher(ctx, cand, policy, loc, candStart, candEnd); err != nil || conflict != nil {
		return conflict, err
	}
	return s.checkStudents(ctx, cand, candStart, candEnd)
}

func (s *ConflictService) checkUnavailability(ctx context.Context, cand BookingCandidate) (*models.BookingConflict, error) {
	entries, err := s.blackouts.ListByTeacherDate(ctx, cand.TeacherID, cand.SchoolID, timeutil.DateOnly(cand.Date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unavailability")
	}
	window := timeutil.Window{Start: cand.StartMin, End: cand.EndMin}
	for _, entry := range entries {
		if entry.IsAllDay {
			return &models.BookingConflict{
				Kind:             models.ConflictUnavailability,
				UnavailabilityID: entry.ID,
				Message:          fmt.Sprintf("teacher is unavailable all day on %s", cand.Date.Format("2006-01-02")),
			}, nil
		}
		if entry.StartTime == nil || entry.EndTime == nil {
			continue
		}
		start, err := timeutil.ParseClock(*entry.StartTime)
		if err != nil {
			continue
		}
		end, err := timeutil.ParseClock(*entry.EndTime)
		if err != nil {
			continue
		}
		if timeutil.ClockOverlaps(window, timeutil.Window{Start: start, End: end}) {
			return &models.BookingConflict{
				Kind:             models.ConflictUnavailability,
				UnavailabilityID: entry.ID,
				Message: fmt.Sprintf("teacher is unavailable %s-%s on %s",
					*entry.StartTime, *entry.EndTime, cand.Date.Format("2006-01-02")),
			}, nil
		}
	}
	return nil, nil
}

// checkTeacher scans one day either side of the candidate so sessions whose
// intervals or buffers spill across midnight are still caught.
func (s *ConflictService) checkTeacher(ctx context.Context, cand BookingCandidate, policy models.BookingPolicy, loc *time.Location, candStart, candEnd time.Time) (*models.BookingConflict, error) {
	date := timeutil.DateOnly(cand.Date)
	existing, err := s.sessions.ListActiveByTeacherDateRange(ctx, cand.TeacherID, cand.SchoolID, date.AddDate(0, 0, -1), date.AddDate(0, 0, 1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher sessions")
	}

	var bufferHit *models.ClassSession
	var bufferEnd time.Time
	for i := range existing {
		sess := &existing[i]
		if sess.ID == cand.ExcludeSessionID {
			continue
		}
		start, end, ok := sessionInterval(sess, loc)
		if !ok {
			s.logger.Warn("skipping session with malformed times", zap.String("session_id", sess.ID))
			continue
		}
		if timeutil.Overlaps(candStart, candEnd, start, end) {
			return &models.BookingConflict{
				Kind:      models.ConflictTeacherOverlap,
				SessionID: sess.ID,
				Message: fmt.Sprintf("teacher already has a session %s-%s on %s",
					sess.StartTime, sess.EndTime, sess.Date.Format("2006-01-02")),
			}, nil
		}
		if policy.BufferMinutes > 0 && timeutil.BufferedOverlaps(candStart, candEnd, start, end, policy.BufferMinutes) {
			// keep scanning: a plain overlap on a later session outranks a buffer hit
			if bufferHit == nil || end.After(bufferEnd) {
				bufferHit = sess
				bufferEnd = end
			}
		}
	}
	if bufferHit != nil {
		earliest := bufferEnd.Add(time.Duration(policy.BufferMinutes) * time.Minute)
		return &models.BookingConflict{
			Kind:              models.ConflictTeacherBuffer,
			SessionID:         bufferHit.ID,
			BufferMinutes:     policy.BufferMinutes,
			EarliestAvailable: &earliest,
			Message: fmt.Sprintf("requires %d minutes between sessions, next available from %s",
				policy.BufferMinutes, earliest.In(loc).Format("15:04")),
		}, nil
	}
	return nil, nil
}

// checkStudents compares each student's active sessions across every school
// they belong to, on absolute instants so differing school timezones cannot
// mask a real double-booking. Cross-school conflicts outrank same-school ones
// and never leak the other school's details.
func (s *ConflictService) checkStudents(ctx context.Context, cand BookingCandidate, candStart, candEnd time.Time) (*models.BookingConflict, error) {
	date := timeutil.DateOnly(cand.Date)
	from, to := date.AddDate(0, 0, -1), date.AddDate(0, 0, 1)

	var sameSchool *models.BookingConflict
	for _, studentID := range cand.StudentIDs {
		schoolIDs, err := s.memberships.ListActiveSchoolIDs(ctx, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student memberships")
		}
		if len(schoolIDs) == 0 {
			schoolIDs = []string{cand.SchoolID}
		}
		existing, err := s.sessions.ListActiveByStudentSchools(ctx, studentID, schoolIDs, from, to)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student sessions")
		}
		if len(existing) == 0 {
			continue
		}

		timezones, err := s.schools.ListTimezones(ctx, schoolIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school timezones")
		}
		for i := range existing {
			sess := &existing[i]
			if sess.ID == cand.ExcludeSessionID {
				continue
			}
			start, end, ok := sessionInterval(sess, timeutil.LocationFor(timezones[sess.SchoolID]))
			if !ok || !timeutil.Overlaps(candStart, candEnd, start, end) {
				continue
			}
			if sess.SchoolID != cand.SchoolID {
				return &models.BookingConflict{
					Kind:      models.ConflictStudentCross,
					StudentID: studentID,
					Message:   "student has a conflicting session at another school",
				}, nil
			}
			if sameSchool == nil {
				sameSchool = &models.BookingConflict{
					Kind:      models.ConflictStudentDouble,
					StudentID: studentID,
					SessionID: sess.ID,
					Message: fmt.Sprintf("student already has a session %s-%s on %s",
						sess.StartTime, sess.EndTime, sess.Date.Format("2006-01-02")),
				}
			}
		}
	}
	return sameSchool, nil
}

// sessionInterval resolves a stored session's wall-clock bounds to instants.
func sessionInterval(sess *models.ClassSession, loc *time.Location) (time.Time, time.Time, bool) {
	startMin, err := timeutil.ParseClock(sess.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	endMin, err := timeutil.ParseClock(sess.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	start, end := timeutil.Interval(timeutil.DateOnly(sess.Date), startMin, endMin, loc)
	return start, end, true
}
