package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/internal/timeutil"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
	"github.com/edusched/edusched-api/pkg/lock"
)

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.ClassSession, int, error)
	Create(ctx context.Context, session *models.ClassSession) error
	Update(ctx context.Context, session *models.ClassSession) error
	AddParticipant(ctx context.Context, sessionID, userID string) error
	CountActiveByTeacherRange(ctx context.Context, teacherID, schoolID string, from, to time.Time) (int, error)
	CountActiveByStudentRange(ctx context.Context, studentID, schoolID string, from, to time.Time) (int, error)
}

type sessionSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

type sessionMembershipRepository interface {
	Find(ctx context.Context, userID, schoolID string) (*models.Membership, error)
}

type conflictChecker interface {
	Check(ctx context.Context, cand BookingCandidate, policy models.BookingPolicy) (*models.BookingConflict, error)
}

type lifecycleDispatcher interface {
	Dispatch(event models.SessionLifecycleEvent)
}

// BookSessionRequest is the payload for creating a session.
type BookSessionRequest struct {
	TeacherID       string           `json:"teacher_id" validate:"required"`
	StudentID       string           `json:"student_id" validate:"required"`
	SchoolID        string           `json:"school_id" validate:"required"`
	Date            string           `json:"date" validate:"required"`
	StartTime       string           `json:"start_time" validate:"required"`
	EndTime         string           `json:"end_time" validate:"required"`
	Kind            models.ClassKind `json:"kind" validate:"required"`
	MaxParticipants *int             `json:"max_participants,omitempty"`
	Participants    []string         `json:"participants,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

// NoShowRequest attributes a missed session.
type NoShowRequest struct {
	Type   models.NoShowType `json:"type" validate:"required"`
	Reason string            `json:"reason" validate:"required"`
}

// allowedTransitions is the session state machine. Absent pairs are invalid,
// terminal states have no outgoing edges.
var allowedTransitions = map[models.SessionStatus]map[models.SessionStatus]bool{
	models.SessionScheduled: {
		models.SessionConfirmed: true,
		models.SessionCancelled: true,
		models.SessionRejected:  true,
	},
	models.SessionConfirmed: {
		models.SessionCompleted: true,
		models.SessionCancelled: true,
		models.SessionNoShow:    true,
	},
}

// SessionService owns booking and the session lifecycle. Booking serialises
// per teacher and date behind a distributed lock and re-checks conflicts
// inside the critical section.
type SessionService struct {
	sessions    sessionRepository
	schools     sessionSchoolRepository
	memberships sessionMembershipRepository
	policies    slotPolicyResolver
	conflicts   conflictChecker
	locker      lock.Locker
	dispatcher  lifecycleDispatcher
	validator   *validator.Validate
	logger      *zap.Logger

	lockTTL time.Duration
	now     func() time.Time
}

// NewSessionService builds the service.
func NewSessionService(sessions sessionRepository, schools sessionSchoolRepository, memberships sessionMembershipRepository, policies slotPolicyResolver, conflicts conflictChecker, locker lock.Locker, dispatcher lifecycleDispatcher, lockTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &SessionService{
		sessions:    sessions,
		schools:     schools,
		memberships: memberships,
		policies:    policies,
		conflicts:   conflicts,
		locker:      locker,
		dispatcher:  dispatcher,
		validator:   validate,
		logger:      logger,
		lockTTL:     lockTTL,
		now:         time.Now,
	}
}

// Book validates, locks the teacher's date, re-checks conflicts, and creates
// the session as SCHEDULED.
func (s *SessionService) Book(ctx context.Context, actor models.Actor, req BookSessionRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	kind := models.ClassKind(strings.ToUpper(string(req.Kind)))
	if !models.ValidKinds[kind] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid class kind")
	}
	if kind == models.KindGroup {
		if req.MaxParticipants == nil || *req.MaxParticipants < 2 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "group sessions require max_participants of at least 2")
		}
	} else {
		if req.MaxParticipants != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "max_participants only applies to group sessions")
		}
		if len(req.Participants) > 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "participants only apply to group sessions")
		}
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	date = timeutil.DateOnly(date)
	startMin, err := timeutil.ParseClock(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start_time, expected HH:MM")
	}
	endMin, err := timeutil.ParseClock(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end_time, expected HH:MM")
	}
	if startMin >= endMin {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}

	school, err := s.schools.FindByID(ctx, req.SchoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	loc := school.Location()
	startAt, _ := timeutil.Interval(date, startMin, endMin, loc)

	policy := s.policies.Resolve(ctx, req.SchoolID, req.TeacherID, kind)
	if startAt.Before(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "cannot book a session in the past")
	}
	if startAt.Before(s.now().Add(time.Duration(policy.MinimumNoticeMinutes) * time.Minute)) {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation,
			fmt.Sprintf("bookings require at least %d minutes notice", policy.MinimumNoticeMinutes))
	}

	students := append([]string{req.StudentID}, req.Participants...)
	if err := s.checkCaps(ctx, req.TeacherID, students, req.SchoolID, date, policy); err != nil {
		return nil, err
	}

	key := bookingLockKey(req.TeacherID, date)
	token, acquired, err := s.locker.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire booking lock")
	}
	if !acquired {
		return nil, appErrors.Clone(appErrors.ErrConcurrentBooking, "")
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("failed to release booking lock", zap.String("key", key), zap.Error(err))
		}
	}()

	conflict, err := s.conflicts.Check(ctx, BookingCandidate{
		TeacherID:  req.TeacherID,
		StudentIDs: students,
		SchoolID:   req.SchoolID,
		Date:       date,
		StartMin:   startMin,
		EndMin:     endMin,
		Kind:       kind,
	}, policy)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, conflictError(conflict)
	}

	session := &models.ClassSession{
		TeacherID:       req.TeacherID,
		StudentID:       req.StudentID,
		SchoolID:        req.SchoolID,
		Date:            date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: endMin - startMin,
		Kind:            kind,
		Status:          models.SessionScheduled,
		MaxParticipants: req.MaxParticipants,
		Notes:           req.Notes,
		Participants:    req.Participants,
		CreatedBy:       actor.UserID,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.emitTransition(session, "", actor)
	return session, nil
}

// checkCaps enforces teacher and student daily and weekly booking caps.
// Caps resolve to zero or more; a zero cap means the slot budget is already
// spent, not uncapped.
func (s *SessionService) checkCaps(ctx context.Context, teacherID string, studentIDs []string, schoolID string, date time.Time, policy models.BookingPolicy) error {
	weekStart, weekEnd := timeutil.WeekBounds(date)
	weekEnd = weekEnd.AddDate(0, 0, -1)

	count, err := s.sessions.CountActiveByTeacherRange(ctx, teacherID, schoolID, date, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}
	if count >= policy.TeacherDailyCap {
		return appErrors.Clone(appErrors.ErrPolicyViolation,
			fmt.Sprintf("teacher has reached the daily limit of %d sessions", policy.TeacherDailyCap))
	}
	count, err = s.sessions.CountActiveByTeacherRange(ctx, teacherID, schoolID, weekStart, weekEnd)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}
	if count >= policy.TeacherWeeklyCap {
		return appErrors.Clone(appErrors.ErrPolicyViolation,
			fmt.Sprintf("teacher has reached the weekly limit of %d sessions", policy.TeacherWeeklyCap))
	}
	for _, studentID := range studentIDs {
		count, err := s.sessions.CountActiveByStudentRange(ctx, studentID, schoolID, date, date)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
		}
		if count >= policy.StudentDailyCap {
			return appErrors.Clone(appErrors.ErrPolicyViolation,
				fmt.Sprintf("student has reached the daily limit of %d sessions", policy.StudentDailyCap))
		}
		count, err = s.sessions.CountActiveByStudentRange(ctx, studentID, schoolID, weekStart, weekEnd)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
		}
		if count >= policy.StudentWeeklyCap {
			return appErrors.Clone(appErrors.ErrPolicyViolation,
				fmt.Sprintf("student has reached the weekly limit of %d sessions", policy.StudentWeeklyCap))
		}
	}
	return nil
}

// Get loads a session, enforcing visibility for the requesting actor.
func (s *SessionService) Get(ctx context.Context, actor models.Actor, id string) (*models.ClassSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actor, session); err != nil {
		return nil, err
	}
	return session, nil
}

// List returns sessions matching the filter, scoped to what the actor may see.
func (s *SessionService) List(ctx context.Context, actor models.Actor, filter models.SessionFilter) ([]models.ClassSession, int, error) {
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	case models.RoleTeacher:
		filter.TeacherID = actor.UserID
	}
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, total, nil
}

// Confirm moves SCHEDULED to CONFIRMED. Only the assigned teacher or school
// staff may confirm.
func (s *SessionService) Confirm(ctx context.Context, actor models.Actor, id string) (*models.ClassSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireTeacherOrStaff(ctx, actor, session); err != nil {
		return nil, err
	}
	if err := checkTransition(session.Status, models.SessionConfirmed); err != nil {
		return nil, err
	}

	now := s.now()
	old := session.Status
	session.Status = models.SessionConfirmed
	session.ConfirmedAt = &now
	session.ConfirmedBy = &actor.UserID
	return s.persistTransition(ctx, session, old, actor)
}

// Reject moves SCHEDULED to REJECTED. Only the assigned teacher or school
// staff may reject.
func (s *SessionService) Reject(ctx context.Context, actor models.Actor, id string) (*models.ClassSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireTeacherOrStaff(ctx, actor, session); err != nil {
		return nil, err
	}
	if err := checkTransition(session.Status, models.SessionRejected); err != nil {
		return nil, err
	}

	now := s.now()
	old := session.Status
	session.Status = models.SessionRejected
	session.RejectedAt = &now
	session.RejectedBy = &actor.UserID
	return s.persistTransition(ctx, session, old, actor)
}

// Cancel moves an active session to CANCELLED. The assigned teacher and
// school staff may always cancel; the primary student may cancel their own
// session, but only up to the minimum-notice deadline before it starts.
func (s *SessionService) Cancel(ctx context.Context, actor models.Actor, id, reason string) (*models.ClassSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	isStudent := actor.UserID == session.StudentID
	if !isStudent {
		if err := s.requireTeacherOrStaff(ctx, actor, session); err != nil {
			return nil, err
		}
	}
	if err := checkTransition(session.Status, models.SessionCancelled); err != nil {
		return nil, err
	}
	if isStudent {
		if err := s.checkCancelDeadline(ctx, session); err != nil {
			return nil, err
		}
	}

	now := s.now()
	old := session.Status
	session.Status = models.SessionCancelled
	session.CancelledAt = &now
	session.CancelledBy = &actor.UserID
	if reason != "" {
		session.CancelReason = &reason
	}
	return s.persistTransition(ctx, session, old, actor)
}

// Complete moves CONFIRMED to COMPLETED once the session has started.
func (s *SessionService) Complete(ctx context.Context, actor models.Actor, id string, actualMinutes *int) (*models.ClassSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireTeacherOrStaff(ctx, actor, session); err != nil {
		return nil, err
	}
	if err := checkTransition(session.Status, models.SessionCompleted); err != nil {
		return nil, err
	}
	if started, err := s.hasStarted(ctx, session); err != nil {
		return nil, err
	} else if !started {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "session has not started yet")
	}
	if actualMinutes != nil && *actualMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actual_duration_minutes must be positive")
	}

	now := s.now()
	old := session.Status
	session.Status = models.SessionCompleted
	session.CompletedAt = &now
	session.CompletedBy = &actor.UserID
	session.ActualDurationMinutes = actualMinutes
	return s.persistTransition(ctx, session, old, actor)
}

// NoShow moves CONFIRMED to NO_SHOW once the session has started. The request
// must attribute the no-show and give a reason.
func (s *SessionService) NoShow(ctx context.Context, actor models.Actor, id string, req NoShowRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "no-show requires a type and reason")
	}
	if req.Type != models.NoShowStudent && req.Type != models.NoShowTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no_show type must be STUDENT or TEACHER")
	}
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireTeacherOrStaff(ctx, actor, session); err != nil {
		return nil, err
	}
	if err := checkTransition(session.Status, models.SessionNoShow); err != nil {
		return nil, err
	}
	if started, err := s.hasStarted(ctx, session); err != nil {
		return nil, err
	} else if !started {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "session has not started yet")
	}

	now := s.now()
	old := session.Status
	session.Status = models.SessionNoShow
	session.NoShowAt = &now
	session.NoShowBy = &actor.UserID
	session.NoShowType = &req.Type
	session.NoShowReason = &req.Reason
	return s.persistTransition(ctx, session, old, actor)
}

// JoinGroup adds a student to an open group session after checking capacity
// and the student's own calendar.
func (s *SessionService) JoinGroup(ctx context.Context, actor models.Actor, sessionID, studentID string) (*models.ClassSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != studentID && actor.UserID != session.TeacherID {
		staff, err := s.isSchoolStaff(ctx, actor, session.SchoolID)
		if err != nil {
			return nil, err
		}
		if !staff {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the joining student, the assigned teacher or school staff may add participants")
		}
	}
	if session.Kind != models.KindGroup {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only group sessions accept additional participants")
	}
	if !session.Status.IsActive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "session is no longer open")
	}
	for _, id := range session.AllParticipantIDs() {
		if id == studentID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student is already in this session")
		}
	}
	if session.IsAtCapacity() {
		return nil, conflictError(&models.BookingConflict{
			Kind:      models.ConflictGroupCapacity,
			SessionID: session.ID,
			Message:   fmt.Sprintf("session is full, capacity is %d", *session.MaxParticipants),
		})
	}

	startMin, err := timeutil.ParseClock(session.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "session has malformed times")
	}
	endMin, err := timeutil.ParseClock(session.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "session has malformed times")
	}
	policy := s.policies.Resolve(ctx, session.SchoolID, session.TeacherID, session.Kind)
	conflict, err := s.conflicts.Check(ctx, BookingCandidate{
		TeacherID:        session.TeacherID,
		StudentIDs:       []string{studentID},
		SchoolID:         session.SchoolID,
		Date:             session.Date,
		StartMin:         startMin,
		EndMin:           endMin,
		Kind:             session.Kind,
		ExcludeSessionID: session.ID,
	}, policy)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, conflictError(conflict)
	}

	if err := s.sessions.AddParticipant(ctx, session.ID, studentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add participant")
	}
	session.Participants = append(session.Participants, studentID)
	return session, nil
}

func (s *SessionService) load(ctx context.Context, id string) (*models.ClassSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *SessionService) persistTransition(ctx context.Context, session *models.ClassSession, old models.SessionStatus, actor models.Actor) (*models.ClassSession, error) {
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	s.emitTransition(session, old, actor)
	return session, nil
}

func (s *SessionService) emitTransition(session *models.ClassSession, old models.SessionStatus, actor models.Actor) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(models.SessionLifecycleEvent{
		SchoolID:     session.SchoolID,
		SessionID:    session.ID,
		OldStatus:    old,
		NewStatus:    session.Status,
		ActorID:      actor.UserID,
		OccurredAt:   s.now(),
		Participants: session.AllParticipantIDs(),
	})
}

// canView lets staff of the school, the assigned teacher, and any participant
// see a session.
func (s *SessionService) canView(ctx context.Context, actor models.Actor, session *models.ClassSession) error {
	if actor.UserID == session.TeacherID {
		return nil
	}
	for _, id := range session.AllParticipantIDs() {
		if id == actor.UserID {
			return nil
		}
	}
	staff, err := s.isSchoolStaff(ctx, actor, session.SchoolID)
	if err != nil {
		return err
	}
	if !staff {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return nil
}

func (s *SessionService) requireTeacherOrStaff(ctx context.Context, actor models.Actor, session *models.ClassSession) error {
	if actor.UserID == session.TeacherID {
		return nil
	}
	staff, err := s.isSchoolStaff(ctx, actor, session.SchoolID)
	if err != nil {
		return err
	}
	if !staff {
		return appErrors.Clone(appErrors.ErrForbidden, "only the assigned teacher or school staff may do this")
	}
	return nil
}

func (s *SessionService) isSchoolStaff(ctx context.Context, actor models.Actor, schoolID string) (bool, error) {
	membership, err := s.memberships.Find(ctx, actor.UserID, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}
	return membership.Active && membership.Role.IsSchoolStaff(), nil
}

// checkCancelDeadline enforces the student-side cancellation window: the
// minimum-notice policy applies symmetrically to cancellations.
func (s *SessionService) checkCancelDeadline(ctx context.Context, session *models.ClassSession) error {
	startAt, err := s.sessionStart(ctx, session)
	if err != nil {
		return err
	}
	policy := s.policies.Resolve(ctx, session.SchoolID, session.TeacherID, session.Kind)
	deadline := startAt.Add(-time.Duration(policy.MinimumNoticeMinutes) * time.Minute)
	if s.now().After(deadline) {
		return appErrors.Clone(appErrors.ErrPolicyViolation,
			fmt.Sprintf("cancellations require at least %d minutes notice", policy.MinimumNoticeMinutes))
	}
	return nil
}

func (s *SessionService) hasStarted(ctx context.Context, session *models.ClassSession) (bool, error) {
	startAt, err := s.sessionStart(ctx, session)
	if err != nil {
		return false, err
	}
	return !s.now().Before(startAt), nil
}

func (s *SessionService) sessionStart(ctx context.Context, session *models.ClassSession) (time.Time, error) {
	school, err := s.schools.FindByID(ctx, session.SchoolID)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	startMin, err := timeutil.ParseClock(session.StartTime)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "session has malformed times")
	}
	endMin, err := timeutil.ParseClock(session.EndTime)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "session has malformed times")
	}
	startAt, _ := timeutil.Interval(timeutil.DateOnly(session.Date), startMin, endMin, school.Location())
	return startAt, nil
}

func checkTransition(from, to models.SessionStatus) error {
	if allowedTransitions[from][to] {
		return nil
	}
	if from.IsTerminal() {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("session is already %s", from))
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move a %s session to %s", from, to))
}

func conflictError(conflict *models.BookingConflict) error {
	return appErrors.Wrap(&models.BookingConflictError{Conflict: *conflict},
		appErrors.ErrBookingConflict.Code, appErrors.ErrBookingConflict.Status, conflict.Message)
}

func bookingLockKey(teacherID string, date time.Time) string {
	return fmt.Sprintf("booking:%s:%s", teacherID, date.Format("2006-01-02"))
}
