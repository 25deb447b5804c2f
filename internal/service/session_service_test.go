package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusched/edusched-api/internal/models"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
)

type sessionRepoStub struct {
	byID         map[string]*models.ClassSession
	teacherCount int
	studentCount int
	created      []*models.ClassSession
	updated      []*models.ClassSession
	participants map[string][]string
}

func newSessionRepoStub(sessions ...*models.ClassSession) *sessionRepoStub {
	stub := &sessionRepoStub{byID: map[string]*models.ClassSession{}, participants: map[string][]string{}}
	for _, s := range sessions {
		stub.byID[s.ID] = s
	}
	return stub
}

func (s *sessionRepoStub) FindByID(_ context.Context, id string) (*models.ClassSession, error) {
	if sess, ok := s.byID[id]; ok {
		copied := *sess
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *sessionRepoStub) List(_ context.Context, _ models.SessionFilter) ([]models.ClassSession, int, error) {
	return nil, 0, nil
}

func (s *sessionRepoStub) Create(_ context.Context, session *models.ClassSession) error {
	session.ID = "new-session"
	s.created = append(s.created, session)
	return nil
}

func (s *sessionRepoStub) Update(_ context.Context, session *models.ClassSession) error {
	s.updated = append(s.updated, session)
	s.byID[session.ID] = session
	return nil
}

func (s *sessionRepoStub) AddParticipant(_ context.Context, sessionID, userID string) error {
	s.participants[sessionID] = append(s.participants[sessionID], userID)
	return nil
}

func (s *sessionRepoStub) CountActiveByTeacherRange(_ context.Context, _, _ string, _, _ time.Time) (int, error) {
	return s.teacherCount, nil
}

func (s *sessionRepoStub) CountActiveByStudentRange(_ context.Context, _, _ string, _, _ time.Time) (int, error) {
	return s.studentCount, nil
}

type sessionMembershipStub struct {
	memberships map[string]*models.Membership
}

func (s *sessionMembershipStub) Find(_ context.Context, userID, schoolID string) (*models.Membership, error) {
	if m, ok := s.memberships[userID+"|"+schoolID]; ok {
		return m, nil
	}
	return nil, sql.ErrNoRows
}

type conflictCheckerStub struct {
	conflict   *models.BookingConflict
	candidates []BookingCandidate
}

func (s *conflictCheckerStub) Check(_ context.Context, cand BookingCandidate, _ models.BookingPolicy) (*models.BookingConflict, error) {
	s.candidates = append(s.candidates, cand)
	return s.conflict, nil
}

type lockerStub struct {
	denied         bool
	acquired       []string
	tokens         []string
	released       []string
	releasedTokens []string
}

func (s *lockerStub) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if s.denied {
		return "", false, nil
	}
	s.acquired = append(s.acquired, key)
	token := fmt.Sprintf("token-%d", len(s.acquired))
	s.tokens = append(s.tokens, token)
	return token, true, nil
}

func (s *lockerStub) Release(_ context.Context, key, token string) error {
	s.released = append(s.released, key)
	s.releasedTokens = append(s.releasedTokens, token)
	return nil
}

type dispatcherStub struct {
	events []models.SessionLifecycleEvent
}

func (s *dispatcherStub) Dispatch(event models.SessionLifecycleEvent) {
	s.events = append(s.events, event)
}

type sessionFixture struct {
	svc         *SessionService
	sessions    *sessionRepoStub
	memberships *sessionMembershipStub
	policies    *fixedPolicyStub
	conflicts   *conflictCheckerStub
	locker      *lockerStub
	dispatcher  *dispatcherStub
}

func newSessionFixture(policy models.BookingPolicy, now time.Time, stored ...*models.ClassSession) *sessionFixture {
	f := &sessionFixture{
		sessions:    newSessionRepoStub(stored...),
		memberships: &sessionMembershipStub{memberships: map[string]*models.Membership{}},
		policies:    &fixedPolicyStub{policy: withDefaultCaps(policy)},
		conflicts:   &conflictCheckerStub{},
		locker:      &lockerStub{},
		dispatcher:  &dispatcherStub{},
	}
	f.svc = NewSessionService(
		f.sessions,
		&slotSchoolStub{school: models.School{ID: "school-a", Timezone: "UTC"}},
		f.memberships,
		f.policies,
		f.conflicts,
		f.locker,
		f.dispatcher,
		0, nil, nil,
	)
	f.svc.now = func() time.Time { return now }
	return f
}

func validBooking() BookSessionRequest {
	return BookSessionRequest{
		TeacherID: "teacher-1",
		StudentID: "student-1",
		SchoolID:  "school-a",
		Date:      "2025-08-15",
		StartTime: "10:00",
		EndTime:   "11:00",
		Kind:      models.KindIndividual,
	}
}

func storedSession(status models.SessionStatus) *models.ClassSession {
	return &models.ClassSession{
		ID:              "sess-1",
		TeacherID:       "teacher-1",
		StudentID:       "student-1",
		SchoolID:        "school-a",
		Date:            friday(),
		StartTime:       "10:00",
		EndTime:         "11:00",
		DurationMinutes: 60,
		Kind:            models.KindIndividual,
		Status:          status,
	}
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Code
}

func TestBookCreatesScheduledSession(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	f := newSessionFixture(models.BookingPolicy{MinimumNoticeMinutes: 120, BufferMinutes: 15}, now)

	session, err := f.svc.Book(context.Background(), models.Actor{UserID: "student-1", Role: models.RoleStudent}, validBooking())
	require.NoError(t, err)
	assert.Equal(t, models.SessionScheduled, session.Status)
	assert.Equal(t, 60, session.DurationMinutes)
	assert.Equal(t, "student-1", session.CreatedBy)

	require.Len(t, f.sessions.created, 1)
	assert.Equal(t, []string{"booking:teacher-1:2025-08-15"}, f.locker.acquired)
	assert.Equal(t, f.locker.acquired, f.locker.released)
	assert.Equal(t, f.locker.tokens, f.locker.releasedTokens)

	require.Len(t, f.dispatcher.events, 1)
	event := f.dispatcher.events[0]
	assert.Equal(t, models.SessionStatus(""), event.OldStatus)
	assert.Equal(t, models.SessionScheduled, event.NewStatus)
	assert.Equal(t, []string{"student-1"}, event.Participants)
}

func TestBookLockContention(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	f := newSessionFixture(models.BookingPolicy{}, now)
	f.locker.denied = true

	_, err := f.svc.Book(context.Background(), models.Actor{UserID: "student-1"}, validBooking())
	assert.Equal(t, appErrors.ErrConcurrentBooking.Code, errCode(t, err))
	assert.Empty(t, f.sessions.created)
}

func TestBookConflictInsideLock(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	f := newSessionFixture(models.BookingPolicy{}, now)
	f.conflicts.conflict = &models.BookingConflict{Kind: models.ConflictTeacherOverlap, SessionID: "other"}

	_, err := f.svc.Book(context.Background(), models.Actor{UserID: "student-1"}, validBooking())
	assert.Equal(t, appErrors.ErrBookingConflict.Code, errCode(t, err))

	var conflictErr *models.BookingConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, models.ConflictTeacherOverlap, conflictErr.Conflict.Kind)

	// the lock was held for the check and released after
	require.Len(t, f.conflicts.candidates, 1)
	assert.Equal(t, f.locker.acquired, f.locker.released)
	assert.Empty(t, f.sessions.created)
}

func TestBookMinimumNotice(t *testing.T) {
	// 90 minutes out fails a 120-minute notice, 130 passes
	f := newSessionFixture(models.BookingPolicy{MinimumNoticeMinutes: 120}, time.Date(2025, 8, 15, 8, 30, 0, 0, time.UTC))
	_, err := f.svc.Book(context.Background(), models.Actor{UserID: "student-1"}, validBooking())
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, errCode(t, err))

	f = newSessionFixture(models.BookingPolicy{MinimumNoticeMinutes: 120}, time.Date(2025, 8, 15, 7, 50, 0, 0, time.UTC))
	_, err = f.svc.Book(context.Background(), models.Actor{UserID: "student-1"}, validBooking())
	assert.NoError(t, err)
}

func TestBookPastDate(t *testing.T) {
	f := newSessionFixture(models.BookingPolicy{}, time.Date(2025, 8, 16, 10, 0, 0, 0, time.UTC))

	_, err := f.svc.Book(context.Background(), models.Actor{UserID: "student-1"}, validBooking())
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, errCode(t, err))
}

func TestBookKindValidation(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	f := newSessionFixture(models.BookingPolicy{}, now)

	req := validBooking()
	req.Kind = models.KindGroup
	_, err := f.svc.Book(context.Background(), models.Actor{UserID: "student-1"}, req)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))

	req = validBooking()
	req.MaxParticipants = intPtr(5)
	_, err = f.svc.Book(context.Background(), models.Actor{UserID: "student-1"}, req)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))

	req = validBooking()
	req.Kind = models.KindGroup
	req.MaxParticipants = intPtr(4)
	req.Participants = []string{"student-2"}
	session, err := f.svc.Book(context.Background(), models.Actor{UserID: "student-1"}, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"student-1", "student-2"}, session.AllParticipantIDs())
}

func TestBookStudentCap(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	f := newSessionFixture(models.BookingPolicy{StudentDailyCap: 3}, now)
	f.sessions.studentCount = 3

	_, err := f.svc.Book(context.Background(), models.Actor{UserID: "student-1"}, validBooking())
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, errCode(t, err))
}

func TestBookZeroCapBlocks(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	f := newSessionFixture(models.BookingPolicy{}, now)
	// an explicit 0 cap means no bookings, not uncapped
	policy := f.policies.policy
	policy.TeacherDailyCap = 0
	f.policies.policy = policy

	_, err := f.svc.Book(context.Background(), models.Actor{UserID: "student-1"}, validBooking())
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, errCode(t, err))
	assert.Empty(t, f.sessions.created)
}

func TestConfirmByAssignedTeacher(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	f := newSessionFixture(models.BookingPolicy{}, now, storedSession(models.SessionScheduled))

	session, err := f.svc.Confirm(context.Background(), models.Actor{UserID: "teacher-1", Role: models.RoleTeacher}, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionConfirmed, session.Status)
	require.NotNil(t, session.ConfirmedAt)
	assert.Equal(t, "teacher-1", *session.ConfirmedBy)

	require.Len(t, f.dispatcher.events, 1)
	assert.Equal(t, models.SessionScheduled, f.dispatcher.events[0].OldStatus)
	assert.Equal(t, models.SessionConfirmed, f.dispatcher.events[0].NewStatus)
}

func TestConfirmActorGating(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	f := newSessionFixture(models.BookingPolicy{}, now, storedSession(models.SessionScheduled))

	_, err := f.svc.Confirm(context.Background(), models.Actor{UserID: "student-1", Role: models.RoleStudent}, "sess-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))

	f.memberships.memberships["admin-1|school-a"] = &models.Membership{UserID: "admin-1", SchoolID: "school-a", Role: models.RoleAdmin, Active: true}
	_, err = f.svc.Confirm(context.Background(), models.Actor{UserID: "admin-1", Role: models.RoleAdmin}, "sess-1")
	assert.NoError(t, err)
}

func TestTransitionTable(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	teacher := models.Actor{UserID: "teacher-1", Role: models.RoleTeacher}

	// completing straight from SCHEDULED is not allowed
	f := newSessionFixture(models.BookingPolicy{}, now, storedSession(models.SessionScheduled))
	_, err := f.svc.Complete(context.Background(), teacher, "sess-1", nil)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, errCode(t, err))

	// terminal states admit nothing further
	terminal := []models.SessionStatus{
		models.SessionCompleted,
		models.SessionCancelled,
		models.SessionRejected,
		models.SessionNoShow,
	}
	transitions := map[string]func(f *sessionFixture) error{
		"confirm": func(f *sessionFixture) error {
			_, err := f.svc.Confirm(context.Background(), teacher, "sess-1")
			return err
		},
		"reject": func(f *sessionFixture) error {
			_, err := f.svc.Reject(context.Background(), teacher, "sess-1")
			return err
		},
		"cancel": func(f *sessionFixture) error {
			_, err := f.svc.Cancel(context.Background(), teacher, "sess-1", "")
			return err
		},
		"complete": func(f *sessionFixture) error {
			_, err := f.svc.Complete(context.Background(), teacher, "sess-1", nil)
			return err
		},
		"no-show": func(f *sessionFixture) error {
			_, err := f.svc.NoShow(context.Background(), teacher, "sess-1", NoShowRequest{Type: models.NoShowStudent, Reason: "late"})
			return err
		},
	}
	for _, status := range terminal {
		for name, attempt := range transitions {
			f := newSessionFixture(models.BookingPolicy{}, now, storedSession(status))
			err := attempt(f)
			assert.Equalf(t, appErrors.ErrInvalidTransition.Code, errCode(t, err), "%s from %s", name, status)
		}
	}

	// confirmed sessions cannot be rejected
	f = newSessionFixture(models.BookingPolicy{}, now, storedSession(models.SessionConfirmed))
	_, err = f.svc.Reject(context.Background(), teacher, "sess-1")
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, errCode(t, err))
}

func TestCancelStudentDeadline(t *testing.T) {
	student := models.Actor{UserID: "student-1", Role: models.RoleStudent}
	policy := models.BookingPolicy{MinimumNoticeMinutes: 120}

	// 3 hours before start: fine
	f := newSessionFixture(policy, time.Date(2025, 8, 15, 7, 0, 0, 0, time.UTC), storedSession(models.SessionConfirmed))
	session, err := f.svc.Cancel(context.Background(), student, "sess-1", "sick")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, session.Status)
	assert.Equal(t, "sick", *session.CancelReason)

	// 1 hour before start: inside the notice window
	f = newSessionFixture(policy, time.Date(2025, 8, 15, 9, 0, 0, 0, time.UTC), storedSession(models.SessionConfirmed))
	_, err = f.svc.Cancel(context.Background(), student, "sess-1", "sick")
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, errCode(t, err))

	// the teacher is not bound by the student deadline
	f = newSessionFixture(policy, time.Date(2025, 8, 15, 9, 0, 0, 0, time.UTC), storedSession(models.SessionConfirmed))
	_, err = f.svc.Cancel(context.Background(), models.Actor{UserID: "teacher-1", Role: models.RoleTeacher}, "sess-1", "")
	assert.NoError(t, err)
}

func TestCompleteRequiresStart(t *testing.T) {
	teacher := models.Actor{UserID: "teacher-1", Role: models.RoleTeacher}

	f := newSessionFixture(models.BookingPolicy{}, time.Date(2025, 8, 15, 9, 0, 0, 0, time.UTC), storedSession(models.SessionConfirmed))
	_, err := f.svc.Complete(context.Background(), teacher, "sess-1", nil)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, errCode(t, err))

	f = newSessionFixture(models.BookingPolicy{}, time.Date(2025, 8, 15, 11, 0, 0, 0, time.UTC), storedSession(models.SessionConfirmed))
	session, err := f.svc.Complete(context.Background(), teacher, "sess-1", intPtr(55))
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.Equal(t, 55, *session.ActualDurationMinutes)
}

func TestNoShowRequiresAttribution(t *testing.T) {
	teacher := models.Actor{UserID: "teacher-1", Role: models.RoleTeacher}
	now := time.Date(2025, 8, 15, 11, 30, 0, 0, time.UTC)

	f := newSessionFixture(models.BookingPolicy{}, now, storedSession(models.SessionConfirmed))
	_, err := f.svc.NoShow(context.Background(), teacher, "sess-1", NoShowRequest{Type: models.NoShowStudent})
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))

	session, err := f.svc.NoShow(context.Background(), teacher, "sess-1", NoShowRequest{Type: models.NoShowStudent, Reason: "did not join"})
	require.NoError(t, err)
	assert.Equal(t, models.SessionNoShow, session.Status)
	assert.Equal(t, models.NoShowStudent, *session.NoShowType)
	assert.Equal(t, "did not join", *session.NoShowReason)
}

func TestJoinGroup(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	group := storedSession(models.SessionScheduled)
	group.Kind = models.KindGroup
	group.MaxParticipants = intPtr(3)
	group.Participants = []string{"student-2"}

	f := newSessionFixture(models.BookingPolicy{}, now, group)
	session, err := f.svc.JoinGroup(context.Background(), models.Actor{UserID: "student-3"}, "sess-1", "student-3")
	require.NoError(t, err)
	assert.Equal(t, []string{"student-3"}, f.sessions.participants["sess-1"])
	assert.Equal(t, 3, session.ParticipantCount())

	// the freshly loaded candidate excludes the session itself
	require.Len(t, f.conflicts.candidates, 1)
	assert.Equal(t, "sess-1", f.conflicts.candidates[0].ExcludeSessionID)
	assert.Equal(t, []string{"student-3"}, f.conflicts.candidates[0].StudentIDs)
}

func TestJoinGroupActorGating(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	group := storedSession(models.SessionScheduled)
	group.Kind = models.KindGroup
	group.MaxParticipants = intPtr(5)

	// an unrelated user cannot enroll someone else
	f := newSessionFixture(models.BookingPolicy{}, now, group)
	_, err := f.svc.JoinGroup(context.Background(), models.Actor{UserID: "stranger-9", Role: models.RoleStudent}, "sess-1", "student-3")
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
	assert.Empty(t, f.sessions.participants["sess-1"])

	// the assigned teacher can
	_, err = f.svc.JoinGroup(context.Background(), models.Actor{UserID: "teacher-1", Role: models.RoleTeacher}, "sess-1", "student-3")
	require.NoError(t, err)

	// school staff can, membership checked against the session's school
	group = storedSession(models.SessionScheduled)
	group.Kind = models.KindGroup
	group.MaxParticipants = intPtr(5)
	f = newSessionFixture(models.BookingPolicy{}, now, group)
	f.memberships.memberships["admin-1|school-a"] = &models.Membership{UserID: "admin-1", SchoolID: "school-a", Role: models.RoleAdmin, Active: true}
	_, err = f.svc.JoinGroup(context.Background(), models.Actor{UserID: "admin-1", Role: models.RoleAdmin}, "sess-1", "student-3")
	require.NoError(t, err)

	// staff of a different school is not staff here
	group = storedSession(models.SessionScheduled)
	group.Kind = models.KindGroup
	group.MaxParticipants = intPtr(5)
	f = newSessionFixture(models.BookingPolicy{}, now, group)
	f.memberships.memberships["admin-2|school-b"] = &models.Membership{UserID: "admin-2", SchoolID: "school-b", Role: models.RoleAdmin, Active: true}
	_, err = f.svc.JoinGroup(context.Background(), models.Actor{UserID: "admin-2", Role: models.RoleAdmin}, "sess-1", "student-3")
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestJoinGroupCapacity(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	group := storedSession(models.SessionScheduled)
	group.Kind = models.KindGroup
	group.MaxParticipants = intPtr(2)
	group.Participants = []string{"student-2"}

	f := newSessionFixture(models.BookingPolicy{}, now, group)
	_, err := f.svc.JoinGroup(context.Background(), models.Actor{UserID: "student-3"}, "sess-1", "student-3")
	assert.Equal(t, appErrors.ErrBookingConflict.Code, errCode(t, err))

	var conflictErr *models.BookingConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, models.ConflictGroupCapacity, conflictErr.Conflict.Kind)
}

func TestJoinGroupRejectsDuplicatesAndNonGroup(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	group := storedSession(models.SessionScheduled)
	group.Kind = models.KindGroup
	group.MaxParticipants = intPtr(5)

	f := newSessionFixture(models.BookingPolicy{}, now, group)
	_, err := f.svc.JoinGroup(context.Background(), models.Actor{UserID: "student-1"}, "sess-1", "student-1")
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))

	f = newSessionFixture(models.BookingPolicy{}, now, storedSession(models.SessionScheduled))
	_, err = f.svc.JoinGroup(context.Background(), models.Actor{UserID: "student-2"}, "sess-1", "student-2")
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestGetVisibility(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	f := newSessionFixture(models.BookingPolicy{}, now, storedSession(models.SessionScheduled))

	_, err := f.svc.Get(context.Background(), models.Actor{UserID: "student-1", Role: models.RoleStudent}, "sess-1")
	assert.NoError(t, err)

	_, err = f.svc.Get(context.Background(), models.Actor{UserID: "stranger", Role: models.RoleStudent}, "sess-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))

	_, err = f.svc.Get(context.Background(), models.Actor{UserID: "teacher-1"}, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}
