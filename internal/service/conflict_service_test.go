package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusched/edusched-api/internal/models"
)

type conflictSessionRepoStub struct {
	teacherSessions []models.ClassSession
	studentSessions []models.ClassSession
}

func (s *conflictSessionRepoStub) ListActiveByTeacherDateRange(_ context.Context, _, _ string, _, _ time.Time) ([]models.ClassSession, error) {
	return s.teacherSessions, nil
}

func (s *conflictSessionRepoStub) ListActiveByStudentSchools(_ context.Context, _ string, _ []string, _, _ time.Time) ([]models.ClassSession, error) {
	return s.studentSessions, nil
}

type schoolTimezoneStub struct {
	timezones map[string]string
}

func (s *schoolTimezoneStub) ListTimezones(_ context.Context, _ []string) (map[string]string, error) {
	return s.timezones, nil
}

type membershipRepoStub struct {
	schoolIDs map[string][]string
}

func (s *membershipRepoStub) ListActiveSchoolIDs(_ context.Context, userID string) ([]string, error) {
	return s.schoolIDs[userID], nil
}

func conflictFixture(sessions *conflictSessionRepoStub, blackouts *unavailabilityRepoStub, timezones map[string]string, memberships map[string][]string) *ConflictService {
	if timezones == nil {
		timezones = map[string]string{"school-a": "UTC"}
	}
	return NewConflictService(
		sessions,
		blackouts,
		&schoolTimezoneStub{timezones: timezones},
		&membershipRepoStub{schoolIDs: memberships},
		nil,
	)
}

func candidateAt(startMin, endMin int) BookingCandidate {
	return BookingCandidate{
		TeacherID:  "teacher-1",
		StudentIDs: []string{"student-1"},
		SchoolID:   "school-a",
		Date:       time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		StartMin:   startMin,
		EndMin:     endMin,
		Kind:       models.KindIndividual,
	}
}

func teacherSession(id string, start, end string) models.ClassSession {
	return models.ClassSession{
		ID:        id,
		TeacherID: "teacher-1",
		StudentID: "student-9",
		SchoolID:  "school-a",
		Date:      time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		StartTime: start,
		EndTime:   end,
		Status:    models.SessionScheduled,
	}
}

func TestCheckClearSlot(t *testing.T) {
	svc := conflictFixture(&conflictSessionRepoStub{}, &unavailabilityRepoStub{}, nil, nil)

	conflict, err := svc.Check(context.Background(), candidateAt(10*60, 11*60), models.BookingPolicy{BufferMinutes: 15})
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestCheckTeacherOverlap(t *testing.T) {
	sessions := &conflictSessionRepoStub{teacherSessions: []models.ClassSession{
		teacherSession("sess-1", "10:00", "11:00"),
	}}
	svc := conflictFixture(sessions, &unavailabilityRepoStub{}, nil, nil)

	conflict, err := svc.Check(context.Background(), candidateAt(10*60+30, 11*60+30), models.BookingPolicy{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictTeacherOverlap, conflict.Kind)
	assert.Equal(t, "sess-1", conflict.SessionID)
}

func TestCheckTeacherBuffer(t *testing.T) {
	sessions := &conflictSessionRepoStub{teacherSessions: []models.ClassSession{
		teacherSession("sess-1", "10:00", "11:00"),
	}}
	svc := conflictFixture(sessions, &unavailabilityRepoStub{}, nil, nil)
	policy := models.BookingPolicy{BufferMinutes: 15}

	// 11:05 start violates a 15-minute buffer after an 11:00 end
	conflict, err := svc.Check(context.Background(), candidateAt(11*60+5, 12*60), policy)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictTeacherBuffer, conflict.Kind)
	assert.Equal(t, 15, conflict.BufferMinutes)
	require.NotNil(t, conflict.EarliestAvailable)
	assert.Equal(t, "2025-08-15T11:15:00Z", conflict.EarliestAvailable.UTC().Format(time.RFC3339))

	// 11:15 is exactly the buffer boundary and is allowed
	conflict, err = svc.Check(context.Background(), candidateAt(11*60+15, 12*60+15), policy)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestCheckZeroBufferAllowsBackToBack(t *testing.T) {
	sessions := &conflictSessionRepoStub{teacherSessions: []models.ClassSession{
		teacherSession("sess-1", "10:00", "11:00"),
	}}
	svc := conflictFixture(sessions, &unavailabilityRepoStub{}, nil, nil)

	conflict, err := svc.Check(context.Background(), candidateAt(11*60, 12*60), models.BookingPolicy{BufferMinutes: 0})
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestCheckUnavailabilityOutranksTeacherOverlap(t *testing.T) {
	sessions := &conflictSessionRepoStub{teacherSessions: []models.ClassSession{
		teacherSession("sess-1", "10:00", "11:00"),
	}}
	blackouts := &unavailabilityRepoStub{byDate: []models.TeacherUnavailability{
		{ID: "un-1", IsAllDay: true},
	}}
	svc := conflictFixture(sessions, blackouts, nil, nil)

	conflict, err := svc.Check(context.Background(), candidateAt(10*60, 11*60), models.BookingPolicy{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictUnavailability, conflict.Kind)
	assert.Equal(t, "un-1", conflict.UnavailabilityID)
}

func TestCheckPartialUnavailability(t *testing.T) {
	blackouts := &unavailabilityRepoStub{byDate: []models.TeacherUnavailability{
		{ID: "un-1", StartTime: strPtr("12:00"), EndTime: strPtr("13:00")},
	}}
	svc := conflictFixture(&conflictSessionRepoStub{}, blackouts, nil, nil)

	conflict, err := svc.Check(context.Background(), candidateAt(12*60+30, 13*60+30), models.BookingPolicy{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictUnavailability, conflict.Kind)

	// adjacent slot after the block is clear
	conflict, err = svc.Check(context.Background(), candidateAt(13*60, 14*60), models.BookingPolicy{})
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestCheckStudentCrossSchoolComparesInstants(t *testing.T) {
	// school-b runs UTC-3: its 14:00-15:00 session is 17:00-18:00 UTC.
	other := models.ClassSession{
		ID:        "sess-b",
		TeacherID: "teacher-2",
		StudentID: "student-1",
		SchoolID:  "school-b",
		Date:      time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		StartTime: "14:00",
		EndTime:   "15:00",
		Status:    models.SessionScheduled,
	}
	sessions := &conflictSessionRepoStub{studentSessions: []models.ClassSession{other}}
	svc := conflictFixture(sessions, &unavailabilityRepoStub{},
		map[string]string{"school-a": "UTC", "school-b": "America/Sao_Paulo"},
		map[string][]string{"student-1": {"school-a", "school-b"}},
	)

	conflict, err := svc.Check(context.Background(), candidateAt(17*60+30, 18*60+30), models.BookingPolicy{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictStudentCross, conflict.Kind)
	// detail about the other school's session is withheld
	assert.Empty(t, conflict.SessionID)
	assert.Equal(t, "student has a conflicting session at another school", conflict.Message)

	// same wall-clock 14:00 at school-a is 3 hours earlier than school-b's, no conflict
	conflict, err = svc.Check(context.Background(), candidateAt(14*60, 15*60), models.BookingPolicy{})
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestCheckStudentSameSchoolDoubleBooking(t *testing.T) {
	same := models.ClassSession{
		ID:        "sess-a",
		TeacherID: "teacher-2",
		StudentID: "student-1",
		SchoolID:  "school-a",
		Date:      time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "11:00",
		Status:    models.SessionConfirmed,
	}
	sessions := &conflictSessionRepoStub{studentSessions: []models.ClassSession{same}}
	svc := conflictFixture(sessions, &unavailabilityRepoStub{}, nil,
		map[string][]string{"student-1": {"school-a"}})

	conflict, err := svc.Check(context.Background(), candidateAt(10*60+30, 11*60+30), models.BookingPolicy{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictStudentDouble, conflict.Kind)
	assert.Equal(t, "sess-a", conflict.SessionID)
	assert.Equal(t, "student-1", conflict.StudentID)
}

func TestCheckExcludesSessionBeingRescheduled(t *testing.T) {
	sessions := &conflictSessionRepoStub{teacherSessions: []models.ClassSession{
		teacherSession("sess-1", "10:00", "11:00"),
	}}
	svc := conflictFixture(sessions, &unavailabilityRepoStub{}, nil, nil)

	cand := candidateAt(10*60, 11*60)
	cand.ExcludeSessionID = "sess-1"
	conflict, err := svc.Check(context.Background(), cand, models.BookingPolicy{BufferMinutes: 15})
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestCheckGroupParticipantsAllChecked(t *testing.T) {
	// the second participant is the one who is double-booked
	busy := models.ClassSession{
		ID:        "sess-a",
		TeacherID: "teacher-2",
		StudentID: "student-2",
		SchoolID:  "school-a",
		Date:      time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "11:00",
		Status:    models.SessionScheduled,
	}
	sessions := &conflictSessionRepoStub{studentSessions: []models.ClassSession{busy}}
	svc := conflictFixture(sessions, &unavailabilityRepoStub{}, nil,
		map[string][]string{"student-1": {"school-a"}, "student-2": {"school-a"}})

	cand := candidateAt(10*60, 11*60)
	cand.StudentIDs = []string{"student-1", "student-2"}
	cand.Kind = models.KindGroup
	conflict, err := svc.Check(context.Background(), cand, models.BookingPolicy{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictStudentDouble, conflict.Kind)
}
