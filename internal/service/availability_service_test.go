package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/internal/timeutil"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
)

type availabilityRepoStub struct {
	byDay    []models.TeacherAvailability
	byID     map[string]*models.TeacherAvailability
	created  []*models.TeacherAvailability
	updated  []*models.TeacherAvailability
	disabled []string
	err      error
}

func (s *availabilityRepoStub) ListActiveByTeacherDay(_ context.Context, _, _, _ string) ([]models.TeacherAvailability, error) {
	return s.byDay, s.err
}

func (s *availabilityRepoStub) ListByTeacher(_ context.Context, _, _ string) ([]models.TeacherAvailability, error) {
	return s.byDay, s.err
}

func (s *availabilityRepoStub) FindByID(_ context.Context, id string) (*models.TeacherAvailability, error) {
	if w, ok := s.byID[id]; ok {
		return w, nil
	}
	return nil, sql.ErrNoRows
}

func (s *availabilityRepoStub) Create(_ context.Context, window *models.TeacherAvailability) error {
	s.created = append(s.created, window)
	return s.err
}

func (s *availabilityRepoStub) Update(_ context.Context, window *models.TeacherAvailability) error {
	s.updated = append(s.updated, window)
	return s.err
}

func (s *availabilityRepoStub) Deactivate(_ context.Context, id string) error {
	s.disabled = append(s.disabled, id)
	return s.err
}

type unavailabilityRepoStub struct {
	byDate  []models.TeacherUnavailability
	byID    map[string]*models.TeacherUnavailability
	created []*models.TeacherUnavailability
	deleted []string
	err     error
}

func (s *unavailabilityRepoStub) ListByTeacherDate(_ context.Context, _, _ string, _ time.Time) ([]models.TeacherUnavailability, error) {
	return s.byDate, s.err
}

func (s *unavailabilityRepoStub) ListByTeacherDateRange(_ context.Context, _, _ string, _, _ time.Time) ([]models.TeacherUnavailability, error) {
	return s.byDate, s.err
}

func (s *unavailabilityRepoStub) FindByID(_ context.Context, id string) (*models.TeacherUnavailability, error) {
	if e, ok := s.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (s *unavailabilityRepoStub) Create(_ context.Context, entry *models.TeacherUnavailability) error {
	s.created = append(s.created, entry)
	return s.err
}

func (s *unavailabilityRepoStub) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return s.err
}

func strPtr(s string) *string { return &s }

func TestWindowsForDateSubtractsPartialUnavailability(t *testing.T) {
	windows := &availabilityRepoStub{byDay: []models.TeacherAvailability{
		{ID: "w1", StartTime: "09:00", EndTime: "17:00"},
	}}
	blackouts := &unavailabilityRepoStub{byDate: []models.TeacherUnavailability{
		{StartTime: strPtr("12:00"), EndTime: strPtr("13:00")},
	}}
	svc := NewAvailabilityService(windows, blackouts, nil, nil)

	// Friday 2025-08-15
	got, err := svc.WindowsForDate(context.Background(), "t1", "s1", time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []timeutil.Window{
		{Start: 9 * 60, End: 12 * 60},
		{Start: 13 * 60, End: 17 * 60},
	}, got)
}

func TestWindowsForDateAllDayUnavailabilityEmptiesDay(t *testing.T) {
	windows := &availabilityRepoStub{byDay: []models.TeacherAvailability{
		{ID: "w1", StartTime: "09:00", EndTime: "17:00"},
		{ID: "w2", StartTime: "19:00", EndTime: "21:00"},
	}}
	blackouts := &unavailabilityRepoStub{byDate: []models.TeacherUnavailability{
		{IsAllDay: true, Reason: "public holiday"},
	}}
	svc := NewAvailabilityService(windows, blackouts, nil, nil)

	got, err := svc.WindowsForDate(context.Background(), "t1", "s1", time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWindowsForDateNoWeeklyWindows(t *testing.T) {
	svc := NewAvailabilityService(&availabilityRepoStub{}, &unavailabilityRepoStub{}, nil, nil)

	got, err := svc.WindowsForDate(context.Background(), "t1", "s1", time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWindowsForDateSkipsMalformedRow(t *testing.T) {
	windows := &availabilityRepoStub{byDay: []models.TeacherAvailability{
		{ID: "bad", StartTime: "9am", EndTime: "17:00"},
		{ID: "ok", StartTime: "10:00", EndTime: "12:00"},
	}}
	svc := NewAvailabilityService(windows, &unavailabilityRepoStub{}, nil, nil)

	got, err := svc.WindowsForDate(context.Background(), "t1", "s1", time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []timeutil.Window{{Start: 10 * 60, End: 12 * 60}}, got)
}

func TestCreateWindowValidation(t *testing.T) {
	svc := NewAvailabilityService(&availabilityRepoStub{}, &unavailabilityRepoStub{}, nil, nil)
	actor := models.Actor{UserID: "u1", Role: models.RoleTeacher}

	cases := []struct {
		name string
		req  CreateAvailabilityRequest
	}{
		{"bad day", CreateAvailabilityRequest{TeacherID: "t1", SchoolID: "s1", DayOfWeek: "FUNDAY", StartTime: "09:00", EndTime: "10:00"}},
		{"bad clock", CreateAvailabilityRequest{TeacherID: "t1", SchoolID: "s1", DayOfWeek: "MONDAY", StartTime: "25:00", EndTime: "10:00"}},
		{"inverted", CreateAvailabilityRequest{TeacherID: "t1", SchoolID: "s1", DayOfWeek: "MONDAY", StartTime: "14:00", EndTime: "09:00"}},
		{"missing teacher", CreateAvailabilityRequest{SchoolID: "s1", DayOfWeek: "MONDAY", StartTime: "09:00", EndTime: "10:00"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateWindow(context.Background(), actor, tc.req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestCreateWindowNormalisesDayAndStampsCreator(t *testing.T) {
	windows := &availabilityRepoStub{}
	svc := NewAvailabilityService(windows, &unavailabilityRepoStub{}, nil, nil)

	got, err := svc.CreateWindow(context.Background(), models.Actor{UserID: "owner-1", Role: models.RoleOwner}, CreateAvailabilityRequest{
		TeacherID: "t1",
		SchoolID:  "s1",
		DayOfWeek: "monday",
		StartTime: "09:00",
		EndTime:   "12:00",
	})
	require.NoError(t, err)
	require.Len(t, windows.created, 1)
	assert.Equal(t, "MONDAY", got.DayOfWeek)
	assert.Equal(t, "owner-1", got.CreatedBy)
	assert.True(t, got.Active)
}

func TestUpdateWindowNotFound(t *testing.T) {
	svc := NewAvailabilityService(&availabilityRepoStub{byID: map[string]*models.TeacherAvailability{}}, &unavailabilityRepoStub{}, nil, nil)

	_, err := svc.UpdateWindow(context.Background(), "missing", UpdateAvailabilityRequest{DayOfWeek: "MONDAY", StartTime: "09:00", EndTime: "10:00"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCreateUnavailabilityRequiresTimesUnlessAllDay(t *testing.T) {
	blackouts := &unavailabilityRepoStub{}
	svc := NewAvailabilityService(&availabilityRepoStub{}, blackouts, nil, nil)
	actor := models.Actor{UserID: "t1", Role: models.RoleTeacher}

	_, err := svc.CreateUnavailability(context.Background(), actor, CreateUnavailabilityRequest{
		TeacherID: "t1", SchoolID: "s1", Date: "2025-08-15",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	got, err := svc.CreateUnavailability(context.Background(), actor, CreateUnavailabilityRequest{
		TeacherID: "t1", SchoolID: "s1", Date: "2025-08-15", IsAllDay: true,
		StartTime: strPtr("09:00"), EndTime: strPtr("10:00"),
	})
	require.NoError(t, err)
	require.Len(t, blackouts.created, 1)
	// all-day entries never carry clock bounds
	assert.Nil(t, got.StartTime)
	assert.Nil(t, got.EndTime)
	assert.True(t, got.Date.Equal(time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)))
}

func TestDeleteUnavailability(t *testing.T) {
	blackouts := &unavailabilityRepoStub{byID: map[string]*models.TeacherUnavailability{
		"u1": {ID: "u1"},
	}}
	svc := NewAvailabilityService(&availabilityRepoStub{}, blackouts, nil, nil)

	require.NoError(t, svc.DeleteUnavailability(context.Background(), "u1"))
	assert.Equal(t, []string{"u1"}, blackouts.deleted)

	err := svc.DeleteUnavailability(context.Background(), "u2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestWindowsForDateRepositoryFailure(t *testing.T) {
	svc := NewAvailabilityService(&availabilityRepoStub{err: errors.New("db down"), byDay: []models.TeacherAvailability{{}}}, &unavailabilityRepoStub{}, nil, nil)

	_, err := svc.WindowsForDate(context.Background(), "t1", "s1", time.Now())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
