package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusched/edusched-api/internal/models"
)

func newAvailabilityMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAvailabilityRepositoryListActiveByTeacherDay(t *testing.T) {
	db, mock, cleanup := newAvailabilityMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "school_id", "day_of_week", "start_time", "end_time", "active", "created_by", "created_at", "updated_at"}).
		AddRow("avail-1", "teacher-1", "school-1", "FRIDAY", "09:00", "12:00", true, "user-1", now, now).
		AddRow("avail-2", "teacher-1", "school-1", "FRIDAY", "14:00", "18:00", true, "user-1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, teacher_id, school_id, day_of_week, start_time, end_time, active, created_by, created_at, updated_at FROM teacher_availability WHERE teacher_id = $1 AND school_id = $2 AND day_of_week = $3 AND active = TRUE ORDER BY start_time ASC")).
		WithArgs("teacher-1", "school-1", "FRIDAY").
		WillReturnRows(rows)

	windows, err := repo.ListActiveByTeacherDay(context.Background(), "teacher-1", "school-1", "FRIDAY")
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, "09:00", windows[0].StartTime)
	assert.Equal(t, "14:00", windows[1].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryCreateAndDeactivate(t *testing.T) {
	db, mock, cleanup := newAvailabilityMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec("INSERT INTO teacher_availability").
		WillReturnResult(sqlmock.NewResult(1, 1))

	window := &models.TeacherAvailability{
		TeacherID: "teacher-1",
		SchoolID:  "school-1",
		DayOfWeek: "MONDAY",
		StartTime: "09:00",
		EndTime:   "17:00",
		Active:    true,
		CreatedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), window))
	assert.NotEmpty(t, window.ID)

	mock.ExpectExec("UPDATE teacher_availability SET active = FALSE").
		WithArgs(sqlmock.AnyArg(), window.ID).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Deactivate(context.Background(), window.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
