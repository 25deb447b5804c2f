package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/internal/timeutil"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
)

type availabilityRepository interface {
	ListActiveByTeacherDay(ctx context.Context, teacherID, schoolID, dayOfWeek string) ([]models.TeacherAvailability, error)
	ListByTeacher(ctx context.Context, teacherID, schoolID string) ([]models.TeacherAvailability, error)
	FindByID(ctx context.Context, id string) (*models.TeacherAvailability, error)
	Create(ctx context.Context, window *models.TeacherAvailability) error
	Update(ctx context.Context, window *models.TeacherAvailability) error
	Deactivate(ctx context.Context, id string) error
}

type unavailabilityRepository interface {
	ListByTeacherDate(ctx context.Context, teacherID, schoolID string, date time.Time) ([]models.TeacherUnavailability, error)
	ListByTeacherDateRange(ctx context.Context, teacherID, schoolID string, from, to time.Time) ([]models.TeacherUnavailability, error)
	FindByID(ctx context.Context, id string) (*models.TeacherUnavailability, error)
	Create(ctx context.Context, entry *models.TeacherUnavailability) error
	Delete(ctx context.Context, id string) error
}

// CreateAvailabilityRequest describes payload for adding a weekly window.
type CreateAvailabilityRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	SchoolID  string `json:"school_id" validate:"required"`
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// UpdateAvailabilityRequest modifies an existing window.
type UpdateAvailabilityRequest struct {
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Active    bool   `json:"active"`
}

// CreateUnavailabilityRequest describes a date-scoped exception.
type CreateUnavailabilityRequest struct {
	TeacherID string  `json:"teacher_id" validate:"required"`
	SchoolID  string  `json:"school_id" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	IsAllDay  bool    `json:"is_all_day"`
	Reason    string  `json:"reason"`
}

// AvailabilityService is the read model over a teacher's weekly availability
// and date-specific exceptions, plus the thin CRUD around it.
type AvailabilityService struct {
	windows   availabilityRepository
	blackouts unavailabilityRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService builds the service.
func NewAvailabilityService(windows availabilityRepository, blackouts unavailabilityRepository, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{windows: windows, blackouts: blackouts, validator: validate, logger: logger}
}

// WindowsForDate returns the bookable wall-clock windows for one date: active
// weekly windows for that day-of-week, minus any unavailability. An all-day
// exception empties the date entirely.
func (s *AvailabilityService) WindowsForDate(ctx context.Context, teacherID, schoolID string, date time.Time) ([]timeutil.Window, error) {
	rows, err := s.windows.ListActiveByTeacherDay(ctx, teacherID, schoolID, timeutil.DayOfWeek(date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	blackouts, err := s.blackouts.ListByTeacherDate(ctx, teacherID, schoolID, timeutil.DateOnly(date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unavailability")
	}

	return s.resolveWindows(rows, blackouts), nil
}

// resolveWindows applies unavailability exceptions to a day's raw windows.
func (s *AvailabilityService) resolveWindows(rows []models.TeacherAvailability, blackouts []models.TeacherUnavailability) []timeutil.Window {
	windows := make([]timeutil.Window, 0, len(rows))
	for _, row := range rows {
		start, err := timeutil.ParseClock(row.StartTime)
		if err != nil {
			s.logger.Warn("skipping malformed availability window", zap.String("id", row.ID), zap.Error(err))
			continue
		}
		end, err := timeutil.ParseClock(row.EndTime)
		if err != nil {
			s.logger.Warn("skipping malformed availability window", zap.String("id", row.ID), zap.Error(err))
			continue
		}
		windows = append(windows, timeutil.Window{Start: start, End: end})
	}

	var blocks []timeutil.Window
	for _, blackout := range blackouts {
		if blackout.IsAllDay {
			return nil
		}
		if blackout.StartTime == nil || blackout.EndTime == nil {
			continue
		}
		start, err := timeutil.ParseClock(*blackout.StartTime)
		if err != nil {
			continue
		}
		end, err := timeutil.ParseClock(*blackout.EndTime)
		if err != nil {
			continue
		}
		blocks = append(blocks, timeutil.Window{Start: start, End: end})
	}

	return timeutil.SubtractWindows(windows, blocks)
}

// ListForTeacher returns the raw weekly windows for management UIs.
func (s *AvailabilityService) ListForTeacher(ctx context.Context, teacherID, schoolID string) ([]models.TeacherAvailability, error) {
	rows, err := s.windows.ListByTeacher(ctx, teacherID, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return rows, nil
}

// CreateWindow adds a weekly availability window.
func (s *AvailabilityService) CreateWindow(ctx context.Context, actor models.Actor, req CreateAvailabilityRequest) (*models.TeacherAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	day := strings.ToUpper(req.DayOfWeek)
	if !models.ValidDays[day] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid day_of_week")
	}
	if err := validateClockOrder(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	window := &models.TeacherAvailability{
		TeacherID: req.TeacherID,
		SchoolID:  req.SchoolID,
		DayOfWeek: day,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Active:    true,
		CreatedBy: actor.UserID,
	}
	if err := s.windows.Create(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create availability")
	}
	return window, nil
}

// UpdateWindow modifies a weekly window.
func (s *AvailabilityService) UpdateWindow(ctx context.Context, id string, req UpdateAvailabilityRequest) (*models.TeacherAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	day := strings.ToUpper(req.DayOfWeek)
	if !models.ValidDays[day] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid day_of_week")
	}
	if err := validateClockOrder(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	window, err := s.windows.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	window.DayOfWeek = day
	window.StartTime = req.StartTime
	window.EndTime = req.EndTime
	window.Active = req.Active

	if err := s.windows.Update(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability")
	}
	return window, nil
}

// DeactivateWindow soft-disables a weekly window.
func (s *AvailabilityService) DeactivateWindow(ctx context.Context, id string) error {
	if _, err := s.windows.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if err := s.windows.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate availability")
	}
	return nil
}

// CreateUnavailability records a date-scoped exception.
func (s *AvailabilityService) CreateUnavailability(ctx context.Context, actor models.Actor, req CreateUnavailabilityRequest) (*models.TeacherUnavailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unavailability payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}

	if !req.IsAllDay {
		if req.StartTime == nil || req.EndTime == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "start_time and end_time required unless is_all_day")
		}
		if err := validateClockOrder(*req.StartTime, *req.EndTime); err != nil {
			return nil, err
		}
	}

	entry := &models.TeacherUnavailability{
		TeacherID: req.TeacherID,
		SchoolID:  req.SchoolID,
		Date:      timeutil.DateOnly(date),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsAllDay:  req.IsAllDay,
		Reason:    req.Reason,
		CreatedBy: actor.UserID,
	}
	if entry.IsAllDay {
		entry.StartTime = nil
		entry.EndTime = nil
	}

	if err := s.blackouts.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create unavailability")
	}
	return entry, nil
}

// DeleteUnavailability removes an exception.
func (s *AvailabilityService) DeleteUnavailability(ctx context.Context, id string) error {
	if _, err := s.blackouts.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "unavailability not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unavailability")
	}
	if err := s.blackouts.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete unavailability")
	}
	return nil
}

func validateClockOrder(start, end string) error {
	startMin, err := timeutil.ParseClock(start)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid start_time, expected HH:MM")
	}
	endMin, err := timeutil.ParseClock(end)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid end_time, expected HH:MM")
	}
	if startMin >= endMin {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}
