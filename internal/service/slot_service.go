package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/internal/timeutil"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
)

type slotSessionRepository interface {
	ListActiveByTeacherDateRange(ctx context.Context, teacherID, schoolID string, from, to time.Time) ([]models.ClassSession, error)
	CountActiveByTeacherRange(ctx context.Context, teacherID, schoolID string, from, to time.Time) (int, error)
}

type slotSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

type slotPolicyResolver interface {
	Resolve(ctx context.Context, schoolID, teacherID string, kind models.ClassKind) models.BookingPolicy
}

type slotWindowResolver interface {
	WindowsForDate(ctx context.Context, teacherID, schoolID string, date time.Time) ([]timeutil.Window, error)
}

// Slot is one bookable opening, reported both as school-local wall-clock and
// as absolute instants.
type Slot struct {
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	StartUTC  time.Time `json:"start_utc"`
	EndUTC    time.Time `json:"end_utc"`
}

// SlotRequest asks for openings of a fixed duration over a date range.
type SlotRequest struct {
	TeacherID       string           `validate:"required"`
	SchoolID        string           `validate:"required"`
	From            time.Time        `validate:"required"`
	To              time.Time        `validate:"required"`
	DurationMinutes int              `validate:"required,min=15,max=480"`
	Kind            models.ClassKind `validate:"required"`
}

// SlotService computes bookable openings from availability windows, existing
// sessions, the resolved booking policy, and the school clock.
type SlotService struct {
	availability slotWindowResolver
	sessions     slotSessionRepository
	schools      slotSchoolRepository
	policies     slotPolicyResolver
	validator    *validator.Validate
	logger       *zap.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewSlotService builds the service.
func NewSlotService(availability slotWindowResolver, sessions slotSessionRepository, schools slotSchoolRepository, policies slotPolicyResolver, validate *validator.Validate, logger *zap.Logger) *SlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{
		availability: availability,
		sessions:     sessions,
		schools:      schools,
		policies:     policies,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// maxSlotRangeDays bounds a single request so a wide range cannot fan out
// into thousands of per-day computations.
const maxSlotRangeDays = 60

// ComputeSlots walks each date in [From, To], steps candidate start times
// through the teacher's availability windows in increments of the requested
// duration, and keeps those that clear existing sessions, buffers, the
// minimum-notice horizon, and the teacher's daily and weekly caps.
func (s *SlotService) ComputeSlots(ctx context.Context, req SlotRequest) ([]Slot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot request")
	}
	kind := models.ClassKind(strings.ToUpper(string(req.Kind)))
	if !models.ValidKinds[kind] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid class kind")
	}
	from := timeutil.DateOnly(req.From)
	to := timeutil.DateOnly(req.To)
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range is inverted")
	}
	if to.Sub(from) > maxSlotRangeDays*24*time.Hour {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range too wide")
	}

	school, err := s.schools.FindByID(ctx, req.SchoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	loc := school.Location()
	policy := s.policies.Resolve(ctx, req.SchoolID, req.TeacherID, kind)

	// one query for every busy interval in the range, padded a day each side
	// so buffers around midnight sessions are honoured
	existing, err := s.sessions.ListActiveByTeacherDateRange(ctx, req.TeacherID, req.SchoolID, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	busy := s.resolveBusy(existing, loc)
	dailyCount := make(map[string]int, len(existing))
	for i := range existing {
		dailyCount[timeutil.DateOnly(existing[i].Date).Format("2006-01-02")]++
	}

	horizon := s.now().Add(time.Duration(policy.MinimumNoticeMinutes) * time.Minute)
	weeklyCount := make(map[string]int)

	var slots []Slot
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		if dailyCount[date.Format("2006-01-02")] >= policy.TeacherDailyCap {
			continue
		}
		if full, err := s.weekIsFull(ctx, req, policy, date, weeklyCount); err != nil {
			return nil, err
		} else if full {
			continue
		}

		windows, err := s.availability.WindowsForDate(ctx, req.TeacherID, req.SchoolID, date)
		if err != nil {
			return nil, err
		}
		for _, window := range windows {
			for start := window.Start; start+req.DurationMinutes <= window.End; start += req.DurationMinutes {
				end := start + req.DurationMinutes
				startUTC, endUTC := timeutil.Interval(date, start, end, loc)
				if startUTC.Before(horizon) {
					continue
				}
				if s.collides(busy, startUTC, endUTC, policy.BufferMinutes) {
					continue
				}
				slots = append(slots, Slot{
					Date:      date.Format("2006-01-02"),
					StartTime: timeutil.FormatClock(start),
					EndTime:   timeutil.FormatClock(end),
					StartUTC:  startUTC.UTC(),
					EndUTC:    endUTC.UTC(),
				})
			}
		}
	}
	return slots, nil
}

type busyInterval struct {
	start time.Time
	end   time.Time
}

func (s *SlotService) resolveBusy(sessions []models.ClassSession, loc *time.Location) []busyInterval {
	busy := make([]busyInterval, 0, len(sessions))
	for i := range sessions {
		start, end, ok := sessionInterval(&sessions[i], loc)
		if !ok {
			s.logger.Warn("skipping session with malformed times", zap.String("session_id", sessions[i].ID))
			continue
		}
		busy = append(busy, busyInterval{start: start, end: end})
	}
	return busy
}

func (s *SlotService) collides(busy []busyInterval, start, end time.Time, bufferMinutes int) bool {
	for _, b := range busy {
		if timeutil.BufferedOverlaps(start, end, b.start, b.end, bufferMinutes) {
			return true
		}
	}
	return false
}

// weekIsFull checks the weekly cap with one count query per distinct week.
// A zero cap is fully booked by definition, no query needed.
func (s *SlotService) weekIsFull(ctx context.Context, req SlotRequest, policy models.BookingPolicy, date time.Time, cache map[string]int) (bool, error) {
	if policy.TeacherWeeklyCap == 0 {
		return true, nil
	}
	weekStart, weekEnd := timeutil.WeekBounds(date)
	key := weekStart.Format("2006-01-02")
	count, ok := cache[key]
	if !ok {
		var err error
		// the repository range is inclusive, WeekBounds is half-open
		count, err = s.sessions.CountActiveByTeacherRange(ctx, req.TeacherID, req.SchoolID, weekStart, weekEnd.AddDate(0, 0, -1))
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count weekly sessions")
		}
		cache[key] = count
	}
	return count >= policy.TeacherWeeklyCap, nil
}
