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

type templateRepository interface {
	FindByID(ctx context.Context, id string) (*models.RecurringSessionTemplate, error)
	ListActive(ctx context.Context, schoolID string) ([]models.RecurringSessionTemplate, error)
	Create(ctx context.Context, template *models.RecurringSessionTemplate) error
	Deactivate(ctx context.Context, id string) error
}

type templateSessionRepository interface {
	ExistsForTemplateSlot(ctx context.Context, teacherID, studentID, schoolID string, date time.Time, startTime string) (bool, error)
	Create(ctx context.Context, session *models.ClassSession) error
}

// CreateTemplateRequest describes a weekly recurring slot.
type CreateTemplateRequest struct {
	TeacherID string           `json:"teacher_id" validate:"required"`
	StudentID string           `json:"student_id" validate:"required"`
	SchoolID  string           `json:"school_id" validate:"required"`
	DayOfWeek string           `json:"day_of_week" validate:"required"`
	StartTime string           `json:"start_time" validate:"required"`
	EndTime   string           `json:"end_time" validate:"required"`
	Kind      models.ClassKind `json:"kind" validate:"required"`
	StartDate string           `json:"start_date" validate:"required"`
	EndDate   *string          `json:"end_date,omitempty"`
}

// ExpansionResult reports one template expansion run.
type ExpansionResult struct {
	TemplateID string `json:"template_id"`
	Created    int    `json:"created"`
	Skipped    int    `json:"skipped"`
	Conflicts  int    `json:"conflicts"`
}

// TemplateService manages recurring session templates and expands them into
// concrete scheduled sessions a few weeks ahead. Expansion is idempotent and
// skips occurrences that collide with existing bookings.
type TemplateService struct {
	templates templateRepository
	sessions  templateSessionRepository
	policies  slotPolicyResolver
	conflicts conflictChecker
	validator *validator.Validate
	logger    *zap.Logger

	now func() time.Time
}

// NewTemplateService builds the service.
func NewTemplateService(templates templateRepository, sessions templateSessionRepository, policies slotPolicyResolver, conflicts conflictChecker, validate *validator.Validate, logger *zap.Logger) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{
		templates: templates,
		sessions:  sessions,
		policies:  policies,
		conflicts: conflicts,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create registers a new recurring template.
func (s *TemplateService) Create(ctx context.Context, actor models.Actor, req CreateTemplateRequest) (*models.RecurringSessionTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	day := strings.ToUpper(req.DayOfWeek)
	if !models.ValidDays[day] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid day_of_week")
	}
	kind := models.ClassKind(strings.ToUpper(string(req.Kind)))
	if !models.ValidKinds[kind] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid class kind")
	}
	if err := validateClockOrder(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	startMin, _ := timeutil.ParseClock(req.StartTime)
	endMin, _ := timeutil.ParseClock(req.EndTime)

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start_date, expected YYYY-MM-DD")
	}
	var endDate *time.Time
	if req.EndDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end_date, expected YYYY-MM-DD")
		}
		if parsed.Before(startDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date is before start_date")
		}
		parsed = timeutil.DateOnly(parsed)
		endDate = &parsed
	}

	template := &models.RecurringSessionTemplate{
		TeacherID:       req.TeacherID,
		StudentID:       req.StudentID,
		SchoolID:        req.SchoolID,
		DayOfWeek:       day,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: endMin - startMin,
		Kind:            kind,
		StartDate:       timeutil.DateOnly(startDate),
		EndDate:         endDate,
		Active:          true,
		CreatedBy:       actor.UserID,
	}
	if err := s.templates.Create(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	return template, nil
}

// Deactivate stops future expansion. Sessions already generated are untouched.
func (s *TemplateService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.templates.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if err := s.templates.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate template")
	}
	return nil
}

// Expand materialises one template's occurrences up to weeksAhead weeks out.
func (s *TemplateService) Expand(ctx context.Context, templateID string, weeksAhead int) (*ExpansionResult, error) {
	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if !template.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template is inactive")
	}
	return s.expand(ctx, template, weeksAhead)
}

// ExpandDue expands every active template, typically from a periodic job.
func (s *TemplateService) ExpandDue(ctx context.Context, weeksAhead int) ([]ExpansionResult, error) {
	templates, err := s.templates.ListActive(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	results := make([]ExpansionResult, 0, len(templates))
	for i := range templates {
		result, err := s.expand(ctx, &templates[i], weeksAhead)
		if err != nil {
			s.logger.Error("template expansion failed", zap.String("template_id", templates[i].ID), zap.Error(err))
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

func (s *TemplateService) expand(ctx context.Context, template *models.RecurringSessionTemplate, weeksAhead int) (*ExpansionResult, error) {
	if weeksAhead <= 0 {
		weeksAhead = 4
	}
	startMin, err := timeutil.ParseClock(template.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "template has malformed times")
	}
	endMin, err := timeutil.ParseClock(template.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "template has malformed times")
	}

	today := timeutil.DateOnly(s.now())
	from := timeutil.DateOnly(template.StartDate)
	if from.Before(today) {
		from = today
	}
	to := today.AddDate(0, 0, 7*weeksAhead)
	if template.EndDate != nil && template.EndDate.Before(to) {
		to = timeutil.DateOnly(*template.EndDate)
	}

	policy := s.policies.Resolve(ctx, template.SchoolID, template.TeacherID, template.Kind)
	result := &ExpansionResult{TemplateID: template.ID}

	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		if timeutil.DayOfWeek(date) != template.DayOfWeek {
			continue
		}
		exists, err := s.sessions.ExistsForTemplateSlot(ctx, template.TeacherID, template.StudentID, template.SchoolID, date, template.StartTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing sessions")
		}
		if exists {
			result.Skipped++
			continue
		}
		conflict, err := s.conflicts.Check(ctx, BookingCandidate{
			TeacherID:  template.TeacherID,
			StudentIDs: []string{template.StudentID},
			SchoolID:   template.SchoolID,
			Date:       date,
			StartMin:   startMin,
			EndMin:     endMin,
			Kind:       template.Kind,
		}, policy)
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			result.Conflicts++
			s.logger.Info("skipping conflicting template occurrence",
				zap.String("template_id", template.ID),
				zap.String("date", date.Format("2006-01-02")),
				zap.String("kind", string(conflict.Kind)))
			continue
		}

		templateID := template.ID
		session := &models.ClassSession{
			TeacherID:       template.TeacherID,
			StudentID:       template.StudentID,
			SchoolID:        template.SchoolID,
			TemplateID:      &templateID,
			Date:            date,
			StartTime:       template.StartTime,
			EndTime:         template.EndTime,
			DurationMinutes: template.DurationMinutes,
			Kind:            template.Kind,
			Status:          models.SessionScheduled,
			CreatedBy:       template.CreatedBy,
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
		}
		result.Created++
	}
	return result, nil
}
