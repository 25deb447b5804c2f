package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/edusched/edusched-api/internal/models"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
)

type policySettingsRepo interface {
	GetSettings(ctx context.Context, schoolID string) (*models.SchoolSettings, error)
}

type policyProfileRepo interface {
	GetByTeacherSchool(ctx context.Context, teacherID, schoolID string) (*models.TeacherSchedulingProfile, error)
	Upsert(ctx context.Context, profile *models.TeacherSchedulingProfile) error
}

// PolicyService resolves the effective booking policy for a school, teacher
// and class kind. Resolution never fails: missing or unreadable settings fall
// through to the system defaults.
type PolicyService struct {
	schools  policySettingsRepo
	profiles policyProfileRepo
	logger   *zap.Logger
}

// NewPolicyService builds the service.
func NewPolicyService(schools policySettingsRepo, profiles policyProfileRepo, logger *zap.Logger) *PolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{schools: schools, profiles: profiles, logger: logger}
}

// Resolve loads the school settings and teacher overrides and folds them into
// a fully populated policy. teacherID may be empty for school-wide queries.
func (s *PolicyService) Resolve(ctx context.Context, schoolID, teacherID string, kind models.ClassKind) models.BookingPolicy {
	var settings *models.SchoolSettings
	if loaded, err := s.schools.GetSettings(ctx, schoolID); err == nil {
		settings = loaded
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to load school settings, using defaults", zap.String("school_id", schoolID), zap.Error(err))
	}

	var profile *models.TeacherSchedulingProfile
	if teacherID != "" {
		if loaded, err := s.profiles.GetByTeacherSchool(ctx, teacherID, schoolID); err == nil {
			profile = loaded
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load teacher profile, using school policy", zap.String("teacher_id", teacherID), zap.Error(err))
		}
	}

	return ResolvePolicy(settings, profile, kind)
}

// ResolvePolicy folds the configuration hierarchy into a concrete policy.
// Precedence per field, first present wins: teacher override, class-kind
// school setting (buffer only), school default, system default.
func ResolvePolicy(settings *models.SchoolSettings, profile *models.TeacherSchedulingProfile, kind models.ClassKind) models.BookingPolicy {
	policy := models.BookingPolicy{
		MinimumNoticeMinutes: models.DefaultMinimumNoticeMinutes,
		BufferMinutes:        models.DefaultBufferMinutes,
		TeacherDailyCap:      models.DefaultTeacherDailyCap,
		TeacherWeeklyCap:     models.DefaultTeacherWeeklyCap,
		StudentDailyCap:      models.DefaultStudentDailyCap,
		StudentWeeklyCap:     models.DefaultStudentWeeklyCap,
	}

	if settings != nil {
		assign(&policy.MinimumNoticeMinutes, settings.MinimumNoticeMinutes)
		assign(&policy.BufferMinutes, settings.BufferMinutes)
		assign(&policy.TeacherDailyCap, settings.TeacherDailyCap)
		assign(&policy.TeacherWeeklyCap, settings.TeacherWeeklyCap)
		assign(&policy.StudentDailyCap, settings.StudentDailyCap)
		assign(&policy.StudentWeeklyCap, settings.StudentWeeklyCap)

		switch kind {
		case models.KindGroup:
			assign(&policy.BufferMinutes, settings.GroupBufferMinutes)
		case models.KindTrial:
			assign(&policy.BufferMinutes, settings.TrialBufferMinutes)
		}
	}

	if profile != nil {
		assign(&policy.MinimumNoticeMinutes, profile.MinimumNoticeMinutes)
		assign(&policy.BufferMinutes, profile.BufferMinutes)
		assign(&policy.TeacherDailyCap, profile.DailyCap)
		assign(&policy.TeacherWeeklyCap, profile.WeeklyCap)
	}

	return policy
}

func assign(target *int, value *int) {
	if value != nil && *value >= 0 {
		*target = *value
	}
}

// UpsertProfileRequest carries per-teacher overrides. Nil fields clear the
// override and fall back down the hierarchy.
type UpsertProfileRequest struct {
	MinimumNoticeMinutes *int `json:"minimum_notice_minutes,omitempty"`
	BufferMinutes        *int `json:"buffer_minutes,omitempty"`
	DailyCap             *int `json:"daily_cap,omitempty"`
	WeeklyCap            *int `json:"weekly_cap,omitempty"`
}

// UpsertProfile writes a teacher's scheduling overrides for one school.
func (s *PolicyService) UpsertProfile(ctx context.Context, teacherID, schoolID string, req UpsertProfileRequest) (*models.TeacherSchedulingProfile, error) {
	for _, v := range []*int{req.MinimumNoticeMinutes, req.BufferMinutes, req.DailyCap, req.WeeklyCap} {
		if v != nil && *v < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "policy overrides must not be negative")
		}
	}
	profile := &models.TeacherSchedulingProfile{
		TeacherID:            teacherID,
		SchoolID:             schoolID,
		MinimumNoticeMinutes: req.MinimumNoticeMinutes,
		BufferMinutes:        req.BufferMinutes,
		DailyCap:             req.DailyCap,
		WeeklyCap:            req.WeeklyCap,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save teacher profile")
	}
	return profile, nil
}
