package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/edusched/edusched-api/internal/models"
)

func intPtr(v int) *int { return &v }

type settingsRepoStub struct {
	settings *models.SchoolSettings
	err      error
}

func (m *settingsRepoStub) GetSettings(ctx context.Context, schoolID string) (*models.SchoolSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.settings == nil {
		return nil, sql.ErrNoRows
	}
	return m.settings, nil
}

type profileRepoStub struct {
	profile *models.TeacherSchedulingProfile
	err     error
}

func (m *profileRepoStub) GetByTeacherSchool(ctx context.Context, teacherID, schoolID string) (*models.TeacherSchedulingProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.profile == nil {
		return nil, sql.ErrNoRows
	}
	return m.profile, nil
}

func (m *profileRepoStub) Upsert(_ context.Context, profile *models.TeacherSchedulingProfile) error {
	if m.err != nil {
		return m.err
	}
	m.profile = profile
	return nil
}

func TestResolvePolicySystemDefaults(t *testing.T) {
	policy := ResolvePolicy(nil, nil, models.KindIndividual)

	assert.Equal(t, models.DefaultMinimumNoticeMinutes, policy.MinimumNoticeMinutes)
	assert.Equal(t, models.DefaultBufferMinutes, policy.BufferMinutes)
	assert.Equal(t, models.DefaultTeacherDailyCap, policy.TeacherDailyCap)
	assert.Equal(t, models.DefaultTeacherWeeklyCap, policy.TeacherWeeklyCap)
	assert.Equal(t, models.DefaultStudentDailyCap, policy.StudentDailyCap)
	assert.Equal(t, models.DefaultStudentWeeklyCap, policy.StudentWeeklyCap)
}

func TestResolvePolicySchoolOverridesDefaults(t *testing.T) {
	settings := &models.SchoolSettings{
		MinimumNoticeMinutes: intPtr(60),
		BufferMinutes:        intPtr(10),
		TeacherDailyCap:      intPtr(6),
	}

	policy := ResolvePolicy(settings, nil, models.KindIndividual)

	assert.Equal(t, 60, policy.MinimumNoticeMinutes)
	assert.Equal(t, 10, policy.BufferMinutes)
	assert.Equal(t, 6, policy.TeacherDailyCap)
	// Unset fields keep system defaults.
	assert.Equal(t, models.DefaultTeacherWeeklyCap, policy.TeacherWeeklyCap)
}

func TestResolvePolicyClassKindBuffer(t *testing.T) {
	settings := &models.SchoolSettings{
		BufferMinutes:      intPtr(10),
		GroupBufferMinutes: intPtr(20),
		TrialBufferMinutes: intPtr(5),
	}

	assert.Equal(t, 10, ResolvePolicy(settings, nil, models.KindIndividual).BufferMinutes)
	assert.Equal(t, 20, ResolvePolicy(settings, nil, models.KindGroup).BufferMinutes)
	assert.Equal(t, 5, ResolvePolicy(settings, nil, models.KindTrial).BufferMinutes)
}

func TestResolvePolicyTeacherOverrideWins(t *testing.T) {
	settings := &models.SchoolSettings{
		BufferMinutes:      intPtr(10),
		GroupBufferMinutes: intPtr(20),
	}
	profile := &models.TeacherSchedulingProfile{
		BufferMinutes: intPtr(30),
		DailyCap:      intPtr(4),
	}

	// Teacher override beats both the kind-specific and the school default.
	policy := ResolvePolicy(settings, profile, models.KindGroup)
	assert.Equal(t, 30, policy.BufferMinutes)
	assert.Equal(t, 4, policy.TeacherDailyCap)

	// Removing the override falls back to the school value, then the default.
	policy = ResolvePolicy(settings, nil, models.KindGroup)
	assert.Equal(t, 20, policy.BufferMinutes)
	policy = ResolvePolicy(nil, nil, models.KindGroup)
	assert.Equal(t, models.DefaultBufferMinutes, policy.BufferMinutes)
}

func TestPolicyServiceResolveSurvivesRepoErrors(t *testing.T) {
	svc := NewPolicyService(
		&settingsRepoStub{err: errors.New("boom")},
		&profileRepoStub{err: errors.New("boom")},
		zap.NewNop(),
	)

	policy := svc.Resolve(context.Background(), "school-1", "teacher-1", models.KindIndividual)
	assert.Equal(t, models.DefaultMinimumNoticeMinutes, policy.MinimumNoticeMinutes)
	assert.Equal(t, models.DefaultBufferMinutes, policy.BufferMinutes)
}

func TestPolicyServiceResolveLoadsHierarchy(t *testing.T) {
	svc := NewPolicyService(
		&settingsRepoStub{settings: &models.SchoolSettings{BufferMinutes: intPtr(25)}},
		&profileRepoStub{profile: &models.TeacherSchedulingProfile{MinimumNoticeMinutes: intPtr(240)}},
		zap.NewNop(),
	)

	policy := svc.Resolve(context.Background(), "school-1", "teacher-1", models.KindIndividual)
	assert.Equal(t, 25, policy.BufferMinutes)
	assert.Equal(t, 240, policy.MinimumNoticeMinutes)
}
