package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/internal/service"
)

type policySettingsRepoMock struct {
	settings *models.SchoolSettings
}

func (m *policySettingsRepoMock) GetSettings(ctx context.Context, schoolID string) (*models.SchoolSettings, error) {
	if m.settings == nil {
		return nil, sql.ErrNoRows
	}
	return m.settings, nil
}

type policyProfileRepoMock struct {
	profile  *models.TeacherSchedulingProfile
	upserted *models.TeacherSchedulingProfile
}

func (m *policyProfileRepoMock) GetByTeacherSchool(ctx context.Context, teacherID, schoolID string) (*models.TeacherSchedulingProfile, error) {
	if m.profile == nil {
		return nil, sql.ErrNoRows
	}
	return m.profile, nil
}

func (m *policyProfileRepoMock) Upsert(ctx context.Context, profile *models.TeacherSchedulingProfile) error {
	m.upserted = profile
	return nil
}

func newPolicyHandler(settings *policySettingsRepoMock, profiles *policyProfileRepoMock) *PolicyHandler {
	return NewPolicyHandler(service.NewPolicyService(settings, profiles, nil))
}

func TestPolicyHandlerResolveDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPolicyHandler(&policySettingsRepoMock{}, &policyProfileRepoMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/schools/school-1/policy", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "schoolId", Value: "school-1"}}

	handler.Resolve(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data models.BookingPolicy `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 120, envelope.Data.MinimumNoticeMinutes)
	require.Equal(t, 15, envelope.Data.BufferMinutes)
}

func TestPolicyHandlerResolveInvalidKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPolicyHandler(&policySettingsRepoMock{}, &policyProfileRepoMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/schools/school-1/policy?kind=SEMINAR", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "schoolId", Value: "school-1"}}

	handler.Resolve(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPolicyHandlerUpsertProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	profiles := &policyProfileRepoMock{}
	handler := newPolicyHandler(&policySettingsRepoMock{}, profiles)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := []byte(`{"buffer_minutes":20,"minimum_notice_minutes":60}`)
	req, _ := http.NewRequest(http.MethodPut, "/schools/school-1/teachers/teacher-1/profile", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{
		{Key: "schoolId", Value: "school-1"},
		{Key: "teacherId", Value: "teacher-1"},
	}

	handler.UpsertProfile(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, profiles.upserted)
	require.Equal(t, "teacher-1", profiles.upserted.TeacherID)
	require.Equal(t, 20, *profiles.upserted.BufferMinutes)
}

func TestPolicyHandlerUpsertProfileRejectsNegative(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPolicyHandler(&policySettingsRepoMock{}, &policyProfileRepoMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := []byte(`{"buffer_minutes":-5}`)
	req, _ := http.NewRequest(http.MethodPut, "/schools/school-1/teachers/teacher-1/profile", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{
		{Key: "schoolId", Value: "school-1"},
		{Key: "teacherId", Value: "teacher-1"},
	}

	handler.UpsertProfile(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
