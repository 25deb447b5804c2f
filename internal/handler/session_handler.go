package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/internal/service"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
	"github.com/edusched/edusched-api/pkg/response"
)

// SessionHandler manages booking and lifecycle endpoints.
type SessionHandler struct {
	service *service.SessionService
	metrics *service.MetricsService
}

// NewSessionHandler constructs handler.
func NewSessionHandler(svc *service.SessionService, metrics *service.MetricsService) *SessionHandler {
	return &SessionHandler{service: svc, metrics: metrics}
}

// Book godoc
// @Summary Book a class session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BookSessionRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Book(c *gin.Context) {
	var req service.BookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	session, err := h.service.Book(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		h.recordBookingFailure(err)
		respondError(c, err)
		return
	}
	h.metrics.RecordBooking("created")
	response.Created(c, session)
}

// Get godoc
// @Summary Get a session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// List godoc
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param schoolId query string false "Filter by school"
// @Param teacherId query string false "Filter by teacher"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param kind query string false "Filter by kind"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var filter models.SessionFilter
	filter.SchoolID = c.Query("schoolId")
	filter.TeacherID = c.Query("teacherId")
	filter.StudentID = c.Query("studentId")
	filter.Status = strings.ToUpper(c.Query("status"))
	filter.Kind = strings.ToUpper(c.Query("kind"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	sessions, total, err := h.service.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Confirm godoc
// @Summary Confirm a scheduled session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/confirm [post]
func (h *SessionHandler) Confirm(c *gin.Context) {
	h.transition(c, func() (*models.ClassSession, error) {
		return h.service.Confirm(c.Request.Context(), actorFromContext(c), c.Param("id"))
	})
}

// Reject godoc
// @Summary Reject a scheduled session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/reject [post]
func (h *SessionHandler) Reject(c *gin.Context) {
	h.transition(c, func() (*models.ClassSession, error) {
		return h.service.Reject(c.Request.Context(), actorFromContext(c), c.Param("id"))
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel godoc
// @Summary Cancel a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body cancelRequest false "Cancellation"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	h.transition(c, func() (*models.ClassSession, error) {
		return h.service.Cancel(c.Request.Context(), actorFromContext(c), c.Param("id"), req.Reason)
	})
}

type completeRequest struct {
	ActualDurationMinutes *int `json:"actual_duration_minutes,omitempty"`
}

// Complete godoc
// @Summary Complete a confirmed session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body completeRequest false "Completion detail"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) Complete(c *gin.Context) {
	var req completeRequest
	_ = c.ShouldBindJSON(&req)
	h.transition(c, func() (*models.ClassSession, error) {
		return h.service.Complete(c.Request.Context(), actorFromContext(c), c.Param("id"), req.ActualDurationMinutes)
	})
}

// NoShow godoc
// @Summary Mark a confirmed session as a no-show
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body service.NoShowRequest true "Attribution"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/no-show [post]
func (h *SessionHandler) NoShow(c *gin.Context) {
	var req service.NoShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	h.transition(c, func() (*models.ClassSession, error) {
		return h.service.NoShow(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	})
}

type joinRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

// Join godoc
// @Summary Add a participant to a group session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body joinRequest true "Participant"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/participants [post]
func (h *SessionHandler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
		return
	}
	session, err := h.service.JoinGroup(c.Request.Context(), actorFromContext(c), c.Param("id"), req.StudentID)
	if err != nil {
		h.recordBookingFailure(err)
		respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

func (h *SessionHandler) transition(c *gin.Context, fn func() (*models.ClassSession, error)) {
	session, err := fn()
	if err != nil {
		respondError(c, err)
		return
	}
	h.metrics.RecordTransition(string(session.Status))
	response.JSON(c, http.StatusOK, session, nil)
}

func (h *SessionHandler) recordBookingFailure(err error) {
	switch appErrors.FromError(err).Code {
	case appErrors.ErrBookingConflict.Code:
		h.metrics.RecordBooking("conflict")
		var conflictErr *models.BookingConflictError
		if errors.As(err, &conflictErr) {
			h.metrics.RecordConflict(string(conflictErr.Conflict.Kind))
		}
	case appErrors.ErrPolicyViolation.Code:
		h.metrics.RecordBooking("policy_violation")
	case appErrors.ErrConcurrentBooking.Code:
		h.metrics.RecordBooking("lock_contention")
	}
}
