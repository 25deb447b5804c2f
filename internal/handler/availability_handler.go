package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusched/edusched-api/internal/service"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
	"github.com/edusched/edusched-api/pkg/response"
)

// AvailabilityHandler manages weekly windows and unavailability exceptions.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// List godoc
// @Summary List a teacher's weekly availability
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Param id path string true "Teacher ID"
// @Param schoolId query string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	windows, err := h.service.ListForTeacher(c.Request.Context(), c.Param("id"), c.Query("schoolId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// Create godoc
// @Summary Add a weekly availability window
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateAvailabilityRequest true "Window"
// @Success 201 {object} response.Envelope
// @Router /availability [post]
func (h *AvailabilityHandler) Create(c *gin.Context) {
	var req service.CreateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	window, err := h.service.CreateWindow(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, window)
}

// Update godoc
// @Summary Update a weekly availability window
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Param payload body service.UpdateAvailabilityRequest true "Window"
// @Success 200 {object} response.Envelope
// @Router /availability/{id} [put]
func (h *AvailabilityHandler) Update(c *gin.Context) {
	var req service.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	window, err := h.service.UpdateWindow(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// Delete godoc
// @Summary Deactivate a weekly availability window
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Success 204
// @Router /availability/{id} [delete]
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	if err := h.service.DeactivateWindow(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateUnavailability godoc
// @Summary Record a date-scoped unavailability
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateUnavailabilityRequest true "Exception"
// @Success 201 {object} response.Envelope
// @Router /unavailability [post]
func (h *AvailabilityHandler) CreateUnavailability(c *gin.Context) {
	var req service.CreateUnavailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	entry, err := h.service.CreateUnavailability(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// DeleteUnavailability godoc
// @Summary Remove an unavailability entry
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Param id path string true "Unavailability ID"
// @Success 204
// @Router /unavailability/{id} [delete]
func (h *AvailabilityHandler) DeleteUnavailability(c *gin.Context) {
	if err := h.service.DeleteUnavailability(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
