package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/internal/service"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
	"github.com/edusched/edusched-api/pkg/response"
)

// SlotHandler exposes the slot calculator.
type SlotHandler struct {
	service *service.SlotService
	metrics *service.MetricsService
}

// NewSlotHandler constructs handler.
func NewSlotHandler(svc *service.SlotService, metrics *service.MetricsService) *SlotHandler {
	return &SlotHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary Compute bookable slots for a teacher
// @Tags Slots
// @Produce json
// @Security BearerAuth
// @Param id path string true "Teacher ID"
// @Param schoolId query string true "School ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param duration query int true "Slot duration in minutes"
// @Param kind query string false "Class kind"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date, expected YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date, expected YYYY-MM-DD"))
		return
	}
	duration, err := strconv.Atoi(c.Query("duration"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "duration must be an integer"))
		return
	}
	kind := models.ClassKind(strings.ToUpper(c.DefaultQuery("kind", string(models.KindIndividual))))

	started := time.Now()
	slots, err := h.service.ComputeSlots(c.Request.Context(), service.SlotRequest{
		TeacherID:       c.Param("id"),
		SchoolID:        c.Query("schoolId"),
		From:            from,
		To:              to,
		DurationMinutes: duration,
		Kind:            kind,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveSlotComputation(time.Since(started))
	response.JSON(c, http.StatusOK, slots, nil, map[string]interface{}{"count": len(slots)})
}
