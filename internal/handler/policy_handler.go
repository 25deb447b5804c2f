package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/internal/service"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
	"github.com/edusched/edusched-api/pkg/response"
)

// PolicyHandler exposes the booking-policy resolver and teacher overrides.
type PolicyHandler struct {
	service *service.PolicyService
}

// NewPolicyHandler constructs handler.
func NewPolicyHandler(svc *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{service: svc}
}

// Resolve godoc
// @Summary Resolve the effective booking policy
// @Tags Policies
// @Produce json
// @Security BearerAuth
// @Param schoolId path string true "School ID"
// @Param teacherId query string false "Teacher ID"
// @Param kind query string false "Class kind"
// @Success 200 {object} response.Envelope
// @Router /schools/{schoolId}/policy [get]
func (h *PolicyHandler) Resolve(c *gin.Context) {
	kind := models.ClassKind(strings.ToUpper(c.DefaultQuery("kind", string(models.KindIndividual))))
	if !models.ValidKinds[kind] {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid class kind"))
		return
	}
	policy := h.service.Resolve(c.Request.Context(), c.Param("schoolId"), c.Query("teacherId"), kind)
	response.JSON(c, http.StatusOK, policy, nil)
}

// UpsertProfile godoc
// @Summary Set a teacher's scheduling overrides
// @Tags Policies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param schoolId path string true "School ID"
// @Param teacherId path string true "Teacher ID"
// @Param payload body service.UpsertProfileRequest true "Overrides"
// @Success 200 {object} response.Envelope
// @Router /schools/{schoolId}/teachers/{teacherId}/profile [put]
func (h *PolicyHandler) UpsertProfile(c *gin.Context) {
	var req service.UpsertProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	profile, err := h.service.UpsertProfile(c.Request.Context(), c.Param("teacherId"), c.Param("schoolId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
