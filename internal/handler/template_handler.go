package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edusched/edusched-api/internal/service"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
	"github.com/edusched/edusched-api/pkg/response"
)

// TemplateHandler manages recurring session templates.
type TemplateHandler struct {
	service *service.TemplateService
	metrics *service.MetricsService
}

// NewTemplateHandler constructs handler.
func NewTemplateHandler(svc *service.TemplateService, metrics *service.MetricsService) *TemplateHandler {
	return &TemplateHandler{service: svc, metrics: metrics}
}

// Create godoc
// @Summary Create a recurring session template
// @Tags Templates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateTemplateRequest true "Template"
// @Success 201 {object} response.Envelope
// @Router /templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	var req service.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	template, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// Deactivate godoc
// @Summary Deactivate a template
// @Tags Templates
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 204
// @Router /templates/{id} [delete]
func (h *TemplateHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Expand godoc
// @Summary Expand a template into scheduled sessions
// @Tags Templates
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Param weeks query int false "Weeks ahead"
// @Success 200 {object} response.Envelope
// @Router /templates/{id}/expand [post]
func (h *TemplateHandler) Expand(c *gin.Context) {
	weeks, _ := strconv.Atoi(c.DefaultQuery("weeks", "0"))
	result, err := h.service.Expand(c.Request.Context(), c.Param("id"), weeks)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordExpansion("created", result.Created)
	h.metrics.RecordExpansion("skipped", result.Skipped)
	h.metrics.RecordExpansion("conflict", result.Conflicts)
	response.JSON(c, http.StatusOK, result, nil)
}
