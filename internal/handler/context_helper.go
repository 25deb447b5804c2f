package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/edusched/edusched-api/internal/middleware"
	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) models.Actor {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Actor{}
	}
	return claims.Actor()
}

// respondError surfaces conflict detail in the response meta when the error
// wraps a booking conflict.
func respondError(c *gin.Context, err error) {
	var conflictErr *models.BookingConflictError
	if errors.As(err, &conflictErr) {
		response.ErrorWithMeta(c, err, map[string]interface{}{"conflict": conflictErr.Conflict})
		return
	}
	response.Error(c, err)
}
