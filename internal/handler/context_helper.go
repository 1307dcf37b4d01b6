package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/wilddocs/wilddocs-api/internal/middleware"
	"github.com/wilddocs/wilddocs-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// studentProfileID returns the caller's student profile, or "" for staff roles
// so staff paths skip the ownership check.
func studentProfileID(claims *models.JWTClaims) string {
	if claims == nil {
		return ""
	}
	if claims.Role == models.RoleStudent {
		return claims.ProfileID
	}
	return ""
}
