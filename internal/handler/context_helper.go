package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/edubot-api/internal/middleware"
	"github.com/noah-isme/edubot-api/internal/models"
	"github.com/noah-isme/edubot-api/internal/service"
)

// SessionHeader carries the anonymous conversation identifier.
const SessionHeader = "X-Session-ID"

const anonymousPrefix = "anon:"

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

func userFromContext(c *gin.Context) models.UserContext {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.UserContext{}
	}
	return service.UserContextFromClaims(claims, c.GetString(middleware.ContextTokenKey), "")
}

// sessionID keys authenticated users by user_id and everyone else by the client supplied
// identifier, minting one when absent. Anonymous keys live under their own namespace so a
// client cannot claim an authenticated session by sending its key. The public ID is echoed
// back in SessionHeader.
func sessionID(c *gin.Context, requested string) (key, public string) {
	if claims := claimsFromContext(c); claims != nil && claims.UserID != "" {
		public = "user:" + string(claims.UserID)
		c.Header(SessionHeader, public)
		return public, public
	}
	switch {
	case strings.TrimSpace(requested) != "":
		public = strings.TrimSpace(requested)
	case strings.TrimSpace(c.GetHeader(SessionHeader)) != "":
		public = strings.TrimSpace(c.GetHeader(SessionHeader))
	default:
		public = uuid.NewString()
	}
	c.Header(SessionHeader, public)
	return anonymousPrefix + public, public
}
