package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/odontosync/backend/internal/audit"
	"github.com/odontosync/backend/internal/auth"
	"github.com/odontosync/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextProvider is the key for the sign-in provider in gin context.
	ContextProvider = "provider"
)

// JWT returns a middleware that validates JWT and sets user claims in
// context. The user's display name also becomes the audit actor for every
// mutation performed under this request.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextProvider, string(claims.Provider))
		c.Set("claims", claims)
		if claims.Name != "" {
			c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), claims.Name))
		}
		c.Next()
	}
}
