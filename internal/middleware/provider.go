package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/odontosync/backend/pkg/response"
)

// DenyProvider returns a middleware that blocks requests from accounts
// signed in through any of the given providers. The demo workspace is
// read-mostly; destructive surfaces gate it out with this.
func DenyProvider(providers ...string) gin.HandlerFunc {
	denied := make(map[string]struct{})
	for _, p := range providers {
		denied[p] = struct{}{}
	}
	return func(c *gin.Context) {
		val, ok := c.Get(ContextProvider)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		provider, _ := val.(string)
		if _, blocked := denied[provider]; blocked {
			response.Forbidden(c, "not available for this account")
			c.Abort()
			return
		}
		c.Next()
	}
}
