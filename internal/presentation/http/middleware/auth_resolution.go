package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/spabook-go/internal/application/services"
)

// AuthResolutionMiddleware resolves the caller's session once, before any
// route loader runs. It never rejects a request: failures resolve to
// anonymous and protected routes decide what to do with that.
func AuthResolutionMiddleware(authService *services.AuthResolutionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := MustRequestContext(c)
		authService.Resolve(c.Request.Context(), rc, c.Request.Cookies())
		c.Next()
	}
}
