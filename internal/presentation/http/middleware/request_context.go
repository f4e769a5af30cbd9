// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/security"
)

const (
	requestContextKey = "requestContext"
	// RequestIDHeader carries the request ID back to the caller.
	RequestIDHeader = "X-Request-ID"
)

// RequestContextMiddleware gives every request its own RequestContext with a
// request ID and a CSP nonce, and sets the matching Content-Security-Policy.
func RequestContextMiddleware(logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := requestctx.New()

		requestID := security.GenerateULID()
		requestctx.Set(rc, requestctx.RequestIDKey, requestID)

		nonce, err := security.GenerateNonce()
		if err != nil {
			logger.System().Error("Failed to generate CSP nonce", "error", err, "path", c.Request.URL.Path)
			c.AbortWithStatus(500)
			return
		}
		requestctx.Set(rc, requestctx.NonceKey, nonce)

		ctx := requestctx.WithRequestContext(c.Request.Context(), rc)
		ctx = logging.ContextWithRequestID(ctx, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Header(RequestIDHeader, requestID)
		c.Header("Content-Security-Policy", ContentSecurityPolicy(nonce))
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "same-origin")

		c.Set(requestContextKey, rc)
		c.Next()
	}
}

// ContentSecurityPolicy only lets inline scripts run when they carry nonce.
func ContentSecurityPolicy(nonce string) string {
	return fmt.Sprintf("default-src 'self'; script-src 'self' 'nonce-%s'; style-src 'self' 'unsafe-inline'; "+
		"object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'", nonce)
}

// GetRequestContext retrieves the request context from gin context.
func GetRequestContext(c *gin.Context) (*requestctx.RequestContext, bool) {
	raw, exists := c.Get(requestContextKey)
	if !exists {
		return nil, false
	}

	rc, ok := raw.(*requestctx.RequestContext)
	return rc, ok
}

// MustRequestContext returns the request context, creating and attaching an
// empty one when the middleware did not run.
func MustRequestContext(c *gin.Context) *requestctx.RequestContext {
	if rc, ok := GetRequestContext(c); ok {
		return rc
	}
	rc := requestctx.New()
	c.Set(requestContextKey, rc)
	c.Request = c.Request.WithContext(requestctx.WithRequestContext(c.Request.Context(), rc))
	return rc
}
