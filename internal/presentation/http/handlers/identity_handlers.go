package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/spabook-go/internal/application/services"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
)

// SessionCookie describes the cookie carrying the session token.
type SessionCookie struct {
	Name   string
	Secure bool
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// IdentityHandlers contains the backend's session endpoints
type IdentityHandlers struct {
	identityService *services.IdentityService
	cookie          SessionCookie
	logger          *logging.ChanneledLogger
	perfTracker     *performance.Tracker
}

// NewIdentityHandlers creates identity handlers with injected dependencies
func NewIdentityHandlers(identityService *services.IdentityService, cookie SessionCookie, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *IdentityHandlers {
	return &IdentityHandlers{
		identityService: identityService,
		cookie:          cookie,
		logger:          logger,
		perfTracker:     perfTracker,
	}
}

// PostVerify handles POST /api/v1/auth/verify - resolves the session cookie
// to an identity
func (h *IdentityHandlers) PostVerify(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("post_verify_request", c.GetHeader("X-Request-ID"))
	defer marker.Complete()

	token, err := c.Cookie(h.cookie.Name)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	identity, err := h.identityService.Verify(c.Request.Context(), token)
	if err != nil {
		marker.SetError(err)
		if errors.Is(err, services.ErrNotAuthenticated) {
			h.logger.LogAuthOperation("verify", "", false, time.Since(start))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		h.logger.Auth().Error("Session verification failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}

	h.logger.LogAuthOperation("verify", identity.ID, true, time.Since(start))
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"identity_id": identity.ID,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// PostLogin handles POST /api/v1/auth/login - checks credentials and sets the
// session cookie
func (h *IdentityHandlers) PostLogin(c *gin.Context) {
	marker := h.perfTracker.StartOperation("post_login_request", c.GetHeader("X-Request-ID"))
	defer marker.Complete()
	h.logger.Auth().Debug("Received login request", "method", c.Request.Method, "path", c.Request.URL.Path, "clientIp", c.ClientIP())

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	identity, token, err := h.identityService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		marker.SetError(err)
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.logger.Auth().Error("Login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	h.setSessionCookie(c, token, int(h.identityService.SessionTTL().Seconds()))
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"identity_id":  identity.ID,
		"display_name": identity.DisplayName,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// PostLogout handles POST /api/v1/auth/logout - clears the session cookie
func (h *IdentityHandlers) PostLogout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	h.logger.Auth().Debug("Session cleared", "clientIp", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *IdentityHandlers) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
