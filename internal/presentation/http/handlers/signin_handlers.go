package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/spabook-go/internal/application/services"
	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/backend"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/templates"
)

var (
	errMissingCredentials = errors.New("email and password are required")
	errSignInThrottled    = errors.New("too many sign-in attempts, try again later")
	errSignInUnavailable  = errors.New("sign-in is unavailable right now")
)

// SignInBackend performs sign-in and sign-out against the backend.
type SignInBackend interface {
	Login(ctx context.Context, email, password, clientIP string) (*backend.LoginResponse, []*http.Cookie, error)
	Logout(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error)
}

// SignInHandlers handles the sign-in form and sign-out.
type SignInHandlers struct {
	pages       *PageHandlers
	backend     SignInBackend
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewSignInHandlers creates sign-in handlers with injected dependencies
func NewSignInHandlers(pages *PageHandlers, signInBackend SignInBackend, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SignInHandlers {
	return &SignInHandlers{
		pages:       pages,
		backend:     signInBackend,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// PostSignIn handles POST /auth - signs in through the backend, relays its
// session cookie and redirects to the requested page. A failed attempt is
// recorded as a mutation and the form is rendered again.
func (h *SignInHandlers) PostSignIn(c *gin.Context) {
	rc := middleware.MustRequestContext(c)
	requestID := requestctx.GetOr(rc, requestctx.RequestIDKey, "")

	start := time.Now()
	marker := h.perfTracker.StartOperation("post_signin_request", requestID)
	defer marker.Complete()

	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	redirect := services.SafeRedirectTarget(c.PostForm("redirect"), "/")

	h.logger.Auth().Debug("Received sign-in request", "method", c.Request.Method, "path", c.Request.URL.Path, "requestId", requestID)

	if email == "" || password == "" {
		h.fail(c, email, redirect, http.StatusBadRequest, errMissingCredentials)
		return
	}

	resp, cookies, err := h.backend.Login(c.Request.Context(), email, password, c.ClientIP())
	if err != nil {
		marker.SetError(err)
		status, reason := signInFailure(err)
		h.logger.Auth().Info("Sign-in rejected", "status", status, "error", err, "duration", time.Since(start), "requestId", requestID)
		h.fail(c, email, redirect, status, reason)
		return
	}

	for _, cookie := range cookies {
		http.SetCookie(c.Writer, cookie)
	}

	h.logger.LogAuthOperation("signin", resp.IdentityID, true, time.Since(start))
	marker.SetSuccess(true)
	c.Redirect(http.StatusSeeOther, redirect)
}

// PostSignOut handles POST /auth/signout - ends the backend session and
// relays the cleared cookie.
func (h *SignInHandlers) PostSignOut(c *gin.Context) {
	rc := middleware.MustRequestContext(c)
	requestID := requestctx.GetOr(rc, requestctx.RequestIDKey, "")

	marker := h.perfTracker.StartOperation("post_signout_request", requestID)
	defer marker.Complete()

	cookies, err := h.backend.Logout(c.Request.Context(), c.Request.Cookies())
	if err != nil {
		marker.SetError(err)
		h.logger.Auth().Warn("Backend sign-out failed", "error", err, "requestId", requestID)
	}
	for _, cookie := range cookies {
		http.SetCookie(c.Writer, cookie)
	}

	marker.SetSuccess(err == nil)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *SignInHandlers) fail(c *gin.Context, email, redirect string, status int, reason error) {
	cache := h.pages.prefetch.NewRequestCache()
	cache.RecordMutation(services.SignInMutationKey, map[string]string{"email": email}, nil, reason)

	signIn := &url.URL{
		Path:     h.pages.navigation.SignInPath(),
		RawQuery: url.Values{"redirect": {redirect}}.Encode(),
	}
	h.pages.render(c, cache, signIn, status, templates.SignInForm{Redirect: redirect, Email: email})
}

func signInFailure(err error) (int, error) {
	switch {
	case backend.IsStatus(err, http.StatusUnauthorized), backend.IsStatus(err, http.StatusBadRequest):
		return http.StatusUnauthorized, services.ErrInvalidCredentials
	case backend.IsStatus(err, http.StatusTooManyRequests):
		return http.StatusTooManyRequests, errSignInThrottled
	default:
		return http.StatusServiceUnavailable, errSignInUnavailable
	}
}
