package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestContextMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestContextMiddleware(logging.NewDiscardLogger()))

	var seen *requestctx.RequestContext
	r.GET("/", func(c *gin.Context) {
		rc, ok := GetRequestContext(c)
		require.True(t, ok)
		seen = rc
		assert.Same(t, rc, requestctx.FromContext(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, seen)
	requestID, ok := requestctx.Get(seen, requestctx.RequestIDKey)
	require.True(t, ok)
	assert.True(t, security.IsULID(requestID))
	assert.Equal(t, requestID, w.Header().Get(RequestIDHeader))

	nonce, ok := requestctx.Get(seen, requestctx.NonceKey)
	require.True(t, ok)
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "'nonce-"+nonce+"'")
}

func TestEachRequestGetsItsOwnContext(t *testing.T) {
	r := gin.New()
	r.Use(RequestContextMiddleware(logging.NewDiscardLogger()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEqual(t, first.Header().Get(RequestIDHeader), second.Header().Get(RequestIDHeader))
	assert.NotEqual(t, first.Header().Get("Content-Security-Policy"), second.Header().Get("Content-Security-Policy"))
}

func TestMustRequestContextCreatesOne(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	rc := MustRequestContext(c)
	require.NotNil(t, rc)
	again, ok := GetRequestContext(c)
	require.True(t, ok)
	assert.Same(t, rc, again)
}

func TestLoginRateLimiter(t *testing.T) {
	limiter := NewLoginRateLimiter(1, 2, logging.NewDiscardLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"), "limits are per IP")

	now = now.Add(time.Minute)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestLoginRateLimiterMiddleware(t *testing.T) {
	limiter := NewLoginRateLimiter(1, 1, logging.NewDiscardLogger())
	r := gin.New()
	r.POST("/login", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(""))
		req.RemoteAddr = "192.0.2.7:5000"
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Too many sign-in attempts"}`, w.Body.String())
}
