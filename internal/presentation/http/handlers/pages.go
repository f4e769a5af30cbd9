// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/spabook-go/internal/application/services"
	"github.com/AtRiskMedia/spabook-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/caching/querycache"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/templates"
)

// PageHandlers server-renders the booking site's pages.
type PageHandlers struct {
	navigation  *services.NavigationService
	prefetch    *services.PrefetchService
	renderer    *templates.Renderer
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewPageHandlers creates page handlers with injected dependencies
func NewPageHandlers(navigation *services.NavigationService, prefetch *services.PrefetchService, renderer *templates.Renderer, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PageHandlers {
	return &PageHandlers{
		navigation:  navigation,
		prefetch:    prefetch,
		renderer:    renderer,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// GetPage handles GET for every site path. The route tree decides what is
// rendered; unmatched paths render the not-found page with a 404.
func (h *PageHandlers) GetPage(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusMethodNotAllowed)
		return
	}

	rc := middleware.MustRequestContext(c)
	requestID := requestctx.GetOr(rc, requestctx.RequestIDKey, "")

	start := time.Now()
	marker := h.perfTracker.StartOperation("get_page_request", requestID)
	defer marker.Complete()
	h.logger.Render().Debug("Received page request", "method", c.Request.Method, "path", c.Request.URL.Path, "requestId", requestID)

	form := templates.SignInForm{Redirect: services.SafeRedirectTarget(c.Query("redirect"), "/")}
	if c.Request.URL.Path == h.navigation.SignInPath() && session.CurrentAuth(rc).IsAuthenticated() {
		c.Redirect(http.StatusFound, form.Redirect)
		return
	}

	cache := h.prefetch.NewRequestCache()
	h.render(c, cache, c.Request.URL, http.StatusOK, form)

	marker.SetSuccess(true)
	h.logger.Perf().Info("Performance for GetPage request", "path", c.Request.URL.Path, "duration", time.Since(start), "requestId", requestID)
}

// render navigates u against cache and writes the page, or the redirect the
// navigation produced.
func (h *PageHandlers) render(c *gin.Context, cache *querycache.Cache, u *url.URL, status int, form templates.SignInForm) {
	rc := middleware.MustRequestContext(c)
	requestID := requestctx.GetOr(rc, requestctx.RequestIDKey, "")

	nav := h.navigation.Navigate(c.Request.Context(), rc, cache, u)
	if nav.Redirect != "" {
		c.Redirect(http.StatusFound, nav.Redirect)
		return
	}
	if nav.NotFound {
		status = http.StatusNotFound
	}

	nonce := requestctx.GetOr(rc, requestctx.NonceKey, "")
	data, err := templates.BuildPageData(nav, cache, u.Path, nonce, form)
	if err != nil {
		h.logger.Render().Error("Failed to build page data", "path", u.Path, "error", err, "requestId", requestID)
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}

	body, err := h.renderer.RenderPage(data, requestID)
	if err != nil {
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(status, "text/html; charset=utf-8", body)
}

// GetHealthz handles GET /healthz - liveness of the web server itself
func GetHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
