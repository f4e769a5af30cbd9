// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/spabook-go/internal/application/container"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/backend"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/templates"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

// SetupWebRoutes configures the server-rendering site. Every GET that is not
// a fixed endpoint goes through the route tree.
func SetupWebRoutes(c *container.WebContainer) *gin.Engine {
	r := gin.Default()

	renderer := templates.NewRenderer(c.Logger, c.PerfTracker)
	pageHandlers := handlers.NewPageHandlers(c.NavigationService, c.PrefetchService, renderer, c.Logger, c.PerfTracker)
	signInHandlers := handlers.NewSignInHandlers(pageHandlers, c.Backend, c.Logger, c.PerfTracker)
	limiter := middleware.NewLoginRateLimiter(config.LoginRatePerMinute, config.LoginBurst, c.Logger)

	r.GET("/healthz", handlers.GetHealthz)

	requestContext := middleware.RequestContextMiddleware(c.Logger)
	authResolution := middleware.AuthResolutionMiddleware(c.AuthResolutionService)

	site := r.Group("/", requestContext, authResolution)
	{
		site.POST(config.SignInPath, limiter.Middleware(), signInHandlers.PostSignIn)
		site.POST(config.SignInPath+"/signout", signInHandlers.PostSignOut)
	}

	r.NoRoute(requestContext, authResolution, pageHandlers.GetPage)

	return r
}

// SetupAPIRoutes configures the identity and health backend.
func SetupAPIRoutes(c *container.APIContainer) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware(config.AllowedOrigins))

	identityHandlers := handlers.NewIdentityHandlers(c.IdentityService, handlers.SessionCookie{
		Name:   config.SessionCookieName,
		Secure: config.SessionSecure,
	}, c.Logger, c.PerfTracker)
	healthHandlers := handlers.NewHealthHandlers(c.HealthService, config.HealthCheckTimeout, c.Logger)
	limiter := middleware.NewLoginRateLimiter(config.LoginRatePerMinute, config.LoginBurst, c.Logger)

	// paths are shared with the backend client
	r.POST(backend.VerifyPath, identityHandlers.PostVerify)
	r.POST(backend.LoginPath, limiter.Middleware(), identityHandlers.PostLogin)
	r.POST(backend.LogoutPath, identityHandlers.PostLogout)
	r.GET(backend.ServerHealthPath, healthHandlers.GetServerHealth)
	r.GET(backend.DatabaseHealthPath, healthHandlers.GetDatabaseHealth)

	return r
}
