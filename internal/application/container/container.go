// Package container provides dependency injection for the web and API
// processes.
package container

import (
	"context"
	"fmt"

	"github.com/AtRiskMedia/spabook-go/internal/application/services"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/backend"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/persistence/database"
	persistence "github.com/AtRiskMedia/spabook-go/internal/infrastructure/persistence/user"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

// WebContainer holds the singletons of the server-rendering process.
type WebContainer struct {
	Backend               *backend.Client
	AuthResolutionService *services.AuthResolutionService
	PrefetchService       *services.PrefetchService
	NavigationService     *services.NavigationService

	Logger      *logging.ChanneledLogger
	PerfTracker *performance.Tracker
}

// NewWebContainer wires the web process against the backend at
// config.BackendURL.
func NewWebContainer(logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *WebContainer {
	client := backend.NewClient(backend.OptionsFromEnv(logger))
	return NewWebContainerWithBackend(client, logger, perfTracker)
}

// NewWebContainerWithBackend wires the web process against client.
func NewWebContainerWithBackend(client *backend.Client, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *WebContainer {
	prefetch := services.NewPrefetchService(logger, perfTracker)
	return &WebContainer{
		Backend:               client,
		AuthResolutionService: services.NewAuthResolutionService(client, logger, perfTracker),
		PrefetchService:       prefetch,
		NavigationService: services.NewNavigationService(
			services.NewSiteRoutes(client), prefetch, config.SignInPath, logger),
		Logger:      logger,
		PerfTracker: perfTracker,
	}
}

// APIContainer holds the singletons of the identity backend process.
type APIContainer struct {
	DB              *database.DB
	IdentityService *services.IdentityService
	HealthService   *services.HealthService

	Logger      *logging.ChanneledLogger
	PerfTracker *performance.Tracker
}

// NewAPIContainer opens the database, ensures the schema exists and wires
// the identity services.
func NewAPIContainer(ctx context.Context, dbConfig database.Config, jwtSecret string, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) (*APIContainer, error) {
	db, err := database.Open(ctx, dbConfig, logger)
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	repo := persistence.NewSQLIdentityRepository(db, logger)
	return &APIContainer{
		DB:              db,
		IdentityService: services.NewIdentityService(repo, logger, perfTracker, jwtSecret, config.SessionTTL),
		HealthService:   services.NewHealthService(repo, logger),
		Logger:          logger,
		PerfTracker:     perfTracker,
	}, nil
}

// Close releases the database.
func (c *APIContainer) Close() error {
	return c.DB.Close()
}
