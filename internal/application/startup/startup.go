// Package startup prepares and runs the web and API servers
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/spabook-go/internal/application/container"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/http/routes"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

const perfCleanupInterval = 5 * time.Minute

const banner = "\033[32m" + `
   ___ ___  __ _| |__   ___   ___ | | __
  / __| '_ \/ _' | '_ \ / _ \ / _ \| |/ /
  \__ \ |_) | (_| | |_) | (_) | (_) |   <
  |___/ .__/\__,_|_.__/ \___/ \___/|_|\_\
      |_|
` + "\033[0m"

// NewLogger builds the channeled logger from configuration.
func NewLogger() (*logging.ChanneledLogger, error) {
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    config.LogToFile,
		OutputToConsole: true,
		LogDirectory:    config.LogDirectory,
		JSONFormat:      config.LogJSONFormat,
		DefaultLevel:    logging.ParseLevel(config.LogLevel),
	})
	if err != nil {
		return nil, err
	}
	if err := logger.ApplyChannelLevels(config.LogChannelLevels); err != nil {
		logger.Close()
		return nil, err
	}
	if len(config.LogChannelLevels) > 0 {
		logger.Startup().Info("Log channel levels", "levels", logger.GetChannelLevels())
	}
	return logger, nil
}

// NewPerfTracker builds the performance tracker from configuration.
func NewPerfTracker() *performance.Tracker {
	thresholds := performance.DefaultAlertThresholds()
	thresholds.AuthOperationThreshold = config.SlowAuthThreshold
	thresholds.PrefetchThreshold = config.SlowPrefetchThreshold
	return performance.NewTracker(performance.DefaultTrackerConfig(), thresholds)
}

// InitializeWeb runs the server-rendering site until SIGINT or SIGTERM.
func InitializeWeb() error {
	setupLogging()
	start := time.Now().UTC()
	log.Println(banner)

	// Step 1: Logging and performance tracking
	logger, err := NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	perfTracker := NewPerfTracker()

	// Step 2: Container
	logger.Startup().Info("Initializing web container", "backend", config.BackendURL)
	webContainer := container.NewWebContainer(logger, perfTracker)

	// Step 3: HTTP server
	httpServer := server.New("web", config.Port, routes.SetupWebRoutes(webContainer), logger)
	logger.Startup().Info("Web startup complete", "port", config.Port, "duration", time.Since(start))

	return serveUntilSignal(httpServer, logger, perfTracker, nil)
}

// InitializeAPI runs the identity and health backend until SIGINT or SIGTERM.
func InitializeAPI() error {
	setupLogging()
	start := time.Now().UTC()
	log.Println(banner)

	// Step 1: Logging and performance tracking
	logger, err := NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	perfTracker := NewPerfTracker()

	// Step 2: Session signing secret
	secret := config.JWTSecret
	if secret == "" {
		secret, err = security.GenerateSecureKey(64)
		if err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}
		logger.Startup().Warn("JWT_SECRET is not set, using a random secret; sessions will not survive a restart")
	}

	// Step 3: Database and container
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	apiContainer, err := container.NewAPIContainer(ctx, database.ConfigFromEnv(), secret, logger, perfTracker)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to initialize API container: %w", err)
	}
	logger.Startup().Info("Database ready", "connection", apiContainer.DB.ConnectionInfo())

	// Step 4: Seed identities
	if config.SeedFile != "" {
		added, err := apiContainer.IdentityService.SeedFromFile(ctx, config.SeedFile)
		if err != nil {
			cancel()
			apiContainer.Close()
			return fmt.Errorf("failed to seed identities: %w", err)
		}
		logger.Startup().Info("Seeded identities", "file", config.SeedFile, "added", added)
	}
	cancel()

	// Step 5: HTTP server
	httpServer := server.New("api", config.APIPort, routes.SetupAPIRoutes(apiContainer), logger)
	logger.Startup().Info("API startup complete", "port", config.APIPort, "duration", time.Since(start))

	return serveUntilSignal(httpServer, logger, perfTracker, apiContainer.Close)
}

func serveUntilSignal(httpServer *server.Server, logger *logging.ChanneledLogger, perfTracker *performance.Tracker, closeResources func() error) error {
	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()
	go runPerfCleanup(ctx, perfTracker, logger)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(gracefulShutdown)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			if closeResources != nil {
				_ = closeResources()
			}
			return err
		}
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	}

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	if closeResources != nil {
		if err := closeResources(); err != nil {
			logger.Shutdown().Error("Error closing resources", "error", err.Error())
		}
	}

	logger.Shutdown().Info("Shutdown complete", "shutdownDuration", time.Since(shutdownStart))
	return nil
}

func runPerfCleanup(ctx context.Context, perfTracker *performance.Tracker, logger *logging.ChanneledLogger) {
	ticker := time.NewTicker(perfCleanupInterval)
	defer ticker.Stop()
	var lastReported time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastReported = reportAlerts(perfTracker, logger, lastReported)
			perfTracker.Cleanup()
		}
	}
}

// reportAlerts logs alerts raised after since and returns the newest alert
// time seen.
func reportAlerts(perfTracker *performance.Tracker, logger *logging.ChanneledLogger, since time.Time) time.Time {
	newest := since
	for _, alert := range perfTracker.GetAlerts() {
		if !alert.Timestamp.After(since) {
			continue
		}
		emit := logger.Perf().Warn
		if alert.Severity == performance.AlertCritical {
			emit = logger.Perf().Error
		}
		emit(alert.Message, "operation", alert.Operation, "requestId", alert.RequestID,
			"threshold", alert.Threshold, "actual", alert.Actual)
		if alert.Timestamp.After(newest) {
			newest = alert.Timestamp
		}
	}
	return newest
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
