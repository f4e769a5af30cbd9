package services

import (
	"context"
	"time"

	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerHealth is the server health payload.
type ServerHealth struct {
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime,omitempty"`
}

// DatabaseHealth is the database health payload.
type DatabaseHealth struct {
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// HealthService reports backend health.
type HealthService struct {
	db        Pinger
	logger    *logging.ChanneledLogger
	startedAt time.Time
	now       func() time.Time
}

// NewHealthService creates a new health service
func NewHealthService(db Pinger, logger *logging.ChanneledLogger) *HealthService {
	return &HealthService{
		db:        db,
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Server reports that the process is serving.
func (s *HealthService) Server() ServerHealth {
	now := s.now()
	return ServerHealth{
		Service:   "ok",
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(s.startedAt).Round(time.Second).String(),
	}
}

// Database pings the database within timeout.
func (s *HealthService) Database(ctx context.Context, timeout time.Duration) (DatabaseHealth, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Health().Warn("Database health check failed", "error", err)
		return DatabaseHealth{}, err
	}
	return DatabaseHealth{
		Database:  "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}, nil
}
