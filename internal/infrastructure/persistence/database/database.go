// Package database provides the core functionality for creating and managing
// the identity backend's database connection.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

// Config selects and tunes the database connection. Turso is used when both
// its URL and token are set; SQLite otherwise.
type Config struct {
	SQLitePath      string
	TursoDatabase   string
	TursoToken      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConfigFromEnv builds a Config from the central config package.
func ConfigFromEnv() Config {
	return Config{
		SQLitePath:      config.SQLitePath,
		TursoDatabase:   config.TursoDatabase,
		TursoToken:      config.TursoToken,
		MaxOpenConns:    config.DBMaxOpenConns,
		MaxIdleConns:    config.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute,
	}
}

// UseTurso reports whether the config selects the libsql driver.
func (c Config) UseTurso() bool {
	return c.TursoDatabase != "" && c.TursoToken != ""
}

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	UseTurso bool
	path     string
}

// Open establishes the database connection and verifies it with a ping.
func Open(ctx context.Context, cfg Config, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()

	var (
		conn *sql.DB
		err  error
		path string
	)
	if cfg.UseTurso() {
		logger.Database().Debug("Opening Turso connection", "database", cfg.TursoDatabase)
		conn, err = sql.Open("libsql", cfg.TursoDatabase+"?authToken="+cfg.TursoToken)
		if err != nil {
			return nil, fmt.Errorf("turso connection failed: %w", err)
		}
		path = cfg.TursoDatabase
	} else {
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path is not configured")
		}
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		logger.Database().Debug("Opening SQLite connection", "path", cfg.SQLitePath)
		conn, err = sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite connection failed: %w", err)
		}
		path = cfg.SQLitePath
		if cfg.SQLitePath == ":memory:" {
			// every pooled connection would otherwise get its own empty database
			conn.SetMaxOpenConns(1)
		}
	}

	if cfg.MaxOpenConns > 0 && cfg.SQLitePath != ":memory:" {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		logger.Database().Error("Database ping failed", "error", err.Error(), "turso", cfg.UseTurso())
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	db := &DB{DB: conn, UseTurso: cfg.UseTurso(), path: path}
	logger.Database().Info("Database connection established",
		"connection", db.ConnectionInfo(), "duration", time.Since(start))
	return db, nil
}

// ConnectionInfo describes the connection for logs and health output.
func (db *DB) ConnectionInfo() string {
	if db.UseTurso {
		return "Turso"
	}
	return fmt.Sprintf("SQLite (%s)", db.path)
}
