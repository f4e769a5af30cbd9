// Package config provides centralized default values for spabook
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

// loadEnvFile applies .env overrides without clobbering variables already
// present in the process environment.
func loadEnvFile() {
	envLoaded.Do(func() {
		if err := godotenv.Load(); err != nil {
			return
		}
		log.Println("Loaded configuration overrides from .env file")
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	log.Printf("Config override: %s=%s", key, valStr)
	return out
}

var (
	// Server Configuration
	Port               string
	APIPort            string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	ShutdownTimeout    time.Duration
	AllowedOrigins     []string

	// Backend (verify-auth + health) Configuration
	BackendURL         string
	AuthVerifyTimeout  time.Duration
	HealthCheckTimeout time.Duration

	// Session Configuration
	SessionCookieName string
	SessionTTL        time.Duration
	SessionSecure     bool
	JWTSecret         string
	SignInPath        string

	// Query Cache Configuration
	QueryStaleTime      time.Duration
	PrefetchConcurrency int

	// Database
	SQLitePath               string
	TursoDatabase            string
	TursoToken               string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	SeedFile                 string

	// Login throttling
	LoginRatePerMinute int
	LoginBurst         int

	// Logging
	LogDirectory  string
	LogToFile     bool
	LogJSONFormat bool
	LogLevel      string
	// channel=level pairs, e.g. query=debug
	LogChannelLevels []string

	// Performance thresholds
	SlowAuthThreshold     time.Duration
	SlowPrefetchThreshold time.Duration
	SlowQueryThreshold    time.Duration
)

func init() {
	Load()
}

// Load (re)reads every setting from the environment. Tests call it after
// t.Setenv to pick up overrides.
func Load() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	APIPort = getEnvString("API_PORT", "8081")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	AllowedOrigins = getEnvList("ALLOWED_ORIGINS", []string{
		"http://localhost:8080",
		"http://127.0.0.1:8080",
		"http://[::1]:8080",
	})

	// Backend
	BackendURL = getEnvString("BACKEND_URL", "http://localhost:8081")
	AuthVerifyTimeout = getEnvDuration("AUTH_VERIFY_TIMEOUT", 3*time.Second)
	HealthCheckTimeout = getEnvDuration("HEALTH_CHECK_TIMEOUT", 3*time.Second)

	// Session
	SessionCookieName = getEnvString("SESSION_COOKIE_NAME", "spa_session")
	SessionTTL = time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour
	SessionSecure = getEnvBool("SESSION_SECURE", false)
	JWTSecret = getEnvString("JWT_SECRET", "")
	SignInPath = getEnvString("SIGN_IN_PATH", "/auth")

	// Query cache
	QueryStaleTime = getEnvDuration("QUERY_STALE_TIME", 60*time.Second)
	PrefetchConcurrency = getEnvInt("PREFETCH_CONCURRENCY", 4)

	// Database
	SQLitePath = getEnvString("SQLITE_PATH", "./db/spabook.db")
	TursoDatabase = getEnvString("TURSO_DATABASE_URL", "")
	TursoToken = getEnvString("TURSO_AUTH_TOKEN", "")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	SeedFile = getEnvString("SEED_FILE", "")

	// Login throttling
	LoginRatePerMinute = getEnvInt("LOGIN_RATE_PER_MINUTE", 10)
	LoginBurst = getEnvInt("LOGIN_BURST", 5)

	// Logging
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")
	LogToFile = getEnvBool("LOG_TO_FILE", false)
	LogJSONFormat = getEnvBool("LOG_JSON", true)
	LogLevel = getEnvString("LOG_LEVEL", "info")
	LogChannelLevels = getEnvList("LOG_CHANNEL_LEVELS", nil)

	// Performance thresholds
	SlowAuthThreshold = getEnvDuration("SLOW_AUTH_THRESHOLD", 200*time.Millisecond)
	SlowPrefetchThreshold = getEnvDuration("SLOW_PREFETCH_THRESHOLD", 500*time.Millisecond)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 100*time.Millisecond)
}
