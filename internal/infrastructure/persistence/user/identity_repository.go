// Package user provides the SQL implementation of the identity repository.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/spabook-go/internal/domain/user"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

// ErrDuplicateEmail is returned by Store when the email is already taken.
var ErrDuplicateEmail = errors.New("identity with this email already exists")

const identityColumns = `id, email, display_name, password_hash, role, created_at`

// SQLIdentityRepository is the SQL-based implementation of the IdentityRepository.
type SQLIdentityRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

var _ user.IdentityRepository = (*SQLIdentityRepository)(nil)

// NewSQLIdentityRepository creates a new instance of the repository.
func NewSQLIdentityRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLIdentityRepository {
	return &SQLIdentityRepository{
		db:     db,
		logger: logger,
	}
}

// FindByID retrieves an identity by its ULID.
func (r *SQLIdentityRepository) FindByID(ctx context.Context, id string) (*user.Identity, error) {
	const query = `SELECT ` + identityColumns + ` FROM identities WHERE id = ?`
	return r.findOne(ctx, query, "id", id)
}

// FindByEmail retrieves an identity by email, compared case-insensitively.
func (r *SQLIdentityRepository) FindByEmail(ctx context.Context, email string) (*user.Identity, error) {
	const query = `SELECT ` + identityColumns + ` FROM identities WHERE email = ?`
	return r.findOne(ctx, query, "email", normalizeEmail(email))
}

// Store inserts a new identity.
func (r *SQLIdentityRepository) Store(ctx context.Context, identity *user.Identity) error {
	const query = `INSERT INTO identities (` + identityColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

	start := time.Now()
	identity.Email = normalizeEmail(identity.Email)
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	r.logger.Database().Debug("Executing identity insert", "id", identity.ID)

	_, err := r.db.ExecContext(ctx, query,
		identity.ID,
		identity.Email,
		identity.DisplayName,
		identity.PasswordHash,
		identity.Role,
		identity.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return ErrDuplicateEmail
		}
		r.logger.Database().Error("Identity insert failed", "error", err.Error(), "id", identity.ID)
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	r.logSlow("identity_insert", start)
	r.logger.Database().Info("Identity insert completed", "id", identity.ID, "duration", time.Since(start))
	return nil
}

// Ping verifies the database is reachable.
func (r *SQLIdentityRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("database ping query failed: %w", err)
	}
	return nil
}

func (r *SQLIdentityRepository) findOne(ctx context.Context, query, field, value string) (*user.Identity, error) {
	start := time.Now()

	identity, err := scanIdentity(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Database().Debug("Identity not found", "field", field)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load identity", "error", err.Error(), "field", field)
		return nil, fmt.Errorf("failed to load identity by %s: %w", field, err)
	}

	r.logSlow("identity_by_"+field, start)
	return identity, nil
}

func (r *SQLIdentityRepository) logSlow(operation string, start time.Time) {
	if duration := time.Since(start); duration > config.SlowQueryThreshold {
		r.logger.Database().Warn("Slow query", "operation", operation, "duration", duration)
	}
}

func scanIdentity(row *sql.Row) (*user.Identity, error) {
	var identity user.Identity
	var createdAt string

	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.DisplayName,
		&identity.PasswordHash,
		&identity.Role,
		&createdAt,
	); err != nil {
		return nil, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		// rows written by hand in the sqlite shell
		parsed, err = time.Parse("2006-01-02 15:04:05", createdAt)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
		}
	}
	identity.CreatedAt = parsed
	return &identity, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
