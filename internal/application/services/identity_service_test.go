package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/persistence/database"
	persistence "github.com/AtRiskMedia/spabook-go/internal/infrastructure/persistence/user"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/security"
)

const testJWTSecret = "identity-service-test-secret"

func newIdentityService(t *testing.T) *IdentityService {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewDiscardLogger()

	db, err := database.Open(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "identity.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateSchema(ctx))

	repo := persistence.NewSQLIdentityRepository(db, logger)
	return NewIdentityService(repo, logger, performance.NewTracker(nil, nil), testJWTSecret, time.Hour)
}

func TestAuthenticateAndVerify(t *testing.T) {
	svc := newIdentityService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "desk@spa.example", "Front Desk", "s3cret!", "")
	require.NoError(t, err)
	assert.Equal(t, "staff", registered.Role)
	assert.True(t, security.IsULID(registered.ID))

	identity, token, err := svc.Authenticate(ctx, "DESK@spa.example", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, identity.ID)
	require.NotEmpty(t, token)

	verified, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, verified.ID)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := newIdentityService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "desk@spa.example", "Front Desk", "s3cret!", "staff")
	require.NoError(t, err)

	_, _, err = svc.Authenticate(ctx, "desk@spa.example", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Authenticate(ctx, "nobody@spa.example", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsForeignAndOrphanTokens(t *testing.T) {
	svc := newIdentityService(t)
	ctx := context.Background()

	foreign, err := security.IssueSessionToken("01HV0000000000000000000000", "staff", "another-secret", time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, foreign)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	orphan, err := security.IssueSessionToken("01HV0000000000000000000000", "staff", testJWTSecret, time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, orphan)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSeedFromFileIsIdempotent(t *testing.T) {
	svc := newIdentityService(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`identities:
  - email: desk@spa.example
    display_name: Front Desk
    password: s3cret!
  - email: manager@spa.example
    display_name: Manager
    password: an0ther
    role: manager
`), 0o600))

	created, err := svc.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = svc.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, created)

	identity, _, err := svc.Authenticate(ctx, "manager@spa.example", "an0ther")
	require.NoError(t, err)
	assert.Equal(t, "manager", identity.Role)
}

func TestSeedFromFileRejectsBadYAML(t *testing.T) {
	svc := newIdentityService(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("identities: [\n"), 0o600))

	_, err := svc.SeedFromFile(context.Background(), path)
	assert.Error(t, err)
}
