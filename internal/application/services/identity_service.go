package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AtRiskMedia/spabook-go/internal/domain/user"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/security"
)

// dummyHash keeps unknown-email logins as slow as wrong-password ones.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := security.HashPassword(security.GenerateULID())
	return hash
})

// IdentityService handles staff sign-in and session verification for the
// backend API.
type IdentityService struct {
	repo        user.IdentityRepository
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	jwtSecret   string
	sessionTTL  time.Duration
}

// NewIdentityService creates a new identity service
func NewIdentityService(repo user.IdentityRepository, logger *logging.ChanneledLogger, perfTracker *performance.Tracker, jwtSecret string, sessionTTL time.Duration) *IdentityService {
	return &IdentityService{
		repo:        repo,
		logger:      logger,
		perfTracker: perfTracker,
		jwtSecret:   jwtSecret,
		sessionTTL:  sessionTTL,
	}
}

// SessionTTL returns the lifetime of issued session tokens.
func (s *IdentityService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Authenticate checks credentials and issues a session token.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*user.Identity, string, error) {
	marker := s.perfTracker.StartOperation("auth_login", "")
	defer s.perfTracker.CompleteOperation(marker)
	start := time.Now()

	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		marker.SetError(err)
		return nil, "", fmt.Errorf("failed to look up identity: %w", err)
	}

	hash := dummyHash()
	if identity != nil {
		hash = identity.PasswordHash
	}
	if err := security.CheckPassword(hash, password); err != nil || identity == nil {
		marker.SetError(ErrInvalidCredentials)
		s.logger.LogAuthOperation("login", "", false, time.Since(start))
		return nil, "", ErrInvalidCredentials
	}

	token, err := security.IssueSessionToken(identity.ID, identity.Role, s.jwtSecret, s.sessionTTL)
	if err != nil {
		marker.SetError(err)
		return nil, "", err
	}

	s.logger.LogAuthOperation("login", identity.ID, true, time.Since(start))
	return identity, token, nil
}

// Verify resolves a session token to its identity. Tokens for identities that
// no longer exist are rejected.
func (s *IdentityService) Verify(ctx context.Context, token string) (*user.Identity, error) {
	claims, err := security.ValidateSessionToken(token, s.jwtSecret)
	if err != nil {
		return nil, ErrNotAuthenticated
	}

	identity, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}
	if identity == nil {
		return nil, ErrNotAuthenticated
	}
	return identity, nil
}

// Register creates a new identity with a hashed password.
func (s *IdentityService) Register(ctx context.Context, email, displayName, password, role string) (*user.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if role == "" {
		role = "staff"
	}
	if displayName == "" {
		displayName = email
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	identity := &user.Identity{
		ID:           security.GenerateULID(),
		Email:        email,
		DisplayName:  displayName,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Store(ctx, identity); err != nil {
		return nil, err
	}
	s.logger.Auth().Info("Identity registered", "identityId", logging.MaskID(identity.ID), "role", role)
	return identity, nil
}

// SeedEntry is one identity in a seed file.
type SeedEntry struct {
	Email       string `yaml:"email"`
	DisplayName string `yaml:"display_name"`
	Password    string `yaml:"password"`
	Role        string `yaml:"role"`
}

// SeedFile is the YAML document read by SeedFromFile.
type SeedFile struct {
	Identities []SeedEntry `yaml:"identities"`
}

// SeedFromFile registers every identity in a YAML seed file whose email is
// not taken yet. It returns how many were created.
func (s *IdentityService) SeedFromFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	created := 0
	for _, entry := range seed.Identities {
		existing, err := s.repo.FindByEmail(ctx, entry.Email)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		if _, err := s.Register(ctx, entry.Email, entry.DisplayName, entry.Password, entry.Role); err != nil {
			if errors.Is(err, context.Canceled) {
				return created, err
			}
			return created, fmt.Errorf("failed to seed %s: %w", entry.Email, err)
		}
		created++
	}

	s.logger.Startup().Info("Identity seed applied", "file", path, "created", created, "total", len(seed.Identities))
	return created, nil
}
