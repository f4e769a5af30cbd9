// Package services provides application-level orchestration services
package services

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/AtRiskMedia/spabook-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/backend"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
)

// AuthVerifier checks a request's session with the backend.
type AuthVerifier interface {
	VerifyAuth(ctx context.Context, cookies []*http.Cookie) (*backend.VerifyResponse, error)
}

// AuthResolutionService determines who is making a request.
type AuthResolutionService struct {
	verifier    AuthVerifier
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAuthResolutionService creates a new auth resolution service
func NewAuthResolutionService(verifier AuthVerifier, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AuthResolutionService {
	return &AuthResolutionService{
		verifier:    verifier,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// Resolve publishes the caller's auth state into rc under session.AuthKey
// and returns it. The backend is called at most once per request context;
// a context that already holds a value is returned as-is. Every failure
// resolves to anonymous (nil) and is only logged.
func (s *AuthResolutionService) Resolve(ctx context.Context, rc *requestctx.RequestContext, cookies []*http.Cookie) *session.AuthState {
	if auth, ok := requestctx.Get(rc, session.AuthKey); ok {
		return auth
	}

	requestID := requestctx.GetOr(rc, requestctx.RequestIDKey, "")
	marker := s.perfTracker.StartOperation("auth_resolution", requestID)
	defer s.perfTracker.CompleteOperation(marker)
	start := time.Now()

	auth := s.verify(ctx, cookies, marker)
	requestctx.Set(rc, session.AuthKey, auth)

	identityID := ""
	if auth != nil {
		identityID = auth.IdentityID
	}
	s.logger.LogAuthOperation("resolve", identityID, auth.IsAuthenticated(), time.Since(start))
	return auth
}

func (s *AuthResolutionService) verify(ctx context.Context, cookies []*http.Cookie, marker *performance.Marker) *session.AuthState {
	resp, err := s.verifier.VerifyAuth(ctx, cookies)
	if err != nil {
		marker.SetError(err)
		s.logger.WithContext(ctx, logging.ChannelAuth).Debug("Auth verification failed, continuing anonymously", "error", err)
		return nil
	}
	if resp == nil || resp.IdentityID == "" {
		marker.AddMetadata("reason", "empty identity")
		return nil
	}

	verifiedAt, err := time.Parse(time.RFC3339, resp.Timestamp)
	if err != nil {
		verifiedAt = time.Time{}
	}
	return session.NewAuthState(resp.IdentityID, verifiedAt)
}

// SignInRedirect builds the sign-in URL that returns the user to u after
// authenticating: signInPath?redirect=<escaped path and query>.
func SignInRedirect(signInPath string, u *url.URL) string {
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return signInPath + "?redirect=" + url.QueryEscape(target)
}

// SafeRedirectTarget returns target when it is a local absolute path and
// fallback otherwise.
func SafeRedirectTarget(target, fallback string) string {
	if target == "" || target[0] != '/' || len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}
