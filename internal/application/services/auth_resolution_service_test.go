package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/spabook-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/backend"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
)

type fakeVerifier struct {
	calls atomic.Int32
	resp  *backend.VerifyResponse
	err   error
}

func (f *fakeVerifier) VerifyAuth(ctx context.Context, cookies []*http.Cookie) (*backend.VerifyResponse, error) {
	f.calls.Add(1)
	return f.resp, f.err
}

func newResolver(v AuthVerifier) *AuthResolutionService {
	return NewAuthResolutionService(v, logging.NewDiscardLogger(), performance.NewTracker(nil, nil))
}

func TestResolvePublishesIdentity(t *testing.T) {
	for _, id := range []string{"01HV0000000000000000000000", "x", "staff-42"} {
		verifier := &fakeVerifier{resp: &backend.VerifyResponse{IdentityID: id, Timestamp: "2024-05-01T10:00:00Z"}}
		rc := requestctx.New()

		auth := newResolver(verifier).Resolve(context.Background(), rc, nil)

		require.NotNil(t, auth)
		assert.Equal(t, id, auth.IdentityID)
		assert.Equal(t, 2024, auth.VerifiedAt.Year())

		stored, ok := requestctx.Get(rc, session.AuthKey)
		require.True(t, ok)
		assert.Equal(t, id, stored.IdentityID)
		assert.Equal(t, session.ResolvedAuthenticated, session.StateOf(rc))
	}
}

func TestResolveFailuresAreAnonymous(t *testing.T) {
	cases := map[string]*fakeVerifier{
		"transport error": {err: errors.New("connection refused")},
		"timeout":         {err: context.DeadlineExceeded},
		"unauthorized":    {err: &backend.StatusError{StatusCode: http.StatusUnauthorized}},
		"empty identity":  {resp: &backend.VerifyResponse{IdentityID: "", Timestamp: "T"}},
		"nil response":    {},
	}

	for name, verifier := range cases {
		t.Run(name, func(t *testing.T) {
			rc := requestctx.New()

			auth := newResolver(verifier).Resolve(context.Background(), rc, nil)

			assert.Nil(t, auth)
			stored, ok := requestctx.Get(rc, session.AuthKey)
			assert.True(t, ok, "anonymous must be published, not left unset")
			assert.Nil(t, stored)
			assert.Equal(t, session.ResolvedAnonymous, session.StateOf(rc))
		})
	}
}

func TestResolveCallsBackendOncePerRequest(t *testing.T) {
	verifier := &fakeVerifier{resp: &backend.VerifyResponse{IdentityID: "abc"}}
	resolver := newResolver(verifier)
	rc := requestctx.New()

	first := resolver.Resolve(context.Background(), rc, nil)
	second := resolver.Resolve(context.Background(), rc, nil)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), verifier.calls.Load())

	resolver.Resolve(context.Background(), requestctx.New(), nil)
	assert.Equal(t, int32(2), verifier.calls.Load(), "a new request resolves again")
}

func TestResolveKeepsAnonymousOutcome(t *testing.T) {
	verifier := &fakeVerifier{err: errors.New("down")}
	resolver := newResolver(verifier)
	rc := requestctx.New()

	resolver.Resolve(context.Background(), rc, nil)
	verifier.err = nil
	verifier.resp = &backend.VerifyResponse{IdentityID: "late"}

	assert.Nil(t, resolver.Resolve(context.Background(), rc, nil))
	assert.Equal(t, int32(1), verifier.calls.Load())
}

func TestSignInRedirect(t *testing.T) {
	cases := map[string]string{
		"/staff?x=1":       "/auth?redirect=%2Fstaff%3Fx%3D1",
		"/staff":           "/auth?redirect=%2Fstaff",
		"/staff?a=1&b=two": "/auth?redirect=%2Fstaff%3Fa%3D1%26b%3Dtwo",
	}
	for raw, want := range cases {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, SignInRedirect("/auth", u), raw)
	}
}

func TestSafeRedirectTarget(t *testing.T) {
	assert.Equal(t, "/staff?x=1", SafeRedirectTarget("/staff?x=1", "/"))
	assert.Equal(t, "/", SafeRedirectTarget("", "/"))
	assert.Equal(t, "/", SafeRedirectTarget("//evil.example", "/"))
	assert.Equal(t, "/", SafeRedirectTarget("/\\evil.example", "/"))
	assert.Equal(t, "/", SafeRedirectTarget("https://evil.example/", "/"))
	assert.Equal(t, "/", SafeRedirectTarget("staff", "/"))
}
