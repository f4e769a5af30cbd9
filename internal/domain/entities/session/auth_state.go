// Package session provides domain entities for the per-request authentication
// outcome and its resolution lifecycle.
package session

import (
	"time"

	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
)

// AuthState is the outcome of verifying a session for the current request.
// A nil *AuthState stored under AuthKey means the request is anonymous.
type AuthState struct {
	IdentityID string    `json:"identityId"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

// AuthKey is the request context slot for the resolved auth state.
var AuthKey = requestctx.NewKey[*AuthState]("auth")

// ResolutionState tracks auth resolution within one request.
type ResolutionState int

const (
	Unresolved ResolutionState = iota
	ResolvedAuthenticated
	ResolvedAnonymous
)

func (s ResolutionState) String() string {
	switch s {
	case ResolvedAuthenticated:
		return "authenticated"
	case ResolvedAnonymous:
		return "anonymous"
	default:
		return "unresolved"
	}
}

// NewAuthState returns an authenticated state, or nil when identityID is
// empty.
func NewAuthState(identityID string, verifiedAt time.Time) *AuthState {
	if identityID == "" {
		return nil
	}
	if verifiedAt.IsZero() {
		verifiedAt = time.Now().UTC()
	}
	return &AuthState{IdentityID: identityID, VerifiedAt: verifiedAt}
}

// IsAuthenticated reports whether the state carries an identity.
func (a *AuthState) IsAuthenticated() bool {
	return a != nil && a.IdentityID != ""
}

// StateOf derives the resolution state from a request context.
func StateOf(rc *requestctx.RequestContext) ResolutionState {
	auth, ok := requestctx.Get(rc, AuthKey)
	switch {
	case !ok:
		return Unresolved
	case auth.IsAuthenticated():
		return ResolvedAuthenticated
	default:
		return ResolvedAnonymous
	}
}

// CurrentAuth returns the resolved auth state. Unresolved and anonymous
// requests both yield nil.
func CurrentAuth(rc *requestctx.RequestContext) *AuthState {
	auth, _ := requestctx.Get(rc, AuthKey)
	if !auth.IsAuthenticated() {
		return nil
	}
	return auth
}
