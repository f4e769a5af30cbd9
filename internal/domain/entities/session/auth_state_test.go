package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
)

func TestStateOf(t *testing.T) {
	rc := requestctx.New()
	assert.Equal(t, Unresolved, StateOf(rc))
	assert.Nil(t, CurrentAuth(rc))

	requestctx.Set(rc, AuthKey, nil)
	assert.Equal(t, ResolvedAnonymous, StateOf(rc))
	assert.Nil(t, CurrentAuth(rc))

	requestctx.Set(rc, AuthKey, NewAuthState("01HZX", time.Now()))
	assert.Equal(t, ResolvedAuthenticated, StateOf(rc))
	assert.Equal(t, "01HZX", CurrentAuth(rc).IdentityID)
}

func TestNewAuthStateRequiresIdentity(t *testing.T) {
	assert.Nil(t, NewAuthState("", time.Now()))

	state := NewAuthState("abc", time.Time{})
	assert.True(t, state.IsAuthenticated())
	assert.False(t, state.VerifiedAt.IsZero())

	var anonymous *AuthState
	assert.False(t, anonymous.IsAuthenticated())
}

func TestResolutionStateString(t *testing.T) {
	assert.Equal(t, "unresolved", Unresolved.String())
	assert.Equal(t, "authenticated", ResolvedAuthenticated.String())
	assert.Equal(t, "anonymous", ResolvedAnonymous.String())
}
