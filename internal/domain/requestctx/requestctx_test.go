package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOnlyReachableThroughItsKey(t *testing.T) {
	first := NewKey[string]("nonce")
	second := NewKey[string]("nonce")
	rc := New()

	Set(rc, first, "abc")

	v, ok := Get(rc, first)
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok = Get(rc, second)
	assert.False(t, ok, "a different key with the same name must not see the value")
}

func TestAbsentValueIsDistinguishable(t *testing.T) {
	key := NewKey[*int]("count")
	rc := New()

	v, ok := Get(rc, key)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.False(t, Has(rc, key))

	Set[*int](rc, key, nil)
	v, ok = Get(rc, key)
	assert.True(t, ok, "an explicit nil is a set value")
	assert.Nil(t, v)
	assert.True(t, Has(rc, key))
}

func TestNilContextAndKeyAreSafe(t *testing.T) {
	key := NewKey[string]("x")

	_, ok := Get[string](nil, key)
	assert.False(t, ok)
	_, ok = Get[string](New(), nil)
	assert.False(t, ok)
	assert.Equal(t, "fallback", GetOr[string](nil, key, "fallback"))
}

func TestDeleteAndLen(t *testing.T) {
	a := NewKey[int]("a")
	b := NewKey[bool]("b")
	rc := New()

	Set(rc, a, 1)
	Set(rc, b, true)
	assert.Equal(t, 2, rc.Len())

	Delete(rc, a)
	assert.Equal(t, 1, rc.Len())
	assert.False(t, Has(rc, a))
}

func TestRequestContextsAreIsolated(t *testing.T) {
	key := NewKey[string]("auth")
	one, two := New(), New()

	Set(one, key, "alice")

	_, ok := Get(two, key)
	assert.False(t, ok)
}

func TestContextRoundTrip(t *testing.T) {
	rc := New()
	ctx := WithRequestContext(context.Background(), rc)

	assert.Same(t, rc, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
