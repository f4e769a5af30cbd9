// Package requestctx provides the per-request, type-safe value store that
// pipeline steps use to hand resolved values (auth identity, CSP nonce,
// request ID) to the steps that render the page.
package requestctx

import (
	"context"
	"sync"
)

// Key identifies one logical concern in a RequestContext. Two keys are equal
// only if they are the same pointer, so a value stored under a key can only be
// read back through that key, even if another key shares its name or type.
type Key[T any] struct {
	name string
}

// NewKey creates a new unique key. Keys are meant to be package-level values.
func NewKey[T any](name string) *Key[T] {
	return &Key[T]{name: name}
}

// Name returns the diagnostic name of the key.
func (k *Key[T]) Name() string {
	return k.name
}

// RequestContext is owned by one in-flight request and discarded with it.
type RequestContext struct {
	mu     sync.RWMutex
	values map[any]any
}

// New creates an empty request context.
func New() *RequestContext {
	return &RequestContext{values: make(map[any]any)}
}

// Set stores v under key, replacing any previous value.
func Set[T any](rc *RequestContext, key *Key[T], v T) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.values[key] = v
}

// Get returns the value stored under key. The boolean is false when nothing
// was set, which callers must treat as a normal state.
func Get[T any](rc *RequestContext, key *Key[T]) (T, bool) {
	var zero T
	if rc == nil || key == nil {
		return zero, false
	}

	rc.mu.RLock()
	defer rc.mu.RUnlock()

	raw, ok := rc.values[key]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// GetOr returns the stored value or fallback when absent.
func GetOr[T any](rc *RequestContext, key *Key[T], fallback T) T {
	if v, ok := Get(rc, key); ok {
		return v
	}
	return fallback
}

// Has reports whether a value was set under key.
func Has[T any](rc *RequestContext, key *Key[T]) bool {
	if rc == nil || key == nil {
		return false
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	_, ok := rc.values[key]
	return ok
}

// Delete removes the value stored under key.
func Delete[T any](rc *RequestContext, key *Key[T]) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.values, key)
}

// Len returns the number of stored values.
func (rc *RequestContext) Len() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.values)
}

type contextKey struct{}

// WithRequestContext returns a copy of ctx carrying rc.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the request context carried by ctx, or nil.
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rc
}
