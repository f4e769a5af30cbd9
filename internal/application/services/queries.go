package services

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/AtRiskMedia/spabook-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
)

var (
	AuthStatusKey     = query.NewKey("auth", "status")
	AuthIdentityKey   = query.NewKey("auth", "identity")
	SignInMutationKey = query.NewKey("auth", "signin")
	ServerHealthKey   = query.NewKey("health", "server")
	DatabaseHealthKey = query.NewKey("health", "database")
)

// HealthFetcher loads the backend health payloads.
type HealthFetcher interface {
	ServerHealth(ctx context.Context) (json.RawMessage, error)
	DatabaseHealth(ctx context.Context) (json.RawMessage, error)
}

// AuthStatus is the payload cached under AuthStatusKey.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	IdentityID    string `json:"identityId,omitempty"`
}

// AuthStatusQuery reports the auth state already resolved for the request.
func AuthStatusQuery(rc *requestctx.RequestContext) query.Descriptor {
	return query.Descriptor{
		Key: AuthStatusKey,
		Fetch: func(context.Context) (any, error) {
			auth := session.CurrentAuth(rc)
			if auth == nil {
				return AuthStatus{}, nil
			}
			return AuthStatus{Authenticated: true, IdentityID: auth.IdentityID}, nil
		},
	}
}

// AuthIdentityQuery caches the full auth state of an authenticated request.
func AuthIdentityQuery(rc *requestctx.RequestContext) query.Descriptor {
	return query.Descriptor{
		Key: AuthIdentityKey,
		Fetch: func(context.Context) (any, error) {
			auth := session.CurrentAuth(rc)
			if auth == nil {
				return nil, ErrNotAuthenticated
			}
			return auth, nil
		},
	}
}

// ServerHealthQuery fetches the backend's server health.
func ServerHealthQuery(f HealthFetcher) query.Descriptor {
	return query.Descriptor{
		Key: ServerHealthKey,
		Fetch: func(ctx context.Context) (any, error) {
			return f.ServerHealth(ctx)
		},
	}
}

// DatabaseHealthQuery fetches the backend's database health.
func DatabaseHealthQuery(f HealthFetcher) query.Descriptor {
	return query.Descriptor{
		Key: DatabaseHealthKey,
		Fetch: func(ctx context.Context) (any, error) {
			return f.DatabaseHealth(ctx)
		},
	}
}

// HealthQueries returns both health descriptors.
func HealthQueries(f HealthFetcher) []query.Descriptor {
	return []query.Descriptor{ServerHealthQuery(f), DatabaseHealthQuery(f)}
}
