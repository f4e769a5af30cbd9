package services

import (
	"context"

	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
	"github.com/AtRiskMedia/spabook-go/internal/domain/routing"
)

// Page names rendered by the templates renderer.
const (
	PageHome     = "home"
	PageHealth   = "health"
	PageStaff    = "staff"
	PageSignIn   = "signin"
	PageNotFound = "notfound"
)

// NewSiteRoutes builds the booking site's route tree.
func NewSiteRoutes(health HealthFetcher) *routing.Tree {
	return routing.NewTree(&routing.Route{
		ID: "root",
		Loader: func(_ context.Context, rc *requestctx.RequestContext) []query.Descriptor {
			return []query.Descriptor{AuthStatusQuery(rc)}
		},
		Children: []*routing.Route{
			{ID: "home", Path: "/", Page: PageHome, Title: "Welcome"},
			{
				ID:    "health",
				Path:  "health",
				Page:  PageHealth,
				Title: "System health",
				Loader: func(context.Context, *requestctx.RequestContext) []query.Descriptor {
					return HealthQueries(health)
				},
			},
			{
				ID:        "staff",
				Path:      "staff",
				Page:      PageStaff,
				Title:     "Staff",
				Protected: true,
				Loader: func(_ context.Context, rc *requestctx.RequestContext) []query.Descriptor {
					return append([]query.Descriptor{AuthIdentityQuery(rc)}, HealthQueries(health)...)
				},
			},
			{ID: "auth", Path: "auth", Page: PageSignIn, Title: "Sign in"},
		},
	})
}
