package services

import (
	"context"
	"net/url"

	"github.com/AtRiskMedia/spabook-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
	"github.com/AtRiskMedia/spabook-go/internal/domain/routing"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/caching/querycache"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
)

// RouteData is one matched route and what its loader produced.
type RouteData struct {
	Route  *routing.Route
	Result query.LoaderResult
}

// Navigation is the outcome of navigating to a URL.
type Navigation struct {
	// Redirect is set when the navigation was short-circuited.
	Redirect string
	NotFound bool
	Routes   []RouteData
	// Snapshot is the merge of every route's result in route order.
	Snapshot query.Snapshot
	Auth     *session.AuthState
}

// Leaf returns the innermost matched route.
func (n *Navigation) Leaf() *routing.Route {
	if len(n.Routes) == 0 {
		return nil
	}
	return n.Routes[len(n.Routes)-1].Route
}

// NavigationService matches a request to the route tree and runs the loaders.
type NavigationService struct {
	tree       *routing.Tree
	prefetch   *PrefetchService
	signInPath string
	logger     *logging.ChanneledLogger
}

// NewNavigationService creates a new navigation service
func NewNavigationService(tree *routing.Tree, prefetch *PrefetchService, signInPath string, logger *logging.ChanneledLogger) *NavigationService {
	return &NavigationService{
		tree:       tree,
		prefetch:   prefetch,
		signInPath: signInPath,
		logger:     logger,
	}
}

// SignInPath returns where anonymous callers are sent for protected routes.
func (s *NavigationService) SignInPath() string {
	return s.signInPath
}

// Tree returns the route tree.
func (s *NavigationService) Tree() *routing.Tree {
	return s.tree
}

// Navigate runs the matched routes for u, outer first, against cache. Auth
// must already be resolved into rc. A protected route with an anonymous
// caller yields a redirect before any loader runs. Loaders run one route at
// a time so an outer route's published values are visible to inner ones.
func (s *NavigationService) Navigate(ctx context.Context, rc *requestctx.RequestContext, cache *querycache.Cache, u *url.URL) *Navigation {
	if session.StateOf(rc) == session.Unresolved {
		s.logger.WithContext(ctx, logging.ChannelAuth).Warn("Navigation without auth resolution, treating as anonymous", "path", u.Path)
		requestctx.Set[*session.AuthState](rc, session.AuthKey, nil)
	}
	auth := session.CurrentAuth(rc)

	chain, found := s.tree.Match(u.Path)
	nav := &Navigation{NotFound: !found, Auth: auth}

	if found && routing.IsProtected(chain) && !auth.IsAuthenticated() {
		nav.Redirect = SignInRedirect(s.signInPath, u)
		s.logger.WithContext(ctx, logging.ChannelAuth).Info("Protected route requires sign-in", "path", u.Path)
		return nav
	}

	requestID := requestctx.GetOr(rc, requestctx.RequestIDKey, "")
	results := make([]query.LoaderResult, 0, len(chain))
	for _, route := range chain {
		var descriptors []query.Descriptor
		if route.Loader != nil {
			descriptors = route.Loader(ctx, rc)
		}
		result := s.prefetch.Prefetch(ctx, cache, route.ID, requestID, descriptors)
		nav.Routes = append(nav.Routes, RouteData{Route: route, Result: result})
		results = append(results, result)
	}

	// mutations recorded by the handler belong to the leaf
	if mutations := cache.DehydrateMutations(); len(mutations.Mutations) > 0 && len(nav.Routes) > 0 {
		leaf := &nav.Routes[len(nav.Routes)-1]
		leaf.Result = query.Ok{Snapshot: query.MergeSnapshots(query.SnapshotOf(leaf.Result), mutations)}
		results[len(results)-1] = leaf.Result
	}

	nav.Snapshot = query.Merge(results...)
	return nav
}
