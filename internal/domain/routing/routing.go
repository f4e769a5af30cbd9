// Package routing describes the page route tree and matches request paths to
// the ordered chain of routes, outermost layout first.
package routing

import (
	"context"
	"strings"

	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
	"github.com/AtRiskMedia/spabook-go/internal/domain/requestctx"
)

// LoaderFunc returns the queries a route prefetches for one request. It may
// read values published earlier in the request, such as the auth state.
type LoaderFunc func(ctx context.Context, rc *requestctx.RequestContext) []query.Descriptor

// Route is one node of the tree. Path is a single segment; the root has an
// empty path and an index child uses "/".
type Route struct {
	ID        string
	Path      string
	Page      string
	Title     string
	Protected bool
	Loader    LoaderFunc
	Children  []*Route
}

// Tree is an immutable route tree.
type Tree struct {
	root  *Route
	index map[string]*Route
}

// NewTree builds a tree rooted at root. Route IDs must be unique.
func NewTree(root *Route) *Tree {
	t := &Tree{root: root, index: make(map[string]*Route)}
	var walk func(r *Route)
	walk = func(r *Route) {
		t.index[r.ID] = r
		for _, child := range r.Children {
			walk(child)
		}
	}
	walk(root)
	return t
}

// Root returns the outermost layout route.
func (t *Tree) Root() *Route {
	return t.root
}

// Lookup returns the route with the given ID.
func (t *Tree) Lookup(id string) (*Route, bool) {
	r, ok := t.index[id]
	return r, ok
}

// Match returns the chain of routes for path, root first. The boolean is
// false when no leaf matches; the chain then holds only the root.
func (t *Tree) Match(path string) ([]*Route, bool) {
	segments := splitPath(path)
	chain := []*Route{t.root}

	if len(segments) == 0 {
		for _, child := range t.root.Children {
			if child.Path == "/" {
				return append(chain, child), true
			}
		}
		return chain, false
	}

	current := t.root
	for _, seg := range segments {
		next := findChild(current, seg)
		if next == nil {
			return []*Route{t.root}, false
		}
		chain = append(chain, next)
		current = next
	}
	return chain, true
}

// IsProtected reports whether any route in chain requires authentication.
func IsProtected(chain []*Route) bool {
	for _, r := range chain {
		if r.Protected {
			return true
		}
	}
	return false
}

func findChild(r *Route, segment string) *Route {
	for _, child := range r.Children {
		if child.Path == segment {
			return child
		}
	}
	return nil
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
