// Package hydration is the client side of a server render: it finds the
// embedded state payload in a page and seeds a query cache from it so the
// first read of every prefetched query is synchronous.
package hydration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/net/html"

	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/caching/querycache"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/ssr"
)

// ErrNoPayload is returned when a page carries no state script.
var ErrNoPayload = errors.New("page has no embedded state")

const maxPageBytes = 4 << 20

// ExtractPayload scans an HTML document for the state script and decodes it.
func ExtractPayload(r io.Reader) (*ssr.Payload, error) {
	z := html.NewTokenizer(r)
	inState := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to read page: %w", err)
			}
			return nil, ErrNoPayload

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "id" && string(val) == ssr.ScriptID {
					inState = true
				}
				if !more {
					break
				}
			}

		case html.TextToken:
			if !inState {
				continue
			}
			var payload ssr.Payload
			if err := json.Unmarshal(z.Text(), &payload); err != nil {
				return nil, fmt.Errorf("failed to decode embedded state: %w", err)
			}
			return &payload, nil

		case html.EndTagToken:
			if inState {
				// the script was empty
				return &ssr.Payload{DehydratedState: query.Empty()}, nil
			}
		}
	}
}

// Rehydrate merges each route's loader data in route order and hydrates
// cache with the result. Loader data that is not a snapshot is skipped.
// The merged snapshot is returned.
func Rehydrate(cache *querycache.Cache, payload *ssr.Payload) query.Snapshot {
	results := make([]query.LoaderResult, 0, len(payload.Routes))
	for _, r := range payload.RouteResults() {
		results = append(results, r.Result)
	}
	merged := query.Merge(results...)
	cache.Hydrate(merged)
	return merged
}

// LoadPage fetches a server-rendered page, extracts its payload and hydrates
// cache with it.
func LoadPage(ctx context.Context, client *http.Client, pageURL string, cookies []*http.Cookie, cache *querycache.Cache) (*ssr.Payload, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		return nil, resp, fmt.Errorf("%s returned %s, not a page", pageURL, ct)
	}

	payload, err := ExtractPayload(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, resp, err
	}
	Rehydrate(cache, payload)
	return payload, resp, nil
}
