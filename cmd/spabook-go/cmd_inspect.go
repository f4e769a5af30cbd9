package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AtRiskMedia/spabook-go/internal/application/services"
	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/backend"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/caching/querycache"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/hydration"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/ssr"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

type inspectOptions struct {
	baseURL    string
	cookies    []string
	refresh    bool
	invalidate []string
	backendURL string
	timeout    time.Duration
}

var inspectOpts inspectOptions

// inspectCmd fetches a page the way a browser would and hydrates a client
// cache from it
var inspectCmd = &cobra.Command{
	Use:   "inspect [path]",
	Short: "Fetch a page and show the query state it hydrates",
	Long: `Fetch a server-rendered page, read its embedded state and hydrate a
client-side query cache from it, then list every cached query.

With --refresh the health queries are read through the cache afterwards:
fresh data is served from the hydrated cache, errors are fetched again
from the backend. --invalidate drops every query under a key prefix
(segments separated by commas, e.g. health,database) before refreshing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		return runInspect(cmd.Context(), cmd.OutOrStdout(), path, inspectOpts)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectOpts.baseURL, "base", "http://localhost:"+config.Port, "base URL of the web site")
	inspectCmd.Flags().StringArrayVar(&inspectOpts.cookies, "cookie", nil, "cookie to send, as name=value (repeatable)")
	inspectCmd.Flags().BoolVar(&inspectOpts.refresh, "refresh", false, "read the health queries through the cache after hydrating")
	inspectCmd.Flags().StringArrayVar(&inspectOpts.invalidate, "invalidate", nil, "key prefix to drop before --refresh, e.g. health (repeatable)")
	inspectCmd.Flags().StringVar(&inspectOpts.backendURL, "backend", config.BackendURL, "backend URL used by --refresh")
	inspectCmd.Flags().DurationVar(&inspectOpts.timeout, "timeout", 10*time.Second, "timeout for fetching the page")
}

func runInspect(ctx context.Context, out io.Writer, path string, opts inspectOptions) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base, err := url.Parse(opts.baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("invalid base URL %q", opts.baseURL)
	}
	pageURL := strings.TrimRight(opts.baseURL, "/") + path

	cookies, err := parseCookies(opts.cookies)
	if err != nil {
		return err
	}

	client := &http.Client{
		Timeout: opts.timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	cache := querycache.New(querycache.Options{StaleTime: config.QueryStaleTime})
	payload, resp, err := hydration.LoadPage(ctx, client, pageURL, cookies, cache)
	if resp != nil && resp.StatusCode >= 300 && resp.StatusCode < 400 {
		fmt.Fprintf(out, "%s redirected (%d) to %s\n", pageURL, resp.StatusCode, resp.Header.Get("Location"))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s (%d)\n\n", pageURL, resp.StatusCode)
	printRoutes(out, payload)
	fmt.Fprintln(out)
	printQueries(out, cache, cache.Dehydrate())

	if !opts.refresh {
		return nil
	}

	logger := logging.NewDiscardLogger()
	backendOpts := backend.OptionsFromEnv(logger)
	backendOpts.BaseURL = opts.backendURL
	health := backend.NewClient(backendOpts)

	fmt.Fprintln(out)
	for _, raw := range opts.invalidate {
		prefix := parseKeyPrefix(raw)
		fmt.Fprintf(out, "invalidated %d queries under %s\n", cache.Invalidate(prefix), prefix)
	}

	tracker := performance.NewTracker(nil, nil)
	marker := tracker.StartOperation("inspect_refresh", "")
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "REFRESH\tSOURCE\tSTATUS")
	for _, d := range services.HealthQueries(health) {
		r := cache.Fetch(ctx, d)
		source := "backend"
		if r.FromCache {
			source = "cache"
			marker.AddCacheHit()
		} else {
			marker.AddCacheMiss()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Key, source, r.Status)
	}
	tracker.CompleteOperation(marker)
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\ncache hit ratio %.2f (%d hits, %d misses)\n",
		marker.GetCacheHitRatio(), marker.CacheHits, marker.CacheMisses)
	return nil
}

// parseKeyPrefix turns "health,database" into ["health","database"].
func parseKeyPrefix(raw string) query.Key {
	var prefix query.Key
	for _, seg := range strings.Split(raw, ",") {
		if seg = strings.TrimSpace(seg); seg != "" {
			prefix = append(prefix, seg)
		}
	}
	return prefix
}

func printRoutes(out io.Writer, payload *ssr.Payload) {
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tLOADER DATA")
	for _, r := range payload.RouteResults() {
		switch result := r.Result.(type) {
		case query.Ok:
			fmt.Fprintf(w, "%s\t%d queries, %d mutations\n", r.ID, len(result.Snapshot.Queries), len(result.Snapshot.Mutations))
		default:
			fmt.Fprintf(w, "%s\tnone\n", r.ID)
		}
	}
	w.Flush()
}

func printQueries(out io.Writer, cache *querycache.Cache, snapshot query.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "QUERY\tSTATUS\tUPDATED\tVALUE")
	for _, q := range snapshot.Queries {
		r := cache.Get(q.QueryKey)
		value := string(r.Data)
		if r.IsError() && r.Err != nil {
			value = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", q.QueryKey, r.Status, r.UpdatedAt.UTC().Format(time.RFC3339), truncate(value, 80))
	}
	for _, m := range snapshot.Mutations {
		value := string(m.State.Variables)
		if m.State.Error != nil {
			value = m.State.Error.Error()
		}
		fmt.Fprintf(w, "%s\tmutation %s\t%s\t%s\n", m.MutationKey, m.State.Status,
			time.UnixMilli(m.State.SubmittedAt).UTC().Format(time.RFC3339), truncate(value, 80))
	}
	w.Flush()
}

func parseCookies(raw []string) ([]*http.Cookie, error) {
	cookies := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		name, value, ok := strings.Cut(c, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid cookie %q, expected name=value", c)
		}
		cookies = append(cookies, &http.Cookie{Name: strings.TrimSpace(name), Value: value})
	}
	return cookies, nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
