// Package backend is the HTTP client for the identity and health backend.
// Every call is bounded by a per-call timeout and is never retried.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

const (
	VerifyPath         = "/api/v1/auth/verify"
	LoginPath          = "/api/v1/auth/login"
	LogoutPath         = "/api/v1/auth/logout"
	ServerHealthPath   = "/api/v1/health/server"
	DatabaseHealthPath = "/api/v1/health/database"

	maxResponseBytes = 1 << 20
)

// VerifyResponse is the verify endpoint's success payload.
type VerifyResponse struct {
	IdentityID string `json:"identity_id"`
	Timestamp  string `json:"timestamp"`
}

// LoginResponse is the login endpoint's success payload.
type LoginResponse struct {
	IdentityID  string `json:"identity_id"`
	DisplayName string `json:"display_name"`
	Timestamp   string `json:"timestamp"`
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	AuthTimeout   time.Duration
	HealthTimeout time.Duration
	HTTPClient    *http.Client
	Logger        *logging.ChanneledLogger
}

// OptionsFromEnv builds Options from the central config package.
func OptionsFromEnv(logger *logging.ChanneledLogger) Options {
	return Options{
		BaseURL:       config.BackendURL,
		AuthTimeout:   config.AuthVerifyTimeout,
		HealthTimeout: config.HealthCheckTimeout,
		Logger:        logger,
	}
}

// Client calls the backend API.
type Client struct {
	baseURL       string
	authTimeout   time.Duration
	healthTimeout time.Duration
	http          *http.Client
	logger        *logging.ChanneledLogger
}

// NewClient creates a backend client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// redirects from the backend are answers, not something to follow
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 3 * time.Second
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 3 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		authTimeout:   opts.AuthTimeout,
		healthTimeout: opts.HealthTimeout,
		http:          httpClient,
		logger:        opts.Logger,
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// VerifyAuth asks the backend who owns the given cookies. The cookies are
// forwarded unchanged.
func (c *Client) VerifyAuth(ctx context.Context, cookies []*http.Cookie) (*VerifyResponse, error) {
	var out VerifyResponse
	if _, err := c.do(ctx, c.authTimeout, http.MethodPost, VerifyPath, nil, cookies, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a session. The returned cookies are the
// backend's Set-Cookie headers, ready to relay to the browser.
func (c *Client) Login(ctx context.Context, email, password, clientIP string) (*LoginResponse, []*http.Cookie, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	header := http.Header{}
	if clientIP != "" {
		header.Set("X-Forwarded-For", clientIP)
	}

	var out LoginResponse
	resp, err := c.do(ctx, c.authTimeout, http.MethodPost, LoginPath, body, nil, header, &out)
	if err != nil {
		return nil, nil, err
	}
	return &out, resp.Cookies(), nil
}

// Logout ends the session identified by cookies and returns the cookies that
// clear it.
func (c *Client) Logout(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error) {
	resp, err := c.do(ctx, c.authTimeout, http.MethodPost, LogoutPath, nil, cookies, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Cookies(), nil
}

// ServerHealth returns the server health payload untouched.
func (c *Client) ServerHealth(ctx context.Context) (json.RawMessage, error) {
	return c.health(ctx, ServerHealthPath)
}

// DatabaseHealth returns the database health payload untouched.
func (c *Client) DatabaseHealth(ctx context.Context) (json.RawMessage, error) {
	return c.health(ctx, DatabaseHealthPath)
}

func (c *Client) health(ctx context.Context, path string) (json.RawMessage, error) {
	var out json.RawMessage
	if _, err := c.do(ctx, c.healthTimeout, http.MethodGet, path, nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body []byte,
	cookies []*http.Cookie, header http.Header, out any) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.debug("Backend call failed", "path", path, "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}
	c.debug("Backend call completed", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("malformed %s response: %w", path, err)
		}
	}
	return resp, nil
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug().Debug(msg, args...)
	}
}
