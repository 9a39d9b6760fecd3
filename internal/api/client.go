package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/meltforce/garmsync/internal/config"
)

// appUserAgent is what the Connect Mobile iOS app sends on API calls.
const appUserAgent = "GCM-iOS-5.12.24"

// TokenSource supplies the Authorization header value for each request,
// refreshing behind the scenes when needed.
type TokenSource interface {
	AuthorizationHeader(ctx context.Context) (string, error)
}

// Client talks to the Connect API with authentication and retries.
type Client struct {
	cfg    *config.Config
	http   *http.Client
	tokens TokenSource
	log    *slog.Logger

	profileMu   sync.Mutex
	profileName string

	// Overridable in tests.
	apiBase     string
	graphqlBase string
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg *config.Config, tokens TokenSource, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.RequestTimeout(),
		},
		tokens: tokens,
		log:    log,
		sleep:  sleepCtx,
	}
}

func (c *Client) connectAPIURL() string {
	if c.apiBase != "" {
		return c.apiBase
	}
	return fmt.Sprintf("https://connectapi.%s", c.cfg.Domain)
}

func (c *Client) graphqlURL() string {
	if c.graphqlBase != "" {
		return c.graphqlBase
	}
	return fmt.Sprintf("https://connect.%s/graphql-gateway/graphql", c.cfg.Domain)
}

// ConnectAPI performs an authenticated request against the Connect API and
// returns the response body. Transient failures are retried with
// exponential backoff; an empty body on success yields nil.
func (c *Client) ConnectAPI(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	endpoint := c.connectAPIURL() + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	// One initial attempt plus Retries retries.
	attempts := c.cfg.HTTP.Retries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.Backoff() * time.Duration(1<<uint(attempt-1))
			c.log.Debug("retrying api request", "path", path, "attempt", attempt+1, "backoff", backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		data, err := c.do(ctx, method, endpoint, body)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if apiErr, ok := err.(*APIError); ok && !Retryable(apiErr.StatusCode) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return nil, err
	}

	authz, err := c.tokens.AuthorizationHeader(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authz)
	req.Header.Set("User-Agent", appUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			Body:       truncate(string(data), 200),
		}
	}
	if resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// GraphQL posts a query to the GraphQL gateway on the web frontend host.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding graphql payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL(), strings.NewReader(string(payload)))
	if err != nil {
		return nil, err
	}
	authz, err := c.tokens.AuthorizationHeader(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authz)
	req.Header.Set("User-Agent", appUserAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending graphql request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading graphql response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, URL: c.graphqlURL(), Body: truncate(string(data), 200)}
	}
	return data, nil
}

// UserID returns the profile display name used as the identifier in
// wellness endpoint paths. The lookup runs once per client.
func (c *Client) UserID(ctx context.Context) (string, error) {
	c.profileMu.Lock()
	defer c.profileMu.Unlock()
	if c.profileName != "" {
		return c.profileName, nil
	}

	data, err := c.ConnectAPI(ctx, http.MethodGet, "/userprofile-service/socialProfile", nil, nil)
	if err != nil {
		return "", fmt.Errorf("fetching user profile: %w", err)
	}
	var profile struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return "", fmt.Errorf("decoding user profile: %w", err)
	}
	if profile.DisplayName == "" {
		return "", fmt.Errorf("user profile has no display name")
	}
	c.profileName = profile.DisplayName
	return c.profileName, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
