package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gomodule/oauth1/oauth"

	"github.com/meltforce/garmsync/internal/config"
)

// mobileUserAgent is what the Connect Mobile app sends during login. The
// SSO endpoints reject unrecognized agents.
const mobileUserAgent = "com.garmin.android.apps.connectmobile"

var (
	csrfRe   = regexp.MustCompile(`name="_csrf"\s+value="(.+?)"`)
	titleRe  = regexp.MustCompile(`<title>(.+?)</title>`)
	ticketRe = regexp.MustCompile(`embed\?ticket=([^"]+)`)
)

// MFAState carries the login flow across the MFA prompt. The session
// cookies live in the Client's jar, so the state is only valid for
// ResumeLogin on the same Client instance within the same process; it
// cannot be serialized and resumed elsewhere.
type MFAState struct {
	CSRF string
}

// LoginResult is the outcome of the credential phase. When NeedsMFA is set
// the caller must collect a code and call ResumeLogin with the state.
type LoginResult struct {
	NeedsMFA bool
	MFA      *MFAState
}

// Client drives the SSO login flow and keeps the resulting tokens fresh.
type Client struct {
	cfg   *config.Config
	http  *http.Client
	store *Store
	mgr   *Manager
	oauth *oauth.Client
	log   *slog.Logger
	now   func() time.Time

	// Overridable in tests.
	ssoBase string
	apiBase string
}

func NewClient(cfg *config.Config, store *Store, log *slog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.AuthTimeout(),
			Jar:     jar,
		},
		store: store,
		mgr:   NewManager(),
		oauth: &oauth.Client{
			Credentials: oauth.Credentials{
				Token:  cfg.OAuth.ConsumerKey,
				Secret: cfg.OAuth.ConsumerSecret,
			},
		},
		log: log,
		now: time.Now,
	}
}

// Manager exposes the token state for request signing.
func (c *Client) Manager() *Manager { return c.mgr }

// LoadTokens populates the manager from the on-disk store.
func (c *Client) LoadTokens() error {
	t1, t2, err := c.store.Load()
	if err != nil {
		return err
	}
	c.mgr.SetTokens(t1, t2)
	return nil
}

func (c *Client) ssoURL() string {
	if c.ssoBase != "" {
		return c.ssoBase
	}
	return fmt.Sprintf("https://sso.%s/sso", c.cfg.Domain)
}

func (c *Client) apiURL() string {
	if c.apiBase != "" {
		return c.apiBase
	}
	return fmt.Sprintf("https://connectapi.%s", c.cfg.Domain)
}

func (c *Client) ssoEmbedURL() string {
	return c.ssoURL() + "/embed"
}

func (c *Client) signinParams() url.Values {
	embed := c.ssoEmbedURL()
	return url.Values{
		"id":                              {"gauth-widget"},
		"embedWidget":                     {"true"},
		"gauthHost":                       {embed},
		"service":                         {embed},
		"source":                          {embed},
		"redirectAfterAccountLoginUrl":    {embed},
		"redirectAfterAccountCreationUrl": {embed},
	}
}

// Login runs the credential phase of the SSO flow. On success the token
// pair is exchanged, stored, and persisted. When the account has MFA
// enabled the returned result asks for a code instead.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	embedParams := url.Values{
		"id":          {"gauth-widget"},
		"embedWidget": {"true"},
		"gauthHost":   {c.ssoURL()},
	}
	if _, err := c.get(ctx, c.ssoEmbedURL(), embedParams, ""); err != nil {
		return nil, &LoginError{Msg: "loading sso embed page", Err: err}
	}

	signinURL := c.ssoURL() + "/signin"
	page, err := c.get(ctx, signinURL, c.signinParams(), c.ssoEmbedURL())
	if err != nil {
		return nil, &LoginError{Msg: "loading signin page", Err: err}
	}
	csrf, err := extractCSRF(page)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"username": {email},
		"password": {password},
		"embed":    {"true"},
		"_csrf":    {csrf},
	}
	page, err = c.postForm(ctx, signinURL, c.signinParams(), form, signinURL+"?"+c.signinParams().Encode())
	if err != nil {
		return nil, &LoginError{Msg: "submitting credentials", Err: err}
	}

	title := extractTitle(page)
	switch {
	case strings.Contains(title, "Success"):
		ticket, err := extractTicket(page)
		if err != nil {
			return nil, err
		}
		if err := c.completeLogin(ctx, ticket); err != nil {
			return nil, err
		}
		return &LoginResult{}, nil
	case strings.Contains(title, "MFA"):
		mfaCSRF, err := extractCSRF(page)
		if err != nil {
			return nil, err
		}
		return &LoginResult{NeedsMFA: true, MFA: &MFAState{CSRF: mfaCSRF}}, nil
	default:
		return nil, &LoginError{Msg: fmt.Sprintf("unexpected login response %q, check credentials", title)}
	}
}

// ResumeLogin finishes a login that stopped at the MFA prompt.
func (c *Client) ResumeLogin(ctx context.Context, state *MFAState, code string) error {
	if state == nil {
		return &LoginError{Msg: "no pending mfa login"}
	}
	verifyURL := c.ssoURL() + "/verifyMFA/loginEnterMfaCode"
	form := url.Values{
		"mfa-code": {code},
		"embed":    {"true"},
		"_csrf":    {state.CSRF},
		"fromPage": {"setupEnterMfaCode"},
	}
	page, err := c.postForm(ctx, verifyURL, c.signinParams(), form, c.ssoURL()+"/signin")
	if err != nil {
		return &LoginError{Msg: "submitting mfa code", Err: err}
	}
	if title := extractTitle(page); !strings.Contains(title, "Success") {
		return &LoginError{Msg: fmt.Sprintf("mfa verification failed: %q", title)}
	}
	ticket, err := extractTicket(page)
	if err != nil {
		return err
	}
	return c.completeLogin(ctx, ticket)
}

// completeLogin redeems the SSO ticket for the OAuth1 token, exchanges it
// for an OAuth2 token, and persists both.
func (c *Client) completeLogin(ctx context.Context, ticket string) error {
	t1, err := c.fetchOAuth1Token(ctx, ticket)
	if err != nil {
		return err
	}
	t2, err := c.exchange(ctx, t1)
	if err != nil {
		return err
	}
	c.mgr.SetTokens(t1, t2)
	if err := c.store.Save(t1, t2); err != nil {
		return fmt.Errorf("persisting tokens: %w", err)
	}
	c.log.Info("login complete", "domain", c.cfg.Domain)
	return nil
}

// Refresh exchanges the held OAuth1 token for a fresh OAuth2 token.
func (c *Client) Refresh(ctx context.Context) error {
	t1, _ := c.mgr.Tokens()
	if !t1.Valid() {
		return &AuthError{Msg: "no oauth1 token, login required"}
	}
	t2, err := c.exchange(ctx, t1)
	if err != nil {
		return err
	}
	c.mgr.SetTokens(t1, t2)
	if err := c.store.Save(nil, t2); err != nil {
		return fmt.Errorf("persisting refreshed token: %w", err)
	}
	c.log.Debug("oauth2 token refreshed", "expires_at", t2.ExpiresAt)
	return nil
}

// AuthorizationHeader returns a bearer value for API requests, refreshing
// the access token first when it has expired.
func (c *Client) AuthorizationHeader(ctx context.Context) (string, error) {
	if c.mgr.IsAuthenticated() {
		return c.mgr.AuthorizationValue()
	}
	if !c.mgr.NeedsRefresh() {
		return "", &AuthError{Msg: "not authenticated, run login first"}
	}
	if err := c.Refresh(ctx); err != nil {
		return "", err
	}
	return c.mgr.AuthorizationValue()
}

// Logout clears tokens from memory and disk.
func (c *Client) Logout() error {
	c.mgr.SetTokens(nil, nil)
	return c.store.Clear()
}

func (c *Client) fetchOAuth1Token(ctx context.Context, ticket string) (*OAuth1Token, error) {
	u, err := url.Parse(c.apiURL() + "/oauth-service/oauth/preauthorized")
	if err != nil {
		return nil, err
	}
	query := url.Values{
		"ticket":             {ticket},
		"login-url":          {c.ssoEmbedURL()},
		"accepts-mfa-tokens": {"true"},
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", mobileUserAgent)
	if err := c.oauth.SetAuthorizationHeader(req.Header, nil, http.MethodGet, u, nil); err != nil {
		return nil, fmt.Errorf("signing preauthorized request: %w", err)
	}

	body, err := c.doRead(req)
	if err != nil {
		return nil, &AuthError{Msg: "fetching oauth1 token", Err: err}
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &AuthError{Msg: "parsing oauth1 response", Err: err}
	}
	t1 := &OAuth1Token{
		OAuthToken:       values.Get("oauth_token"),
		OAuthTokenSecret: values.Get("oauth_token_secret"),
		MFAToken:         values.Get("mfa_token"),
		Domain:           c.cfg.Domain,
	}
	if exp := values.Get("mfa_expiration_timestamp"); exp != "" {
		if ts, err := time.Parse(time.RFC3339, exp); err == nil {
			t1.MFAExpiration = &ts
		}
	}
	if !t1.Valid() {
		return nil, &AuthError{Msg: "oauth1 response missing token pair"}
	}
	return t1, nil
}

func (c *Client) exchange(ctx context.Context, t1 *OAuth1Token) (*OAuth2Token, error) {
	u, err := url.Parse(c.apiURL() + "/oauth-service/oauth/exchange/user/2.0")
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	if t1.MFAToken != "" {
		form.Set("mfa_token", t1.MFAToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", mobileUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	cred := &oauth.Credentials{Token: t1.OAuthToken, Secret: t1.OAuthTokenSecret}
	if err := c.oauth.SetAuthorizationHeader(req.Header, cred, http.MethodPost, u, form); err != nil {
		return nil, fmt.Errorf("signing exchange request: %w", err)
	}

	body, err := c.doRead(req)
	if err != nil {
		return nil, &AuthError{Msg: "exchanging oauth1 token", Err: err}
	}
	var t2 OAuth2Token
	if err := json.Unmarshal(body, &t2); err != nil {
		return nil, &AuthError{Msg: "parsing oauth2 response", Err: err}
	}
	if !t2.Valid() {
		return nil, &AuthError{Msg: "oauth2 response missing access token"}
	}
	now := c.now().Unix()
	t2.ExpiresAt = now + t2.ExpiresIn
	t2.RefreshTokenExpiresAt = now + t2.RefreshTokenExpiresIn
	return &t2, nil
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values, referer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", mobileUserAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	body, err := c.doRead(req)
	return string(body), err
}

func (c *Client) postForm(ctx context.Context, rawURL string, query url.Values, form url.Values, referer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL+"?"+query.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", mobileUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	body, err := c.doRead(req)
	return string(body), err
}

func (c *Client) doRead(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return body, nil
}

func extractCSRF(page string) (string, error) {
	m := csrfRe.FindStringSubmatch(page)
	if m == nil {
		return "", &LoginError{Msg: "csrf token not found in signin page"}
	}
	return m[1], nil
}

func extractTitle(page string) string {
	m := titleRe.FindStringSubmatch(page)
	if m == nil {
		return ""
	}
	return m[1]
}

func extractTicket(page string) (string, error) {
	m := ticketRe.FindStringSubmatch(page)
	if m == nil {
		return "", &LoginError{Msg: "login ticket not found in response"}
	}
	return m[1], nil
}
