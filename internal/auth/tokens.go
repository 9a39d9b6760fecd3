package auth

import (
	"strings"
	"time"
)

// OAuth1Token is the long-lived token pair obtained by redeeming an SSO
// ticket. It is refreshed only via re-login.
type OAuth1Token struct {
	OAuthToken       string     `json:"oauth_token"`
	OAuthTokenSecret string     `json:"oauth_token_secret"`
	MFAToken         string     `json:"mfa_token,omitempty"`
	MFAExpiration    *time.Time `json:"mfa_expiration_timestamp"`
	Domain           string     `json:"domain"`
}

// Valid reports whether the token carries the required pair.
func (t *OAuth1Token) Valid() bool {
	return t != nil && t.OAuthToken != "" && t.OAuthTokenSecret != ""
}

// OAuth2Token is the short-lived bearer token used on every API request.
// Expiry fields are unix-epoch seconds computed at exchange time.
type OAuth2Token struct {
	Scope                 string `json:"scope"`
	JTI                   string `json:"jti"`
	TokenType             string `json:"token_type"`
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int64  `json:"expires_in"`
	ExpiresAt             int64  `json:"expires_at"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	RefreshTokenExpiresAt int64  `json:"refresh_token_expires_at"`
}

// Valid reports whether the token carries an access token.
func (t *OAuth2Token) Valid() bool {
	return t != nil && t.AccessToken != ""
}

// ExpiredAt reports whether the access token is expired at the given instant.
func (t *OAuth2Token) ExpiredAt(now time.Time) bool {
	return now.Unix() >= t.ExpiresAt
}

// RefreshExpiredAt reports whether the refresh window has also closed,
// meaning only a full re-login can recover.
func (t *OAuth2Token) RefreshExpiredAt(now time.Time) bool {
	return now.Unix() >= t.RefreshTokenExpiresAt
}

// AuthorizationValue returns the Authorization header value. The token
// type comes back lowercase from the exchange endpoint.
func (t *OAuth2Token) AuthorizationValue() string {
	typ := t.TokenType
	if typ == "" {
		typ = "bearer"
	}
	return strings.ToUpper(typ[:1]) + typ[1:] + " " + t.AccessToken
}
