// Package models defines the per-user records shared by the session, auth and storage layers.
package models

import (
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// expirySkew treats tokens about to expire as already expired so a request
// never races the provider's clock.
const expirySkew = 10 * time.Second

// UserID identifies a chat user; it is the Telegram sender id
type UserID int64

// String returns the decimal form used in logs, persistence keys and the id-as-state mode
func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// ParseUserID parses the decimal form produced by String
func ParseUserID(s string) (UserID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return UserID(id), nil
}

// CredentialRecord holds one user's OAuth2 credential together with everything
// needed to refresh it without consulting global configuration
type CredentialRecord struct {
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token,omitempty"`
	TokenType     string    `json:"token_type,omitempty"`
	TokenEndpoint string    `json:"token_uri"`
	ClientID      string    `json:"client_id"`
	ClientSecret  string    `json:"client_secret"`
	Scopes        []string  `json:"scopes"`
	Expiry        time.Time `json:"expiry,omitempty"`
}

// Expired reports whether the access token can no longer be used at now.
// A zero Expiry means the provider did not say, and the token is assumed valid.
func (c CredentialRecord) Expired(now time.Time) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Add(expirySkew).Before(c.Expiry)
}

// Usable reports whether the record can yield an access token, directly or by refresh
func (c CredentialRecord) Usable(now time.Time) bool {
	if c.AccessToken == "" && c.RefreshToken == "" {
		return false
	}
	return !c.Expired(now) || c.RefreshToken != ""
}

// Token converts the record into an oauth2 token
func (c CredentialRecord) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// WithToken returns a copy carrying tok's access token and expiry.
// Providers do not always rotate the refresh token, so an empty one keeps the old value.
func (c CredentialRecord) WithToken(tok *oauth2.Token) CredentialRecord {
	next := c
	next.Scopes = append([]string(nil), c.Scopes...)
	next.AccessToken = tok.AccessToken
	next.Expiry = tok.Expiry
	if tok.TokenType != "" {
		next.TokenType = tok.TokenType
	}
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	return next
}

// PendingOAuthRequest correlates an authorization redirect with the user who asked for it
type PendingOAuthRequest struct {
	UserID    UserID    `json:"user_id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// IsExpired checks if the pending request has expired
func (p *PendingOAuthRequest) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
