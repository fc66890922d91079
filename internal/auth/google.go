// Package auth runs the Google OAuth2 authorization-code flow and keeps per-user
// credentials valid: state correlation, code exchange, refresh-on-read token storage
// and token encryption at rest.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/parsascontentcorner/telegramdrive/internal/config"
	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

// GoogleClient handles Google OAuth operations
type GoogleClient struct {
	config     *oauth2.Config
	httpClient *http.Client // optional, used for token endpoint calls
	logger     *zap.Logger
}

// NewGoogleClient creates a new Google OAuth client
func NewGoogleClient(cfg *config.Config, logger *zap.Logger) *GoogleClient {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
		Scopes:       cfg.Google.Scopes,
		Endpoint:     google.Endpoint,
	}

	return &GoogleClient{
		config: oauthConfig,
		logger: logger,
	}
}

// AuthCodeURL builds the consent URL. Offline access with forced consent makes
// Google issue a refresh token even when the user has authorized the app before.
func (gc *GoogleClient) AuthCodeURL(state string) string {
	return gc.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// ExchangeCode exchanges an authorization code for an access token
func (gc *GoogleClient) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := gc.config.Exchange(gc.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	gc.logger.Debug("successfully exchanged code for token",
		zap.String("token_type", token.TokenType),
		zap.Time("expiry", token.Expiry),
		zap.Bool("has_refresh_token", token.RefreshToken != ""),
	)

	return token, nil
}

// NewCredential builds the record stored for a freshly exchanged token.
// The record carries its own endpoint and client so it can be refreshed on its own.
func (gc *GoogleClient) NewCredential(tok *oauth2.Token) models.CredentialRecord {
	return models.CredentialRecord{
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		TokenType:     tok.TokenType,
		TokenEndpoint: gc.config.Endpoint.TokenURL,
		ClientID:      gc.config.ClientID,
		ClientSecret:  gc.config.ClientSecret,
		Scopes:        append([]string(nil), gc.config.Scopes...),
		Expiry:        tok.Expiry,
	}
}

// Refresh exchanges rec's refresh token for a new access token.
// The returned token may or may not carry a rotated refresh token.
func (gc *GoogleClient) Refresh(ctx context.Context, rec models.CredentialRecord) (*oauth2.Token, error) {
	if rec.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrRefreshFailed)
	}

	conf := &oauth2.Config{
		ClientID:     rec.ClientID,
		ClientSecret: rec.ClientSecret,
		Scopes:       rec.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  rec.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	tokenSource := conf.TokenSource(gc.withClient(ctx), &oauth2.Token{RefreshToken: rec.RefreshToken})
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	gc.logger.Debug("successfully refreshed OAuth token",
		zap.Time("new_expiry", newToken.Expiry),
		zap.Bool("rotated", newToken.RefreshToken != "" && newToken.RefreshToken != rec.RefreshToken),
	)

	return newToken, nil
}

// SetEndpoint overrides the OAuth endpoints (used for testing)
func (gc *GoogleClient) SetEndpoint(authURL, tokenURL string) {
	gc.config.Endpoint = oauth2.Endpoint{
		AuthURL:   authURL,
		TokenURL:  tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// SetHTTPClient sets the client used for token endpoint calls
func (gc *GoogleClient) SetHTTPClient(client *http.Client) {
	gc.httpClient = client
}

func (gc *GoogleClient) withClient(ctx context.Context) context.Context {
	if gc.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, gc.httpClient)
}

// permanentRefreshMarkers identify refresh failures that no retry will fix
var permanentRefreshMarkers = []string{
	"invalid_grant",
	"invalid_client",
	"unauthorized_client",
	"token has been expired or revoked",
	"revoked",
}

// IsPermanentRefreshError reports whether err means the grant itself is dead,
// as opposed to a network or provider hiccup
func IsPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range permanentRefreshMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
