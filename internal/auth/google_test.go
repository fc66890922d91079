package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/parsascontentcorner/telegramdrive/internal/testutil"
)

func newTestGoogleClient(t *testing.T, mock *testutil.MockGoogleServer) *GoogleClient {
	t.Helper()

	cfg := testutil.GenerateTestConfig()
	client := NewGoogleClient(cfg, zap.NewNop())
	if mock != nil {
		client.SetEndpoint(mock.GetAuthURL(), mock.GetTokenURL())
	}
	return client
}

func TestNewGoogleClient(t *testing.T) {
	cfg := testutil.GenerateTestConfig()

	client := NewGoogleClient(cfg, zap.NewNop())

	require.NotNil(t, client)
	assert.Equal(t, cfg.Google.ClientID, client.config.ClientID)
	assert.Equal(t, cfg.Google.ClientSecret, client.config.ClientSecret)
	assert.Equal(t, cfg.Google.RedirectURI, client.config.RedirectURL)
	assert.Equal(t, "https://oauth2.googleapis.com/token", client.config.Endpoint.TokenURL)
}

func TestAuthCodeURL(t *testing.T) {
	client := newTestGoogleClient(t, nil)

	raw := client.AuthCodeURL("test_state_123")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "test_state_123", q.Get("state"))
	assert.Equal(t, "test_client_id.apps.googleusercontent.com", q.Get("client_id"))
	assert.Equal(t, "https://bot.example.com/oauth2callback", q.Get("redirect_uri"))
	assert.Equal(t, testutil.DriveFileScope, q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestExchangeCode(t *testing.T) {
	mock := testutil.NewMockGoogleServer()
	defer mock.Close()

	client := newTestGoogleClient(t, mock)
	ctx := context.Background()

	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{name: "valid code", code: "valid_code"},
		{name: "rejected code", code: "error_code", wantErr: true},
		{name: "server error", code: "server_error", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := client.ExchangeCode(ctx, tt.code)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, token)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "mock_access_token_123", token.AccessToken)
			assert.Equal(t, "mock_refresh_token_456", token.RefreshToken)
			assert.True(t, token.Expiry.After(time.Now()))
		})
	}

	assert.Equal(t, 3, mock.TokenCalls())
}

func TestNewCredential(t *testing.T) {
	mock := testutil.NewMockGoogleServer()
	defer mock.Close()
	client := newTestGoogleClient(t, mock)

	expiry := time.Now().Add(time.Hour)
	rec := client.NewCredential(&oauth2.Token{
		AccessToken:  "at",
		RefreshToken: "rt",
		TokenType:    "Bearer",
		Expiry:       expiry,
	})

	assert.Equal(t, "at", rec.AccessToken)
	assert.Equal(t, "rt", rec.RefreshToken)
	assert.Equal(t, mock.GetTokenURL(), rec.TokenEndpoint)
	assert.Equal(t, "test_client_id.apps.googleusercontent.com", rec.ClientID)
	assert.Equal(t, "test_client_secret", rec.ClientSecret)
	assert.Equal(t, []string{testutil.DriveFileScope}, rec.Scopes)
	assert.Equal(t, expiry, rec.Expiry)
}

func TestRefresh(t *testing.T) {
	mock := testutil.NewMockGoogleServer()
	defer mock.Close()
	client := newTestGoogleClient(t, mock)
	ctx := context.Background()

	t.Run("success keeps refresh token", func(t *testing.T) {
		tok, err := client.Refresh(ctx, testutil.GenerateExpiredCredential(mock.GetTokenURL()))

		require.NoError(t, err)
		assert.Contains(t, tok.AccessToken, "refreshed_access_token_")
		assert.Equal(t, "mock_refresh_token_456", tok.RefreshToken)
	})

	t.Run("revoked", func(t *testing.T) {
		rec := testutil.GenerateExpiredCredential(mock.GetTokenURL())
		rec.RefreshToken = "revoked_refresh_token"

		_, err := client.Refresh(ctx, rec)

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRefreshFailed))
		assert.True(t, IsPermanentRefreshError(err))
	})

	t.Run("missing refresh token", func(t *testing.T) {
		rec := testutil.GenerateExpiredCredential(mock.GetTokenURL())
		rec.RefreshToken = ""

		_, err := client.Refresh(ctx, rec)

		assert.ErrorIs(t, err, ErrRefreshFailed)
	})
}

func TestIsPermanentRefreshError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "retrieve error invalid_grant", err: &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, want: true},
		{name: "revoked message", err: errors.New("Token has been expired or revoked."), want: true},
		{name: "network", err: errors.New("dial tcp: connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanentRefreshError(tt.err))
		})
	}
}
