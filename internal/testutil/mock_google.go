package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// MockGoogleServer represents a mock Google OAuth token endpoint for testing.
// It serves both the authorization_code and refresh_token grants.
type MockGoogleServer struct {
	Server *httptest.Server

	tokenCalls   atomic.Int32
	refreshCalls atomic.Int32

	mu             sync.Mutex
	refreshDelay   time.Duration
	rotateRefresh  bool
	failRefresh    bool
	expiresIn      int
	refreshedCount int
}

// GoogleTokenResponse represents the OAuth token response from Google.
type GoogleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
}

// GoogleErrorResponse represents an error response from Google.
type GoogleErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// NewMockGoogleServer creates a new mock Google OAuth server.
//
// Authorization codes: "valid_code" succeeds, "error_code" is rejected with
// invalid_grant, "server_error" returns 500. Refresh token "revoked_refresh_token"
// is always rejected.
func NewMockGoogleServer() *MockGoogleServer {
	mgs := &MockGoogleServer{expiresIn: 3599}

	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		mgs.tokenCalls.Add(1)

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch r.FormValue("grant_type") {
		case "authorization_code":
			mgs.handleCode(w, r.FormValue("code"))
		case "refresh_token":
			mgs.refreshCalls.Add(1)
			mgs.handleRefresh(w, r.FormValue("refresh_token"))
		default:
			writeJSON(w, http.StatusBadRequest, GoogleErrorResponse{
				Error:            "unsupported_grant_type",
				ErrorDescription: "Invalid grant_type",
			})
		}
	})

	mgs.Server = httptest.NewServer(mux)
	return mgs
}

func (mgs *MockGoogleServer) handleCode(w http.ResponseWriter, code string) {
	mgs.mu.Lock()
	expiresIn := mgs.expiresIn
	mgs.mu.Unlock()

	switch code {
	case "valid_code":
		writeJSON(w, http.StatusOK, GoogleTokenResponse{
			AccessToken:  "mock_access_token_123",
			TokenType:    "Bearer",
			ExpiresIn:    expiresIn,
			RefreshToken: "mock_refresh_token_456",
			Scope:        "https://www.googleapis.com/auth/drive.file",
		})

	case "error_code":
		writeJSON(w, http.StatusBadRequest, GoogleErrorResponse{
			Error:            "invalid_grant",
			ErrorDescription: "Malformed auth code.",
		})

	case "server_error":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))

	default:
		writeJSON(w, http.StatusBadRequest, GoogleErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Unknown code",
		})
	}
}

func (mgs *MockGoogleServer) handleRefresh(w http.ResponseWriter, refreshToken string) {
	mgs.mu.Lock()
	delay := mgs.refreshDelay
	rotate := mgs.rotateRefresh
	fail := mgs.failRefresh
	expiresIn := mgs.expiresIn
	mgs.refreshedCount++
	n := mgs.refreshedCount
	mgs.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if fail || refreshToken == "revoked_refresh_token" || refreshToken == "" {
		writeJSON(w, http.StatusBadRequest, GoogleErrorResponse{
			Error:            "invalid_grant",
			ErrorDescription: "Token has been expired or revoked.",
		})
		return
	}

	resp := GoogleTokenResponse{
		AccessToken: fmt.Sprintf("refreshed_access_token_%d", n),
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		Scope:       "https://www.googleapis.com/auth/drive.file",
	}
	if rotate {
		resp.RefreshToken = fmt.Sprintf("rotated_refresh_token_%d", n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Close closes the mock server.
func (mgs *MockGoogleServer) Close() {
	if mgs.Server != nil {
		mgs.Server.Close()
	}
}

// GetTokenURL returns the token endpoint URL.
func (mgs *MockGoogleServer) GetTokenURL() string {
	return mgs.Server.URL + "/token"
}

// GetAuthURL returns a consent page URL; nothing is served there.
func (mgs *MockGoogleServer) GetAuthURL() string {
	return mgs.Server.URL + "/o/oauth2/auth"
}

// TokenCalls counts every request to the token endpoint.
func (mgs *MockGoogleServer) TokenCalls() int {
	return int(mgs.tokenCalls.Load())
}

// RefreshCalls counts refresh_token grants only.
func (mgs *MockGoogleServer) RefreshCalls() int {
	return int(mgs.refreshCalls.Load())
}

// SetRefreshDelay makes refresh grants block before answering.
func (mgs *MockGoogleServer) SetRefreshDelay(d time.Duration) {
	mgs.mu.Lock()
	defer mgs.mu.Unlock()
	mgs.refreshDelay = d
}

// SetRotateRefreshToken makes refresh grants issue a new refresh token.
func (mgs *MockGoogleServer) SetRotateRefreshToken(rotate bool) {
	mgs.mu.Lock()
	defer mgs.mu.Unlock()
	mgs.rotateRefresh = rotate
}

// SetFailRefresh makes every refresh grant fail with invalid_grant.
func (mgs *MockGoogleServer) SetFailRefresh(fail bool) {
	mgs.mu.Lock()
	defer mgs.mu.Unlock()
	mgs.failRefresh = fail
}

// SetExpiresIn changes the expires_in returned for new tokens.
func (mgs *MockGoogleServer) SetExpiresIn(seconds int) {
	mgs.mu.Lock()
	defer mgs.mu.Unlock()
	mgs.expiresIn = seconds
}

// ResetCallCounts resets the call counters.
func (mgs *MockGoogleServer) ResetCallCounts() {
	mgs.tokenCalls.Store(0)
	mgs.refreshCalls.Store(0)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
