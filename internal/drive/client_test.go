package drive

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/ratelimit"
	"github.com/parsascontentcorner/telegramdrive/internal/testutil"
)

func newTestClient(t *testing.T, mock *testutil.MockDriveServer) *Client {
	t.Helper()
	logger := zap.NewNop()
	client := NewClient(testutil.GenerateTestConfig(), logger)
	client.SetBaseURLs(mock.APIURL(), mock.UploadURL())
	client.SetRateLimiter(ratelimit.NewRateLimiter(50, logger))
	return client
}

func TestCreateFile(t *testing.T) {
	mock := testutil.NewMockDriveServer()
	defer mock.Close()

	client := newTestClient(t, mock)
	cred := testutil.GenerateCredential("", time.Now().Add(time.Hour))

	id, err := client.CreateFile(context.Background(), cred, "notes.txt", "text/plain", strings.NewReader("hello drive"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	stored, ok := mock.File(id)
	require.True(t, ok)
	assert.Equal(t, "notes.txt", stored.Name)
	assert.Equal(t, "text/plain", stored.MimeType)
	assert.Equal(t, []byte("hello drive"), stored.Content)
	assert.Equal(t, 1, mock.CreateCalls())
}

func TestCreateFileDefaultMimeType(t *testing.T) {
	mock := testutil.NewMockDriveServer()
	defer mock.Close()

	client := newTestClient(t, mock)
	cred := testutil.GenerateCredential("", time.Now().Add(time.Hour))

	id, err := client.CreateFile(context.Background(), cred, "blob", "", bytes.NewReader([]byte{0x01, 0x02}))
	require.NoError(t, err)

	stored, ok := mock.File(id)
	require.True(t, ok)
	assert.Equal(t, "application/octet-stream", stored.MimeType)
}

func TestCreateFileProviderError(t *testing.T) {
	mock := testutil.NewMockDriveServer()
	defer mock.Close()
	mock.SetFailCreate(true)

	client := newTestClient(t, mock)
	cred := testutil.GenerateCredential("", time.Now().Add(time.Hour))

	_, err := client.CreateFile(context.Background(), cred, "notes.txt", "text/plain", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProvider))
	assert.Equal(t, 0, mock.FileCount())
}

func TestGetFile(t *testing.T) {
	mock := testutil.NewMockDriveServer()
	defer mock.Close()

	id := mock.Seed("report.pdf", "application/pdf", []byte("%PDF-1.4 content"))
	client := newTestClient(t, mock)
	cred := testutil.GenerateCredential("", time.Now().Add(time.Hour))

	var buf bytes.Buffer
	err := client.GetFile(context.Background(), cred, id, &buf)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 content", buf.String())
	assert.Equal(t, 1, mock.GetCalls())
}

func TestGetFileNotFound(t *testing.T) {
	mock := testutil.NewMockDriveServer()
	defer mock.Close()

	client := newTestClient(t, mock)
	cred := testutil.GenerateCredential("", time.Now().Add(time.Hour))

	var buf bytes.Buffer
	err := client.GetFile(context.Background(), cred, "missing", &buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, ErrProvider))
	assert.Zero(t, buf.Len())
}

func TestDeleteFile(t *testing.T) {
	mock := testutil.NewMockDriveServer()
	defer mock.Close()

	id := mock.Seed("old.txt", "text/plain", []byte("bye"))
	client := newTestClient(t, mock)
	cred := testutil.GenerateCredential("", time.Now().Add(time.Hour))

	err := client.DeleteFile(context.Background(), cred, id)
	require.NoError(t, err)
	assert.Equal(t, 0, mock.FileCount())

	err = client.DeleteFile(context.Background(), cred, id)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBearerTokenSent(t *testing.T) {
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(testutil.GenerateTestConfig(), zap.NewNop())
	client.SetBaseURLs(server.URL, server.URL)
	cred := testutil.GenerateCredential("", time.Now().Add(time.Hour))
	cred.AccessToken = "fresh_access_token"

	require.NoError(t, client.DeleteFile(context.Background(), cred, "any"))
	assert.Equal(t, "Bearer fresh_access_token", authHeader)
}

func TestRateLimitedResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"too many requests", http.StatusTooManyRequests, `{"error":{"code":429}}`},
		{"user rate limit", http.StatusForbidden, `{"error":{"errors":[{"reason":"userRateLimitExceeded"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			logger := zap.NewNop()
			rl := ratelimit.NewRateLimiter(50, logger)
			client := NewClient(testutil.GenerateTestConfig(), logger)
			client.SetBaseURLs(server.URL, server.URL)
			client.SetRateLimiter(rl)
			cred := testutil.GenerateCredential("", time.Now().Add(time.Hour))

			err := client.DeleteFile(context.Background(), cred, "any")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRateLimited))

			throttled, _ := rl.GetStatus(ratelimit.OpDelete)
			assert.Equal(t, 1, throttled)
		})
	}
}

func TestForbiddenWithoutRateLimitReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"errors":[{"reason":"insufficientPermissions"}]}}`))
	}))
	defer server.Close()

	client := NewClient(testutil.GenerateTestConfig(), zap.NewNop())
	client.SetBaseURLs(server.URL, server.URL)
	cred := testutil.GenerateCredential("", time.Now().Add(time.Hour))

	err := client.DeleteFile(context.Background(), cred, "any")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProvider))
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.Contains(t, err.Error(), "403")
}

func TestCancelledContext(t *testing.T) {
	mock := testutil.NewMockDriveServer()
	defer mock.Close()

	client := newTestClient(t, mock)
	cred := testutil.GenerateCredential("", time.Now().Add(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CreateFile(ctx, cred, "notes.txt", "text/plain", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProvider))
	assert.Equal(t, 0, mock.FileCount())
}
