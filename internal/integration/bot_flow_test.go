package integration

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/telegramdrive/internal/testutil"
)

const userID int64 = 1001

func loginThroughCallback(t *testing.T, s *stack) {
	t.Helper()

	s.telegram.QueueText(userID, "/login")
	reply := s.waitForText(t, userID, "Open this link to log in", 1)

	lines := strings.Split(reply, "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	authURL, err := url.Parse(lines[1])
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	resp, err := http.Get(s.callback.URL + "/oauth2callback?code=valid_code&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.waitForText(t, userID, "Login successful", 1)
}

func TestBotFlow_LoginUploadListSurvivesRestart(t *testing.T) {
	google := testutil.NewMockGoogleServer()
	defer google.Close()
	driveMock := testutil.NewMockDriveServer()
	defer driveMock.Close()
	storeDir := t.TempDir()

	first := startStack(t, google, driveMock, storeDir)
	loginThroughCallback(t, first)

	first.telegram.AddFile("doc-1", []byte("hello drive"))
	first.telegram.QueueDocument(userID, "doc-1", "raw.txt", "text/plain", "notes.txt")
	first.waitForText(t, userID, "File 'notes.txt' uploaded to Google Drive.", 1)
	assert.Equal(t, 1, driveMock.FileCount())

	first.telegram.QueueText(userID, "/list")
	listing := first.waitForText(t, userID, "Your uploaded files", 1)
	assert.Contains(t, listing, "1. notes.txt (text/plain)")

	first.stop()

	second := startStack(t, google, driveMock, storeDir)
	assert.True(t, second.store.Has(1001), "credential should be restored from disk")

	second.telegram.QueueText(userID, "/list")
	listing = second.waitForText(t, userID, "Your uploaded files", 1)
	assert.Contains(t, listing, "1. notes.txt (text/plain)")

	second.telegram.QueueText(userID, "/get 1")
	require.Eventually(t, func() bool {
		for _, msg := range second.telegram.Sent() {
			if msg.FileName == "notes.txt" {
				return bytes.Equal([]byte("hello drive"), msg.Content)
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	second.telegram.QueueText(userID, "/logout")
	second.waitForText(t, userID, "Logged out.", 1)
	second.stop()

	third := startStack(t, google, driveMock, storeDir)
	assert.False(t, third.store.Has(1001))
	assert.Empty(t, third.files.List(1001))

	third.telegram.QueueText(userID, "/list")
	third.waitForText(t, userID, "You are not logged in", 1)
}

func TestBotFlow_ForgedCallbackIsRejected(t *testing.T) {
	google := testutil.NewMockGoogleServer()
	defer google.Close()
	driveMock := testutil.NewMockDriveServer()
	defer driveMock.Close()

	s := startStack(t, google, driveMock, t.TempDir())

	resp, err := http.Get(s.callback.URL + "/oauth2callback?code=valid_code&state=forged")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "<html")
	assert.Equal(t, 0, google.TokenCalls(), "a forged state must not reach the token endpoint")
	assert.False(t, s.store.Has(1001))
}

func TestBotFlow_Health(t *testing.T) {
	google := testutil.NewMockGoogleServer()
	defer google.Close()
	driveMock := testutil.NewMockDriveServer()
	defer driveMock.Close()

	s := startStack(t, google, driveMock, t.TempDir())

	resp, err := http.Get(s.callback.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", strings.TrimSpace(string(body)))
}
