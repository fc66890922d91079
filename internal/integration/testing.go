// Package integration runs the bot end to end against mock Telegram, Google and Drive servers.
package integration

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/auth"
	"github.com/parsascontentcorner/telegramdrive/internal/drive"
	"github.com/parsascontentcorner/telegramdrive/internal/oauth"
	"github.com/parsascontentcorner/telegramdrive/internal/ratelimit"
	"github.com/parsascontentcorner/telegramdrive/internal/session"
	"github.com/parsascontentcorner/telegramdrive/internal/storage"
	"github.com/parsascontentcorner/telegramdrive/internal/telegram"
	"github.com/parsascontentcorner/telegramdrive/internal/tempfile"
	"github.com/parsascontentcorner/telegramdrive/internal/testutil"
)

// stack is one running bot process: its own Telegram mock, callback server and
// mirror, sharing Google, Drive and the storage dir with later restarts.
type stack struct {
	telegram   *testutil.MockTelegramServer
	callback   *httptest.Server
	store      *auth.TokenStore
	files      *session.FileIndex
	dispatcher *telegram.Dispatcher
	mirror     *storage.Mirror

	cancel  context.CancelFunc
	runDone chan error
	stopped bool
}

func startStack(t *testing.T, google *testutil.MockGoogleServer, driveMock *testutil.MockDriveServer, storeDir string) *stack {
	t.Helper()

	logger := zap.NewNop()
	cfg := testutil.GenerateTestConfig()

	backend, err := storage.NewFileBackend(storeDir, logger)
	require.NoError(t, err)
	snapshot, err := backend.LoadAll(context.Background())
	require.NoError(t, err)

	googleClient := auth.NewGoogleClient(cfg, logger)
	googleClient.SetEndpoint(google.GetAuthURL(), google.GetTokenURL())
	states := auth.NewStateManager(cfg.Security.StateExpiryMinutes, cfg.Security.StateMode, logger)
	flow := auth.NewFlowCoordinator(googleClient, states, logger)

	store := auth.NewTokenStore(googleClient, logger)
	files := session.NewFileIndex()
	store.Load(snapshot.Credentials)
	files.Load(snapshot.Files)

	mirror := storage.NewMirror(backend, logger)
	store.SetMirror(mirror)
	files.SetMirror(mirror)

	driveClient := drive.NewClient(cfg, logger)
	driveClient.SetBaseURLs(driveMock.APIURL(), driveMock.UploadURL())
	driveClient.SetRateLimiter(ratelimit.NewRateLimiter(cfg.Google.RequestsPerSecond, logger))

	temp, err := tempfile.NewDir(t.TempDir())
	require.NoError(t, err)

	tg := testutil.NewMockTelegramServer()
	bot, err := telegram.NewBotWithEndpoint(cfg, tg.APIEndpoint(), tg.FileEndpoint(), logger)
	require.NoError(t, err)

	orch := session.NewOrchestrator(store, flow, session.NewUploadTracker(), files, bot, driveClient, temp, logger)
	dispatcher := telegram.NewDispatcher(orch, logger)
	callback := httptest.NewServer(oauth.NewRouter(oauth.NewHandlers(orch, logger), logger))

	ctx, cancel := context.WithCancel(context.Background())
	s := &stack{
		telegram:   tg,
		callback:   callback,
		store:      store,
		files:      files,
		dispatcher: dispatcher,
		mirror:     mirror,
		cancel:     cancel,
		runDone:    make(chan error, 1),
	}
	go func() { s.runDone <- bot.Run(ctx, dispatcher) }()

	t.Cleanup(s.stop)
	return s
}

// stop shuts down in the same order as the binary: intake, queued work, mirror, HTTP
func (s *stack) stop() {
	if s.stopped {
		return
	}
	s.stopped = true

	s.cancel()
	<-s.runDone

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.dispatcher.Shutdown(ctx)
	s.callback.Close()
	_ = s.mirror.Close(ctx)
	s.telegram.Close()
}

// waitForText waits until userID has received n texts containing substr and returns the last one
func (s *stack) waitForText(t *testing.T, userID int64, substr string, n int) string {
	t.Helper()

	var last string
	require.Eventually(t, func() bool {
		count := 0
		for _, msg := range s.telegram.Sent() {
			if msg.ChatID == userID && strings.Contains(msg.Text, substr) {
				count++
				last = msg.Text
			}
		}
		return count >= n
	}, 5*time.Second, 10*time.Millisecond, "expected %d message(s) containing %q", n, substr)

	return last
}
