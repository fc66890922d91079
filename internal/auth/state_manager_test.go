package auth

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/config"
	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

func newTestStateManager(mode string) *StateManager {
	return NewStateManager(10, mode, zap.NewNop())
}

func TestGenerateState(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)

	state, err := manager.GenerateState()
	require.NoError(t, err)

	// 32 random bytes, unpadded base64url
	raw, err := base64.RawURLEncoding.DecodeString(state)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Len(t, state, 43)
}

func TestGenerateState_Uniqueness(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)

	states := make(map[string]bool)
	for i := 0; i < 100; i++ {
		state, err := manager.GenerateState()
		require.NoError(t, err)

		assert.False(t, states[state], "State should be unique")
		states[state] = true
	}

	assert.Equal(t, 100, len(states))
}

func TestIssue_RandomMode(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)

	req, err := manager.Issue(42)
	require.NoError(t, err)

	assert.Equal(t, models.UserID(42), req.UserID)
	assert.NotEqual(t, "42", req.State)
	assert.WithinDuration(t, req.CreatedAt.Add(10*time.Minute), req.ExpiresAt, time.Second)

	found, ok := manager.Lookup(req.State)
	require.True(t, ok)
	assert.Equal(t, req.UserID, found.UserID)
}

func TestIssue_UserIDMode(t *testing.T) {
	manager := newTestStateManager(config.StateModeUserID)

	req, err := manager.Issue(42)
	require.NoError(t, err)

	assert.Equal(t, "42", req.State)
}

func TestIssue_ReplacesPreviousRequest(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)

	first, err := manager.Issue(7)
	require.NoError(t, err)
	second, err := manager.Issue(7)
	require.NoError(t, err)

	_, ok := manager.Lookup(first.State)
	assert.False(t, ok, "previous state must be dead")

	found, ok := manager.LookupUser(7)
	require.True(t, ok)
	assert.Equal(t, second.State, found.State)
}

func TestLookup_UnknownAndExpired(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)
	now := time.Now()
	manager.now = func() time.Time { return now }

	req, err := manager.Issue(1)
	require.NoError(t, err)

	_, ok := manager.Lookup("unknown")
	assert.False(t, ok)

	manager.now = func() time.Time { return now.Add(11 * time.Minute) }
	_, ok = manager.Lookup(req.State)
	assert.False(t, ok, "expired state must not match")
}

func TestRecordFailure_AllowsOneRetry(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)

	req, err := manager.Issue(5)
	require.NoError(t, err)

	assert.True(t, manager.RecordFailure(req.State), "first failure keeps the request")
	_, ok := manager.Lookup(req.State)
	assert.True(t, ok)

	assert.False(t, manager.RecordFailure(req.State), "second failure drops it")
	_, ok = manager.Lookup(req.State)
	assert.False(t, ok)
}

func TestConsume_SingleUse(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)

	req, err := manager.Issue(9)
	require.NoError(t, err)

	assert.True(t, manager.Consume(req.State))
	assert.False(t, manager.Consume(req.State))

	_, ok := manager.LookupUser(9)
	assert.False(t, ok)
}

func TestConsume_Concurrent(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)

	req, err := manager.Issue(11)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 10)
	for i := range results {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			results[index] = manager.Consume(req.State)
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, ok := range results {
		if ok {
			successCount++
		}
	}
	assert.Equal(t, 1, successCount, "Exactly one consume should succeed")
}

func TestCancel(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)

	req, err := manager.Issue(3)
	require.NoError(t, err)

	manager.Cancel(3)
	manager.Cancel(3)

	_, ok := manager.Lookup(req.State)
	assert.False(t, ok)
}

func TestCleanupExpired(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)
	now := time.Now()
	manager.now = func() time.Time { return now }

	_, err := manager.Issue(1)
	require.NoError(t, err)
	_, err = manager.Issue(2)
	require.NoError(t, err)

	assert.Equal(t, 0, manager.CleanupExpired())

	manager.now = func() time.Time { return now.Add(time.Hour) }
	assert.Equal(t, 2, manager.CleanupExpired())

	_, ok := manager.LookupUser(1)
	assert.False(t, ok)
}

func TestStartCleanupJob_StopsWithContext(t *testing.T) {
	manager := newTestStateManager(config.StateModeRandom)
	now := time.Now()
	manager.mu.Lock()
	manager.now = func() time.Time { return now.Add(time.Hour) }
	manager.byState["stale"] = &models.PendingOAuthRequest{UserID: 1, State: "stale", ExpiresAt: now}
	manager.byUser[1] = "stale"
	manager.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager.StartCleanupJob(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		manager.mu.Lock()
		defer manager.mu.Unlock()
		return len(manager.byState) == 0
	}, time.Second, 10*time.Millisecond)
}
