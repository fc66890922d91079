package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/config"
	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/pkg/logger"
)

// maxExchangeAttempts allows one retry of a failed code exchange
const maxExchangeAttempts = 2

// StateManager holds the live PendingOAuthRequest of every user.
// There is at most one per user; issuing a new one kills the previous state.
type StateManager struct {
	mu      sync.Mutex
	byState map[string]*models.PendingOAuthRequest
	byUser  map[models.UserID]string

	expiry time.Duration
	mode   string
	now    func() time.Time
	logger *zap.Logger
}

// NewStateManager creates a new state manager
func NewStateManager(stateExpiryMinutes int, mode string, log *zap.Logger) *StateManager {
	return &StateManager{
		byState: make(map[string]*models.PendingOAuthRequest),
		byUser:  make(map[models.UserID]string),
		expiry:  time.Duration(stateExpiryMinutes) * time.Minute,
		mode:    mode,
		now:     time.Now,
		logger:  log,
	}
}

// GenerateState generates a cryptographically secure random state
func (sm *StateManager) GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue creates the pending request for userID, replacing any earlier one
func (sm *StateManager) Issue(userID models.UserID) (models.PendingOAuthRequest, error) {
	state := userID.String()
	if sm.mode != config.StateModeUserID {
		var err error
		if state, err = sm.GenerateState(); err != nil {
			return models.PendingOAuthRequest{}, err
		}
	}

	now := sm.now()
	req := &models.PendingOAuthRequest{
		UserID:    userID,
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.expiry),
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if old, ok := sm.byUser[userID]; ok {
		delete(sm.byState, old)
		sm.logger.Debug("replaced pending oauth request", logger.UserID(int64(userID)))
	}
	sm.byState[state] = req
	sm.byUser[userID] = state

	return *req, nil
}

// Lookup returns the live request for state without changing it
func (sm *StateManager) Lookup(state string) (models.PendingOAuthRequest, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	req, ok := sm.byState[state]
	if !ok || req.IsExpired(sm.now()) {
		return models.PendingOAuthRequest{}, false
	}
	return *req, true
}

// LookupUser returns the live request of userID
func (sm *StateManager) LookupUser(userID models.UserID) (models.PendingOAuthRequest, bool) {
	sm.mu.Lock()
	state, ok := sm.byUser[userID]
	sm.mu.Unlock()
	if !ok {
		return models.PendingOAuthRequest{}, false
	}
	return sm.Lookup(state)
}

// RecordFailure counts a failed exchange for state. It reports whether the
// request is still live; once the retry is used up the request is dropped.
func (sm *StateManager) RecordFailure(state string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	req, ok := sm.byState[state]
	if !ok {
		return false
	}
	req.Attempts++
	if req.Attempts >= maxExchangeAttempts {
		sm.removeLocked(state)
		return false
	}
	return true
}

// Consume deletes the request for state (single use).
// It returns false if another caller consumed or replaced it first.
func (sm *StateManager) Consume(state string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.byState[state]; !ok {
		return false
	}
	sm.removeLocked(state)
	return true
}

// Cancel drops the pending request of userID, if any
func (sm *StateManager) Cancel(userID models.UserID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state, ok := sm.byUser[userID]; ok {
		sm.removeLocked(state)
	}
}

// CleanupExpired removes expired requests and returns how many were removed
func (sm *StateManager) CleanupExpired() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	removed := 0
	for state, req := range sm.byState {
		if req.IsExpired(now) {
			sm.removeLocked(state)
			removed++
		}
	}
	return removed
}

// StartCleanupJob periodically purges expired requests until ctx is done
func (sm *StateManager) StartCleanupJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sm.CleanupExpired(); n > 0 {
					sm.logger.Info("cleaned up expired oauth states", zap.Int("count", n))
				}
			}
		}
	}()
}

func (sm *StateManager) removeLocked(state string) {
	req, ok := sm.byState[state]
	if !ok {
		return
	}
	delete(sm.byState, state)
	if sm.byUser[req.UserID] == state {
		delete(sm.byUser, req.UserID)
	}
}
