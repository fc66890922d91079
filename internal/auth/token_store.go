package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/pkg/logger"
)

// Refresher trades a credential's refresh token for a new access token
type Refresher interface {
	Refresh(ctx context.Context, rec models.CredentialRecord) (*oauth2.Token, error)
}

// CredentialMirror receives every committed credential change, typically to persist it
type CredentialMirror interface {
	SaveCredential(userID models.UserID, rec models.CredentialRecord)
	DeleteCredential(userID models.UserID)
}

type credentialEntry struct {
	rec models.CredentialRecord
	gen uint64 // bumped on every replace; a refresh only commits over the generation it read
}

// TokenStore holds one credential per user and refreshes expired access tokens on read.
// The store's mutex guards the map and orders mirror writes; it is never held
// across a token endpoint call.
type TokenStore struct {
	mu      sync.Mutex
	records map[models.UserID]credentialEntry
	gen     uint64

	refresher Refresher
	inflight  singleflight.Group
	mirror    CredentialMirror
	hooks     []func(models.UserID)

	now    func() time.Time
	logger *zap.Logger
}

// NewTokenStore creates an empty store
func NewTokenStore(refresher Refresher, log *zap.Logger) *TokenStore {
	return &TokenStore{
		records:   make(map[models.UserID]credentialEntry),
		refresher: refresher,
		now:       time.Now,
		logger:    log,
	}
}

// SetMirror attaches a mirror for committed changes
func (ts *TokenStore) SetMirror(m CredentialMirror) {
	ts.mirror = m
}

// OnRemove registers a hook run after Remove; dependents drop their per-user state there
func (ts *TokenStore) OnRemove(hook func(models.UserID)) {
	ts.hooks = append(ts.hooks, hook)
}

// SetClock replaces the clock (used for testing)
func (ts *TokenStore) SetClock(now func() time.Time) {
	ts.now = now
}

// Load installs records read from persistent storage without mirroring them back
func (ts *TokenStore) Load(records map[models.UserID]models.CredentialRecord) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for userID, rec := range records {
		ts.gen++
		ts.records[userID] = credentialEntry{rec: rec, gen: ts.gen}
	}
}

// Get returns a usable credential for userID, refreshing it first if the access
// token has expired. Any refresh failure evicts the record and yields ErrNotLoggedIn.
func (ts *TokenStore) Get(ctx context.Context, userID models.UserID) (models.CredentialRecord, error) {
	entry, ok := ts.lookup(userID)
	if !ok {
		ts.logger.Debug("no credential stored", logger.UserID(int64(userID)))
		return models.CredentialRecord{}, ErrNotLoggedIn
	}

	now := ts.now()
	if !entry.rec.Usable(now) {
		ts.logger.Info("credential unusable, login expired", logger.UserID(int64(userID)))
		ts.evict(userID, entry.gen)
		return models.CredentialRecord{}, ErrNotLoggedIn
	}
	if !entry.rec.Expired(now) {
		return entry.rec, nil
	}

	// Concurrent callers for the same user share one exchange
	v, err, shared := ts.inflight.Do(userID.String(), func() (any, error) {
		return ts.refresh(ctx, userID)
	})
	if err != nil {
		return models.CredentialRecord{}, ErrNotLoggedIn
	}

	if shared {
		ts.logger.Debug("joined in-flight token refresh", logger.UserID(int64(userID)))
	}
	return v.(models.CredentialRecord), nil
}

// Put replaces the credential of userID
func (ts *TokenStore) Put(userID models.UserID, rec models.CredentialRecord) {
	ts.mu.Lock()
	ts.gen++
	ts.records[userID] = credentialEntry{rec: rec, gen: ts.gen}
	ts.mirrorSave(userID, rec)
	ts.mu.Unlock()
}

// Remove deletes the credential of userID and runs the remove hooks.
// It is idempotent and reports whether a credential existed.
func (ts *TokenStore) Remove(userID models.UserID) bool {
	ts.mu.Lock()
	_, existed := ts.records[userID]
	delete(ts.records, userID)
	if existed {
		ts.mirrorDelete(userID)
	}
	ts.mu.Unlock()

	for _, hook := range ts.hooks {
		hook(userID)
	}
	return existed
}

// Has reports whether a credential is stored for userID, without refreshing it
func (ts *TokenStore) Has(userID models.UserID) bool {
	_, ok := ts.lookup(userID)
	return ok
}

func (ts *TokenStore) lookup(userID models.UserID) (credentialEntry, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.records[userID]
	return entry, ok
}

// refresh runs inside the singleflight group
func (ts *TokenStore) refresh(ctx context.Context, userID models.UserID) (models.CredentialRecord, error) {
	// 1. Re-validate: a flight that finished just before this one may already have committed
	entry, ok := ts.lookup(userID)
	if !ok {
		return models.CredentialRecord{}, ErrNotLoggedIn
	}
	now := ts.now()
	if !entry.rec.Expired(now) {
		return entry.rec, nil
	}
	if !entry.rec.Usable(now) {
		ts.logger.Info("credential expired without refresh token, login expired", logger.UserID(int64(userID)))
		ts.evict(userID, entry.gen)
		return models.CredentialRecord{}, ErrNotLoggedIn
	}

	// 2. Call the token endpoint with no lock held. Waiters share this call,
	// so one caller's cancellation must not fail it for everyone.
	tok, err := ts.refresher.Refresh(context.WithoutCancel(ctx), entry.rec)
	if err != nil {
		ts.logger.Warn("token refresh failed, login expired",
			logger.UserID(int64(userID)),
			zap.Bool("permanent", IsPermanentRefreshError(err)),
			zap.Error(err),
		)
		ts.evict(userID, entry.gen)
		return models.CredentialRecord{}, fmt.Errorf("refresh credential: %w", err)
	}

	// 3. Commit only over the generation we read
	next := entry.rec.WithToken(tok)

	ts.mu.Lock()
	current, ok := ts.records[userID]
	if !ok {
		ts.mu.Unlock()
		ts.logger.Info("credential removed during refresh, discarding token", logger.UserID(int64(userID)))
		return models.CredentialRecord{}, ErrNotLoggedIn
	}
	if current.gen != entry.gen {
		ts.mu.Unlock()
		ts.logger.Info("credential replaced during refresh, discarding token", logger.UserID(int64(userID)))
		return current.rec, nil
	}
	ts.gen++
	ts.records[userID] = credentialEntry{rec: next, gen: ts.gen}
	ts.mirrorSave(userID, next)
	ts.mu.Unlock()

	ts.logger.Info("refreshed access token",
		logger.UserID(int64(userID)),
		zap.Time("expiry", next.Expiry),
	)
	return next, nil
}

// evict drops the record only if it is still the generation that failed
func (ts *TokenStore) evict(userID models.UserID, gen uint64) {
	ts.mu.Lock()
	current, ok := ts.records[userID]
	if !ok || current.gen != gen {
		ts.mu.Unlock()
		return
	}
	delete(ts.records, userID)
	ts.mirrorDelete(userID)
	ts.mu.Unlock()
}

// mirrorSave and mirrorDelete are called with ts.mu held so the mirror sees
// changes in commit order
func (ts *TokenStore) mirrorSave(userID models.UserID, rec models.CredentialRecord) {
	if ts.mirror != nil {
		ts.mirror.SaveCredential(userID, rec)
	}
}

func (ts *TokenStore) mirrorDelete(userID models.UserID) {
	if ts.mirror != nil {
		ts.mirror.DeleteCredential(userID)
	}
}
