package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/pkg/logger"
)

// FlowCoordinator runs the two halves of a login: the chat side that hands out an
// authorization URL and the HTTP side that redeems the code. They are correlated
// only through the StateManager.
type FlowCoordinator struct {
	client *GoogleClient
	states *StateManager
	logger *zap.Logger
}

// NewFlowCoordinator creates a new flow coordinator
func NewFlowCoordinator(client *GoogleClient, states *StateManager, logger *zap.Logger) *FlowCoordinator {
	return &FlowCoordinator{
		client: client,
		states: states,
		logger: logger,
	}
}

// BeginLogin registers a pending request for userID and returns the consent URL.
// Any URL handed out earlier to the same user stops working.
func (fc *FlowCoordinator) BeginLogin(_ context.Context, userID models.UserID) (string, error) {
	req, err := fc.states.Issue(userID)
	if err != nil {
		return "", fmt.Errorf("failed to issue oauth state: %w", err)
	}

	fc.logger.Info("login started",
		logger.UserID(int64(userID)),
		zap.Time("expires_at", req.ExpiresAt),
	)

	return fc.client.AuthCodeURL(req.State), nil
}

// CompleteLogin redeems code for the user that owns state. It does not install the
// credential; the caller does that and notifies the user.
func (fc *FlowCoordinator) CompleteLogin(ctx context.Context, code, state string) (models.UserID, models.CredentialRecord, error) {
	// 1. Match state
	req, ok := fc.states.Lookup(state)
	if !ok {
		fc.logger.Warn("oauth callback with unknown or expired state")
		return 0, models.CredentialRecord{}, ErrStateMismatch
	}
	userID := req.UserID

	// 2. Exchange code for token
	fc.logger.Debug("exchanging code for token", logger.UserID(int64(userID)))
	tok, err := fc.client.ExchangeCode(ctx, code)
	if err != nil {
		retry := fc.states.RecordFailure(state)
		fc.logger.Error("failed to exchange code",
			logger.UserID(int64(userID)),
			zap.Bool("retry_allowed", retry),
			zap.Error(err),
		)
		return userID, models.CredentialRecord{}, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	// 3. Consume state; a concurrent duplicate callback or a newer login may have won
	if !fc.states.Consume(state) {
		fc.logger.Warn("oauth state consumed concurrently, discarding token", logger.UserID(int64(userID)))
		return userID, models.CredentialRecord{}, ErrStateMismatch
	}

	fc.logger.Info("login completed", logger.UserID(int64(userID)))
	return userID, fc.client.NewCredential(tok), nil
}

// CompleteLoginForUser redeems a code pasted into the chat by userID.
// It only succeeds while that user has a live pending request.
func (fc *FlowCoordinator) CompleteLoginForUser(ctx context.Context, userID models.UserID, code string) (models.CredentialRecord, error) {
	req, ok := fc.states.LookupUser(userID)
	if !ok {
		return models.CredentialRecord{}, ErrStateMismatch
	}

	_, rec, err := fc.CompleteLogin(ctx, code, req.State)
	return rec, err
}

// Cancel drops the pending request of userID
func (fc *FlowCoordinator) Cancel(userID models.UserID) {
	fc.states.Cancel(userID)
}
