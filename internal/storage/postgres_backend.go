package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/auth"
	"github.com/parsascontentcorner/telegramdrive/internal/database"
	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/pkg/logger"
)

// PostgresBackend stores state in the credentials and files tables.
// Access token, refresh token and client secret are sealed before they reach the database.
type PostgresBackend struct {
	db     *database.DB
	cipher *auth.TokenCipher
	logger *zap.Logger
}

// NewPostgresBackend wraps a migrated database
func NewPostgresBackend(db *database.DB, cipher *auth.TokenCipher, logger *zap.Logger) *PostgresBackend {
	return &PostgresBackend{
		db:     db,
		cipher: cipher,
		logger: logger,
	}
}

func (b *PostgresBackend) SaveCredential(ctx context.Context, userID models.UserID, rec models.CredentialRecord) error {
	sealed, err := b.seal(rec)
	if err != nil {
		return err
	}
	return b.db.UpsertCredential(ctx, userID, sealed)
}

func (b *PostgresBackend) DeleteCredential(ctx context.Context, userID models.UserID) error {
	return b.db.DeleteCredential(ctx, userID)
}

func (b *PostgresBackend) SaveFiles(ctx context.Context, userID models.UserID, files []models.FileRecord) error {
	return b.db.ReplaceFiles(ctx, userID, files)
}

func (b *PostgresBackend) DeleteFiles(ctx context.Context, userID models.UserID) error {
	return b.db.DeleteFiles(ctx, userID)
}

// LoadAll reads every row. A credential that no longer opens with the current key is
// skipped so its user simply logs in again.
func (b *PostgresBackend) LoadAll(ctx context.Context) (Snapshot, error) {
	out := newSnapshot()

	creds, err := b.db.ListCredentials(ctx)
	if err != nil {
		return out, err
	}
	for userID, sealed := range creds {
		rec, err := b.open(sealed)
		if err != nil {
			b.logger.Warn("skipping unreadable credential",
				logger.UserID(int64(userID)),
				zap.Error(err),
			)
			continue
		}
		out.Credentials[userID] = rec
	}

	files, err := b.db.ListAllFiles(ctx)
	if err != nil {
		return out, err
	}
	out.Files = files

	return out, nil
}

// Close closes the underlying database
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}

func (b *PostgresBackend) seal(rec models.CredentialRecord) (models.CredentialRecord, error) {
	var err error
	out := rec
	if out.AccessToken, err = b.cipher.Seal(rec.AccessToken); err != nil {
		return rec, fmt.Errorf("failed to seal access token: %w", err)
	}
	if out.RefreshToken, err = b.cipher.Seal(rec.RefreshToken); err != nil {
		return rec, fmt.Errorf("failed to seal refresh token: %w", err)
	}
	if out.ClientSecret, err = b.cipher.Seal(rec.ClientSecret); err != nil {
		return rec, fmt.Errorf("failed to seal client secret: %w", err)
	}
	return out, nil
}

func (b *PostgresBackend) open(rec models.CredentialRecord) (models.CredentialRecord, error) {
	var err error
	out := rec
	if out.AccessToken, err = b.cipher.Open(rec.AccessToken); err != nil {
		return rec, fmt.Errorf("failed to open access token: %w", err)
	}
	if out.RefreshToken, err = b.cipher.Open(rec.RefreshToken); err != nil {
		return rec, fmt.Errorf("failed to open refresh token: %w", err)
	}
	if out.ClientSecret, err = b.cipher.Open(rec.ClientSecret); err != nil {
		return rec, fmt.Errorf("failed to open client secret: %w", err)
	}
	return out, nil
}
