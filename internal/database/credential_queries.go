package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

// UpsertCredential stores or replaces the credential of userID.
// Token fields are written as given; sealing them is the caller's job.
func (db *DB) UpsertCredential(ctx context.Context, userID models.UserID, rec models.CredentialRecord) error {
	query := `
		INSERT INTO credentials (user_id, access_token, refresh_token, token_type, token_uri, client_id, client_secret, scopes, expiry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id)
		DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			token_uri = EXCLUDED.token_uri,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			scopes = EXCLUDED.scopes,
			expiry = EXCLUDED.expiry,
			updated_at = NOW()
	`

	_, err := db.ExecContext(ctx, query,
		int64(userID),
		rec.AccessToken,
		rec.RefreshToken,
		rec.TokenType,
		rec.TokenEndpoint,
		rec.ClientID,
		rec.ClientSecret,
		pq.Array(scopesOrEmpty(rec.Scopes)),
		sql.NullTime{Time: rec.Expiry, Valid: !rec.Expiry.IsZero()},
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return nil
}

// GetCredential retrieves the credential of userID
func (db *DB) GetCredential(ctx context.Context, userID models.UserID) (models.CredentialRecord, error) {
	query := `
		SELECT user_id, access_token, refresh_token, token_type, token_uri, client_id, client_secret, scopes, expiry
		FROM credentials
		WHERE user_id = $1
	`

	_, rec, err := scanCredential(db.QueryRowContext(ctx, query, int64(userID)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.CredentialRecord{}, fmt.Errorf("credential: %w", ErrNotFound)
	}
	if err != nil {
		return models.CredentialRecord{}, fmt.Errorf("failed to get credential: %w", err)
	}

	return rec, nil
}

// ListCredentials returns every stored credential keyed by user
func (db *DB) ListCredentials(ctx context.Context) (map[models.UserID]models.CredentialRecord, error) {
	query := `
		SELECT user_id, access_token, refresh_token, token_type, token_uri, client_id, client_secret, scopes, expiry
		FROM credentials
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	out := make(map[models.UserID]models.CredentialRecord)
	for rows.Next() {
		userID, rec, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		out[userID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return out, nil
}

// DeleteCredential removes the credential of userID; deleting a missing row is not an error
func (db *DB) DeleteCredential(ctx context.Context, userID models.UserID) error {
	query := `DELETE FROM credentials WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, query, int64(userID)); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (models.UserID, models.CredentialRecord, error) {
	var (
		userID int64
		rec    models.CredentialRecord
		scopes []string
		expiry sql.NullTime
	)

	err := row.Scan(
		&userID,
		&rec.AccessToken,
		&rec.RefreshToken,
		&rec.TokenType,
		&rec.TokenEndpoint,
		&rec.ClientID,
		&rec.ClientSecret,
		pq.Array(&scopes),
		&expiry,
	)
	if err != nil {
		return 0, models.CredentialRecord{}, err
	}

	rec.Scopes = scopes
	if expiry.Valid {
		rec.Expiry = expiry.Time
	}
	return models.UserID(userID), rec, nil
}

func scopesOrEmpty(scopes []string) []string {
	if scopes == nil {
		return []string{}
	}
	return scopes
}
