package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/telegramdrive/internal/database"
	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/internal/testutil"
)

func testCredential(access string) models.CredentialRecord {
	return models.CredentialRecord{
		AccessToken:   access,
		RefreshToken:  "refresh-" + access,
		TokenType:     "Bearer",
		TokenEndpoint: "https://oauth2.googleapis.com/token",
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		Scopes:        []string{"https://www.googleapis.com/auth/drive.file"},
		Expiry:        time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestCredentialQueries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	db, cleanup, err := testutil.SetupTestDB(ctx)
	require.NoError(t, err)
	defer cleanup()

	t.Run("get missing credential", func(t *testing.T) {
		_, err := db.GetCredential(ctx, 1)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("upsert then get", func(t *testing.T) {
		want := testCredential("first")
		require.NoError(t, db.UpsertCredential(ctx, 1, want))

		got, err := db.GetCredential(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, want.AccessToken, got.AccessToken)
		assert.Equal(t, want.RefreshToken, got.RefreshToken)
		assert.Equal(t, want.TokenEndpoint, got.TokenEndpoint)
		assert.Equal(t, want.Scopes, got.Scopes)
		assert.True(t, want.Expiry.Equal(got.Expiry))
	})

	t.Run("upsert replaces", func(t *testing.T) {
		require.NoError(t, db.UpsertCredential(ctx, 1, testCredential("second")))

		got, err := db.GetCredential(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "second", got.AccessToken)
	})

	t.Run("zero expiry is stored as null", func(t *testing.T) {
		rec := testCredential("no-expiry")
		rec.Expiry = time.Time{}
		rec.Scopes = nil
		require.NoError(t, db.UpsertCredential(ctx, 2, rec))

		got, err := db.GetCredential(ctx, 2)
		require.NoError(t, err)
		assert.True(t, got.Expiry.IsZero())
		assert.Empty(t, got.Scopes)
	})

	t.Run("list and delete", func(t *testing.T) {
		all, err := db.ListCredentials(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Equal(t, "second", all[1].AccessToken)

		require.NoError(t, db.DeleteCredential(ctx, 1))
		require.NoError(t, db.DeleteCredential(ctx, 1))

		all, err = db.ListCredentials(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		_, ok := all[2]
		assert.True(t, ok)
	})
}
