package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/internal/testutil"
)

func TestFileQueries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	db, cleanup, err := testutil.SetupTestDB(ctx)
	require.NoError(t, err)
	defer cleanup()

	first := []models.FileRecord{
		{RemoteID: "r1", DisplayName: "a.txt", MimeType: "text/plain"},
		{RemoteID: "r2", DisplayName: "b.pdf", MimeType: "application/pdf"},
	}

	t.Run("empty list", func(t *testing.T) {
		files, err := db.ListFiles(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("replace keeps order and positions", func(t *testing.T) {
		require.NoError(t, db.ReplaceFiles(ctx, 10, first))

		files, err := db.ListFiles(ctx, 10)
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, "r1", files[0].RemoteID)
		assert.Equal(t, 1, files[0].Position)
		assert.Equal(t, "b.pdf", files[1].DisplayName)
		assert.Equal(t, 2, files[1].Position)
	})

	t.Run("replace overwrites previous list", func(t *testing.T) {
		require.NoError(t, db.ReplaceFiles(ctx, 10, first[1:]))

		files, err := db.ListFiles(ctx, 10)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "r2", files[0].RemoteID)
		assert.Equal(t, 1, files[0].Position)
	})

	t.Run("list all groups by user", func(t *testing.T) {
		require.NoError(t, db.ReplaceFiles(ctx, 20, first))

		all, err := db.ListAllFiles(ctx)
		require.NoError(t, err)
		assert.Len(t, all[10], 1)
		assert.Len(t, all[20], 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, db.DeleteFiles(ctx, 20))

		files, err := db.ListFiles(ctx, 20)
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}
