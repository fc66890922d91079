package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/pkg/logger"
)

// ReplaceFiles overwrites the file list of userID with files, in order
func (db *DB) ReplaceFiles(ctx context.Context, userID models.UserID, files []models.FileRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after commit returns sql.ErrTxDone, which is expected
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE user_id = $1`, int64(userID)); err != nil {
		return fmt.Errorf("failed to clear files: %w", err)
	}

	insert := `
		INSERT INTO files (user_id, position, remote_id, name, mime_type)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i, f := range files {
		if _, err := tx.ExecContext(ctx, insert, int64(userID), i+1, f.RemoteID, f.DisplayName, f.MimeType); err != nil {
			return fmt.Errorf("failed to insert file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit files: %w", err)
	}

	db.logger.Debug("replaced file list",
		logger.UserID(int64(userID)),
		zap.Int("count", len(files)),
	)
	return nil
}

// ListFiles returns the file list of userID ordered by position
func (db *DB) ListFiles(ctx context.Context, userID models.UserID) ([]models.FileRecord, error) {
	query := `
		SELECT position, remote_id, name, mime_type
		FROM files
		WHERE user_id = $1
		ORDER BY position ASC
	`

	rows, err := db.QueryContext(ctx, query, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := []models.FileRecord{}
	for rows.Next() {
		var f models.FileRecord
		if err := rows.Scan(&f.Position, &f.RemoteID, &f.DisplayName, &f.MimeType); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return files, nil
}

// ListAllFiles returns every user's file list
func (db *DB) ListAllFiles(ctx context.Context) (map[models.UserID][]models.FileRecord, error) {
	query := `
		SELECT user_id, position, remote_id, name, mime_type
		FROM files
		ORDER BY user_id, position ASC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	out := make(map[models.UserID][]models.FileRecord)
	for rows.Next() {
		var (
			userID int64
			f      models.FileRecord
		)
		if err := rows.Scan(&userID, &f.Position, &f.RemoteID, &f.DisplayName, &f.MimeType); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		out[models.UserID(userID)] = append(out[models.UserID(userID)], f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return out, nil
}

// DeleteFiles removes the file list of userID
func (db *DB) DeleteFiles(ctx context.Context, userID models.UserID) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM files WHERE user_id = $1`, int64(userID)); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	return nil
}
