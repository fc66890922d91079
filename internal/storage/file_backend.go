package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

const (
	sessionsFile = "sessions.json"
	filesFile    = "files.json"
)

// FileBackend keeps state in two JSON documents under dir:
// sessions.json maps user id to credential, files.json maps user id to file list.
// Each write rewrites the whole document through a rename.
type FileBackend struct {
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]models.CredentialRecord
	files    map[string][]models.FileRecord
}

// NewFileBackend creates dir if needed and reads whatever documents it already holds
func NewFileBackend(dir string, logger *zap.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	b := &FileBackend{
		dir:      dir,
		logger:   logger,
		sessions: make(map[string]models.CredentialRecord),
		files:    make(map[string][]models.FileRecord),
	}

	if err := b.read(sessionsFile, &b.sessions); err != nil {
		return nil, err
	}
	if err := b.read(filesFile, &b.files); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *FileBackend) SaveCredential(_ context.Context, userID models.UserID, rec models.CredentialRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[userID.String()] = rec
	return b.write(sessionsFile, b.sessions)
}

func (b *FileBackend) DeleteCredential(_ context.Context, userID models.UserID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[userID.String()]; !ok {
		return nil
	}
	delete(b.sessions, userID.String())
	return b.write(sessionsFile, b.sessions)
}

func (b *FileBackend) SaveFiles(_ context.Context, userID models.UserID, files []models.FileRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[userID.String()] = append([]models.FileRecord{}, files...)
	return b.write(filesFile, b.files)
}

func (b *FileBackend) DeleteFiles(_ context.Context, userID models.UserID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[userID.String()]; !ok {
		return nil
	}
	delete(b.files, userID.String())
	return b.write(filesFile, b.files)
}

// LoadAll returns the documents read at construction plus any writes since.
// Entries whose key is not a user id are skipped with a warning.
func (b *FileBackend) LoadAll(_ context.Context) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := newSnapshot()
	for key, rec := range b.sessions {
		userID, err := models.ParseUserID(key)
		if err != nil {
			b.logger.Warn("skipping session with invalid user id", zap.String("key", key))
			continue
		}
		out.Credentials[userID] = rec
	}
	for key, files := range b.files {
		userID, err := models.ParseUserID(key)
		if err != nil {
			b.logger.Warn("skipping file list with invalid user id", zap.String("key", key))
			continue
		}
		list := make([]models.FileRecord, len(files))
		for i, f := range files {
			f.Position = i + 1
			list[i] = f
		}
		out.Files[userID] = list
	}

	return out, nil
}

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(b.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func (b *FileBackend) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(b.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	defer func() {
		// No-op once the rename has happened
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(b.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
