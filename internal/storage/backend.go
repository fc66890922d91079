// Package storage persists credentials and file lists behind the in-memory stores.
// Writes go through a Mirror, which batches them in the background; a Backend only
// sees the latest state of each user.
package storage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/auth"
	"github.com/parsascontentcorner/telegramdrive/internal/config"
	"github.com/parsascontentcorner/telegramdrive/internal/database"
	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

// Snapshot is everything a backend holds, read once at startup
type Snapshot struct {
	Credentials map[models.UserID]models.CredentialRecord
	Files       map[models.UserID][]models.FileRecord
}

func newSnapshot() Snapshot {
	return Snapshot{
		Credentials: make(map[models.UserID]models.CredentialRecord),
		Files:       make(map[models.UserID][]models.FileRecord),
	}
}

// Backend is a durable home for per-user state
type Backend interface {
	SaveCredential(ctx context.Context, userID models.UserID, rec models.CredentialRecord) error
	DeleteCredential(ctx context.Context, userID models.UserID) error
	SaveFiles(ctx context.Context, userID models.UserID, files []models.FileRecord) error
	DeleteFiles(ctx context.Context, userID models.UserID) error
	LoadAll(ctx context.Context) (Snapshot, error)
	Close() error
}

// NewBackend builds the backend selected by STORE_BACKEND
func NewBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemoryBackend(), nil

	case config.BackendFile:
		return NewFileBackend(cfg.Storage.Dir, logger)

	case config.BackendPostgres:
		cipher, err := auth.NewTokenCipher(cfg.Security.TokenEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create token cipher: %w", err)
		}

		db, err := database.NewDB(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(); err != nil {
			_ = db.Close()
			return nil, err
		}

		return NewPostgresBackend(db, cipher, logger), nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// MemoryBackend keeps state for the life of the process only
type MemoryBackend struct {
	mu    sync.Mutex
	state Snapshot
}

// NewMemoryBackend creates an empty MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{state: newSnapshot()}
}

func (b *MemoryBackend) SaveCredential(_ context.Context, userID models.UserID, rec models.CredentialRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Credentials[userID] = rec
	return nil
}

func (b *MemoryBackend) DeleteCredential(_ context.Context, userID models.UserID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state.Credentials, userID)
	return nil
}

func (b *MemoryBackend) SaveFiles(_ context.Context, userID models.UserID, files []models.FileRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Files[userID] = append([]models.FileRecord(nil), files...)
	return nil
}

func (b *MemoryBackend) DeleteFiles(_ context.Context, userID models.UserID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state.Files, userID)
	return nil
}

// LoadAll returns a copy of the current state
func (b *MemoryBackend) LoadAll(_ context.Context) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := newSnapshot()
	for id, rec := range b.state.Credentials {
		out.Credentials[id] = rec
	}
	for id, files := range b.state.Files {
		out.Files[id] = append([]models.FileRecord(nil), files...)
	}
	return out, nil
}

func (b *MemoryBackend) Close() error { return nil }
