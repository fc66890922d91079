package session

import (
	"context"
	"io"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

// Transport is the chat side: replies, documents and file downloads by handle
type Transport interface {
	SendText(ctx context.Context, userID models.UserID, text string) error
	SendDocument(ctx context.Context, userID models.UserID, name string, content io.Reader) error
	Download(ctx context.Context, handle string, w io.Writer) error
}

// StorageProvider is the remote file store reached with a user's credential
type StorageProvider interface {
	CreateFile(ctx context.Context, cred models.CredentialRecord, name, mimeType string, content io.Reader) (string, error)
	GetFile(ctx context.Context, cred models.CredentialRecord, fileID string, w io.Writer) error
	DeleteFile(ctx context.Context, cred models.CredentialRecord, fileID string) error
}

// Credentials holds per-user credentials; Get refreshes expired ones
type Credentials interface {
	Get(ctx context.Context, userID models.UserID) (models.CredentialRecord, error)
	Has(userID models.UserID) bool
	Put(userID models.UserID, rec models.CredentialRecord)
	Remove(userID models.UserID) bool
	OnRemove(hook func(models.UserID))
}

// LoginFlow hands out authorization URLs and redeems codes
type LoginFlow interface {
	BeginLogin(ctx context.Context, userID models.UserID) (string, error)
	CompleteLogin(ctx context.Context, code, state string) (models.UserID, models.CredentialRecord, error)
	CompleteLoginForUser(ctx context.Context, userID models.UserID, code string) (models.CredentialRecord, error)
	Cancel(userID models.UserID)
}
