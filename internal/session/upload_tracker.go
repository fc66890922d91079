package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

// UploadTracker keeps at most one file per user waiting for a name.
// A user is either idle (no entry) or awaiting a name (one entry).
type UploadTracker struct {
	mu      sync.Mutex
	pending map[models.UserID]models.PendingUpload
	now     func() time.Time
}

// NewUploadTracker creates an empty tracker
func NewUploadTracker() *UploadTracker {
	return &UploadTracker{
		pending: make(map[models.UserID]models.PendingUpload),
		now:     time.Now,
	}
}

// FileReceived registers an incoming file. With a non-empty caption it returns the
// upload ready to go (immediate is true) and leaves the tracker untouched. Otherwise
// the file waits for a name, replacing whatever file was waiting before.
func (ut *UploadTracker) FileReceived(userID models.UserID, handle, originalName, mimeType, caption string) (pending models.PendingUpload, immediate bool) {
	if mimeType == "" {
		mimeType = models.DefaultMimeType
	}

	pending = models.PendingUpload{
		ID:           uuid.New(),
		UserID:       userID,
		FileHandle:   handle,
		OriginalName: originalName,
		MimeType:     mimeType,
		CreatedAt:    ut.now(),
	}

	if name := strings.TrimSpace(caption); name != "" {
		pending.DesiredName = name
		return pending, true
	}

	ut.mu.Lock()
	ut.pending[userID] = pending
	ut.mu.Unlock()

	return pending, false
}

// NameReceived resolves the waiting file with name. An empty name returns
// ErrEmptyName and keeps the file waiting.
func (ut *UploadTracker) NameReceived(userID models.UserID, name string) (models.PendingUpload, error) {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	pending, ok := ut.pending[userID]
	if !ok {
		return models.PendingUpload{}, ErrNoPendingUpload
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return models.PendingUpload{}, ErrEmptyName
	}

	delete(ut.pending, userID)
	pending.DesiredName = name
	return pending, nil
}

// Cancel forgets the waiting file of userID, if any
func (ut *UploadTracker) Cancel(userID models.UserID) {
	ut.mu.Lock()
	defer ut.mu.Unlock()
	delete(ut.pending, userID)
}

// Pending returns the waiting file of userID
func (ut *UploadTracker) Pending(userID models.UserID) (models.PendingUpload, bool) {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	pending, ok := ut.pending[userID]
	return pending, ok
}
