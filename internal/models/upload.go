package models

import (
	"time"

	"github.com/google/uuid"
)

// Default names and types for incoming chat attachments
const (
	DefaultMimeType = "application/octet-stream"
	PhotoMimeType   = "image/jpeg"
)

// PendingUpload is a received file waiting for the user to supply a name
type PendingUpload struct {
	ID           uuid.UUID `json:"id"`
	UserID       UserID    `json:"user_id"`
	FileHandle   string    `json:"file_handle"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	DesiredName  string    `json:"desired_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileRecord is one uploaded file in a user's list.
// Position is 1-based, filled in when listing, and shifts after a deletion.
type FileRecord struct {
	RemoteID    string `json:"id"`
	DisplayName string `json:"name"`
	MimeType    string `json:"mime_type"`
	Position    int    `json:"-"`
}

// PhotoName is the display name given to photos, which carry no file name of their own
func PhotoName(fileHandle string) string {
	return "photo_" + fileHandle + ".jpg"
}
