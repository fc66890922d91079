package session

import "github.com/parsascontentcorner/telegramdrive/internal/models"

// UpdateKind tells what a chat update carries
type UpdateKind int

const (
	KindCommand UpdateKind = iota
	KindFile
	KindText
)

// String returns the kind name used in logs
func (k UpdateKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindFile:
		return "file"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Update is one inbound chat event, already stripped of transport details
type Update struct {
	UserID models.UserID
	Kind   UpdateKind

	// KindCommand
	Command string
	Args    []string

	// KindFile
	FileHandle string
	FileName   string
	MimeType   string
	Caption    string

	// KindText
	Text string
}
