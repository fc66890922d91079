package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/internal/session"
)

// ToUpdate converts a Telegram message into a session update.
// It reports false for messages the bot does not act on (stickers, service messages).
func ToUpdate(msg *tgbotapi.Message) (session.Update, bool) {
	if msg == nil || msg.From == nil {
		return session.Update{}, false
	}
	userID := models.UserID(msg.From.ID)

	switch {
	case msg.IsCommand():
		return session.Update{
			UserID:  userID,
			Kind:    session.KindCommand,
			Command: msg.Command(),
			Args:    strings.Fields(msg.CommandArguments()),
		}, true

	case msg.Document != nil:
		name := msg.Document.FileName
		if name == "" {
			name = msg.Document.FileID
		}
		mimeType := msg.Document.MimeType
		if mimeType == "" {
			mimeType = models.DefaultMimeType
		}
		return session.Update{
			UserID:     userID,
			Kind:       session.KindFile,
			FileHandle: msg.Document.FileID,
			FileName:   name,
			MimeType:   mimeType,
			Caption:    msg.Caption,
		}, true

	case len(msg.Photo) > 0:
		photo := largestPhoto(msg.Photo)
		return session.Update{
			UserID:     userID,
			Kind:       session.KindFile,
			FileHandle: photo.FileID,
			FileName:   models.PhotoName(photo.FileID),
			MimeType:   models.PhotoMimeType,
			Caption:    msg.Caption,
		}, true

	case msg.Text != "":
		return session.Update{
			UserID: userID,
			Kind:   session.KindText,
			Text:   msg.Text,
		}, true
	}

	return session.Update{}, false
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}
