package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/internal/session"
)

func commandMessage(text, command string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: 99},
		Chat: &tgbotapi.Chat{ID: 99, Type: "private"},
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(command)},
		},
	}
}

func TestToUpdate_Command(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		command string
		want    string
		args    []string
	}{
		{"no args", "/list", "/list", "list", []string{}},
		{"one arg", "/get 2", "/get", "get", []string{"2"}},
		{"bot suffix", "/delete@drive_test_bot 3", "/delete@drive_test_bot", "delete", []string{"3"}},
		{"extra spaces", "/auth   4/0AbCd  ", "/auth", "auth", []string{"4/0AbCd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, ok := ToUpdate(commandMessage(tt.text, tt.command))
			require.True(t, ok)
			assert.Equal(t, session.KindCommand, u.Kind)
			assert.Equal(t, models.UserID(99), u.UserID)
			assert.Equal(t, tt.want, u.Command)
			assert.Equal(t, tt.args, u.Args)
		})
	}
}

func TestToUpdate_Document(t *testing.T) {
	msg := &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 5},
		Caption: "renamed.pdf",
		Document: &tgbotapi.Document{
			FileID:   "doc_handle",
			FileName: "report.pdf",
			MimeType: "application/pdf",
		},
	}

	u, ok := ToUpdate(msg)

	require.True(t, ok)
	assert.Equal(t, session.KindFile, u.Kind)
	assert.Equal(t, "doc_handle", u.FileHandle)
	assert.Equal(t, "report.pdf", u.FileName)
	assert.Equal(t, "application/pdf", u.MimeType)
	assert.Equal(t, "renamed.pdf", u.Caption)
}

func TestToUpdate_DocumentDefaults(t *testing.T) {
	msg := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 5},
		Document: &tgbotapi.Document{FileID: "doc_handle"},
	}

	u, ok := ToUpdate(msg)

	require.True(t, ok)
	assert.Equal(t, "doc_handle", u.FileName)
	assert.Equal(t, models.DefaultMimeType, u.MimeType)
}

func TestToUpdate_PhotoUsesLargestSize(t *testing.T) {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 5},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 60},
			{FileID: "large", Width: 1280, Height: 960},
			{FileID: "medium", Width: 320, Height: 240},
		},
	}

	u, ok := ToUpdate(msg)

	require.True(t, ok)
	assert.Equal(t, session.KindFile, u.Kind)
	assert.Equal(t, "large", u.FileHandle)
	assert.Equal(t, "photo_large.jpg", u.FileName)
	assert.Equal(t, models.PhotoMimeType, u.MimeType)
}

func TestToUpdate_Text(t *testing.T) {
	u, ok := ToUpdate(&tgbotapi.Message{From: &tgbotapi.User{ID: 5}, Text: "notes.txt"})

	require.True(t, ok)
	assert.Equal(t, session.KindText, u.Kind)
	assert.Equal(t, "notes.txt", u.Text)
}

func TestToUpdate_Ignored(t *testing.T) {
	tests := []struct {
		name string
		msg  *tgbotapi.Message
	}{
		{"nil", nil},
		{"no sender", &tgbotapi.Message{Text: "hi"}},
		{"sticker", &tgbotapi.Message{From: &tgbotapi.User{ID: 5}, Sticker: &tgbotapi.Sticker{FileID: "s"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ToUpdate(tt.msg)
			assert.False(t, ok)
		})
	}
}
