// Package telegram connects the bot to the Telegram Bot API: long polling for
// updates, replies, documents and file downloads.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/config"
	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

// Bot wraps the Bot API client and implements the session transport
type Bot struct {
	api          *tgbotapi.BotAPI
	httpClient   *http.Client
	fileEndpoint string
	pollTimeout  int
	logger       *zap.Logger
}

// NewBot authorizes against the production Bot API
func NewBot(cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	return NewBotWithEndpoint(cfg, tgbotapi.APIEndpoint, tgbotapi.FileEndpoint, logger)
}

// NewBotWithEndpoint authorizes against a custom Bot API (used for testing).
// Both endpoints are format strings taking the token and the method or file path.
func NewBotWithEndpoint(cfg *config.Config, apiEndpoint, fileEndpoint string, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Telegram.Token, apiEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	api.Debug = cfg.Telegram.Debug

	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	return &Bot{
		api:          api,
		httpClient:   &http.Client{},
		fileEndpoint: fileEndpoint,
		pollTimeout:  cfg.Telegram.PollTimeout,
		logger:       logger,
	}, nil
}

// SendText sends a plain text message to a private chat
func (b *Bot) SendText(_ context.Context, userID models.UserID, text string) error {
	msg := tgbotapi.NewMessage(int64(userID), text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendDocument sends content as a document named name
func (b *Bot) SendDocument(_ context.Context, userID models.UserID, name string, content io.Reader) error {
	doc := tgbotapi.NewDocument(int64(userID), tgbotapi.FileReader{Name: name, Reader: content})
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}
	return nil
}

// Download resolves a file handle and streams the file into w
func (b *Bot) Download(ctx context.Context, handle string, w io.Writer) error {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: handle})
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	fileURL := fmt.Sprintf(b.fileEndpoint, b.api.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			b.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read file content: %w", err)
	}
	return nil
}

// Run long-polls for updates and feeds them to the dispatcher until ctx is done
func (b *Bot) Run(ctx context.Context, dispatcher *Dispatcher) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram polling started", zap.Int("timeout_seconds", b.pollTimeout))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			converted, ok := ToUpdate(update.Message)
			if !ok {
				b.logger.Debug("ignoring unsupported message", zap.Int("message_id", update.Message.MessageID))
				continue
			}
			dispatcher.Dispatch(ctx, converted)
		}
	}
}
