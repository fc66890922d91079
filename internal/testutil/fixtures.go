package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/parsascontentcorner/telegramdrive/internal/config"
	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

// DriveFileScope is the only scope the bot requests.
const DriveFileScope = "https://www.googleapis.com/auth/drive.file"

// GenerateTestConfig creates a valid configuration for unit tests.
// Network endpoints point at production URLs; tests override them with mock servers.
func GenerateTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:         "8080",
			Host:         "127.0.0.1",
			RedirectHost: "bot.example.com",
			Env:          "test",
		},
		Telegram: config.TelegramConfig{
			Token:       "123456:test-telegram-token",
			PollTimeout: 60,
		},
		Google: config.GoogleConfig{
			ClientID:          "test_client_id.apps.googleusercontent.com",
			ClientSecret:      "test_client_secret",
			RedirectURI:       "https://bot.example.com/oauth2callback",
			Scopes:            []string{DriveFileScope},
			DriveAPIURL:       "https://www.googleapis.com/drive/v3",
			DriveUploadURL:    "https://www.googleapis.com/upload/drive/v3",
			RequestsPerSecond: 50,
		},
		Storage: config.StorageConfig{
			Backend: config.BackendMemory,
		},
		Security: config.SecurityConfig{
			TokenEncryptionKey: GenerateEncryptionKey(),
			StateExpiryMinutes: 10,
			StateMode:          config.StateModeRandom,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}

// GenerateEncryptionKey creates a random 32-byte AES-256 key.
func GenerateEncryptionKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("failed to generate encryption key: %v", err))
	}
	return key
}

// GenerateEncryptionKeyHex creates a random hex-encoded 32-byte key.
func GenerateEncryptionKeyHex() string {
	return hex.EncodeToString(GenerateEncryptionKey())
}

// GenerateCredential creates a credential record for tokenURL that expires at expiry.
func GenerateCredential(tokenURL string, expiry time.Time) models.CredentialRecord {
	return models.CredentialRecord{
		AccessToken:   "mock_access_token_123",
		RefreshToken:  "mock_refresh_token_456",
		TokenType:     "Bearer",
		TokenEndpoint: tokenURL,
		ClientID:      "test_client_id.apps.googleusercontent.com",
		ClientSecret:  "test_client_secret",
		Scopes:        []string{DriveFileScope},
		Expiry:        expiry,
	}
}

// GenerateExpiredCredential creates a credential whose access token expired an hour ago.
func GenerateExpiredCredential(tokenURL string) models.CredentialRecord {
	return GenerateCredential(tokenURL, time.Now().Add(-time.Hour))
}

// GenerateFileRecords creates n file records named file_1.txt .. file_n.txt.
func GenerateFileRecords(n int) []models.FileRecord {
	records := make([]models.FileRecord, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, models.FileRecord{
			RemoteID:    fmt.Sprintf("remote_%d", i),
			DisplayName: fmt.Sprintf("file_%d.txt", i),
			MimeType:    "text/plain",
		})
	}
	return records
}
