// Package config provides application configuration management using environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// OAuth state modes
const (
	StateModeRandom = "random"
	StateModeUserID = "user_id"
)

const defaultDriveScope = "https://www.googleapis.com/auth/drive.file"

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Telegram TelegramConfig
	Google   GoogleConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds the OAuth callback listener configuration
type ServerConfig struct {
	Port         string
	Host         string
	RedirectHost string
	Env          string
}

// TelegramConfig holds chat transport configuration
type TelegramConfig struct {
	Token       string
	PollTimeout int
	Debug       bool
}

// GoogleConfig holds Google OAuth and Drive configuration
type GoogleConfig struct {
	ClientID          string
	ClientSecret      string
	RedirectURI       string
	Scopes            []string
	DriveAPIURL       string
	DriveUploadURL    string
	RequestsPerSecond int
}

// StorageConfig selects where session and file state is mirrored
type StorageConfig struct {
	Backend string
	Dir     string
	TempDir string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	TokenEncryptionKey []byte
	StateExpiryMinutes int
	StateMode          string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
// It optionally loads from a .env file if it exists
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Server = ServerConfig{
		Port:         getEnv("PORT", "8080"),
		Host:         getEnv("SERVER_HOST", "0.0.0.0"),
		RedirectHost: getEnv("REDIRECT_HOST", ""),
		Env:          getEnv("ENVIRONMENT", "development"),
	}

	pollTimeout, _ := strconv.Atoi(getEnv("TELEGRAM_POLL_TIMEOUT", "60"))
	debug, _ := strconv.ParseBool(getEnv("TELEGRAM_DEBUG", "false"))

	cfg.Telegram = TelegramConfig{
		Token:       getEnv("TELEGRAM_TOKEN", ""),
		PollTimeout: pollTimeout,
		Debug:       debug,
	}

	// An explicit redirect URI wins over the one derived from REDIRECT_HOST
	redirectURI := getEnv("GOOGLE_REDIRECT_URI", "")
	if redirectURI == "" && cfg.Server.RedirectHost != "" {
		redirectURI = fmt.Sprintf("https://%s/oauth2callback", cfg.Server.RedirectHost)
	}

	rps, _ := strconv.Atoi(getEnv("DRIVE_REQUESTS_PER_SECOND", "5"))

	cfg.Google = GoogleConfig{
		ClientID:          getEnv("GOOGLE_CLIENT_ID", ""),
		ClientSecret:      getEnv("GOOGLE_CLIENT_SECRET", ""),
		RedirectURI:       redirectURI,
		Scopes:            strings.Fields(getEnv("GOOGLE_SCOPES", defaultDriveScope)),
		DriveAPIURL:       getEnv("DRIVE_API_URL", "https://www.googleapis.com/drive/v3"),
		DriveUploadURL:    getEnv("DRIVE_UPLOAD_URL", "https://www.googleapis.com/upload/drive/v3"),
		RequestsPerSecond: rps,
	}

	cfg.Storage = StorageConfig{
		Backend: getEnv("STORE_BACKEND", BackendFile),
		Dir:     getEnv("STORE_DIR", "./data"),
		TempDir: getEnv("TEMP_DIR", os.TempDir()),
	}

	maxOpenConns, _ := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "10"))
	maxIdleConns, _ := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "2"))

	cfg.Database = DatabaseConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnv("DB_PORT", "5432"),
		User:         getEnv("DB_USER", "telegramdrive"),
		Password:     getEnv("DB_PASSWORD", ""),
		Name:         getEnv("DB_NAME", "telegramdrive_db"),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: maxOpenConns,
		MaxIdleConns: maxIdleConns,
	}

	stateExpiryMinutes, _ := strconv.Atoi(getEnv("STATE_EXPIRY_MINUTES", "10"))

	encryptionKey, err := hex.DecodeString(getEnv("TOKEN_ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_ENCRYPTION_KEY: must be a hex-encoded string: %w", err)
	}

	cfg.Security = SecurityConfig{
		TokenEncryptionKey: encryptionKey,
		StateExpiryMinutes: stateExpiryMinutes,
		StateMode:          getEnv("OAUTH_STATE_MODE", StateModeRandom),
	}

	cfg.Logging = LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.Telegram.PollTimeout <= 0 {
		return fmt.Errorf("TELEGRAM_POLL_TIMEOUT must be positive")
	}

	if c.Google.ClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}
	if c.Google.ClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET is required")
	}
	if c.Google.RedirectURI == "" {
		return fmt.Errorf("GOOGLE_REDIRECT_URI or REDIRECT_HOST is required")
	}
	if len(c.Google.Scopes) == 0 {
		return fmt.Errorf("GOOGLE_SCOPES must not be empty")
	}
	if c.Google.RequestsPerSecond <= 0 {
		return fmt.Errorf("DRIVE_REQUESTS_PER_SECOND must be positive")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Security.StateExpiryMinutes <= 0 {
		return fmt.Errorf("STATE_EXPIRY_MINUTES must be positive")
	}
	if c.Security.StateMode != StateModeRandom && c.Security.StateMode != StateModeUserID {
		return fmt.Errorf("OAUTH_STATE_MODE must be one of: random, user_id")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("STORE_DIR is required for the file backend")
		}
	case BackendPostgres:
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if len(c.Security.TokenEncryptionKey) != 32 {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be exactly 32 bytes (64 hex characters) for AES-256")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: memory, file, postgres")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}

	return nil
}

// ListenAddr returns the host:port the callback server binds to
func (c *ServerConfig) ListenAddr() string {
	return c.Host + ":" + c.Port
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
