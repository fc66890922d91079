// Package main is the entry point for the Telegram Drive bot.
// It runs the Telegram long-polling loop and the OAuth callback server side by side.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/auth"
	"github.com/parsascontentcorner/telegramdrive/internal/config"
	"github.com/parsascontentcorner/telegramdrive/internal/drive"
	"github.com/parsascontentcorner/telegramdrive/internal/oauth"
	"github.com/parsascontentcorner/telegramdrive/internal/ratelimit"
	"github.com/parsascontentcorner/telegramdrive/internal/session"
	"github.com/parsascontentcorner/telegramdrive/internal/storage"
	"github.com/parsascontentcorner/telegramdrive/internal/telegram"
	"github.com/parsascontentcorner/telegramdrive/internal/tempfile"
	"github.com/parsascontentcorner/telegramdrive/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		// Sync fails on non-syncable descriptors such as pipes and terminals
		_ = log.Sync()
	}()

	log.Info("starting Telegram Drive bot",
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("store_backend", cfg.Storage.Backend),
		zap.String("oauth_state_mode", cfg.Security.StateMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Restore persisted state before anything can change it
	backend, err := storage.NewBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open storage backend", zap.Error(err))
	}
	snapshot, err := backend.LoadAll(ctx)
	if err != nil {
		log.Warn("failed to load persisted state, starting empty", zap.Error(err))
	}
	mirror := storage.NewMirror(backend, log.With(logger.Component("storage")))

	// Auth components
	googleClient := auth.NewGoogleClient(cfg, log)
	stateManager := auth.NewStateManager(cfg.Security.StateExpiryMinutes, cfg.Security.StateMode, log)
	stateManager.StartCleanupJob(ctx, time.Minute)
	flow := auth.NewFlowCoordinator(googleClient, stateManager, log)

	tokenStore := auth.NewTokenStore(googleClient, log)
	tokenStore.Load(snapshot.Credentials)
	tokenStore.SetMirror(mirror)

	fileIndex := session.NewFileIndex()
	fileIndex.Load(snapshot.Files)
	fileIndex.SetMirror(mirror)

	log.Info("restored persisted state",
		zap.Int("credentials", len(snapshot.Credentials)),
		zap.Int("file_lists", len(snapshot.Files)),
	)

	// Drive client with per-operation rate limiting
	driveClient := drive.NewClient(cfg, log)
	driveClient.SetRateLimiter(ratelimit.NewRateLimiter(cfg.Google.RequestsPerSecond, log))

	temp, err := tempfile.NewDir(cfg.Storage.TempDir)
	if err != nil {
		log.Fatal("failed to prepare temp dir", zap.Error(err))
	}
	if n, err := temp.Sweep(time.Hour); err != nil {
		log.Warn("failed to sweep temp dir", zap.Error(err))
	} else if n > 0 {
		log.Info("removed stale temp files", zap.Int("count", n))
	}

	// Telegram transport
	bot, err := telegram.NewBot(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to Telegram", zap.Error(err))
	}

	orchestrator := session.NewOrchestrator(
		tokenStore,
		flow,
		session.NewUploadTracker(),
		fileIndex,
		bot,
		driveClient,
		temp,
		log,
	)
	dispatcher := telegram.NewDispatcher(orchestrator, log)

	// OAuth callback server
	httpServer := oauth.NewServer(oauth.NewHandlers(orchestrator, log), cfg.Server.ListenAddr(), log)

	botErrChan := make(chan error, 1)
	httpErrChan := make(chan error, 1)

	go func() {
		if err := bot.Run(ctx, dispatcher); err != nil {
			botErrChan <- err
		}
	}()

	go func() {
		if err := httpServer.Serve(); err != nil {
			httpErrChan <- err
		}
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-botErrChan:
		log.Error("Telegram loop error", zap.Error(err))
	case err := <-httpErrChan:
		log.Error("HTTP server error", zap.Error(err))
	case sig := <-sigChan:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	// Graceful shutdown: stop intake, drain queued updates, stop HTTP, then flush state
	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to drain queued updates", zap.Error(err))
	}

	// Callbacks still in flight may install credentials, so HTTP stops before the mirror
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server gracefully", zap.Error(err))
	}

	if err := mirror.Close(shutdownCtx); err != nil {
		log.Error("failed to flush persisted state", zap.Error(err))
	}

	log.Info("shutdown complete")
}
