package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/config"
	"github.com/parsascontentcorner/telegramdrive/internal/database"
)

const postgresImage = "postgres:15-alpine"

// StartPostgres runs a throwaway PostgreSQL container and returns a config pointing at it.
// The returned func terminates the container.
func StartPostgres(ctx context.Context) (*config.DatabaseConfig, func(), error) {
	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(postgresImage),
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			// Postgres logs readiness twice: once for the init run, once for the real server
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	terminate := func() { _ = pgContainer.Terminate(ctx) }

	host, err := pgContainer.Host(ctx)
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mappedPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	return &config.DatabaseConfig{
		Host:         host,
		Port:         mappedPort.Port(),
		User:         "testuser",
		Password:     "testpass",
		Name:         "testdb",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}, terminate, nil
}

// SetupTestDB starts a container, connects and applies the embedded migrations.
//
// Usage:
//
//	db, cleanup, err := testutil.SetupTestDB(ctx)
//	require.NoError(t, err)
//	defer cleanup()
func SetupTestDB(ctx context.Context) (*database.DB, func(), error) {
	cfg, terminate, err := StartPostgres(ctx)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.NewDB(ctx, cfg, zap.NewNop())
	if err != nil {
		terminate()
		return nil, nil, err
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		terminate()
		return nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
		terminate()
	}
	return db, cleanup, nil
}

// TruncateTables empties the credential and file tables between subtests
func TruncateTables(ctx context.Context, db *database.DB) error {
	if _, err := db.ExecContext(ctx, "TRUNCATE TABLE credentials, files"); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}
