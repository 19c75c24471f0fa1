//go:build integration

package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/store/postgres"
)

// setupTestContainer starts PostgreSQL, loads the db-sync fixture schema and
// seed, then applies the service's view migrations.
func setupTestContainer(t *testing.T) *postgres.DB {
	t.Helper()
	ctx := context.Background()

	_, currentFile, _, _ := runtime.Caller(0)
	pkgDir := filepath.Dir(currentFile)

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("test_cexplorer"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.WithInitScripts(
			filepath.Join(pkgDir, "testdata", "dbsync_schema.sql"),
			filepath.Join(pkgDir, "testdata", "dbsync_seed.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := postgres.New(postgres.Config{
		URL:             connStr,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, db.RunMigrations(ctx, filepath.Join(pkgDir, "migrations"), logger))

	return db
}

// testDB prefers TEST_DB_URL (an already seeded database) over a container.
func testDB(t *testing.T) *postgres.DB {
	t.Helper()
	if url := os.Getenv("TEST_DB_URL"); url != "" {
		db, err := postgres.New(postgres.Config{
			URL:             url,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Minute,
			ReadOnly:        true,
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return db
	}
	return setupTestContainer(t)
}
