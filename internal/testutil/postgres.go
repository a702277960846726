// Package testutil starts disposable PostgreSQL databases for save-store tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/kater/internal/storage/postgres"
)

const postgresImage = "postgres:16-alpine"

// StartPostgres runs an empty PostgreSQL container for the duration of t and
// returns its connection string. Skips the test under -short.
//
// Precondition: Docker must be available.
func StartPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in -short mode")
	}
	ctx := context.Background()
	start := time.Now()

	ctr, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("kater"),
		tcpostgres.WithUsername("kater"),
		tcpostgres.WithPassword("kater"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("reading postgres connection string: %v", err)
	}
	t.Logf("postgres container started [%s]", time.Since(start))
	return dsn
}

// NewSaveRepository starts PostgreSQL, migrates the saves schema and opens a
// repository on it. It also returns the DSN for migration tests.
//
// Postcondition: The repository is closed when t ends.
func NewSaveRepository(t *testing.T) (*postgres.SaveRepository, string) {
	t.Helper()
	dsn := StartPostgres(t)

	res, err := postgres.Migrate(dsn, "up", 0)
	if err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("saves schema at version %d", res.Version)

	repo, err := postgres.OpenDSN(context.Background(), dsn)
	if err != nil {
		t.Fatalf("opening save repository: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo, dsn
}
