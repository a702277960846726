package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/kater/internal/storage"
	"github.com/cory-johannsen/kater/internal/storage/postgres"
	"github.com/cory-johannsen/kater/internal/testutil"
)

func TestOpen_RequiresMigratedSchema(t *testing.T) {
	dsn := testutil.StartPostgres(t)
	ctx := context.Background()

	_, err := postgres.OpenDSN(ctx, dsn)
	assert.ErrorIs(t, err, postgres.ErrSchemaMissing)

	_, err = postgres.Migrate(dsn, "up", 0)
	require.NoError(t, err)
	repo, err := postgres.OpenDSN(ctx, dsn)
	require.NoError(t, err)
	defer repo.Close()
	assert.NoError(t, repo.Ready(ctx, time.Second))
}

func TestReady_FailsAfterClose(t *testing.T) {
	dsn := testutil.StartPostgres(t)
	_, err := postgres.Migrate(dsn, "up", 0)
	require.NoError(t, err)
	repo, err := postgres.OpenDSN(context.Background(), dsn)
	require.NoError(t, err)

	repo.Close()
	assert.Error(t, repo.Ready(context.Background(), time.Second))
}

func TestOpenDSN_InvalidDSN(t *testing.T) {
	_, err := postgres.OpenDSN(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}

func TestSaveRepository_Roundtrip(t *testing.T) {
	repo, _ := testutil.NewSaveRepository(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := repo.Load(ctx, id)
	assert.ErrorIs(t, err, storage.ErrSaveNotFound)

	rec := []byte("95 100 0 1 1\nmining 1,1\nCopper Ore,copper_ore.png,1\n")
	require.NoError(t, repo.Save(ctx, id, rec))
	got, err := repo.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	info, err := repo.Info(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Revision)

	require.NoError(t, repo.Save(ctx, id, []byte("100 100 0 1 1\n\n")))
	info, err = repo.Info(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Revision)

	require.NoError(t, repo.Delete(ctx, id))
	assert.ErrorIs(t, repo.Delete(ctx, id), storage.ErrSaveNotFound)
}

func TestSaveRepository_BehindCache(t *testing.T) {
	repo, _ := testutil.NewSaveRepository(t)
	ctx := context.Background()
	cached := storage.NewCachedStore(repo, 4, 0)
	id := uuid.New()

	require.NoError(t, cached.Save(ctx, id, []byte("50 50 0 1 0\n\n")))
	got, err := cached.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "50 50 0 1 0\n\n", string(got))
}

func TestMigrate_DownThenUp(t *testing.T) {
	_, dsn := testutil.NewSaveRepository(t)
	res, err := postgres.Migrate(dsn, "up", 0)
	require.NoError(t, err)
	assert.True(t, res.NoChange)
	assert.Equal(t, uint(1), res.Version)

	_, err = postgres.Migrate(dsn, "down", 1)
	require.NoError(t, err)
	res, err = postgres.Migrate(dsn, "up", 0)
	require.NoError(t, err)
	assert.False(t, res.Dirty)
	assert.Equal(t, uint(1), res.Version)

	_, err = postgres.Migrate(dsn, "sideways", 0)
	assert.Error(t, err)
}

// Property: the last saved record is always the one loaded.
func TestPropertySaveLastWriteWins(t *testing.T) {
	repo, _ := testutil.NewSaveRepository(t)
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		id := uuid.New()
		records := rapid.SliceOfN(rapid.StringMatching(`[0-9]{1,3} [0-9]{1,3} 0 1 0`), 1, 5).Draw(rt, "records")
		for _, r := range records {
			if err := repo.Save(ctx, id, []byte(r)); err != nil {
				rt.Fatal(err)
			}
		}
		got, err := repo.Load(ctx, id)
		if err != nil {
			rt.Fatal(err)
		}
		if string(got) != records[len(records)-1] {
			rt.Fatalf("loaded %q, want %q", got, records[len(records)-1])
		}
	})
}
