package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jordansmalls/cs/internal/config"
	"github.com/jordansmalls/cs/internal/domain"
	"github.com/jordansmalls/cs/internal/lock"
)

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	res, err := Open(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "cs.db"),
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, res.Close()) })

	require.NotNil(t, res.Migrator)
	require.NoError(t, res.Migrate(ctx, lock.NewMemoryLocker()))
	require.NoError(t, res.Migrate(ctx, nil))
	require.NoError(t, res.Database.Health(ctx))

	u := domain.NewUser("alice", "alice@example.com", "hash")
	require.NoError(t, res.Repos.User.Create(ctx, u))
	got, err := res.Repos.User.GetByLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	res, err := Open(ctx, config.DatabaseConfig{Driver: "memory"}, zerolog.Nop())
	require.NoError(t, err)

	require.Nil(t, res.Migrator)
	require.NoError(t, res.Migrate(ctx, nil))
	require.NoError(t, res.Database.Ping(ctx))
	require.NoError(t, res.Close())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"}, zerolog.Nop())
	require.Error(t, err)
}
