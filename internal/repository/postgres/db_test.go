package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jordansmalls/cs/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:          "postgres",
		Host:            "db.internal",
		Port:            5433,
		User:            "cs",
		Password:        "secret",
		Database:        "cs",
		SSLMode:         "disable",
		MaxOpenConns:    12,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute,
	}

	pc, err := poolConfig(cfg, zerolog.Nop().Level(zerolog.InfoLevel))
	require.NoError(t, err)
	require.Equal(t, "db.internal", pc.ConnConfig.Host)
	require.Equal(t, uint16(5433), pc.ConnConfig.Port)
	require.Equal(t, int32(12), pc.MaxConns)
	require.Equal(t, int32(2), pc.MinConns)
	require.Equal(t, time.Hour, pc.MaxConnLifetime)
	require.Equal(t, connectTimeout, pc.ConnConfig.ConnectTimeout)
	require.Nil(t, pc.ConnConfig.Tracer)

	pc, err = poolConfig(cfg, zerolog.Nop().Level(zerolog.DebugLevel))
	require.NoError(t, err)
	require.IsType(t, &tracelog.TraceLog{}, pc.ConnConfig.Tracer)
}

func TestPoolConfig_KeepsDriverDefaults(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432, User: "cs", Password: "pw", Database: "cs", SSLMode: "disable"}

	pc, err := poolConfig(cfg, zerolog.Nop().Level(zerolog.InfoLevel))
	require.NoError(t, err)
	require.Positive(t, pc.MaxConns)
}
