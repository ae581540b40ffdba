package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/internal/config"
)

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "relay",
		Password: "s3cret",
		Database: "relay",
		SSLMode:  "disable",
	}
}

func TestDSN(t *testing.T) {
	t.Parallel()

	dsn := DSN(testPostgresConfig())
	assert.True(t, strings.HasPrefix(dsn, "postgres://"), dsn)
	assert.Contains(t, dsn, "relay:s3cret@localhost:5432/relay")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestDSN_NoPassword(t *testing.T) {
	t.Parallel()

	cfg := testPostgresConfig()
	cfg.Password = ""
	dsn := DSN(cfg)
	assert.Contains(t, dsn, "relay@localhost:5432")
	assert.NotContains(t, dsn, ":@")
}

func TestMigrateDSNUsesRegisteredDriverScheme(t *testing.T) {
	t.Parallel()

	cfg := testPostgresConfig()
	dsn := migrateDSN(cfg)
	require.True(t, strings.HasPrefix(dsn, "pgx5://"), dsn)
	assert.Equal(t, strings.TrimPrefix(DSN(cfg), "postgres://"), strings.TrimPrefix(dsn, "pgx5://"))
}
