//go:build integration

// Package containers starts throwaway backing services for integration
// tests. Containers live for the duration of one test and are cleaned up via
// t.Cleanup.
package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer is a running throwaway Postgres with a connected pool.
type PostgresContainer struct {
	URL  string
	Pool *pgxpool.Pool
}

// StartPostgres launches Postgres, applies the given schema statements, and
// registers cleanup on t.
func StartPostgres(t *testing.T, schemas ...string) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("fieldgate_test"),
		tcpostgres.WithUsername("fieldgate"),
		tcpostgres.WithPassword("fieldgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for _, schema := range schemas {
		_, err := pool.Exec(ctx, schema)
		require.NoError(t, err)
	}

	return &PostgresContainer{URL: url, Pool: pool}
}

// Truncate empties the given tables between tests.
func (c *PostgresContainer) Truncate(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := c.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
			return err
		}
	}
	return nil
}
