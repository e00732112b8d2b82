//go:build integration

package sqlbridge

import (
	"context"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tokenauth_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgresDrivers(t *testing.T) {
	dsn := startPostgres(t)

	for i, driver := range []string{"pgx", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			b, err := Open(ctx, driver, dsn, PoolConfig{MaxOpenConns: 4})
			require.NoError(t, err)
			defer b.Close()

			table := fmt.Sprintf("items_%d", i)
			ddl := fmt.Sprintf(`CREATE TABLE %s (id %s, name VARCHAR(64) NOT NULL, created_at BIGINT NOT NULL)`,
				table, b.Dialect().AutoIncrementKey())
			index := fmt.Sprintf(`CREATE UNIQUE INDEX %s_name_uindex ON %s (name)`, table, table)

			assert.False(t, b.TableExists(ctx, table))
			require.NoError(t, b.CreateTable(ctx, ddl, index))
			assert.True(t, b.TableExists(ctx, table))

			now := time.Now()
			key, err := b.Insert(ctx,
				fmt.Sprintf(`INSERT INTO %s (name, created_at) VALUES (?, ?) RETURNING id`, table),
				Text("alpha"), Timestamp(now))
			require.NoError(t, err)
			require.True(t, key.Valid)

			_, err = b.Insert(ctx,
				fmt.Sprintf(`INSERT INTO %s (name, created_at) VALUES (?, ?) RETURNING id`, table),
				Text("alpha"), Timestamp(now))
			assert.ErrorIs(t, err, ErrConflict)

			doc, err := b.QueryOne(ctx, fmt.Sprintf(`SELECT id, name, created_at FROM %s WHERE id = ?`, table), Int(key.Int64))
			require.NoError(t, err)
			created, err := doc.Int("created_at")
			require.NoError(t, err)
			assert.Equal(t, now.UnixMilli(), created)

			n, err := b.Update(ctx, fmt.Sprintf(`UPDATE %s SET name = ? WHERE id = ?`, table), Text("beta"), Int(key.Int64))
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			_, err = b.QueryOne(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, table), Text("alpha"))
			assert.ErrorIs(t, err, ErrNoRows)
		})
	}
}
