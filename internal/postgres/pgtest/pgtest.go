// Package pgtest opens the integration database used by package tests.
// Tests are skipped unless TEST_POSTGRES_DSN points at a disposable database.
// Every test that opens it holds a session advisory lock until cleanup, so
// packages run by `go test ./...` in parallel take turns on the shared data.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// lockKey is an arbitrary constant shared by every package's tests.
const lockKey = 0x73746f7265

func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	hold(t, dsn)

	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE order_items, orders, cart_items, product_variants, products, users, settings RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

// hold blocks until this test owns the database. The lock lives on its own
// connection and is released when the test's cleanup closes it.
func hold(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, int64(lockKey))
	if err != nil {
		_ = conn.Close(ctx)
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, int64(lockKey))
		_ = conn.Close(context.Background())
	})
}

type Variant struct {
	Name  string
	Price string
	Cost  string
	Stock int
}

// SeedProduct inserts an "up" product with variants numbered 1..n and returns
// the product id followed by the variant ids.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, title, price string, variants ...Variant) (int64, []int64) {
	t.Helper()
	ctx := context.Background()
	var pid int64
	err := pool.QueryRow(ctx, `
		INSERT INTO products(title, price, cost, status, next_local_id)
		VALUES ($1, $2, $2, 'up', $3) RETURNING id`,
		title, decimal.RequireFromString(price), len(variants)+1).Scan(&pid)
	require.NoError(t, err)

	ids := make([]int64, 0, len(variants))
	for i, v := range variants {
		var vid int64
		err := pool.QueryRow(ctx, `
			INSERT INTO product_variants(product_id, local_id, name, price, cost, sort_order, stock)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			pid, i+1, v.Name, decimal.RequireFromString(v.Price), decimal.RequireFromString(v.Cost), i, v.Stock).Scan(&vid)
		require.NoError(t, err)
		ids = append(ids, vid)
	}
	return pid, ids
}

func SeedUser(t *testing.T, pool *pgxpool.Pool, email string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO users(email) VALUES ($1) RETURNING id`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

func Stock(t *testing.T, pool *pgxpool.Pool, variantID int64) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM product_variants WHERE id=$1`, variantID).Scan(&n))
	return n
}
