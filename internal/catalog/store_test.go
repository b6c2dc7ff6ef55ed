package catalog

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/postgres/pgtest"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LocalIDsAreNeverReused(t *testing.T) {
	pool := pgtest.Open(t)
	ctx := context.Background()
	s := &Store{DB: pool}

	p, err := s.CreateProduct(ctx, ProductInput{Title: "Mug", Variants: []VariantInput{
		{Name: "red", Price: d("5"), Cost: d("2"), Stock: 1},
		{Name: "blue", Price: d("4"), Cost: d("1"), Stock: 2},
	}})
	require.NoError(t, err)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, 1, p.Variants[0].LocalID)
	assert.Equal(t, 2, p.Variants[1].LocalID)
	assert.True(t, p.Price.Equal(d("4")))

	require.NoError(t, s.DeleteVariant(ctx, p.Variants[1].ID))
	v, err := s.AddVariant(ctx, p.ID, VariantInput{Name: "green", Price: d("6"), Cost: d("2")})
	require.NoError(t, err)
	assert.Equal(t, 3, v.LocalID)

	err = postgres.WithTx(ctx, pool, func(tx pgx.Tx) error {
		got, err := LockVariantByLocalID(ctx, tx, p.ID, 2)
		require.NoError(t, err)
		assert.Nil(t, got)
		got, err = LockVariantByLocalID(ctx, tx, p.ID, 3)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, v.ID, got.ID)
		return nil
	})
	require.NoError(t, err)

	reloaded, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.FromPrice.Equal(d("5")))
}

func TestStore_ListProductsLoadsVariants(t *testing.T) {
	pool := pgtest.Open(t)
	ctx := context.Background()
	s := &Store{DB: pool}

	up, _ := pgtest.SeedProduct(t, pool, "Cap", "10", pgtest.Variant{Name: "S", Price: "10", Cost: "3", Stock: 4})
	down, _ := pgtest.SeedProduct(t, pool, "Scarf", "20")
	require.NoError(t, s.SetStatus(ctx, down, StatusDown))

	all, err := s.ListProducts(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, up, all[0].ID)
	assert.Len(t, all[0].Variants, 1)
	assert.Empty(t, all[1].Variants)

	listed, err := s.ListProducts(ctx, true)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, up, listed[0].ID)

	assert.True(t, apperr.Is(s.SetStatus(ctx, 999, StatusUp), apperr.KindNotFound))
	_, err = s.GetProduct(ctx, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAddStock_ReturnsNewValue(t *testing.T) {
	pool := pgtest.Open(t)
	ctx := context.Background()
	pid, vids := pgtest.SeedProduct(t, pool, "Pen", "1", pgtest.Variant{Name: "black", Price: "1", Cost: "0.2", Stock: 3})

	err := postgres.WithTx(ctx, pool, func(tx pgx.Tx) error {
		v, err := LockVariantByLocalID(ctx, tx, pid, 1)
		require.NoError(t, err)
		require.NotNil(t, v)
		after, err := AddStock(ctx, tx, v.ID, 7)
		require.NoError(t, err)
		assert.Equal(t, 10, after)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, pgtest.Stock(t, pool, vids[0]))
}

func TestUpdateVariant_KeepsUnsentFields(t *testing.T) {
	pool := pgtest.Open(t)
	ctx := context.Background()
	s := &Store{DB: pool}
	pid, vids := pgtest.SeedProduct(t, pool, "Shirt", "20", pgtest.Variant{Name: "L", Price: "20", Cost: "8", Stock: 37})

	name := "XL"
	v, err := s.UpdateVariant(ctx, vids[0], VariantPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "XL", v.Name)
	assert.Equal(t, 37, v.Stock)
	assert.True(t, v.Price.Equal(d("20")))
	assert.True(t, v.Cost.Equal(d("8")))
	assert.Equal(t, 1, v.LocalID)
	assert.Equal(t, pid, v.ProductID)

	stock := 5
	v, err = s.UpdateVariant(ctx, vids[0], VariantPatch{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, "XL", v.Name)
	assert.Equal(t, 5, pgtest.Stock(t, pool, vids[0]))

	_, err = s.UpdateVariant(ctx, 999999, VariantPatch{Stock: &stock})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
