package settings

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRules_Validate(t *testing.T) {
	assert.NoError(t, OrderRules{AutoCancelHours: 24}.Validate())
	assert.True(t, apperr.Is(OrderRules{AutoCancelHours: 0}.Validate(), apperr.KindValidation))
	assert.True(t, apperr.Is(OrderRules{AutoCancelHours: 10000}.Validate(), apperr.KindValidation))
}

func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("on", false))
	assert.False(t, parseBool("0", true))
	assert.True(t, parseBool("garbage", true))
}

func TestStore_OrderRulesDefaultsAndRoundTrip(t *testing.T) {
	pool := pgtest.Open(t)
	ctx := context.Background()
	s := &Store{DB: pool, Defaults: OrderRules{AutoCancelEnabled: true, AutoCancelHours: 24}}

	rules, err := s.OrderRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, OrderRules{AutoCancelEnabled: true, AutoCancelHours: 24}, rules)

	require.NoError(t, s.SetOrderRules(ctx, OrderRules{AutoCancelEnabled: false, AutoCancelHours: 6}))
	rules, err = s.OrderRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, OrderRules{AutoCancelEnabled: false, AutoCancelHours: 6}, rules)

	require.NoError(t, s.Set(ctx, KeyAutoCancelHours, "not-a-number"))
	rules, err = s.OrderRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 24, rules.AutoCancelHours)
}
