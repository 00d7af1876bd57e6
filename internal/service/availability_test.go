package service_test

import (
	"context"
	"testing"

	"lab-inventory-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityGate_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("Mixed conditions in one call", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.gate.Reserve(ctx, []string{"a", "b", "c"}))

		err := f.gate.Release(ctx, map[string]domain.ItemCondition{
			"a": domain.ConditionGood,
			"b": domain.ConditionHeavyDamage,
			"c": "",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ConditionGood, f.item(t, "a").Condition)
		assert.Equal(t, domain.ConditionHeavyDamage, f.item(t, "b").Condition)
		assert.Equal(t, domain.ConditionGood, f.item(t, "c").Condition)
		for _, id := range []string{"a", "b", "c"} {
			assert.Equal(t, domain.ItemStatusAvailable, f.item(t, id).Status)
		}
	})

	t.Run("Unknown item leaves every item reserved", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.gate.Reserve(ctx, []string{"a", "b"}))

		err := f.gate.Release(ctx, map[string]domain.ItemCondition{
			"a":     domain.ConditionLightDamage,
			"b":     domain.ConditionHeavyDamage,
			"ghost": domain.ConditionGood,
		})
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, []string{"ghost"}, nf.IDs)

		for _, id := range []string{"a", "b"} {
			it := f.item(t, id)
			assert.Equal(t, domain.ItemStatusBorrowed, it.Status)
			assert.Equal(t, domain.ConditionGood, it.Condition)
		}
	})

	t.Run("Invalid condition is rejected up front", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.gate.Reserve(ctx, []string{"a"}))

		err := f.gate.Release(ctx, map[string]domain.ItemCondition{"a": "Hilang"})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, domain.ItemStatusBorrowed, f.item(t, "a").Status)
	})
}
