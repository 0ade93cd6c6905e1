package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyEffects(t *testing.T) {
	require.InDelta(t, 70.0, Apply(100, EffectStockOut, 30), 0.0001)
	require.InDelta(t, 70.0, Apply(50, EffectStockIn, 20), 0.0001)
	require.InDelta(t, 7.0, Apply(10, EffectAdjustment, -3), 0.0001)
	require.InDelta(t, 13.0, Apply(10, EffectAdjustment, 3), 0.0001)
}

func TestReverseIsExactInverse(t *testing.T) {
	cases := []struct {
		effect    Effect
		current   float64
		magnitude float64
	}{
		{EffectStockOut, 100, 30},
		{EffectStockIn, 50, 20},
		{EffectAdjustment, 10, -3},
		{EffectAdjustment, 10, 7},
		{EffectStockOut, 0, 5},
	}
	for _, tc := range cases {
		applied := Apply(tc.current, tc.effect, tc.magnitude)
		require.InDelta(t, tc.current, Reverse(applied, tc.effect, tc.magnitude), 0.0001)
	}
}

func TestEditDeltaScenarios(t *testing.T) {
	// Sale edited from 30 to 10 on a variant that sat at 70 after the sale.
	require.InDelta(t, 90.0, EditDelta(70, EffectStockOut, 30, 10), 0.0001)
	// Stock addition edited from 20 to 25 on a variant at 70 after the receipt.
	require.InDelta(t, 75.0, EditDelta(70, EffectStockIn, 20, 25), 0.0001)
}

func TestEditDeltaNoOp(t *testing.T) {
	require.InDelta(t, 70.0, EditDelta(70, EffectStockOut, 30, 30), 0.0001)
	require.InDelta(t, 70.0, EditDelta(70, EffectStockIn, 20, 20), 0.0001)
}

func TestProjectorNeverClamps(t *testing.T) {
	require.InDelta(t, -5.0, Apply(10, EffectStockOut, 15), 0.0001)
	require.InDelta(t, -2.0, Apply(1, EffectAdjustment, -3), 0.0001)
}
