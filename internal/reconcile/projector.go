package reconcile

import "github.com/stocklane/stocklane/internal/ledger"

// Effect identifies how a ledger event moves a variant's cached quantity.
type Effect string

const (
	// EffectStockIn adds the magnitude.
	EffectStockIn Effect = "stock_in"
	// EffectStockOut subtracts the magnitude.
	EffectStockOut Effect = "stock_out"
	// EffectAdjustment adds the already-signed magnitude.
	EffectAdjustment Effect = "adjustment"
)

// effectOf maps a wire change kind to its projection effect.
func effectOf(kind ledger.ChangeKind) Effect {
	if kind == ledger.ChangeStockOut {
		return EffectStockOut
	}
	return EffectStockIn
}

// Apply projects the quantity after the event lands. Pure; never clamps.
// Callers decide whether a negative result is acceptable.
func Apply(current float64, effect Effect, magnitude float64) float64 {
	switch effect {
	case EffectStockOut:
		return current - magnitude
	default:
		// Stock In and Adjustment both add; adjustment magnitudes carry
		// their own sign.
		return current + magnitude
	}
}

// Reverse is the exact inverse of Apply: deleting an event restores the
// pre-event quantity.
func Reverse(current float64, effect Effect, magnitude float64) float64 {
	switch effect {
	case EffectStockOut:
		return current + magnitude
	default:
		return current - magnitude
	}
}

// EditDelta projects the quantity after an event's magnitude changes from
// oldMagnitude to newMagnitude: reverse the old effect, apply the new one.
func EditDelta(current float64, effect Effect, oldMagnitude, newMagnitude float64) float64 {
	return Apply(Reverse(current, effect, oldMagnitude), effect, newMagnitude)
}
