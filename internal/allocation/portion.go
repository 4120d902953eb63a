package allocation

import (
	"cart-meal-planner/internal/pantry"

	"github.com/shopspring/decimal"
)

// Role is the part an ingredient plays in a dish.
type Role int

const (
	RoleProtein Role = iota
	RoleSupporting
)

var (
	two  = decimal.NewFromInt(2)
	four = decimal.NewFromInt(4)
	one  = decimal.NewFromInt(1)
)

// unitScale converts the small-portion threshold, expressed in pounds, into
// other weight units. Units not listed use the threshold as is.
var unitScale = map[string]decimal.Decimal{
	"lb": decimal.NewFromInt(1),
	"oz": decimal.NewFromInt(16),
	"kg": decimal.RequireFromString("0.45"),
	"g":  decimal.NewFromInt(450),
}

// Threshold is the small-portion threshold for a unit.
func (e *Engine) Threshold(unit string) decimal.Decimal {
	if scale, ok := unitScale[unit]; ok {
		return e.smallPortion.Mul(scale)
	}
	return e.smallPortion
}

// Portion decides how much of an ingredient one slot should take from what
// remains. Small remainders are taken whole; abundant ones are sliced so the
// ingredient can serve several slots.
func (e *Engine) Portion(ing pantry.Ingredient, role Role) decimal.Decimal {
	remaining := ing.Remaining()
	if !remaining.IsPositive() {
		return decimal.Zero
	}

	if ing.Discrete() {
		return discretePortion(remaining)
	}
	return e.continuousPortion(remaining, ing.Unit, role)
}

func discretePortion(remaining decimal.Decimal) decimal.Decimal {
	switch {
	case remaining.LessThanOrEqual(two):
		return remaining
	case remaining.LessThan(decimal.NewFromInt(6)):
		return one
	default:
		return two
	}
}

func (e *Engine) continuousPortion(remaining decimal.Decimal, unit string, role Role) decimal.Decimal {
	threshold := e.Threshold(unit)
	if remaining.LessThanOrEqual(threshold) {
		return remaining
	}

	slice := threshold
	if role == RoleSupporting {
		slice = threshold.Div(two)
	}
	slice = slice.Round(2)

	// Avoid leaving a sliver nobody can use.
	if remaining.Sub(slice).LessThan(threshold.Div(four)) {
		return remaining
	}
	return slice
}
