package meal

import (
	"strings"

	"cart-meal-planner/internal/pantry"
)

var heatMethods = map[string]bool{
	"roasted":    true,
	"seared":     true,
	"grilled":    true,
	"baked":      true,
	"sauteed":    true,
	"stir-fried": true,
	"braised":    true,
}

// QuickSnackMinutes is the prep time under which an uncooked dish is a snack.
const QuickSnackMinutes = 20

// SnackProteinGrams is the protein level under which an unclassified dish is a snack.
const SnackProteinGrams = 20

func HasHeatMethod(methods []string) bool {
	for _, m := range methods {
		if heatMethods[strings.ToLower(strings.TrimSpace(m))] {
			return true
		}
	}
	return false
}

// Classify decides meal or snack for a dish whose kind was not supplied.
// A quick dish with no heat-based method is a snack, as is a dish built
// around yogurt, fruit or dairy regardless of its time or protein. Everything
// else falls back to the protein level.
func Classify(timeMinutes int, methods []string, ingredients []string, proteinGrams int) Kind {
	heated := HasHeatMethod(methods)

	if timeMinutes < QuickSnackMinutes && !heated {
		return KindSnack
	}
	if snackTypical(ingredients) {
		return KindSnack
	}
	if proteinGrams < SnackProteinGrams {
		return KindSnack
	}
	return KindMeal
}

// snackTypical looks at the leading ingredient and refuses when any
// ingredient is a cooking protein.
func snackTypical(ingredients []string) bool {
	if len(ingredients) == 0 {
		return false
	}
	for _, name := range ingredients {
		if pantry.Classify(pantry.NormalizeName(name)) == pantry.CategoryProtein {
			return false
		}
	}
	return pantry.IsSnackTypical(pantry.Classify(pantry.NormalizeName(ingredients[0])))
}
