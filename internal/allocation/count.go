package allocation

import (
	"cart-meal-planner/internal/pantry"
)

// ProteinSources lists protein ingredients with something remaining, in
// cart order, skipping any in exclude.
func ProteinSources(pool *pantry.Pool, exclude map[string]bool) []string {
	var out []string
	for _, ing := range pool.Available() {
		if ing.Category == pantry.CategoryProtein && !exclude[ing.Name] {
			out = append(out, ing.Name)
		}
	}
	return out
}

// PossibleMealCount is the number of meals the pool can honestly support:
// one per distinct protein source, capped at four.
func PossibleMealCount(pool *pantry.Pool) int {
	n := len(ProteinSources(pool, nil))
	if n > MaxMealsPerWeek {
		return MaxMealsPerWeek
	}
	return n
}

// SnackCount is how many snacks to request from leftovers: one per
// snack-typical ingredient still remaining, capped at two.
func SnackCount(pool *pantry.Pool) int {
	n := len(SnackIngredients(pool))
	if n > MaxSnacksPerWeek {
		return MaxSnacksPerWeek
	}
	return n
}

// SnackIngredients lists leftovers suited to a snack.
func SnackIngredients(pool *pantry.Pool) []pantry.Ingredient {
	var out []pantry.Ingredient
	for _, ing := range pool.Available() {
		if pantry.IsSnackTypical(ing.Category) {
			out = append(out, ing)
		}
	}
	return out
}

// WeekCapacity is how many meals and snacks the whole cart supports, counting
// every protein and snack-typical ingredient bought whether or not it is
// already allocated. It applies the same caps as a fresh week.
func WeekCapacity(pool *pantry.Pool) (meals, snacks int) {
	for _, ing := range pool.Ingredients() {
		switch {
		case ing.Category == pantry.CategoryProtein:
			meals++
		case pantry.IsSnackTypical(ing.Category):
			snacks++
		}
	}
	return min(meals, MaxMealsPerWeek), min(snacks, MaxSnacksPerWeek)
}
