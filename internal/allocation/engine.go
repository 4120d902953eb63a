package allocation

import (
	"errors"
	"fmt"
	"sort"

	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/pantry"

	"github.com/shopspring/decimal"
)

const (
	MinSupporting    = 2
	MaxSupporting    = 4
	MaxSnackItems    = 3
	MaxMealsPerWeek  = 4
	MaxSnacksPerWeek = 2
)

var (
	ErrNoProtein         = errors.New("no usable protein source")
	ErrProteinExcluded   = errors.New("protein source excluded")
	ErrTooFewSupporting  = errors.New("not enough supporting ingredients")
	ErrNoPoolIngredients = errors.New("no ingredients available in pool")
)

// Engine fits untrusted sketches to a pool and reserves the result.
type Engine struct {
	smallPortion decimal.Decimal
}

// NewEngine creates an engine with the given small-portion threshold in
// pounds. A non-positive value falls back to 1.0.
func NewEngine(smallPortion decimal.Decimal) *Engine {
	if !smallPortion.IsPositive() {
		smallPortion = decimal.NewFromInt(1)
	}
	return &Engine{smallPortion: smallPortion}
}

// FitOptions narrows what a sketch may use.
type FitOptions struct {
	// ExcludeProteins lists protein sources other slots already hold.
	ExcludeProteins map[string]bool
	// Kind overrides the sketch's kind when set.
	Kind meal.Kind
}

// Fit turns a sketch into a candidate with literal quantities computed from
// the pool's current remainders. The pool is not modified. Sketch ingredients
// missing from the pool are treated as staples and dropped.
func (e *Engine) Fit(sk meal.Sketch, pool *pantry.Pool, opts FitOptions) (*meal.Candidate, error) {
	sk, err := sk.Validate()
	if err != nil {
		return nil, err
	}

	kind := meal.Kind(sk.Kind)
	if opts.Kind != "" {
		kind = opts.Kind
	}

	c := &meal.Candidate{
		ID:             meal.NewID(),
		Title:          sk.Title,
		Kind:           kind,
		ProteinGrams:   int(sk.ProteinGrams),
		TimeMinutes:    int(sk.TimeMinutes),
		Servings:       int(sk.Servings),
		CookingMethods: append([]string(nil), sk.CookingMethods...),
	}

	if kind == meal.KindSnack {
		uses, err := e.fitSnack(sk, pool)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", sk.Title, err)
		}
		c.IngredientsUsed = uses
		return c, nil
	}

	protein, err := e.pickProtein(sk, pool, opts.ExcludeProteins)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", sk.Title, err)
	}
	supporting, err := e.pickSupporting(sk, pool, protein.Name)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", sk.Title, err)
	}

	c.ProteinSource = protein.Name
	c.IngredientsUsed = append(c.IngredientsUsed, meal.Use{
		IngredientName: protein.Name,
		Qty:            e.Portion(protein, RoleProtein),
		Unit:           protein.Unit,
	})
	for _, ing := range supporting {
		c.IngredientsUsed = append(c.IngredientsUsed, meal.Use{
			IngredientName: ing.Name,
			Qty:            e.Portion(ing, RoleSupporting),
			Unit:           ing.Unit,
		})
	}
	return c, nil
}

func (e *Engine) pickProtein(sk meal.Sketch, pool *pantry.Pool, exclude map[string]bool) (pantry.Ingredient, error) {
	names := make([]string, 0, len(sk.Ingredients)+1)
	if sk.Protein != "" {
		names = append(names, sk.Protein)
	}
	names = append(names, sk.Ingredients...)

	excludedHit := ""
	for i, raw := range names {
		ing, ok := pool.Get(pantry.NormalizeName(raw))
		if !ok || !ing.Remaining().IsPositive() {
			continue
		}
		// The named protein is trusted; otherwise only protein-category items count.
		if !(i == 0 && sk.Protein != "") && ing.Category != pantry.CategoryProtein {
			continue
		}
		if exclude[ing.Name] {
			excludedHit = ing.Name
			continue
		}
		return ing, nil
	}

	if excludedHit != "" {
		return pantry.Ingredient{}, fmt.Errorf("%w: %s", ErrProteinExcluded, excludedHit)
	}
	return pantry.Ingredient{}, ErrNoProtein
}

// pickSupporting takes the sketch's supporting ingredients that remain in
// the pool, preferring the least used, and tops up from pool produce when
// the sketch named too few.
func (e *Engine) pickSupporting(sk meal.Sketch, pool *pantry.Pool, protein string) ([]pantry.Ingredient, error) {
	seen := map[string]bool{protein: true}
	var fromSketch []pantry.Ingredient
	for _, raw := range sk.Ingredients {
		ing, ok := pool.Get(pantry.NormalizeName(raw))
		if !ok || seen[ing.Name] || !ing.Remaining().IsPositive() || ing.Category == pantry.CategoryProtein {
			continue
		}
		seen[ing.Name] = true
		fromSketch = append(fromSketch, ing)
	}
	SortByUtilization(fromSketch)
	if len(fromSketch) > MaxSupporting {
		fromSketch = fromSketch[:MaxSupporting]
	}

	if len(fromSketch) < MinSupporting {
		var filler []pantry.Ingredient
		for _, ing := range pool.Available() {
			if seen[ing.Name] || ing.Category != pantry.CategoryProduce {
				continue
			}
			filler = append(filler, ing)
		}
		SortByUtilization(filler)
		for _, ing := range filler {
			if len(fromSketch) >= MinSupporting {
				break
			}
			fromSketch = append(fromSketch, ing)
		}
	}

	if len(fromSketch) < MinSupporting {
		return nil, fmt.Errorf("%w: found %d, need %d", ErrTooFewSupporting, len(fromSketch), MinSupporting)
	}
	return fromSketch, nil
}

func (e *Engine) fitSnack(sk meal.Sketch, pool *pantry.Pool) ([]meal.Use, error) {
	names := append([]string(nil), sk.Ingredients...)
	if sk.Protein != "" {
		names = append([]string{sk.Protein}, names...)
	}

	seen := map[string]bool{}
	var uses []meal.Use
	for _, raw := range names {
		ing, ok := pool.Get(pantry.NormalizeName(raw))
		if !ok || seen[ing.Name] || !ing.Remaining().IsPositive() {
			continue
		}
		seen[ing.Name] = true
		uses = append(uses, meal.Use{
			IngredientName: ing.Name,
			Qty:            e.Portion(ing, RoleSupporting),
			Unit:           ing.Unit,
		})
		if len(uses) == MaxSnackItems {
			break
		}
	}
	if len(uses) == 0 {
		return nil, ErrNoPoolIngredients
	}
	return uses, nil
}

// SortByUtilization orders ingredients by allocated/total ascending, keeping
// input order on ties.
func SortByUtilization(ings []pantry.Ingredient) {
	sort.SliceStable(ings, func(i, j int) bool {
		return ings[i].Utilization().LessThan(ings[j].Utilization())
	})
}

// Apply reserves every use of the candidate. It is all or nothing: when one
// reservation fails the earlier ones are released and the error returned.
// With clamp, short ingredients are granted what remains and the candidate's
// quantities are updated to match; uses granted nothing are dropped.
func Apply(pool *pantry.Pool, c *meal.Candidate, clamp bool) error {
	reserved := make([]meal.Use, 0, len(c.IngredientsUsed))
	for _, u := range c.IngredientsUsed {
		granted, err := pool.Reserve(u.IngredientName, u.Qty, clamp)
		if err != nil {
			rollback(pool, reserved)
			return err
		}
		if granted.IsZero() {
			continue
		}
		u.Qty = granted
		reserved = append(reserved, u)
	}
	c.IngredientsUsed = reserved
	return nil
}

// Release returns every use of the candidate to the pool.
func Release(pool *pantry.Pool, c *meal.Candidate) error {
	for i, u := range c.IngredientsUsed {
		if err := pool.Release(u.IngredientName, u.Qty); err != nil {
			// Put back what was already released so the pool stays consistent.
			for _, back := range c.IngredientsUsed[:i] {
				_, _ = pool.Reserve(back.IngredientName, back.Qty, false)
			}
			return err
		}
	}
	return nil
}

func rollback(pool *pantry.Pool, uses []meal.Use) {
	for _, u := range uses {
		_ = pool.Release(u.IngredientName, u.Qty)
	}
}
