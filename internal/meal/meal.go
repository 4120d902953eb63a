package meal

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindMeal  Kind = "meal"
	KindSnack Kind = "snack"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindMeal, KindSnack:
		return Kind(s), true
	}
	return "", false
}

// Use is a literal reservation against the pool.
type Use struct {
	IngredientName string          `json:"ingredient_name"`
	Qty            decimal.Decimal `json:"qty"`
	Unit           string          `json:"unit"`
}

// Candidate is a meal whose ingredient quantities have been fitted to a pool.
type Candidate struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Kind            Kind     `json:"kind"`
	ProteinSource   string   `json:"protein_source,omitempty"`
	ProteinGrams    int      `json:"protein_grams"`
	TimeMinutes     int      `json:"time_minutes"`
	Servings        int      `json:"servings"`
	IngredientsUsed []Use    `json:"ingredients_used"`
	CookingMethods  []string `json:"cooking_methods,omitempty"`
}

func NewID() string {
	return uuid.NewString()
}

// Clone returns a deep copy.
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	cp := *c
	cp.IngredientsUsed = append([]Use(nil), c.IngredientsUsed...)
	cp.CookingMethods = append([]string(nil), c.CookingMethods...)
	return &cp
}

// Uses reports whether the candidate reserves the named ingredient.
func (c *Candidate) Uses(name string) bool {
	for _, u := range c.IngredientsUsed {
		if u.IngredientName == name {
			return true
		}
	}
	return false
}
