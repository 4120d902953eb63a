package pantry

import (
	"encoding/json"
	"errors"
	"fmt"

	"cart-meal-planner/internal/cart"

	"github.com/shopspring/decimal"
)

var (
	ErrPoolExhausted     = errors.New("pool exhausted")
	ErrUnknownIngredient = errors.New("unknown ingredient")
	ErrOverRelease       = errors.New("release exceeds allocated quantity")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrUnitMismatch      = errors.New("unit mismatch")
)

// PoolExhaustedError reports a reservation that asked for more than remains.
type PoolExhaustedError struct {
	Ingredient string
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("pool exhausted for %q: requested %s, available %s", e.Ingredient, e.Requested, e.Available)
}

func (e *PoolExhaustedError) Unwrap() error { return ErrPoolExhausted }

// Ingredient is one ledger line. Remaining is always derived.
type Ingredient struct {
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Category     Category        `json:"category"`
	TotalQty     decimal.Decimal `json:"total_qty"`
	AllocatedQty decimal.Decimal `json:"allocated_qty"`
}

func (i Ingredient) Remaining() decimal.Decimal {
	return i.TotalQty.Sub(i.AllocatedQty)
}

// Utilization is allocated/total in [0, 1].
func (i Ingredient) Utilization() decimal.Decimal {
	if i.TotalQty.IsZero() {
		return decimal.NewFromInt(1)
	}
	return i.AllocatedQty.Div(i.TotalQty)
}

// discreteUnits are counted rather than weighed.
var discreteUnits = map[string]bool{
	"piece": true,
	"bunch": true,
	"head":  true,
	"bag":   true,
}

func (i Ingredient) Discrete() bool {
	return discreteUnits[i.Unit]
}

// Pool is the per-week ingredient ledger. Ingredients keep cart order.
// A Pool is not safe for concurrent use; it is owned by its week plan.
type Pool struct {
	items []*Ingredient
	index map[string]int
}

func NewPool() *Pool {
	return &Pool{index: make(map[string]int)}
}

// Build normalizes cart lines into a pool. Lines that normalize to the same
// key are merged when their units agree.
func Build(items []cart.Item) (*Pool, error) {
	p := NewPool()
	for _, item := range items {
		if !item.Quantity.IsPositive() {
			return nil, fmt.Errorf("cart item %q: %w", item.Name, ErrInvalidQuantity)
		}
		name := NormalizeName(item.Name)
		unit := cart.NormalizeUnit(item.Unit)
		qty := item.Quantity
		if unit == "dozen" {
			unit = "piece"
			qty = qty.Mul(decimal.NewFromInt(12))
		}

		if idx, ok := p.index[name]; ok {
			existing := p.items[idx]
			if existing.Unit != unit {
				return nil, fmt.Errorf("cart item %q has unit %q but %q already uses %q: %w",
					item.Name, unit, name, existing.Unit, ErrUnitMismatch)
			}
			existing.TotalQty = existing.TotalQty.Add(qty)
			continue
		}
		p.add(&Ingredient{
			Name:     name,
			Unit:     unit,
			Category: Classify(name),
			TotalQty: qty,
		})
	}
	return p, nil
}

func (p *Pool) add(ing *Ingredient) {
	p.index[ing.Name] = len(p.items)
	p.items = append(p.items, ing)
}

// Get returns a copy of the named ingredient.
func (p *Pool) Get(name string) (Ingredient, bool) {
	idx, ok := p.index[name]
	if !ok {
		return Ingredient{}, false
	}
	return *p.items[idx], true
}

// Remaining never errors; an absent ingredient has nothing remaining.
func (p *Pool) Remaining(name string) decimal.Decimal {
	ing, ok := p.Get(name)
	if !ok {
		return decimal.Zero
	}
	return ing.Remaining()
}

// Reserve moves qty from remaining to allocated and returns the granted
// amount. Without clamp, asking for more than remains fails with a
// *PoolExhaustedError and leaves the pool untouched. With clamp the remaining
// amount is granted instead.
func (p *Pool) Reserve(name string, qty decimal.Decimal, clamp bool) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, fmt.Errorf("reserve %q: %w", name, ErrInvalidQuantity)
	}

	idx, ok := p.index[name]
	if !ok {
		if clamp {
			return decimal.Zero, nil
		}
		return decimal.Zero, &PoolExhaustedError{Ingredient: name, Requested: qty, Available: decimal.Zero}
	}

	ing := p.items[idx]
	remaining := ing.Remaining()
	if qty.GreaterThan(remaining) {
		if !clamp {
			return decimal.Zero, &PoolExhaustedError{Ingredient: name, Requested: qty, Available: remaining}
		}
		qty = remaining
	}

	ing.AllocatedQty = ing.AllocatedQty.Add(qty)
	return qty, nil
}

// Release moves qty back to remaining. It is rejected, leaving the pool
// untouched, if it would drive the allocated quantity negative.
func (p *Pool) Release(name string, qty decimal.Decimal) error {
	if qty.IsZero() {
		return nil
	}
	if qty.IsNegative() {
		return fmt.Errorf("release %q: %w", name, ErrInvalidQuantity)
	}
	idx, ok := p.index[name]
	if !ok {
		return fmt.Errorf("release %q: %w", name, ErrUnknownIngredient)
	}
	ing := p.items[idx]
	if qty.GreaterThan(ing.AllocatedQty) {
		return fmt.Errorf("release %s of %q with %s allocated: %w", qty, name, ing.AllocatedQty, ErrOverRelease)
	}
	ing.AllocatedQty = ing.AllocatedQty.Sub(qty)
	return nil
}

// Ingredients returns copies in cart order.
func (p *Pool) Ingredients() []Ingredient {
	out := make([]Ingredient, len(p.items))
	for i, ing := range p.items {
		out[i] = *ing
	}
	return out
}

// Available returns ingredients with something left, in cart order.
func (p *Pool) Available() []Ingredient {
	var out []Ingredient
	for _, ing := range p.items {
		if ing.Remaining().IsPositive() {
			out = append(out, *ing)
		}
	}
	return out
}

func (p *Pool) Len() int { return len(p.items) }

func (p *Pool) Clone() *Pool {
	c := NewPool()
	for _, ing := range p.items {
		cp := *ing
		c.add(&cp)
	}
	return c
}

// ResetAllocations returns every ingredient to fully remaining.
func (p *Pool) ResetAllocations() {
	for _, ing := range p.items {
		ing.AllocatedQty = decimal.Zero
	}
}

// Check verifies 0 <= allocated <= total for every ingredient.
func (p *Pool) Check() error {
	for _, ing := range p.items {
		if ing.AllocatedQty.IsNegative() || ing.AllocatedQty.GreaterThan(ing.TotalQty) {
			return fmt.Errorf("ingredient %q has allocated %s of total %s", ing.Name, ing.AllocatedQty, ing.TotalQty)
		}
	}
	return nil
}

func (p *Pool) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Ingredients())
}

func (p *Pool) UnmarshalJSON(data []byte) error {
	var items []Ingredient
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	fresh := NewPool()
	for i := range items {
		ing := items[i]
		if _, dup := fresh.index[ing.Name]; dup {
			return fmt.Errorf("duplicate ingredient %q in pool", ing.Name)
		}
		fresh.add(&ing)
	}
	if err := fresh.Check(); err != nil {
		return err
	}
	*p = *fresh
	return nil
}
