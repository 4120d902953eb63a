package schedule

import (
	"fmt"
	"time"

	"cart-meal-planner/internal/allocation"
	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/pantry"
)

// Source identifies which surface last wrote a plan.
type Source string

const (
	SourceSystem   Source = "system"
	SourceSummary  Source = "summary"
	SourcePlanning Source = "planning"
	SourceCLI      Source = "cli"
)

// WeekPlan is the versioned unit of state for one owner's week. The pool's
// allocations always equal the sum of the slots' ingredient uses.
type WeekPlan struct {
	Key              string       `json:"key"`
	Owner            string       `json:"owner"`
	WeekOf           time.Time    `json:"week_of"`
	Pool             *pantry.Pool `json:"pool"`
	Slots            []Slot       `json:"slots"`
	Version          int64        `json:"version"`
	PreviousSlots    []Slot       `json:"previous_slots,omitempty"`
	GenerationSource Source       `json:"generation_source"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// WeekOf normalizes any date to midnight UTC on the Monday of its week.
func WeekOf(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PlanKey is the storage key for an owner's week.
func PlanKey(owner string, weekOf time.Time) string {
	return fmt.Sprintf("%s:%s", owner, WeekOf(weekOf).Format("2006-01-02"))
}

// NewWeekPlan starts a week at version 0 with every slot empty.
func NewWeekPlan(owner string, weekOf time.Time, pool *pantry.Pool, source Source) *WeekPlan {
	wk := WeekOf(weekOf)
	return &WeekPlan{
		Key:              PlanKey(owner, wk),
		Owner:            owner,
		WeekOf:           wk,
		Pool:             pool,
		Slots:            EmptyGrid(),
		GenerationSource: source,
		UpdatedAt:        time.Now().UTC(),
	}
}

func (p *WeekPlan) Clone() *WeekPlan {
	cp := *p
	cp.Pool = p.Pool.Clone()
	cp.Slots = cloneSlots(p.Slots)
	cp.PreviousSlots = cloneSlots(p.PreviousSlots)
	return &cp
}

func (p *WeekPlan) index(id SlotID) (int, error) {
	for i, s := range p.Slots {
		if s.Day == id.Day && s.Type == id.Type {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownSlot, id)
}

// Slot returns a copy of the addressed slot.
func (p *WeekPlan) Slot(id SlotID) (Slot, error) {
	i, err := p.index(id)
	if err != nil {
		return Slot{}, err
	}
	s := p.Slots[i]
	s.Meal = s.Meal.Clone()
	return s, nil
}

// LockedSlots lists locked slots in grid order.
func (p *WeekPlan) LockedSlots() []SlotID {
	var out []SlotID
	for _, s := range p.Slots {
		if s.Locked {
			out = append(out, s.ID())
		}
	}
	return out
}

// MealCount counts filled slots of a kind.
func (p *WeekPlan) MealCount(kind meal.Kind) int {
	n := 0
	for _, s := range p.Slots {
		if s.Meal != nil && s.Type == kind {
			n++
		}
	}
	return n
}

// Verify checks the pool ledger against the slots.
func (p *WeekPlan) Verify() error {
	if err := p.Pool.Check(); err != nil {
		return err
	}
	replay := p.Pool.Clone()
	replay.ResetAllocations()
	for _, s := range p.Slots {
		if s.Meal == nil {
			continue
		}
		if err := allocation.Apply(replay, s.Meal.Clone(), false); err != nil {
			return fmt.Errorf("slot %s does not fit the pool: %w", s.ID(), err)
		}
	}
	for _, ing := range p.Pool.Ingredients() {
		if got := replay.Remaining(ing.Name); !got.Equal(ing.Remaining()) {
			return fmt.Errorf("ingredient %q: pool has %s remaining, slots imply %s", ing.Name, ing.Remaining(), got)
		}
	}
	return nil
}

// Edit applies fn to a copy of p. On success the copy is returned as the next
// version with p's slots kept for undo; on failure p is returned untouched
// along with the error.
func Edit(p *WeekPlan, source Source, fn func(next *WeekPlan) error) (*WeekPlan, error) {
	next := p.Clone()
	if err := fn(next); err != nil {
		return p, err
	}
	next.PreviousSlots = cloneSlots(p.Slots)
	bump(next, source)
	return next, nil
}

// Continue is Edit without touching the undo snapshot. A multi-step pass
// uses it after its first step so one undo reverts the whole pass.
func Continue(p *WeekPlan, source Source, fn func(next *WeekPlan) error) (*WeekPlan, error) {
	next := p.Clone()
	if err := fn(next); err != nil {
		return p, err
	}
	bump(next, source)
	return next, nil
}

func bump(p *WeekPlan, source Source) {
	p.Version++
	p.GenerationSource = source
	p.UpdatedAt = time.Now().UTC()
}

// Place reserves c's exact quantities into an empty, unlocked slot.
func (p *WeekPlan) Place(id SlotID, c *meal.Candidate, clamp bool) error {
	i, err := p.index(id)
	if err != nil {
		return err
	}
	if p.Slots[i].Locked {
		return &SlotLockedError{Slot: id}
	}
	if p.Slots[i].Meal != nil {
		if err := p.Vacate(id); err != nil {
			return err
		}
	}
	c = c.Clone()
	if err := allocation.Apply(p.Pool, c, clamp); err != nil {
		return fmt.Errorf("slot %s: %w", id, err)
	}
	p.Slots[i].Meal = c
	return nil
}

// Vacate releases an unlocked slot's ingredients and empties it. An empty
// slot is left as is.
func (p *WeekPlan) Vacate(id SlotID) error {
	i, err := p.index(id)
	if err != nil {
		return err
	}
	if p.Slots[i].Locked {
		return &SlotLockedError{Slot: id}
	}
	if p.Slots[i].Meal == nil {
		return nil
	}
	if err := allocation.Release(p.Pool, p.Slots[i].Meal); err != nil {
		return fmt.Errorf("slot %s: %w", id, err)
	}
	p.Slots[i].Meal = nil
	return nil
}
