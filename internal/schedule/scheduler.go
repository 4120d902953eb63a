package schedule

import (
	"fmt"

	"cart-meal-planner/internal/allocation"
	"cart-meal-planner/internal/meal"
)

// Scheduler owns slot mutations. Every method returns the next version of
// the plan, or the unchanged plan and an error.
type Scheduler struct {
	engine *allocation.Engine
}

func NewScheduler(engine *allocation.Engine) *Scheduler {
	return &Scheduler{engine: engine}
}

func (s *Scheduler) Engine() *allocation.Engine { return s.engine }

// AssignOptions tunes a single assignment.
type AssignOptions struct {
	// Clamp grants whatever remains instead of failing when the pool is short.
	Clamp bool
	// ExcludeProteins keeps the engine off proteins used elsewhere.
	ExcludeProteins map[string]bool
}

// AssignSlot fits a sketch against the pool and places it. A meal already in
// the slot is released first so its ingredients are available to the new one.
func (s *Scheduler) AssignSlot(p *WeekPlan, id SlotID, sk meal.Sketch, opts AssignOptions, source Source) (*WeekPlan, *meal.Candidate, error) {
	var placed *meal.Candidate
	next, err := Edit(p, source, func(next *WeekPlan) error {
		c, err := s.fitInto(next, id, sk, opts)
		if err != nil {
			return err
		}
		placed = c
		return nil
	})
	if err != nil {
		return p, nil, err
	}
	return next, placed, nil
}

// fitInto vacates the slot, fits the sketch to the freed pool and places it.
func (s *Scheduler) fitInto(p *WeekPlan, id SlotID, sk meal.Sketch, opts AssignOptions) (*meal.Candidate, error) {
	if err := p.Vacate(id); err != nil {
		return nil, err
	}
	c, err := s.engine.Fit(sk, p.Pool, allocation.FitOptions{
		ExcludeProteins: opts.ExcludeProteins,
		Kind:            id.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", id, err)
	}
	if err := p.Place(id, c, opts.Clamp); err != nil {
		return nil, err
	}
	slot, _ := p.Slot(id)
	return slot.Meal, nil
}

// MoveSlot moves a meal between two unlocked slots, swapping when the
// destination is occupied. It is evaluated as release then reserve on one
// copy of the plan, so a failed reserve leaves the plan untouched.
func (s *Scheduler) MoveSlot(p *WeekPlan, from, to SlotID, source Source) (*WeekPlan, error) {
	if from == to {
		return p, fmt.Errorf("%w: cannot move %s onto itself", ErrUnknownSlot, from)
	}
	return Edit(p, source, func(next *WeekPlan) error {
		src, err := next.Slot(from)
		if err != nil {
			return err
		}
		dst, err := next.Slot(to)
		if err != nil {
			return err
		}
		if src.Locked {
			return &SlotLockedError{Slot: from}
		}
		if dst.Locked {
			return &SlotLockedError{Slot: to}
		}
		if src.Meal == nil {
			return fmt.Errorf("%w: %s", ErrEmptySlot, from)
		}

		if err := next.Vacate(from); err != nil {
			return err
		}
		if err := next.Vacate(to); err != nil {
			return err
		}
		if err := next.Place(to, src.Meal, false); err != nil {
			return err
		}
		if dst.Meal != nil {
			if err := next.Place(from, dst.Meal, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClearSlot releases an unlocked slot's ingredients and empties it.
func (s *Scheduler) ClearSlot(p *WeekPlan, id SlotID, source Source) (*WeekPlan, error) {
	return Edit(p, source, func(next *WeekPlan) error {
		return next.Vacate(id)
	})
}
