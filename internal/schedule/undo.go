package schedule

import (
	"fmt"

	"cart-meal-planner/internal/allocation"
)

// Undo restores the slots saved by the last mutation and rebuilds the pool
// by replaying their allocations. Only one step is kept: after an undo there
// is nothing left to undo.
func (s *Scheduler) Undo(p *WeekPlan, source Source) (*WeekPlan, error) {
	if p.PreviousSlots == nil {
		return p, ErrNothingToUndo
	}

	next := p.Clone()
	next.Slots = cloneSlots(p.PreviousSlots)
	next.PreviousSlots = nil
	next.Pool.ResetAllocations()
	for _, slot := range next.Slots {
		if slot.Meal == nil {
			continue
		}
		if err := allocation.Apply(next.Pool, slot.Meal.Clone(), false); err != nil {
			return p, fmt.Errorf("cannot replay slot %s: %w", slot.ID(), err)
		}
	}
	bump(next, source)
	return next, nil
}
