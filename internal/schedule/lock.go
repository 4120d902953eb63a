package schedule

// ToggleLock flips a slot's lock. Allocation amounts never change: an
// unlocked slot keeps its ingredients until it is cleared or regenerated.
func (s *Scheduler) ToggleLock(p *WeekPlan, id SlotID, source Source) (*WeekPlan, bool, error) {
	var locked bool
	next, err := Edit(p, source, func(next *WeekPlan) error {
		i, err := next.index(id)
		if err != nil {
			return err
		}
		next.Slots[i].Locked = !next.Slots[i].Locked
		locked = next.Slots[i].Locked
		return nil
	})
	if err != nil {
		return p, false, err
	}
	return next, locked, nil
}

// ClearAllLocks unlocks every slot. It only runs with confirm set when any
// slot is locked.
func (s *Scheduler) ClearAllLocks(p *WeekPlan, confirm bool, source Source) (*WeekPlan, error) {
	if locked := p.LockedSlots(); len(locked) > 0 && !confirm {
		return p, &ConfirmationError{Operation: "clear all locks", LockedSlots: locked}
	}
	return Edit(p, source, func(next *WeekPlan) error {
		unlockAll(next)
		return nil
	})
}

// ResetWeek empties every slot, drops every lock and returns every
// ingredient to the pool.
func (s *Scheduler) ResetWeek(p *WeekPlan, confirm bool, source Source) (*WeekPlan, error) {
	if locked := p.LockedSlots(); len(locked) > 0 && !confirm {
		return p, &ConfirmationError{Operation: "reset week", LockedSlots: locked}
	}
	return Edit(p, source, func(next *WeekPlan) error {
		unlockAll(next)
		for i := range next.Slots {
			next.Slots[i].Meal = nil
		}
		next.Pool.ResetAllocations()
		return nil
	})
}

// LockedProteins returns the protein sources held by locked slots.
func LockedProteins(p *WeekPlan) map[string]bool {
	out := make(map[string]bool)
	for _, s := range p.Slots {
		if s.Locked && s.Meal != nil && s.Meal.ProteinSource != "" {
			out[s.Meal.ProteinSource] = true
		}
	}
	return out
}

func unlockAll(p *WeekPlan) {
	for i := range p.Slots {
		p.Slots[i].Locked = false
	}
}
