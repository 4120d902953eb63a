package regen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"cart-meal-planner/internal/allocation"
	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/pantry"
	"cart-meal-planner/internal/schedule"
)

// Request is what the meal-suggestion generator is asked for.
type Request struct {
	AvailableIngredients []pantry.Ingredient
	ProteinExclusions    []string
	CountNeeded          int
	KindNeeded           meal.Kind
}

// Generator proposes untrusted meal sketches.
type Generator interface {
	Suggest(ctx context.Context, req Request) ([]meal.Sketch, error)
}

// CommitFunc persists an intermediate plan and returns the stored version.
type CommitFunc func(ctx context.Context, p *schedule.WeekPlan) (*schedule.WeekPlan, error)

// Report describes what a generation or regeneration pass achieved.
type Report struct {
	Requested      int               `json:"requested,omitempty"`
	Achievable     int               `json:"achievable,omitempty"`
	Snacks         int               `json:"snacks"`
	Replaced       []schedule.SlotID `json:"replaced,omitempty"`
	Emptied        []schedule.SlotID `json:"emptied,omitempty"`
	ReusedProteins []string          `json:"reused_proteins,omitempty"`
	Problems       []error           `json:"-"`
}

// Err joins the problems met during the pass, or nil.
func (r *Report) Err() error {
	return errors.Join(r.Problems...)
}

// Messages renders problems for callers that cannot carry errors.
func (r *Report) Messages() []string {
	out := make([]string, 0, len(r.Problems))
	for _, p := range r.Problems {
		out = append(out, p.Error())
	}
	return out
}

// Coordinator drives the generator and the scheduler together.
type Coordinator struct {
	scheduler *schedule.Scheduler
	generator Generator
}

func NewCoordinator(scheduler *schedule.Scheduler, generator Generator) *Coordinator {
	return &Coordinator{scheduler: scheduler, generator: generator}
}

// RegenerateUnlocked refreshes every unlocked slot, one slot at a time. Empty
// unlocked slots are filled too, up to what the cart can honestly support.
// Each changed slot is passed to commit as its own version; the first step
// snapshots the pre-pass slots so one undo reverts the pass. When ctx is
// cancelled, slots already replaced keep their new contents and the rest keep
// their old ones.
func (c *Coordinator) RegenerateUnlocked(ctx context.Context, p *schedule.WeekPlan, source schedule.Source, commit CommitFunc) (*schedule.WeekPlan, *Report, error) {
	if commit == nil {
		commit = keep
	}
	report := &Report{}
	used := schedule.LockedProteins(p)

	targets := regenerationTargets(p)

	first := true
	for _, id := range targets {
		if err := ctx.Err(); err != nil {
			return p, report, err
		}

		step := schedule.Continue
		if first {
			step = schedule.Edit
		}

		var placed *meal.Candidate
		var slotErr error
		var reused bool
		next, err := step(p, source, func(next *schedule.WeekPlan) error {
			if err := next.Vacate(id); err != nil {
				return err
			}
			exclude, repeatsAllowed := c.exclusions(next, id, used)
			cand, err := c.fillSlot(ctx, next, id, exclude)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slotErr = err
				return nil
			}
			placed = cand
			reused = repeatsAllowed && used[cand.ProteinSource]
			return nil
		})
		if err != nil {
			return p, report, err
		}

		if slotErr != nil && wasEmpty(p, id) {
			log.Printf("Regeneration could not fill empty slot %s of %s: %v", id, p.Key, slotErr)
			report.Emptied = append(report.Emptied, id)
			report.Problems = append(report.Problems, &GeneratorUnsatisfiableError{Slot: id, Reason: slotErr})
			continue
		}

		committed, err := commit(ctx, next)
		if err != nil {
			return p, report, fmt.Errorf("failed to commit slot %s: %w", id, err)
		}
		p = committed
		first = false

		if slotErr != nil {
			log.Printf("Regeneration left slot %s of %s empty: %v", id, p.Key, slotErr)
			report.Emptied = append(report.Emptied, id)
			report.Problems = append(report.Problems, &GeneratorUnsatisfiableError{Slot: id, Reason: slotErr})
			continue
		}
		if reused {
			report.ReusedProteins = append(report.ReusedProteins, placed.ProteinSource)
		}
		if placed.ProteinSource != "" {
			used[placed.ProteinSource] = true
		}
		report.Replaced = append(report.Replaced, id)
		log.Printf("Regenerated slot %s of %s: %s", id, p.Key, placed.Title)
	}

	return p, report, nil
}

// regenerationTargets lists, in grid order, every unlocked slot holding a meal
// plus as many empty unlocked slots as the cart's capacity leaves room for.
func regenerationTargets(p *schedule.WeekPlan) []schedule.SlotID {
	mealCap, snackCap := allocation.WeekCapacity(p.Pool)
	room := map[meal.Kind]int{
		meal.KindMeal:  mealCap - p.MealCount(meal.KindMeal),
		meal.KindSnack: snackCap - p.MealCount(meal.KindSnack),
	}

	var targets []schedule.SlotID
	for _, s := range p.Slots {
		switch {
		case s.Locked:
		case s.Meal != nil:
			targets = append(targets, s.ID())
		case room[s.Type] > 0:
			room[s.Type]--
			targets = append(targets, s.ID())
		}
	}
	return targets
}

func wasEmpty(p *schedule.WeekPlan, id schedule.SlotID) bool {
	s, err := p.Slot(id)
	return err == nil && s.Meal == nil
}

// exclusions returns the protein sources a meal slot must avoid. When the
// pool has no other source left, repeats are allowed.
func (c *Coordinator) exclusions(p *schedule.WeekPlan, id schedule.SlotID, used map[string]bool) (map[string]bool, bool) {
	if id.Type != meal.KindMeal {
		return nil, false
	}
	if len(allocation.ProteinSources(p.Pool, used)) > 0 {
		return used, false
	}
	return nil, true
}

// fillSlot asks the generator for one candidate and places the first sketch
// that fits, re-requesting once before giving up.
func (c *Coordinator) fillSlot(ctx context.Context, p *schedule.WeekPlan, id schedule.SlotID, exclude map[string]bool) (*meal.Candidate, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		sketches, err := c.generator.Suggest(ctx, Request{
			AvailableIngredients: p.Pool.Available(),
			ProteinExclusions:    sortedKeys(exclude),
			CountNeeded:          1,
			KindNeeded:           id.Type,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		cand, _, err := c.placeFirstFit(p, id, sketches, exclude)
		if err == nil {
			return cand, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// placeFirstFit places the first sketch the engine can fit and returns its
// index.
func (c *Coordinator) placeFirstFit(p *schedule.WeekPlan, id schedule.SlotID, sketches []meal.Sketch, exclude map[string]bool) (*meal.Candidate, int, error) {
	if len(sketches) == 0 {
		return nil, -1, errors.New("generator returned no suggestions")
	}
	var lastErr error
	for i, sk := range sketches {
		cand, err := c.scheduler.Engine().Fit(sk, p.Pool, allocation.FitOptions{
			ExcludeProteins: exclude,
			Kind:            id.Type,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if err := p.Place(id, cand, false); err != nil {
			lastErr = err
			continue
		}
		return cand, i, nil
	}
	return nil, -1, lastErr
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, ok := range m {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func keep(_ context.Context, p *schedule.WeekPlan) (*schedule.WeekPlan, error) {
	return p, nil
}
