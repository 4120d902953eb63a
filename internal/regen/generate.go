package regen

import (
	"context"
	"fmt"
	"log"

	"cart-meal-planner/internal/allocation"
	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/schedule"
)

// GenerateWeek rebuilds the whole week from the pool. It asks the generator
// for exactly as many meals as the pool has distinct proteins (at most four
// and at most requested), then for up to two snacks from leftovers. Asking
// for more meals than the pool supports is reported as an
// InsufficientMealCountError in the report; the achievable week is still
// built. Locked slots are discarded, so confirm is required when any exist.
func (c *Coordinator) GenerateWeek(ctx context.Context, p *schedule.WeekPlan, requested int, confirm bool, source schedule.Source) (*schedule.WeekPlan, *Report, error) {
	if locked := p.LockedSlots(); len(locked) > 0 && !confirm {
		return p, nil, &schedule.ConfirmationError{Operation: "generate week", LockedSlots: locked}
	}
	if requested <= 0 {
		requested = allocation.MaxMealsPerWeek
	}

	report := &Report{Requested: requested}
	next, err := schedule.Edit(p, source, func(next *schedule.WeekPlan) error {
		for i := range next.Slots {
			next.Slots[i].Locked = false
			next.Slots[i].Meal = nil
		}
		next.Pool.ResetAllocations()

		report.Achievable = allocation.PossibleMealCount(next.Pool)
		target := requested
		if target > report.Achievable {
			report.Problems = append(report.Problems, &InsufficientMealCountError{
				Requested:  requested,
				Achievable: report.Achievable,
			})
			target = report.Achievable
		}

		if err := c.fillKind(ctx, next, meal.KindMeal, target, report); err != nil {
			return err
		}
		report.Snacks = allocation.SnackCount(next.Pool)
		return c.fillKind(ctx, next, meal.KindSnack, report.Snacks, report)
	})
	if err != nil {
		return p, report, err
	}

	log.Printf("Generated week %s: %d meals, %d snacks (requested %d, achievable %d)",
		next.Key, next.MealCount(meal.KindMeal), next.MealCount(meal.KindSnack), requested, report.Achievable)
	return next, report, nil
}

// fillKind requests count sketches of a kind in one call and places them into
// that kind's slots in week order. Proteins never repeat. A slot no sketch
// fits gets one re-request before it is left empty and reported.
func (c *Coordinator) fillKind(ctx context.Context, p *schedule.WeekPlan, kind meal.Kind, count int, report *Report) error {
	if count <= 0 {
		return nil
	}

	used := map[string]bool{}
	var slots []schedule.SlotID
	for _, s := range p.Slots {
		if s.Type == kind && len(slots) < count {
			slots = append(slots, s.ID())
		}
	}

	sketches, err := c.generator.Suggest(ctx, c.request(p, kind, count, used))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("Generator failed for %d %s(s): %v", count, kind, err)
	}

	for _, id := range slots {
		cand, idx, fitErr := c.placeFirstFit(p, id, sketches, exclusionsFor(kind, used))
		if fitErr == nil {
			sketches = append(sketches[:idx], sketches[idx+1:]...)
		} else {
			retry, err := c.generator.Suggest(ctx, c.request(p, kind, 1, used))
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if err == nil {
				cand, _, fitErr = c.placeFirstFit(p, id, retry, exclusionsFor(kind, used))
			} else {
				fitErr = err
			}
		}

		if fitErr != nil {
			report.Emptied = append(report.Emptied, id)
			report.Problems = append(report.Problems, &GeneratorUnsatisfiableError{Slot: id, Reason: fitErr})
			continue
		}
		if cand.ProteinSource != "" {
			used[cand.ProteinSource] = true
		}
		report.Replaced = append(report.Replaced, id)
	}
	return nil
}

func (c *Coordinator) request(p *schedule.WeekPlan, kind meal.Kind, count int, used map[string]bool) Request {
	return Request{
		AvailableIngredients: p.Pool.Available(),
		ProteinExclusions:    sortedKeys(exclusionsFor(kind, used)),
		CountNeeded:          count,
		KindNeeded:           kind,
	}
}

func exclusionsFor(kind meal.Kind, used map[string]bool) map[string]bool {
	if kind != meal.KindMeal {
		return nil
	}
	return used
}

// Describe summarises a report for chat surfaces.
func (r *Report) Describe() string {
	msg := fmt.Sprintf("%d slot(s) filled", len(r.Replaced))
	if len(r.Emptied) > 0 {
		msg += fmt.Sprintf(", %d left empty", len(r.Emptied))
	}
	if r.Requested > 0 && r.Achievable < r.Requested {
		msg += fmt.Sprintf("; only %d of %d requested meals are possible", r.Achievable, r.Requested)
	}
	if len(r.ReusedProteins) > 0 {
		msg += fmt.Sprintf("; reused proteins: %v", r.ReusedProteins)
	}
	return msg
}
