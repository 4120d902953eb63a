package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cart-meal-planner/internal/cart"
	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/pantry"
	"cart-meal-planner/internal/planstore"
	"cart-meal-planner/internal/regen"
	"cart-meal-planner/internal/schedule"
)

var (
	ErrPlanNotFound        = errors.New("week plan not found")
	ErrPlanExists          = errors.New("week plan already exists")
	ErrVersionConflict     = errors.New("version conflict")
	ErrEmptyCart           = errors.New("cart has no items")
	ErrRegenerationRunning = errors.New("regeneration in progress")
	ErrNoRegeneration      = errors.New("no regeneration running")
)

// VersionConflictError carries the state a stale writer should rebase on.
type VersionConflictError struct {
	Expected int64
	Current  View
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, plan is at %d", e.Expected, e.Current.Version)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// Store is the versioned persistence the service writes through.
type Store interface {
	Get(ctx context.Context, key string) (*schedule.WeekPlan, error)
	Create(ctx context.Context, p *schedule.WeekPlan, overwrite bool) error
	CompareAndSwap(ctx context.Context, prevVersion int64, p *schedule.WeekPlan) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context) (int64, error)
	ListByOwner(ctx context.Context, owner string) ([]*schedule.WeekPlan, error)
}

// PlanRef names one owner's week.
type PlanRef struct {
	Owner  string
	WeekOf time.Time
}

func (r PlanRef) Key() string { return schedule.PlanKey(r.Owner, r.WeekOf) }

// View is what every read and successful write returns.
type View struct {
	Plan    *schedule.WeekPlan `json:"plan"`
	Version int64              `json:"version"`
}

func viewOf(p *schedule.WeekPlan) View {
	return View{Plan: p, Version: p.Version}
}

// WriteOptions accompany every mutation.
type WriteOptions struct {
	// ExpectedVersion is the version the caller last observed.
	ExpectedVersion int64
	// Force skips the version check.
	Force bool
	// ConfirmDestructive acknowledges that locked slots will be discarded.
	ConfirmDestructive bool
	// Clamp grants whatever remains when a reservation cannot be met in full.
	Clamp  bool
	Source schedule.Source
}

func (o WriteOptions) source() schedule.Source {
	if o.Source == "" {
		return schedule.SourceSystem
	}
	return o.Source
}

// Service is the single entry point both surfaces use. Writes to one plan are
// serialized by a per-key lock; reads never take it.
type Service struct {
	store       Store
	scheduler   *schedule.Scheduler
	coordinator *regen.Coordinator
	locks       *keyLocks
	jobs        *jobRegistry
}

func NewService(store Store, scheduler *schedule.Scheduler, coordinator *regen.Coordinator) *Service {
	return &Service{
		store:       store,
		scheduler:   scheduler,
		coordinator: coordinator,
		locks:       newKeyLocks(),
		jobs:        newJobRegistry(),
	}
}

// GetPlan returns the latest committed version of a week.
func (s *Service) GetPlan(ctx context.Context, ref PlanRef) (View, error) {
	p, err := s.load(ctx, ref.Key())
	if err != nil {
		return View{}, err
	}
	return viewOf(p), nil
}

// ListPlans returns an owner's live weeks, newest first.
func (s *Service) ListPlans(ctx context.Context, owner string) ([]View, error) {
	plans, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(plans))
	for _, p := range plans {
		views = append(views, viewOf(p))
	}
	return views, nil
}

// CreatePlan builds the pool from cart lines and stores an empty week. A live
// plan for the same week is replaced only with opts.Force, and the
// replacement continues its version sequence. Replacing a week that has
// locked slots also needs opts.ConfirmDestructive.
func (s *Service) CreatePlan(ctx context.Context, ref PlanRef, items []cart.Item, opts WriteOptions) (View, error) {
	if len(items) == 0 {
		return View{}, ErrEmptyCart
	}
	pool, err := pantry.Build(items)
	if err != nil {
		return View{}, err
	}

	key := ref.Key()
	release, err := s.acquire(ctx, key)
	if err != nil {
		return View{}, err
	}
	defer release()

	p := schedule.NewWeekPlan(ref.Owner, ref.WeekOf, pool, opts.source())
	if existing, err := s.store.Get(ctx, key); err == nil {
		if !opts.Force {
			return View{}, fmt.Errorf("%w: %s", ErrPlanExists, key)
		}
		if locked := existing.LockedSlots(); len(locked) > 0 && !opts.ConfirmDestructive {
			return View{}, &schedule.ConfirmationError{Operation: "replace week", LockedSlots: locked}
		}
		p.Version = existing.Version + 1
	} else if !errors.Is(err, planstore.ErrNotFound) {
		return View{}, err
	}

	if err := s.store.Create(ctx, p, opts.Force); err != nil {
		if errors.Is(err, planstore.ErrExists) {
			return View{}, fmt.Errorf("%w: %s", ErrPlanExists, key)
		}
		return View{}, err
	}
	log.Printf("Created week plan %s with %d ingredients (version %d)", key, pool.Len(), p.Version)
	return viewOf(p), nil
}

// AssignSlot fits a sketch into a slot.
func (s *Service) AssignSlot(ctx context.Context, ref PlanRef, id schedule.SlotID, sk meal.Sketch, opts WriteOptions) (View, *meal.Candidate, error) {
	var placed *meal.Candidate
	v, err := s.mutate(ctx, ref.Key(), opts, "assign "+id.String(), func(p *schedule.WeekPlan) (*schedule.WeekPlan, error) {
		next, cand, err := s.scheduler.AssignSlot(p, id, sk, schedule.AssignOptions{Clamp: opts.Clamp}, opts.source())
		placed = cand
		return next, err
	})
	return v, placed, err
}

func (s *Service) MoveSlot(ctx context.Context, ref PlanRef, from, to schedule.SlotID, opts WriteOptions) (View, error) {
	return s.mutate(ctx, ref.Key(), opts, fmt.Sprintf("move %s->%s", from, to), func(p *schedule.WeekPlan) (*schedule.WeekPlan, error) {
		return s.scheduler.MoveSlot(p, from, to, opts.source())
	})
}

func (s *Service) ClearSlot(ctx context.Context, ref PlanRef, id schedule.SlotID, opts WriteOptions) (View, error) {
	return s.mutate(ctx, ref.Key(), opts, "clear "+id.String(), func(p *schedule.WeekPlan) (*schedule.WeekPlan, error) {
		return s.scheduler.ClearSlot(p, id, opts.source())
	})
}

// ToggleLock flips a slot's lock and returns the new state.
func (s *Service) ToggleLock(ctx context.Context, ref PlanRef, id schedule.SlotID, opts WriteOptions) (View, bool, error) {
	var locked bool
	v, err := s.mutate(ctx, ref.Key(), opts, "toggle lock "+id.String(), func(p *schedule.WeekPlan) (*schedule.WeekPlan, error) {
		next, state, err := s.scheduler.ToggleLock(p, id, opts.source())
		locked = state
		return next, err
	})
	return v, locked, err
}

func (s *Service) ClearAllLocks(ctx context.Context, ref PlanRef, opts WriteOptions) (View, error) {
	return s.mutate(ctx, ref.Key(), opts, "clear locks", func(p *schedule.WeekPlan) (*schedule.WeekPlan, error) {
		return s.scheduler.ClearAllLocks(p, opts.ConfirmDestructive, opts.source())
	})
}

func (s *Service) ResetWeek(ctx context.Context, ref PlanRef, opts WriteOptions) (View, error) {
	return s.mutate(ctx, ref.Key(), opts, "reset", func(p *schedule.WeekPlan) (*schedule.WeekPlan, error) {
		return s.scheduler.ResetWeek(p, opts.ConfirmDestructive, opts.source())
	})
}

func (s *Service) Undo(ctx context.Context, ref PlanRef, opts WriteOptions) (View, error) {
	return s.mutate(ctx, ref.Key(), opts, "undo", func(p *schedule.WeekPlan) (*schedule.WeekPlan, error) {
		return s.scheduler.Undo(p, opts.source())
	})
}

// GenerateWeek replaces the whole week in one version. Problems such as an
// insufficient meal count are returned in the report, not as an error.
func (s *Service) GenerateWeek(ctx context.Context, ref PlanRef, requested int, opts WriteOptions) (View, *regen.Report, error) {
	var report *regen.Report
	v, err := s.mutate(ctx, ref.Key(), opts, "generate week", func(p *schedule.WeekPlan) (*schedule.WeekPlan, error) {
		next, r, err := s.coordinator.GenerateWeek(ctx, p, requested, opts.ConfirmDestructive, opts.source())
		report = r
		return next, err
	})
	return v, report, err
}

// RegenerateUnlocked refreshes unlocked slots in the caller's goroutine,
// committing one version per slot.
func (s *Service) RegenerateUnlocked(ctx context.Context, ref PlanRef, opts WriteOptions) (View, *regen.Report, error) {
	key := ref.Key()
	release, err := s.acquire(ctx, key)
	if err != nil {
		return View{}, nil, err
	}
	defer release()

	current, err := s.load(ctx, key)
	if err != nil {
		return View{}, nil, err
	}
	if err := checkVersion(current, opts); err != nil {
		return View{}, nil, err
	}
	final, report, err := s.regenerate(ctx, current, opts.source())
	return viewOf(final), report, err
}

func (s *Service) regenerate(ctx context.Context, current *schedule.WeekPlan, source schedule.Source) (*schedule.WeekPlan, *regen.Report, error) {
	prev := current.Version
	commit := func(ctx context.Context, next *schedule.WeekPlan) (*schedule.WeekPlan, error) {
		// A slot that finished filling is kept even if cancellation lands now.
		if err := s.commit(context.WithoutCancel(ctx), prev, next); err != nil {
			return nil, err
		}
		prev = next.Version
		return next, nil
	}
	final, report, err := s.coordinator.RegenerateUnlocked(ctx, current, source, commit)
	log.Printf("Regeneration of %s finished at version %d: %s", current.Key, final.Version, describe(report, err))
	return final, report, err
}

// DeletePlan discards a week and returns its last state. Locked slots need
// opts.ConfirmDestructive, as for a reset.
func (s *Service) DeletePlan(ctx context.Context, ref PlanRef, opts WriteOptions) (View, error) {
	key := ref.Key()
	release, err := s.acquire(ctx, key)
	if err != nil {
		return View{}, err
	}
	defer release()

	current, err := s.load(ctx, key)
	if err != nil {
		return View{}, err
	}
	if err := checkVersion(current, opts); err != nil {
		return View{}, err
	}
	if locked := current.LockedSlots(); len(locked) > 0 && !opts.ConfirmDestructive {
		return View{}, &schedule.ConfirmationError{Operation: "delete week", LockedSlots: locked}
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return View{}, err
	}
	log.Printf("Deleted week plan %s at version %d (%s)", key, current.Version, opts.source())
	return viewOf(current), nil
}

// Sweep deletes expired plans.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("Swept %d expired week plan(s)", n)
	}
	return n, nil
}

// RunningRegenerations counts background regenerations in flight.
func (s *Service) RunningRegenerations() int {
	return s.jobs.running()
}

func (s *Service) mutate(ctx context.Context, key string, opts WriteOptions, op string, fn func(p *schedule.WeekPlan) (*schedule.WeekPlan, error)) (View, error) {
	release, err := s.acquire(ctx, key)
	if err != nil {
		return View{}, err
	}
	defer release()

	current, err := s.load(ctx, key)
	if err != nil {
		return View{}, err
	}
	if err := checkVersion(current, opts); err != nil {
		log.Printf("Rejected %s on %s: %v", op, key, err)
		return View{}, err
	}

	next, err := fn(current)
	if err != nil {
		return View{}, err
	}
	if err := s.commit(ctx, current.Version, next); err != nil {
		return View{}, err
	}
	log.Printf("%s on %s: version %d -> %d (%s)", op, key, current.Version, next.Version, next.GenerationSource)
	return viewOf(next), nil
}

// acquire takes the plan's write lock. A plan being regenerated in the
// background refuses writers instead of queueing them.
func (s *Service) acquire(ctx context.Context, key string) (func(), error) {
	if s.jobs.isRunning(key) {
		return nil, fmt.Errorf("%w for %s", ErrRegenerationRunning, key)
	}
	return s.locks.acquire(ctx, key)
}

func (s *Service) load(ctx context.Context, key string) (*schedule.WeekPlan, error) {
	p, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, planstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, key)
		}
		return nil, err
	}
	return p, nil
}

// commit writes next if the stored plan is still at prev. Losing the race to
// another process reports the winner's state.
func (s *Service) commit(ctx context.Context, prev int64, next *schedule.WeekPlan) error {
	err := s.store.CompareAndSwap(ctx, prev, next)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, planstore.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrPlanNotFound, next.Key)
	case errors.Is(err, planstore.ErrVersionMismatch):
		current, loadErr := s.load(ctx, next.Key)
		if loadErr != nil {
			return loadErr
		}
		return &VersionConflictError{Expected: prev, Current: viewOf(current)}
	default:
		return err
	}
}

func checkVersion(current *schedule.WeekPlan, opts WriteOptions) error {
	if opts.Force || opts.ExpectedVersion == current.Version {
		return nil
	}
	return &VersionConflictError{Expected: opts.ExpectedVersion, Current: viewOf(current)}
}

func describe(report *regen.Report, err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case err != nil:
		return err.Error()
	case report == nil:
		return "nothing to do"
	default:
		return report.Describe()
	}
}
