package planstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cart-meal-planner/internal/cart"
	"cart-meal-planner/internal/database"
	"cart-meal-planner/internal/pantry"
	"cart-meal-planner/internal/schedule"

	"github.com/shopspring/decimal"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "plans.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c := &clock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	s := NewStore(db.SQL, 24*time.Hour)
	s.SetClock(c.now)
	return s, c
}

func newPlan(t *testing.T, owner string) *schedule.WeekPlan {
	t.Helper()
	pool, err := pantry.Build([]cart.Item{
		{Name: "Chicken Breast", Quantity: decimal.RequireFromString("2.5"), Unit: "lb"},
		{Name: "Carrots", Quantity: decimal.NewFromInt(12), Unit: "piece"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return schedule.NewWeekPlan(owner, time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), pool, schedule.SourceSystem)
}

func TestStore_CreateAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p := newPlan(t, "alice")

	if err := s.Create(ctx, p, false); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, p.Key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Version != p.Version || got.Owner != "alice" {
		t.Errorf("got version %d owner %q", got.Version, got.Owner)
	}
	ing, ok := got.Pool.Get("chicken breast")
	if !ok || !ing.TotalQty.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("pool did not survive storage: %+v", ing)
	}

	if err := s.Create(ctx, p, false); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
	if err := s.Create(ctx, p, true); err != nil {
		t.Errorf("overwrite failed: %v", err)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Get(context.Background(), "nobody:2026-10-19"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_CompareAndSwap(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p := newPlan(t, "alice")
	if err := s.Create(ctx, p, false); err != nil {
		t.Fatal(err)
	}

	next := p.Clone()
	next.Version = p.Version + 1
	if err := s.CompareAndSwap(ctx, p.Version, next); err != nil {
		t.Fatalf("CompareAndSwap failed: %v", err)
	}

	// A second writer still holding the old version loses.
	stale := p.Clone()
	stale.Version = p.Version + 1
	if err := s.CompareAndSwap(ctx, p.Version, stale); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("expected ErrVersionMismatch, got %v", err)
	}

	got, err := s.Get(ctx, p.Key)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != next.Version {
		t.Errorf("expected version %d, got %d", next.Version, got.Version)
	}

	missing := newPlan(t, "bob")
	if err := s.CompareAndSwap(ctx, 1, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Expiry(t *testing.T) {
	s, c := newTestStore(t)
	ctx := context.Background()
	p := newPlan(t, "alice")
	if err := s.Create(ctx, p, false); err != nil {
		t.Fatal(err)
	}

	// Writes slide the expiry forward.
	c.advance(20 * time.Hour)
	next := p.Clone()
	next.Version++
	if err := s.CompareAndSwap(ctx, p.Version, next); err != nil {
		t.Fatal(err)
	}
	c.advance(20 * time.Hour)
	if _, err := s.Get(ctx, p.Key); err != nil {
		t.Fatalf("plan expired despite refresh: %v", err)
	}

	c.advance(5 * time.Hour)
	if _, err := s.Get(ctx, p.Key); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired plan to read as missing, got %v", err)
	}
	// An expired key may be created again without overwrite.
	if err := s.Create(ctx, p, false); err != nil {
		t.Errorf("Create over expired plan failed: %v", err)
	}
}

func TestStore_DeleteExpiredAndList(t *testing.T) {
	s, c := newTestStore(t)
	ctx := context.Background()

	old := newPlan(t, "alice")
	if err := s.Create(ctx, old, false); err != nil {
		t.Fatal(err)
	}
	c.advance(23 * time.Hour)

	recent := newPlan(t, "alice")
	recent.WeekOf = recent.WeekOf.AddDate(0, 0, 7)
	recent.Key = schedule.PlanKey("alice", recent.WeekOf)
	if err := s.Create(ctx, recent, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, newPlan(t, "bob"), false); err != nil {
		t.Fatal(err)
	}

	plans, err := s.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 2 || plans[0].Key != recent.Key {
		t.Fatalf("expected newest week first, got %d plans", len(plans))
	}

	c.advance(2 * time.Hour)
	n, err := s.DeleteExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired plan removed, got %d", n)
	}

	plans, err = s.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 1 || plans[0].Key != recent.Key {
		t.Errorf("expected only the recent plan to remain, got %d", len(plans))
	}
}

func TestStore_Delete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p := newPlan(t, "alice")
	if err := s.Create(ctx, p, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, p.Key); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, p.Key); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
