package pantry

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"cart-meal-planner/internal/cart"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testPool(t *testing.T) *Pool {
	t.Helper()
	p, err := Build([]cart.Item{
		{Name: "Boneless, Skinless Chicken Breast", Quantity: d("0.7"), Unit: "lb"},
		{Name: "Organic Carrots", Quantity: d("12"), Unit: "ct"},
		{Name: "Broccoli", Quantity: d("1"), Unit: "lbs"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return p
}

func TestBuild(t *testing.T) {
	p := testPool(t)

	if p.Len() != 3 {
		t.Fatalf("expected 3 ingredients, got %d", p.Len())
	}

	chicken, ok := p.Get("chicken breast")
	if !ok {
		t.Fatalf("expected normalized key %q, have %+v", "chicken breast", p.Ingredients())
	}
	if chicken.Unit != "lb" || !chicken.TotalQty.Equal(d("0.7")) || !chicken.AllocatedQty.IsZero() {
		t.Errorf("unexpected chicken entry: %+v", chicken)
	}
	if chicken.Category != CategoryProtein {
		t.Errorf("expected protein category, got %s", chicken.Category)
	}

	carrots, _ := p.Get("carrots")
	if carrots.Unit != "piece" || !carrots.Discrete() {
		t.Errorf("expected discrete carrots, got %+v", carrots)
	}
}

func TestBuild_MergesAndRejects(t *testing.T) {
	p, err := Build([]cart.Item{
		{Name: "Organic Apples", Quantity: d("3"), Unit: ""},
		{Name: "apples", Quantity: d("2"), Unit: "each"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := p.Remaining("apples"); !got.Equal(d("5")) {
		t.Errorf("expected merged 5 apples, got %s", got)
	}

	_, err = Build([]cart.Item{
		{Name: "Spinach", Quantity: d("1"), Unit: "lb"},
		{Name: "spinach", Quantity: d("2"), Unit: "bag"},
	})
	if !errors.Is(err, ErrUnitMismatch) {
		t.Errorf("expected ErrUnitMismatch, got %v", err)
	}

	_, err = Build([]cart.Item{{Name: "Spinach", Quantity: d("0"), Unit: "lb"}})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestReserve(t *testing.T) {
	p := testPool(t)

	granted, err := p.Reserve("carrots", d("2"), false)
	if err != nil || !granted.Equal(d("2")) {
		t.Fatalf("Reserve = %s, %v", granted, err)
	}
	if got := p.Remaining("carrots"); !got.Equal(d("10")) {
		t.Errorf("remaining = %s, want 10", got)
	}

	_, err = p.Reserve("chicken breast", d("1"), false)
	var exhausted *PoolExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected PoolExhaustedError, got %v", err)
	}
	if exhausted.Ingredient != "chicken breast" || !exhausted.Available.Equal(d("0.7")) {
		t.Errorf("unexpected error context: %+v", exhausted)
	}
	if !errors.Is(err, ErrPoolExhausted) {
		t.Error("expected error to unwrap to ErrPoolExhausted")
	}
	if got := p.Remaining("chicken breast"); !got.Equal(d("0.7")) {
		t.Errorf("failed reserve must not change pool, remaining = %s", got)
	}

	granted, err = p.Reserve("chicken breast", d("1"), true)
	if err != nil || !granted.Equal(d("0.7")) {
		t.Errorf("clamped Reserve = %s, %v; want 0.7", granted, err)
	}
	if !p.Remaining("chicken breast").IsZero() {
		t.Error("expected chicken to be exhausted")
	}

	if _, err := p.Reserve("carrots", d("-1"), false); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestRemaining_Absent(t *testing.T) {
	p := testPool(t)
	if !p.Remaining("saffron").IsZero() {
		t.Error("absent ingredient must report zero remaining")
	}
}

func TestRelease(t *testing.T) {
	p := testPool(t)
	if _, err := p.Reserve("broccoli", d("0.5"), false); err != nil {
		t.Fatal(err)
	}

	if err := p.Release("broccoli", d("0.6")); !errors.Is(err, ErrOverRelease) {
		t.Errorf("expected ErrOverRelease, got %v", err)
	}
	if got := p.Remaining("broccoli"); !got.Equal(d("0.5")) {
		t.Errorf("rejected release must be a no-op, remaining = %s", got)
	}

	if err := p.Release("broccoli", d("0.5")); err != nil {
		t.Errorf("Release failed: %v", err)
	}
	if err := p.Release("saffron", d("1")); !errors.Is(err, ErrUnknownIngredient) {
		t.Errorf("expected ErrUnknownIngredient, got %v", err)
	}
}

// TestReserveRelease_RandomSequences drives the pool with random operations
// and checks the ledger bounds after every step.
func TestReserveRelease_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{"chicken breast", "carrots", "broccoli", "saffron"}

	for run := 0; run < 200; run++ {
		p := testPool(t)
		for step := 0; step < 50; step++ {
			name := names[rng.Intn(len(names))]
			qty := decimal.NewFromInt(int64(rng.Intn(400))).Div(decimal.NewFromInt(100))

			switch rng.Intn(3) {
			case 0:
				_, _ = p.Reserve(name, qty, false)
			case 1:
				_, _ = p.Reserve(name, qty, true)
			default:
				_ = p.Release(name, qty)
			}

			if err := p.Check(); err != nil {
				t.Fatalf("run %d step %d: %v", run, step, err)
			}
		}
	}
}

func TestPool_JSONRoundTrip(t *testing.T) {
	p := testPool(t)
	if _, err := p.Reserve("chicken breast", d("0.35"), false); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored Pool
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got, _ := restored.Get("chicken breast")
	if !got.AllocatedQty.Equal(d("0.35")) || !got.TotalQty.Equal(d("0.7")) {
		t.Errorf("quantities did not round-trip exactly: %+v", got)
	}
	if restored.Ingredients()[1].Name != "carrots" {
		t.Errorf("cart order lost: %+v", restored.Ingredients())
	}
}

func TestPool_UnmarshalRejectsInvalidLedger(t *testing.T) {
	bad := `[{"name":"carrots","unit":"piece","category":"produce","total_qty":"2","allocated_qty":"3"}]`
	var p Pool
	if err := json.Unmarshal([]byte(bad), &p); err == nil {
		t.Error("expected over-allocated ledger to be rejected")
	}
}

func TestClone_IsIndependent(t *testing.T) {
	p := testPool(t)
	c := p.Clone()
	if _, err := c.Reserve("carrots", d("5"), false); err != nil {
		t.Fatal(err)
	}
	if !p.Remaining("carrots").Equal(d("12")) {
		t.Error("reserving on a clone must not affect the original")
	}
}
