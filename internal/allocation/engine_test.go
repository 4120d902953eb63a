package allocation

import (
	"errors"
	"testing"

	"cart-meal-planner/internal/cart"
	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/pantry"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func buildPool(t *testing.T, items ...cart.Item) *pantry.Pool {
	t.Helper()
	p, err := pantry.Build(items)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return p
}

func item(name, qty, unit string) cart.Item {
	return cart.Item{Name: name, Quantity: d(qty), Unit: unit}
}

func useOf(c *meal.Candidate, name string) (meal.Use, bool) {
	for _, u := range c.IngredientsUsed {
		if u.IngredientName == name {
			return u, true
		}
	}
	return meal.Use{}, false
}

func TestPortion(t *testing.T) {
	e := NewEngine(d("1.0"))
	tests := []struct {
		name string
		ing  pantry.Ingredient
		role Role
		want string
	}{
		{"two pieces taken whole", pantry.Ingredient{Unit: "piece", TotalQty: d("2")}, RoleSupporting, "2"},
		{"few pieces", pantry.Ingredient{Unit: "piece", TotalQty: d("4")}, RoleSupporting, "1"},
		{"many pieces", pantry.Ingredient{Unit: "piece", TotalQty: d("12")}, RoleSupporting, "2"},
		{"two heads taken whole", pantry.Ingredient{Unit: "head", TotalQty: d("2")}, RoleSupporting, "2"},
		{"bunches counted", pantry.Ingredient{Unit: "bunch", TotalQty: d("4")}, RoleSupporting, "1"},
		{"small weight whole", pantry.Ingredient{Unit: "lb", TotalQty: d("0.7")}, RoleProtein, "0.7"},
		{"protein slice", pantry.Ingredient{Unit: "lb", TotalQty: d("3")}, RoleProtein, "1"},
		{"supporting slice", pantry.Ingredient{Unit: "lb", TotalQty: d("2")}, RoleSupporting, "0.5"},
		{"sliver avoided", pantry.Ingredient{Unit: "lb", TotalQty: d("1.2")}, RoleProtein, "1.2"},
		{"ounces scale", pantry.Ingredient{Unit: "oz", TotalQty: d("12")}, RoleSupporting, "12"},
		{"partly allocated", pantry.Ingredient{Unit: "lb", TotalQty: d("3"), AllocatedQty: d("2.5")}, RoleProtein, "0.5"},
		{"exhausted", pantry.Ingredient{Unit: "lb", TotalQty: d("1"), AllocatedQty: d("1")}, RoleProtein, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Portion(tt.ing, tt.role); !got.Equal(d(tt.want)) {
				t.Errorf("Portion = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFit_WholePortionChicken(t *testing.T) {
	pool := buildPool(t,
		item("Boneless Skinless Chicken Breast", "0.7", "lb"),
		item("Broccoli", "2", "lb"),
		item("Carrots", "12", "ct"),
	)
	e := NewEngine(d("1"))

	c, err := e.Fit(meal.Sketch{
		Title:        "Chicken Stir Fry",
		Protein:      "chicken breast",
		Ingredients:  meal.LooseStrings{"broccoli", "carrots", "soy sauce"},
		ProteinGrams: 40, TimeMinutes: 25,
		CookingMethods: meal.LooseStrings{"seared"},
	}, pool, FitOptions{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if err := Apply(pool, c, false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	chicken, _ := useOf(c, "chicken breast")
	if !chicken.Qty.Equal(d("0.7")) {
		t.Errorf("expected whole 0.7 lb chicken, got %s", chicken.Qty)
	}
	if !pool.Remaining("chicken breast").IsZero() {
		t.Errorf("expected chicken remaining 0, got %s", pool.Remaining("chicken breast"))
	}
	if _, ok := useOf(c, "soy sauce"); ok {
		t.Error("staple missing from pool must be dropped")
	}
	if c.ProteinSource != "chicken breast" || c.Kind != meal.KindMeal {
		t.Errorf("unexpected candidate: %+v", c)
	}
}

func TestFit_CarrotsSpreadAcrossFiveSlots(t *testing.T) {
	pool := buildPool(t,
		item("Carrots", "12", ""),
		item("Beef Steak", "5", "lb"),
		item("Onions", "10", "ct"),
	)
	e := NewEngine(d("1"))

	served := 0
	for i := 0; i < 5; i++ {
		c, err := e.Fit(meal.Sketch{
			Title:       "Steak and Carrots",
			Protein:     "beef steak",
			Ingredients: meal.LooseStrings{"carrots", "onions"},
			ProteinGrams: 35, TimeMinutes: 30,
		}, pool, FitOptions{})
		if err != nil {
			t.Fatalf("slot %d: Fit failed: %v", i, err)
		}
		carrots, _ := useOf(c, "carrots")
		if carrots.Qty.GreaterThan(d("2")) || carrots.Qty.LessThan(d("1")) {
			t.Errorf("slot %d took %s carrots, want 1-2", i, carrots.Qty)
		}
		if err := Apply(pool, c, false); err != nil {
			t.Fatalf("slot %d: Apply failed: %v", i, err)
		}
		served++
		if pool.Remaining("carrots").IsZero() && served < 3 {
			t.Fatalf("carrots exhausted after only %d slots", served)
		}
	}
	if err := pool.Check(); err != nil {
		t.Error(err)
	}
}

func TestFit_SupportingByLowestUtilization(t *testing.T) {
	pool := buildPool(t,
		item("Salmon", "2", "lb"),
		item("Zucchini", "6", ""),
		item("Peppers", "6", ""),
		item("Spinach", "6", ""),
		item("Asparagus", "6", ""),
		item("Kale", "6", ""),
	)
	if _, err := pool.Reserve("zucchini", d("4"), false); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Reserve("peppers", d("1"), false); err != nil {
		t.Fatal(err)
	}

	c, err := NewEngine(d("1")).Fit(meal.Sketch{
		Title:       "Salmon Bowl",
		Protein:     "salmon",
		Ingredients: meal.LooseStrings{"zucchini", "peppers", "spinach", "asparagus", "kale"},
		ProteinGrams: 34, TimeMinutes: 30,
	}, pool, FitOptions{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	var got []string
	for _, u := range c.IngredientsUsed[1:] {
		got = append(got, u.IngredientName)
	}
	want := []string{"spinach", "asparagus", "kale", "peppers"}
	if len(got) != len(want) {
		t.Fatalf("supporting = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("supporting = %v, want %v", got, want)
		}
	}
}

func TestFit_TopsUpSupportingFromPool(t *testing.T) {
	pool := buildPool(t,
		item("Pork Loin", "2", "lb"),
		item("Green Beans", "1", "lb"),
		item("Potatoes", "6", ""),
	)
	c, err := NewEngine(d("1")).Fit(meal.Sketch{
		Title: "Pork Chops", Protein: "pork loin", Ingredients: meal.LooseStrings{"green beans", "garlic"},
		ProteinGrams: 30, TimeMinutes: 35,
	}, pool, FitOptions{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, ok := useOf(c, "potatoes"); !ok {
		t.Errorf("expected potatoes to top up supporting, got %+v", c.IngredientsUsed)
	}
}

func TestFit_Failures(t *testing.T) {
	pool := buildPool(t,
		item("Chicken Thighs", "2", "lb"),
		item("Onions", "3", ""),
	)
	e := NewEngine(d("1"))

	_, err := e.Fit(meal.Sketch{Title: "Tofu Bowl", Protein: "tofu", Ingredients: meal.LooseStrings{"rice"}, ProteinGrams: 25, TimeMinutes: 30}, pool, FitOptions{})
	if !errors.Is(err, ErrNoProtein) {
		t.Errorf("expected ErrNoProtein, got %v", err)
	}

	_, err = e.Fit(meal.Sketch{Title: "Thighs", Protein: "chicken thighs", Ingredients: meal.LooseStrings{"onions"}, ProteinGrams: 30, TimeMinutes: 40}, pool, FitOptions{})
	if !errors.Is(err, ErrTooFewSupporting) {
		t.Errorf("expected ErrTooFewSupporting, got %v", err)
	}

	_, err = e.Fit(meal.Sketch{Title: "Thighs", Protein: "chicken thighs", Ingredients: meal.LooseStrings{"onions"}, ProteinGrams: 30, TimeMinutes: 40},
		pool, FitOptions{ExcludeProteins: map[string]bool{"chicken thighs": true}})
	if !errors.Is(err, ErrProteinExcluded) {
		t.Errorf("expected ErrProteinExcluded, got %v", err)
	}
}

func TestFit_Snack(t *testing.T) {
	pool := buildPool(t,
		item("Greek Yogurt", "32", "oz"),
		item("Blueberries", "1", "pint"),
	)
	c, err := NewEngine(d("1")).Fit(meal.Sketch{
		Title: "Yogurt Parfait", Ingredients: meal.LooseStrings{"greek yogurt", "blueberries", "granola"},
		ProteinGrams: 17, TimeMinutes: 5,
	}, pool, FitOptions{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if c.Kind != meal.KindSnack || len(c.IngredientsUsed) != 2 {
		t.Errorf("unexpected snack: %+v", c)
	}
	yogurt, _ := useOf(c, "greek yogurt")
	if !yogurt.Qty.Equal(d("8")) {
		t.Errorf("expected an 8 oz slice of yogurt, got %s", yogurt.Qty)
	}
}

func TestApply_RollsBackOnFailure(t *testing.T) {
	pool := buildPool(t,
		item("Shrimp", "1", "lb"),
		item("Lemons", "2", ""),
	)
	c := &meal.Candidate{IngredientsUsed: []meal.Use{
		{IngredientName: "shrimp", Qty: d("0.5"), Unit: "lb"},
		{IngredientName: "lemons", Qty: d("3"), Unit: "piece"},
	}}

	err := Apply(pool, c, false)
	if !errors.Is(err, pantry.ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
	if !pool.Remaining("shrimp").Equal(d("1")) {
		t.Errorf("shrimp reservation was not rolled back")
	}

	if err := Apply(pool, c, true); err != nil {
		t.Fatalf("clamped Apply failed: %v", err)
	}
	lemons, _ := useOf(c, "lemons")
	if !lemons.Qty.Equal(d("2")) {
		t.Errorf("expected clamped grant of 2 lemons, got %s", lemons.Qty)
	}

	if err := Release(pool, c); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !pool.Remaining("lemons").Equal(d("2")) || !pool.Remaining("shrimp").Equal(d("1")) {
		t.Error("Release did not restore the pool")
	}
}

func TestCounts(t *testing.T) {
	pool := buildPool(t,
		item("Chicken Breast", "2", "lb"),
		item("Ground Turkey", "1", "lb"),
		item("Eggs", "1", "dozen"),
		item("Apples", "4", ""),
		item("Bananas", "3", ""),
		item("Carrots", "4", ""),
	)
	if got := PossibleMealCount(pool); got != 2 {
		t.Errorf("PossibleMealCount = %d, want 2", got)
	}
	if got := SnackCount(pool); got != 2 {
		t.Errorf("SnackCount = %d, want 2", got)
	}

	many := buildPool(t,
		item("Chicken", "1", "lb"), item("Beef", "1", "lb"), item("Pork", "1", "lb"),
		item("Salmon", "1", "lb"), item("Shrimp", "1", "lb"),
	)
	if got := PossibleMealCount(many); got != 4 {
		t.Errorf("PossibleMealCount = %d, want capped 4", got)
	}
	if got := SnackCount(many); got != 0 {
		t.Errorf("SnackCount = %d, want 0", got)
	}
}
