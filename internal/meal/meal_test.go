package meal

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		time        int
		methods     []string
		ingredients []string
		protein     int
		want        Kind
	}{
		{"quick raw plate", 10, []string{"raw"}, []string{"carrots", "hummus"}, 8, KindSnack},
		{"quick seared steak", 15, []string{"seared"}, []string{"steak", "broccoli"}, 35, KindMeal},
		{"chilled yogurt parfait", 25, []string{"layered"}, []string{"greek yogurt", "blueberries", "granola"}, 17, KindSnack},
		{"high protein yogurt bowl", 25, nil, []string{"greek yogurt", "berries"}, 30, KindSnack},
		{"roasted chicken tray bake", 40, []string{"roasted"}, []string{"chicken thighs", "carrots"}, 38, KindMeal},
		{"slow veggie soup", 45, []string{"simmered"}, []string{"carrots", "celery"}, 6, KindSnack},
		{"baked yogurt custard", 30, []string{"baked"}, []string{"greek yogurt", "apples"}, 25, KindSnack},
		{"baked salmon", 30, []string{"Baked"}, []string{"salmon", "asparagus"}, 32, KindMeal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.time, tt.methods, tt.ingredients, tt.protein); got != tt.want {
				t.Errorf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseSketches_LooseShapes(t *testing.T) {
	payload := "```json\n" + `{
		"meals": [
			{"title": "Sheet Pan Chicken", "protein": "chicken breast", "ingredients": ["broccoli", {"name": "carrots"}],
			 "protein_grams": "42g", "time_minutes": 35, "servings": "2", "cooking_methods": "roasted, baked"},
			{"title": "Parfait", "ingredients": "greek yogurt, blueberries", "protein_grams": 17.4, "time_minutes": null}
		]
	}` + "\n```"

	sketches, err := ParseSketches(payload)
	if err != nil {
		t.Fatalf("ParseSketches failed: %v", err)
	}
	if len(sketches) != 2 {
		t.Fatalf("expected 2 sketches, got %d", len(sketches))
	}

	first := sketches[0]
	if first.ProteinGrams != 42 || first.Servings != 2 || first.TimeMinutes != 35 {
		t.Errorf("loose numbers not coerced: %+v", first)
	}
	if len(first.Ingredients) != 2 || first.Ingredients[1] != "carrots" {
		t.Errorf("ingredient objects not coerced: %v", first.Ingredients)
	}
	if len(first.CookingMethods) != 2 || first.CookingMethods[1] != "baked" {
		t.Errorf("comma list not split: %v", first.CookingMethods)
	}

	if sketches[1].ProteinGrams != 17 {
		t.Errorf("expected rounded protein 17, got %d", sketches[1].ProteinGrams)
	}
}

func TestParseSketches_Array(t *testing.T) {
	sketches, err := ParseSketches(`[{"title":"Apple Slices","ingredients":["apples"],"kind":"snack"}]`)
	if err != nil || len(sketches) != 1 {
		t.Fatalf("ParseSketches = %v, %v", sketches, err)
	}
}

func TestParseSketches_Garbage(t *testing.T) {
	if _, err := ParseSketches("I could not think of anything"); !errors.Is(err, ErrInvalidSketch) {
		t.Errorf("expected ErrInvalidSketch for non-JSON response, got %v", err)
	}
	if _, err := ParseSketches(`{"note":"nothing"}`); !errors.Is(err, ErrInvalidSketch) {
		t.Errorf("expected ErrInvalidSketch, got %v", err)
	}
}

func TestSketchValidate(t *testing.T) {
	s, err := Sketch{Title: " Parfait ", Ingredients: LooseStrings{"greek yogurt", " "}, ProteinGrams: 17, TimeMinutes: 5}.Validate()
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if s.Title != "Parfait" || s.Kind != string(KindSnack) || s.Servings != 1 || len(s.Ingredients) != 1 {
		t.Errorf("unexpected validated sketch: %+v", s)
	}

	s, err = Sketch{Title: "Steak Night", Protein: "steak", Ingredients: LooseStrings{"potatoes"}, ProteinGrams: 40, TimeMinutes: 30, CookingMethods: LooseStrings{"grilled"}}.Validate()
	if err != nil || s.Kind != string(KindMeal) {
		t.Errorf("expected meal, got %+v, %v", s, err)
	}

	bad := []Sketch{
		{Title: "", Ingredients: LooseStrings{"x"}},
		{Title: "Nothing"},
		{Title: "Negative", Ingredients: LooseStrings{"x"}, ProteinGrams: -1},
		{Title: "Brunch", Ingredients: LooseStrings{"x"}, Kind: "brunch"},
	}
	for _, b := range bad {
		if _, err := b.Validate(); !errors.Is(err, ErrInvalidSketch) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidSketch", b, err)
		}
	}
}

func TestCandidateClone(t *testing.T) {
	c := &Candidate{ID: NewID(), Title: "Bowl", IngredientsUsed: []Use{{IngredientName: "rice"}}}
	cp := c.Clone()
	cp.IngredientsUsed[0].IngredientName = "quinoa"
	if c.IngredientsUsed[0].IngredientName != "rice" {
		t.Error("clone shares ingredient slice with original")
	}
	if !c.Uses("rice") || c.Uses("quinoa") {
		t.Error("Uses reported wrong membership")
	}
}
