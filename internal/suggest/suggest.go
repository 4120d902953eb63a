package suggest

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"text/template"
	"time"

	"cart-meal-planner/internal/llm"
	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/pantry"
	"cart-meal-planner/internal/regen"
	"cart-meal-planner/internal/shared"
)

const AgentName = "MealSuggester"

//go:embed suggest_prompt.md
var suggestPrompt string

var promptTmpl = template.Must(template.New("Suggest").Parse(suggestPrompt))

const repairSuffix = "\n\nYour previous reply was not valid JSON. Reply with the JSON array only."

// MetaRecorder stores per-call execution metadata.
type MetaRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// Generator asks a language model for meal sketches. It satisfies
// regen.Generator.
type Generator struct {
	textGen  llm.TextGenerator
	recorder MetaRecorder
}

func NewGenerator(textGen llm.TextGenerator, recorder MetaRecorder) *Generator {
	return &Generator{textGen: textGen, recorder: recorder}
}

type promptData struct {
	Kind        meal.Kind
	Count       int
	Ingredients []pantry.Ingredient
	Excluded    []string
}

// Suggest returns raw sketches for the request. A reply that is not valid
// JSON is re-asked once before giving up.
func (g *Generator) Suggest(ctx context.Context, req regen.Request) ([]meal.Sketch, error) {
	if req.CountNeeded <= 0 {
		return nil, nil
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var usage shared.TokenUsage
	defer func() {
		g.record(ctx, shared.AgentMeta{AgentName: AgentName, Usage: usage, Latency: time.Since(start)})
	}()

	for attempt := 0; attempt < 2; attempt++ {
		resp, err := g.textGen.GenerateContent(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("meal suggestion failed: %w", err)
		}
		usage = usage.Add(resp.Usage)

		sketches, err := meal.ParseSketches(resp.Content)
		if err == nil {
			return sketches, nil
		}
		if !errors.Is(err, meal.ErrInvalidSketch) {
			return nil, err
		}
		log.Printf("suggest: unparseable reply (attempt %d): %v", attempt+1, err)
		prompt += repairSuffix
	}
	return nil, fmt.Errorf("%w: generator kept returning malformed JSON", meal.ErrInvalidSketch)
}

func (g *Generator) record(ctx context.Context, meta shared.AgentMeta) {
	if g.recorder == nil {
		return
	}
	// Metrics must not fail a suggestion; the caller's ctx may already be done.
	if err := g.recorder.RecordMeta(context.WithoutCancel(ctx), meta); err != nil {
		log.Printf("suggest: failed to record metrics: %v", err)
	}
}

// BuildPrompt renders the suggestion prompt for a request.
func BuildPrompt(req regen.Request) (string, error) {
	kind := req.KindNeeded
	if kind == "" {
		kind = meal.KindMeal
	}
	data := promptData{
		Kind:        kind,
		Count:       req.CountNeeded,
		Ingredients: req.AvailableIngredients,
		Excluded:    req.ProteinExclusions,
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render suggestion prompt: %w", err)
	}
	return buf.String(), nil
}
