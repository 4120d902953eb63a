package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cart-meal-planner/internal/config"
	"cart-meal-planner/internal/database"
	"cart-meal-planner/internal/llm"
	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/planner"
	"cart-meal-planner/internal/shared"
	"cart-meal-planner/internal/telegram"

	"github.com/shopspring/decimal"
)

type mockTextGen struct {
	res string
}

func (m *mockTextGen) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	return llm.ContentResponse{
		Content: m.res,
		Usage:   shared.TokenUsage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60, Model: "mock"},
	}, nil
}

var weekOf = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T, reply string, ttl time.Duration) *App {
	t.Helper()
	cfg := &config.Config{
		DatabasePath:          filepath.Join(t.TempDir(), "app.db"),
		PlanTTL:               ttl,
		SweepInterval:         time.Minute,
		SmallPortionThreshold: decimal.NewFromInt(1),
	}
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	a := newApp(cfg, db, &mockTextGen{res: reply}, nil)
	t.Cleanup(func() { a.Close() })
	return a
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadCartFile(t *testing.T) {
	text := writeFile(t, "cart.txt", "# weekly order\n2 lb Chicken Breast\n\n12 Carrots\n")
	items, err := ReadCartFile(text)
	if err != nil || len(items) != 2 {
		t.Fatalf("text cart: %v, %v", items, err)
	}

	html := writeFile(t, "order.html", `<html><body><ul>
		<li>1 lb Salmon</li>
		<li>3 lb Broccoli</li>
		<li>Order total</li>
	</ul></body></html>`)
	items, err = ReadCartFile(html)
	if err != nil || len(items) != 2 || items[0].Name != "Salmon" {
		t.Fatalf("html cart: %v, %v", items, err)
	}

	if _, err := ReadCartFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestImportCartAndSummary(t *testing.T) {
	reply := `[{"title":"Chicken Tray Bake","protein":"chicken breast","ingredients":["carrots","broccoli"],"protein_grams":40,"time_minutes":35,"cooking_methods":["roasted"]}]`
	a := newTestApp(t, reply, time.Hour)
	ctx := context.Background()
	path := writeFile(t, "cart.txt", "2 lb Chicken Breast\n3 lb Broccoli\n12 Carrots\n")

	v, err := a.ImportCart(ctx, "alice", weekOf, path, false)
	if err != nil {
		t.Fatalf("ImportCart failed: %v", err)
	}
	if v.Version != 0 || v.Plan.Pool.Len() != 3 {
		t.Errorf("unexpected import: version %d, %d ingredients", v.Version, v.Plan.Pool.Len())
	}
	if _, err := a.ImportCart(ctx, "alice", weekOf, path, false); !errors.Is(err, planner.ErrPlanExists) {
		t.Errorf("expected ErrPlanExists, got %v", err)
	}

	// The generator goes through the suggestion adapter and records usage.
	ref := planner.PlanRef{Owner: "alice", WeekOf: weekOf}
	v, report, err := a.Service().GenerateWeek(ctx, ref, 1, planner.WriteOptions{ExpectedVersion: 0})
	if err != nil {
		t.Fatalf("GenerateWeek failed: %v", err)
	}
	if v.Plan.MealCount(meal.KindMeal) != 1 {
		t.Errorf("expected one meal, report: %s", report.Describe())
	}
	usage, err := a.Metrics().GetDailyUsage(ctx, 1)
	if err != nil || len(usage) != 1 || usage[0].TotalPrompt < 50 {
		t.Errorf("expected recorded generator usage, got %+v, %v", usage, err)
	}

	var out bytes.Buffer
	if err := WriteSummary(&out, v); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Week of 2026-10-19 (alice, version 1)", "Chicken Tray Bake", "chicken breast", "LEFT"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("summary missing %q:\n%s", want, out.String())
		}
	}
}

func TestSweep(t *testing.T) {
	a := newTestApp(t, "[]", 50*time.Millisecond)
	ctx := context.Background()
	path := writeFile(t, "cart.txt", "2 lb Chicken Breast\n")
	if _, err := a.ImportCart(ctx, "alice", weekOf, path, false); err != nil {
		t.Fatal(err)
	}
	if err := a.Sessions().Save(ctx, &telegram.Session{ChatID: 1, Owner: "tg:1", WeekOf: weekOf}); err != nil {
		t.Fatal(err)
	}
	if h := a.Health(); h.DatabaseSize == "0 B" || h.RunningRegenJobs != 0 {
		t.Errorf("unexpected health %+v", h)
	}

	time.Sleep(100 * time.Millisecond)
	plans, sessions, err := a.Sweep(ctx)
	if err != nil || plans != 1 || sessions != 1 {
		t.Fatalf("Sweep = %d plans, %d sessions, %v; want 1, 1", plans, sessions, err)
	}
	if _, err := a.Service().GetPlan(ctx, planner.PlanRef{Owner: "alice", WeekOf: weekOf}); !errors.Is(err, planner.ErrPlanNotFound) {
		t.Errorf("expected swept plan to be gone, got %v", err)
	}
	if n, err := a.CleanupMetrics(ctx, 30); err != nil || n != 0 {
		t.Errorf("CleanupMetrics = %d, %v", n, err)
	}
}
