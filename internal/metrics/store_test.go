package metrics

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cart-meal-planner/internal/database"
	"cart-meal-planner/internal/shared"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.db")
	db, err := database.NewDB(path)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL), path
}

func TestStore_DailyUsageAndCleanup(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	records := []ExecutionMetric{
		{AgentName: "suggest", Model: "gemini", PromptTokens: 100, CompletionTokens: 40, Timestamp: now.Add(-time.Hour)},
		{AgentName: "suggest", Model: "gemini", PromptTokens: 50, CompletionTokens: 10, Timestamp: now.Add(-2 * time.Hour)},
		{AgentName: "suggest", Model: "groq", PromptTokens: 7, CompletionTokens: 3, Timestamp: now.AddDate(0, 0, -1)},
		{AgentName: "suggest", Model: "groq", PromptTokens: 1, CompletionTokens: 1, Timestamp: now.AddDate(0, 0, -40)},
	}
	for _, r := range records {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	usage, err := s.GetDailyUsage(ctx, 7)
	if err != nil {
		t.Fatalf("GetDailyUsage failed: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("expected 2 days of usage, got %d", len(usage))
	}
	today := usage[0]
	if today.Date != "2026-10-19" || today.TotalPrompt != 150 || today.TotalCompletion != 50 || today.TotalExecution != 2 {
		t.Errorf("unexpected totals for today: %+v", today)
	}

	removed, err := s.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 row removed, got %d", removed)
	}
}

func TestStore_RecordMetaSkipsEmptyUsage(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordMeta(ctx, shared.AgentMeta{AgentName: "suggest"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordMeta(ctx, shared.AgentMeta{
		AgentName: "suggest",
		Usage:     shared.TokenUsage{PromptTokens: 12, CompletionTokens: 4, Model: "gemini"},
		Latency:   250 * time.Millisecond,
	}); err != nil {
		t.Fatal(err)
	}

	usage, err := s.GetDailyUsage(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(usage) != 1 || usage[0].TotalExecution != 1 {
		t.Errorf("expected exactly one recorded execution, got %+v", usage)
	}
}

func TestSnapshot(t *testing.T) {
	_, path := newTestStore(t)
	h := Snapshot(path, time.Now().Add(-time.Minute), 2)
	if h.RunningRegenJobs != 2 || h.Goroutines == 0 {
		t.Errorf("unexpected snapshot: %+v", h)
	}
	if h.DatabaseSize == "0 B" {
		t.Error("expected a non-empty database size")
	}
	if !strings.Contains(h.Lines(), "Regenerations running: 2") {
		t.Errorf("unexpected rendering:\n%s", h.Lines())
	}
}
