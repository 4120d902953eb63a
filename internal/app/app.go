package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"cart-meal-planner/internal/allocation"
	"cart-meal-planner/internal/config"
	"cart-meal-planner/internal/database"
	"cart-meal-planner/internal/llm"
	"cart-meal-planner/internal/metrics"
	"cart-meal-planner/internal/planner"
	"cart-meal-planner/internal/planstore"
	"cart-meal-planner/internal/regen"
	"cart-meal-planner/internal/schedule"
	"cart-meal-planner/internal/suggest"
	"cart-meal-planner/internal/telegram"
)

// App holds the application's dependencies.
type App struct {
	cfg      *config.Config
	db       *database.DB
	metrics  *metrics.Store
	sessions *telegram.SessionRepository
	service  *planner.Service
	closers  []llm.Closer
	started  time.Time
}

// New opens the database and wires the planner. Generators are built from
// whichever API keys are configured; with none, suggestions fail at call
// time while imports and edits keep working.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	textGen, closers, err := newTextGenerator(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return newApp(cfg, db, textGen, closers), nil
}

func newApp(cfg *config.Config, db *database.DB, textGen llm.TextGenerator, closers []llm.Closer) *App {
	plans := planstore.NewStore(db.SQL, cfg.PlanTTL)
	metricsStore := metrics.NewStore(db.SQL)
	scheduler := schedule.NewScheduler(allocation.NewEngine(cfg.SmallPortionThreshold))
	generator := suggest.NewGenerator(textGen, metricsStore)
	return &App{
		cfg:      cfg,
		db:       db,
		metrics:  metricsStore,
		sessions: telegram.NewSessionRepository(db.SQL, cfg.PlanTTL),
		service:  planner.NewService(plans, scheduler, regen.NewCoordinator(scheduler, generator)),
		closers:  closers,
		started:  time.Now(),
	}
}

// newTextGenerator prefers Groq and falls back to Gemini.
func newTextGenerator(ctx context.Context, cfg *config.Config) (llm.TextGenerator, []llm.Closer, error) {
	var chain llm.Fallback
	var closers []llm.Closer
	if cfg.GroqAPIKey != "" {
		chain = append(chain, llm.NewGroqClient(cfg))
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		chain = append(chain, gemini)
		closers = append(closers, gemini)
	}
	if len(chain) == 0 {
		log.Println("Warning: no generator API key configured; meal suggestions are disabled")
	}
	return chain, closers, nil
}

func (a *App) Service() *planner.Service { return a.service }

func (a *App) Metrics() *metrics.Store { return a.metrics }

func (a *App) Sessions() *telegram.SessionRepository { return a.sessions }

// Health snapshots the process for the status endpoint and /stats.
func (a *App) Health() metrics.Health {
	return metrics.Snapshot(a.db.Path, a.started, a.service.RunningRegenerations())
}

// Close releases generator clients and the database.
func (a *App) Close() error {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Printf("Warning: failed to close generator client: %v", err)
		}
	}
	return a.db.Close()
}

// Sweep deletes expired week plans and chat sessions.
func (a *App) Sweep(ctx context.Context) (plans, sessions int64, err error) {
	plans, err = a.service.Sweep(ctx)
	if err != nil {
		return 0, 0, err
	}
	sessions, err = a.sessions.CleanupExpired(ctx)
	if err != nil {
		return plans, 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return plans, sessions, nil
}

// RunSweeper sweeps on the configured interval until ctx is cancelled.
func (a *App) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			plans, sessions, err := a.Sweep(ctx)
			if err != nil {
				log.Printf("Sweep failed: %v", err)
				continue
			}
			if plans > 0 || sessions > 0 {
				log.Printf("Sweep removed %d expired plan(s) and %d session(s)", plans, sessions)
			}
		}
	}
}

// CleanupMetrics removes execution metrics older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	return a.metrics.Cleanup(ctx, days)
}
