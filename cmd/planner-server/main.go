package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cart-meal-planner/internal/app"
	"cart-meal-planner/internal/config"
	"cart-meal-planner/internal/httpapi"
	"cart-meal-planner/internal/telegram"

	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load Configuration
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.HasGenerator() {
		log.Fatal("GEMINI_API_KEY or GROQ_API_KEY environment variable not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize storage, generators and the planner
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	// 3. Planning view
	handler := httpapi.NewHandler(application.Service(), application.Metrics(), application.Health)
	server := httpapi.NewApp(handler, cfg.JWTSecret)

	// 4. Summary view (optional)
	if cfg.TelegramBotToken != "" {
		bot, err := telegram.NewBot(cfg, application.Service(), application.Sessions(), application.Metrics(), application.Health)
		if err != nil {
			log.Fatalf("Failed to initialize Telegram Bot: %v", err)
		}
		server.Post("/webhook", bot.WebhookHandler())
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set; summary view disabled")
	}

	// 5. Serve until a signal arrives, sweeping expired weeks alongside
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Planner server listening on port %s", cfg.Port)
		return server.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		return application.RunSweeper(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		return server.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped with error: %v", err)
		os.Exit(1)
	}
	log.Println("Server exiting")
}
