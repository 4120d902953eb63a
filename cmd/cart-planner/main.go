package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cart-meal-planner/internal/app"
	"cart-meal-planner/internal/config"
	"cart-meal-planner/internal/httpapi"
	"cart-meal-planner/internal/planner"
	"cart-meal-planner/internal/schedule"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	switch os.Args[1] {
	case "import":
		importCmd := flag.NewFlagSet("import", flag.ExitOnError)
		week := importCmd.String("week", "", "Any date in the target week (YYYY-MM-DD, default current week)")
		force := importCmd.Bool("force", false, "Replace an existing week")
		importCmd.Parse(os.Args[2:])
		if importCmd.NArg() != 2 {
			log.Fatal("Usage: cart-planner import [-week YYYY-MM-DD] [-force] <owner> <cart-file>")
		}

		v, err := application.ImportCart(ctx, importCmd.Arg(0), parseWeek(*week), importCmd.Arg(1), *force)
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		fmt.Printf("Imported %d ingredients into %s (version %d).\n", v.Plan.Pool.Len(), v.Plan.Key, v.Version)
	case "show":
		showCmd := flag.NewFlagSet("show", flag.ExitOnError)
		week := showCmd.String("week", "", "Any date in the week (YYYY-MM-DD, default current week)")
		showCmd.Parse(os.Args[2:])
		if showCmd.NArg() != 1 {
			log.Fatal("Usage: cart-planner show [-week YYYY-MM-DD] <owner>")
		}

		ref := planner.PlanRef{Owner: showCmd.Arg(0), WeekOf: parseWeek(*week)}
		v, err := application.Service().GetPlan(ctx, ref)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", ref.Key(), err)
		}
		if err := app.WriteSummary(os.Stdout, v); err != nil {
			log.Fatalf("Failed to print summary: %v", err)
		}
	case "sweep":
		plans, sessions, err := application.Sweep(ctx)
		if err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		fmt.Printf("Removed %d expired plans and %d chat sessions.\n", plans, sessions)
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := application.CleanupMetrics(ctx, *days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	case "token":
		tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
		ttl := tokenCmd.Duration("ttl", 30*24*time.Hour, "Token lifetime")
		tokenCmd.Parse(os.Args[2:])
		if tokenCmd.NArg() != 1 {
			log.Fatal("Usage: cart-planner token [-ttl 720h] <owner>")
		}
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET environment variable not set")
		}

		token, err := httpapi.IssueToken(cfg.JWTSecret, tokenCmd.Arg(0), *ttl)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		fmt.Println(token)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func parseWeek(s string) time.Time {
	if s == "" {
		return schedule.WeekOf(time.Now())
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		log.Fatalf("Invalid -week %q: want YYYY-MM-DD", s)
	}
	return schedule.WeekOf(t)
}

func printUsage() {
	fmt.Println("Usage: cart-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  import             Create a week from a text or HTML cart file")
	fmt.Println("  show               Print a week and what is left of its cart")
	fmt.Println("  sweep              Delete expired weeks and chat sessions")
	fmt.Println("  metrics-cleanup    Remove old metric records")
	fmt.Println("  token              Issue a planning view bearer token for an owner")
}
