package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestNewFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DATABASE_PATH", "/tmp/planner.db")
		t.Setenv("PORT", "")
		t.Setenv("PLAN_TTL_HOURS", "")
		t.Setenv("SWEEP_INTERVAL_MINUTES", "")
		t.Setenv("SMALL_PORTION_THRESHOLD", "")
		t.Setenv("TELEGRAM_ALLOWED_USER_IDS", "")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.DatabasePath != "/tmp/planner.db" {
			t.Errorf("Expected DatabasePath '/tmp/planner.db', got '%s'", cfg.DatabasePath)
		}
		if cfg.Port != "8080" {
			t.Errorf("Expected Port '8080', got '%s'", cfg.Port)
		}
		if cfg.PlanTTL != 168*time.Hour {
			t.Errorf("Expected PlanTTL 168h, got %s", cfg.PlanTTL)
		}
		if cfg.SweepInterval != 30*time.Minute {
			t.Errorf("Expected SweepInterval 30m, got %s", cfg.SweepInterval)
		}
		if cfg.SmallPortionThreshold.String() != "1" {
			t.Errorf("Expected threshold 1, got %s", cfg.SmallPortionThreshold)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("DATABASE_PATH", "/data/p.db")
		t.Setenv("PORT", "9000")
		t.Setenv("PLAN_TTL_HOURS", "24")
		t.Setenv("SMALL_PORTION_THRESHOLD", "0.75")
		t.Setenv("TELEGRAM_ALLOWED_USER_IDS", "11, 22,33")
		t.Setenv("ADMIN_TELEGRAM_ID", "99")
		t.Setenv("GROQ_API_KEY", "groq_key")
		t.Setenv("GEMINI_API_KEY", "")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.Port != "9000" || cfg.PlanTTL != 24*time.Hour {
			t.Errorf("unexpected overrides: port=%s ttl=%s", cfg.Port, cfg.PlanTTL)
		}
		if cfg.SmallPortionThreshold.String() != "0.75" {
			t.Errorf("Expected threshold 0.75, got %s", cfg.SmallPortionThreshold)
		}
		if !reflect.DeepEqual(cfg.TelegramAllowedUserIDs, []int64{11, 22, 33}) {
			t.Errorf("unexpected allow list %v", cfg.TelegramAllowedUserIDs)
		}
		if !cfg.HasGenerator() {
			t.Error("Expected HasGenerator with a Groq key")
		}
		if !cfg.IsTelegramUserAllowed(22) || !cfg.IsTelegramUserAllowed(99) || cfg.IsTelegramUserAllowed(44) {
			t.Error("allow list not honored")
		}
	})

	t.Run("MissingDatabasePath", func(t *testing.T) {
		t.Setenv("DATABASE_PATH", "")
		os.Unsetenv("DATABASE_PATH")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing DATABASE_PATH, got nil")
		}
		expectedError := "DATABASE_PATH environment variable not set"
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("InvalidValues", func(t *testing.T) {
		cases := map[string]string{
			"PLAN_TTL_HOURS":            "soon",
			"SMALL_PORTION_THRESHOLD":   "-1",
			"TELEGRAM_ALLOWED_USER_IDS": "12,abc",
		}
		for key, value := range cases {
			t.Run(key, func(t *testing.T) {
				t.Setenv("DATABASE_PATH", "/tmp/planner.db")
				t.Setenv(key, value)
				if _, err := NewFromEnv(); err == nil {
					t.Errorf("Expected an error for %s=%s", key, value)
				}
			})
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CART_PLANNER_DOTENV_PROBE=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CART_PLANNER_DOTENV_PROBE", "")
	os.Unsetenv("CART_PLANNER_DOTENV_PROBE")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("CART_PLANNER_DOTENV_PROBE"); got != "loaded" {
		t.Errorf("Expected value from .env, got %q", got)
	}
}
