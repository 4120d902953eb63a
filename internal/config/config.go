package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string
	Port         string
	JWTSecret    string

	PlanTTL               time.Duration
	SweepInterval         time.Duration
	SmallPortionThreshold decimal.Decimal

	GeminiAPIKey string
	GeminiModel  string
	GroqAPIKey   string
	GroqModel    string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
}

// LoadDotEnv reads a .env file when one exists. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	databasePath := os.Getenv("DATABASE_PATH")
	if databasePath == "" {
		return nil, fmt.Errorf("DATABASE_PATH environment variable not set")
	}

	ttlHours, err := getIntEnv("PLAN_TTL_HOURS", 168)
	if err != nil {
		return nil, err
	}
	sweepMinutes, err := getIntEnv("SWEEP_INTERVAL_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	if ttlHours <= 0 || sweepMinutes <= 0 {
		return nil, fmt.Errorf("PLAN_TTL_HOURS and SWEEP_INTERVAL_MINUTES must be positive")
	}

	threshold, err := decimal.NewFromString(getEnv("SMALL_PORTION_THRESHOLD", "1.0"))
	if err != nil || !threshold.IsPositive() {
		return nil, fmt.Errorf("SMALL_PORTION_THRESHOLD must be a positive number")
	}

	// Telegram Config (optional; the bot is disabled without a token)
	allowed, err := parseIDList(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}
	adminID, err := getInt64Env("ADMIN_TELEGRAM_ID", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabasePath:           databasePath,
		Port:                   getEnv("PORT", "8080"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		PlanTTL:                time.Duration(ttlHours) * time.Hour,
		SweepInterval:          time.Duration(sweepMinutes) * time.Minute,
		SmallPortionThreshold:  threshold,
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GroqAPIKey:             os.Getenv("GROQ_API_KEY"),
		GroqModel:              getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:     os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowedUserIDs: allowed,
		AdminTelegramID:        adminID,
	}, nil
}

// HasGenerator reports whether any suggestion backend is configured.
func (c *Config) HasGenerator() bool {
	return c.GeminiAPIKey != "" || c.GroqAPIKey != ""
}

// IsTelegramUserAllowed reports whether a chat user may drive the bot.
// An empty allow list admits everyone.
func (c *Config) IsTelegramUserAllowed(id int64) bool {
	if id != 0 && id == c.AdminTelegramID {
		return true
	}
	if len(c.TelegramAllowedUserIDs) == 0 {
		return true
	}
	for _, allowed := range c.TelegramAllowedUserIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getInt64Env(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
