package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"stockcheck/backend/internal/logger"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	MigrateOnStart        bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	DefaultTaxRate        decimal.Decimal
	ReportLocale          string
	RolloverCron          string
	RolloverCarryZero     bool
	LogLevel              string
	LogFormat             string
}

// Load reads the environment, after merging in a .env file when one is
// present. ENV_FILE names an explicit file, which must then exist.
func Load() (Config, error) {
	if envFile := strings.TrimSpace(os.Getenv("ENV_FILE")); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		// A missing .env is fine; configuration may come from the environment.
		_ = godotenv.Load()
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("REPORT_CACHE_TTL_SECONDS", "300"))
	if err != nil || ttl < 1 {
		ttl = 300
	}
	taxRate, err := decimal.NewFromString(getEnv("DEFAULT_TAX_RATE", "0.2"))
	if err != nil {
		return Config{}, fmt.Errorf("DEFAULT_TAX_RATE: %w", err)
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		MigrateOnStart:        getBool("MIGRATE_ON_START", true),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		ReportCacheTTLSeconds: ttl,
		DefaultTaxRate:        taxRate,
		ReportLocale:          getEnv("REPORT_LOCALE", "en-GB"),
		RolloverCron:          strings.TrimSpace(os.Getenv("ROLLOVER_CRON")),
		RolloverCarryZero:     getBool("ROLLOVER_CARRY_ZERO", false),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if c.DefaultTaxRate.IsNegative() || c.DefaultTaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("DEFAULT_TAX_RATE must be a fraction in [0,1), got %s", c.DefaultTaxRate)
	}
	if c.RolloverCron != "" {
		if _, err := cron.ParseStandard(c.RolloverCron); err != nil {
			return fmt.Errorf("ROLLOVER_CRON: %w", err)
		}
	}
	if _, err := language.Parse(c.ReportLocale); err != nil {
		return fmt.Errorf("REPORT_LOCALE: %w", err)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
