package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV_FILE", "PORT", "DATABASE_URL", "MIGRATE_ON_START", "REDIS_ADDR", "REDIS_DB",
		"REPORT_CACHE_TTL_SECONDS", "DEFAULT_TAX_RATE", "REPORT_LOCALE", "ROLLOVER_CRON",
		"ROLLOVER_CARRY_ZERO", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.Address())
	}
	if !cfg.DefaultTaxRate.Equal(decimal.RequireFromString("0.2")) {
		t.Fatalf("expected default tax rate 0.2, got %s", cfg.DefaultTaxRate)
	}
	if !cfg.MigrateOnStart {
		t.Fatalf("expected migrations on start by default")
	}
	if cfg.RolloverCron != "" {
		t.Fatalf("expected rollover disabled by default, got %q", cfg.RolloverCron)
	}
	if cfg.ReportCacheTTLSeconds != 300 {
		t.Fatalf("expected 300s cache ttl, got %d", cfg.ReportCacheTTLSeconds)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "stockcheck.env")
	if err := os.WriteFile(path, []byte("PORT=9090\nDEFAULT_TAX_RATE=0.05\nROLLOVER_CRON=0 6 * * *\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("expected port from env file, got %q", cfg.Port)
	}
	if !cfg.DefaultTaxRate.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("expected 0.05 tax rate, got %s", cfg.DefaultTaxRate)
	}
	if cfg.RolloverCron != "0 6 * * *" {
		t.Fatalf("expected rollover cron from env file, got %q", cfg.RolloverCron)
	}
}

func TestLoadRejectsMissingExplicitEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing ENV_FILE")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Config{Port: "8080", DefaultTaxRate: decimal.RequireFromString("0.2"), ReportLocale: "en-GB", LogLevel: "info"}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected base config to validate, got %v", err)
	}

	cases := map[string]func(c *Config){
		"tax rate of one":   func(c *Config) { c.DefaultTaxRate = decimal.NewFromInt(1) },
		"negative tax rate": func(c *Config) { c.DefaultTaxRate = decimal.RequireFromString("-0.1") },
		"bad cron":          func(c *Config) { c.RolloverCron = "every tuesday" },
		"bad locale":        func(c *Config) { c.ReportLocale = "not a locale!" },
		"bad log level":     func(c *Config) { c.LogLevel = "chatty" },
		"empty port":        func(c *Config) { c.Port = "" },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
