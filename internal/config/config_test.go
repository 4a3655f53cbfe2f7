package config

import (
	"testing"
	"time"
)

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := Config{
		App:    AppConfig{Env: "production", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "screening", SSLMode: ""},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Caller: CallerConfig{BaseURL: "http://localhost:5001"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := Config{
		App:    AppConfig{Env: "local", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "screening", SSLMode: ""},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Caller: CallerConfig{BaseURL: "http://localhost:5001"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Scheduler.Tick != time.Minute {
		t.Fatalf("expected 1m tick default, got %v", c.Scheduler.Tick)
	}
	if c.Scheduler.SuccessGrace != 5*time.Minute || c.Scheduler.FailureGrace != time.Minute {
		t.Fatalf("unexpected grace defaults: %v %v", c.Scheduler.SuccessGrace, c.Scheduler.FailureGrace)
	}
	if c.Scheduler.StuckThreshold != time.Hour || c.Scheduler.ReaperInterval != 30*time.Minute {
		t.Fatalf("unexpected reaper defaults: %v %v", c.Scheduler.StuckThreshold, c.Scheduler.ReaperInterval)
	}
}

func TestValidate_RejectsThresholdBelowTick(t *testing.T) {
	c := Config{
		App:    AppConfig{Env: "local", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "screening"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Caller: CallerConfig{BaseURL: "http://localhost:5001"},
	}
	c.Scheduler.Tick = 2 * time.Hour
	c.Scheduler.StuckThreshold = time.Hour
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for threshold below tick")
	}
}

func TestValidate_RejectsNonHTTPCallerURL(t *testing.T) {
	c := Config{
		App:    AppConfig{Env: "local", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "screening"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Caller: CallerConfig{BaseURL: "localhost:5001"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for caller url without scheme")
	}
}

func TestLoad_RejectsMalformedDuration(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "screening")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("CALLER_SERVICE_URL", "http://localhost:5001")
	// "60min" is not a valid Go duration; it must surface, not silently
	// fall back to the default threshold.
	t.Setenv("STUCK_CALL_THRESHOLD", "60min")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed STUCK_CALL_THRESHOLD")
	}

	t.Setenv("STUCK_CALL_THRESHOLD", "90m")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if cfg.Scheduler.StuckThreshold != 90*time.Minute {
		t.Fatalf("expected 90m threshold, got %v", cfg.Scheduler.StuckThreshold)
	}
}
