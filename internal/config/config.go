package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Caller    CallerConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// CallerConfig points at the external voice engine that actually places calls.
// The backend only does bookkeeping; the caller service owns telephony.
type CallerConfig struct {
	BaseURL         string
	DispatchTimeout time.Duration
}

// SchedulerConfig tunes the rescheduling loop and the stuck-call reaper.
// All durations are optional in env; Validate() applies defaults.
type SchedulerConfig struct {
	// Tick is the scheduling interval and also the half-width of the
	// fire-once due window: a candidate fires when |resolved-now| <= Tick.
	Tick time.Duration

	// SuccessGrace and FailureGrace control how long a candidate stays in the
	// dedup guard after a dispatch attempt. Failure is shorter to allow retry.
	SuccessGrace time.Duration
	FailureGrace time.Duration

	// MaxDispatchFailures caps consecutive dispatch failures per candidate
	// before an escalation notification is raised.
	MaxDispatchFailures int

	// ReaperInterval and StuckThreshold drive the stuck-call sweep.
	// StuckThreshold should exceed the longest plausible legitimate call.
	ReaperInterval time.Duration
	StuckThreshold time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Caller.BaseURL = strings.TrimSpace(os.Getenv("CALLER_SERVICE_URL"))

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CALLER_DISPATCH_TIMEOUT", &c.Caller.DispatchTimeout},
		{"SCHEDULER_TICK", &c.Scheduler.Tick},
		{"DEDUP_SUCCESS_GRACE", &c.Scheduler.SuccessGrace},
		{"DEDUP_FAILURE_GRACE", &c.Scheduler.FailureGrace},
		{"REAPER_INTERVAL", &c.Scheduler.ReaperInterval},
		{"STUCK_CALL_THRESHOLD", &c.Scheduler.StuckThreshold},
	}
	for _, d := range durations {
		v, err := mustDuration(d.key)
		if err != nil {
			parseErrs = append(parseErrs, err)
			continue
		}
		*d.dst = v
	}
	if v := strings.TrimSpace(os.Getenv("DISPATCH_MAX_FAILURES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("DISPATCH_MAX_FAILURES must be an integer, got %q", v))
		} else {
			c.Scheduler.MaxDispatchFailures = n
		}
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Caller.BaseURL == "" {
		errs = append(errs, errors.New("CALLER_SERVICE_URL is required"))
	} else if !strings.HasPrefix(c.Caller.BaseURL, "http://") && !strings.HasPrefix(c.Caller.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("CALLER_SERVICE_URL must be an http(s) URL, got %q", c.Caller.BaseURL))
	}
	if c.Caller.DispatchTimeout <= 0 {
		c.Caller.DispatchTimeout = 15 * time.Second
	}

	if c.Scheduler.Tick <= 0 {
		c.Scheduler.Tick = time.Minute
	}
	if c.Scheduler.SuccessGrace <= 0 {
		c.Scheduler.SuccessGrace = 5 * time.Minute
	}
	if c.Scheduler.FailureGrace <= 0 {
		c.Scheduler.FailureGrace = time.Minute
	}
	if c.Scheduler.MaxDispatchFailures <= 0 {
		c.Scheduler.MaxDispatchFailures = 3
	}
	if c.Scheduler.ReaperInterval <= 0 {
		c.Scheduler.ReaperInterval = 30 * time.Minute
	}
	if c.Scheduler.StuckThreshold <= 0 {
		c.Scheduler.StuckThreshold = time.Hour
	}
	if c.Scheduler.StuckThreshold <= c.Scheduler.Tick {
		errs = append(errs, errors.New("STUCK_CALL_THRESHOLD must be greater than SCHEDULER_TICK"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s or 5m, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
