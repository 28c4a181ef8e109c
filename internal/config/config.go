package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend selectors. The reference deployment runs everything in memory;
// durable backends are opt-in per concern.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	History  HistoryConfig
	Auth     AuthConfig
	Pipeline PipelineConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// StoreConfig selects where subscriptions live. DB fields are required only
// when Backend is postgres.
type StoreConfig struct {
	Backend string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// DBSSLMode accepts: disable, require, verify-ca, verify-full
	DBSSLMode string
}

// HistoryConfig selects where archived call sessions live. Redis fields are
// required only when Backend is redis.
type HistoryConfig struct {
	Backend string

	RedisHost     string
	RedisPort     int
	RedisPassword string
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type PipelineConfig struct {
	// ProgressDelay simulates call progression before completion.
	ProgressDelay time.Duration

	// AccelBackend names the compute-acceleration backend, empty when the
	// deployment has none. AccelSpeedup is the advertised speedup factor.
	AccelBackend string
	AccelSpeedup float64
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

	c.Store.Backend = strings.TrimSpace(os.Getenv("STORE_BACKEND"))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.Backend == BackendPostgres {
		c.Store.DBHost = strings.TrimSpace(os.Getenv("DB_HOST"))
		{
			n, err := mustInt("DB_PORT")
			n, parseErrs = appendParseErr(parseErrs, n, err)
			c.Store.DBPort = n
		}
		c.Store.DBUser = strings.TrimSpace(os.Getenv("DB_USER"))
		c.Store.DBPassword = os.Getenv("DB_PASSWORD")
		c.Store.DBName = strings.TrimSpace(os.Getenv("DB_NAME"))
		c.Store.DBSSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
		if c.Store.DBSSLMode == "" && !c.isProductionEnv() {
			// Local-friendly default; production must be explicit.
			c.Store.DBSSLMode = "disable"
		}
	}

	c.History.Backend = strings.TrimSpace(os.Getenv("HISTORY_BACKEND"))
	if c.History.Backend == "" {
		c.History.Backend = BackendMemory
	}
	if c.History.Backend == BackendRedis {
		c.History.RedisHost = strings.TrimSpace(os.Getenv("REDIS_HOST"))
		{
			n, err := mustInt("REDIS_PORT")
			n, parseErrs = appendParseErr(parseErrs, n, err)
			c.History.RedisPort = n
		}
		c.History.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}

	c.Pipeline.ProgressDelay = mustDuration("CALL_PROGRESS_DELAY")
	c.Pipeline.AccelBackend = strings.TrimSpace(os.Getenv("ACCEL_BACKEND"))
	if raw := strings.TrimSpace(os.Getenv("ACCEL_SPEEDUP")); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			c.Pipeline.AccelSpeedup = f
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

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DBHost == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.Store.DBPort <= 0 || c.Store.DBPort > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.Store.DBPort))
		}
		if c.Store.DBUser == "" {
			errs = append(errs, errors.New("DB_USER is required"))
		}
		if c.Store.DBName == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
		if c.Store.DBSSLMode == "" && c.isProductionEnv() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		}
		if c.Store.DBSSLMode != "" && !isValidSSLMode(c.Store.DBSSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.Store.DBSSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be memory or postgres, got %q", c.Store.Backend))
	}

	switch c.History.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.History.RedisHost == "" {
			errs = append(errs, errors.New("REDIS_HOST is required"))
		}
		if c.History.RedisPort <= 0 || c.History.RedisPort > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.History.RedisPort))
		}
	default:
		errs = append(errs, fmt.Errorf("HISTORY_BACKEND must be memory or redis, got %q", c.History.Backend))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.isProductionEnv() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Pipeline.ProgressDelay < 0 {
		errs = append(errs, errors.New("CALL_PROGRESS_DELAY must not be negative"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool { return c.isProductionEnv() }

func (c Config) isProductionEnv() bool { return c.App.Env == "production" }

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Store.DBHost,
		c.Store.DBPort,
		c.Store.DBUser,
		c.Store.DBPassword,
		c.Store.DBName,
		c.Store.DBSSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.History.RedisHost, c.History.RedisPort)
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

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
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
