package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string

	BackendBaseURL             string
	BackendTimeout             time.Duration
	BackendMaxAttempts         int
	BackendBreakerMinRequests  int
	BackendBreakerFailureRatio float64
	BackendBreakerOpenFor      time.Duration

	RedisURL  string
	JWTSecret string

	Delivery     pricing.DeliveryPolicy
	CurrencyCode string

	OrderCacheTTL   time.Duration
	CatalogCacheTTL time.Duration
	IdempotencyTTL  time.Duration
	SessionIdleTTL  time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                     valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                       valueOrDefault(k.String("PORT"), "8081"),
		CORSAllowedOrigins:         splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BackendBaseURL:             strings.TrimRight(strings.TrimSpace(k.String("BACKEND_BASE_URL")), "/"),
		BackendTimeout:             parseDuration(k.String("BACKEND_TIMEOUT"), "5s"),
		BackendMaxAttempts:         parseInt(k.String("BACKEND_MAX_ATTEMPTS"), 3),
		BackendBreakerMinRequests:  parseInt(k.String("BACKEND_BREAKER_MIN_REQUESTS"), 10),
		BackendBreakerFailureRatio: parseFloat(k.String("BACKEND_BREAKER_FAILURE_RATIO"), 0.5),
		BackendBreakerOpenFor:      parseDuration(k.String("BACKEND_BREAKER_OPEN_FOR"), "30s"),
		RedisURL:                   strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:                  k.String("JWT_SECRET"),
		CurrencyCode:               strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "INR")),
		OrderCacheTTL:              parseDuration(k.String("ORDER_CACHE_TTL"), "5m"),
		CatalogCacheTTL:            parseDuration(k.String("CATALOG_CACHE_TTL"), "1m"),
		IdempotencyTTL:             parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		SessionIdleTTL:             parseDuration(k.String("SESSION_IDLE_TTL"), "2h"),
		RateLimitWindow:            parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:               parseInt(k.String("RATE_LIMIT_MAX"), 120),
	}

	threshold, err := pricing.ParseMoney(valueOrDefault(k.String("FREE_DELIVERY_THRESHOLD"), "499"))
	if err != nil {
		return nil, fmt.Errorf("FREE_DELIVERY_THRESHOLD: %w", err)
	}
	charge, err := pricing.ParseMoney(valueOrDefault(k.String("STANDARD_DELIVERY_CHARGE"), "49"))
	if err != nil {
		return nil, fmt.Errorf("STANDARD_DELIVERY_CHARGE: %w", err)
	}
	if threshold < 0 || charge < 0 {
		return nil, errors.New("delivery threshold and charge must not be negative")
	}
	cfg.Delivery = pricing.DeliveryPolicy{FreeDeliveryThreshold: threshold, StandardDeliveryCharge: charge}

	if cfg.BackendBaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8081"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return parsed
	}
	return fallback
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
