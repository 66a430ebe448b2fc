// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mbd888/remitwise/internal/fraud"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Storage (both optional: in-memory stores when unset)
	DatabaseURL string
	RedisURL    string

	// Rate feed
	RateAPIURL   string
	RateTimeout  time.Duration
	RateCacheTTL time.Duration

	ChannelsFile string
	OTLPEndpoint string
	HistoryLimit int
	RateLimitRPM int
	CORSOrigins  []string

	Fraud fraud.Config
}

const (
	DefaultPort         = "8080"
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultRateAPIURL   = "https://api.exchangerate-api.com/v4/latest/"
	DefaultRateTimeout  = 5 * time.Second
	DefaultRateCacheTTL = 24 * time.Hour
	DefaultChannelsFile = "configs/channels.yaml"
	DefaultHistoryLimit = 20
	DefaultRateLimitRPM = 120
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	fc, err := loadFraud()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:         getEnv("PORT", DefaultPort),
		Env:          getEnv("ENV", DefaultEnv),
		LogLevel:     getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:    getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		RateAPIURL:   getEnv("RATE_API_URL", DefaultRateAPIURL),
		RateTimeout:  getEnvDuration("RATE_TIMEOUT", DefaultRateTimeout),
		RateCacheTTL: getEnvDuration("RATE_CACHE_TTL", DefaultRateCacheTTL),
		ChannelsFile: getEnv("CHANNELS_FILE", DefaultChannelsFile),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		HistoryLimit: int(getEnvInt64("HISTORY_LIMIT", DefaultHistoryLimit)),
		RateLimitRPM: int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		CORSOrigins:  getEnvList("CORS_ORIGINS", []string{"*"}),
		Fraud:        fc,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFraud overlays FRAUD_* variables on the stock tuning. Malformed
// weight or corridor lists are errors rather than silent defaults: they
// change who gets blocked.
func loadFraud() (fraud.Config, error) {
	fc := fraud.DefaultConfig()
	fc.ReviewThreshold = int(getEnvInt64("FRAUD_REVIEW_THRESHOLD", int64(fc.ReviewThreshold)))
	fc.BlockThreshold = int(getEnvInt64("FRAUD_BLOCK_THRESHOLD", int64(fc.BlockThreshold)))
	fc.HighAmount = getEnvFloat("FRAUD_HIGH_AMOUNT", fc.HighAmount)
	fc.AmountMultiplier = getEnvFloat("FRAUD_AMOUNT_MULTIPLIER", fc.AmountMultiplier)
	fc.VelocityCount = int(getEnvInt64("FRAUD_VELOCITY_COUNT", int64(fc.VelocityCount)))

	if v := os.Getenv("FRAUD_WEIGHTS"); v != "" {
		w, err := parseWeights(v)
		if err != nil {
			return fc, err
		}
		for f, n := range w {
			fc.Weights[f] = n
		}
	}
	if v := os.Getenv("FRAUD_RISKY_CORRIDORS"); v != "" {
		cs, err := parseCorridors(v)
		if err != nil {
			return fc, err
		}
		fc.RiskyCorridors = cs
	}
	return fc, nil
}

// parseWeights parses "high_amount=30,new_device=5".
func parseWeights(s string) (map[fraud.Flag]int, error) {
	known := make(map[fraud.Flag]bool, len(fraud.Flags))
	for _, f := range fraud.Flags {
		known[f] = true
	}
	out := make(map[fraud.Flag]int)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("FRAUD_WEIGHTS: %q is not name=int", pair)
		}
		f := fraud.Flag(strings.TrimSpace(name))
		if !known[f] {
			return nil, fmt.Errorf("FRAUD_WEIGHTS: unknown rule %q", f)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("FRAUD_WEIGHTS: weight for %s must be a non-negative integer", f)
		}
		out[f] = n
	}
	return out, nil
}

// parseCorridors parses "USD-NGN,USD-INR".
func parseCorridors(s string) ([]fraud.Corridor, error) {
	var out []fraud.Corridor
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, ok := fraud.ParseCorridor(part)
		if !ok {
			return nil, fmt.Errorf("FRAUD_RISKY_CORRIDORS: %q is not FROM-TO", part)
		}
		out = append(out, c)
	}
	return out, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.RateTimeout <= 0 {
		return fmt.Errorf("RATE_TIMEOUT must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must not be negative")
	}

	f := c.Fraud
	if f.ReviewThreshold < 0 || f.BlockThreshold > 100 {
		return fmt.Errorf("fraud thresholds must lie within 0-100")
	}
	if f.ReviewThreshold >= f.BlockThreshold {
		return fmt.Errorf("FRAUD_REVIEW_THRESHOLD (%d) must be below FRAUD_BLOCK_THRESHOLD (%d)",
			f.ReviewThreshold, f.BlockThreshold)
	}
	if f.HighAmount <= 0 || f.AmountMultiplier <= 0 {
		return fmt.Errorf("FRAUD_HIGH_AMOUNT and FRAUD_AMOUNT_MULTIPLIER must be positive")
	}
	if f.VelocityCount <= 0 {
		return fmt.Errorf("FRAUD_VELOCITY_COUNT must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvDuration accepts Go durations ("750ms") or bare seconds ("5").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if s, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(s * float64(time.Second))
	}
	return defaultValue
}
