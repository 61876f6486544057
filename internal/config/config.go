package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all agent configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// APIURL is the quiz API root, without a trailing slash.
	APIURL     string
	APITimeout time.Duration
	Token      string
	TokenFile  string

	RedisURL    string
	DatabaseURL string
	MaxDBConns  int32

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string

	// WSConnectsPerMinute limits WebSocket session opens per client IP.
	WSConnectsPerMinute int

	Policy Policy
}

// Policy holds the proctoring constants. They are local configuration only;
// nothing is fetched from the quiz API.
type Policy struct {
	GracePeriod        time.Duration `yaml:"-"`
	GracePeriodSeconds int           `yaml:"grace_period_seconds"`
	MaxViolations      int           `yaml:"max_violations"`
	FullscreenCritical bool          `yaml:"fullscreen_critical"`
	DefaultDuration    int           `yaml:"default_duration_seconds"`
	SecondsPerQuestion int           `yaml:"seconds_per_question"`
}

// Proctoring defaults.
const (
	DefaultGracePeriodSeconds = 5
	DefaultMaxViolations      = 3
	DefaultDurationSeconds    = 3600
	DefaultSecondsPerQuestion = 180
)

// DefaultPolicy returns the built-in proctoring policy.
func DefaultPolicy() Policy {
	p := Policy{
		GracePeriodSeconds: DefaultGracePeriodSeconds,
		MaxViolations:      DefaultMaxViolations,
		FullscreenCritical: true,
		DefaultDuration:    DefaultDurationSeconds,
		SecondsPerQuestion: DefaultSecondsPerQuestion,
	}
	p.GracePeriod = time.Duration(p.GracePeriodSeconds) * time.Second
	return p
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing. A POLICY_FILE, when
// set, overrides the proctoring policy; a broken policy file is an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	policy := DefaultPolicy()
	policy.GracePeriodSeconds = getEnvInt("GRACE_PERIOD_SECONDS", policy.GracePeriodSeconds)
	policy.MaxViolations = getEnvInt("MAX_VIOLATIONS", policy.MaxViolations)
	policy.FullscreenCritical = getEnvBool("FULLSCREEN_CRITICAL", policy.FullscreenCritical)
	policy.DefaultDuration = getEnvInt("DEFAULT_DURATION_SECONDS", policy.DefaultDuration)
	policy.SecondsPerQuestion = getEnvInt("SECONDS_PER_QUESTION", policy.SecondsPerQuestion)

	if path := getEnv("POLICY_FILE", ""); path != "" {
		var err error
		policy, err = LoadPolicyFile(path, policy)
		if err != nil {
			return nil, err
		}
	}
	policy.GracePeriod = time.Duration(policy.GracePeriodSeconds) * time.Second

	return &Config{
		ServerPort:          getEnv("SERVER_PORT", "8090"),
		GinMode:             getEnv("GIN_MODE", "debug"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "pretty"),
		APIURL:              strings.TrimRight(getEnv("API_URL", "http://localhost:8080"), "/"),
		APITimeout:          time.Duration(getEnvInt("API_TIMEOUT_SECONDS", 15)) * time.Second,
		Token:               getEnv("TOKEN", ""),
		TokenFile:           getEnv("TOKEN_FILE", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		MaxDBConns:          int32(getEnvInt("MAX_DB_CONNS", 4)),
		AllowedOrigins:      parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		WSConnectsPerMinute: getEnvInt("WS_CONNECTS_PER_MINUTE", 30),
		Policy:              policy,
	}, nil
}

// LoadPolicyFile overlays the YAML policy at path on top of base. Keys absent
// from the file keep their base value.
func LoadPolicyFile(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read policy file: %w", err)
	}
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return base, fmt.Errorf("parse policy file: %w", err)
	}
	if p.GracePeriodSeconds < 0 || p.MaxViolations < 1 {
		return base, fmt.Errorf("policy file %s: grace period must be >= 0 and max violations >= 1", path)
	}
	p.GracePeriod = time.Duration(p.GracePeriodSeconds) * time.Second
	return p, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
