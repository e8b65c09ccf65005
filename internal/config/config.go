// Package config resolves server settings from STREAMGATE_* environment
// variables. Command-line flags in cmd/server take precedence over the
// values loaded here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "STREAMGATE_"

// Config holds every runtime setting the server understands.
type Config struct {
	Addr     string
	Mode     string
	LogLevel string

	SessionSecret    string
	CapabilitySecret string
	SessionTTL       time.Duration
	CapabilityTTL    time.Duration
	CookieName       string
	CookieMaxAge     time.Duration

	PublicBaseURL string

	StorageDriver string
	DataPath      string
	PostgresDSN   string

	TLSCertFile string
	TLSKeyFile  string

	RateWindow    time.Duration
	StreamMax     int
	ViewMax       int
	GlobalRPS     float64
	GlobalBurst   int
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisTimeout  time.Duration
}

// Load reads the environment and returns a Config populated with whatever is
// set. Missing values stay zero so callers can layer flag overrides and
// defaults on top; Validate enforces the required fields afterwards.
func Load() Config {
	return Config{
		Addr:     envString("ADDR"),
		Mode:     strings.ToLower(envString("MODE")),
		LogLevel: envString("LOG_LEVEL"),

		SessionSecret:    envString("SESSION_SECRET"),
		CapabilitySecret: envString("CAPABILITY_SECRET"),
		SessionTTL:       envDuration("SESSION_TTL"),
		CapabilityTTL:    envDuration("CAPABILITY_TTL"),
		CookieName:       envString("COOKIE_NAME"),
		CookieMaxAge:     envDuration("COOKIE_MAX_AGE"),

		PublicBaseURL: envString("PUBLIC_BASE_URL"),

		StorageDriver: strings.ToLower(envString("STORAGE_DRIVER")),
		DataPath:      envString("DATA"),
		PostgresDSN:   firstNonEmpty(envString("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),

		TLSCertFile: envString("TLS_CERT"),
		TLSKeyFile:  envString("TLS_KEY"),

		RateWindow:    envDuration("RATE_WINDOW"),
		StreamMax:     envInt("RATE_STREAM_MAX"),
		ViewMax:       envInt("RATE_VIEW_MAX"),
		GlobalRPS:     envFloat("RATE_GLOBAL_RPS"),
		GlobalBurst:   envInt("RATE_GLOBAL_BURST"),
		RedisAddr:     envString("RATE_REDIS_ADDR"),
		RedisUsername: envString("RATE_REDIS_USERNAME"),
		RedisPassword: envString("RATE_REDIS_PASSWORD"),
		RedisTimeout:  envDuration("RATE_REDIS_TIMEOUT"),
	}
}

// Validate checks the fields that have no workable default.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("session secret is required (set %sSESSION_SECRET)", envPrefix)
	}
	if strings.TrimSpace(c.CapabilitySecret) == "" {
		return fmt.Errorf("capability secret is required (set %sCAPABILITY_SECRET)", envPrefix)
	}
	switch c.StorageDriver {
	case "", "json":
	case "postgres":
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("postgres storage selected without DSN")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.Mode == "production" && c.StorageDriver != "postgres" {
		return fmt.Errorf("production mode requires the postgres storage driver")
	}
	return nil
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func envInt(key string) int {
	raw := envString(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

func envFloat(key string) float64 {
	raw := envString(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}

func envDuration(key string) time.Duration {
	raw := envString(key)
	if raw == "" {
		return 0
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
