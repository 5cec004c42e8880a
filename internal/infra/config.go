package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// Execution backend.
	RunpodEndpointID string
	RunpodAPIKey     string
	RunpodBaseURL    string

	// Job lifecycle policy.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	PollRetries     int
	JobTimeout      time.Duration

	// Input handling.
	FetchTimeout  time.Duration
	StagingPath   string
	VolumePrefix  string
	InlineLimit   int
	BatchWorkers  int
	BatchMaxItems int

	// Optional collaborators.
	DatabaseURL string
	GeoIPDBPath string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   string
	DefaultLocale    string
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. A malformed integer value is a startup error, not
// a silent fallback.
func LoadConfig() (*Config, error) {
	var invalid []string
	getEnvInt := func(key string, fallback int) int {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return fallback
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("%s=%q", key, v))
			return fallback
		}
		return i
	}

	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		RunpodEndpointID: os.Getenv("RUNPOD_ENDPOINT_ID"),
		RunpodAPIKey:     os.Getenv("RUNPOD_API_KEY"),
		RunpodBaseURL:    getEnv("RUNPOD_BASE_URL", "https://api.runpod.ai"),
		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 2)),
		MaxPollInterval:  time.Second * time.Duration(getEnvInt("POLL_MAX_INTERVAL_SECONDS", 30)),
		PollRetries:      getEnvInt("POLL_RETRIES", 3),
		JobTimeout:       time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 1800)),
		FetchTimeout:     time.Second * time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)),
		StagingPath:      getEnv("STAGING_PATH", "./staging"),
		VolumePrefix:     getEnv("VOLUME_PREFIX", "/runpod-volume"),
		InlineLimit:      getEnvInt("INLINE_LIMIT_BYTES", 5<<20),
		BatchWorkers:     getEnvInt("BATCH_WORKERS", 4),
		BatchMaxItems:    getEnvInt("BATCH_MAX_ITEMS", 32),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   os.Getenv("ALLOWED_ORIGINS"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid integer env values: %s", strings.Join(invalid, ", "))
	}

	if cfg.RunpodEndpointID == "" {
		return nil, fmt.Errorf("RUNPOD_ENDPOINT_ID is required")
	}

	if cfg.RunpodAPIKey == "" {
		return nil, fmt.Errorf("RUNPOD_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
