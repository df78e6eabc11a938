package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Cache backend selectors.
const (
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
// Provider credentials are passed to adapters at construction time; no core
// component reads the environment directly.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Fingerprint cache.
	CacheBackend       string        `env:"CACHE_BACKEND" envDefault:"memory"`
	CacheSQLitePath    string        `env:"CACHE_SQLITE_PATH" envDefault:"signal-cache.db"`
	CacheDefaultTTL    time.Duration `env:"CACHE_DEFAULT_TTL" envDefault:"1h"`
	CacheSweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"10m"` // 0 disables the sweeper

	// Priority classification. Empty means the built-in default keyword set.
	PriorityKeywords []string `env:"PRIORITY_KEYWORDS" envSeparator:","`

	// Event broadcasting.
	EventBufferSize int `env:"EVENT_BUFFER_SIZE" envDefault:"64"`

	// Google Maps (geocoding + places).
	GoogleMapsAPIKey string        `env:"GOOGLE_MAPS_API_KEY"`
	GeocodeTTL       time.Duration `env:"GEOCODE_TTL" envDefault:"1h"`
	GeocodeTimeout   time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"5s"`
	PlacesTTL        time.Duration `env:"PLACES_TTL" envDefault:"1h"`
	PlacesTimeout    time.Duration `env:"PLACES_TIMEOUT" envDefault:"5s"`

	// Gemini (location extraction + image verification).
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`
	GeminiTTL     time.Duration `env:"GEMINI_TTL" envDefault:"1h"`
	GeminiTimeout time.Duration `env:"GEMINI_TIMEOUT" envDefault:"30s"`

	// Social search.
	TwitterBearerToken  string        `env:"TWITTER_BEARER_TOKEN"`
	SocialSearchTTL     time.Duration `env:"SOCIAL_SEARCH_TTL" envDefault:"1h"`
	SocialSearchTimeout time.Duration `env:"SOCIAL_SEARCH_TIMEOUT" envDefault:"5s"`

	// Official updates feed.
	FemaFeedURL     string        `env:"FEMA_FEED_URL" envDefault:"https://www.fema.gov/disaster-feed"`
	FemaFeedTTL     time.Duration `env:"FEMA_FEED_TTL" envDefault:"1h"`
	FemaFeedTimeout time.Duration `env:"FEMA_FEED_TIMEOUT" envDefault:"10s"`

	// Optional Kafka egress for mutation events.
	KafkaEnabled     bool     `env:"KAFKA_ENABLED"`
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaEventsTopic string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"disaster-mutations"`
}

// Load reads configuration from environment variables, applying defaults
// where unset, and validates cross-field constraints.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.ShutdownTimeout <= 0 {
		return nil, errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.CacheDefaultTTL <= 0 {
		return nil, errors.New("CACHE_DEFAULT_TTL must be positive")
	}
	if cfg.CacheSweepInterval < 0 {
		return nil, errors.New("CACHE_SWEEP_INTERVAL must be zero or positive")
	}
	if cfg.EventBufferSize <= 0 {
		return nil, errors.New("EVENT_BUFFER_SIZE must be positive")
	}

	switch cfg.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendSQLite:
		if cfg.CacheSQLitePath == "" {
			return nil, errors.New("CACHE_SQLITE_PATH is required when CACHE_BACKEND is sqlite")
		}
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaEventsTopic == "" {
			return nil, errors.New("KAFKA_EVENTS_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}
