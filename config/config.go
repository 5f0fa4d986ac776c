package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration settings.
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	Halo          HaloConfig          `yaml:"halo"`
	Discord       DiscordConfig       `yaml:"discord"`
	Timeline      TimelineConfig      `yaml:"timeline"`
	Tracker       TrackerConfig       `yaml:"tracker"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// HTTPConfig holds the webhook/metrics HTTP server configuration.
type HTTPConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// HaloConfig holds game-stats API configuration.
type HaloConfig struct {
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// DiscordConfig holds Discord configuration.
type DiscordConfig struct {
	Token string `yaml:"token"`
}

// TimelineConfig holds timeline replay configuration. TokenSecret signs
// the resumption tokens attached to failed reconstructions.
type TimelineConfig struct {
	TokenSecret string `yaml:"token_secret"`
}

// TrackerConfig holds live tracker scheduling configuration.
type TrackerConfig struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	MaxBackoffMinutes int           `yaml:"max_backoff_minutes"`
}

// ObservabilityConfig holds configuration for observability components.
type ObservabilityConfig struct {
	MetricsNamespace string `yaml:"metrics_namespace"`
	Environment      string `yaml:"environment"`
}

// LoadConfig loads the configuration from a YAML file, falling back to
// environment variables when the file is absent.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// --- OVERRIDE WITH ENV VARS IF PRESENT ---
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HTTP_LISTEN_ADDRESS"); v != "" {
		cfg.HTTP.ListenAddress = v
	}
	if v := os.Getenv("HALO_BASE_URL"); v != "" {
		cfg.Halo.BaseURL = v
	}
	if v := os.Getenv("HALO_TOKEN_URL"); v != "" {
		cfg.Halo.TokenURL = v
	}
	if v := os.Getenv("HALO_CLIENT_ID"); v != "" {
		cfg.Halo.ClientID = v
	}
	if v := os.Getenv("HALO_CLIENT_SECRET"); v != "" {
		cfg.Halo.ClientSecret = v
	}
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv("TIMELINE_TOKEN_SECRET"); v != "" {
		cfg.Timeline.TokenSecret = v
	}
	if v := os.Getenv("TRACKER_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Tracker.TickInterval = d
		}
	}
	if v := os.Getenv("TRACKER_MAX_BACKOFF_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tracker.MaxBackoffMinutes = n
		}
	}
	if v := os.Getenv("METRICS_NAMESPACE"); v != "" {
		cfg.Observability.MetricsNamespace = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config

	cfg.Postgres.DSN = os.Getenv("DATABASE_URL")
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	cfg.NATS.URL = os.Getenv("NATS_URL")
	if cfg.NATS.URL == "" {
		return nil, fmt.Errorf("NATS_URL environment variable not set")
	}

	cfg.HTTP.ListenAddress = os.Getenv("HTTP_LISTEN_ADDRESS")

	cfg.Halo.BaseURL = os.Getenv("HALO_BASE_URL")
	cfg.Halo.TokenURL = os.Getenv("HALO_TOKEN_URL")
	cfg.Halo.ClientID = os.Getenv("HALO_CLIENT_ID")
	cfg.Halo.ClientSecret = os.Getenv("HALO_CLIENT_SECRET")

	cfg.Discord.Token = os.Getenv("DISCORD_TOKEN")
	if cfg.Discord.Token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN environment variable not set")
	}

	cfg.Timeline.TokenSecret = os.Getenv("TIMELINE_TOKEN_SECRET")
	if cfg.Timeline.TokenSecret == "" {
		return nil, fmt.Errorf("TIMELINE_TOKEN_SECRET environment variable not set")
	}

	if v := os.Getenv("TRACKER_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TRACKER_TICK_INTERVAL value: %v", err)
		}
		cfg.Tracker.TickInterval = d
	}
	if v := os.Getenv("TRACKER_MAX_BACKOFF_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TRACKER_MAX_BACKOFF_MINUTES value: %v", err)
		}
		cfg.Tracker.MaxBackoffMinutes = n
	}

	cfg.Observability.MetricsNamespace = os.Getenv("METRICS_NAMESPACE")
	cfg.Observability.Environment = os.Getenv("ENV")

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.ListenAddress == "" {
		cfg.HTTP.ListenAddress = ":8080"
	}
	if cfg.Tracker.TickInterval == 0 {
		cfg.Tracker.TickInterval = 3 * time.Minute
	}
	if cfg.Tracker.MaxBackoffMinutes == 0 {
		cfg.Tracker.MaxBackoffMinutes = 30
	}
	if cfg.Observability.MetricsNamespace == "" {
		cfg.Observability.MetricsNamespace = "guilty_spark"
	}
}
