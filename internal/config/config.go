// Package config loads the application configuration from an optional
// YAML file, with the API credential overridable from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CredentialEnv is the environment variable holding the API credential.
// It overrides the config file so the credential can stay out of it.
const CredentialEnv = "TANKFINDER_API_KEY"

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full application configuration.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Search SearchConfig `yaml:"search"`
	Cache  CacheConfig  `yaml:"cache"`
	Retry  RetryConfig  `yaml:"retry"`
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
}

type APIConfig struct {
	BaseURL    string   `yaml:"base_url"`
	Credential string   `yaml:"credential"`
	Timeout    Duration `yaml:"timeout"`
}

type SearchConfig struct {
	DefaultRadiusKm float64 `yaml:"default_radius_km"`
	// Default reference coordinate, used when neither geolocation nor a
	// stored last search is available.
	DefaultLat float64 `yaml:"default_lat"`
	DefaultLng float64 `yaml:"default_lng"`
	// Country restricts geocoding lookups (ISO 3166-1 alpha-2).
	Country string `yaml:"country"`
}

type CacheConfig struct {
	TTL Duration `yaml:"ttl"`
	// SweepInterval is how often expired entries are swept; Grace is
	// how long past expiry an entry survives so the stale-on-error
	// fallback keeps working during upstream outages.
	SweepInterval Duration `yaml:"sweep_interval"`
	Grace         Duration `yaml:"grace"`
}

type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// RateLimit is requests per minute per client IP.
	RateLimit int `yaml:"rate_limit_per_minute"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration. The default reference
// coordinate is Berlin Mitte.
func Default() Config {
	return Config{
		API: APIConfig{
			Timeout: Duration(30 * time.Second),
		},
		Search: SearchConfig{
			DefaultRadiusKm: 5,
			DefaultLat:      52.52,
			DefaultLng:      13.405,
			Country:         "de",
		},
		Cache: CacheConfig{
			TTL:           Duration(5 * time.Minute),
			SweepInterval: Duration(10 * time.Minute),
			Grace:         Duration(time.Hour),
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration(500 * time.Millisecond),
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8080",
			RateLimit: 20,
		},
		Store: StoreConfig{
			Path: "tankfinder.db",
		},
	}
}

// Load reads the configuration. An empty path loads defaults only; a
// missing .env file is not an error. The credential resolves from
// CredentialEnv first, then the config file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	_ = godotenv.Load()
	if key := os.Getenv(CredentialEnv); key != "" {
		cfg.API.Credential = key
	}

	return cfg, nil
}
