package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Consumer credentials of the Garmin Connect mobile app. They are not
// per-user secrets; the OAuth1 flow requires them to redeem a login ticket.
// Override with GARMSYNC_OAUTH_CONSUMER_KEY / GARMSYNC_OAUTH_CONSUMER_SECRET.
const (
	DefaultConsumerKey    = "fc3e99d2-118c-44b8-8ae3-03370dde24c0"
	DefaultConsumerSecret = "E08WAR897WEy2knn7aFBrvegVAf0AFdWBBF"
)

type Config struct {
	Domain      string `yaml:"domain"`
	ProfilePath string `yaml:"profile_path"`
	DBPath      string `yaml:"db_path"`

	HTTP  HTTPConfig  `yaml:"http"`
	Sync  SyncConfig  `yaml:"sync"`
	OAuth OAuthConfig `yaml:"oauth"`
}

type HTTPConfig struct {
	RequestTimeoutSeconds float64 `yaml:"request_timeout_seconds"`
	AuthTimeoutSeconds    float64 `yaml:"auth_timeout_seconds"`
	Retries               int     `yaml:"retries"`
	BackoffSeconds        float64 `yaml:"backoff_seconds"`
}

type SyncConfig struct {
	ActivitiesBatchSize   int     `yaml:"activities_batch_size"`
	RateLimitDelaySeconds float64 `yaml:"rate_limit_delay_seconds"`
	MaxSyncDays           int     `yaml:"max_sync_days"`
	MaxWorkers            int     `yaml:"max_workers"` // reserved for a future parallel sync
}

type OAuthConfig struct {
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Domain: "garmin.com",
		HTTP: HTTPConfig{
			RequestTimeoutSeconds: 10,
			AuthTimeoutSeconds:    15,
			Retries:               3,
			BackoffSeconds:        0.5,
		},
		Sync: SyncConfig{
			ActivitiesBatchSize:   50,
			RateLimitDelaySeconds: 0.5,
			MaxSyncDays:           3650,
			MaxWorkers:            50,
		},
		OAuth: OAuthConfig{
			ConsumerKey:    DefaultConsumerKey,
			ConsumerSecret: DefaultConsumerSecret,
		},
	}
}

// Load reads config from an optional YAML file, then applies environment
// variable overrides. Env vars use the prefix GARMSYNC_:
//
//	GARMSYNC_PROFILE_PATH, GARMSYNC_DB_PATH,
//	GARMSYNC_REQUEST_TIMEOUT, GARMSYNC_AUTH_TIMEOUT, GARMSYNC_RETRIES,
//	GARMSYNC_MAX_WORKERS, GARMSYNC_OAUTH_CONSUMER_KEY, GARMSYNC_OAUTH_CONSUMER_SECRET
//
// A missing config file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GARMSYNC_PROFILE_PATH"); v != "" {
		cfg.ProfilePath = v
	}
	if v := os.Getenv("GARMSYNC_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("GARMSYNC_REQUEST_TIMEOUT"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HTTP.RequestTimeoutSeconds = secs
		}
	}
	if v := os.Getenv("GARMSYNC_AUTH_TIMEOUT"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HTTP.AuthTimeoutSeconds = secs
		}
	}
	if v := os.Getenv("GARMSYNC_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retries = n
		}
	}
	if v := os.Getenv("GARMSYNC_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.MaxWorkers = n
		}
	}
	if v := os.Getenv("GARMSYNC_OAUTH_CONSUMER_KEY"); v != "" {
		cfg.OAuth.ConsumerKey = v
	}
	if v := os.Getenv("GARMSYNC_OAUTH_CONSUMER_SECRET"); v != "" {
		cfg.OAuth.ConsumerSecret = v
	}
}

func (c *Config) validate() error {
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("http.retries must not be negative")
	}
	if c.HTTP.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("http.request_timeout_seconds must be positive")
	}
	if c.Sync.ActivitiesBatchSize <= 0 {
		return fmt.Errorf("sync.activities_batch_size must be positive")
	}
	if c.Sync.MaxSyncDays <= 0 {
		return fmt.Errorf("sync.max_sync_days must be positive")
	}
	if c.OAuth.ConsumerKey == "" || c.OAuth.ConsumerSecret == "" {
		return fmt.Errorf("oauth consumer credentials are required")
	}
	return nil
}

// ResolveProfilePath returns the profile directory, defaulting to ~/.garmsync.
func (c *Config) ResolveProfilePath() (string, error) {
	if c.ProfilePath != "" {
		return c.ProfilePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".garmsync"), nil
}

// ResolveDBPath returns the database file path: the explicit db_path override
// if set, otherwise health.db inside the profile directory.
func (c *Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	profile, err := c.ResolveProfilePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(profile, "health.db"), nil
}

// RequestTimeout returns the API request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.RequestTimeoutSeconds * float64(time.Second))
}

// AuthTimeout returns the SSO request timeout.
func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.HTTP.AuthTimeoutSeconds * float64(time.Second))
}

// Backoff returns the base retry backoff interval.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.HTTP.BackoffSeconds * float64(time.Second))
}

// RateLimitDelay returns the pause inserted between detail fetches.
func (c *Config) RateLimitDelay() time.Duration {
	return time.Duration(c.Sync.RateLimitDelaySeconds * float64(time.Second))
}
