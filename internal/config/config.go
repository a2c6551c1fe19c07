package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the proximity API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Location LocationConfig `yaml:"location"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// LocationConfig holds cadence and threshold settings for the live-location
// subsystem.
type LocationConfig struct {
	PublishIntervalSec int     `yaml:"publish_interval_sec"` // position publisher cadence
	MinMoveMeters      float64 `yaml:"min_move_meters"`      // movement threshold before re-publish
	StaleRepublishSec  int     `yaml:"stale_republish_sec"`  // refresh updated_at even without movement
	RequeryIntervalSec int     `yaml:"requery_interval_sec"` // periodic area re-query cadence
	CoalesceMs         int     `yaml:"coalesce_ms"`          // filter-change coalescing window
	TeardownGraceSec   int     `yaml:"teardown_grace_sec"`   // bounded wait for subscription teardown
	DefaultRadiusKm    float64 `yaml:"default_radius_km"`
	MaxRadiusKm        float64 `yaml:"max_radius_km"`
}

// PublishInterval returns the publisher cadence as a duration.
func (l LocationConfig) PublishInterval() time.Duration {
	return time.Duration(l.PublishIntervalSec) * time.Second
}

// StaleRepublish returns the updated_at refresh interval as a duration.
func (l LocationConfig) StaleRepublish() time.Duration {
	return time.Duration(l.StaleRepublishSec) * time.Second
}

// RequeryInterval returns the periodic re-query cadence as a duration.
func (l LocationConfig) RequeryInterval() time.Duration {
	return time.Duration(l.RequeryIntervalSec) * time.Second
}

// Coalesce returns the filter coalescing window as a duration.
func (l LocationConfig) Coalesce() time.Duration {
	return time.Duration(l.CoalesceMs) * time.Millisecond
}

// TeardownGrace returns the teardown grace period as a duration.
func (l LocationConfig) TeardownGrace() time.Duration {
	return time.Duration(l.TeardownGraceSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "proximity:"
	}
	if c.Location.PublishIntervalSec <= 0 {
		c.Location.PublishIntervalSec = 15
	}
	if c.Location.MinMoveMeters < 0 {
		c.Location.MinMoveMeters = 0
	}
	if c.Location.StaleRepublishSec <= 0 {
		c.Location.StaleRepublishSec = 120
	}
	if c.Location.RequeryIntervalSec <= 0 {
		c.Location.RequeryIntervalSec = 30
	}
	if c.Location.CoalesceMs <= 0 {
		c.Location.CoalesceMs = 150
	}
	if c.Location.TeardownGraceSec <= 0 {
		c.Location.TeardownGraceSec = 5
	}
	if c.Location.DefaultRadiusKm <= 0 {
		c.Location.DefaultRadiusKm = 5
	}
	if c.Location.MaxRadiusKm <= 0 {
		c.Location.MaxRadiusKm = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Location.DefaultRadiusKm > c.Location.MaxRadiusKm {
		return fmt.Errorf(
			"location.default_radius_km %.1f exceeds location.max_radius_km %.1f",
			c.Location.DefaultRadiusKm, c.Location.MaxRadiusKm,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
