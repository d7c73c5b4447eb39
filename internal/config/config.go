package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/best-candidate/internal/packer"
	"github.com/eugenenazirov/best-candidate/internal/storage"
)

const (
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultRateLimitRPS   = 5.0
	defaultRateLimitBurst = 10
	defaultMaxCanvas      = 4096
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	RunTimeout           time.Duration
	MaxCanvas            float64
	MaxRuns              int
	Packing              packer.Config
}

// yamlConfig represents the YAML configuration file structure.
// Pointer fields distinguish "absent" from an explicit zero value.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	LogLevel             string        `yaml:"log_level"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	RunTimeout           string        `yaml:"run_timeout"`
	MaxCanvas            *float64      `yaml:"max_canvas"`
	MaxRuns              *int          `yaml:"max_runs"`
	Packing              yamlPacking   `yaml:"packing"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// yamlPacking represents the default packing parameters in YAML.
type yamlPacking struct {
	Width           *float64 `yaml:"width"`
	Height          *float64 `yaml:"height"`
	MinRadius       *float64 `yaml:"min_radius"`
	MaxRadius       *float64 `yaml:"max_radius"`
	SampleSize      *int     `yaml:"sample_size"`
	CirclesPerLevel *int     `yaml:"circles_per_level"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	LogLevel       *string
	Canvas         *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables
	applyEnvConfig(&cfg)

	// Load from YAML file if specified (overrides env)
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	// Validate final configuration
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		LogLevel:             defaultLogLevel,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         60 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		RunTimeout:           30 * time.Second,
		MaxCanvas:            defaultMaxCanvas,
		MaxRuns:              storage.DefaultMaxRuns,
		Packing:              storage.DefaultParams(),
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	durations := []struct {
		key   string
		raw   string
		field *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
		{"run_timeout", yamlCfg.RunTimeout, &cfg.RunTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.field = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}

	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	if yamlCfg.MaxCanvas != nil {
		cfg.MaxCanvas = *yamlCfg.MaxCanvas
	}

	if yamlCfg.MaxRuns != nil {
		cfg.MaxRuns = *yamlCfg.MaxRuns
	}

	p := yamlCfg.Packing
	setFloat(&cfg.Packing.Width, p.Width)
	setFloat(&cfg.Packing.Height, p.Height)
	setFloat(&cfg.Packing.MinRadius, p.MinRadius)
	setFloat(&cfg.Packing.MaxRadius, p.MaxRadius)
	setInt(&cfg.Packing.SampleSize, p.SampleSize)
	setInt(&cfg.Packing.CirclesPerLevel, p.CirclesPerLevel)

	return nil
}

// applyEnvConfig applies environment variable configuration.
// Malformed values are ignored and the previous value is kept.
func applyEnvConfig(cfg *Config) {
	if port := env("PORT"); port != "" {
		cfg.Port = port
	}

	if level := env("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if timeout := env("RUN_TIMEOUT"); timeout != "" {
		if value, err := time.ParseDuration(timeout); err == nil && value > 0 {
			cfg.RunTimeout = value
		}
	}

	envFloat("MAX_CANVAS", &cfg.MaxCanvas)
	envInt("MAX_RUNS", &cfg.MaxRuns)

	envFloat("PACK_WIDTH", &cfg.Packing.Width)
	envFloat("PACK_HEIGHT", &cfg.Packing.Height)
	envFloat("PACK_MIN_RADIUS", &cfg.Packing.MinRadius)
	envFloat("PACK_MAX_RADIUS", &cfg.Packing.MaxRadius)
	envInt("PACK_SAMPLE_SIZE", &cfg.Packing.SampleSize)
	envInt("PACK_CIRCLES_PER_LEVEL", &cfg.Packing.CirclesPerLevel)
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.Canvas != nil && *overrides.Canvas != "" {
		width, height, err := ParseCanvas(*overrides.Canvas)
		if err != nil {
			return fmt.Errorf("parse canvas: %w", err)
		}
		cfg.Packing.Width = width
		cfg.Packing.Height = height
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.RunTimeout <= 0 {
		return fmt.Errorf("run timeout must be positive")
	}
	if cfg.MaxCanvas <= 0 {
		return fmt.Errorf("max canvas must be positive")
	}
	if cfg.MaxRuns <= 0 {
		return fmt.Errorf("max runs must be positive")
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if err := cfg.Packing.Validate(); err != nil {
		return fmt.Errorf("default packing: %w", err)
	}
	if cfg.Packing.Width > cfg.MaxCanvas || cfg.Packing.Height > cfg.MaxCanvas {
		return fmt.Errorf("default canvas %vx%v exceeds max canvas %v", cfg.Packing.Width, cfg.Packing.Height, cfg.MaxCanvas)
	}
	return nil
}

// ParseCanvas parses a "WIDTHxHEIGHT" string such as "320x540".
func ParseCanvas(raw string) (float64, float64, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(raw)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected WIDTHxHEIGHT, got %q", raw)
	}

	dims := make([]float64, 2)
	for i, part := range parts {
		part = strings.TrimSpace(part)
		value, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid number %q", part)
		}
		if value <= 0 {
			return 0, 0, fmt.Errorf("canvas dimension must be positive, got %v", value)
		}
		dims[i] = value
	}
	return dims[0], dims[1], nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envFloat(key string, dst *float64) {
	if raw := env(key); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			*dst = value
		}
	}
}

func envInt(key string, dst *int) {
	if raw := env(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			*dst = value
		}
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
