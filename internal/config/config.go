package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation constants
const (
	MinTickInterval = 0.001 // Minimum tick interval in seconds (one millisecond increment)
	MaxTickInterval = 3600  // Maximum tick interval in seconds
	MinPort         = 1     // Minimum valid port number
	MaxPort         = 65535 // Maximum valid port number

	// Default values
	DefaultTickInterval  = 1.0  // seconds
	AnimatedTickInterval = 0.08 // seconds, used when animated is set and tick_interval is not
	DefaultHTTPPort      = 8080
	DefaultLogLevel      = "info"
)

// Config represents the application configuration
type Config struct {
	TickInterval float64 `yaml:"tick_interval"` // seconds, fractions allowed
	Animated     bool    `yaml:"animated"`
	AutoStart    bool    `yaml:"auto_start"`
	HTTPPort     int     `yaml:"http_port"`
	LogLevel     string  `yaml:"log_level"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads configuration from a YAML file and applies environment variable overrides.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		// #nosec G304 -- Config file path is provided by administrator via CLI flag, not user input
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment first so STOPWATCH_ANIMATED can still pick the animated default
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment variable error: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Interval returns the tick interval as a time.Duration
func (c *Config) Interval() time.Duration {
	return time.Duration(math.Round(c.TickInterval * float64(time.Second)))
}

// applyDefaults sets default values for configuration
func applyDefaults(cfg *Config) {
	if cfg.TickInterval == 0 {
		if cfg.Animated {
			cfg.TickInterval = AnimatedTickInterval
		} else {
			cfg.TickInterval = DefaultTickInterval
		}
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("STOPWATCH_TICK_INTERVAL"); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid STOPWATCH_TICK_INTERVAL: must be a number of seconds, got %q", val)
		}
		cfg.TickInterval = f
	}

	if val := os.Getenv("STOPWATCH_ANIMATED"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid STOPWATCH_ANIMATED: must be a boolean, got %q", val)
		}
		cfg.Animated = b
	}

	if val := os.Getenv("STOPWATCH_AUTO_START"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid STOPWATCH_AUTO_START: must be a boolean, got %q", val)
		}
		cfg.AutoStart = b
	}

	if val := os.Getenv("STOPWATCH_HTTP_PORT"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid STOPWATCH_HTTP_PORT: must be an integer, got %q", val)
		}
		cfg.HTTPPort = i
	}

	if val := os.Getenv("STOPWATCH_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}

	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %g", cfg.TickInterval)
	}

	if cfg.TickInterval < MinTickInterval {
		return fmt.Errorf("tick_interval must be at least %g seconds, got %g", float64(MinTickInterval), cfg.TickInterval)
	}

	if cfg.TickInterval > MaxTickInterval {
		return fmt.Errorf("tick_interval should not exceed %d seconds, got %g", MaxTickInterval, cfg.TickInterval)
	}

	if cfg.HTTPPort < MinPort || cfg.HTTPPort > MaxPort {
		return fmt.Errorf("http_port must be between %d and %d", MinPort, MaxPort)
	}

	return nil
}
