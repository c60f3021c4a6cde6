// Package config provides configuration parsing and management for the analyzer.
//
// It handles both command-line flags and environment variables, with flags taking
// precedence over environment variables. The Config struct contains all runtime
// configuration for the analyzer including:
//   - Battery identification
//   - Data source settings (source kind plus SOURCE_* config map)
//   - Analysis parameters (forecast horizon, end-of-life threshold)
//   - Anomaly detection thresholds
//   - Storage backend settings (memory or redis)
//   - Timing configuration (analysis interval)
//   - Logging configuration (level, format)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	if err := config.Validate(cfg); err != nil { ... }
package config

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config holds all analyzer configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	Battery      string
	Source       string
	SourceConfig map[string]string

	Interval time.Duration
	Horizon  int
	EOL      float64

	VoltageSevereRatio   float64
	VoltageModerateRatio float64
	CapacityJumpFraction float64
	TempHighCelsius      float64
	TempSevereCelsius    float64
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
// Each analyzer instance manages a single battery for simplicity.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8082"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 30*time.Minute), "Redis snapshot TTL")

	flag.StringVar(&cfg.Battery, "battery", getEnv("BATTERY", ""), "Battery identifier (required)")
	flag.StringVar(&cfg.Source, "source", getEnv("SOURCE", ""), "Data source kind: http or csv (required)")
	flag.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", 5*time.Minute), "Analysis interval")
	flag.IntVar(&cfg.Horizon, "horizon", getEnvInt("HORIZON", 50), "Forecast horizon in cycles")
	flag.Float64Var(&cfg.EOL, "eol", getEnvFloat("EOL", 80.0), "End-of-life SoH threshold percent")

	flag.Float64Var(&cfg.VoltageSevereRatio, "voltage-severe-ratio", getEnvFloat("VOLTAGE_SEVERE_RATIO", 0.5), "Min voltage below this fraction of cycle average is severe")
	flag.Float64Var(&cfg.VoltageModerateRatio, "voltage-moderate-ratio", getEnvFloat("VOLTAGE_MODERATE_RATIO", 0.7), "Min voltage below this fraction of cycle average is moderate")
	flag.Float64Var(&cfg.CapacityJumpFraction, "capacity-jump-fraction", getEnvFloat("CAPACITY_JUMP_FRACTION", 0.1), "Cycle-over-cycle capacity increase above this fraction is flagged")
	flag.Float64Var(&cfg.TempHighCelsius, "temp-high", getEnvFloat("TEMP_HIGH", 60.0), "Temperature above this is a moderate spike")
	flag.Float64Var(&cfg.TempSevereCelsius, "temp-severe", getEnvFloat("TEMP_SEVERE", 80.0), "Temperature above this is a severe spike")

	flag.Parse()

	cfg.SourceConfig = parseSourceConfig()

	if cfg.Battery == "" {
		fmt.Fprintln(os.Stderr, "Error: --battery is required")
		os.Exit(1)
	}
	if cfg.Source == "" {
		fmt.Fprintln(os.Stderr, "Error: --source is required")
		os.Exit(1)
	}

	return cfg
}

// parseSourceConfig parses SOURCE_* environment variables into a generic configuration map.
// Source-specific configuration is provided via environment variables with the SOURCE_ prefix.
// For example: SOURCE_URL, SOURCE_ROWS_PATH, SOURCE_PATH
// Environment variable names are converted to camelCase for the map keys (SOURCE_ROWS_PATH → rowsPath).
func parseSourceConfig() map[string]string {
	config := make(map[string]string)

	for _, env := range os.Environ() {
		if len(env) > 7 && env[:7] == "SOURCE_" {
			parts := splitEnv(env)
			if len(parts) == 2 {
				key := toLowerCamelCase(parts[0][7:])
				config[key] = parts[1]
			}
		}
	}

	return config
}

func splitEnv(env string) []string {
	for i := 0; i < len(env); i++ {
		if env[i] == '=' {
			return []string{env[:i], env[i+1:]}
		}
	}
	return []string{env}
}

func toLowerCamelCase(s string) string {
	if s == "" {
		return s
	}
	parts := []rune(s)
	result := make([]rune, 0, len(parts))
	nextUpper := false
	for i, r := range parts {
		if r == '_' {
			nextUpper = true
			continue
		}
		if i == 0 {
			result = append(result, toLower(r))
		} else if nextUpper {
			result = append(result, r)
			nextUpper = false
		} else {
			result = append(result, toLower(r))
		}
	}
	return string(result)
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 32
	}
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

var batteryNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// Validate checks semantic constraints on a parsed configuration.
func Validate(cfg *Config) error {
	if cfg.Battery == "" {
		return fmt.Errorf("battery cannot be empty")
	}

	if !batteryNameRegex.MatchString(cfg.Battery) {
		return fmt.Errorf("invalid battery %q (must be alphanumeric with dash/underscore, 1-253 chars)", cfg.Battery)
	}

	if cfg.Source != "http" && cfg.Source != "csv" {
		return fmt.Errorf("battery %q: invalid source %q (must be http or csv)", cfg.Battery, cfg.Source)
	}

	if cfg.Horizon <= 0 {
		return fmt.Errorf("battery %q: horizon must be > 0", cfg.Battery)
	}

	if cfg.EOL <= 0 || cfg.EOL >= 100 {
		return fmt.Errorf("battery %q: eol must be in (0, 100)", cfg.Battery)
	}

	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}

	if cfg.Storage != "memory" && cfg.Storage != "redis" {
		return fmt.Errorf("battery %q: invalid storage %q (must be memory or redis)", cfg.Battery, cfg.Storage)
	}

	if cfg.VoltageSevereRatio <= 0 || cfg.VoltageSevereRatio >= cfg.VoltageModerateRatio {
		return fmt.Errorf("battery %q: voltage ratios must satisfy 0 < severe < moderate", cfg.Battery)
	}
	if cfg.VoltageModerateRatio >= 1 {
		return fmt.Errorf("battery %q: voltage-moderate-ratio must be < 1", cfg.Battery)
	}

	if cfg.CapacityJumpFraction <= 0 {
		return fmt.Errorf("battery %q: capacity-jump-fraction must be > 0", cfg.Battery)
	}

	if cfg.TempHighCelsius >= cfg.TempSevereCelsius {
		return fmt.Errorf("battery %q: temp-high must be below temp-severe", cfg.Battery)
	}

	return nil
}
